package analysis

import (
	"math"

	"devsurvey/internal/frame"
	"devsurvey/internal/preprocess"
	"devsurvey/internal/report"
	"devsurvey/internal/stats"
)

// Respondent and schema columns the reports read.
const (
	ColSalary     = "ConvertedCompYearly"
	ColResponseID = "ResponseId"
	ColIndustry   = "Industry"
	ColCountry    = "Country"
	ColAge        = "Age"
	ColQName      = "qname"
)

// Report names; each is also the artifact base name.
const (
	ReportWorkExpStats           = "work_experience_stats"
	ReportSalaryByExperience     = "salary_by_experience_level"
	ReportPythonVsNonPython      = "python_vs_non_python_salary"
	ReportRemoteWorkSalary       = "remote_work_salary"
	ReportSalaryByLanguage       = "salary_by_language"
	ReportHighPaidRemoteIndustry = "high_paid_remote_by_industry"
)

// CompleteResponses counts respondents who answered every schema question
// present as a respondent column. Columns named by the schema but absent from
// the respondent table are ignored.
func CompleteResponses(respondents, schema *frame.Table) (int, error) {
	qcol, err := schema.Column(ColQName)
	if err != nil {
		return 0, err
	}

	seen := map[string]bool{}
	var cols []*frame.Column
	for i := 0; i < qcol.Len(); i++ {
		q, ok := qcol.String(i)
		if !ok || seen[q] {
			continue
		}
		seen[q] = true
		if c, err := respondents.Column(q); err == nil {
			cols = append(cols, c)
		}
	}

	n := 0
rows:
	for i := 0; i < respondents.NumRows(); i++ {
		for _, c := range cols {
			if c.IsNull(i) {
				continue rows
			}
		}
		n++
	}
	return n, nil
}

// WorkExpStats reports Mean (2 decimals), Median and Mode of WorkExp. The
// result always has exactly three rows.
func WorkExpStats(t *frame.Table) (*report.Report, error) {
	c, err := t.Column(preprocess.ColWorkExp)
	if err != nil {
		return nil, err
	}
	vals := valuesAt(c, presentRows(c))

	r := report.New(ReportWorkExpStats, "Metric", preprocess.ColWorkExp)
	r.Add("Mean", stats.Round(stats.Mean(vals), 2))
	r.Add("Median", stats.Median(vals))
	r.Add("Mode", stats.Mode(vals))
	return r, nil
}

// salaryRows returns the rows with a reported salary.
func salaryRows(t *frame.Table) (*frame.Column, []int, error) {
	c, err := t.Column(ColSalary)
	if err != nil {
		return nil, nil, err
	}
	return c, presentRows(c), nil
}

// SalaryByExperienceLevel reports mean and median salary per observed
// experience level, both rounded to whole units (halves to even).
func SalaryByExperienceLevel(t *frame.Table) (*report.Report, error) {
	salary, rows, err := salaryRows(t)
	if err != nil {
		return nil, err
	}
	lvl, err := t.Column(preprocess.ColExperienceLevel)
	if err != nil {
		return nil, err
	}

	r := report.New(ReportSalaryByExperience, preprocess.ColExperienceLevel, "Average salary", "Median salary")
	for _, g := range groupBy(lvl, rows) {
		vals := valuesAt(salary, g.rows)
		r.Add(g.key, stats.RoundEven(stats.Mean(vals)), stats.RoundEven(stats.Median(vals)))
	}
	return r, nil
}

// PythonVsNonPythonSalary reports median salary by know_Python.
func PythonVsNonPythonSalary(t *frame.Table) (*report.Report, error) {
	salary, rows, err := salaryRows(t)
	if err != nil {
		return nil, err
	}
	knowCol := preprocess.KnowColumn("Python")
	know, err := t.Column(knowCol)
	if err != nil {
		return nil, err
	}

	r := report.New(ReportPythonVsNonPython, knowCol, "Median Salary")
	for _, g := range groupBy(know, rows) {
		r.Add(g.key, medianAt(salary, g.rows))
	}
	return r, nil
}

// RemoteWorkSalary reports median salary per remote-work type, highest first.
func RemoteWorkSalary(t *frame.Table) (*report.Report, error) {
	salary, rows, err := salaryRows(t)
	if err != nil {
		return nil, err
	}
	remote, err := t.Column(preprocess.ColRemoteWork)
	if err != nil {
		return nil, err
	}

	groups := groupBy(remote, rows)
	meds := make([]float64, len(groups))
	idx := make([]int, len(groups))
	for i, g := range groups {
		meds[i] = medianAt(salary, g.rows)
		idx[i] = i
	}
	sortDesc(idx, meds)

	r := report.New(ReportRemoteWorkSalary, preprocess.ColRemoteWork, "MedianSalary")
	for _, i := range idx {
		r.Add(groups[i].key, meds[i])
	}
	return r, nil
}

// SalaryByLanguage reports, per tracked language, the median salary of the
// respondents who know it, highest first. Languages nobody with a salary
// knows get an undefined median and sort last.
func SalaryByLanguage(t *frame.Table, languages []string) (*report.Report, error) {
	salary, rows, err := salaryRows(t)
	if err != nil {
		return nil, err
	}

	meds := make([]float64, len(languages))
	idx := make([]int, len(languages))
	for li, lang := range languages {
		know, err := t.Column(preprocess.KnowColumn(lang))
		if err != nil {
			return nil, err
		}
		var sel []int
		for _, i := range rows {
			if b, ok := know.Bool(i); ok && b {
				sel = append(sel, i)
			}
		}
		meds[li] = medianAt(salary, sel)
		idx[li] = li
	}
	sortDesc(idx, meds)

	r := report.New(ReportSalaryByLanguage, "Language", "MedianSalary")
	for _, i := range idx {
		r.Add(languages[i], meds[i])
	}
	return r, nil
}

// HighPaidRemoteByIndustry counts distinct respondents per industry among
// those paid at or above the quantile threshold whose RemoteWork contains
// "remote". It returns the topN industries by count, highest first.
//
// The threshold is taken over every reported salary; missing salaries never
// pass the filter.
func HighPaidRemoteByIndustry(t *frame.Table, quantile float64, topN int) (*report.Report, error) {
	cols, err := t.Columns(ColSalary, preprocess.ColRemoteWork, ColIndustry, ColResponseID)
	if err != nil {
		return nil, err
	}
	salary, remote, industry, id := cols[0], cols[1], cols[2], cols[3]

	threshold := stats.Quantile(valuesAt(salary, presentRows(salary)), quantile)

	var rows []int
	if !math.IsNaN(threshold) {
		for i := 0; i < t.NumRows(); i++ {
			v, ok := salary.Float(i)
			if ok && v >= threshold && containsAt(remote, i, "remote") {
				rows = append(rows, i)
			}
		}
	}

	groups := groupBy(industry, rows)
	counts := make([]float64, len(groups))
	idx := make([]int, len(groups))
	for gi, g := range groups {
		distinct := map[string]struct{}{}
		for _, i := range g.rows {
			if s, ok := id.String(i); ok {
				distinct[s] = struct{}{}
			}
		}
		counts[gi] = float64(len(distinct))
		idx[gi] = gi
	}
	sortDesc(idx, counts)
	if topN > 0 && len(idx) > topN {
		idx = idx[:topN]
	}

	r := report.New(ReportHighPaidRemoteIndustry, ColIndustry, ColResponseID)
	for _, i := range idx {
		r.Add(groups[i].key, counts[i])
	}
	return r, nil
}
