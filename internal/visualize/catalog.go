package visualize

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot/vg"

	"devsurvey/internal/analysis"
	"devsurvey/internal/frame"
	"devsurvey/internal/report"
)

// Figure names; the file extension is added by the Figure.
const (
	FigureAgeDistribution    = "age_distribution_bar"
	FigureSalaryByExperience = "barplot_salary_by_experience"
	FigureIndustryHeatmap    = "industry_salary_heatmap"
	FigureWorldMap           = "respondents_world_map"
	FigureSalaryByLanguage   = "salary_by_language_bar"
	FigureRemoteWorkSalary   = "remote_work_salary_bar"
	FigureHighPaidIndustry   = "high_paid_remote_by_industry_bar"
)

// ErrUnknownFigure is returned by Render for a name outside Catalog.
var ErrUnknownFigure = errors.New("visualize: unknown figure")

// ErrMissingReport is returned when a figure's source report was not produced.
var ErrMissingReport = errors.New("visualize: source report not available")

// Catalog lists every figure name in render order.
var Catalog = []string{
	FigureAgeDistribution,
	FigureSalaryByExperience,
	FigureIndustryHeatmap,
	FigureWorldMap,
	FigureSalaryByLanguage,
	FigureRemoteWorkSalary,
	FigureHighPaidIndustry,
}

// SourceReport names the report a figure is drawn from, or "" when it is
// drawn from the respondent table directly.
func SourceReport(figure string) string {
	switch figure {
	case FigureSalaryByExperience:
		return analysis.ReportSalaryByExperience
	case FigureSalaryByLanguage:
		return analysis.ReportSalaryByLanguage
	case FigureRemoteWorkSalary:
		return analysis.ReportRemoteWorkSalary
	case FigureHighPaidIndustry:
		return analysis.ReportHighPaidRemoteIndustry
	}
	return ""
}

// Render draws the figure called name from the preprocessed table t and the
// reports computed earlier in the run, keyed by report name.
func Render(name string, t *frame.Table, reports map[string]*report.Report, st Style) (Figure, error) {
	var src *report.Report
	if rn := SourceReport(name); rn != "" {
		src = reports[rn]
		if src == nil {
			return nil, fmt.Errorf("figure %s: %w: %s", name, ErrMissingReport, rn)
		}
	}

	switch name {
	case FigureAgeDistribution:
		return AgeDistribution(t, st)
	case FigureSalaryByExperience:
		return SalaryByExperienceBars(src, st)
	case FigureIndustryHeatmap:
		return IndustryPythonHeatmap(t, st)
	case FigureWorldMap:
		return RespondentsWorldMap(t)
	case FigureSalaryByLanguage:
		return rankedFromReport(src, "MedianSalary", BarOptions{
			Name: name, Title: "Median Salary by Programming Language",
			XLabel: "Median salary (USD)", YLabel: "Language", Style: st,
		})
	case FigureRemoteWorkSalary:
		return rankedFromReport(src, "MedianSalary", BarOptions{
			Name: name, Title: "Median Salary by Remote Work Type",
			XLabel: "Median salary (USD)", YLabel: "Remote work", Style: st,
		})
	case FigureHighPaidIndustry:
		return rankedFromReport(src, analysis.ColResponseID, BarOptions{
			Name: name, Title: "Industries with the Most High-Paid Remote Respondents",
			XLabel: "Respondents", YLabel: "Industry", Height: 5 * vg.Inch, Style: st,
		})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFigure, name)
}

func rankedFromReport(r *report.Report, col string, opt BarOptions) (Figure, error) {
	s, err := SeriesFromReport(r, col)
	if err != nil {
		return nil, err
	}
	return RankedBar(s, opt)
}
