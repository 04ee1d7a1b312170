package visualize

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"

	"devsurvey/internal/analysis"
	"devsurvey/internal/frame"
)

// PlotlyJS is the plotly.js bundle the choropleth document loads.
const PlotlyJS = "https://cdn.plot.ly/plotly-2.35.2.min.js"

// sunsetScale is the CARTO "Sunset" sequential scale.
var sunsetScale = [][2]any{
	{0.0, "rgb(243, 231, 155)"},
	{1.0 / 6, "rgb(250, 196, 132)"},
	{2.0 / 6, "rgb(248, 160, 126)"},
	{3.0 / 6, "rgb(235, 127, 134)"},
	{4.0 / 6, "rgb(206, 102, 147)"},
	{5.0 / 6, "rgb(160, 89, 160)"},
	{1.0, "rgb(92, 83, 165)"},
}

// CountryCount is one choropleth location.
type CountryCount struct {
	Country     string
	Respondents int
}

// CountRespondents counts rows per Country, most respondents first; ties
// are ordered by name.
func CountRespondents(t *frame.Table) ([]CountryCount, error) {
	c, err := t.Column(analysis.ColCountry)
	if err != nil {
		return nil, err
	}
	m := map[string]int{}
	for i := 0; i < c.Len(); i++ {
		if s, ok := c.String(i); ok {
			m[s]++
		}
	}
	out := make([]CountryCount, 0, len(m))
	for k, v := range m {
		out = append(out, CountryCount{Country: k, Respondents: v})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Respondents != out[b].Respondents {
			return out[a].Respondents > out[b].Respondents
		}
		return out[a].Country < out[b].Country
	})
	return out, nil
}

var worldMapTmpl = template.Must(template.New("worldmap").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.PlotlyJS}}"></script>
</head>
<body>
<div id="respondents-map" style="width:100%;height:90vh;"></div>
<table id="respondents-table" hidden>
<thead><tr><th>Country</th><th>Respondents</th></tr></thead>
<tbody>
{{- range .Counts}}
<tr><td>{{.Country}}</td><td>{{.Respondents}}</td></tr>
{{- end}}
</tbody>
</table>
<script>
var data = [{
  type: "choropleth",
  locationmode: "country names",
  locations: {{.Locations}},
  z: {{.Values}},
  text: {{.Locations}},
  hovertemplate: "<b>%{text}</b><br>Respondents: %{z}<extra></extra>",
  colorscale: {{.Scale}},
  colorbar: {title: {text: "Respondents"}}
}];
var layout = {
  title: {text: {{.Title}}},
  geo: {showframe: false, showcoastlines: true},
  template: "plotly_white"
};
Plotly.newPlot("respondents-map", data, layout, {responsive: true});
</script>
</body>
</html>
`))

// RespondentsWorldMap renders an interactive choropleth of respondents per
// country as a standalone HTML document. A hidden table carries the same
// counts for non-script consumers.
func RespondentsWorldMap(t *frame.Table) (Figure, error) {
	counts, err := CountRespondents(t)
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("world map: %w", frame.ErrEmptyResult)
	}

	locs := make([]string, len(counts))
	vals := make([]int, len(counts))
	for i, c := range counts {
		locs[i], vals[i] = c.Country, c.Respondents
	}

	var buf bytes.Buffer
	err = worldMapTmpl.Execute(&buf, map[string]any{
		"Title":     "Number of Respondents Across Countries",
		"PlotlyJS":  PlotlyJS,
		"Counts":    counts,
		"Locations": locs,
		"Values":    vals,
		"Scale":     sunsetScale,
	})
	if err != nil {
		return nil, fmt.Errorf("world map: %w", err)
	}
	return &htmlFigure{name: FigureWorldMap, doc: buf.Bytes()}, nil
}
