package outwriter

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/huangsam/vegchange/schema"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteChartFile saves a grouped bar chart of class percentages per (pair, index).
// The image format follows the file extension (png, svg, pdf). Legend labels are in lang.
func WriteChartFile(path string, result *schema.AnalysisResult, lang schema.Language) error {
	p, err := buildChart(result, lang)
	if err != nil {
		return err
	}
	width := vg.Length(max(4, 2*len(groupLabels(result)))) * vg.Inch
	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	_, _ = fmt.Fprintf(headerWriter, "📊 Wrote chart to %s\n", path)
	return nil
}

// groupLabels returns one "pair index" label per bar group in a stable order.
func groupLabels(result *schema.AnalysisResult) []string {
	var labels []string
	for _, pair := range result.PairKeys() {
		for _, index := range schema.SortedKeys(result.Statistics[pair]) {
			labels = append(labels, strings.Replace(pair, "_to_", "→", 1)+" "+index)
		}
	}
	return labels
}

func buildChart(result *schema.AnalysisResult, lang schema.Language) (*plot.Plot, error) {
	labels := groupLabels(result)
	if len(labels) == 0 {
		return nil, fmt.Errorf("no statistics to chart")
	}

	p := plot.New()
	p.Title.Text = "Vegetation change by class"
	p.Y.Label.Text = "Percent of valid area"
	p.Y.Min, p.Y.Max = 0, 100
	p.Legend.Top = true

	classes := schema.AllChangeClasses
	barWidth := vg.Points(12)
	for i, class := range classes {
		values := make(plotter.Values, 0, len(labels))
		for _, pair := range result.PairKeys() {
			for _, index := range schema.SortedKeys(result.Statistics[pair]) {
				values = append(values, result.Statistics[pair][index].Class(class).Percent)
			}
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return nil, err
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = parseHexColor(schema.ChangeClassInfo[class].Color)
		bars.Offset = barWidth * vg.Length(float64(i)-float64(len(classes)-1)/2)
		p.Add(bars)
		p.Legend.Add(schema.GetLabel(class, lang), bars)
	}
	p.NominalX(labels...)
	return p, nil
}

// parseHexColor converts "#rrggbb" into a color, falling back to grey.
func parseHexColor(s string) color.Color {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.Gray{Y: 128}
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
