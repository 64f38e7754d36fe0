package federation

import (
	"sort"

	"github.com/geolytics/geolytics/internal/model"
)

// DefaultColor is assigned to features whose category is absent or unmapped.
const DefaultColor = "#999999"

// palette is the fixed 20-entry category colour cycle. Assignment order is
// the sorted order of distinct categories, so a fixed category set always
// produces the same map.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#fffac8", "#800000",
	"#aaffc3", "#808000", "#ffd8b1", "#000075", "#808080",
}

// buildColorMap assigns palette colours to the distinct categories, sorted
// first so the assignment is deterministic, and returns the map plus the
// legend in the same order.
func buildColorMap(categories []string) (map[string]string, []model.LegendEntry) {
	distinct := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		distinct = append(distinct, c)
	}
	sort.Strings(distinct)

	colors := make(map[string]string, len(distinct))
	legend := make([]model.LegendEntry, 0, len(distinct))
	for i, c := range distinct {
		color := palette[i%len(palette)]
		colors[c] = color
		legend = append(legend, model.LegendEntry{Issue: c, Color: color})
	}
	return colors, legend
}
