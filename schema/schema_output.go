package schema

// GetPlainLabel returns the English label of a change class.
func GetPlainLabel(c ChangeClass) string {
	return GetLabel(c, English)
}

// GetLabel returns the label of a change class in lang. Unknown languages fall back to English.
func GetLabel(c ChangeClass, lang Language) string {
	info, ok := ChangeClassInfo[c]
	switch {
	case !ok && lang == Spanish:
		return "Sin Datos"
	case !ok:
		return "No Data"
	case lang == Spanish:
		return info.LabelES
	default:
		return info.Label
	}
}

// Localized returns a copy of r whose class labels are in lang. r is not modified.
func (r *AnalysisResult) Localized(lang Language) *AnalysisResult {
	out := *r
	out.Statistics = make(map[string]map[string]ClassStatistics, len(r.Statistics))
	for pair, byIndex := range r.Statistics {
		localized := make(map[string]ClassStatistics, len(byIndex))
		for index, stats := range byIndex {
			classes := make([]ClassStat, len(stats.Classes))
			for i, c := range stats.Classes {
				c.Label = GetLabel(c.Class, lang)
				classes[i] = c
			}
			stats.Classes = classes
			localized[index] = stats
		}
		out.Statistics[pair] = localized
	}
	return &out
}

// StatisticsRow is a flattened statistics record used by csv and parquet writers.
type StatisticsRow struct {
	Pair       string  `json:"pair"`
	Index      string  `json:"index"`
	Class      int     `json:"class"`
	Label      string  `json:"label"`
	PixelCount int64   `json:"pixel_count"`
	AreaHa     float64 `json:"area_ha"`
	Percent    float64 `json:"percent"`
}

// FlattenStatistics returns one row per (pair, index, class) in a stable order.
func FlattenStatistics(result *AnalysisResult) []StatisticsRow {
	var rows []StatisticsRow
	for _, pair := range result.PairKeys() {
		byIndex := result.Statistics[pair]
		for _, index := range SortedKeys(byIndex) {
			for _, c := range byIndex[index].Classes {
				rows = append(rows, StatisticsRow{
					Pair:       pair,
					Index:      index,
					Class:      int(c.Class),
					Label:      c.Label,
					PixelCount: c.PixelCount,
					AreaHa:     c.AreaHa,
					Percent:    c.Percent,
				})
			}
		}
	}
	return rows
}
