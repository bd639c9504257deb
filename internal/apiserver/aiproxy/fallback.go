package aiproxy

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// Canned answers served when no model is configured or the model call fails
const (
	FallbackIrrigation = "Irrigation efficiency can be improved by shifting flood-irrigated fields to drip or sprinkler systems, " +
		"scheduling irrigation by soil moisture rather than by calendar, and tracking groundwater levels in nearby observation wells " +
		"before adding new tubewells."
	FallbackSoil = "Start with a soil test and follow the soil health card dosage for nitrogen, phosphorus and potassium. " +
		"Add farmyard manure or compost to build organic carbon, and rotate cereals with pulses to restore soil nitrogen."
	FallbackCrop = "Match crop choice to the district's rainfall and irrigation coverage. Compare recent yields across seasons, " +
		"prefer drought-tolerant varieties where irrigation is limited, and diversify between kharif and rabi crops to spread risk."
	FallbackGeneral = "AI analysis is currently unavailable. Land holding, irrigation, cropping pattern and well depth data " +
		"can still be explored through the dashboard filters."
)

type topic int

const (
	topicGeneral topic = iota
	topicIrrigation
	topicSoil
	topicCrop
)

var topicKeywords = []struct {
	topic    topic
	keywords []string
}{
	{topicIrrigation, []string{"water", "irrigat", "groundwater", "tubewell", "borewell", "canal", "drip", "sprinkler"}},
	{topicSoil, []string{"soil", "fertili", "nutrient", "manure"}},
	{topicCrop, []string{"crop", "yield", "harvest", "sow", "seed", "wheat", "rice"}},
}

var fallbackText = map[topic]string{
	topicGeneral:    FallbackGeneral,
	topicIrrigation: FallbackIrrigation,
	topicSoil:       FallbackSoil,
	topicCrop:       FallbackCrop,
}

var fallbackRecommendations = map[topic][]string{
	topicGeneral: {
		"Review the latest district figures on the dashboard",
		"Try the AI assistant again later",
	},
	topicIrrigation: {
		"Adopt drip or sprinkler irrigation for high-value crops",
		"Schedule irrigation using soil moisture measurements",
		"Monitor pre- and post-monsoon well depths",
	},
	topicSoil: {
		"Test soil every two to three years",
		"Apply fertilizer according to soil health card advice",
		"Incorporate organic matter after harvest",
	},
	topicCrop: {
		"Compare yields across recent seasons before choosing crops",
		"Use certified seed of locally recommended varieties",
		"Diversify between kharif and rabi crops",
	},
}

// classify picks the first topic with a keyword starting one of the words of text
func classify(text string) topic {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, tk := range topicKeywords {
		for _, kw := range tk.keywords {
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					return tk.topic
				}
			}
		}
	}
	return topicGeneral
}

// Fallback returns the deterministic payload for kind given the caller's text
func Fallback(kind Kind, text string) map[string]any {
	t := classify(text)
	recs := append([]string(nil), fallbackRecommendations[t]...)
	return map[string]any{
		primaryKey(kind):  fallbackText[t],
		"recommendations": recs,
		"confidence":      FallbackConfidence,
	}
}

// FallbackPrediction extends the series linearly by its mean yearly change
func FallbackPrediction(series []map[string]any, metric string, horizon int) map[string]any {
	type point struct{ year, value float64 }
	if metric == "" {
		metric = "value"
	}
	var points []point
	for _, row := range series {
		year, okYear := number(row["year"])
		value, okValue := number(row[metric])
		if okYear && okValue {
			points = append(points, point{year, value})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].year < points[j].year })

	predictions := []map[string]any{}
	trend := "stable"
	if len(points) >= 2 {
		first, last := points[0], points[len(points)-1]
		span := last.year - first.year
		if span > 0 {
			slope := (last.value - first.value) / span
			switch {
			case slope > 0:
				trend = "increasing"
			case slope < 0:
				trend = "decreasing"
			}
			for h := 1; h <= horizon; h++ {
				predictions = append(predictions, map[string]any{
					"year":  int(last.year) + h,
					"value": math.Round((last.value+slope*float64(h))*100) / 100,
				})
			}
		}
	}

	return map[string]any{
		"predictions":     predictions,
		"trend":           trend,
		"method":          "linear-extrapolation",
		"recommendations": append([]string(nil), fallbackRecommendations[topicGeneral]...),
		"confidence":      FallbackConfidence,
	}
}

// number reads JSON-ish numerics including numeric strings
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		r := gjson.Parse(strings.TrimSpace(n))
		if r.Type == gjson.Number {
			return r.Float(), true
		}
	}
	return 0, false
}
