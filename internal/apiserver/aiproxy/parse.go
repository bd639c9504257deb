package aiproxy

import (
	"regexp"
	"strings"

	"github.com/ifuryst/lol"
	"github.com/tidwall/gjson"
)

const (
	// DefaultConfidence is reported when the model reply carries no usable confidence
	DefaultConfidence = 0.7
	// FallbackConfidence is reported for canned fallback answers
	FallbackConfidence = 0.5
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ParseOrDefault extracts the first JSON object from a model reply.
// Fenced code blocks are tried before raw brace matching. When nothing
// parses, the trimmed text is returned under primaryKey.
func ParseOrDefault(text, primaryKey string) map[string]any {
	for _, candidate := range jsonCandidates(text) {
		parsed := gjson.Parse(candidate)
		if !gjson.Valid(candidate) || !parsed.IsObject() {
			continue
		}
		obj, ok := parsed.Value().(map[string]any)
		if !ok {
			continue
		}
		return normalize(obj, parsed, primaryKey, outside(text, candidate))
	}

	return map[string]any{
		primaryKey:        strings.TrimSpace(text),
		"recommendations": []string{},
		"confidence":      DefaultConfidence,
	}
}

func jsonCandidates(text string) []string {
	var out []string
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if obj, ok := balancedObject(text); ok {
		out = append(out, obj)
	}
	if first, last := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}'); first >= 0 && last > first {
		out = append(out, text[first:last+1])
	}
	return out
}

// balancedObject returns the first brace-balanced span, skipping braces inside strings
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth, inString, escaped := 0, false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func normalize(obj map[string]any, parsed gjson.Result, primaryKey, prose string) map[string]any {
	if _, ok := obj[primaryKey]; !ok {
		obj[primaryKey] = firstString(parsed, prose, "response", "text", "answer", "message")
	}

	recs := []string{}
	for _, r := range parsed.Get("recommendations").Array() {
		if s := strings.TrimSpace(r.String()); s != "" {
			recs = append(recs, s)
		}
	}
	obj["recommendations"] = lol.UniqSlice(recs)

	obj["confidence"] = confidence(parsed.Get("confidence"))
	return obj
}

func firstString(parsed gjson.Result, prose string, keys ...string) string {
	for _, k := range keys {
		if v := parsed.Get(k); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return prose
}

// outside returns the reply text with fenced blocks and the parsed object removed
func outside(text, object string) string {
	rest := fencedBlock.ReplaceAllString(text, "")
	rest = strings.Replace(rest, object, "", 1)
	return strings.TrimSpace(rest)
}

// confidence accepts a ratio or a percentage and clamps to [0, 1]
func confidence(v gjson.Result) float64 {
	if !v.Exists() {
		return DefaultConfidence
	}
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		s := strings.TrimSuffix(strings.TrimSpace(v.String()), "%")
		parsed := gjson.Parse(s)
		if parsed.Type != gjson.Number {
			return DefaultConfidence
		}
		f = parsed.Float()
	default:
		return DefaultConfidence
	}
	if f > 1 && f <= 100 {
		f /= 100
	}
	if f < 0 || f > 1 {
		return DefaultConfidence
	}
	return f
}
