package aiproxy

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

const analyzeTmpl = `You are an agricultural data analyst for Indian states and districts.
{{- with .Location }}
Location: {{ .District | default "all districts" }}, {{ .State | default "all states" }}
{{- end }}
{{- if .Query }}
Question: {{ .Query | trim }}
{{- end }}

Data:
{{ toPrettyJson .Data }}

Analyze the data above. Respond with only a JSON object:
{"summary": string, "insights": [string], "recommendations": [string], "confidence": number between 0 and 1}`

const predictTmpl = `You are an agricultural forecasting assistant.
{{- with .Location }}
Location: {{ .District | default "all districts" }}, {{ .State | default "all states" }}
{{- end }}
Metric: {{ .Metric | default "value" }}
Forecast horizon: {{ .Horizon }} year(s)

Historical series:
{{ toPrettyJson .HistoricalData }}

Project the metric forward. Respond with only a JSON object:
{"predictions": [{"year": number, "value": number}], "trend": "increasing" | "decreasing" | "stable", "recommendations": [string], "confidence": number between 0 and 1}`

const chatTmpl = `You are AgriDash, an assistant that answers questions about Indian agricultural statistics:
land holdings, irrigation sources, cropping patterns and groundwater well depths.
Keep answers short and practical.
{{- if .Context }}

Dashboard context:
{{ toPrettyJson .Context }}
{{- end }}
{{- range .History }}
{{ .Role | title }}: {{ .Content }}
{{- end }}
User: {{ .Message | trim }}

Respond with only a JSON object:
{"reply": string, "recommendations": [string], "confidence": number between 0 and 1}`

const recommendTmpl = `You are an agronomist advising farmers and planners.
{{- with .Location }}
Location: {{ .District | default "all districts" }}, {{ .State | default "all states" }}
{{- end }}
{{- if .Goals }}
Goals: {{ join ", " .Goals }}
{{- end }}
{{- if .Data }}

Data:
{{ toPrettyJson .Data }}
{{- end }}

Give concrete, prioritized recommendations. Respond with only a JSON object:
{"summary": string, "recommendations": [string], "confidence": number between 0 and 1}`

const reportTmpl = `You are writing an executive report for an agricultural data dashboard.
Title: {{ .Title }}
{{- if .Filters }}
Filters: {{ toJson .Filters }}
{{- end }}

Data:
{{ toPrettyJson .Data }}

Write a concise narrative of the key findings. Respond with only a JSON object:
{"summary": string, "highlights": [string], "recommendations": [string], "confidence": number between 0 and 1}`

type prompts struct {
	templates map[Kind]*template.Template
}

func newPrompts() *prompts {
	sources := map[Kind]string{
		KindAnalyze:   analyzeTmpl,
		KindPredict:   predictTmpl,
		KindChat:      chatTmpl,
		KindRecommend: recommendTmpl,
		KindReport:    reportTmpl,
	}
	p := &prompts{templates: make(map[Kind]*template.Template, len(sources))}
	for kind, src := range sources {
		p.templates[kind] = template.Must(template.New(string(kind)).Funcs(sprig.TxtFuncMap()).Parse(src))
	}
	return p
}

func (p *prompts) render(kind Kind, data any) (string, error) {
	t, ok := p.templates[kind]
	if !ok {
		return "", fmt.Errorf("no prompt template for %s", kind)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", kind, err)
	}
	return buf.String(), nil
}
