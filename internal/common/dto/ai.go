package dto

// Location narrows an AI request to a state and optional district
type Location struct {
	State    string `json:"state" binding:"max=100"`
	District string `json:"district" binding:"max=100"`
}

type AnalyzeRequest struct {
	Data     map[string]any `json:"data" binding:"required"`
	Query    string         `json:"query" binding:"max=2000"`
	Location *Location      `json:"location"`
}

type PredictRequest struct {
	HistoricalData []map[string]any `json:"historicalData" binding:"required,min=1,max=200"`
	Metric         string           `json:"metric" binding:"max=100"`
	Horizon        int              `json:"horizon" binding:"omitempty,gte=1,lte=10"`
	Location       *Location        `json:"location"`
}

// ChatTurn is one prior exchange supplied by the client
type ChatTurn struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required,max=2000"`
}

type ChatRequest struct {
	Message string         `json:"message" binding:"required,min=1,max=2000"`
	Context map[string]any `json:"context"`
	History []ChatTurn     `json:"history" binding:"max=20,dive"`
}

type RecommendRequest struct {
	Data     map[string]any `json:"data"`
	Goals    []string       `json:"goals" binding:"max=10"`
	Location *Location      `json:"location"`
}

// GenerateReportRequest asks the model for a narrative and saves it as a report
type GenerateReportRequest struct {
	Title          string           `json:"title" binding:"required,min=1,max=200"`
	Filters        map[string]any   `json:"filters"`
	Data           map[string]any   `json:"data" binding:"required"`
	Visualizations []map[string]any `json:"visualizations"`
}

// AIResponse is the normalized payload returned by every AI route
type AIResponse struct {
	Type      string         `json:"type"`
	Result    map[string]any `json:"result"`
	Source    string         `json:"source"`
	LatencyMs int64          `json:"latencyMs"`
}

type AILogQuery struct {
	Type    string `form:"type" binding:"omitempty,oneof=analyze predict chat recommend report"`
	Success *bool  `form:"success"`
	Page
}
