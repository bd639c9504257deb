package dto

type CreateReportRequest struct {
	Title          string           `json:"title" binding:"required,min=1,max=200"`
	Description    string           `json:"description" binding:"max=2000"`
	Filters        map[string]any   `json:"filters"`
	AIInsights     map[string]any   `json:"aiInsights"`
	Visualizations []map[string]any `json:"visualizations"`
	Tags           []string         `json:"tags" binding:"max=20"`
}

// UpdateReportRequest leaves nil fields untouched
type UpdateReportRequest struct {
	Title          *string           `json:"title" binding:"omitempty,min=1,max=200"`
	Description    *string           `json:"description" binding:"omitempty,max=2000"`
	Filters        map[string]any    `json:"filters"`
	AIInsights     map[string]any    `json:"aiInsights"`
	Visualizations *[]map[string]any `json:"visualizations"`
	Tags           *[]string         `json:"tags"`
}

// TrackRequest is a fire-and-forget analytics event
type TrackRequest struct {
	Type      string         `json:"type" binding:"required,max=50"`
	Page      string         `json:"page" binding:"max=200"`
	Action    string         `json:"action" binding:"max=100"`
	Metadata  map[string]any `json:"metadata"`
	SessionID string         `json:"sessionId" binding:"max=100"`
}

type AnalyticsQuery struct {
	Days int `form:"days" binding:"omitempty,gte=1,lte=365"`
}
