package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for missing documents and for documents owned by someone else
var ErrNotFound = errors.New("document not found")

// AILog is the immutable audit record of one AI proxy call
type AILog struct {
	ID        string         `json:"id" bson:"_id"`
	Type      string         `json:"type" bson:"type"`
	UserID    uint           `json:"userId,omitempty" bson:"user_id,omitempty"`
	Prompt    string         `json:"prompt" bson:"prompt"`
	Input     map[string]any `json:"input,omitempty" bson:"input,omitempty"`
	Response  map[string]any `json:"response,omitempty" bson:"response,omitempty"`
	Model     string         `json:"model,omitempty" bson:"model,omitempty"`
	Success   bool           `json:"success" bson:"success"`
	Fallback  bool           `json:"fallback" bson:"fallback"`
	Error     string         `json:"error,omitempty" bson:"error,omitempty"`
	LatencyMs int64          `json:"latencyMs" bson:"latency_ms"`
	CreatedAt time.Time      `json:"createdAt" bson:"created_at"`
}

type AILogFilter struct {
	Type    string
	Success *bool
	UserID  uint
	Limit   int
	Offset  int
}

// AILogStat aggregates audit records per call type
type AILogStat struct {
	Type         string  `json:"type" bson:"_id"`
	Total        int64   `json:"total" bson:"total"`
	Successes    int64   `json:"successes" bson:"successes"`
	Fallbacks    int64   `json:"fallbacks" bson:"fallbacks"`
	AvgLatencyMs float64 `json:"avgLatencyMs" bson:"avg_latency_ms"`
}

// AnalyticsEvent is a write-once client interaction record
type AnalyticsEvent struct {
	ID        string         `json:"id" bson:"_id"`
	Type      string         `json:"type" bson:"type"`
	Page      string         `json:"page,omitempty" bson:"page,omitempty"`
	Action    string         `json:"action,omitempty" bson:"action,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	SessionID string         `json:"sessionId,omitempty" bson:"session_id,omitempty"`
	UserID    uint           `json:"userId,omitempty" bson:"user_id,omitempty"`
	UserAgent string         `json:"userAgent,omitempty" bson:"user_agent,omitempty"`
	CreatedAt time.Time      `json:"createdAt" bson:"created_at"`
}

type AnalyticsCount struct {
	Type   string `json:"type" bson:"type"`
	Action string `json:"action,omitempty" bson:"action"`
	Count  int64  `json:"count" bson:"count"`
}

// UserReport is a saved dashboard snapshot owned by one user
type UserReport struct {
	ID             string           `json:"id" bson:"_id"`
	UserID         uint             `json:"userId" bson:"user_id"`
	Title          string           `json:"title" bson:"title"`
	Description    string           `json:"description,omitempty" bson:"description,omitempty"`
	Filters        map[string]any   `json:"filters,omitempty" bson:"filters,omitempty"`
	AIInsights     map[string]any   `json:"aiInsights,omitempty" bson:"ai_insights,omitempty"`
	Visualizations []map[string]any `json:"visualizations,omitempty" bson:"visualizations,omitempty"`
	Tags           []string         `json:"tags,omitempty" bson:"tags,omitempty"`
	CreatedAt      time.Time        `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time        `json:"updatedAt" bson:"updated_at"`
}

// ReportPatch holds the fields to overwrite; nil means unchanged
type ReportPatch struct {
	Title          *string
	Description    *string
	Filters        map[string]any
	AIInsights     map[string]any
	Visualizations *[]map[string]any
	Tags           *[]string
}

// Apply writes the patch onto r
func (p ReportPatch) Apply(r *UserReport) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Filters != nil {
		r.Filters = p.Filters
	}
	if p.AIInsights != nil {
		r.AIInsights = p.AIInsights
	}
	if p.Visualizations != nil {
		r.Visualizations = *p.Visualizations
	}
	if p.Tags != nil {
		r.Tags = *p.Tags
	}
}

// Store defines the document store operations
type Store interface {
	InsertAILog(ctx context.Context, log *AILog) error
	ListAILogs(ctx context.Context, filter AILogFilter) ([]*AILog, int64, error)
	AILogStats(ctx context.Context) ([]AILogStat, error)

	InsertAnalytics(ctx context.Context, event *AnalyticsEvent) error
	AnalyticsSummary(ctx context.Context, since time.Time) ([]AnalyticsCount, error)

	CreateReport(ctx context.Context, report *UserReport) error
	GetReport(ctx context.Context, ownerID uint, id string) (*UserReport, error)
	ListReports(ctx context.Context, ownerID uint, limit, offset int) ([]*UserReport, int64, error)
	UpdateReport(ctx context.Context, ownerID uint, id string, patch ReportPatch) (*UserReport, error)
	DeleteReport(ctx context.Context, ownerID uint, id string) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ClampPage applies the listing defaults: limit in [1, 500], offset >= 0
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
