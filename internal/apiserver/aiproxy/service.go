package aiproxy

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/amoylab/agridash/internal/apiserver/docstore"
	"github.com/amoylab/agridash/internal/common/dto"
	"github.com/amoylab/agridash/pkg/metrics"
	"github.com/amoylab/agridash/pkg/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Kind names an AI proxy operation; it is also the audit log type
type Kind string

const (
	KindAnalyze   Kind = "analyze"
	KindPredict   Kind = "predict"
	KindChat      Kind = "chat"
	KindRecommend Kind = "recommend"
	KindReport    Kind = "report"
)

const (
	SourceAI       = "ai"
	SourceFallback = "fallback"

	defaultHorizon = 3
	auditTimeout   = 5 * time.Second
)

func primaryKey(kind Kind) string {
	switch kind {
	case KindPredict:
		return "predictions"
	case KindChat:
		return "reply"
	default:
		return "summary"
	}
}

// Result is the normalized outcome of one proxied call
type Result struct {
	Kind      Kind           `json:"type"`
	Payload   map[string]any `json:"result"`
	Source    string         `json:"source"`
	LatencyMs int64          `json:"latencyMs"`
}

// Service builds prompts, calls the model when present and audits every call
type Service struct {
	model   Model
	store   docstore.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	prompts *prompts
	now     func() time.Time
}

// NewService creates a proxy; model may be nil, in which case every call falls back
func NewService(model Model, store docstore.Store, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		model:   model,
		store:   store,
		metrics: m,
		logger:  logger.Named("aiproxy"),
		prompts: newPrompts(),
		now:     time.Now,
	}
}

// Available reports whether a model client is configured
func (s *Service) Available() bool {
	return s.model != nil
}

// ModelName returns the configured model or an empty string
func (s *Service) ModelName() string {
	if s.model == nil {
		return ""
	}
	return s.model.Name()
}

func (s *Service) Analyze(ctx context.Context, userID uint, req dto.AnalyzeRequest) (*Result, error) {
	return s.call(ctx, call{
		kind:     KindAnalyze,
		userID:   userID,
		input:    toMap(req),
		keywords: req.Query + " " + compactJSON(req.Data),
		data:     req,
	})
}

func (s *Service) Predict(ctx context.Context, userID uint, req dto.PredictRequest) (*Result, error) {
	if req.Horizon == 0 {
		req.Horizon = defaultHorizon
	}
	return s.call(ctx, call{
		kind:   KindPredict,
		userID: userID,
		input:  toMap(req),
		data:   req,
		fallback: func() map[string]any {
			return FallbackPrediction(req.HistoricalData, req.Metric, req.Horizon)
		},
	})
}

func (s *Service) Chat(ctx context.Context, userID uint, req dto.ChatRequest) (*Result, error) {
	return s.call(ctx, call{
		kind:     KindChat,
		userID:   userID,
		input:    toMap(req),
		keywords: req.Message,
		data:     req,
	})
}

func (s *Service) Recommend(ctx context.Context, userID uint, req dto.RecommendRequest) (*Result, error) {
	return s.call(ctx, call{
		kind:     KindRecommend,
		userID:   userID,
		input:    toMap(req),
		keywords: strings.Join(req.Goals, " ") + " " + compactJSON(req.Data),
		data:     req,
	})
}

func (s *Service) GenerateReport(ctx context.Context, userID uint, req dto.GenerateReportRequest) (*Result, error) {
	return s.call(ctx, call{
		kind:     KindReport,
		userID:   userID,
		input:    toMap(req),
		keywords: req.Title + " " + compactJSON(req.Data),
		data:     req,
	})
}

type call struct {
	kind     Kind
	userID   uint
	input    map[string]any
	keywords string
	data     any
	fallback func() map[string]any
}

func (s *Service) call(ctx context.Context, c call) (*Result, error) {
	scope := trace.Tracer("agridash/aiproxy").Start(ctx, "aiproxy."+string(c.kind))
	defer scope.End()
	ctx = scope.Ctx

	start := s.now()
	entry := &docstore.AILog{
		Type:   string(c.kind),
		UserID: c.userID,
		Input:  c.input,
		Model:  s.ModelName(),
	}
	fallback := c.fallback
	if fallback == nil {
		fallback = func() map[string]any { return Fallback(c.kind, c.keywords) }
	}

	source := SourceFallback
	var payload map[string]any
	prompt, err := s.prompts.render(c.kind, c.data)
	switch {
	case err != nil:
		entry.Error = err.Error()
		s.logger.Error("failed to render prompt", zap.String("type", string(c.kind)), zap.Error(err))
	case s.model == nil:
		entry.Error = "model not configured"
	default:
		text, genErr := s.model.Generate(ctx, prompt)
		if genErr != nil {
			entry.Error = genErr.Error()
			scope.Fail(genErr)
			s.logger.Warn("model call failed, serving fallback",
				zap.String("type", string(c.kind)),
				zap.String("model", s.model.Name()),
				zap.Error(genErr))
			break
		}
		payload = ParseOrDefault(text, primaryKey(c.kind))
		source = SourceAI
	}
	if payload == nil {
		payload = fallback()
	}

	latency := s.now().Sub(start)
	entry.Prompt = prompt
	entry.Response = payload
	entry.Success = source == SourceAI
	entry.Fallback = source == SourceFallback
	entry.LatencyMs = latency.Milliseconds()
	s.audit(ctx, entry)

	s.metrics.AICall(string(c.kind), source, latency)
	scope.WithAttrs(
		attribute.String("ai.kind", string(c.kind)),
		attribute.String("ai.source", source),
		attribute.Int64("ai.latency_ms", entry.LatencyMs),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Result{
		Kind:      c.kind,
		Payload:   payload,
		Source:    source,
		LatencyMs: entry.LatencyMs,
	}, nil
}

// audit writes the log entry; failures are logged and counted, never returned
func (s *Service) audit(ctx context.Context, entry *docstore.AILog) {
	if s.store == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.store.InsertAILog(actx, entry); err != nil {
		s.metrics.AuditWriteFailed()
		s.logger.Warn("failed to write ai audit log", zap.String("type", entry.Type), zap.Error(err))
	}
}

// toMap turns a request DTO into a plain document for the audit log
func toMap(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func compactJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
