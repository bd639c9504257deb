package handler

import (
	"github.com/amoylab/agridash/internal/apiserver/aiproxy"
	"github.com/amoylab/agridash/internal/apiserver/docstore"
	"github.com/amoylab/agridash/internal/apiserver/middleware"
	"github.com/amoylab/agridash/internal/common/dto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AIHandler serves /api/ai. Model failures never surface as errors; they degrade to fallbacks.
type AIHandler struct {
	svc    *aiproxy.Service
	store  docstore.Store
	logger *zap.Logger
}

func NewAIHandler(svc *aiproxy.Service, store docstore.Store, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		svc:    svc,
		store:  store,
		logger: logger.Named("ai"),
	}
}

func render(c *gin.Context, res *aiproxy.Result, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, dto.AIResponse{
		Type:      string(res.Kind),
		Result:    res.Payload,
		Source:    res.Source,
		LatencyMs: res.LatencyMs,
	})
}

func (h *AIHandler) HandleAnalyze(c *gin.Context) {
	var req dto.AnalyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, _ := middleware.CurrentUserID(c)
	res, err := h.svc.Analyze(c.Request.Context(), userID, req)
	render(c, res, err)
}

func (h *AIHandler) HandlePredict(c *gin.Context) {
	var req dto.PredictRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, _ := middleware.CurrentUserID(c)
	res, err := h.svc.Predict(c.Request.Context(), userID, req)
	render(c, res, err)
}

func (h *AIHandler) HandleChat(c *gin.Context) {
	var req dto.ChatRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, _ := middleware.CurrentUserID(c)
	res, err := h.svc.Chat(c.Request.Context(), userID, req)
	render(c, res, err)
}

func (h *AIHandler) HandleRecommend(c *gin.Context) {
	var req dto.RecommendRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, _ := middleware.CurrentUserID(c)
	res, err := h.svc.Recommend(c.Request.Context(), userID, req)
	render(c, res, err)
}

// HandleGenerateReport asks for a narrative and saves it as one of the caller's reports
func (h *AIHandler) HandleGenerateReport(c *gin.Context) {
	var req dto.GenerateReportRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, found := currentUser(c)
	if !found {
		return
	}

	res, err := h.svc.GenerateReport(c.Request.Context(), userID, req)
	if err != nil {
		fail(c, err)
		return
	}

	insights := map[string]any{
		"source": res.Source,
		"result": res.Payload,
	}
	report := &docstore.UserReport{
		UserID:         userID,
		Title:          req.Title,
		Filters:        req.Filters,
		AIInsights:     insights,
		Visualizations: req.Visualizations,
		Tags:           []string{"ai-generated"},
	}
	if summary, isString := res.Payload["summary"].(string); isString {
		report.Description = summary
	}
	if err := h.store.CreateReport(c.Request.Context(), report); err != nil {
		fail(c, err)
		return
	}
	created(c, gin.H{
		"report": report,
		"ai": dto.AIResponse{
			Type:      string(res.Kind),
			Result:    res.Payload,
			Source:    res.Source,
			LatencyMs: res.LatencyMs,
		},
	})
}

func (h *AIHandler) HandleStatus(c *gin.Context) {
	ok(c, gin.H{
		"available": h.svc.Available(),
		"model":     h.svc.ModelName(),
	})
}

func (h *AIHandler) HandleListLogs(c *gin.Context) {
	var q dto.AILogQuery
	if !bindQuery(c, &q) {
		return
	}
	filter := docstore.AILogFilter{
		Type:    q.Type,
		Success: q.Success,
		Limit:   q.Limit,
		Offset:  q.Start(),
	}
	logs, total, err := h.store.ListAILogs(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	limit, offset := docstore.ClampPage(filter.Limit, filter.Offset)
	page(c, logs, total, limit, offset)
}

func (h *AIHandler) HandleStats(c *gin.Context) {
	stats, err := h.store.AILogStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}
