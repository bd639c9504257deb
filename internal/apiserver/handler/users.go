package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/amoylab/agridash/internal/apiserver/database"
	"github.com/amoylab/agridash/internal/apiserver/docstore"
	"github.com/amoylab/agridash/internal/apiserver/middleware"
	"github.com/amoylab/agridash/internal/common/dto"
	"github.com/amoylab/agridash/internal/common/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	trackTimeout         = 3 * time.Second
	defaultAnalyticsDays = 30
)

// UserHandler serves /api/users: profile, saved reports, analytics and user administration
type UserHandler struct {
	db     database.Database
	store  docstore.Store
	logger *zap.Logger
}

func NewUserHandler(db database.Database, store docstore.Store, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		db:     db,
		store:  store,
		logger: logger.Named("users"),
	}
}

func (h *UserHandler) HandleGetProfile(c *gin.Context) {
	user, found := loadActiveUser(c, h.db)
	if !found {
		return
	}
	ok(c, toUserInfo(user))
}

func (h *UserHandler) HandleUpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, found := loadActiveUser(c, h.db)
	if !found {
		return
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Organization != nil {
		user.Organization = strings.TrimSpace(*req.Organization)
	}
	if err := h.db.UpdateUser(c.Request.Context(), user); err != nil {
		fail(c, err)
		return
	}
	ok(c, toUserInfo(user))
}

func (h *UserHandler) HandleListReports(c *gin.Context) {
	var q dto.Page
	if !bindQuery(c, &q) {
		return
	}
	userID, found := currentUser(c)
	if !found {
		return
	}
	limit, offset := docstore.ClampPage(q.Limit, q.Start())
	reports, total, err := h.store.ListReports(c.Request.Context(), userID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	page(c, reports, total, limit, offset)
}

func (h *UserHandler) HandleCreateReport(c *gin.Context) {
	var req dto.CreateReportRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, found := currentUser(c)
	if !found {
		return
	}
	report := &docstore.UserReport{
		UserID:         userID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Filters:        req.Filters,
		AIInsights:     req.AIInsights,
		Visualizations: req.Visualizations,
		Tags:           req.Tags,
	}
	if err := h.store.CreateReport(c.Request.Context(), report); err != nil {
		fail(c, err)
		return
	}
	created(c, report)
}

func (h *UserHandler) HandleGetReport(c *gin.Context) {
	userID, found := currentUser(c)
	if !found {
		return
	}
	report, err := h.store.GetReport(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.reportError(c, err)
		return
	}
	ok(c, report)
}

func (h *UserHandler) HandleUpdateReport(c *gin.Context) {
	var req dto.UpdateReportRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, found := currentUser(c)
	if !found {
		return
	}
	patch := docstore.ReportPatch{
		Title:          req.Title,
		Description:    req.Description,
		Filters:        req.Filters,
		AIInsights:     req.AIInsights,
		Visualizations: req.Visualizations,
		Tags:           req.Tags,
	}
	report, err := h.store.UpdateReport(c.Request.Context(), userID, c.Param("id"), patch)
	if err != nil {
		h.reportError(c, err)
		return
	}
	ok(c, report)
}

func (h *UserHandler) HandleDeleteReport(c *gin.Context) {
	userID, found := currentUser(c)
	if !found {
		return
	}
	if err := h.store.DeleteReport(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.reportError(c, err)
		return
	}
	message(c, "Report deleted")
}

// reportError hides whether a report exists when it belongs to someone else
func (h *UserHandler) reportError(c *gin.Context, err error) {
	if errors.Is(err, docstore.ErrNotFound) {
		fail(c, errorx.NotFoundError("report", c.Param("id")))
		return
	}
	fail(c, err)
}

// HandleTrack records an analytics event. It always reports success.
func (h *UserHandler) HandleTrack(c *gin.Context) {
	var req dto.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("dropping malformed analytics event", zap.Error(err))
		message(c, "Event tracked")
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	event := &docstore.AnalyticsEvent{
		Type:      req.Type,
		Page:      req.Page,
		Action:    req.Action,
		Metadata:  req.Metadata,
		SessionID: req.SessionID,
		UserID:    userID,
		UserAgent: c.Request.UserAgent(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), trackTimeout)
	defer cancel()
	if err := h.store.InsertAnalytics(ctx, event); err != nil {
		h.logger.Warn("failed to record analytics event", zap.String("type", req.Type), zap.Error(err))
	}
	message(c, "Event tracked")
}

func (h *UserHandler) HandleListUsers(c *gin.Context) {
	var q dto.UserQuery
	if !bindQuery(c, &q) {
		return
	}
	filter := database.UserFilter{
		Role:   q.Role,
		Search: strings.TrimSpace(q.Search),
		Limit:  q.Limit,
		Offset: q.Start(),
	}
	users, total, err := h.db.ListUsers(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	infos := make([]dto.UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, toUserInfo(u))
	}
	limit, offset := filter.Page()
	page(c, infos, total, limit, offset)
}

// HandleUpdateRole changes another user's role; admins cannot demote themselves
func (h *UserHandler) HandleUpdateRole(c *gin.Context) {
	var req dto.UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		fail(c, errorx.Validation(errorx.FieldError{Field: "id", Message: "must be a positive integer", Value: raw}))
		return
	}
	callerID, _ := middleware.CurrentUserID(c)
	if uint(id) == callerID && req.Role != string(database.RoleAdmin) {
		fail(c, errorx.ErrForbidden.WithMessage("admins cannot change their own role"))
		return
	}

	user, err := h.db.GetUserByID(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fail(c, errorx.NotFoundError("user", raw))
			return
		}
		fail(c, err)
		return
	}
	user.Role = database.Role(req.Role)
	if err := h.db.UpdateUser(c.Request.Context(), user); err != nil {
		fail(c, err)
		return
	}
	h.logger.Info("user role changed",
		zap.Uint("user_id", user.ID),
		zap.String("role", req.Role),
		zap.Uint("changed_by", callerID))
	ok(c, toUserInfo(user))
}

// HandleAnalyticsSummary reports event counts, AI usage and users per role
func (h *UserHandler) HandleAnalyticsSummary(c *gin.Context) {
	var q dto.AnalyticsQuery
	if !bindQuery(c, &q) {
		return
	}
	days := q.Days
	if days == 0 {
		days = defaultAnalyticsDays
	}
	ctx := c.Request.Context()
	since := time.Now().AddDate(0, 0, -days)

	events, err := h.store.AnalyticsSummary(ctx, since)
	if err != nil {
		fail(c, err)
		return
	}
	aiStats, err := h.store.AILogStats(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	roles, err := h.db.CountUsersByRole(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		"since":       since,
		"days":        days,
		"events":      events,
		"ai":          aiStats,
		"usersByRole": roles,
	})
}
