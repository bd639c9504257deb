package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/amoylab/agridash/internal/apiserver/aiproxy"
	"github.com/amoylab/agridash/internal/apiserver/apidoc"
	"github.com/amoylab/agridash/internal/apiserver/database"
	"github.com/amoylab/agridash/internal/apiserver/docstore"
	"github.com/amoylab/agridash/internal/apiserver/handler"
	"github.com/amoylab/agridash/internal/apiserver/middleware"
	"github.com/amoylab/agridash/internal/apiserver/realtime"
	"github.com/amoylab/agridash/internal/auth/jwt"
	"github.com/amoylab/agridash/internal/common/config"
	"github.com/amoylab/agridash/internal/common/dto"
	"github.com/amoylab/agridash/internal/common/errorx"
	"github.com/amoylab/agridash/pkg/metrics"
	"github.com/amoylab/agridash/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Deps are the long-lived components the routes are served from
type Deps struct {
	Config  *config.APIServerConfig
	DB      database.Database
	Store   docstore.Store
	AI      *aiproxy.Service
	JWT     *jwt.Service
	Hub     *realtime.Hub
	Limiter middleware.Limiter // nil disables rate limiting
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// New builds the gin engine and wraps it with CORS
func New(d Deps) (http.Handler, error) {
	cfg := d.Config
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	handler.RegisterValidators()

	errHandler := errorx.NewErrorHandler(d.Logger.Named("error")).
		Map(database.ErrNotFound, errorx.ErrResourceNotFound).
		Map(docstore.ErrNotFound, errorx.ErrResourceNotFound).
		Map(database.ErrDuplicate, errorx.ErrResourceExists)

	r := gin.New()
	r.ContextWithFallback = true
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(middleware.TraceID(), middleware.RequestLogger(d.Logger))
	if cfg.Metrics.Enabled {
		r.Use(d.Metrics.Middleware())
	}
	// registered last so errors are rendered before the logger and metrics read the status
	r.Use(errHandler.ErrorMiddleware(), errHandler.RecoveryMiddleware())
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(d.Metrics.Handler()))
	}
	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(errorx.ErrEndpointNotFound.WithDetail("path", c.Request.URL.Path))
	})

	routes := registerRoutes(r, d)

	doc, err := apidoc.Build("AgriDash API", version.Get(), routes)
	if err != nil {
		return nil, fmt.Errorf("failed to build openapi document: %w", err)
	}
	r.GET("/api/docs/openapi.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, doc)
	})

	return corsHandler(cfg.CORS).Handler(r), nil
}

func corsHandler(cfg config.CORSConfig) *cors.Cors {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", errorx.TraceIDHeader},
		ExposedHeaders:   []string{errorx.TraceIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           600,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			opts.AllowOriginFunc = func(string) bool { return true }
			return cors.New(opts)
		}
	}
	opts.AllowedOrigins = cfg.AllowOrigins
	return cors.New(opts)
}

// OriginChecker applies the CORS origin list to websocket upgrades
func OriginChecker(cfg config.CORSConfig) func(string) bool {
	return func(origin string) bool {
		for _, o := range cfg.AllowOrigins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// table registers routes on gin and records them for the OpenAPI document
type table struct {
	routes []apidoc.Route
}

func (t *table) add(g *gin.RouterGroup, doc apidoc.Route, handlers ...gin.HandlerFunc) {
	g.Handle(doc.Method, doc.Path, handlers...)
	doc.Path = strings.TrimSuffix(g.BasePath(), "/") + doc.Path
	t.routes = append(t.routes, doc)
}

func registerRoutes(r *gin.Engine, d Deps) []apidoc.Route {
	cfg := d.Config
	t := &table{}

	auth := middleware.JWTAuth(d.JWT)
	optional := middleware.OptionalAuth(d.JWT)
	admin := middleware.RequireRoles(string(database.RoleAdmin))
	uploader := middleware.RequireRoles(string(database.RoleAdmin), string(database.RoleResearcher))

	limit := func(scope string, max int) []gin.HandlerFunc {
		if d.Limiter == nil || !cfg.RateLimit.Enabled {
			return nil
		}
		return []gin.HandlerFunc{middleware.RateLimit(d.Limiter, middleware.ByClientIP(scope), max, d.Metrics, d.Logger)}
	}
	with := func(pre []gin.HandlerFunc, h ...gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, pre...), h...)
	}

	healthH := handler.NewHealthHandler(d.DB, d.Store)
	root := r.Group("/")
	t.add(root, apidoc.Route{Method: http.MethodGet, Path: "/health", Tag: "health", Summary: "Liveness with process uptime"}, healthH.HandleHealth)
	t.add(root, apidoc.Route{Method: http.MethodGet, Path: "/health/ready", Tag: "health", Summary: "Readiness of both stores"}, healthH.HandleReady)
	t.add(root, apidoc.Route{Method: http.MethodGet, Path: "/ws", Tag: "realtime", Summary: "Real-time assessment rooms (websocket)"}, d.Hub.HandleWebSocket)

	api := r.Group("/api", limit("api", cfg.RateLimit.MaxRequests)...)
	authLimit := limit("auth", cfg.RateLimit.AuthMaxRequests)

	authH := handler.NewAuthHandler(d.DB, d.JWT, d.Logger, cfg.Server.Mode != gin.ReleaseMode)
	ag := api.Group("/auth")
	t.add(ag, apidoc.Route{Method: http.MethodPost, Path: "/register", Tag: "auth", Summary: "Create an account", Body: dto.RegisterRequest{}, Status: http.StatusCreated}, with(authLimit, authH.HandleRegister)...)
	t.add(ag, apidoc.Route{Method: http.MethodPost, Path: "/login", Tag: "auth", Summary: "Exchange credentials for a token", Body: dto.LoginRequest{}}, with(authLimit, authH.HandleLogin)...)
	t.add(ag, apidoc.Route{Method: http.MethodGet, Path: "/me", Tag: "auth", Summary: "Current account", Access: apidoc.Authenticated}, auth, authH.HandleMe)
	t.add(ag, apidoc.Route{Method: http.MethodPost, Path: "/refresh", Tag: "auth", Summary: "Issue a fresh token", Access: apidoc.Authenticated}, auth, authH.HandleRefresh)
	t.add(ag, apidoc.Route{Method: http.MethodPut, Path: "/change-password", Tag: "auth", Summary: "Change password", Access: apidoc.Authenticated, Body: dto.ChangePasswordRequest{}}, auth, authH.HandleChangePassword)
	t.add(ag, apidoc.Route{Method: http.MethodPost, Path: "/forgot-password", Tag: "auth", Summary: "Request a password reset token", Body: dto.ForgotPasswordRequest{}}, with(authLimit, authH.HandleForgotPassword)...)
	t.add(ag, apidoc.Route{Method: http.MethodPost, Path: "/reset-password", Tag: "auth", Summary: "Reset password with a reset token", Body: dto.ResetPasswordRequest{}}, with(authLimit, authH.HandleResetPassword)...)

	dataH := handler.NewDataHandler(d.DB, cfg.Server.UploadDir, cfg.Server.MaxUploadSize, d.Logger)
	dg := api.Group("/data")
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/regions", Tag: "data", Summary: "List regions", Access: apidoc.OptionalAuth, Query: dto.RegionQuery{}}, optional, dataH.HandleListRegions)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/regions/:id", Tag: "data", Summary: "Get a region", Access: apidoc.OptionalAuth}, optional, dataH.HandleGetRegion)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/states", Tag: "data", Summary: "List states", Access: apidoc.OptionalAuth}, optional, dataH.HandleListStates)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/states/:state/districts", Tag: "data", Summary: "List districts of a state", Access: apidoc.OptionalAuth}, optional, dataH.HandleListDistricts)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/summary", Tag: "data", Summary: "Dashboard headline figures", Access: apidoc.OptionalAuth, Query: dto.MetricQuery{}}, optional, dataH.HandleSummary)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/land-holdings", Tag: "data", Summary: "List land holdings", Access: apidoc.OptionalAuth, Query: dto.MetricQuery{}}, optional, dataH.HandleListLandHoldings)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/land-holdings/distribution", Tag: "data", Summary: "Land holdings by size category", Access: apidoc.OptionalAuth, Query: dto.MetricQuery{}}, optional, dataH.HandleLandHoldingDistribution)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/irrigation-sources", Tag: "data", Summary: "List irrigation sources", Access: apidoc.OptionalAuth, Query: dto.MetricQuery{}}, optional, dataH.HandleListIrrigationSources)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/irrigation-sources/aggregate", Tag: "data", Summary: "Irrigated area by source", Access: apidoc.OptionalAuth, Query: dto.MetricQuery{}}, optional, dataH.HandleIrrigationAggregate)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/cropping-patterns", Tag: "data", Summary: "List cropping patterns", Access: apidoc.OptionalAuth, Query: dto.MetricQuery{}}, optional, dataH.HandleListCroppingPatterns)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/cropping-patterns/top", Tag: "data", Summary: "Top crops by area", Access: apidoc.OptionalAuth, Query: dto.TopCropsQuery{}}, optional, dataH.HandleTopCrops)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/well-depths", Tag: "data", Summary: "List well depth readings", Access: apidoc.OptionalAuth, Query: dto.MetricQuery{}}, optional, dataH.HandleListWellDepths)
	t.add(dg, apidoc.Route{Method: http.MethodGet, Path: "/well-depths/trend", Tag: "data", Summary: "Well depth by year and season", Access: apidoc.OptionalAuth, Query: dto.MetricQuery{}}, optional, dataH.HandleWellDepthTrend)
	t.add(dg, apidoc.Route{Method: http.MethodPost, Path: "/upload", Tag: "data", Summary: "Upload a data file for import", Access: apidoc.Authenticated, Roles: []string{"admin", "researcher"}, Status: http.StatusAccepted}, auth, uploader, dataH.HandleUpload)

	aiH := handler.NewAIHandler(d.AI, d.Store, d.Logger)
	aig := api.Group("/ai")
	t.add(aig, apidoc.Route{Method: http.MethodGet, Path: "/status", Tag: "ai", Summary: "Model availability"}, aiH.HandleStatus)
	t.add(aig, apidoc.Route{Method: http.MethodPost, Path: "/analyze", Tag: "ai", Summary: "Analyze a data context", Access: apidoc.OptionalAuth, Body: dto.AnalyzeRequest{}}, optional, aiH.HandleAnalyze)
	t.add(aig, apidoc.Route{Method: http.MethodPost, Path: "/predict", Tag: "ai", Summary: "Forecast a historical series", Access: apidoc.OptionalAuth, Body: dto.PredictRequest{}}, optional, aiH.HandlePredict)
	t.add(aig, apidoc.Route{Method: http.MethodPost, Path: "/chat", Tag: "ai", Summary: "Chat with the assistant", Access: apidoc.OptionalAuth, Body: dto.ChatRequest{}}, optional, aiH.HandleChat)
	t.add(aig, apidoc.Route{Method: http.MethodPost, Path: "/recommendations", Tag: "ai", Summary: "Farming recommendations", Access: apidoc.OptionalAuth, Body: dto.RecommendRequest{}}, optional, aiH.HandleRecommend)
	t.add(aig, apidoc.Route{Method: http.MethodPost, Path: "/report", Tag: "ai", Summary: "Generate and save an AI report", Access: apidoc.Authenticated, Body: dto.GenerateReportRequest{}, Status: http.StatusCreated}, auth, aiH.HandleGenerateReport)
	t.add(aig, apidoc.Route{Method: http.MethodGet, Path: "/logs", Tag: "ai", Summary: "AI audit log", Access: apidoc.Authenticated, Roles: []string{"admin"}, Query: dto.AILogQuery{}}, auth, admin, aiH.HandleListLogs)
	t.add(aig, apidoc.Route{Method: http.MethodGet, Path: "/stats", Tag: "ai", Summary: "AI usage per call type", Access: apidoc.Authenticated, Roles: []string{"admin"}}, auth, admin, aiH.HandleStats)

	userH := handler.NewUserHandler(d.DB, d.Store, d.Logger)
	ug := api.Group("/users")
	t.add(ug, apidoc.Route{Method: http.MethodPost, Path: "/track", Tag: "users", Summary: "Record an analytics event", Access: apidoc.OptionalAuth, Body: dto.TrackRequest{}}, optional, userH.HandleTrack)
	t.add(ug, apidoc.Route{Method: http.MethodGet, Path: "/profile", Tag: "users", Summary: "Get own profile", Access: apidoc.Authenticated}, auth, userH.HandleGetProfile)
	t.add(ug, apidoc.Route{Method: http.MethodPut, Path: "/profile", Tag: "users", Summary: "Update own profile", Access: apidoc.Authenticated, Body: dto.UpdateProfileRequest{}}, auth, userH.HandleUpdateProfile)
	t.add(ug, apidoc.Route{Method: http.MethodGet, Path: "/reports", Tag: "users", Summary: "List own reports", Access: apidoc.Authenticated, Query: dto.Page{}}, auth, userH.HandleListReports)
	t.add(ug, apidoc.Route{Method: http.MethodPost, Path: "/reports", Tag: "users", Summary: "Save a report", Access: apidoc.Authenticated, Body: dto.CreateReportRequest{}, Status: http.StatusCreated}, auth, userH.HandleCreateReport)
	t.add(ug, apidoc.Route{Method: http.MethodGet, Path: "/reports/:id", Tag: "users", Summary: "Get an own report", Access: apidoc.Authenticated}, auth, userH.HandleGetReport)
	t.add(ug, apidoc.Route{Method: http.MethodPut, Path: "/reports/:id", Tag: "users", Summary: "Update an own report", Access: apidoc.Authenticated, Body: dto.UpdateReportRequest{}}, auth, userH.HandleUpdateReport)
	t.add(ug, apidoc.Route{Method: http.MethodDelete, Path: "/reports/:id", Tag: "users", Summary: "Delete an own report", Access: apidoc.Authenticated}, auth, userH.HandleDeleteReport)
	t.add(ug, apidoc.Route{Method: http.MethodGet, Path: "/", Tag: "users", Summary: "List users", Access: apidoc.Authenticated, Roles: []string{"admin"}, Query: dto.UserQuery{}}, auth, admin, userH.HandleListUsers)
	t.add(ug, apidoc.Route{Method: http.MethodPut, Path: "/:id/role", Tag: "users", Summary: "Change a user's role", Access: apidoc.Authenticated, Roles: []string{"admin"}, Body: dto.UpdateRoleRequest{}}, auth, admin, userH.HandleUpdateRole)
	t.add(ug, apidoc.Route{Method: http.MethodGet, Path: "/analytics/summary", Tag: "users", Summary: "Usage analytics", Access: apidoc.Authenticated, Roles: []string{"admin"}, Query: dto.AnalyticsQuery{}}, auth, admin, userH.HandleAnalyticsSummary)

	return t.routes
}
