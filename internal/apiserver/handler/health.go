package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/amoylab/agridash/internal/apiserver/database"
	"github.com/amoylab/agridash/internal/apiserver/docstore"
	"github.com/amoylab/agridash/internal/common/dto"
	"github.com/amoylab/agridash/pkg/version"

	"github.com/gin-gonic/gin"
)

const readyTimeout = 2 * time.Second

type HealthHandler struct {
	db      database.Database
	store   docstore.Store
	started time.Time
}

func NewHealthHandler(db database.Database, store docstore.Store) *HealthHandler {
	return &HealthHandler{
		db:      db,
		store:   store,
		started: time.Now(),
	}
}

// HandleHealth reports liveness with process uptime
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	ok(c, gin.H{
		"status":    "ok",
		"uptime":    time.Since(h.started).Seconds(),
		"timestamp": time.Now().UTC(),
		"version":   version.GetInfo(),
	})
}

// HandleReady pings both stores; any failure yields 503
func (h *HealthHandler) HandleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	checks := gin.H{"database": "ok", "docstore": "ok"}
	ready := true
	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		ready = false
	}
	if err := h.store.Ping(ctx); err != nil {
		checks["docstore"] = err.Error()
		ready = false
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{Success: ready, Data: checks})
}
