package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/amoylab/agridash/internal/apiserver/database"
	"github.com/amoylab/agridash/internal/common/dto"
	"github.com/amoylab/agridash/internal/common/errorx"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTopCrops = 10

var uploadExtensions = map[string]bool{".csv": true, ".json": true, ".xlsx": true, ".xls": true}

// DataHandler serves the read-only agricultural data under /api/data
type DataHandler struct {
	db            database.Database
	uploadDir     string
	maxUploadSize int64
	logger        *zap.Logger
}

func NewDataHandler(db database.Database, uploadDir string, maxUploadSize int64, logger *zap.Logger) *DataHandler {
	return &DataHandler{
		db:            db,
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
		logger:        logger.Named("data"),
	}
}

func toMetricFilter(q dto.MetricQuery) database.MetricFilter {
	return database.MetricFilter{
		State:      strings.TrimSpace(q.State),
		District:   strings.TrimSpace(q.District),
		RegionID:   q.RegionID,
		Year:       q.Year,
		YearFrom:   q.YearFrom,
		YearTo:     q.YearTo,
		Category:   q.Category,
		SourceType: q.SourceType,
		Season:     q.Season,
		Crop:       q.Crop,
		WellType:   q.WellType,
		MinDepth:   q.MinDepth,
		MaxDepth:   q.MaxDepth,
		Limit:      q.Limit,
		Offset:     q.Start(),
	}
}

// listMetric binds the shared metric query and renders one page of rows
func listMetric[T any](c *gin.Context, list func(*gin.Context, database.MetricFilter) ([]T, int64, error)) {
	var q dto.MetricQuery
	if !bindQuery(c, &q) {
		return
	}
	filter := toMetricFilter(q)
	rows, total, err := list(c, filter)
	if err != nil {
		fail(c, err)
		return
	}
	limit, offset := filter.Page()
	page(c, rows, total, limit, offset)
}

func (h *DataHandler) HandleListLandHoldings(c *gin.Context) {
	listMetric(c, func(c *gin.Context, f database.MetricFilter) ([]*database.LandHolding, int64, error) {
		return h.db.ListLandHoldings(c.Request.Context(), f)
	})
}

func (h *DataHandler) HandleListIrrigationSources(c *gin.Context) {
	listMetric(c, func(c *gin.Context, f database.MetricFilter) ([]*database.IrrigationSource, int64, error) {
		return h.db.ListIrrigationSources(c.Request.Context(), f)
	})
}

func (h *DataHandler) HandleListCroppingPatterns(c *gin.Context) {
	listMetric(c, func(c *gin.Context, f database.MetricFilter) ([]*database.CroppingPattern, int64, error) {
		return h.db.ListCroppingPatterns(c.Request.Context(), f)
	})
}

func (h *DataHandler) HandleListWellDepths(c *gin.Context) {
	listMetric(c, func(c *gin.Context, f database.MetricFilter) ([]*database.WellDepth, int64, error) {
		return h.db.ListWellDepths(c.Request.Context(), f)
	})
}

func (h *DataHandler) HandleListRegions(c *gin.Context) {
	var q dto.RegionQuery
	if !bindQuery(c, &q) {
		return
	}
	filter := database.RegionFilter{
		State:    strings.TrimSpace(q.State),
		District: strings.TrimSpace(q.District),
		Search:   strings.TrimSpace(q.Search),
		Limit:    q.Limit,
		Offset:   q.Start(),
	}
	regions, total, err := h.db.ListRegions(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	limit, offset := filter.Page()
	page(c, regions, total, limit, offset)
}

func (h *DataHandler) HandleGetRegion(c *gin.Context) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		fail(c, errorx.Validation(errorx.FieldError{Field: "id", Message: "must be a positive integer", Value: raw}))
		return
	}
	region, err := h.db.GetRegion(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fail(c, errorx.NotFoundError("region", raw))
			return
		}
		fail(c, err)
		return
	}
	ok(c, region)
}

func (h *DataHandler) HandleListStates(c *gin.Context) {
	states, err := h.db.ListStates(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, states)
}

func (h *DataHandler) HandleListDistricts(c *gin.Context) {
	districts, err := h.db.ListDistricts(c.Request.Context(), c.Param("state"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, districts)
}

func (h *DataHandler) HandleSummary(c *gin.Context) {
	var q dto.MetricQuery
	if !bindQuery(c, &q) {
		return
	}
	summary, err := h.db.Summary(c.Request.Context(), toMetricFilter(q))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, summary)
}

func (h *DataHandler) HandleIrrigationAggregate(c *gin.Context) {
	var q dto.MetricQuery
	if !bindQuery(c, &q) {
		return
	}
	rows, err := h.db.IrrigationBySource(c.Request.Context(), toMetricFilter(q))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rows)
}

func (h *DataHandler) HandleWellDepthTrend(c *gin.Context) {
	var q dto.MetricQuery
	if !bindQuery(c, &q) {
		return
	}
	points, err := h.db.WellDepthTrend(c.Request.Context(), toMetricFilter(q))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, points)
}

func (h *DataHandler) HandleTopCrops(c *gin.Context) {
	var q dto.TopCropsQuery
	if !bindQuery(c, &q) {
		return
	}
	n := q.N
	if n == 0 {
		n = defaultTopCrops
	}
	crops, err := h.db.TopCrops(c.Request.Context(), toMetricFilter(q.MetricQuery), n)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, crops)
}

func (h *DataHandler) HandleLandHoldingDistribution(c *gin.Context) {
	var q dto.MetricQuery
	if !bindQuery(c, &q) {
		return
	}
	buckets, err := h.db.LandHoldingDistribution(c.Request.Context(), toMetricFilter(q))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, buckets)
}

// HandleUpload stores one data file for a later import; processing is not implemented
func (h *DataHandler) HandleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+(1<<20))

	file, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			fail(c, errorx.ErrPayloadTooLarge.WithDetail("limit", h.maxUploadSize))
			return
		}
		fail(c, errorx.Validation(errorx.FieldError{Field: "file", Message: "is required"}))
		return
	}
	if file.Size > h.maxUploadSize {
		fail(c, errorx.ErrPayloadTooLarge.WithDetail("limit", h.maxUploadSize))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !uploadExtensions[ext] {
		fail(c, errorx.Validation(errorx.FieldError{
			Field:   "file",
			Message: "must be a .csv, .json, .xlsx or .xls file",
			Value:   file.Filename,
		}))
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		fail(c, fmt.Errorf("failed to create upload directory: %w", err))
		return
	}
	fileID := uuid.NewString()
	dst := filepath.Join(h.uploadDir, fileID+ext)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		fail(c, fmt.Errorf("failed to save upload: %w", err))
		return
	}

	userID, _ := currentUser(c)
	h.logger.Info("data file uploaded",
		zap.String("file_id", fileID),
		zap.String("original_name", file.Filename),
		zap.Int64("size", file.Size),
		zap.Uint("user_id", userID))

	c.JSON(http.StatusAccepted, dto.Response{
		Success: true,
		Message: "File uploaded; import is queued for manual processing",
		Data: dto.UploadResponse{
			FileID:       fileID,
			OriginalName: filepath.Base(file.Filename),
			Size:         file.Size,
			Status:       "pending",
		},
	})
}
