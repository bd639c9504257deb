package database

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Database defines the methods for relational store operations.
type Database interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Transaction runs fn with a context bound to a single transaction.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// AutoMigrate creates or updates every table.
	AutoMigrate(ctx context.Context) error

	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// UpdateUser persists every column, the stored hash included, without rehashing.
	UpdateUser(ctx context.Context, user *User) error
	ListUsers(ctx context.Context, filter UserFilter) ([]*User, int64, error)
	CountUsersByRole(ctx context.Context) (map[Role]int64, error)

	CreateRegions(ctx context.Context, regions []*Region) error
	ListRegions(ctx context.Context, filter RegionFilter) ([]*Region, int64, error)
	GetRegion(ctx context.Context, id uint) (*Region, error)
	ListStates(ctx context.Context) ([]string, error)
	ListDistricts(ctx context.Context, state string) ([]string, error)

	CreateLandHoldings(ctx context.Context, rows []*LandHolding) error
	CreateIrrigationSources(ctx context.Context, rows []*IrrigationSource) error
	CreateCroppingPatterns(ctx context.Context, rows []*CroppingPattern) error
	CreateWellDepths(ctx context.Context, rows []*WellDepth) error

	ListLandHoldings(ctx context.Context, filter MetricFilter) ([]*LandHolding, int64, error)
	ListIrrigationSources(ctx context.Context, filter MetricFilter) ([]*IrrigationSource, int64, error)
	ListCroppingPatterns(ctx context.Context, filter MetricFilter) ([]*CroppingPattern, int64, error)
	ListWellDepths(ctx context.Context, filter MetricFilter) ([]*WellDepth, int64, error)

	IrrigationBySource(ctx context.Context, filter MetricFilter) ([]IrrigationAggregate, error)
	TopCrops(ctx context.Context, filter MetricFilter, n int) ([]CropAggregate, error)
	WellDepthTrend(ctx context.Context, filter MetricFilter) ([]WellDepthPoint, error)
	LandHoldingDistribution(ctx context.Context, filter MetricFilter) ([]LandHoldingBucket, error)
	Summary(ctx context.Context, filter MetricFilter) (*Summary, error)
}

// MetricFilter is shared by every metric listing and aggregation.
// Zero values mean "no predicate".
type MetricFilter struct {
	State    string
	District string
	RegionID uint
	Year     int
	YearFrom int
	YearTo   int

	Category   string // land holdings
	SourceType string // irrigation sources
	Season     string // cropping patterns, well depths
	Crop       string // cropping patterns
	WellType   string // well depths
	MinDepth   *float64
	MaxDepth   *float64

	Limit  int
	Offset int
}

// Page clamps limit into [1, MaxLimit] and offset to >= 0
func (f *MetricFilter) Page() (limit, offset int) {
	return clampPage(f.Limit, f.Offset)
}

type RegionFilter struct {
	State    string
	District string
	Search   string
	Limit    int
	Offset   int
}

func (f *RegionFilter) Page() (limit, offset int) {
	return clampPage(f.Limit, f.Offset)
}

type UserFilter struct {
	Role   string
	Search string
	Limit  int
	Offset int
}

func (f *UserFilter) Page() (limit, offset int) {
	return clampPage(f.Limit, f.Offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type IrrigationAggregate struct {
	SourceType        string  `json:"sourceType"`
	TotalAreaHectares float64 `json:"totalAreaHectares"`
	TotalSources      int64   `json:"totalSources"`
	AvgPercentage     float64 `json:"avgPercentage"`
}

type CropAggregate struct {
	CropName              string  `json:"cropName"`
	TotalAreaHectares     float64 `json:"totalAreaHectares"`
	TotalProductionTonnes float64 `json:"totalProductionTonnes"`
	AvgYieldPerHectare    float64 `json:"avgYieldPerHectare"`
}

type WellDepthPoint struct {
	Year           int     `json:"year"`
	Season         string  `json:"season"`
	AvgDepthMeters float64 `json:"avgDepthMeters"`
	MinDepthMeters float64 `json:"minDepthMeters"`
	MaxDepthMeters float64 `json:"maxDepthMeters"`
	TotalWells     int64   `json:"totalWells"`
}

type LandHoldingBucket struct {
	Category          string  `json:"category"`
	TotalHoldings     int64   `json:"totalHoldings"`
	TotalAreaHectares float64 `json:"totalAreaHectares"`
	AvgSizeHectares   float64 `json:"avgSizeHectares"`
}

// Summary is the dashboard headline block
type Summary struct {
	Regions            int64     `json:"regions"`
	States             int64     `json:"states"`
	LatestYear         int       `json:"latestYear"`
	TotalHoldings      int64     `json:"totalHoldings"`
	TotalHoldingArea   float64   `json:"totalHoldingAreaHectares"`
	TotalIrrigatedArea float64   `json:"totalIrrigatedAreaHectares"`
	TotalCroppedArea   float64   `json:"totalCroppedAreaHectares"`
	AvgWellDepthMeters float64   `json:"avgWellDepthMeters"`
	GeneratedAt        time.Time `json:"generatedAt"`
}
