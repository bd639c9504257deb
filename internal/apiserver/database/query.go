package database

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const batchSize = 200

// locationScope matches state/district through a region semi-join so the
// outer query never has to disambiguate columns
func locationScope(f MetricFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.RegionID != 0 {
			db = db.Where("region_id = ?", f.RegionID)
		}
		state, district := strings.TrimSpace(f.State), strings.TrimSpace(f.District)
		if state == "" && district == "" {
			return db
		}
		sub := db.Session(&gorm.Session{NewDB: true}).Model(&Region{}).Select("id")
		if state != "" {
			sub = sub.Where("LOWER(state) = LOWER(?)", state)
		}
		if district != "" {
			sub = sub.Where("LOWER(district) = LOWER(?)", district)
		}
		return db.Where("region_id IN (?)", sub)
	}
}

func yearScope(f MetricFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Year != 0 {
			db = db.Where("year = ?", f.Year)
		}
		if f.YearFrom != 0 {
			db = db.Where("year >= ?", f.YearFrom)
		}
		if f.YearTo != 0 {
			db = db.Where("year <= ?", f.YearTo)
		}
		return db
	}
}

func equalFold(column, value string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if v := strings.TrimSpace(value); v != "" {
			db = db.Where(fmt.Sprintf("LOWER(%s) = LOWER(?)", column), v)
		}
		return db
	}
}

func depthScope(f MetricFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.MinDepth != nil {
			db = db.Where("average_depth_meters >= ?", *f.MinDepth)
		}
		if f.MaxDepth != nil {
			db = db.Where("average_depth_meters <= ?", *f.MaxDepth)
		}
		return db
	}
}

func chain(scopes ...func(*gorm.DB) *gorm.DB) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, scope := range scopes {
			db = scope(db)
		}
		return db
	}
}

func commonScope(f MetricFilter) func(*gorm.DB) *gorm.DB {
	return chain(locationScope(f), yearScope(f))
}

func landHoldingScope(f MetricFilter) func(*gorm.DB) *gorm.DB {
	return chain(commonScope(f), equalFold("category", f.Category))
}

func irrigationScope(f MetricFilter) func(*gorm.DB) *gorm.DB {
	return chain(commonScope(f), equalFold("source_type", f.SourceType))
}

func croppingScope(f MetricFilter) func(*gorm.DB) *gorm.DB {
	return chain(commonScope(f), equalFold("season", f.Season), equalFold("crop_name", f.Crop))
}

func wellDepthScope(f MetricFilter) func(*gorm.DB) *gorm.DB {
	return chain(commonScope(f), equalFold("well_type", f.WellType), equalFold("season", f.Season), depthScope(f))
}

// metricOrder is newest year first, then insertion order
func metricOrder(db *gorm.DB) *gorm.DB {
	return db.Preload("Region").Order("year DESC").Order("id ASC")
}

func (g *GormDB) ListLandHoldings(ctx context.Context, f MetricFilter) ([]*LandHolding, int64, error) {
	limit, offset := f.Page()
	return paginate[LandHolding](ctx, g.db, limit, offset, landHoldingScope(f), metricOrder)
}

func (g *GormDB) ListIrrigationSources(ctx context.Context, f MetricFilter) ([]*IrrigationSource, int64, error) {
	limit, offset := f.Page()
	return paginate[IrrigationSource](ctx, g.db, limit, offset, irrigationScope(f), metricOrder)
}

func (g *GormDB) ListCroppingPatterns(ctx context.Context, f MetricFilter) ([]*CroppingPattern, int64, error) {
	limit, offset := f.Page()
	return paginate[CroppingPattern](ctx, g.db, limit, offset, croppingScope(f), metricOrder)
}

func (g *GormDB) ListWellDepths(ctx context.Context, f MetricFilter) ([]*WellDepth, int64, error) {
	limit, offset := f.Page()
	return paginate[WellDepth](ctx, g.db, limit, offset, wellDepthScope(f), metricOrder)
}

type validatable interface {
	Validate() error
}

// createValidated rejects the whole batch if any row is out of range
func createValidated[T validatable](ctx context.Context, db *gorm.DB, kind string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return fmt.Errorf("%s row %d: %w", kind, i, err)
		}
	}
	return mapErr(getDBFromContext(ctx, db).CreateInBatches(rows, batchSize).Error)
}

func (g *GormDB) CreateLandHoldings(ctx context.Context, rows []*LandHolding) error {
	return createValidated(ctx, g.db, "land holding", rows)
}

func (g *GormDB) CreateIrrigationSources(ctx context.Context, rows []*IrrigationSource) error {
	return createValidated(ctx, g.db, "irrigation source", rows)
}

func (g *GormDB) CreateCroppingPatterns(ctx context.Context, rows []*CroppingPattern) error {
	return createValidated(ctx, g.db, "cropping pattern", rows)
}

func (g *GormDB) CreateWellDepths(ctx context.Context, rows []*WellDepth) error {
	return createValidated(ctx, g.db, "well depth", rows)
}
