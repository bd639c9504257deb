package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

func (g *GormDB) IrrigationBySource(ctx context.Context, f MetricFilter) ([]IrrigationAggregate, error) {
	out := []IrrigationAggregate{}
	err := getDBFromContext(ctx, g.db).
		Model(&IrrigationSource{}).
		Scopes(irrigationScope(f)).
		Select("source_type, " +
			"COALESCE(SUM(area_irrigated_hectares), 0) AS total_area_hectares, " +
			"COALESCE(SUM(number_of_sources), 0) AS total_sources, " +
			"COALESCE(AVG(percentage_of_total), 0) AS avg_percentage").
		Group("source_type").
		Order("total_area_hectares DESC").
		Scan(&out).Error
	return out, err
}

func (g *GormDB) TopCrops(ctx context.Context, f MetricFilter, n int) ([]CropAggregate, error) {
	if n <= 0 {
		n = 10
	}
	out := []CropAggregate{}
	err := getDBFromContext(ctx, g.db).
		Model(&CroppingPattern{}).
		Scopes(croppingScope(f)).
		Select("crop_name, " +
			"COALESCE(SUM(area_hectares), 0) AS total_area_hectares, " +
			"COALESCE(SUM(production_tonnes), 0) AS total_production_tonnes, " +
			"COALESCE(AVG(yield_per_hectare), 0) AS avg_yield_per_hectare").
		Group("crop_name").
		Order("total_area_hectares DESC").
		Limit(n).
		Scan(&out).Error
	return out, err
}

func (g *GormDB) WellDepthTrend(ctx context.Context, f MetricFilter) ([]WellDepthPoint, error) {
	out := []WellDepthPoint{}
	err := getDBFromContext(ctx, g.db).
		Model(&WellDepth{}).
		Scopes(wellDepthScope(f)).
		Select("year, season, " +
			"COALESCE(AVG(average_depth_meters), 0) AS avg_depth_meters, " +
			"COALESCE(MIN(min_depth_meters), 0) AS min_depth_meters, " +
			"COALESCE(MAX(max_depth_meters), 0) AS max_depth_meters, " +
			"COALESCE(SUM(number_of_wells), 0) AS total_wells").
		Group("year, season").
		Order("year ASC").
		Order("season ASC").
		Scan(&out).Error
	return out, err
}

func (g *GormDB) LandHoldingDistribution(ctx context.Context, f MetricFilter) ([]LandHoldingBucket, error) {
	out := []LandHoldingBucket{}
	err := getDBFromContext(ctx, g.db).
		Model(&LandHolding{}).
		Scopes(landHoldingScope(f)).
		Select("category, " +
			"COALESCE(SUM(number_of_holdings), 0) AS total_holdings, " +
			"COALESCE(SUM(area_hectares), 0) AS total_area_hectares, " +
			"COALESCE(AVG(average_size_hectares), 0) AS avg_size_hectares").
		Group("category").
		Order("total_holdings DESC").
		Scan(&out).Error
	return out, err
}

// Summary applies only the location and year predicates
func (g *GormDB) Summary(ctx context.Context, f MetricFilter) (*Summary, error) {
	s := &Summary{GeneratedAt: time.Now().UTC()}
	common := commonScope(f)
	regionQuery := func() *gorm.DB {
		q := getDBFromContext(ctx, g.db).Model(&Region{})
		if f.RegionID != 0 {
			q = q.Where("id = ?", f.RegionID)
		}
		return q.Scopes(equalFold("state", f.State), equalFold("district", f.District))
	}

	if err := regionQuery().Count(&s.Regions).Error; err != nil {
		return nil, err
	}
	if err := regionQuery().Distinct("state").Count(&s.States).Error; err != nil {
		return nil, err
	}

	var holdings struct {
		LatestYear int
		Holdings   int64
		Area       float64
	}
	err := getDBFromContext(ctx, g.db).
		Model(&LandHolding{}).
		Scopes(common).
		Select("COALESCE(MAX(year), 0) AS latest_year, " +
			"COALESCE(SUM(number_of_holdings), 0) AS holdings, " +
			"COALESCE(SUM(area_hectares), 0) AS area").
		Scan(&holdings).Error
	if err != nil {
		return nil, err
	}
	s.LatestYear = holdings.LatestYear
	s.TotalHoldings = holdings.Holdings
	s.TotalHoldingArea = holdings.Area

	if s.TotalIrrigatedArea, err = g.sum(ctx, &IrrigationSource{}, common, "COALESCE(SUM(area_irrigated_hectares), 0)"); err != nil {
		return nil, err
	}
	if s.TotalCroppedArea, err = g.sum(ctx, &CroppingPattern{}, common, "COALESCE(SUM(area_hectares), 0)"); err != nil {
		return nil, err
	}
	if s.AvgWellDepthMeters, err = g.sum(ctx, &WellDepth{}, common, "COALESCE(AVG(average_depth_meters), 0)"); err != nil {
		return nil, err
	}
	return s, nil
}

func (g *GormDB) sum(ctx context.Context, model any, scope func(*gorm.DB) *gorm.DB, expr string) (float64, error) {
	var row struct{ Value float64 }
	err := getDBFromContext(ctx, g.db).
		Model(model).
		Scopes(scope).
		Select(expr + " AS value").
		Scan(&row).Error
	return row.Value, err
}
