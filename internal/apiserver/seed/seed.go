// Package seed loads a deterministic demonstration dataset.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/amoylab/agridash/internal/apiserver/database"
	"github.com/amoylab/agridash/internal/common/config"

	"go.uber.org/zap"
)

const (
	FirstYear = 2016
	LastYear  = 2022
)

type location struct {
	state, district string
	lat, lng        float64
	areaSqKm        float64
	population      int64
}

var locations = []location{
	{"Punjab", "Ludhiana", 30.90, 75.85, 3767, 3498739},
	{"Punjab", "Amritsar", 31.63, 74.87, 2683, 2490656},
	{"Haryana", "Karnal", 29.69, 76.99, 2520, 1505324},
	{"Haryana", "Hisar", 29.15, 75.72, 3983, 1743931},
	{"Uttar Pradesh", "Meerut", 28.98, 77.71, 2559, 3443689},
	{"Uttar Pradesh", "Varanasi", 25.32, 82.97, 1535, 3676841},
	{"Maharashtra", "Pune", 18.52, 73.86, 15643, 9429408},
	{"Maharashtra", "Nashik", 20.00, 73.79, 15530, 6107187},
	{"Karnataka", "Belagavi", 15.85, 74.50, 13415, 4779661},
	{"Karnataka", "Mandya", 12.52, 76.90, 4961, 1805769},
	{"Tamil Nadu", "Thanjavur", 10.79, 79.14, 3397, 2405890},
	{"Tamil Nadu", "Coimbatore", 11.02, 76.96, 4723, 3458045},
	{"Rajasthan", "Jaipur", 26.91, 75.79, 11143, 6626178},
	{"Rajasthan", "Sri Ganganagar", 29.90, 73.88, 10978, 1969168},
	{"Gujarat", "Anand", 22.56, 72.95, 2951, 2092745},
	{"Gujarat", "Rajkot", 22.30, 70.80, 11203, 3804558},
	{"West Bengal", "Bardhaman", 23.23, 87.86, 7024, 7717563},
	{"Madhya Pradesh", "Indore", 22.72, 75.86, 3898, 3276697},
	{"Bihar", "Patna", 25.59, 85.14, 3202, 5838465},
	{"Andhra Pradesh", "Guntur", 16.31, 80.44, 11391, 4887813},
}

var (
	holdingClasses = []struct {
		category string
		share    float64 // of holdings
		avgSize  float64 // hectares
	}{
		{"marginal", 0.68, 0.38},
		{"small", 0.18, 1.42},
		{"semi-medium", 0.09, 2.71},
		{"medium", 0.04, 5.72},
		{"large", 0.01, 17.1},
	}
	irrigationShares = []struct {
		source string
		share  float64
	}{
		{"tubewell", 0.46},
		{"canal", 0.24},
		{"other-well", 0.17},
		{"tank", 0.07},
		{"other", 0.06},
	}
	crops = []struct {
		season, crop string
		yield        float64 // tonnes per hectare
	}{
		{"kharif", "Rice", 2.7},
		{"kharif", "Cotton", 0.5},
		{"kharif", "Soybean", 1.1},
		{"rabi", "Wheat", 3.4},
		{"rabi", "Mustard", 1.4},
		{"rabi", "Gram", 1.0},
		{"zaid", "Moong", 0.6},
		{"annual", "Sugarcane", 78},
	}
	wellTypes = []string{"dug", "bore", "tube"}
	seasons   = []string{"pre-monsoon", "post-monsoon"}
)

// Result counts what a run inserted
type Result struct {
	Regions           int
	LandHoldings      int
	IrrigationSources int
	CroppingPatterns  int
	WellDepths        int
	AdminCreated      bool
	Skipped           bool
}

// Run creates the schema, inserts the dataset unless regions already exist and
// ensures the super admin account. It is safe to run repeatedly.
func Run(ctx context.Context, db database.Database, admin config.SuperAdminConfig, logger *zap.Logger) (*Result, error) {
	logger = logger.Named("seed")
	if err := db.AutoMigrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	res := &Result{}
	_, total, err := db.ListRegions(ctx, database.RegionFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	if total > 0 {
		res.Skipped = true
		logger.Info("regions already present, skipping dataset", zap.Int64("regions", total))
	} else if err := db.Transaction(ctx, func(ctx context.Context) error {
		return insertDataset(ctx, db, res)
	}); err != nil {
		return nil, fmt.Errorf("failed to insert dataset: %w", err)
	}

	created, err := ensureAdmin(ctx, db, admin)
	if err != nil {
		return nil, err
	}
	res.AdminCreated = created

	logger.Info("seed finished",
		zap.Int("regions", res.Regions),
		zap.Int("land_holdings", res.LandHoldings),
		zap.Int("irrigation_sources", res.IrrigationSources),
		zap.Int("cropping_patterns", res.CroppingPatterns),
		zap.Int("well_depths", res.WellDepths),
		zap.Bool("admin_created", res.AdminCreated))
	return res, nil
}

func insertDataset(ctx context.Context, db database.Database, res *Result) error {
	regions := Regions()
	if err := db.CreateRegions(ctx, regions); err != nil {
		return err
	}
	res.Regions = len(regions)

	ds := generate(regions)
	if err := db.CreateLandHoldings(ctx, ds.holdings); err != nil {
		return err
	}
	if err := db.CreateIrrigationSources(ctx, ds.irrigation); err != nil {
		return err
	}
	if err := db.CreateCroppingPatterns(ctx, ds.patterns); err != nil {
		return err
	}
	if err := db.CreateWellDepths(ctx, ds.wells); err != nil {
		return err
	}
	res.LandHoldings = len(ds.holdings)
	res.IrrigationSources = len(ds.irrigation)
	res.CroppingPatterns = len(ds.patterns)
	res.WellDepths = len(ds.wells)
	return nil
}

type dataset struct {
	holdings   []*database.LandHolding
	irrigation []*database.IrrigationSource
	patterns   []*database.CroppingPattern
	wells      []*database.WellDepth
}

// generate builds every metric row for the given regions, which must be in
// the same order as Regions and already carry their IDs
func generate(regions []*database.Region) dataset {
	// fixed seed keeps reruns on an empty database identical
	rng := rand.New(rand.NewPCG(2016, 2022))
	var ds dataset
	for i, region := range regions {
		loc := locations[i]
		for year := FirstYear; year <= LastYear; year++ {
			elapsed := float64(year - FirstYear)
			ds.holdings = append(ds.holdings, landHoldings(rng, region.ID, year, loc, elapsed)...)
			ds.irrigation = append(ds.irrigation, irrigationSources(rng, region.ID, year, loc, elapsed)...)
			ds.patterns = append(ds.patterns, croppingPatterns(rng, region.ID, year, loc, elapsed)...)
			ds.wells = append(ds.wells, wellDepths(rng, region.ID, year, i, elapsed)...)
		}
	}
	return ds
}

// Regions returns fresh copies of the seeded (state, district) pairs
func Regions() []*database.Region {
	out := make([]*database.Region, 0, len(locations))
	for _, l := range locations {
		lat, lng := l.lat, l.lng
		out = append(out, &database.Region{
			State:      l.state,
			District:   l.district,
			Latitude:   &lat,
			Longitude:  &lng,
			AreaSqKm:   l.areaSqKm,
			Population: l.population,
		})
	}
	return out
}

func landHoldings(rng *rand.Rand, regionID uint, year int, loc location, elapsed float64) []*database.LandHolding {
	// holdings fragment slowly: count grows about 1% a year
	total := float64(loc.population) / 12 * (1 + 0.01*elapsed) * jitter(rng, 0.03)
	var area float64
	sizes := make([]float64, len(holdingClasses))
	for i, c := range holdingClasses {
		sizes[i] = c.avgSize * jitter(rng, 0.05)
		area += total * c.share * sizes[i]
	}
	rows := make([]*database.LandHolding, 0, len(holdingClasses))
	for i, c := range holdingClasses {
		count := math.Round(total * c.share)
		a := count * sizes[i]
		rows = append(rows, &database.LandHolding{
			RegionID:            regionID,
			Year:                year,
			Category:            c.category,
			NumberOfHoldings:    int64(count),
			AreaHectares:        round2(a),
			AverageSizeHectares: round2(sizes[i]),
			PercentageOfTotal:   round2(clamp(a/area*100, 0, 100)),
		})
	}
	return rows
}

func irrigationSources(rng *rand.Rand, regionID uint, year int, loc location, elapsed float64) []*database.IrrigationSource {
	irrigated := loc.areaSqKm * 100 * 0.45 * (1 + 0.015*elapsed) * jitter(rng, 0.04)
	rows := make([]*database.IrrigationSource, 0, len(irrigationShares))
	for _, s := range irrigationShares {
		share := s.share * jitter(rng, 0.05)
		a := irrigated * share
		rows = append(rows, &database.IrrigationSource{
			RegionID:              regionID,
			Year:                  year,
			SourceType:            s.source,
			AreaIrrigatedHectares: round2(a),
			NumberOfSources:       int64(a / 4),
			PercentageOfTotal:     round2(clamp(share*100, 0, 100)),
		})
	}
	return rows
}

func croppingPatterns(rng *rand.Rand, regionID uint, year int, loc location, elapsed float64) []*database.CroppingPattern {
	cropped := loc.areaSqKm * 100 * 0.6
	rows := make([]*database.CroppingPattern, 0, len(crops))
	for i, c := range crops {
		area := cropped / float64(len(crops)+i) * jitter(rng, 0.08)
		yield := c.yield * (1 + 0.012*elapsed) * jitter(rng, 0.07)
		rows = append(rows, &database.CroppingPattern{
			RegionID:            regionID,
			Year:                year,
			Season:              c.season,
			CropName:            c.crop,
			AreaHectares:        round2(area),
			ProductionTonnes:    round2(area * yield),
			YieldPerHectare:     round2(yield),
			IrrigatedPercentage: round2(clamp(35+rng.Float64()*60, 0, 100)),
		})
	}
	return rows
}

func wellDepths(rng *rand.Rand, regionID uint, year, regionIndex int, elapsed float64) []*database.WellDepth {
	rows := make([]*database.WellDepth, 0, len(wellTypes)*len(seasons))
	base := 6 + float64(regionIndex%7)*2.5
	for wi, wt := range wellTypes {
		for si, season := range seasons {
			// water tables drop about 0.3 m a year; post-monsoon readings are shallower
			avg := (base + float64(wi)*8 + 0.3*elapsed - float64(si)*2.2) * jitter(rng, 0.04)
			spread := avg * (0.25 + rng.Float64()*0.15)
			rows = append(rows, &database.WellDepth{
				RegionID:           regionID,
				Year:               year,
				Season:             season,
				WellType:           wt,
				AverageDepthMeters: round2(avg),
				MinDepthMeters:     round2(avg - spread),
				MaxDepthMeters:     round2(avg + spread),
				NumberOfWells:      int64(20 + rng.IntN(80)),
			})
		}
	}
	return rows
}

func ensureAdmin(ctx context.Context, db database.Database, admin config.SuperAdminConfig) (bool, error) {
	if admin.Email == "" || admin.Password == "" {
		return false, nil
	}
	email := database.NormalizeEmail(admin.Email)
	_, err := db.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return false, err
	}

	name := admin.Name
	if name == "" {
		name = "Administrator"
	}
	user := &database.User{
		Name:     name,
		Email:    email,
		Role:     database.RoleAdmin,
		IsActive: true,
	}
	if err := user.SetPassword(admin.Password); err != nil {
		return false, err
	}
	if err := db.CreateUser(ctx, user); err != nil {
		return false, fmt.Errorf("failed to create super admin: %w", err)
	}
	return true, nil
}

// jitter returns a multiplier in [1-pct, 1+pct]
func jitter(rng *rand.Rand, pct float64) float64 {
	return 1 + (rng.Float64()*2-1)*pct
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
