package database

import (
	"context"
	"errors"
	"testing"

	"github.com/amoylab/agridash/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *GormDB {
	t.Helper()
	dbi, err := NewDatabase(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbi.Close() })
	require.NoError(t, dbi.AutoMigrate(context.Background()))
	return dbi.(*GormDB)
}

// seedRegions creates Punjab/Ludhiana, Punjab/Amritsar and Haryana/Hisar
func seedRegions(t *testing.T, db *GormDB) []*Region {
	t.Helper()
	regions := []*Region{
		{State: "punjab", District: "ludhiana", AreaSqKm: 3767},
		{State: "Punjab", District: "Amritsar", AreaSqKm: 2683},
		{State: "  haryana ", District: "hisar", AreaSqKm: 3983},
	}
	require.NoError(t, db.CreateRegions(context.Background(), regions))
	return regions
}

func seedHoldings(t *testing.T, db *GormDB, regions []*Region) {
	t.Helper()
	var rows []*LandHolding
	for _, r := range regions {
		for year := 2018; year <= 2020; year++ {
			for _, cat := range []string{"marginal", "small", "medium"} {
				rows = append(rows, &LandHolding{
					RegionID:            r.ID,
					Year:                year,
					Category:            cat,
					NumberOfHoldings:    100,
					AreaHectares:        50,
					AverageSizeHectares: 0.5,
					PercentageOfTotal:   33.3,
				})
			}
		}
	}
	require.NoError(t, db.CreateLandHoldings(context.Background(), rows))
}

func TestCreateRegions_Normalizes(t *testing.T) {
	db := newTestDB(t)
	regions := seedRegions(t, db)

	assert.Equal(t, "Punjab", regions[0].State)
	assert.Equal(t, "Ludhiana", regions[0].District)
	assert.Equal(t, "Haryana", regions[2].State)

	states, err := db.ListStates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Haryana", "Punjab"}, states)

	districts, err := db.ListDistricts(context.Background(), "PUNJAB")
	require.NoError(t, err)
	assert.Equal(t, []string{"Amritsar", "Ludhiana"}, districts)

	err = db.CreateRegions(context.Background(), []*Region{{State: "Punjab", District: "Ludhiana"}})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestListLandHoldings_PaginationMatchesCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedHoldings(t, db, seedRegions(t, db))

	cases := []struct {
		name  string
		f     MetricFilter
		total int64
	}{
		{"all", MetricFilter{Limit: 4}, 27},
		{"state case-insensitive", MetricFilter{State: "PUNJAB", Limit: 4}, 18},
		{"district", MetricFilter{State: "punjab", District: "amritsar", Limit: 100}, 9},
		{"year", MetricFilter{Year: 2019, Limit: 5}, 9},
		{"year range", MetricFilter{YearFrom: 2019, YearTo: 2020, Category: "SMALL"}, 6},
		{"no match", MetricFilter{State: "Kerala"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, total, err := db.ListLandHoldings(ctx, tc.f)
			require.NoError(t, err)
			assert.Equal(t, tc.total, total)

			limit, _ := tc.f.Page()
			assert.LessOrEqual(t, len(rows), limit)
			assert.Equal(t, min(int64(limit), tc.total), int64(len(rows)))
		})
	}
}

func TestListLandHoldings_OrderAndOffset(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedHoldings(t, db, seedRegions(t, db))

	rows, total, err := db.ListLandHoldings(ctx, MetricFilter{Limit: 500})
	require.NoError(t, err)
	require.Len(t, rows, int(total))
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if prev.Year == cur.Year {
			assert.Less(t, prev.ID, cur.ID)
		} else {
			assert.Greater(t, prev.Year, cur.Year)
		}
	}
	require.NotNil(t, rows[0].Region)
	assert.Equal(t, 2020, rows[0].Year)

	page, _, err := db.ListLandHoldings(ctx, MetricFilter{Limit: 5, Offset: 25})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, _, err = db.ListLandHoldings(ctx, MetricFilter{Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMetricFilterPage(t *testing.T) {
	limit, offset := (&MetricFilter{}).Page()
	assert.Equal(t, DefaultLimit, limit)
	assert.Equal(t, 0, offset)

	limit, offset = (&MetricFilter{Limit: 10000, Offset: -3}).Page()
	assert.Equal(t, MaxLimit, limit)
	assert.Equal(t, 0, offset)
}

func TestCreateMetrics_RejectsOutOfRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	regions := seedRegions(t, db)

	err := db.CreateIrrigationSources(ctx, []*IrrigationSource{
		{RegionID: regions[0].ID, Year: 2020, SourceType: "canal", PercentageOfTotal: 120},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percentageOfTotal")

	err = db.CreateWellDepths(ctx, []*WellDepth{
		{RegionID: regions[0].ID, Year: 2020, Season: "pre-monsoon", WellType: "dug", MinDepthMeters: 10, MaxDepthMeters: 5},
	})
	require.Error(t, err)

	_, total, err := db.ListIrrigationSources(ctx, MetricFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRegionDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	regions := seedRegions(t, db)
	seedHoldings(t, db, regions)

	require.NoError(t, db.db.Delete(&Region{}, regions[0].ID).Error)

	_, total, err := db.ListLandHoldings(ctx, MetricFilter{RegionID: regions[0].ID})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = db.GetRegion(ctx, regions[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWellDepthFiltersAndTrend(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	regions := seedRegions(t, db)

	var rows []*WellDepth
	for i, year := range []int{2018, 2019, 2020} {
		for _, season := range []string{"pre-monsoon", "post-monsoon"} {
			rows = append(rows, &WellDepth{
				RegionID:           regions[0].ID,
				Year:               year,
				Season:             season,
				WellType:           "tube",
				AverageDepthMeters: float64(10 + i*5),
				MinDepthMeters:     5,
				MaxDepthMeters:     40,
				NumberOfWells:      10,
			})
		}
	}
	require.NoError(t, db.CreateWellDepths(ctx, rows))

	minDepth, maxDepth := 12.0, 18.0
	got, total, err := db.ListWellDepths(ctx, MetricFilter{MinDepth: &minDepth, MaxDepth: &maxDepth, Season: "Pre-Monsoon"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, 2019, got[0].Year)

	trend, err := db.WellDepthTrend(ctx, MetricFilter{State: "punjab"})
	require.NoError(t, err)
	require.Len(t, trend, 6)
	assert.Equal(t, 2018, trend[0].Year)
	assert.InDelta(t, 10.0, trend[0].AvgDepthMeters, 0.001)
	assert.EqualValues(t, 10, trend[0].TotalWells)
}

func TestAggregations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	regions := seedRegions(t, db)
	seedHoldings(t, db, regions)

	require.NoError(t, db.CreateIrrigationSources(ctx, []*IrrigationSource{
		{RegionID: regions[0].ID, Year: 2020, SourceType: "canal", AreaIrrigatedHectares: 300, NumberOfSources: 3, PercentageOfTotal: 60},
		{RegionID: regions[1].ID, Year: 2020, SourceType: "canal", AreaIrrigatedHectares: 100, NumberOfSources: 1, PercentageOfTotal: 40},
		{RegionID: regions[0].ID, Year: 2020, SourceType: "tubewell", AreaIrrigatedHectares: 200, NumberOfSources: 20, PercentageOfTotal: 40},
		{RegionID: regions[2].ID, Year: 2020, SourceType: "tank", AreaIrrigatedHectares: 999, NumberOfSources: 9, PercentageOfTotal: 100},
	}))
	require.NoError(t, db.CreateCroppingPatterns(ctx, []*CroppingPattern{
		{RegionID: regions[0].ID, Year: 2020, Season: "rabi", CropName: "Wheat", AreaHectares: 500, ProductionTonnes: 2000, YieldPerHectare: 4},
		{RegionID: regions[1].ID, Year: 2020, Season: "kharif", CropName: "Rice", AreaHectares: 400, ProductionTonnes: 1600, YieldPerHectare: 4},
		{RegionID: regions[1].ID, Year: 2020, Season: "kharif", CropName: "Cotton", AreaHectares: 50, ProductionTonnes: 20, YieldPerHectare: 0.4},
	}))

	irr, err := db.IrrigationBySource(ctx, MetricFilter{State: "Punjab"})
	require.NoError(t, err)
	require.Len(t, irr, 2)
	assert.Equal(t, "canal", irr[0].SourceType)
	assert.InDelta(t, 400.0, irr[0].TotalAreaHectares, 0.001)
	assert.EqualValues(t, 4, irr[0].TotalSources)
	assert.InDelta(t, 50.0, irr[0].AvgPercentage, 0.001)

	top, err := db.TopCrops(ctx, MetricFilter{}, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Wheat", top[0].CropName)
	assert.Equal(t, "Rice", top[1].CropName)

	dist, err := db.LandHoldingDistribution(ctx, MetricFilter{Year: 2020})
	require.NoError(t, err)
	require.Len(t, dist, 3)
	assert.EqualValues(t, 300, dist[0].TotalHoldings)

	sum, err := db.Summary(ctx, MetricFilter{State: "punjab"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, sum.Regions)
	assert.EqualValues(t, 1, sum.States)
	assert.Equal(t, 2020, sum.LatestYear)
	assert.EqualValues(t, 1800, sum.TotalHoldings)
	assert.InDelta(t, 600.0, sum.TotalIrrigatedArea, 0.001)
	assert.InDelta(t, 950.0, sum.TotalCroppedArea, 0.001)
}

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &User{Name: "Asha", Email: " Asha@Example.com ", Role: RoleResearcher, IsActive: true}
	require.NoError(t, u.SetPassword("correct horse"))
	require.NoError(t, db.CreateUser(ctx, u))
	assert.Equal(t, "asha@example.com", u.Email)

	got, err := db.GetUserByEmail(ctx, "ASHA@example.com")
	require.NoError(t, err)
	assert.True(t, got.CheckPassword("correct horse"))
	assert.False(t, got.CheckPassword("wrong horse"))

	dup := &User{Name: "Other", Email: "asha@example.com", Role: RoleUser, IsActive: true}
	require.NoError(t, dup.SetPassword("password123"))
	assert.ErrorIs(t, db.CreateUser(ctx, dup), ErrDuplicate)

	// re-saving a loaded user keeps the stored hash
	hash := got.PasswordHash
	got.Organization = "ICAR"
	require.NoError(t, db.UpdateUser(ctx, got))
	reloaded, err := db.GetUserByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, hash, reloaded.PasswordHash)
	assert.Equal(t, "ICAR", reloaded.Organization)
	assert.True(t, reloaded.CheckPassword("correct horse"))

	_, err = db.GetUserByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateUser(ctx, &User{ID: 999}), ErrNotFound)

	counts, err := db.CountUsersByRole(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[RoleResearcher])
	assert.EqualValues(t, 0, counts[RoleAdmin])

	users, total, err := db.ListUsers(ctx, UserFilter{Search: "ASHA"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, users, 1)
}

func TestTransactionRollback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.Transaction(ctx, func(ctx context.Context) error {
		require.NoError(t, db.CreateRegions(ctx, []*Region{{State: "Goa", District: "North Goa"}}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, total, err := db.ListRegions(ctx, RegionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRegionValidate(t *testing.T) {
	lat := 120.0
	err := (&Region{State: "X", District: "Y", Latitude: &lat}).Validate()
	assert.Error(t, err)
	assert.NoError(t, (&Region{State: "X", District: "Y"}).Validate())
	assert.True(t, ValidRole("researcher"))
	assert.False(t, ValidRole("root"))
}
