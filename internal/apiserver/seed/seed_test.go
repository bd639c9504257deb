package seed

import (
	"context"
	"testing"

	"github.com/amoylab/agridash/internal/apiserver/database"
	"github.com/amoylab/agridash/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewDatabase(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var admin = config.SuperAdminConfig{
	Name:     "Root",
	Email:    "Admin@Example.com",
	Password: "admin-password-123",
}

func TestRun_InsertsDataset(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	res, err := Run(ctx, db, admin, zap.NewNop())
	require.NoError(t, err)

	years := LastYear - FirstYear + 1
	assert.False(t, res.Skipped)
	assert.True(t, res.AdminCreated)
	assert.Equal(t, len(locations), res.Regions)
	assert.Equal(t, len(locations)*years*len(holdingClasses), res.LandHoldings)
	assert.Equal(t, len(locations)*years*len(irrigationShares), res.IrrigationSources)
	assert.Equal(t, len(locations)*years*len(crops), res.CroppingPatterns)
	assert.Equal(t, len(locations)*years*len(wellTypes)*len(seasons), res.WellDepths)

	_, total, err := db.ListRegions(ctx, database.RegionFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(locations)), total)

	_, total, err = db.ListWellDepths(ctx, database.MetricFilter{Year: 2020})
	require.NoError(t, err)
	assert.Equal(t, int64(len(locations)*len(wellTypes)*len(seasons)), total)

	user, err := db.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, database.RoleAdmin, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, user.CheckPassword(admin.Password))
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := Run(ctx, db, admin, zap.NewNop())
	require.NoError(t, err)

	res, err := Run(ctx, db, admin, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.AdminCreated)
	assert.Zero(t, res.LandHoldings)

	_, total, err := db.ListRegions(ctx, database.RegionFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(locations)), total)
}

func TestRun_NoAdminConfigured(t *testing.T) {
	db := newTestDB(t)

	res, err := Run(context.Background(), db, config.SuperAdminConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, res.AdminCreated)

	_, total, err := db.ListUsers(context.Background(), database.UserFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGeneratedRowsValidate(t *testing.T) {
	a := runGenerators(t)
	b := runGenerators(t)
	assert.Equal(t, a, b, "generation must be deterministic")
}

// runGenerators returns the average well depth series so two runs can be compared
func runGenerators(t *testing.T) []float64 {
	t.Helper()
	regions := Regions()
	for i, r := range regions {
		r.ID = uint(i + 1)
		require.NoError(t, r.Validate())
	}

	var depths []float64
	ds := generate(regions)
	for _, h := range ds.holdings {
		require.NoError(t, h.Validate())
	}
	for _, s := range ds.irrigation {
		require.NoError(t, s.Validate())
	}
	for _, p := range ds.patterns {
		require.NoError(t, p.Validate())
	}
	for _, w := range ds.wells {
		require.NoError(t, w.Validate())
		assert.LessOrEqual(t, w.MinDepthMeters, w.AverageDepthMeters)
		assert.LessOrEqual(t, w.AverageDepthMeters, w.MaxDepthMeters)
		depths = append(depths, w.AverageDepthMeters)
	}
	return depths
}
