package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amoylab/agridash/internal/common/config"

	"gorm.io/gorm"
)

// GormDB implements Database on top of any GORM dialector
type GormDB struct {
	db  *gorm.DB
	cfg *config.DatabaseConfig
}

// Close closes the database connection
func (g *GormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormDB) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *GormDB) AutoMigrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(
		&Region{},
		&LandHolding{},
		&IrrigationSource{},
		&CroppingPattern{},
		&WellDepth{},
		&User{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// mapErr folds driver specific failures into the package sentinels
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func (g *GormDB) CreateUser(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	return mapErr(getDBFromContext(ctx, g.db).Create(user).Error)
}

func (g *GormDB) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := getDBFromContext(ctx, g.db).First(&user, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (g *GormDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := getDBFromContext(ctx, g.db).
		Where("email = ?", NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (g *GormDB) UpdateUser(ctx context.Context, user *User) error {
	if user.ID == 0 {
		return ErrNotFound
	}
	user.Email = NormalizeEmail(user.Email)
	res := getDBFromContext(ctx, g.db).
		Model(&User{}).
		Where("id = ?", user.ID).
		Select("name", "email", "password_hash", "role", "organization", "is_active", "last_login_at", "updated_at").
		Updates(user)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormDB) ListUsers(ctx context.Context, filter UserFilter) ([]*User, int64, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Role != "" {
			db = db.Where("role = ?", filter.Role)
		}
		if s := strings.ToLower(strings.TrimSpace(filter.Search)); s != "" {
			like := "%" + s + "%"
			db = db.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", like, like)
		}
		return db
	}
	return paginate[User](ctx, g.db, limit, offset, scope, func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC").Order("id DESC")
	})
}

func (g *GormDB) CountUsersByRole(ctx context.Context) (map[Role]int64, error) {
	var rows []struct {
		Role  Role
		Count int64
	}
	err := getDBFromContext(ctx, g.db).
		Model(&User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[Role]int64, len(Roles))
	for _, r := range Roles {
		out[r] = 0
	}
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}

func (g *GormDB) CreateRegions(ctx context.Context, regions []*Region) error {
	if len(regions) == 0 {
		return nil
	}
	for _, r := range regions {
		r.Normalize()
		if err := r.Validate(); err != nil {
			return fmt.Errorf("region %s/%s: %w", r.State, r.District, err)
		}
	}
	return mapErr(getDBFromContext(ctx, g.db).CreateInBatches(regions, batchSize).Error)
}

func (g *GormDB) ListRegions(ctx context.Context, filter RegionFilter) ([]*Region, int64, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.State != "" {
			db = db.Where("LOWER(state) = LOWER(?)", strings.TrimSpace(filter.State))
		}
		if filter.District != "" {
			db = db.Where("LOWER(district) = LOWER(?)", strings.TrimSpace(filter.District))
		}
		if s := strings.ToLower(strings.TrimSpace(filter.Search)); s != "" {
			like := "%" + s + "%"
			db = db.Where("(LOWER(state) LIKE ? OR LOWER(district) LIKE ?)", like, like)
		}
		return db
	}
	return paginate[Region](ctx, g.db, limit, offset, scope, func(db *gorm.DB) *gorm.DB {
		return db.Order("state ASC").Order("district ASC").Order("id ASC")
	})
}

func (g *GormDB) GetRegion(ctx context.Context, id uint) (*Region, error) {
	var region Region
	if err := getDBFromContext(ctx, g.db).First(&region, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &region, nil
}

func (g *GormDB) ListStates(ctx context.Context) ([]string, error) {
	states := []string{}
	err := getDBFromContext(ctx, g.db).
		Model(&Region{}).
		Distinct().
		Order("state ASC").
		Pluck("state", &states).Error
	return states, err
}

func (g *GormDB) ListDistricts(ctx context.Context, state string) ([]string, error) {
	districts := []string{}
	err := getDBFromContext(ctx, g.db).
		Model(&Region{}).
		Where("LOWER(state) = LOWER(?)", strings.TrimSpace(state)).
		Order("district ASC").
		Pluck("district", &districts).Error
	return districts, err
}

// paginate counts and fetches one page under the same predicate
func paginate[T any](
	ctx context.Context,
	db *gorm.DB,
	limit, offset int,
	filter func(*gorm.DB) *gorm.DB,
	find func(*gorm.DB) *gorm.DB,
) ([]*T, int64, error) {
	query := func() *gorm.DB {
		return getDBFromContext(ctx, db).Model(new(T)).Scopes(filter)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	rows := []*T{}
	if total == 0 || int64(offset) >= total {
		return rows, total, nil
	}
	if err := find(query()).Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
