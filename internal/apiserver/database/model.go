package database

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	MinYear = 1950
	MaxYear = 2100
)

// Region is a (state, district) pair that owns every metric row
type Region struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	State      string    `json:"state" gorm:"type:varchar(100);not null;uniqueIndex:idx_region_state_district;index"`
	District   string    `json:"district" gorm:"type:varchar(100);not null;uniqueIndex:idx_region_state_district"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	AreaSqKm   float64   `json:"areaSqKm"`
	Population int64     `json:"population"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Normalize trims and title-cases the location names
func (r *Region) Normalize() {
	caser := cases.Title(language.English)
	r.State = caser.String(strings.Join(strings.Fields(r.State), " "))
	r.District = caser.String(strings.Join(strings.Fields(r.District), " "))
}

func (r *Region) Validate() error {
	var errs []error
	if r.State == "" {
		errs = append(errs, errors.New("state is required"))
	}
	if r.District == "" {
		errs = append(errs, errors.New("district is required"))
	}
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		errs = append(errs, fmt.Errorf("latitude %v out of range", *r.Latitude))
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		errs = append(errs, fmt.Errorf("longitude %v out of range", *r.Longitude))
	}
	errs = append(errs, nonNegative("areaSqKm", r.AreaSqKm))
	if r.Population < 0 {
		errs = append(errs, errors.New("population must be non-negative"))
	}
	return errors.Join(errs...)
}

// LandHolding counts holdings per size class
type LandHolding struct {
	ID                  uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RegionID            uint      `json:"regionId" gorm:"not null;index:idx_land_region_year"`
	Region              *Region   `json:"region,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Year                int       `json:"year" gorm:"not null;index:idx_land_region_year"`
	Category            string    `json:"category" gorm:"type:varchar(50);not null;index"` // marginal, small, semi-medium, medium, large
	NumberOfHoldings    int64     `json:"numberOfHoldings"`
	AreaHectares        float64   `json:"areaHectares"`
	AverageSizeHectares float64   `json:"averageSizeHectares"`
	PercentageOfTotal   float64   `json:"percentageOfTotal"`
	CreatedAt           time.Time `json:"createdAt"`
}

func (m *LandHolding) Validate() error {
	return errors.Join(
		requireRegion(m.RegionID),
		validYear(m.Year),
		required("category", m.Category),
		nonNegativeInt("numberOfHoldings", m.NumberOfHoldings),
		nonNegative("areaHectares", m.AreaHectares),
		nonNegative("averageSizeHectares", m.AverageSizeHectares),
		percentage("percentageOfTotal", m.PercentageOfTotal),
	)
}

// IrrigationSource is the irrigated area served by one source type
type IrrigationSource struct {
	ID                    uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RegionID              uint      `json:"regionId" gorm:"not null;index:idx_irrigation_region_year"`
	Region                *Region   `json:"region,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Year                  int       `json:"year" gorm:"not null;index:idx_irrigation_region_year"`
	SourceType            string    `json:"sourceType" gorm:"type:varchar(50);not null;index"` // canal, tank, tubewell, other-well, other
	AreaIrrigatedHectares float64   `json:"areaIrrigatedHectares"`
	NumberOfSources       int64     `json:"numberOfSources"`
	PercentageOfTotal     float64   `json:"percentageOfTotal"`
	CreatedAt             time.Time `json:"createdAt"`
}

func (m *IrrigationSource) Validate() error {
	return errors.Join(
		requireRegion(m.RegionID),
		validYear(m.Year),
		required("sourceType", m.SourceType),
		nonNegative("areaIrrigatedHectares", m.AreaIrrigatedHectares),
		nonNegativeInt("numberOfSources", m.NumberOfSources),
		percentage("percentageOfTotal", m.PercentageOfTotal),
	)
}

// CroppingPattern is the sown area and output of one crop in one season
type CroppingPattern struct {
	ID                  uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RegionID            uint      `json:"regionId" gorm:"not null;index:idx_crop_region_year"`
	Region              *Region   `json:"region,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Year                int       `json:"year" gorm:"not null;index:idx_crop_region_year"`
	Season              string    `json:"season" gorm:"type:varchar(20);not null;index"` // kharif, rabi, zaid, annual
	CropName            string    `json:"cropName" gorm:"type:varchar(100);not null;index"`
	AreaHectares        float64   `json:"areaHectares"`
	ProductionTonnes    float64   `json:"productionTonnes"`
	YieldPerHectare     float64   `json:"yieldPerHectare"`
	IrrigatedPercentage float64   `json:"irrigatedPercentage"`
	CreatedAt           time.Time `json:"createdAt"`
}

func (m *CroppingPattern) Validate() error {
	return errors.Join(
		requireRegion(m.RegionID),
		validYear(m.Year),
		required("season", m.Season),
		required("cropName", m.CropName),
		nonNegative("areaHectares", m.AreaHectares),
		nonNegative("productionTonnes", m.ProductionTonnes),
		nonNegative("yieldPerHectare", m.YieldPerHectare),
		percentage("irrigatedPercentage", m.IrrigatedPercentage),
	)
}

// WellDepth is the groundwater level observed for one well type and season
type WellDepth struct {
	ID                 uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RegionID           uint      `json:"regionId" gorm:"not null;index:idx_well_region_year"`
	Region             *Region   `json:"region,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Year               int       `json:"year" gorm:"not null;index:idx_well_region_year"`
	Season             string    `json:"season" gorm:"type:varchar(20);not null"` // pre-monsoon, post-monsoon
	WellType           string    `json:"wellType" gorm:"type:varchar(50);not null;index"`
	AverageDepthMeters float64   `json:"averageDepthMeters"`
	MinDepthMeters     float64   `json:"minDepthMeters"`
	MaxDepthMeters     float64   `json:"maxDepthMeters"`
	NumberOfWells      int64     `json:"numberOfWells"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (m *WellDepth) Validate() error {
	var order error
	if m.MinDepthMeters > m.MaxDepthMeters {
		order = errors.New("minDepthMeters must not exceed maxDepthMeters")
	}
	return errors.Join(
		requireRegion(m.RegionID),
		validYear(m.Year),
		required("season", m.Season),
		required("wellType", m.WellType),
		nonNegative("averageDepthMeters", m.AverageDepthMeters),
		nonNegative("minDepthMeters", m.MinDepthMeters),
		nonNegative("maxDepthMeters", m.MaxDepthMeters),
		nonNegativeInt("numberOfWells", m.NumberOfWells),
		order,
	)
}

// Role represents the role of a user
type Role string

const (
	RoleGuest      Role = "guest"
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleResearcher Role = "researcher"
)

// Roles lists every assignable role
var Roles = []Role{RoleGuest, RoleUser, RoleAdmin, RoleResearcher}

func ValidRole(r string) bool {
	for _, role := range Roles {
		if string(role) == r {
			return true
		}
	}
	return false
}

// User is a dashboard account. PasswordHash is only ever written through SetPassword.
type User struct {
	ID           uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string     `json:"name" gorm:"type:varchar(100);not null"`
	Email        string     `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"column:password_hash;type:varchar(100);not null"`
	Role         Role       `json:"role" gorm:"type:varchar(20);not null;index"`
	Organization string     `json:"organization" gorm:"type:varchar(200)"`
	IsActive     bool       `json:"isActive" gorm:"not null"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// SetPassword replaces the stored hash with a fresh bcrypt hash of plain
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether plain matches the stored hash
func (u *User) CheckPassword(plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// PasswordFingerprint changes whenever the password does
func (u *User) PasswordFingerprint() string {
	sum := sha256.Sum256([]byte(u.PasswordHash))
	return hex.EncodeToString(sum[:8])
}

// NormalizeEmail lower-cases and trims an address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func requireRegion(id uint) error {
	if id == 0 {
		return errors.New("regionId is required")
	}
	return nil
}

func validYear(year int) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("year %d out of range [%d, %d]", year, MinYear, MaxYear)
	}
	return nil
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func nonNegative(field string, v float64) error {
	if v < 0 {
		return fmt.Errorf("%s must be non-negative", field)
	}
	return nil
}

func nonNegativeInt(field string, v int64) error {
	if v < 0 {
		return fmt.Errorf("%s must be non-negative", field)
	}
	return nil
}

func percentage(field string, v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s must be within [0, 100]", field)
	}
	return nil
}
