package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidAlgorithm = errors.New("invalid signing algorithm")
	ErrEmptySecretKey   = errors.New("secret key cannot be empty")
	ErrWeakSecretKey    = errors.New("secret key must be at least 32 characters")
	ErrInvalidDuration  = errors.New("duration must be positive")
)

const (
	issuer = "agridash"

	PurposeAccess = "access"
	PurposeReset  = "reset"
)

// Claims represents the JWT claims
type Claims struct {
	UserID  uint   `json:"user_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Purpose string `json:"purpose"`
	// Fingerprint ties a reset token to the password hash it was issued against
	Fingerprint string `json:"fp,omitempty"`
	jwt.RegisteredClaims
}

// Config represents the JWT configuration
type Config struct {
	SecretKey     string        `yaml:"secret_key"`
	Duration      time.Duration `yaml:"duration"`
	ResetDuration time.Duration `yaml:"reset_duration"`
}

// Service represents the JWT service
type Service struct {
	config Config
	now    func() time.Time
}

// NewService creates a new JWT service
func NewService(config Config) (*Service, error) {
	if config.SecretKey == "" {
		return nil, ErrEmptySecretKey
	}
	if len(config.SecretKey) < 32 {
		return nil, ErrWeakSecretKey
	}
	if config.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if config.ResetDuration <= 0 {
		config.ResetDuration = 15 * time.Minute
	}
	return &Service{
		config: config,
		now:    time.Now,
	}, nil
}

// GenerateToken issues an access token and returns its expiry
func (s *Service) GenerateToken(userID uint, email string, role string) (string, time.Time, error) {
	return s.sign(&Claims{
		UserID:  userID,
		Email:   email,
		Role:    role,
		Purpose: PurposeAccess,
	}, s.config.Duration)
}

// GenerateResetToken issues a short lived password reset token
func (s *Service) GenerateResetToken(userID uint, email, fingerprint string) (string, time.Time, error) {
	return s.sign(&Claims{
		UserID:      userID,
		Email:       email,
		Purpose:     PurposeReset,
		Fingerprint: fingerprint,
	}, s.config.ResetDuration)
}

func (s *Service) sign(claims *Claims, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken validates an access token
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, PurposeAccess)
}

// ValidateResetToken validates a password reset token
func (s *Service) ValidateResetToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, PurposeReset)
}

func (s *Service) validate(tokenString, purpose string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidAlgorithm
		}
		return []byte(s.config.SecretKey), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
