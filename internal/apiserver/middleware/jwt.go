package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/amoylab/agridash/internal/auth/jwt"
	"github.com/amoylab/agridash/internal/common/errorx"

	"github.com/gin-gonic/gin"
)

// context keys set by the auth middlewares
const (
	ClaimsKey    = "claims"
	UserIDKey    = "user_id"
	UserRoleKey  = "user_role"
	UserEmailKey = "user_email"
)

// JWTAuth rejects requests without a valid access token
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, errorx.ErrUnauthorized.WithMessage("authorization token is required"))
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				abort(c, errorx.ErrTokenExpired)
				return
			}
			abort(c, errorx.ErrInvalidToken)
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and never rejects
func OptionalAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := jwtService.ValidateToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRoles allows only callers whose role is listed; it must run after JWTAuth
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(UserRoleKey)
		if role == "" {
			abort(c, errorx.ErrUnauthorized.WithMessage("authorization token is required"))
			return
		}
		if !slices.Contains(roles, role) {
			abort(c, errorx.ErrForbidden.WithDetail("required_roles", roles))
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, if any
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// CurrentClaims returns the validated token claims, if any
func CurrentClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(ClaimsKey, claims)
	c.Set(UserIDKey, claims.UserID)
	c.Set(UserRoleKey, claims.Role)
	c.Set(UserEmailKey, claims.Email)
}

// abort hands the error to errorx.ErrorMiddleware and stops the chain
func abort(c *gin.Context, err *errorx.APIError) {
	_ = c.Error(err)
	c.Abort()
}
