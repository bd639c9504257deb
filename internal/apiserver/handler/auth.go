package handler

import (
	"errors"
	"time"

	"github.com/amoylab/agridash/internal/apiserver/database"
	"github.com/amoylab/agridash/internal/auth/jwt"
	"github.com/amoylab/agridash/internal/common/dto"
	"github.com/amoylab/agridash/internal/common/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const forgotPasswordMessage = "If the email is registered, a password reset link has been sent"

// AuthHandler serves /api/auth
type AuthHandler struct {
	db         database.Database
	jwtService *jwt.Service
	logger     *zap.Logger
	// exposeResetToken returns reset tokens in the response body outside release mode
	exposeResetToken bool
}

func NewAuthHandler(db database.Database, jwtService *jwt.Service, logger *zap.Logger, exposeResetToken bool) *AuthHandler {
	return &AuthHandler{
		db:               db,
		jwtService:       jwtService,
		logger:           logger.Named("auth"),
		exposeResetToken: exposeResetToken,
	}
}

// HandleRegister creates an account and signs it in
func (h *AuthHandler) HandleRegister(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	role := database.RoleUser
	if req.Role != "" {
		role = database.Role(req.Role)
	}
	user := &database.User{
		Name:         req.Name,
		Email:        database.NormalizeEmail(req.Email),
		Role:         role,
		Organization: req.Organization,
		IsActive:     true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		fail(c, err)
		return
	}
	if err := h.db.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			fail(c, errorx.ConflictError("user", "email", user.Email))
			return
		}
		fail(c, err)
		return
	}

	resp, err := h.authResponse(user)
	if err != nil {
		fail(c, err)
		return
	}
	h.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	created(c, resp)
}

// HandleLogin exchanges credentials for an access token
func (h *AuthHandler) HandleLogin(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.db.GetUserByEmail(c.Request.Context(), database.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fail(c, errorx.ErrInvalidCredentials)
			return
		}
		fail(c, err)
		return
	}
	if !user.CheckPassword(req.Password) {
		fail(c, errorx.ErrInvalidCredentials)
		return
	}
	if !user.IsActive {
		fail(c, errorx.ErrAccountDisabled)
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := h.db.UpdateUser(c.Request.Context(), user); err != nil {
		h.logger.Warn("failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	resp, err := h.authResponse(user)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// HandleMe returns the caller's account
func (h *AuthHandler) HandleMe(c *gin.Context) {
	user, found := h.activeUser(c)
	if !found {
		return
	}
	ok(c, toUserInfo(user))
}

// HandleRefresh issues a fresh token for a still valid one
func (h *AuthHandler) HandleRefresh(c *gin.Context) {
	user, found := h.activeUser(c)
	if !found {
		return
	}
	resp, err := h.authResponse(user)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *AuthHandler) HandleChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	user, found := h.activeUser(c)
	if !found {
		return
	}
	if !user.CheckPassword(req.CurrentPassword) {
		fail(c, errorx.Validation(errorx.FieldError{Field: "currentPassword", Message: "is incorrect"}))
		return
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	if err := h.db.UpdateUser(c.Request.Context(), user); err != nil {
		fail(c, err)
		return
	}
	message(c, "Password updated successfully")
}

// HandleForgotPassword answers identically whether or not the email exists
func (h *AuthHandler) HandleForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	resp := dto.ForgotPasswordResponse{Message: forgotPasswordMessage}
	user, err := h.db.GetUserByEmail(c.Request.Context(), database.NormalizeEmail(req.Email))
	switch {
	case errors.Is(err, database.ErrNotFound):
		ok(c, resp)
		return
	case err != nil:
		fail(c, err)
		return
	}
	if !user.IsActive {
		ok(c, resp)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateResetToken(user.ID, user.Email, user.PasswordFingerprint())
	if err != nil {
		fail(c, err)
		return
	}
	// no mail transport; the token is handed over out of band
	h.logger.Info("password reset requested",
		zap.Uint("user_id", user.ID),
		zap.Time("expires_at", expiresAt),
		zap.String("reset_token", token))
	if h.exposeResetToken {
		resp.ResetToken = token
	}
	ok(c, resp)
}

// HandleResetPassword sets a new password from a single-use reset token
func (h *AuthHandler) HandleResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	claims, err := h.jwtService.ValidateResetToken(req.Token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			fail(c, errorx.ErrTokenExpired.WithMessage("reset token has expired"))
			return
		}
		fail(c, errorx.ErrInvalidToken.WithMessage("invalid reset token"))
		return
	}

	user, err := h.db.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fail(c, errorx.ErrInvalidToken.WithMessage("invalid reset token"))
			return
		}
		fail(c, err)
		return
	}
	if claims.Fingerprint != user.PasswordFingerprint() {
		fail(c, errorx.ErrInvalidToken.WithMessage("reset token has already been used"))
		return
	}

	if err := user.SetPassword(req.Password); err != nil {
		fail(c, err)
		return
	}
	if err := h.db.UpdateUser(c.Request.Context(), user); err != nil {
		fail(c, err)
		return
	}
	message(c, "Password has been reset")
}

// activeUser loads the authenticated caller, queueing 401 when gone or disabled
func (h *AuthHandler) activeUser(c *gin.Context) (*database.User, bool) {
	return loadActiveUser(c, h.db)
}

func loadActiveUser(c *gin.Context, db database.Database) (*database.User, bool) {
	id, found := currentUser(c)
	if !found {
		return nil, false
	}
	user, err := db.GetUserByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fail(c, errorx.ErrInvalidToken.WithMessage("user no longer exists"))
			return nil, false
		}
		fail(c, err)
		return nil, false
	}
	if !user.IsActive {
		fail(c, errorx.ErrAccountDisabled)
		return nil, false
	}
	return user, true
}

func (h *AuthHandler) authResponse(user *database.User) (*dto.AuthResponse, error) {
	token, expiresAt, err := h.jwtService.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      toUserInfo(user),
	}, nil
}
