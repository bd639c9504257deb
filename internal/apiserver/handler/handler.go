package handler

import (
	"net/http"

	"github.com/amoylab/agridash/internal/apiserver/database"
	"github.com/amoylab/agridash/internal/apiserver/middleware"
	"github.com/amoylab/agridash/internal/common/dto"
	"github.com/amoylab/agridash/internal/common/errorx"

	"github.com/gin-gonic/gin"
)

// bind decodes the request into req and queues a 400 on failure
func bind(c *gin.Context, req any, binder func(any) error) bool {
	if err := binder(req); err != nil {
		_ = c.Error(errorx.FromBindError(err))
		return false
	}
	return true
}

func bindJSON(c *gin.Context, req any) bool {
	return bind(c, req, c.ShouldBindJSON)
}

func bindQuery(c *gin.Context, req any) bool {
	return bind(c, req, c.ShouldBindQuery)
}

// fail queues err for errorx.ErrorMiddleware
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.Response{Success: true, Data: data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.Response{Success: true, Data: data})
}

func message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, dto.Response{Success: true, Message: msg})
}

func page(c *gin.Context, data any, total int64, limit, offset int) {
	p := dto.NewPagination(total, limit, offset)
	c.JSON(http.StatusOK, dto.Response{Success: true, Data: data, Pagination: &p})
}

// currentUser returns the authenticated caller id or queues a 401
func currentUser(c *gin.Context) (uint, bool) {
	id, found := middleware.CurrentUserID(c)
	if !found {
		fail(c, errorx.ErrUnauthorized.WithMessage("authorization token is required"))
	}
	return id, found
}

func toUserInfo(u *database.User) dto.UserInfo {
	return dto.UserInfo{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		Organization: u.Organization,
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
	}
}
