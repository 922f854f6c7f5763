package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog_mirror_v1/internal/model"
)

// ==================== 统一响应 ====================

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, err error) {
	code := statusOf(err)
	c.JSON(code, gin.H{"code": code, "message": err.Error()})
}

// statusOf 领域错误映射到 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrCapacityExceeded), errors.Is(err, model.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, model.ErrNetworkFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
