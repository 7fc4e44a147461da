// internal/api/response_helpers.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
)

// APIResponse 统一的API响应包装
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func getRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}

// respondSuccess 成功响应
func respondSuccess(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusOK, response)
}

// respondCreated 创建成功响应
func respondCreated(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusCreated, response)
}

// respondError 按错误类型映射HTTP状态码
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case apperrors.IsValidationError(err):
		status = http.StatusBadRequest
		code = "validation_error"
	case apperrors.IsNotFoundError(err):
		status = http.StatusNotFound
		code = "not_found"
	case apperrors.IsCorruptDataError(err):
		status = http.StatusUnprocessableEntity
		code = "corrupt_data"
	case apperrors.IsUpstreamError(err):
		status = http.StatusBadGateway
		code = "upstream_generation"
	case apperrors.IsIOError(err):
		status = http.StatusInternalServerError
		code = "io_error"
	}

	c.JSON(status, &APIResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: err.Error()},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}
