// internal/api/response_helpers.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	} else {
		response.Message = "资源创建成功"
	}

	c.JSON(http.StatusCreated, response)
}

// sanitizeErrorMessage removes sensitive information from error messages
func sanitizeErrorMessage(message string) string {
	lowered := strings.ToLower(message)
	for _, pattern := range []string{"api_key", "secret", "token", "password"} {
		if strings.Contains(lowered, pattern) {
			return "An internal error occurred"
		}
	}
	return message
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	// Sanitize the error message to prevent information disclosure
	sanitizedMessage := sanitizeErrorMessage(message)

	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizedMessage,
	}

	if len(details) > 0 {
		apiError.Details = sanitizeErrorMessage(details[0])
	}

	response := &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, resource string, details ...string) {
	message := resource + "不存在"
	code := ErrorNotFound
	if resource != "" {
		code = rh.getResourceNotFoundCode(resource)
	}
	rh.Error(c, http.StatusNotFound, code, message, details...)
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// Conflict 409错误响应
func (rh *ResponseHelper) Conflict(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusConflict, ErrorConflict, message, details...)
}

// PaginatedSuccess 分页成功响应
func (rh *ResponseHelper) PaginatedSuccess(c *gin.Context, data interface{}, meta *PaginationMeta, message ...string) {
	response := &PaginatedResponse{
		APIResponse: &APIResponse{
			Success:   true,
			Data:      data,
			Timestamp: time.Now(),
			RequestID: rh.getRequestID(c),
		},
		Meta: meta,
	}

	if len(message) > 0 {
		response.APIResponse.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// getRequestID 获取请求ID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	if requestID := c.GetString("request_id"); requestID != "" {
		return requestID
	}
	return ""
}

// getResourceNotFoundCode 根据资源类型生成错误代码
func (rh *ResponseHelper) getResourceNotFoundCode(resource string) string {
	switch resource {
	case "代理", "agent":
		return ErrorAgentNotFound
	case "模板", "template":
		return ErrorTemplateNotFound
	default:
		return ErrorNotFound
	}
}
