package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error payload returned by the gateway.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse is the standard success payload.
type SuccessResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

// Success sends a 200 OK response with data
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Status: "success",
		Data:   data,
	})
}

// Created sends a 201 Created response
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Status: "success",
		Data:   data,
	})
}

// Error sends an error response with custom status code and message
func Error(c *gin.Context, statusCode int, message string, errorCode ...string) {
	code := ""
	if len(errorCode) > 0 {
		code = errorCode[0]
	}

	c.JSON(statusCode, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// BadRequest sends a 400 Bad Request error
func BadRequest(c *gin.Context, message string, errorCode ...string) {
	Error(c, http.StatusBadRequest, message, errorCode...)
}

// Unauthorized sends a 401 Unauthorized error
func Unauthorized(c *gin.Context, message string, errorCode ...string) {
	Error(c, http.StatusUnauthorized, message, errorCode...)
}

// Forbidden sends a 403 Forbidden error
func Forbidden(c *gin.Context, message string, errorCode ...string) {
	Error(c, http.StatusForbidden, message, errorCode...)
}

// NotFound sends a 404 Not Found error
func NotFound(c *gin.Context, message string, errorCode ...string) {
	Error(c, http.StatusNotFound, message, errorCode...)
}

// Conflict sends a 409 Conflict error
func Conflict(c *gin.Context, message string, errorCode ...string) {
	Error(c, http.StatusConflict, message, errorCode...)
}

// ValidationError sends a 422 Unprocessable Entity error
func ValidationError(c *gin.Context, message string, errorCode ...string) {
	Error(c, http.StatusUnprocessableEntity, message, errorCode...)
}

// InternalServerError sends a 500 Internal Server Error
func InternalServerError(c *gin.Context, message string, errorCode ...string) {
	Error(c, http.StatusInternalServerError, message, errorCode...)
}
