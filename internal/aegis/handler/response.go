// Package handler provides HTTP handlers for the aegis service.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeSuccess writes a success envelope with optional data.
func writeSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: data})
}

// writeError writes an error envelope with the given HTTP status.
func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Code: status, Message: message})
}
