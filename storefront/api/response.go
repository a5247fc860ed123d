package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

type ApiResponse struct {
	Message         string `json:"message"`
	Data            any    `json:"data,omitempty"`
	Error           bool   `json:"error,omitempty"`
	RequestedEntity string `json:"requested_entity,omitempty"`
}

func SuccessResponse(c *gin.Context, message string, data any) ApiResponse {
	return ApiResponse{
		Message:         message,
		Data:            data,
		RequestedEntity: c.Request.Method + " " + c.FullPath(),
	}
}

func ErrorResponse(c *gin.Context, message string) ApiResponse {
	return ApiResponse{
		Message:         message,
		Error:           true,
		RequestedEntity: c.Request.Method + " " + c.FullPath(),
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, contract.ErrValidation), errors.Is(err, contract.ErrUnknownTool):
		return http.StatusBadRequest
	case errors.Is(err, contract.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contract.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, contract.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, contract.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse(c, message))
}
