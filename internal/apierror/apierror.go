package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/containershare/lifecycle"
	"github.com/containershare/lifecycle/config"
	"github.com/containershare/lifecycle/gateway"
)

type ErrorCode string

const (
	ErrUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrBadRequest           ErrorCode = "BAD_REQUEST"
	ErrBatchInProgress      ErrorCode = "BATCH_IN_PROGRESS"
	ErrConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"
	ErrGatewayUnavailable   ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrInternalServer       ErrorCode = "INTERNAL_SERVER_ERROR"
)

var titles = map[ErrorCode]string{
	ErrUnauthorized:         "Unauthorized",
	ErrBadRequest:           "Bad request",
	ErrBatchInProgress:      "Batch already in progress",
	ErrConfigurationMissing: "Configuration missing",
	ErrGatewayUnavailable:   "Records store unavailable",
	ErrInternalServer:       "Internal server error",
}

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Title is the short label sent in the "error" field of a response.
func (e APIError) Title() string {
	if title, ok := titles[e.Code]; ok {
		return title
	}
	return titles[ErrInternalServer]
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// FromError classifies err into an APIError. An APIError is returned as is.
func FromError(err error) APIError {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, lifecycle.ErrBatchInProgress):
		return APIError{Code: ErrBatchInProgress, Message: err.Error()}
	case errors.Is(err, config.ErrConfigurationMissing):
		return APIError{Code: ErrConfigurationMissing, Message: err.Error()}
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		return APIError{Code: ErrGatewayUnavailable, Message: err.Error()}
	default:
		return APIError{Code: ErrInternalServer, Message: err.Error()}
	}
}

func MapErrorToHTTPStatus(err error) int {
	switch FromError(err).Code {
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrBatchInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
