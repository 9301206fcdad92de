package response

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wonny/marketpulse/internal/pkg/logger"
)

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details
type ErrorDetail struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes
const (
	// General errors
	ErrCodeInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTimeout          = "TIMEOUT"

	// Database errors
	ErrCodeDatabaseError = "DATABASE_ERROR"

	// Business logic errors
	ErrCodeBusinessRuleViolation = "BUSINESS_RULE_VIOLATION"
)

// Error sends an error response
func Error(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	ErrorWithDetails(w, r, statusCode, code, message, "")
}

// ErrorWithDetails sends an error response with additional details
func ErrorWithDetails(w http.ResponseWriter, r *http.Request, statusCode int, code, message, details string) {
	resp := ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: logger.RequestID(r.Context()),
			Timestamp: time.Now(),
		},
	}

	event := log.Warn()
	if statusCode >= 500 {
		event = log.Error()
	}
	event.
		Str("request_id", resp.Error.RequestID).
		Str("error_code", code).
		Str("message", message).
		Str("details", details).
		Int("status", statusCode).
		Msg("API error response")

	JSON(w, statusCode, resp)
}

// BadRequest sends a 400 Bad Request error
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, ErrCodeInvalidParameter, message)
}

// NotFound sends a 404 Not Found error
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict sends a 409 Conflict error
func Conflict(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusConflict, ErrCodeConflict, message)
}

// InternalError sends a 500 Internal Server Error
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	ErrorWithDetails(w, r, http.StatusInternalServerError, ErrCodeInternalServer, "An unexpected error occurred", details)
}

// DatabaseError sends a database error response
func DatabaseError(w http.ResponseWriter, r *http.Request, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	ErrorWithDetails(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Database operation failed", details)
}

// Timeout sends a 504 Gateway Timeout error
func Timeout(w http.ResponseWriter, r *http.Request, err error) {
	ErrorWithDetails(w, r, http.StatusGatewayTimeout, ErrCodeTimeout, "Operation timed out", err.Error())
}

// BusinessRuleViolation sends a business rule violation error
func BusinessRuleViolation(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusUnprocessableEntity, ErrCodeBusinessRuleViolation, message)
}
