package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wonny/marketpulse/internal/pkg/logger"
)

// SuccessResponse represents a successful API response
type SuccessResponse struct {
	Data interface{} `json:"data"`
	Meta Meta        `json:"meta"`
}

// Meta represents metadata in response
type Meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	Count     int       `json:"count,omitempty"`
}

// Success sends a successful response with data
func Success(w http.ResponseWriter, r *http.Request, data interface{}) {
	JSON(w, http.StatusOK, SuccessResponse{Data: data, Meta: meta(r, "", 0)})
}

// SuccessWithMessage sends a successful response with data and message
func SuccessWithMessage(w http.ResponseWriter, r *http.Request, data interface{}, message string) {
	JSON(w, http.StatusOK, SuccessResponse{Data: data, Meta: meta(r, message, 0)})
}

// SuccessList sends a successful response with list data and count
func SuccessList(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	JSON(w, http.StatusOK, SuccessResponse{Data: data, Meta: meta(r, "", count)})
}

// Created sends a 201 Created response
func Created(w http.ResponseWriter, r *http.Request, data interface{}, message string) {
	JSON(w, http.StatusCreated, SuccessResponse{Data: data, Meta: meta(r, message, 0)})
}

// JSON writes v with the given status code
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Int("status", status).Msg("Failed to encode response")
	}
}

func meta(r *http.Request, message string, count int) Meta {
	return Meta{
		RequestID: logger.RequestID(r.Context()),
		Timestamp: time.Now(),
		Message:   message,
		Count:     count,
	}
}
