package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIResponse is the envelope of catalog responses
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and the principal's roles
type LoginResponse struct {
	Token string   `json:"token"`
	Roles []string `json:"roles"`
}

// RegisterRequest is the body of POST /api/v1/auth/register
type RegisterRequest struct {
	Username        string   `json:"username"`
	Password        string   `json:"password"`
	ConfirmPassword *string  `json:"confirmPassword"`
	Roles           []string `json:"roles"`
}

// RegisterResponse describes the created principal
type RegisterResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		return json.NewEncoder(w).Encode(data)
	}
	return nil
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// writeEnvelope wraps data in the catalog response envelope
func writeEnvelope(w http.ResponseWriter, statusCode int, data interface{}) {
	WriteJSON(w, statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// MaxRequestBodyBytes caps JSON request bodies
const MaxRequestBodyBytes = 1 << 20

// decodeJSON decodes the request body into dst, reading at most MaxRequestBodyBytes
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)).Decode(dst)
}

// readJSON decodes the body into dst, answering 413 or 400 when it cannot
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := decodeJSON(w, r, dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
		return false
	}
	WriteError(w, http.StatusBadRequest, MsgInvalidBody)
	return false
}
