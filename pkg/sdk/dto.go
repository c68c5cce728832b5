package sdk

import (
	"encoding/json"
	"time"
)

// StatusType labels an API response outcome
type StatusType string

const (
	StatusSuccess StatusType = "success"
	StatusFail    StatusType = "fail"
	StatusError   StatusType = "error"
)

// ApiResponse represents a standard API response structure
type ApiResponse[T any] struct {
	Status  StatusType `json:"status"`          // Status label
	Code    int        `json:"code"`            // HTTP status code
	Message string     `json:"message"`         // Human-readable message
	Data    T          `json:"data,omitempty"`  // Optional data field for successful responses
	Error   any        `json:"error,omitempty"` // Optional error field for error responses
}

// AsGinResponse converts the ApiResponse to a format suitable for Gin
func (r ApiResponse[T]) AsGinResponse() (int, any) {
	return r.Code, r
}

// AsJSON converts the ApiResponse to a JSON string
func (r ApiResponse[T]) AsJSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NewSuccessResponse builds a 200 response carrying data
func NewSuccessResponse[T any](message string, data T) ApiResponse[T] {
	return ApiResponse[T]{
		Status:  StatusSuccess,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse builds an error response
func NewErrorResponse(code int, message string, err any) ApiResponse[any] {
	return ApiResponse[any]{
		Status:  StatusError,
		Code:    code,
		Message: message,
		Error:   err,
	}
}

/** Requests and responses */

// SimulateRequest drives one keystroke of the admin menu-tree simulator.
// No gateway session id exists in this mode; scratch sessions are keyed by
// (phone_number, service_code)
type SimulateRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	ServiceCode string `json:"service_code" binding:"required"`
	Input       string `json:"input"`
}

// SimulateResponse mirrors what a live gateway caller would see
type SimulateResponse struct {
	Response      string `json:"response"`
	SessionActive bool   `json:"session_active"`
	CurrentMenu   string `json:"current_menu"`
}

// MenuOption is one selectable line of a menu screen
type MenuOption struct {
	Input    string `json:"input" binding:"required"`
	Label    string `json:"label" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Position int    `json:"position"`
}

// Menu is the authoring-facing form of a menu screen
type Menu struct {
	ID        uint      `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`

	MenuType        string `json:"menu_type" binding:"required"`
	Language        string `json:"language" binding:"required"`
	Content         string `json:"content" binding:"required"`
	IsDefault       bool   `json:"is_default"`
	IsActive        bool   `json:"is_active"`
	IsTransactional bool   `json:"is_transactional"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	CaptureKey      string `json:"capture_key,omitempty"`
	NextMenu        string `json:"next_menu,omitempty"`

	Options []MenuOption `json:"options"`
}

// Service maps a dialed short code to a menu-tree entry point
type Service struct {
	ID          uint   `json:"id,omitempty"`
	ServiceCode string `json:"service_code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	RootMenu    string `json:"root_menu" binding:"required"`
	Language    string `json:"language"`
	Currency    string `json:"currency"`
	Active      bool   `json:"active"`
}
