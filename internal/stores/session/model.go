package session

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Status is the lifecycle state of a session
type Status string

const (
	// StatusActive means the caller is mid-interaction
	StatusActive Status = "active"
	// StatusCompleted means the session ended normally
	StatusCompleted Status = "completed"
	// StatusTimeout means the reaper ended the session for inactivity
	StatusTimeout Status = "timeout"
	// StatusCancelled means the session was ended by policy or operator
	StatusCancelled Status = "cancelled"
)

// StringMap is a string-keyed map stored as a JSON column
type StringMap map[string]string

// Value implements the driver.Valuer interface for database storage
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *StringMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringMap", value)
	}

	return json.Unmarshal(bytes, m)
}

// StringList is an ordered string slice stored as a JSON column
type StringList []string

// Value implements the driver.Valuer interface for database storage
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for database retrieval
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}

	return json.Unmarshal(bytes, l)
}

// Session represents one caller's interaction with a USSD service. The
// gateway assigns SessionID and replays it on every keystroke
type Session struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`

	SessionID   string `json:"session_id" gorm:"column:session_id;size:100;uniqueIndex;not null"`
	PhoneNumber string `json:"phone_number" gorm:"column:phone_number;size:20;index;not null"`
	ServiceCode string `json:"service_code" gorm:"column:service_code;size:20;not null"`
	Language    string `json:"language" gorm:"column:language;size:8;not null;default:en"`

	// RootMenu is the service entry point, the fallback target for "back"
	// when the history is empty
	RootMenu string `json:"root_menu" gorm:"column:root_menu;size:50;not null"`

	// Position in the menu tree. History holds previously visited menu
	// types and never contains the current one
	CurrentMenu string     `json:"current_menu" gorm:"column:current_menu;size:50"`
	History     StringList `json:"history" gorm:"column:history;type:text"`

	// Data accumulates multi-step input (amount, recipient_phone, ...)
	Data StringMap `json:"data" gorm:"column:data;type:text"`

	Status       Status     `json:"status" gorm:"column:status;size:16;index;default:active"`
	StartedAt    time.Time  `json:"started_at" gorm:"column:started_at;not null"`
	LastActivity time.Time  `json:"last_activity" gorm:"column:last_activity;index"`
	EndedAt      *time.Time `json:"ended_at,omitempty" gorm:"column:ended_at"`

	// TimeoutSeconds is the inactivity budget of the current menu,
	// refreshed on every menu entry
	TimeoutSeconds int `json:"timeout_seconds" gorm:"column:timeout_seconds;not null"`

	StepCount    int `json:"step_count" gorm:"column:step_count;default:0"`
	InvalidCount int `json:"invalid_count" gorm:"column:invalid_count;default:0"`

	// Version backs the optimistic concurrency check on save
	Version uint `json:"version" gorm:"column:version;default:0"`

	Steps []*Step `json:"steps,omitempty" gorm:"foreignKey:SessionID;references:SessionID"`
}

// TableName sets the table name for GORM
func (Session) TableName() string {
	return "ussd_sessions"
}

// Active reports whether the session can still process input
func (s *Session) Active() bool {
	return s.Status == StatusActive
}

// Touch refreshes the activity timestamp
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// End transitions the session to a terminal status. EndedAt is set exactly
// once; calling End on an already-ended session is a no-op
func (s *Session) End(status Status, at time.Time) {
	if !s.Active() {
		return
	}
	s.Status = status
	ended := at
	s.EndedAt = &ended
}

// PushHistory records the current menu before a forward transition
func (s *Session) PushHistory(menuType string) {
	s.History = append(s.History, menuType)
}

// PopHistory removes and returns the most recently visited menu
func (s *Session) PopHistory() (string, bool) {
	if len(s.History) == 0 {
		return "", false
	}
	last := s.History[len(s.History)-1]
	s.History = s.History[:len(s.History)-1]
	return last, true
}

// AppendStep adds one audit entry for a processed keystroke
func (s *Session) AppendStep(input, response string, at time.Time) *Step {
	step := &Step{
		SessionID: s.SessionID,
		StepIndex: s.StepCount,
		Input:     input,
		Response:  response,
		CreatedAt: at,
	}
	s.StepCount++
	s.Steps = append(s.Steps, step)
	return step
}

// DurationSeconds returns the elapsed lifetime of the session
func (s *Session) DurationSeconds(now time.Time) float64 {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	return end.Sub(s.StartedAt).Seconds()
}

// Clone returns a deep copy so callers of the in-memory store can mutate
// freely without racing the stored state
func (s *Session) Clone() *Session {
	clone := *s

	clone.History = make(StringList, len(s.History))
	copy(clone.History, s.History)

	clone.Data = make(StringMap, len(s.Data))
	maps.Copy(clone.Data, s.Data)

	clone.Steps = make([]*Step, len(s.Steps))
	for i, step := range s.Steps {
		stepCopy := *step
		clone.Steps[i] = &stepCopy
	}

	if s.EndedAt != nil {
		ended := *s.EndedAt
		clone.EndedAt = &ended
	}

	return &clone
}

// Step is one append-only audit entry: the keystroke received and the
// screen returned for it
type Step struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`

	SessionID string `json:"session_id" gorm:"column:session_id;size:100;not null;index"`
	StepIndex int    `json:"step_index" gorm:"column:step_index;not null"`
	Input     string `json:"input" gorm:"column:input;size:100"`
	Response  string `json:"response" gorm:"column:response;type:text"`
}

// TableName sets the table name for GORM
func (Step) TableName() string {
	return "ussd_steps"
}
