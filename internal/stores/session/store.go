package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no session matches a lookup
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned when creating a session whose id is taken
	ErrExists = errors.New("session already exists")
	// ErrConflict is returned when a save races another writer for the
	// same session_id. The caller must reload and reprocess
	ErrConflict = errors.New("session was modified concurrently")
)

// Store interface defines methods for session storage. SaveSession is a
// version-checked read-modify-write: concurrent writers for the same
// session_id are serialized and the loser gets ErrConflict
type Store interface {
	CreateSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	SaveSession(ctx context.Context, sess *Session, newSteps ...*Step) error
	DeleteSession(ctx context.Context, sessionID string) error
	ExpireIdle(ctx context.Context, now time.Time) (int, error)
}

// MySqlStore handles session persistence using GORM
type MySqlStore struct {
	db *gorm.DB
}

// NewMySqlStore creates a new session store with GORM connection
func NewMySqlStore(databaseURL string) (*MySqlStore, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &MySqlStore{db: db}

	// Auto-migrate tables
	if err := db.AutoMigrate(&Session{}, &Step{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return store, nil
}

// NewMySqlStoreFromDB wraps an existing GORM connection
func NewMySqlStoreFromDB(db *gorm.DB) (*MySqlStore, error) {
	if err := db.AutoMigrate(&Session{}, &Step{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}
	return &MySqlStore{db: db}, nil
}

// CreateSession inserts a fresh session row. A duplicate session_id maps
// to ErrExists so callers can tell a racing creator from a store fault
func (s *MySqlStore) CreateSession(ctx context.Context, sess *Session) error {
	result := s.db.WithContext(ctx).Create(sess)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrExists, sess.SessionID)
		}
		return fmt.Errorf("failed to create session: %w", result.Error)
	}
	return nil
}

// GetSession retrieves a session by the gateway-assigned id, with its audit
// steps preloaded in order
func (s *MySqlStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	result := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_index ASC")
		}).
		First(&sess, "session_id = ?", sessionID)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", result.Error)
	}

	return &sess, nil
}

// SaveSession persists the mutated session and its new audit steps. The
// update only lands if the stored version still matches the version the
// session was loaded with; otherwise ErrConflict is returned and nothing
// is written
func (s *MySqlStore) SaveSession(ctx context.Context, sess *Session, newSteps ...*Step) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"current_menu":    sess.CurrentMenu,
			"history":         sess.History,
			"data":            sess.Data,
			"status":          sess.Status,
			"last_activity":   sess.LastActivity,
			"ended_at":        sess.EndedAt,
			"timeout_seconds": sess.TimeoutSeconds,
			"step_count":      sess.StepCount,
			"invalid_count":   sess.InvalidCount,
			"version":         sess.Version + 1,
		}

		result := tx.Model(&Session{}).
			Where("session_id = ? AND version = ?", sess.SessionID, sess.Version).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to save session: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}

		// Insert steps one-by-one to persist ordering
		for _, step := range newSteps {
			if err := tx.Create(step).Error; err != nil {
				return fmt.Errorf("failed to save step: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	sess.Version++
	return nil
}

// DeleteSession removes a session and its audit steps
func (s *MySqlStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&Step{}).Error; err != nil {
			return fmt.Errorf("failed to delete steps: %w", err)
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&Session{}).Error; err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}

// ExpireIdle transitions every active session whose inactivity budget has
// run out to the timeout status, with ended_at pinned to the moment the
// budget expired. Each transition is version-checked so a live request
// racing the sweep wins or loses cleanly, never both
func (s *MySqlStore) ExpireIdle(ctx context.Context, now time.Time) (int, error) {
	var stale []*Session
	result := s.db.WithContext(ctx).
		Where("status = ? AND last_activity < DATE_SUB(?, INTERVAL timeout_seconds SECOND)", StatusActive, now).
		Find(&stale)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to query idle sessions: %w", result.Error)
	}

	expired := 0
	for _, sess := range stale {
		endedAt := sess.LastActivity.Add(time.Duration(sess.TimeoutSeconds) * time.Second)

		res := s.db.WithContext(ctx).Model(&Session{}).
			Where("session_id = ? AND version = ? AND status = ?", sess.SessionID, sess.Version, StatusActive).
			Updates(map[string]any{
				"status":   StatusTimeout,
				"ended_at": endedAt,
				"version":  sess.Version + 1,
			})
		if res.Error != nil {
			return expired, fmt.Errorf("failed to expire session %s: %w", sess.SessionID, res.Error)
		}
		if res.RowsAffected > 0 {
			expired++
		}
	}

	return expired, nil
}

// Close closes the database connection
func (s *MySqlStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return sqlDB.Close()
}

// InMemoryStore is an in-memory session store. It backs tests and the
// admin simulator, which must never touch the production store
type InMemoryStore struct {
	sessions map[string]*Session
	nextID   uint
	mu       sync.RWMutex
}

// NewInMemoryStore creates a new in-memory session store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
		nextID:   1,
	}
}

// CreateSession inserts a fresh session
func (s *InMemoryStore) CreateSession(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.SessionID]; exists {
		return fmt.Errorf("%w: %s", ErrExists, sess.SessionID)
	}

	sess.ID = s.nextID
	s.nextID++

	s.sessions[sess.SessionID] = sess.Clone()
	return nil
}

// GetSession retrieves a session by id. A deep copy is returned so the
// caller's mutations stay private until SaveSession
func (s *InMemoryStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrNotFound
	}

	return sess.Clone(), nil
}

// SaveSession persists the mutated session under the same version check as
// the MySQL store
func (s *InMemoryStore) SaveSession(ctx context.Context, sess *Session, newSteps ...*Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.sessions[sess.SessionID]
	if !exists {
		return ErrNotFound
	}
	if stored.Version != sess.Version {
		return ErrConflict
	}

	sess.Version++
	s.sessions[sess.SessionID] = sess.Clone()
	return nil
}

// DeleteSession removes a session and its audit steps
func (s *InMemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// ExpireIdle transitions idle active sessions to the timeout status
func (s *InMemoryStore) ExpireIdle(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, sess := range s.sessions {
		if !sess.Active() {
			continue
		}

		deadline := sess.LastActivity.Add(time.Duration(sess.TimeoutSeconds) * time.Second)
		if deadline.Before(now) {
			sess.End(StatusTimeout, deadline)
			sess.Version++
			expired++
		}
	}

	return expired, nil
}
