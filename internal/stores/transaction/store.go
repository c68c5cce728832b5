package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/sakopay/ussd/internal/stores/session"
)

var (
	// ErrNotFound is returned when no transaction exists for a session
	ErrNotFound = errors.New("transaction not found")
	// ErrFinalized is returned when mutating a terminal transaction
	ErrFinalized = errors.New("transaction already finalized")
)

// Store interface defines methods for transaction storage. Record is the
// upsert the engine calls on every transactional step; Finalize is driven
// by the payment collaborator's result
type Store interface {
	Record(ctx context.Context, sess *session.Session, currency string) (*Transaction, error)
	GetBySession(ctx context.Context, sessionID string) (*Transaction, error)
	Finalize(ctx context.Context, sessionID string, status Status, paymentRef string) error
}

// MySqlStore handles transaction persistence using GORM
type MySqlStore struct {
	db *gorm.DB
}

// NewMySqlStore creates a new transaction store with GORM connection
func NewMySqlStore(databaseURL string) (*MySqlStore, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &MySqlStore{db: db}

	// Auto-migrate tables
	if err := db.AutoMigrate(&Transaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return store, nil
}

// NewMySqlStoreFromDB wraps an existing GORM connection
func NewMySqlStoreFromDB(db *gorm.DB) (*MySqlStore, error) {
	if err := db.AutoMigrate(&Transaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}
	return &MySqlStore{db: db}, nil
}

// Record creates the session's transaction on first call and updates the
// same row in place on every later call. A session never owns two rows
func (s *MySqlStore) Record(ctx context.Context, sess *session.Session, currency string) (*Transaction, error) {
	var txn *Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Transaction
		result := tx.First(&existing, "session_id = ?", sess.SessionID)

		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to get transaction: %w", result.Error)
			}

			// First transactional step for this session. ServiceCode and
			// MenuType are frozen here and never updated
			txn = &Transaction{
				ReferenceID: uuid.New().String(),
				SessionID:   sess.SessionID,
				ServiceCode: sess.ServiceCode,
				MenuType:    sess.CurrentMenu,
				Currency:    currency,
				Status:      StatusPending,
			}
			txn.applySession(sess)

			if err := tx.Create(txn).Error; err != nil {
				return fmt.Errorf("failed to create transaction: %w", err)
			}
			return nil
		}

		if existing.Terminal() {
			return ErrFinalized
		}

		existing.applySession(sess)
		if err := tx.Save(&existing).Error; err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}

		txn = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

// GetBySession retrieves the transaction owned by a session
func (s *MySqlStore) GetBySession(ctx context.Context, sessionID string) (*Transaction, error) {
	var txn Transaction
	result := s.db.WithContext(ctx).First(&txn, "session_id = ?", sessionID)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", result.Error)
	}

	return &txn, nil
}

// Finalize moves a pending transaction to a terminal status and links the
// downstream payment record
func (s *MySqlStore) Finalize(ctx context.Context, sessionID string, status Status, paymentRef string) error {
	if status == StatusPending {
		return fmt.Errorf("cannot finalize to pending")
	}

	result := s.db.WithContext(ctx).Model(&Transaction{}).
		Where("session_id = ? AND status = ?", sessionID, StatusPending).
		Updates(map[string]any{
			"status":      status,
			"payment_ref": paymentRef,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finalize transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Either missing or already terminal
		var txn Transaction
		if err := s.db.WithContext(ctx).First(&txn, "session_id = ?", sessionID).Error; err != nil {
			return ErrNotFound
		}
		return ErrFinalized
	}

	return nil
}

// InMemoryStore is an in-memory transaction store (for tests)
type InMemoryStore struct {
	bySession map[string]*Transaction
	nextID    uint
	mu        sync.RWMutex
}

// NewInMemoryStore creates a new in-memory transaction store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		bySession: make(map[string]*Transaction),
		nextID:    1,
	}
}

// Record creates or updates the session's single transaction
func (s *InMemoryStore) Record(ctx context.Context, sess *session.Session, currency string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.bySession[sess.SessionID]
	if !exists {
		txn := &Transaction{
			ID:          s.nextID,
			ReferenceID: uuid.New().String(),
			SessionID:   sess.SessionID,
			ServiceCode: sess.ServiceCode,
			MenuType:    sess.CurrentMenu,
			Currency:    currency,
			Status:      StatusPending,
		}
		s.nextID++
		txn.applySession(sess)

		s.bySession[sess.SessionID] = txn
		copy := *txn
		return &copy, nil
	}

	if existing.Terminal() {
		return nil, ErrFinalized
	}

	existing.applySession(sess)
	copy := *existing
	return &copy, nil
}

// GetBySession retrieves the transaction owned by a session
func (s *InMemoryStore) GetBySession(ctx context.Context, sessionID string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, exists := s.bySession[sessionID]
	if !exists {
		return nil, ErrNotFound
	}

	copy := *txn
	return &copy, nil
}

// Finalize moves a pending transaction to a terminal status
func (s *InMemoryStore) Finalize(ctx context.Context, sessionID string, status Status, paymentRef string) error {
	if status == StatusPending {
		return fmt.Errorf("cannot finalize to pending")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn, exists := s.bySession[sessionID]
	if !exists {
		return ErrNotFound
	}
	if txn.Terminal() {
		return ErrFinalized
	}

	txn.Status = status
	txn.PaymentRef = paymentRef
	return nil
}
