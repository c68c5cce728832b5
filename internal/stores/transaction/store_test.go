package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakopay/ussd/internal/stores/session"
)

func newCapturedSession() *session.Session {
	return &session.Session{
		SessionID:    "at-session-1",
		PhoneNumber:  "+254700000001",
		ServiceCode:  "*384#",
		CurrentMenu:  "send_money_amount",
		Data:         session.StringMap{},
		Status:       session.StatusActive,
		StartedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastActivity: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecordCreatesOnePendingRow(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	sess := newCapturedSession()

	txn, err := store.Record(ctx, sess, "KES")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, txn.Status)
	assert.Equal(t, "at-session-1", txn.SessionID)
	assert.Equal(t, "+254700000001", txn.PhoneNumber)
	assert.Equal(t, "*384#", txn.ServiceCode)
	assert.Equal(t, "send_money_amount", txn.MenuType)
	assert.Equal(t, "KES", txn.Currency)
	assert.NotEmpty(t, txn.ReferenceID)
	assert.Nil(t, txn.Amount, "amount stays null until captured")
}

func TestRecordUpdatesInPlace(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	sess := newCapturedSession()

	first, err := store.Record(ctx, sess, "KES")
	require.NoError(t, err)

	// Later steps capture more data; the same row must be mutated
	sess.Data["amount"] = "250"
	sess.Data["recipient_phone"] = "+254711000002"
	sess.CurrentMenu = "send_money_confirm"

	second, err := store.Record(ctx, sess, "KES")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ReferenceID, second.ReferenceID)
	require.NotNil(t, second.Amount)
	assert.Equal(t, 250.0, *second.Amount)
	assert.Equal(t, "+254711000002", second.MenuData["recipient_phone"])

	// Creation-time fields stay frozen while the session moves on
	assert.Equal(t, "send_money_amount", second.MenuType)
	assert.Equal(t, "*384#", second.ServiceCode)

	t.Run("exactly one row per session", func(t *testing.T) {
		got, err := store.GetBySession(ctx, sess.SessionID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
	})
}

func TestRecordIgnoresUnparseableAmount(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	sess := newCapturedSession()
	sess.Data["amount"] = "lots"

	txn, err := store.Record(ctx, sess, "KES")
	require.NoError(t, err)
	assert.Nil(t, txn.Amount)
}

func TestFinalize(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	sess := newCapturedSession()

	_, err := store.Record(ctx, sess, "KES")
	require.NoError(t, err)

	require.NoError(t, store.Finalize(ctx, sess.SessionID, StatusCompleted, "pay-123"))

	txn, err := store.GetBySession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, txn.Status)
	assert.Equal(t, "pay-123", txn.PaymentRef)

	t.Run("terminal transactions are frozen", func(t *testing.T) {
		_, err := store.Record(ctx, sess, "KES")
		assert.ErrorIs(t, err, ErrFinalized)

		err = store.Finalize(ctx, sess.SessionID, StatusFailed, "pay-456")
		assert.ErrorIs(t, err, ErrFinalized)
	})

	t.Run("cannot finalize to pending", func(t *testing.T) {
		assert.Error(t, store.Finalize(ctx, sess.SessionID, StatusPending, ""))
	})

	t.Run("missing session", func(t *testing.T) {
		assert.ErrorIs(t, store.Finalize(ctx, "nope", StatusFailed, ""), ErrNotFound)
	})
}
