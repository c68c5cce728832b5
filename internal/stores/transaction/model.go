package transaction

import (
	"strconv"
	"time"

	"github.com/sakopay/ussd/internal/stores/session"
)

// Status is the lifecycle state of a transaction
type Status string

const (
	// StatusPending means the transaction is being assembled from session input
	StatusPending Status = "pending"
	// StatusCompleted means a downstream payment was linked
	StatusCompleted Status = "completed"
	// StatusFailed means the payment collaborator rejected the transaction
	StatusFailed Status = "failed"
	// StatusCancelled means the caller or an operator abandoned it
	StatusCancelled Status = "cancelled"
)

// Transaction is the business record bound to a session. Exactly one row
// exists per session: created pending on the first transactional step and
// mutated in place as later steps capture amount and recipient
type Transaction struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`

	ReferenceID string `json:"reference_id" gorm:"column:reference_id;type:char(36);uniqueIndex;not null"`
	SessionID   string `json:"session_id" gorm:"column:session_id;size:100;uniqueIndex;not null"`
	PhoneNumber string `json:"phone_number" gorm:"column:phone_number;size:20;index;not null"`

	// Amount stays null until the caller has typed one
	Amount   *float64 `json:"amount,omitempty" gorm:"column:amount"`
	Currency string   `json:"currency,omitempty" gorm:"column:currency;size:8"`

	Status Status `json:"status" gorm:"column:status;size:16;index;default:pending"`

	// Captured at creation time
	ServiceCode string `json:"service_code" gorm:"column:service_code;size:20"`
	MenuType    string `json:"menu_type" gorm:"column:menu_type;size:50"`

	Text     string            `json:"text,omitempty" gorm:"column:text;type:text"`
	MenuData session.StringMap `json:"menu_data,omitempty" gorm:"column:menu_data;type:text"`

	// PaymentRef links the downstream payment record once finalized
	PaymentRef string `json:"payment_ref,omitempty" gorm:"column:payment_ref;size:100"`
}

// TableName sets the table name for GORM
func (Transaction) TableName() string {
	return "ussd_transactions"
}

// Terminal reports whether the transaction can no longer be mutated
func (t *Transaction) Terminal() bool {
	return t.Status != StatusPending
}

// applySession mirrors the session's captured scratch data onto the
// transaction. ServiceCode and MenuType are creation-time fields and are
// never touched here. Amount is only set once the caller has typed a
// parseable number
func (t *Transaction) applySession(sess *session.Session) {
	t.PhoneNumber = sess.PhoneNumber
	t.MenuData = make(session.StringMap, len(sess.Data))
	for k, v := range sess.Data {
		t.MenuData[k] = v
	}

	if raw, ok := sess.Data["amount"]; ok {
		if amount, err := strconv.ParseFloat(raw, 64); err == nil {
			t.Amount = &amount
		}
	}
}
