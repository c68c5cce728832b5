// Package engine wires the gateway-facing request flow together: it loads
// or creates the session, runs the interpreter, persists the mutated state
// and invokes the transaction recorder for transactional steps.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sakopay/ussd/internal/interpreter"
	"github.com/sakopay/ussd/internal/stores/menu"
	"github.com/sakopay/ussd/internal/stores/session"
	"github.com/sakopay/ussd/internal/stores/transaction"
)

// Gateway retries can overlap a live request for the same session; the
// version check rejects the loser and we reprocess from fresh state
const maxSaveAttempts = 3

// Request carries the four inputs every adapter produces
type Request struct {
	SessionID   string
	PhoneNumber string
	ServiceCode string
	Input       string
}

// Reply is the adapter-facing outcome of one keystroke
type Reply struct {
	Response    string
	Active      bool
	CurrentMenu string
}

// Options configures an Engine
type Options struct {
	// Transactions receives recorder upserts on transactional steps.
	// Nil disables recording (the simulator runs without it)
	Transactions transaction.Store

	DefaultTimeout    time.Duration
	MaxInvalidRetries int

	// Clock overrides time.Now (for tests)
	Clock func() time.Time
}

// Engine orchestrates one USSD interaction per call
type Engine struct {
	sessions session.Store
	menus    menu.Store
	txns     transaction.Store
	interp   *interpreter.Interpreter
	now      func() time.Time
}

// New creates an engine over the given stores
func New(sessions session.Store, menus menu.Store, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Engine{
		sessions: sessions,
		menus:    menus,
		txns:     opts.Transactions,
		interp: interpreter.New(menus, interpreter.Options{
			DefaultTimeout:    opts.DefaultTimeout,
			MaxInvalidRetries: opts.MaxInvalidRetries,
			Clock:             opts.Clock,
		}),
		now: opts.Clock,
	}
}

// Handle processes one keystroke end to end. Conflicting concurrent writes
// for the same session are retried from fresh state a bounded number of
// times before surfacing as a transient failure
func (e *Engine) Handle(ctx context.Context, req Request) (Reply, error) {
	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		reply, err := e.handleOnce(ctx, req)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, session.ErrConflict) {
			return Reply{}, err
		}
		lastErr = err
	}

	return Reply{}, fmt.Errorf("session %s is contended: %w", req.SessionID, lastErr)
}

func (e *Engine) handleOnce(ctx context.Context, req Request) (Reply, error) {
	sess, err := e.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			return Reply{}, err
		}

		sess, err = e.createSession(ctx, req)
		if err != nil {
			return Reply{}, err
		}
		if sess == nil {
			// Unknown short code: nothing to interpret against
			return Reply{Response: interpreter.NotConfiguredText, Active: false}, nil
		}
	}

	stepsBefore := len(sess.Steps)
	result, err := e.interp.Process(ctx, sess, req.Input)
	if err != nil {
		return Reply{}, err
	}

	// A replay against an ended session mutates nothing; skip the save so
	// terminal state stays frozen
	if newSteps := sess.Steps[stepsBefore:]; len(newSteps) > 0 {
		if err := e.sessions.SaveSession(ctx, sess, newSteps...); err != nil {
			return Reply{}, err
		}
	}

	if result.Transactional && e.txns != nil {
		e.record(ctx, sess)
	}

	return Reply{
		Response:    result.Response,
		Active:      !result.Terminal,
		CurrentMenu: sess.CurrentMenu,
	}, nil
}

// createSession starts a session at the service's root menu. Returns
// (nil, nil) when the dialed short code is not registered
func (e *Engine) createSession(ctx context.Context, req Request) (*session.Session, error) {
	svc, err := e.menus.ServiceByCode(ctx, req.ServiceCode)
	if err != nil {
		if errors.Is(err, menu.ErrNotFound) {
			log.Printf("[ENGINE]: No service registered for code %s", req.ServiceCode)
			return nil, nil
		}
		return nil, err
	}

	now := e.now().UTC()
	sess := &session.Session{
		SessionID:    req.SessionID,
		PhoneNumber:  req.PhoneNumber,
		ServiceCode:  req.ServiceCode,
		Language:     svc.Language,
		RootMenu:     svc.RootMenu,
		CurrentMenu:  svc.RootMenu,
		Data:         session.StringMap{},
		Status:       session.StatusActive,
		StartedAt:    now,
		LastActivity: now,
	}

	if err := e.sessions.CreateSession(ctx, sess); err != nil {
		// A concurrent duplicate request may have created it first;
		// treat that as contention so the caller's retry reloads it.
		// Anything else is a real store fault and surfaces as-is
		if errors.Is(err, session.ErrExists) {
			return nil, fmt.Errorf("%w: %v", session.ErrConflict, err)
		}
		return nil, err
	}

	return sess, nil
}

// record upserts the session's transaction row. Recorder failures are
// logged, not surfaced: the caller still gets their screen and the next
// transactional step retries the upsert
func (e *Engine) record(ctx context.Context, sess *session.Session) {
	currency := ""
	if svc, err := e.menus.ServiceByCode(ctx, sess.ServiceCode); err == nil {
		currency = svc.Currency
	}

	if _, err := e.txns.Record(ctx, sess, currency); err != nil && !errors.Is(err, transaction.ErrFinalized) {
		log.Printf("[ENGINE]: Failed to record transaction for session %s: %v", sess.SessionID, err)
	}
}
