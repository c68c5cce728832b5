// Package interpreter implements the USSD menu state machine: given a
// session's position and one raw keystroke, it resolves the next menu,
// updates navigation history and produces the text to display. It consumes
// menus only through the read-only Resolver interface and performs no
// writes of its own; persisting the mutated session is the caller's job.
package interpreter

import (
	"context"
	"errors"
	"time"

	"github.com/sakopay/ussd/internal/stores/menu"
	"github.com/sakopay/ussd/internal/stores/session"
)

// Fixed texts shown to the caller. Configuration and input errors are
// handled here and never surface as errors to the adapter.
const (
	NotConfiguredText = "Service not configured. Please try again later."
	GoodbyeText       = "Thank you for using our service. Goodbye."
	InvalidOptionText = "Invalid choice. Please try again."
	SessionEndedText  = "This session has ended. Please dial again."
)

// Resolver is the read-only menu lookup the interpreter consumes. It must
// return menu.ErrNotFound when no active menu exists for the key; any
// other error is treated as a store fault and propagated
type Resolver interface {
	ActiveMenu(ctx context.Context, menuType, language string) (*menu.Menu, error)
}

// Result is the outcome of one processed keystroke
type Result struct {
	// Response is the text to display
	Response string
	// Terminal reports whether the session reached a terminal status
	Terminal bool
	// Transactional reports whether this step touched a menu marked
	// transactional, meaning the transaction recorder should run
	Transactional bool
}

// Options configures an Interpreter
type Options struct {
	// DefaultTimeout is the inactivity budget for menus that don't set
	// their own
	DefaultTimeout time.Duration

	// MaxInvalidRetries caps consecutive unmatched keystrokes before the
	// session is force-ended as cancelled. Zero means unlimited
	MaxInvalidRetries int

	// Clock overrides time.Now (for tests)
	Clock func() time.Time
}

// Interpreter drives sessions through a menu tree
type Interpreter struct {
	menus          Resolver
	defaultTimeout time.Duration
	maxInvalid     int
	now            func() time.Time
}

// New creates an interpreter over the given menu resolver
func New(menus Resolver, opts Options) *Interpreter {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 90 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Interpreter{
		menus:          menus,
		defaultTimeout: opts.DefaultTimeout,
		maxInvalid:     opts.MaxInvalidRetries,
		now:            opts.Clock,
	}
}

// Process applies one raw keystroke to the session, mutating it in place
// (position, history, scratch data, audit steps, status, timestamps). The
// returned error is non-nil only for store faults; misconfigured menus and
// unmatched input are resolved to caller-facing text internally.
//
// A session already in a terminal status is never mutated: the same ended
// notice is returned on every call.
func (i *Interpreter) Process(ctx context.Context, sess *session.Session, input string) (Result, error) {
	if !sess.Active() {
		return Result{Response: SessionEndedText, Terminal: true}, nil
	}

	now := i.now().UTC()

	current, err := i.menus.ActiveMenu(ctx, sess.CurrentMenu, sess.Language)
	if err != nil {
		if errors.Is(err, menu.ErrNotFound) {
			return i.notConfigured(sess, input, now), nil
		}
		return Result{}, err
	}
	i.applyTimeout(sess, current)

	// First entry to a menu: render it without consuming input
	if input == "" {
		return i.step(sess, input, render(current), false, current.IsTransactional, now), nil
	}

	opt, matched := current.Match(input)
	if !matched {
		// Free-entry screens swallow unmatched input into scratch data
		if current.CaptureKey != "" {
			return i.capture(ctx, sess, current, input, now)
		}

		sess.InvalidCount++
		if i.maxInvalid > 0 && sess.InvalidCount >= i.maxInvalid {
			sess.End(session.StatusCancelled, now)
			return i.step(sess, input, GoodbyeText, true, false, now), nil
		}

		// Re-prompt without moving: this path is idempotent and
		// retryable, only the audit trail and timestamps advance
		return i.step(sess, input, InvalidOptionText+"\n\n"+render(current), false, current.IsTransactional, now), nil
	}

	sess.InvalidCount = 0

	switch action := opt.ParsedAction(); action.Kind {
	case menu.ActionExit:
		sess.End(session.StatusCompleted, now)
		return i.step(sess, input, GoodbyeText, true, false, now), nil

	case menu.ActionBack:
		// Pop without pushing; fall back to the service root when the
		// history is already empty
		if prev, ok := sess.PopHistory(); ok {
			sess.CurrentMenu = prev
		} else {
			sess.CurrentMenu = sess.RootMenu
		}
		return i.enter(ctx, sess, current, input, now)

	case menu.ActionGoto:
		// A goto targeting the menu it came from re-renders in place;
		// pushing would put the current node on its own history
		if action.Target != sess.CurrentMenu {
			sess.PushHistory(sess.CurrentMenu)
			sess.CurrentMenu = action.Target
		}
		return i.enter(ctx, sess, current, input, now)

	default:
		// Unreachable: ParseAction covers every kind
		return i.notConfigured(sess, input, now), nil
	}
}

// capture stores free-form input under the menu's capture key and advances
// to its configured next menu
func (i *Interpreter) capture(ctx context.Context, sess *session.Session, current *menu.Menu, input string, now time.Time) (Result, error) {
	if sess.Data == nil {
		sess.Data = make(session.StringMap)
	}
	sess.Data[current.CaptureKey] = input
	sess.InvalidCount = 0

	sess.PushHistory(sess.CurrentMenu)
	sess.CurrentMenu = current.NextMenu
	return i.enter(ctx, sess, current, input, now)
}

// enter resolves sess.CurrentMenu after a transition and renders it. The
// menu that processed the keystroke is passed along so transactional
// screens (amount entry and the like) trigger the recorder on the step
// that captured their data
func (i *Interpreter) enter(ctx context.Context, sess *session.Session, from *menu.Menu, input string, now time.Time) (Result, error) {
	target, err := i.menus.ActiveMenu(ctx, sess.CurrentMenu, sess.Language)
	if err != nil {
		if errors.Is(err, menu.ErrNotFound) {
			return i.notConfigured(sess, input, now), nil
		}
		return Result{}, err
	}
	i.applyTimeout(sess, target)

	transactional := from.IsTransactional || target.IsTransactional
	return i.step(sess, input, render(target), false, transactional, now), nil
}

// notConfigured handles a missing or inactive menu: fail safe, not open.
// The caller gets a fixed notice and the session ends immediately instead
// of stranding them on a dead screen
func (i *Interpreter) notConfigured(sess *session.Session, input string, now time.Time) Result {
	sess.End(session.StatusCompleted, now)
	return i.step(sess, input, NotConfiguredText, true, false, now)
}

// step finalizes one processed keystroke: every branch appends exactly one
// audit entry and refreshes the activity timestamp
func (i *Interpreter) step(sess *session.Session, input, response string, terminal, transactional bool, now time.Time) Result {
	sess.AppendStep(input, response, now)
	sess.Touch(now)

	return Result{
		Response:      response,
		Terminal:      terminal,
		Transactional: transactional,
	}
}

// applyTimeout refreshes the session's inactivity budget from the menu
// being shown, falling back to the platform default
func (i *Interpreter) applyTimeout(sess *session.Session, m *menu.Menu) {
	if m.TimeoutSeconds > 0 {
		sess.TimeoutSeconds = m.TimeoutSeconds
	} else {
		sess.TimeoutSeconds = int(i.defaultTimeout.Seconds())
	}
}
