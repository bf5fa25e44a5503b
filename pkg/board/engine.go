// Package board keeps a role-scoped view of operational records in sync with
// the board backend. It polls on a fixed interval and applies status toggles
// optimistically.
package board

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tinyland-inc/mediassist/pkg/backend"
	"github.com/tinyland-inc/mediassist/pkg/bus"
	"github.com/tinyland-inc/mediassist/pkg/logger"
	"github.com/tinyland-inc/mediassist/pkg/utils"
)

const DefaultPollInterval = 5 * time.Second

// Client is the board backend. backend.BoardClient satisfies it.
type Client interface {
	Dashboard(ctx context.Context, role, scopeID string) (*backend.DashboardResponse, error)
	UpdateStatus(ctx context.Context, resource string, id backend.RecordID, status string) error
}

// Session describes the active login.
type Session struct {
	Role    Role
	ScopeID string
	Title   string
}

// Snapshot is the full observable board state.
type Snapshot struct {
	Role    Role     `json:"role"`
	Title   string   `json:"title"`
	Records []Record `json:"records"`
}

type Engine struct {
	client   Client
	notifier bus.Notifier
	interval time.Duration

	// lifecycle serialises Login, Logout and Close so at most one poller runs.
	lifecycle sync.Mutex

	mu         sync.RWMutex
	session    *Session
	records    []Record
	generation uint64
	cancelPoll context.CancelFunc
	pollDone   chan struct{}
}

type Option func(*Engine)

func WithNotifier(n bus.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

func NewEngine(client Client, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		notifier: bus.Discard,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Login opens a role-scoped session. The doctor role needs a scope id; the
// other roles ignore it. A successful login replaces any current session and
// restarts polling. A failed one leaves the current session untouched.
func (e *Engine) Login(ctx context.Context, roleName, scopeID string) error {
	role, err := ParseRole(roleName)
	if err != nil {
		return err
	}
	scopeID = strings.TrimSpace(scopeID)
	if role == RoleDoctor {
		if scopeID == "" {
			return ErrScopeRequired
		}
		if err := utils.ValidateScopeID(scopeID); err != nil {
			return fmt.Errorf("%w: %w", ErrScopeRequired, err)
		}
	} else {
		scopeID = ""
	}

	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	resp, err := e.client.Dashboard(ctx, string(role), scopeID)
	if err != nil {
		logger.WarnCF("board", "Login failed", map[string]any{
			"role":  role,
			"scope": scopeID,
			"error": err,
		})
		e.notify(bus.KindNotice, NoticeAuthFailed)
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	e.stopPoller()

	pollCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.mu.Lock()
	e.generation++
	e.session = &Session{Role: role, ScopeID: scopeID, Title: resp.Role}
	e.records = resp.Records
	e.cancelPoll = cancel
	e.pollDone = done
	e.mu.Unlock()

	go e.poll(pollCtx, done)

	logger.InfoCF("board", "Logged in", map[string]any{
		"role":     role,
		"scope":    scopeID,
		"title":    resp.Role,
		"records":  len(resp.Records),
		"interval": e.interval.String(),
	})
	e.notify(bus.KindSession, resp.Role)
	e.notify(bus.KindRecords, RecordCountLabel(len(resp.Records)))
	return nil
}

// Refresh re-fetches the session's dashboard and replaces the record
// collection. On failure the current records are kept. A result that
// arrives after the session changed is dropped.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.RLock()
	if e.session == nil {
		e.mu.RUnlock()
		return ErrNotAuthenticated
	}
	sess := *e.session
	gen := e.generation
	e.mu.RUnlock()

	resp, err := e.client.Dashboard(ctx, string(sess.Role), sess.ScopeID)
	if err != nil {
		return fmt.Errorf("refreshing %s board: %w", sess.Role, err)
	}

	e.mu.Lock()
	if e.session == nil || e.generation != gen {
		e.mu.Unlock()
		logger.DebugCF("board", "Discarding refresh for ended session", map[string]any{"role": sess.Role})
		return nil
	}
	e.records = resp.Records
	e.mu.Unlock()

	e.notify(bus.KindRecords, RecordCountLabel(len(resp.Records)))
	return nil
}

// ToggleStatus flips a record's status through the toggle table for kind.
// The local record changes before the update is sent and is not restored if
// the update fails.
func (e *Engine) ToggleStatus(ctx context.Context, id RecordID, kind Kind) error {
	resource, ok := resourceFor(kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return ErrNotAuthenticated
	}
	idx := -1
	for i := range e.records {
		if e.records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	prev := e.records[idx].Status
	next, err := NextStatus(kind, prev)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.records[idx].Status = next
	e.mu.Unlock()

	e.notify(bus.KindRecords, fmt.Sprintf("%s %s -> %s", id, prev, next))

	if err := e.client.UpdateStatus(ctx, resource, id, next); err != nil {
		logger.WarnCF("board", "Status update failed", map[string]any{
			"id":     string(id),
			"kind":   kind,
			"status": next,
			"error":  err,
		})
		e.notify(bus.KindNotice, NoticeUpdateFailed)
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}

	logger.InfoCF("board", "Status updated", map[string]any{
		"id":     string(id),
		"kind":   kind,
		"status": next,
	})
	return nil
}

// Logout ends the session and waits for the poller to exit.
func (e *Engine) Logout() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.teardown() {
		logger.InfoC("board", "Logged out")
		e.notify(bus.KindSession, "")
	}
}

// Close releases the engine. It is safe to call more than once.
func (e *Engine) Close() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	e.teardown()
}

func (e *Engine) teardown() bool {
	e.stopPoller()

	e.mu.Lock()
	defer e.mu.Unlock()
	had := e.session != nil
	e.session = nil
	e.records = nil
	e.generation++
	return had
}

func (e *Engine) Authenticated() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session != nil
}

func (e *Engine) Session() (Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

// Records returns a copy of the current collection.
func (e *Engine) Records() []Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Record(nil), e.records...)
}

// Snapshot returns the session title and records. Records is never nil.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Snapshot{Records: append([]Record{}, e.records...)}
	if e.session != nil {
		s.Role = e.session.Role
		s.Title = e.session.Title
	}
	return s
}

func (e *Engine) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Refresh(ctx); err != nil {
				logger.DebugCF("board", "Poll refresh failed", map[string]any{"error": err})
			}
		}
	}
}

// stopPoller cancels the running poller and waits for it. It must not be
// called with mu held.
func (e *Engine) stopPoller() {
	e.mu.Lock()
	cancel, done := e.cancelPoll, e.pollDone
	e.cancelPoll, e.pollDone = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (e *Engine) notify(kind bus.Kind, text string) {
	e.notifier.Notify(bus.Event{Source: bus.SourceBoard, Kind: kind, Text: text})
}
