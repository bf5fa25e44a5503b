// Package conversation drives a turn-based conversation with the dialogue
// backend. It keeps the message history, interprets backend envelopes, and
// tracks the interaction mode (typing, upload overlay, date and time pickers).
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tinyland-inc/mediassist/pkg/bus"
	"github.com/tinyland-inc/mediassist/pkg/identity"
	"github.com/tinyland-inc/mediassist/pkg/logger"
)

const (
	DefaultGuestPatientID = "PID-GUEST"

	uploadingFormat = "📄 Uploading %s..."
	uploadFailed    = "❌ Upload failed."
)

// Engine is safe for concurrent use. Dispatches are queued: a turn issued
// while another is in flight waits for it, so envelope lists are applied in
// issuance order.
type Engine struct {
	backend  Backend
	ident    *identity.Provider
	notifier bus.Notifier
	now      func() time.Time
	loc      *time.Location
	guestPID string

	sendMu sync.Mutex

	mu         sync.RWMutex
	history    []Message
	typing     bool
	uploadOpen bool
	picker     PickerState
	greeted    bool
	targetDay  time.Time
}

type Option func(*Engine)

func WithNotifier(n bus.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone used to turn picked dates into calendar days.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithGuestPatientID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.guestPID = id
		}
	}
}

func NewEngine(backend Backend, ident *identity.Provider, opts ...Option) *Engine {
	e := &Engine{
		backend:  backend,
		ident:    ident,
		notifier: bus.Discard,
		now:      time.Now,
		loc:      time.Local,
		guestPID: DefaultGuestPatientID,
		picker:   PickerState{Mode: PickerNone},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start greets the backend on first activation. Later calls, or calls made
// once history is non-empty, do nothing.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.greeted || len(e.history) > 0 {
		e.mu.Unlock()
		return nil
	}
	e.greeted = true
	e.mu.Unlock()

	if _, err := e.ident.GetOrCreate(); err != nil {
		return err
	}
	return e.dispatch(ctx, CommandGreet, true)
}

// SendUserText records the user's text and sends it. Blank input is rejected
// without touching history or the network.
func (e *Engine) SendUserText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	e.appendMessage(Message{Text: text, Sender: SenderUser})
	return e.dispatch(ctx, text, true)
}

// SelectButton records the button label and sends its payload.
func (e *Engine) SelectButton(ctx context.Context, payload, label string) error {
	e.appendMessage(Message{Text: label, Sender: SenderUser})
	return e.dispatch(ctx, payload, true)
}

// SelectDate sends the picked date as a YYYY-MM-DD calendar day in the
// engine's location.
func (e *Engine) SelectDate(ctx context.Context, picked time.Time) error {
	local := picked.In(e.loc)
	day := local.Format(time.DateOnly)

	e.mu.Lock()
	e.targetDay = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.loc)
	e.mu.Unlock()

	e.appendMessage(Message{Text: day, Sender: SenderUser})
	e.ClosePicker()
	return e.dispatch(ctx, day, true)
}

func (e *Engine) SelectTimeSlot(ctx context.Context, slot string) error {
	if strings.TrimSpace(slot) == "" {
		return ErrEmptyInput
	}
	e.appendMessage(Message{Text: slot, Sender: SenderUser})
	return e.dispatch(ctx, slot, true)
}

// UploadFile sends a prescription for the active patient (or the guest
// placeholder) and asks the backend to narrate the result. A failed upload
// leaves a visible bot message and is not retried.
func (e *Engine) UploadFile(ctx context.Context, up *Upload) error {
	if up == nil || up.Body == nil {
		return ErrNoFile
	}

	e.appendMessage(Message{Text: fmt.Sprintf(uploadingFormat, up.Name), Sender: SenderUser})
	e.CloseUpload()

	patientID := e.guestPID
	if pid, ok, err := e.ident.PatientID(); err != nil {
		logger.WarnCF("chat", "Reading patient id failed, uploading as guest", map[string]any{"error": err})
	} else if ok {
		patientID = pid
	}

	if err := e.backend.UploadPrescription(ctx, patientID, up.Name, up.Body); err != nil {
		logger.WarnCF("chat", "Prescription upload failed", map[string]any{
			"file":       up.Name,
			"patient_id": patientID,
			"error":      err,
		})
		e.appendMessage(Message{Text: uploadFailed, Sender: SenderBot})
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	logger.InfoCF("chat", "Prescription uploaded", map[string]any{
		"file":       up.Name,
		"patient_id": patientID,
	})
	return e.dispatch(ctx, CommandUploadSuccess, true)
}

func (e *Engine) OpenUpload() {
	e.mu.Lock()
	e.uploadOpen = true
	e.mu.Unlock()
	e.notify(bus.KindMode, StateUploading.String())
}

func (e *Engine) CloseUpload() {
	e.mu.Lock()
	changed := e.uploadOpen
	e.uploadOpen = false
	e.mu.Unlock()
	if changed {
		e.notify(bus.KindMode, e.State().String())
	}
}

func (e *Engine) ClosePicker() {
	e.mu.Lock()
	changed := e.picker.Open()
	e.picker = PickerState{Mode: PickerNone}
	e.mu.Unlock()
	if changed {
		e.notify(bus.KindMode, e.State().String())
	}
}

// History returns a copy of the conversation so far.
func (e *Engine) History() []Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Message, len(e.history))
	for i, m := range e.history {
		out[i] = m
		if m.Buttons != nil {
			out[i].Buttons = append([]Button(nil), m.Buttons...)
		}
	}
	return out
}

func (e *Engine) Picker() PickerState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p := e.picker
	p.Options = append([]string(nil), e.picker.Options...)
	return p
}

func (e *Engine) Typing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.typing
}

func (e *Engine) UploadOpen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.uploadOpen
}

// State reports the dominant mode: typing, then an open picker, then the
// upload overlay.
func (e *Engine) State() UIState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch {
	case e.typing:
		return StateTyping
	case e.picker.Mode == PickerCalendar:
		return StatePickingCalendar
	case e.picker.Mode == PickerTime:
		return StatePickingTime
	case e.uploadOpen:
		return StateUploading
	default:
		return StateIdle
	}
}

func (e *Engine) appendMessage(m Message) {
	e.mu.Lock()
	e.history = append(e.history, m)
	e.mu.Unlock()
	e.notify(bus.KindMessage, m.Text)
}

func (e *Engine) notify(kind bus.Kind, text string) {
	e.notifier.Notify(bus.Event{Source: bus.SourceChat, Kind: kind, Text: text})
}

// dispatch runs one exchange and, when the reply asked for a logout, resets
// the session and greets again under a fresh identity.
func (e *Engine) dispatch(ctx context.Context, outbound string, allowRestart bool) error {
	logout, err := e.exchange(ctx, outbound)
	if err != nil || !logout {
		return err
	}

	e.reset()
	if !allowRestart {
		return nil
	}
	e.mu.Lock()
	e.greeted = true
	e.mu.Unlock()
	if _, err := e.ident.GetOrCreate(); err != nil {
		return err
	}
	return e.dispatch(ctx, CommandGreet, false)
}

func (e *Engine) exchange(ctx context.Context, outbound string) (bool, error) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	sender, err := e.ident.GetOrCreate()
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	e.typing = true
	e.picker = PickerState{Mode: PickerNone}
	e.mu.Unlock()
	e.notify(bus.KindMode, StateTyping.String())

	raws, err := e.backend.Send(ctx, sender, outbound)

	e.mu.Lock()
	e.typing = false
	e.mu.Unlock()

	if err != nil {
		logger.DebugCF("chat", "Dispatch failed", map[string]any{
			"message": outbound,
			"error":   err,
		})
		e.notify(bus.KindMode, e.State().String())
		return false, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	logger.DebugCF("chat", "Dispatch completed", map[string]any{
		"message":   outbound,
		"envelopes": len(raws),
	})

	for i, raw := range raws {
		env, err := ParseEnvelope(raw)
		if err != nil {
			logger.WarnCF("chat", "Skipping malformed envelope", map[string]any{
				"index": i,
				"error": err,
			})
			continue
		}
		if e.apply(env) {
			return true, nil
		}
	}

	e.notify(bus.KindMode, e.State().String())
	return false, nil
}

// apply folds one envelope into the engine. It reports true when the
// envelope ended the session.
func (e *Engine) apply(env Envelope) bool {
	if env.Text != "" {
		e.appendMessage(Message{Text: env.Text, Sender: SenderBot})
		if pid := ExtractPatientID(env.Text); pid != "" {
			if err := e.ident.SetPatientID(pid); err != nil {
				logger.WarnCF("chat", "Storing patient id failed", map[string]any{"error": err})
			}
		}
	}
	if len(env.Buttons) > 0 {
		e.appendMessage(Message{Sender: SenderBotButtons, Buttons: append([]Button(nil), env.Buttons...)})
	}

	for _, d := range env.Directives {
		switch d := d.(type) {
		case ShowUpload:
			e.mu.Lock()
			e.uploadOpen = true
			e.mu.Unlock()
		case OpenCalendar:
			e.mu.Lock()
			e.picker = PickerState{Mode: PickerCalendar}
			e.mu.Unlock()
		case OpenTimePicker:
			times := d.Times
			if len(times) == 0 {
				times = e.fallbackSlots()
			}
			e.mu.Lock()
			e.picker = PickerState{Mode: PickerTime, Options: append([]string(nil), times...)}
			e.mu.Unlock()
		case Logout:
			if err := e.ident.Clear(); err != nil {
				logger.ErrorCF("chat", "Clearing identity on logout failed", map[string]any{"error": err})
			}
			logger.InfoC("chat", "Backend ended the session")
			return true
		}
	}
	return false
}

func (e *Engine) fallbackSlots() []string {
	now := e.now().In(e.loc)
	e.mu.RLock()
	day := e.targetDay
	e.mu.RUnlock()
	if day.IsZero() {
		day = now
	}
	return FallbackSlots(now, day)
}

// reset discards the whole session, as a page reload would.
func (e *Engine) reset() {
	e.mu.Lock()
	e.history = nil
	e.typing = false
	e.uploadOpen = false
	e.picker = PickerState{Mode: PickerNone}
	e.greeted = false
	e.targetDay = time.Time{}
	e.mu.Unlock()
	e.notify(bus.KindRestart, "")
}
