// Package identity derives and persists the client identity that correlates
// every conversation turn, plus the patient id learned from the backend.
package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tinyland-inc/mediassist/pkg/logger"
)

// Slot names. Both are cleared together on logout.
const (
	SenderSlot  = "chat_sender_id"
	PatientSlot = "current_patient_id"
)

var ErrEmptyPatientID = errors.New("patient id must not be empty")

// Provider hands out the session identity. It is constructed once at startup
// and shared by reference; it holds no state besides the store.
type Provider struct {
	store    Store
	generate func() string
	mu       sync.Mutex
}

type Option func(*Provider)

// WithGenerator replaces the token generator.
func WithGenerator(fn func() string) Option {
	return func(p *Provider) { p.generate = fn }
}

func NewProvider(store Store, opts ...Option) *Provider {
	p := &Provider{
		store:    store,
		generate: NewToken,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewToken returns a fresh identity token.
func NewToken() string {
	return "user_" + uuid.NewString()
}

// GetOrCreate returns the stored identity, generating and persisting one on
// first use.
func (p *Provider) GetOrCreate() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok, err := p.store.Get(SenderSlot)
	if err != nil {
		return "", fmt.Errorf("reading identity: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id = p.generate()
	if err := p.store.Set(SenderSlot, id); err != nil {
		return "", fmt.Errorf("writing identity: %w", err)
	}
	logger.DebugCF("identity", "Generated session identity", map[string]any{"sender": id})
	return id, nil
}

// Current returns the stored identity without generating one.
func (p *Provider) Current() (string, bool, error) {
	id, ok, err := p.store.Get(SenderSlot)
	if err != nil {
		return "", false, fmt.Errorf("reading identity: %w", err)
	}
	return id, ok && id != "", nil
}

// Clear removes the identity and the patient id association.
func (p *Provider) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Delete(SenderSlot, PatientSlot); err != nil {
		return fmt.Errorf("clearing identity: %w", err)
	}
	logger.InfoC("identity", "Session identity cleared")
	return nil
}

func (p *Provider) PatientID() (string, bool, error) {
	id, ok, err := p.store.Get(PatientSlot)
	if err != nil {
		return "", false, fmt.Errorf("reading patient id: %w", err)
	}
	return id, ok && id != "", nil
}

func (p *Provider) SetPatientID(id string) error {
	if id == "" {
		return ErrEmptyPatientID
	}
	if err := p.store.Set(PatientSlot, id); err != nil {
		return fmt.Errorf("writing patient id: %w", err)
	}
	logger.InfoCF("identity", "Active patient id stored", map[string]any{"patient_id": id})
	return nil
}
