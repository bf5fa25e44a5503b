package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tinyland-inc/mediassist/pkg/backend"
)

type Record = backend.Record

type RecordID = backend.RecordID

type Role string

const (
	RoleDoctor   Role = "doctor"
	RoleLab      Role = "lab"
	RolePharmacy Role = "pharmacy"
)

// Kind names the record type a role works on. It selects the toggle pair
// and the update endpoint.
type Kind string

const (
	KindAppointment Kind = "Appointment"
	KindLabTest     Kind = "Lab Test"
	KindPharmacy    Kind = "Pharmacy"
)

const (
	StatusScheduled  = "Scheduled"
	StatusCancelled  = "Cancelled"
	StatusPending    = "Pending"
	StatusCompleted  = "Completed"
	StatusProcessing = "Processing"
	StatusReady      = "Ready"
)

// User-facing texts.
const (
	NoticeEmpty         = "No active records found."
	NoticeUpdateFailed  = "Update failed. Backend might be offline."
	NoticeScopeRequired = "Please enter Doctor ID"
	NoticeAuthFailed    = "Login failed. Check ID or Connection."
)

var (
	ErrScopeRequired    = errors.New("doctor id required")
	ErrUnknownRole      = errors.New("unknown board role")
	ErrAuthFailed       = errors.New("board login failed")
	ErrNotAuthenticated = errors.New("not logged in")
	ErrRecordNotFound   = errors.New("record not found")
	ErrUnknownKind      = errors.New("unknown record kind")
	ErrUpdateFailed     = errors.New("status update failed")
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleDoctor, RoleLab, RolePharmacy:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// KindForRole returns the record kind shown to a role, or "" for an
// unknown role.
func KindForRole(role Role) Kind {
	switch role {
	case RoleDoctor:
		return KindAppointment
	case RoleLab:
		return KindLabTest
	case RolePharmacy:
		return KindPharmacy
	default:
		return ""
	}
}

// NextStatus applies the toggle table. A record in any status other than the
// pair's "done" side moves to it; the "done" side moves back.
func NextStatus(kind Kind, current string) (string, error) {
	switch kind {
	case KindAppointment:
		if current == StatusCancelled {
			return StatusScheduled, nil
		}
		return StatusCancelled, nil
	case KindLabTest:
		if current == StatusCompleted {
			return StatusPending, nil
		}
		return StatusCompleted, nil
	case KindPharmacy:
		if current == StatusReady {
			return StatusProcessing, nil
		}
		return StatusReady, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// ActionLabel is the text of the toggle control for a record.
func ActionLabel(kind Kind, status string) string {
	switch kind {
	case KindAppointment:
		if status == StatusCancelled {
			return "Re-Schedule"
		}
		return "Cancel"
	case KindLabTest:
		if status == StatusCompleted {
			return "Mark Pending"
		}
		return "Mark Complete"
	case KindPharmacy:
		if status == StatusReady {
			return "Mark Processing"
		}
		return "Mark Ready"
	default:
		return ""
	}
}

// RecordCountLabel renders the collection size line.
func RecordCountLabel(n int) string {
	return fmt.Sprintf("Active Records: %d", n)
}

func resourceFor(kind Kind) (string, bool) {
	switch kind {
	case KindAppointment:
		return "appointment", true
	case KindLabTest:
		return "lab", true
	case KindPharmacy:
		return "pharmacy", true
	default:
		return "", false
	}
}
