package bus

import "time"

// Source identifies which engine raised an event.
type Source string

const (
	SourceChat  Source = "chat"
	SourceBoard Source = "board"
)

// Kind classifies an event so a surface can decide how to redraw.
type Kind string

const (
	KindMessage Kind = "message" // a message was appended to the conversation
	KindMode    Kind = "mode"    // typing / picker / upload state changed
	KindRestart Kind = "restart" // the conversation session was reset by a logout directive
	KindRecords Kind = "records" // the board record collection changed
	KindSession Kind = "session" // board login or logout
	KindNotice  Kind = "notice"  // user-facing notice (toggle failure, auth failure)
)

type Event struct {
	Source Source    `json:"source"`
	Kind   Kind      `json:"kind"`
	Text   string    `json:"text,omitempty"`
	At     time.Time `json:"at"`
}

// Notifier receives engine events. Implementations must not block.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ev Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(Event) {})
