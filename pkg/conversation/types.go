package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// Reserved outbound commands understood by the dialogue backend.
const (
	CommandGreet         = "/greet"
	CommandUploadSuccess = "/inform_upload_success"
)

var (
	ErrEmptyInput     = errors.New("message is empty")
	ErrNoFile         = errors.New("no file selected")
	ErrDispatchFailed = errors.New("dispatch failed")
	ErrUploadFailed   = errors.New("upload failed")
)

type Sender string

const (
	SenderUser       Sender = "user"
	SenderBot        Sender = "bot"
	SenderBotButtons Sender = "bot-buttons"
)

type Button struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Message is one entry of the conversation history. A buttons message has no
// text; every other message has no buttons.
type Message struct {
	Text    string   `json:"text,omitempty"`
	Sender  Sender   `json:"sender"`
	Buttons []Button `json:"buttons,omitempty"`
}

type PickerMode string

const (
	PickerNone     PickerMode = "none"
	PickerCalendar PickerMode = "calendar"
	PickerTime     PickerMode = "time"
)

type PickerState struct {
	Mode    PickerMode `json:"mode"`
	Options []string   `json:"options,omitempty"`
}

// Open reports whether any picker is showing.
func (p PickerState) Open() bool {
	return p.Mode == PickerCalendar || p.Mode == PickerTime
}

// UIState is the dominant interaction mode of the engine.
type UIState int

const (
	StateIdle UIState = iota
	StateTyping
	StateUploading
	StatePickingCalendar
	StatePickingTime
)

func (s UIState) String() string {
	switch s {
	case StateTyping:
		return "typing"
	case StateUploading:
		return "uploading"
	case StatePickingCalendar:
		return "picking-calendar"
	case StatePickingTime:
		return "picking-time"
	default:
		return "idle"
	}
}

// Upload is a file chosen by the user.
type Upload struct {
	Name string
	Body io.Reader
}

// Backend is the conversation collaborator. backend.ChatClient satisfies it.
type Backend interface {
	Send(ctx context.Context, sender, message string) ([]json.RawMessage, error)
	UploadPrescription(ctx context.Context, patientID, filename string, r io.Reader) error
}
