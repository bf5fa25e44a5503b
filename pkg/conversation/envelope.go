package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Directive is an out-of-band instruction carried in an envelope's custom
// payload. The concrete types are ShowUpload, OpenCalendar, OpenTimePicker
// and Logout.
type Directive interface {
	directive()
}

type ShowUpload struct{}

type OpenCalendar struct{}

// OpenTimePicker carries the backend's slot list. Times is nil when the
// backend left the choice to the client.
type OpenTimePicker struct {
	Times []string
}

type Logout struct{}

func (ShowUpload) directive()     {}
func (OpenCalendar) directive()   {}
func (OpenTimePicker) directive() {}
func (Logout) directive()         {}

// Envelope is one normalized backend reply.
type Envelope struct {
	Text       string
	Buttons    []Button
	Directives []Directive
}

type wireEnvelope struct {
	Text        string          `json:"text"`
	Buttons     []Button        `json:"buttons"`
	Custom      json.RawMessage `json:"custom"`
	JSONMessage json.RawMessage `json:"json_message"`
}

type wireCustom struct {
	UploadTrigger  flexBool    `json:"upload_trigger"`
	Calendar       flexBool    `json:"calendar"`
	TimePicker     flexBool    `json:"time_picker"`
	AvailableTimes flexStrings `json:"available_times"`
	Logout         flexBool    `json:"logout"`
}

// flexBool accepts true/false, "true"/"false" and numbers. Anything else is
// false.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*b = false
		return nil
	}
	switch val := v.(type) {
	case bool:
		*b = flexBool(val)
	case string:
		parsed, err := strconv.ParseBool(val)
		*b = flexBool(err == nil && parsed)
	case float64:
		*b = val != 0
	default:
		*b = false
	}
	return nil
}

// flexStrings is a []string that also accepts numbers; a non-array value
// decodes to nil.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		*f = nil
		return nil
	}
	if raw == nil {
		*f = nil
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			out = append(out, val)
		case float64:
			out = append(out, strconv.FormatFloat(val, 'f', -1, 64))
		}
	}
	*f = out
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// resolveCustom picks the directive payload: top-level custom first, then
// json_message.custom, then json_message itself.
func resolveCustom(w wireEnvelope) json.RawMessage {
	if !isAbsent(w.Custom) {
		return w.Custom
	}
	if isAbsent(w.JSONMessage) {
		return nil
	}
	var nested struct {
		Custom json.RawMessage `json:"custom"`
	}
	if err := json.Unmarshal(w.JSONMessage, &nested); err == nil && !isAbsent(nested.Custom) {
		return nested.Custom
	}
	return w.JSONMessage
}

// ParseEnvelope decodes and normalizes one backend reply. Directives come
// out in a fixed order: upload, calendar, time picker, logout.
func ParseEnvelope(raw json.RawMessage) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(raw, &w); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}

	env := Envelope{Text: w.Text, Buttons: w.Buttons}

	custom := resolveCustom(w)
	if custom == nil {
		return env, nil
	}
	var c wireCustom
	if err := json.Unmarshal(custom, &c); err != nil {
		// a custom payload that is not an object carries no directives
		return env, nil
	}

	if c.UploadTrigger {
		env.Directives = append(env.Directives, ShowUpload{})
	}
	if c.Calendar {
		env.Directives = append(env.Directives, OpenCalendar{})
	}
	if c.TimePicker {
		var times []string
		if len(c.AvailableTimes) > 0 {
			times = []string(c.AvailableTimes)
		}
		env.Directives = append(env.Directives, OpenTimePicker{Times: times})
	}
	if c.Logout {
		env.Directives = append(env.Directives, Logout{})
	}
	return env, nil
}
