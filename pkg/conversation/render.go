package conversation

import (
	"regexp"
	"strings"
)

var (
	boldPattern    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	patientPattern = regexp.MustCompile(`PID-\d+`)
)

const loginMarker = "Logged in as"

// Render applies the message text rule: **bold** spans go through emphasize
// and newlines become lineBreak. Nothing else is interpreted or escaped.
func Render(text string, emphasize func(string) string, lineBreak string) string {
	if text == "" {
		return ""
	}
	out := boldPattern.ReplaceAllStringFunc(text, func(m string) string {
		return emphasize(boldPattern.FindStringSubmatch(m)[1])
	})
	if lineBreak != "\n" {
		out = strings.ReplaceAll(out, "\n", lineBreak)
	}
	return out
}

// RenderHTML renders text for an HTML surface. The output is not escaped.
func RenderHTML(text string) string {
	return Render(text, func(s string) string { return "<strong>" + s + "</strong>" }, "<br/>")
}

// ExtractPatientID returns the first PID-<digits> token of a login
// confirmation, or "" when text is not one.
func ExtractPatientID(text string) string {
	if !strings.Contains(text, loginMarker) {
		return ""
	}
	return patientPattern.FindString(text)
}

// ShowsAssistantLabel reports whether the message at idx is the trailing bot
// text that carries the assistant label.
func ShowsAssistantLabel(history []Message, idx int) bool {
	if idx != len(history)-1 || idx < 0 {
		return false
	}
	m := history[idx]
	return m.Sender == SenderBot && len(m.Buttons) == 0
}
