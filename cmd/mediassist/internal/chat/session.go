package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"

	"github.com/tinyland-inc/mediassist/cmd/mediassist/internal"
	"github.com/tinyland-inc/mediassist/pkg/bus"
	"github.com/tinyland-inc/mediassist/pkg/conversation"
)

const helpText = `Commands:
  /buttons N        choose the Nth button of the latest menu
  /date YYYY-MM-DD  answer the date picker
  /slot HH:MM|N     answer the time picker
  /upload PATH      upload a prescription
  /attach           open the upload prompt
  /close            dismiss the upload prompt and pickers
  /state            show the current mode
  exit              leave
Anything else is sent to the assistant as typed.`

// session renders an Engine to a terminal and maps REPL input onto engine
// operations.
type session struct {
	engine    *conversation.Engine
	out       io.Writer
	loc       *time.Location
	printed   int
	prompt    string
	restarted atomic.Bool

	bold   func(a ...any) string
	faint  func(a ...any) string
	accent func(a ...any) string
	warn   func(a ...any) string
}

func newSession(out io.Writer) *session {
	return &session{
		out:    out,
		loc:    time.Local,
		bold:   color.New(color.Bold).SprintFunc(),
		faint:  color.New(color.Faint).SprintFunc(),
		accent: color.New(color.FgCyan, color.Bold).SprintFunc(),
		warn:   color.New(color.FgYellow).SprintFunc(),
	}
}

func (s *session) attach(e *conversation.Engine) {
	s.engine = e
}

// notifier flags session restarts so flush can start over.
func (s *session) notifier() bus.Notifier {
	return bus.NotifierFunc(func(ev bus.Event) {
		if ev.Kind == bus.KindRestart {
			s.restarted.Store(true)
		}
	})
}

// handle runs one line of input. It reports true when the user asked to leave.
func (s *session) handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}
	if input == "exit" || input == "quit" {
		return true
	}

	var err error
	fields := strings.Fields(input)
	args := fields[1:]
	switch fields[0] {
	case "/help":
		fmt.Fprintln(s.out, helpText)
	case "/buttons":
		err = s.selectButton(ctx, args)
	case "/date":
		err = s.selectDate(ctx, args)
	case "/slot":
		err = s.selectSlot(ctx, args)
	case "/upload":
		err = s.upload(ctx, strings.TrimSpace(strings.TrimPrefix(input, "/upload")))
	case "/attach":
		s.engine.OpenUpload()
	case "/close":
		s.engine.CloseUpload()
		s.engine.ClosePicker()
	case "/state":
		fmt.Fprintf(s.out, "%s %s\n", s.faint("state:"), s.engine.State())
	default:
		err = s.engine.SendUserText(ctx, input)
	}

	s.report(err)
	s.flush()
	return false
}

func (s *session) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrDispatchFailed):
		// logged by the engine; the conversation stays quiet
	case errors.Is(err, conversation.ErrUploadFailed):
		// the failure is already in the history
	default:
		fmt.Fprintf(s.out, "%s %v\n", s.warn("⚠"), err)
	}
}

func (s *session) selectButton(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: /buttons N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("usage: /buttons N (got %q)", args[0])
	}

	history := s.engine.History()
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Sender != conversation.SenderBotButtons {
			continue
		}
		buttons := history[i].Buttons
		if n < 1 || n > len(buttons) {
			return fmt.Errorf("no button %d (menu has %d)", n, len(buttons))
		}
		b := buttons[n-1]
		return s.engine.SelectButton(ctx, b.Payload, b.Title)
	}
	return errors.New("no menu to choose from")
}

func (s *session) selectDate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: /date YYYY-MM-DD")
	}
	day, err := time.ParseInLocation(time.DateOnly, args[0], s.loc)
	if err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", args[0])
	}
	return s.engine.SelectDate(ctx, day)
}

func (s *session) selectSlot(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: /slot HH:MM or /slot N")
	}
	slot := args[0]
	picker := s.engine.Picker()
	if n, err := strconv.Atoi(slot); err == nil && picker.Mode == conversation.PickerTime {
		if n < 1 || n > len(picker.Options) {
			return fmt.Errorf("no slot %d (%d offered)", n, len(picker.Options))
		}
		slot = picker.Options[n-1]
	}
	if slot == conversation.NoSlotsLeft {
		return errors.New(conversation.NoSlotsLeft)
	}
	return s.engine.SelectTimeSlot(ctx, slot)
}

func (s *session) upload(ctx context.Context, path string) error {
	if path == "" {
		return conversation.ErrNoFile
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.engine.UploadFile(ctx, &conversation.Upload{Name: filepath.Base(path), Body: f})
}

// flush prints every history entry added since the last flush, followed by
// the prompt for the current mode when it changed.
func (s *session) flush() {
	if s.restarted.Swap(false) {
		fmt.Fprintln(s.out, s.faint("-- session restarted --"))
		s.printed = 0
	}

	history := s.engine.History()
	if s.printed > len(history) {
		s.printed = 0
	}
	for i := s.printed; i < len(history); i++ {
		s.printMessage(history, i)
	}
	s.printed = len(history)

	prompt := s.modePrompt()
	if prompt != "" && prompt != s.prompt {
		fmt.Fprintln(s.out, prompt)
	}
	s.prompt = prompt
}

func (s *session) printMessage(history []conversation.Message, i int) {
	m := history[i]
	switch m.Sender {
	case conversation.SenderBot:
		text := conversation.Render(m.Text, func(t string) string { return s.bold(t) }, "\n")
		fmt.Fprintf(s.out, "%s %s\n", internal.Logo, text)
		if conversation.ShowsAssistantLabel(history, i) {
			fmt.Fprintln(s.out, s.faint("   MediAssist"))
		}
	case conversation.SenderBotButtons:
		for j, b := range m.Buttons {
			fmt.Fprintf(s.out, "  %s %s\n", s.accent(fmt.Sprintf("[%d]", j+1)), b.Title)
		}
		fmt.Fprintln(s.out, s.faint("  choose with /buttons N"))
	}
}

func (s *session) modePrompt() string {
	var b strings.Builder
	picker := s.engine.Picker()
	switch picker.Mode {
	case conversation.PickerCalendar:
		b.WriteString("📅 Pick a date: /date YYYY-MM-DD")
	case conversation.PickerTime:
		b.WriteString("🕒 Available slots:")
		for i, opt := range picker.Options {
			if opt == conversation.NoSlotsLeft {
				b.WriteString(" " + opt)
				continue
			}
			fmt.Fprintf(&b, " [%d] %s", i+1, opt)
		}
		b.WriteString("\n   reply with /slot N or /slot HH:MM")
	}
	if s.engine.UploadOpen() {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("📎 Upload a prescription: /upload PATH (or /close)")
	}
	return b.String()
}
