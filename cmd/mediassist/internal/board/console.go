package board

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/tinyland-inc/mediassist/pkg/backend"
	"github.com/tinyland-inc/mediassist/pkg/board"
	"github.com/tinyland-inc/mediassist/pkg/bus"
)

const helpText = `Commands:
  login ROLE [ID]  log in as doctor (with ID), lab or pharmacy
  list             show the current records
  refresh          fetch the records now
  toggle ID        flip the status of a record
  logout           end the session
  exit             leave`

// console renders board state and maps REPL lines onto engine operations.
// Output from the REPL and the event printer is serialised.
type console struct {
	engine *board.Engine

	mu  sync.Mutex
	out io.Writer

	title   func(a ...any) string
	faint   func(a ...any) string
	good    func(a ...any) string
	bad     func(a ...any) string
	pending func(a ...any) string
}

func newConsole(engine *board.Engine, out io.Writer) *console {
	return &console{
		engine:  engine,
		out:     out,
		title:   color.New(color.FgCyan, color.Bold).SprintFunc(),
		faint:   color.New(color.Faint).SprintFunc(),
		good:    color.New(color.FgGreen).SprintFunc(),
		bad:     color.New(color.FgRed).SprintFunc(),
		pending: color.New(color.FgYellow).SprintFunc(),
	}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// handle runs one REPL line. It reports true when the user asked to leave.
func (c *console) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "exit", "quit":
		return true
	case "help":
		c.printf("%s\n", helpText)
	case "list", "ls":
		c.list()
	case "refresh":
		if err := c.engine.Refresh(ctx); err != nil {
			c.printf("%s %v\n", c.pending("⚠"), err)
			return false
		}
		c.list()
	case "toggle":
		if len(fields) != 2 {
			c.printf("usage: toggle ID\n")
			return false
		}
		c.toggle(ctx, fields[1])
	case "login":
		if len(fields) < 2 {
			c.printf("usage: login ROLE [ID]\n")
			return false
		}
		scope := ""
		if len(fields) > 2 {
			scope = fields[2]
		}
		c.login(ctx, fields[1], scope)
	case "logout":
		c.engine.Logout()
	default:
		c.printf("Unknown command %q (try 'help')\n", fields[0])
	}
	return false
}

func (c *console) login(ctx context.Context, role, scopeID string) {
	err := c.engine.Login(ctx, role, scopeID)
	switch {
	case err == nil:
		c.list()
	case errors.Is(err, board.ErrScopeRequired):
		c.printf("%s %s\n", c.bad("⛔"), board.NoticeScopeRequired)
	case errors.Is(err, board.ErrAuthFailed):
		// the notice event carries the failure itself
		if backend.IsStatus(err, http.StatusNotFound) {
			c.printf("No %s board exists for ID %q.\n", role, scopeID)
		}
	default:
		c.printf("%s %v\n", c.bad("⛔"), err)
	}
}

func (c *console) toggle(ctx context.Context, id string) {
	sess, ok := c.engine.Session()
	if !ok {
		c.printf("Not logged in. Use: login ROLE [ID]\n")
		return
	}
	kind := board.KindForRole(sess.Role)

	err := c.engine.ToggleStatus(ctx, board.RecordID(id), kind)
	switch {
	case err == nil:
		for _, r := range c.engine.Records() {
			if r.ID == board.RecordID(id) {
				c.printf("%s %s is now %s\n", c.good("✔"), r.Title, c.status(r.Status))
			}
		}
	case errors.Is(err, board.ErrUpdateFailed):
		// reported through the notice event
	default:
		c.printf("%s %v\n", c.pending("⚠"), err)
	}
}

// event prints one engine event.
func (c *console) event(ev bus.Event) {
	switch ev.Kind {
	case bus.KindNotice:
		c.printf("\n%s %s\n", c.bad("⛔"), ev.Text)
	case bus.KindSession:
		if ev.Text == "" {
			c.printf("\n👋 Logged out\n")
		}
	}
}

func (c *console) list() {
	snap := c.engine.Snapshot()
	if !c.engine.Authenticated() {
		c.printf("Not logged in. Use: login ROLE [ID]\n")
		return
	}
	kind := board.KindForRole(snap.Role)

	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "%s\n", c.title(snap.Title))
	fmt.Fprintf(c.out, "%s\n", c.faint(board.RecordCountLabel(len(snap.Records))))
	if len(snap.Records) == 0 {
		fmt.Fprintln(c.out, board.NoticeEmpty)
		return
	}

	w := bufio.NewWriter(c.out)
	for _, r := range snap.Records {
		fmt.Fprintf(w, "  [%s] %s", r.ID, r.Title)
		if r.Subtitle != "" {
			fmt.Fprintf(w, " · %s", r.Subtitle)
		}
		if when := strings.TrimSpace(r.Date + " " + r.Time); when != "" {
			fmt.Fprintf(w, "  %s", c.faint(when))
		}
		if r.Extra != "" {
			fmt.Fprintf(w, "  %s", c.faint(r.Extra))
		}
		fmt.Fprintf(w, "  %s  → %s\n", c.status(r.Status), board.ActionLabel(kind, r.Status))
	}
	w.Flush()
}

func (c *console) status(s string) string {
	switch s {
	case board.StatusCancelled:
		return c.bad(s)
	case board.StatusCompleted, board.StatusReady, board.StatusScheduled:
		return c.good(s)
	default:
		return c.pending(s)
	}
}

func simpleREPL(ctx context.Context, c *console, in io.Reader) error {
	reader := bufio.NewReader(in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Print("board> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if c.handle(ctx, line) {
			fmt.Println("Goodbye!")
			return nil
		}
	}
}
