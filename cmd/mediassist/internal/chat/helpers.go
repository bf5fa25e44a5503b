package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/tinyland-inc/mediassist/cmd/mediassist/internal"
	"github.com/tinyland-inc/mediassist/pkg/backend"
	"github.com/tinyland-inc/mediassist/pkg/conversation"
	"github.com/tinyland-inc/mediassist/pkg/identity"
	"github.com/tinyland-inc/mediassist/pkg/logger"
)

var _ conversation.Backend = (*backend.ChatClient)(nil)

func chatCmd(message string, debug, ephemeral bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	internal.SetupLogging(cfg, debug)
	defer logger.Sync()

	if debug {
		fmt.Println("🔍 Debug mode enabled")
	}

	store, closeStore, err := internal.OpenStore(cfg, ephemeral)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := backend.NewChatClient(backend.Config{
		BaseURL: cfg.Chat.BaseURL,
		Timeout: cfg.ChatTimeout(),
	})
	if err != nil {
		return fmt.Errorf("error creating chat client: %w", err)
	}

	s := newSession(os.Stdout)
	engine := conversation.NewEngine(client, identity.NewProvider(store),
		conversation.WithGuestPatientID(cfg.Chat.GuestPatientID),
		conversation.WithNotifier(s.notifier()))
	s.attach(engine)
	ctx := context.Background()

	if message != "" {
		if err := engine.SendUserText(ctx, message); err != nil && !errors.Is(err, conversation.ErrDispatchFailed) {
			return err
		}
		s.flush()
		return nil
	}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Printf("%s %s (Ctrl+C to exit, /help for commands)\n\n", internal.Logo, boldGreen("MediAssist chat"))

	if err := engine.Start(ctx); err != nil && !errors.Is(err, conversation.ErrDispatchFailed) {
		return err
	}
	s.flush()

	interactiveMode(ctx, s, cfg.Chat.HistoryFile)
	return nil
}

func interactiveMode(ctx context.Context, s *session, historyFile string) {
	prompt := color.New(color.FgGreen, color.Bold).Sprint("You: ")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(ctx, s, os.Stdin)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if s.handle(ctx, line) {
			fmt.Println("Goodbye!")
			return
		}
	}
}

func simpleInteractiveMode(ctx context.Context, s *session, in io.Reader) {
	reader := bufio.NewReader(in)
	for {
		fmt.Print("You: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if s.handle(ctx, strings.TrimRight(line, "\r\n")) {
			fmt.Println("Goodbye!")
			return
		}
	}
}
