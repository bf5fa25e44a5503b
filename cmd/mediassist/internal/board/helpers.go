package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/mediassist/cmd/mediassist/internal"
	"github.com/tinyland-inc/mediassist/pkg/backend"
	"github.com/tinyland-inc/mediassist/pkg/board"
	"github.com/tinyland-inc/mediassist/pkg/bus"
	"github.com/tinyland-inc/mediassist/pkg/livefeed"
	"github.com/tinyland-inc/mediassist/pkg/logger"
)

var _ board.Client = (*backend.BoardClient)(nil)

func boardCmd(opts options) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	internal.SetupLogging(cfg, opts.debug)
	defer logger.Sync()

	client, err := backend.NewBoardClient(backend.Config{
		BaseURL: cfg.Board.BaseURL,
		Timeout: cfg.BoardTimeout(),
	})
	if err != nil {
		return fmt.Errorf("error creating board client: %w", err)
	}

	events := bus.NewEventBus()
	defer events.Close()

	engine := board.NewEngine(client,
		board.WithNotifier(events),
		board.WithPollInterval(cfg.PollInterval()))
	defer engine.Close()

	feedCfg := livefeed.Config{
		Enabled: cfg.LiveFeed.Enabled || opts.livefeed,
		Addr:    cfg.LiveFeed.Addr,
	}
	if opts.addr != "" {
		feedCfg.Addr = opts.addr
	}
	hub := livefeed.NewHub()
	feed := livefeed.NewServer(feedCfg, hub)

	c := newConsole(engine, os.Stdout)
	fmt.Printf("%s MediAssist board (type 'help' for commands)\n\n", internal.Logo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Start(ctx); err != nil {
		return err
	}
	if addr := feed.Addr(); addr != "" {
		fmt.Printf("📡 Live feed on ws://%s/ws\n", addr)
	}

	if opts.role != "" {
		c.login(ctx, opts.role, opts.scopeID)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		feed.Stop(stopCtx)
		return nil
	})

	g.Go(func() error {
		for {
			ev, ok := events.Subscribe(gctx)
			if !ok {
				return nil
			}
			c.event(ev)
			if ev.Kind == bus.KindRecords || ev.Kind == bus.KindSession {
				if err := hub.Broadcast(engine.Snapshot()); err != nil {
					logger.WarnCF("livefeed", "Broadcast failed", map[string]any{"error": err})
				}
			}
		}
	})

	g.Go(func() error {
		defer cancel()
		return runREPL(gctx, c, cfg.Chat.HistoryFile+"_board")
	})

	return g.Wait()
}

func runREPL(ctx context.Context, c *console, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "board> ",
		HistoryFile:     historyFile,
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		return simpleREPL(ctx, c, os.Stdin)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return nil
			}
			if ctx.Err() != nil {
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
