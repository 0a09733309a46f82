// Package cmd provides the CLI commands for ragline.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/mstanton/ragline/internal/chat"
	"github.com/mstanton/ragline/internal/config"
	"github.com/mstanton/ragline/internal/db"
	"github.com/mstanton/ragline/internal/debug"
	"github.com/mstanton/ragline/internal/events"
	"github.com/mstanton/ragline/internal/pubsub"
	"github.com/mstanton/ragline/internal/session"
	"github.com/mstanton/ragline/internal/status"
	"github.com/mstanton/ragline/internal/storage"
	"github.com/mstanton/ragline/internal/transport"
	"github.com/mstanton/ragline/internal/wire"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragline",
		Short: "Streaming chat client for RAG backends",
		Long: `ragline is an interactive chat client for retrieval-augmented
generation backends. It keeps a persistent websocket to the server,
streams responses token by token, and tracks document indexing,
workspace provisioning, and wikipedia fetch jobs as they progress.

Conversations are kept locally and survive restarts.`,
		RunE: runChat,
	}

	cmd.Flags().String("server", "", "Websocket URL of the RAG backend (overrides config)")
	cmd.Flags().Int64("workspace", 0, "Workspace ID to chat against (overrides config)")
	cmd.Flags().Bool("debug", false, "Enable debug logging")

	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigWithFlags(cmd)
	if err != nil {
		return err
	}

	if cfg.Options.Debug {
		logPath := filepath.Join(xdg.DataHome, "ragline", "debug.log")
		if debugErr := debug.Enable(logPath); debugErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to enable debug logging: %v\n", debugErr)
		} else {
			defer debug.Disable()
			fmt.Fprintf(os.Stderr, "Debug: %s\n", logPath)
		}
	}

	persister, closer, err := buildPersister(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	hub := pubsub.NewHub()
	defer hub.Shutdown()

	store := session.NewStore(
		session.WithPersister(persister),
		session.WithNotify(func(ev events.SessionEvent) {
			hub.Session.Publish(sessionEventType(ev), ev)
		}),
	)
	agg := status.NewAggregator(status.WithNotify(func(ev events.StatusEvent) {
		hub.Status.Publish(pubsub.EventUpdated, ev)
	}))

	client := transport.NewClient(cfg.ServerURL, transport.Options{
		ReconnectAttempts: cfg.Reconnect.Attempts,
		ReconnectDelay:    time.Duration(cfg.Reconnect.DelayMS) * time.Millisecond,
		Codecs:            codecPreference(cfg.Codec),
	})

	ctx := cmd.Context()
	fmt.Printf("Connecting to %s ...\n", cfg.ServerURL)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.ServerURL, err)
	}
	defer client.Disconnect()

	engine := chat.New(chat.Config{
		Transport:   client,
		Sessions:    store,
		Status:      agg,
		Hub:         hub,
		WorkspaceID: cfg.WorkspaceID,
		RAGType:     cfg.RAGType,
	})
	if err := engine.Bind(); err != nil {
		return fmt.Errorf("registering event handlers: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go watchInterrupts(sigs, engine, os.Exit)

	fmt.Println("Connected. Type a message, /help for commands, /quit to exit.")
	return repl(ctx, engine, store, agg, hub)
}

// canceller is the slice of the engine the interrupt handler needs.
type canceller interface {
	Cancel() error
	InFlightID() (string, bool)
}

// watchInterrupts turns Ctrl-C into cooperative cancellation: the
// first interrupt cancels the in-flight request, an interrupt while
// idle (or a repeated one) exits.
func watchInterrupts(sigs <-chan os.Signal, engine canceller, exit func(int)) {
	cancelled := false
	for range sigs {
		if !cancelled {
			if _, busy := engine.InFlightID(); busy {
				cancelled = true
				if err := engine.Cancel(); err != nil {
					debug.Error("cmd", err, "cancelling on interrupt")
				}
				fmt.Fprintln(os.Stderr, "\nCancelling; press Ctrl-C again to quit.")
				continue
			}
		}
		exit(130)
		return
	}
}

func loadConfigWithFlags(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		cfg.ServerURL = server
	}
	if ws, _ := cmd.Flags().GetInt64("workspace"); ws != 0 {
		cfg.WorkspaceID = ws
	}
	if debugFlag, _ := cmd.Flags().GetBool("debug"); debugFlag {
		cfg.Options.Debug = true
	}
	return cfg, nil
}

// buildPersister returns the storage backend selected by the config
// and, for backends holding resources, a close function.
func buildPersister(cfg *config.Config) (session.Persister, func(), error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		database, err := db.Open(cfg.DatabasePath())
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		closer := func() {
			if err := database.Close(); err != nil {
				debug.Error("cmd", err, "closing database")
			}
		}
		return storage.NewSQLiteStore(database), closer, nil
	default:
		return storage.NewFileStore(cfg.SessionsPath()), nil, nil
	}
}

func codecPreference(name string) []wire.Codec {
	if name == config.CodecCBOR {
		return []wire.Codec{wire.CBOR, wire.JSON}
	}
	return wire.Codecs()
}

func sessionEventType(ev events.SessionEvent) pubsub.EventType {
	switch ev.Type {
	case events.SessionEventCreated:
		return pubsub.EventCreated
	case events.SessionEventDeleted:
		return pubsub.EventDeleted
	default:
		return pubsub.EventUpdated
	}
}

// repl reads user input line by line. A background goroutine renders
// chat events so streamed fragments appear as they arrive.
func repl(ctx context.Context, engine *chat.Engine, store *session.Store, agg *status.Aggregator, hub *pubsub.Hub) error {
	replCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go renderChatEvents(replCtx, hub)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runSlashCommand(line, engine, store, agg, hub)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if _, err := engine.Send(line); err != nil {
			switch {
			case errors.Is(err, chat.ErrBusy):
				fmt.Fprintln(os.Stderr, "A response is still streaming; /cancel it first.")
			case errors.Is(err, transport.ErrNotConnected):
				fmt.Fprintln(os.Stderr, "Not connected to the server.")
			default:
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
}

func renderChatEvents(ctx context.Context, hub *pubsub.Hub) {
	sub := hub.Chat.Subscribe(ctx)
	for ev := range sub {
		switch ev.Payload.Type {
		case events.ChatEventChunk:
			fmt.Print(ev.Payload.Chunk)
		case events.ChatEventComplete:
			fmt.Println()
		case events.ChatEventCancelled:
			fmt.Println("\n[cancelled]")
		case events.ChatEventError:
			fmt.Printf("\n[server error] %s\n", ev.Payload.Error)
		}
	}
}

func runSlashCommand(line string, engine *chat.Engine, store *session.Store, agg *status.Aggregator, hub *pubsub.Hub) (quit bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		printHelp()
	case "/cancel":
		return false, engine.Cancel()
	case "/new":
		sess := store.Create(session.DefaultTitle)
		fmt.Printf("Started %s\n", sess.ID)
	case "/sessions":
		printSessions(store)
	case "/switch":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /switch <id>")
		}
		if err := store.SetActive(fields[1]); err != nil {
			return false, err
		}
		fmt.Printf("Switched to %s\n", fields[1])
	case "/rename":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /rename <title>")
		}
		title := strings.Join(fields[1:], " ")
		active := store.ActiveID()
		if active == "" {
			return false, fmt.Errorf("no active session")
		}
		if err := store.Rename(active, title); err != nil {
			return false, err
		}
	case "/jobs":
		printJobs(agg)
	case "/brokers":
		fmt.Print(hub.DebugString())
	default:
		return false, fmt.Errorf("unknown command %q, try /help", fields[0])
	}
	return false, nil
}

func printHelp() {
	fmt.Print(`Commands:
  /new              Start a new conversation
  /sessions         List conversations
  /switch <id>      Switch the active conversation
  /rename <title>   Rename the active conversation
  /cancel           Cancel the streaming response
  /jobs             Show document, workspace, and fetch job status
  /brokers          Show event broker counters
  /quit             Exit
`)
}

func printSessions(store *session.Store) {
	sessions := store.List()
	if len(sessions) == 0 {
		fmt.Println("No conversations yet.")
		return
	}
	active := store.ActiveID()
	for _, s := range sessions {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  (%d messages)\n", marker, s.ID, s.Title, len(s.Messages))
	}
}

func printJobs(agg *status.Aggregator) {
	docs := agg.Documents()
	workspaces := agg.Workspaces()
	fetches := agg.Fetches()

	if len(docs)+len(workspaces)+len(fetches) == 0 {
		fmt.Println("No tracked jobs.")
		return
	}
	for _, w := range workspaces {
		fmt.Printf("workspace %d (%s): %s\n", w.ID, w.Name, w.State)
	}
	for _, d := range docs {
		line := fmt.Sprintf("document %d [ws %d] %s: %s", d.ID, d.WorkspaceID, d.Filename, d.State)
		if d.Progress != nil {
			line += fmt.Sprintf(" (%.0f%%)", *d.Progress*100)
		}
		if d.Error != "" {
			line += " error: " + d.Error
		}
		fmt.Println(line)
	}
	for _, f := range fetches {
		fmt.Printf("fetch %s [ws %d] %q: %s\n", f.ID, f.WorkspaceID, f.Query, f.State)
	}
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
