package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/switchboard/internal/api"
	"github.com/btouchard/switchboard/internal/auth"
	"github.com/btouchard/switchboard/internal/config"
	switchboardmcp "github.com/btouchard/switchboard/internal/mcp"
	"github.com/btouchard/switchboard/internal/notify"
	"github.com/btouchard/switchboard/internal/session"
	"github.com/btouchard/switchboard/internal/store"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "version":
		fmt.Printf("switchboard %s\n", version)
	case "check":
		cmdCheck(os.Args[2:])
	case "token":
		cmdToken(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: switchboard <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the Switchboard server\n")
	fmt.Fprintf(os.Stderr, "  check     Validate configuration\n")
	fmt.Fprintf(os.Stderr, "  token     Print (or -rotate) the API token\n")
	fmt.Fprintf(os.Stderr, "  version   Print version\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting switchboard",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	_, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("configuration is valid")
}

func cmdToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	rotate := fs.Bool("rotate", false, "generate a new token, invalidating the old one")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Auth.APIToken != "" {
		fmt.Fprintln(os.Stderr, "auth.api_token is set in configuration; the token file is not used")
		os.Exit(1)
	}

	var token string
	if *rotate {
		token, err = auth.RotateToken(cfg.Auth.TokenDir)
	} else {
		token, err = auth.LoadOrCreateToken(cfg.Auth.TokenDir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "token error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func setupLogging(cfg *config.Config) {
	level, _ := config.ParseLogLevel(cfg.Server.LogLevel) // validated at load

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stdout only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)
}

func apiToken(cfg *config.Config) (string, error) {
	if cfg.Auth.APIToken != "" {
		return cfg.Auth.APIToken, nil
	}
	token, err := auth.LoadOrCreateToken(cfg.Auth.TokenDir)
	if err != nil {
		return "", err
	}
	slog.Info("api token loaded", "dir", cfg.Auth.TokenDir, "fingerprint", auth.HashToken(token)[:12])
	return token, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- SQLite Store ---
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	slog.Info("database opened", "path", cfg.Database.Path)

	// --- Notification Center ---
	var centerOpts []notify.Option
	if cfg.Calls.RecoverObserverPanics {
		centerOpts = append(centerOpts, notify.WithPanicRecovery())
	}
	center := notify.NewCenter(centerOpts...)

	// --- Call Sessions ---
	calls := session.NewManager(center, cfg.Calls.MaxActive)

	// --- MCP Server ---
	mcpServer := switchboardmcp.NewServer(&switchboardmcp.Deps{
		Calls:   calls,
		History: db,
		Version: version,
	})
	mcpHTTP := server.NewStreamableHTTPServer(mcpServer)

	// --- Event Fan-out ---
	notifiers := []notify.Notifier{store.NewRecorder(db)}
	if cfg.Notifications.MCP.Enabled {
		notifiers = append(notifiers, notify.NewMCPNotifier(mcpServer, cfg.Notifications.MCP.ViewSizeDebounce))
	}
	// The center holds observers weakly; fwd stays registered while run is live.
	fwd := notify.NewForwarder(notify.NewHub(notifiers...))
	notify.Register(center, fwd)
	defer notify.Unregister(center, fwd)

	// --- Retention ---
	if cfg.Database.RetentionDays > 0 {
		retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
		go store.StartCleanupLoop(ctx.Done(), db, retention, time.Hour)
	}
	go pruneLoop(ctx, calls, cfg.Calls.EndedRetention)

	// --- HTTP Router ---
	token, err := apiToken(cfg)
	if err != nil {
		return fmt.Errorf("loading api token: %w", err)
	}

	r := api.NewRouter(&api.Deps{
		Calls:   calls,
		History: db,
		Auth:    auth.NewVerifier(token),
		MCP:     mcpHTTP,
	})

	// --- HTTP Server ---
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // check_call long-polls up to 30s
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("switchboard is ready", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down", "active_calls", calls.ActiveCount())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// pruneLoop drops ended calls from memory once they are older than keep.
// Their history remains in the store.
func pruneLoop(ctx context.Context, calls *session.Manager, keep time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := calls.PruneEnded(keep); n > 0 {
				slog.Debug("pruned ended calls", "removed", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
