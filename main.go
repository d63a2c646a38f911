// Command pointdeck starts the PointDeck estimation session server.
//
// It supports two modes:
//  1. "serve" (default) – runs the HTTP server exposing the WebSocket
//     join endpoint, the REST inspection API, and an /mcp endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal
//     HTTP API if none is available
//
// Flags control the listener address, capacity limits, debug logging,
// and optional ngrok tunneling for easy external access during
// development. Every flag can also be set through POINTDECK_*
// environment variables; a .env file is honored when present.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/pointdeck/pointdeck/api"
	"github.com/pointdeck/pointdeck/poker/config"
	"github.com/pointdeck/pointdeck/poker/session"
	"github.com/pointdeck/pointdeck/transport/mcp"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "PointDeck"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	cmd := &cli.Command{
		Name:    "pointdeck",
		Usage:   "real-time planning poker session server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind-address", Aliases: []string{"a"}, Usage: "HTTP listener address"},
			&cli.IntFlag{Name: "bind-port", Aliases: []string{"p"}, Usage: "HTTP listener port"},
			&cli.IntFlag{Name: "max-sessions", Usage: "maximum number of concurrent sessions"},
			&cli.IntFlag{Name: "max-users", Usage: "maximum number of users in a session"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token (or NGROK_AUTHTOKEN env var)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain (optional)"},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server (default)",
				Action: runServe,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "run an MCP stdio server proxying the REST API",
				Action:  runStdioMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment configuration and applies any flag
// overrides given on the command line.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if cmd.IsSet("bind-address") {
		cfg.BindAddress = cmd.String("bind-address")
	}
	if cmd.IsSet("bind-port") {
		cfg.BindPort = int(cmd.Int("bind-port"))
	}
	if cmd.IsSet("max-sessions") {
		cfg.MaxSessions = int(cmd.Int("max-sessions"))
	}
	if cmd.IsSet("max-users") {
		cfg.MaxUsers = int(cmd.Int("max-users"))
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the process logger. Debug mode switches to the
// human-oriented development encoder.
func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger.Sugar(), nil
}

// buildHandler assembles the full HTTP handler: the API server at the
// root plus the /mcp message endpoint proxying tool calls back into
// the REST API.
func buildHandler(apiServer *api.Server, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)
		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// runServe starts the HTTP server and, when enabled, an ngrok tunnel,
// then blocks until a shutdown signal arrives.
func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Infow("starting", "app", AppName, "version", Version,
		"addr", cfg.Addr(), "max_sessions", cfg.MaxSessions, "max_users", cfg.MaxUsers)

	directory := session.NewDirectory(logger, cfg.MaxSessions, cfg.MaxUsers)
	apiServer := api.NewServer(logger, directory)
	mcpClient := mcp.NewClient("http://" + cfg.Addr())
	handler := buildHandler(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
		// No blanket read/write timeouts: WebSocket connections are
		// long-lived. The upgrade path clears deadlines itself.
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Infof("HTTP server listening on %s", cfg.Addr())
		logger.Infof("WebSocket join: ws://%s/ws/<session_id>", cfg.Addr())
		logger.Infof("REST API: http://%s/api", cfg.Addr())
		logger.Infof("MCP endpoint: http://%s/mcp", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("HTTP server failed", "error", err)
		}
	}()

	if cmd.Bool("ngrok") || os.Getenv("NGROK_ENABLED") == "true" || os.Getenv("NGROK_ENABLED") == "1" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(serveCtx, logger, cmd, handler)
		}()
	}

	select {
	case sig := <-stop:
		logger.Infow("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("HTTP server shutdown error", "error", err)
	}

	wg.Wait()
	logger.Info("server stopped")
	return nil
}

// runNgrokTunnel serves the same handler through a public ngrok
// endpoint. Failures are logged, never fatal; the local listener keeps
// running regardless.
func runNgrokTunnel(ctx context.Context, logger *zap.SugaredLogger, cmd *cli.Command, handler http.Handler) {
	authToken := cmd.String("ngrok-auth")
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
	}
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	domain := cmd.String("ngrok-domain")
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Warnw("failed to start ngrok tunnel", "error", err)
		return
	}
	defer tun.Close()

	logger.Infof("ngrok tunnel established: %s", tun.URL())
	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		logger.Warnw("ngrok server error", "error", err)
	}
}

// runStdioMCP runs the MCP stdio server. It reuses a running HTTP API
// when one answers at the configured address; otherwise it starts an
// internal one on a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	externalURL := "http://" + cfg.Addr()
	baseURL := externalURL

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/healthz")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		logger.Infof("external API server found at %s, using it for MCP", externalURL)
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("listen for internal API: %w", err)
		}
		internalAddr := listener.Addr().String()
		logger.Infof("no external API server found, starting internal one on %s", internalAddr)

		directory := session.NewDirectory(logger, cfg.MaxSessions, cfg.MaxUsers)
		internal := &http.Server{Handler: api.NewServer(logger, directory)}
		go func() {
			if err := internal.Serve(listener); err != nil && err != http.ErrServerClosed {
				logger.Warnw("internal HTTP server error", "error", err)
			}
		}()
		baseURL = "http://" + internalAddr
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready")
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}
