package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/trad/internal/api"
	"github.com/kalambet/trad/internal/arbiter"
	"github.com/kalambet/trad/internal/auth"
	"github.com/kalambet/trad/internal/catalog"
	"github.com/kalambet/trad/internal/config"
	"github.com/kalambet/trad/internal/inference"
	"github.com/kalambet/trad/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the trad server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		serveMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(serveMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running trad server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show trad system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "trad.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func newInferenceClient(cfg config.Config) *inference.Client {
	return inference.New(inference.Options{
		Native:          inference.Deployment{URL: cfg.Inference.Native.URL, Model: cfg.Inference.Native.Model},
		General:         inference.Deployment{URL: cfg.Inference.General.URL, Model: cfg.Inference.General.Model},
		Timeout:         cfg.Inference.Timeout,
		BreakerFailures: uint32(cfg.Inference.BreakerFailures),
	})
}

func runServer(serveMCP bool) error {
	fmt.Fprintf(os.Stderr, "trad version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// An unready backend only warns; translate calls return 502 while it stays down.
	client := newInferenceClient(cfg)
	if err := inference.EnsureReady(ctx, client, os.Stderr); err != nil {
		printWarning("inference backend not ready: %v", err)
	}

	cat := catalog.New(store)
	translator := arbiter.NewTranslator(
		arbiter.NewMatcher(store),
		arbiter.NewRouter(client, cfg.Translation.HubLang),
		store,
		cat,
		arbiter.Policy{
			RequireAuth: cfg.Translation.RequireAuth,
			MaxWords:    cfg.Translation.MaxWords,
			Timeout:     cfg.Translation.Timeout,
		},
	)
	feedback := arbiter.NewFeedback(store, cat)

	handler := api.NewAppHandler(api.AppDeps{
		Translator: translator,
		Feedback:   feedback,
		Languages:  cat,
		Stats:      store,
		Tokens:     auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("trad listening", "addr", addr, "hub", cfg.Translation.HubLang)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if serveMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Translator: translator,
			Feedback:   feedback,
			Languages:  cat,
			Stats:      store,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("trad is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("could not stop trad (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to trad (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	inf := newInferenceClient(cfg)
	for _, ep := range []inference.Endpoint{inference.Native, inference.General} {
		label := strings.ToUpper(string(ep[:1])) + string(ep[1:]) + " model"
		if err := inf.ModelReady(ctx, ep); err != nil {
			printStatus(label, "%v", err)
		} else {
			printStatus(label, "ready")
		}
	}
	printStatus("Hub language", "%s", cfg.Translation.HubLang)

	if running {
		statsResp, err := client.Get(serverURL + "/stats")
		if err == nil {
			var st storage.RecordStats
			if decodeJSON(statsResp, &st) == nil {
				printStatus("Records", "%d total, %d pending review, %d correct, %d incorrect",
					st.Total, st.Unreviewed, st.Correct, st.Incorrect)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
