package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

	"github.com/kithhq/kith/internal/api"
	"github.com/kithhq/kith/internal/config"
	"github.com/kithhq/kith/internal/ingest"
	"github.com/kithhq/kith/internal/merge"
	"github.com/kithhq/kith/internal/ollama"
	"github.com/kithhq/kith/internal/provider"
	"github.com/kithhq/kith/internal/retrieval"
	"github.com/kithhq/kith/internal/storage"
	"github.com/kithhq/kith/internal/synthesis"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the kith server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running kith server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show kith system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "kith.pid")
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

// buildProviders constructs the configured slice of synthesis providers.
// Unconfigured chain entries are skipped; "local" only joins when Ollama
// answers.
func buildProviders(ctx context.Context, cfg config.Config, ollamaClient *ollama.Client, logger *slog.Logger) ([]provider.Provider, error) {
	var configured []provider.Provider
	if cfg.OpenAIKey != "" {
		configured = append(configured, provider.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel))
	}
	if cfg.GeminiKey != "" {
		configured = append(configured, provider.NewGemini(cfg.GeminiKey, cfg.GeminiModel))
	}
	if cfg.VisionURL != "" {
		configured = append(configured, provider.NewVision(cfg.VisionURL))
	}
	if ollamaClient.IsRunning(ctx) {
		configured = append(configured, provider.NewLocal(ollamaClient, cfg.ChatModel))
	} else {
		logger.Warn("ollama is not reachable, local provider disabled", "url", cfg.OllamaURL)
	}

	registry := provider.NewRegistry(configured...)
	chain, err := registry.Chain(cfg.ProviderOrder)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		logger.Warn("no synthesis providers configured, every note will use the keyword fallback")
	}
	return chain, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "kith version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.LogLevel, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Refuse to double-start: probe health, then check the PID file.
	pidPath := pidFilePath(cfg.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("kith is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("kith is already running on port %d", cfg.Port)
		return fmt.Errorf("server already running on port %d", cfg.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	ollamaClient := ollama.New(cfg.OllamaURL)
	chain, err := buildProviders(ctx, cfg, ollamaClient, logger)
	if err != nil {
		return fmt.Errorf("building provider chain: %w", err)
	}

	engine := synthesis.NewEngine(chain, logger)
	engine.SetCallTimeout(cfg.ProviderTimeout)

	embedder := retrieval.NewOllamaEmbedder(ollamaClient, cfg.EmbedModel)
	retriever := retrieval.NewRetriever(store, embedder, cfg.TopK, logger)
	writer := merge.NewWriter(store, logger)

	deps := api.Deps{
		Store:       store,
		Engine:      engine,
		Retriever:   retriever,
		Writer:      writer,
		APIToken:    cfg.APIToken,
		ImportToken: cfg.ImportToken,
		Logger:      logger,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.Router(deps),
	}

	// Background embedding of committed notes.
	worker := ingest.NewWorker(store, embedder, logger)
	go worker.Run(ctx)

	// MCP over stdio for local assistants.
	mcpSrv := api.NewMCPServer(deps)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("MCP stdio server error", "error", err)
		}
	}()
	logger.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "kith listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("kith is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop kith (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to kith (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Port)

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.OllamaURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.OllamaURL)
	}

	printStatus("Providers", "%s", strings.Join(cfg.ProviderOrder, " → "))
	printStatus("Chat model", "%s", cfg.ChatModel)
	printStatus("Embed model", "%s", cfg.EmbedModel)
	printStatus("Data dir", "%s", cfg.DataDir)
	return nil
}
