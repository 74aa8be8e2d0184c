// Command aguiserver exposes the coding agent over the AG-UI protocol via
// Server-Sent Events (SSE), for frontends like CopilotKit.
//
// Runs are unattended: tools named in RECODE_AUTO_APPROVE run without
// approval, everything else is denied after a short grace period unless
// RECODE_APPROVE_ALL=true. The HTTP surface uses only the standard library.
//
// Configuration is via environment variables (a .env file is loaded first):
//
//	AGUI_PORT             - server port (default: 8080)
//	RECODE_PROVIDER       - anthropic, openai, or google (default: first with a key)
//	RECODE_MODEL          - model override (optional)
//	RECODE_WORKDIR        - workspace root (default: .)
//	RECODE_MAX_ITERATIONS - loop ceiling (default: 25)
//	RECODE_TIMEOUT        - per-run timeout (default: 2m)
//	RECODE_AUTO_APPROVE   - comma-separated tool names (default: read-only tools)
//	RECODE_APPROVE_ALL    - auto-approve every tool (default: false)
//	ANTHROPIC_API_KEY     - Anthropic API key
//	OPENAI_API_KEY        - OpenAI API key
//	GOOGLE_API_KEY        - Google API key
//
// Usage:
//
//	RECODE_PROVIDER=anthropic go run ./cmd/aguiserver
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recodeai/recode"
	"github.com/recodeai/recode/provider/anthropic"
	"github.com/recodeai/recode/provider/google"
	"github.com/recodeai/recode/provider/openai"
)

// Config holds the server configuration.
type Config struct {
	Port     string
	Provider string
	Model    string

	WorkDir       string
	MaxIterations int
	Timeout       time.Duration

	AutoApprove []string
	ApproveAll  bool

	AnthropicKey string
	OpenAIKey    string
	GoogleKey    string
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:          envOr("AGUI_PORT", "8080"),
		Provider:      os.Getenv("RECODE_PROVIDER"),
		Model:         os.Getenv("RECODE_MODEL"),
		WorkDir:       envOr("RECODE_WORKDIR", "."),
		MaxIterations: envInt("RECODE_MAX_ITERATIONS", 25),
		Timeout:       envDuration("RECODE_TIMEOUT", 2*time.Minute),
		ApproveAll:    os.Getenv("RECODE_APPROVE_ALL") == "true",
		AnthropicKey:  os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		GoogleKey:     os.Getenv("GOOGLE_API_KEY"),
	}

	if v := os.Getenv("RECODE_AUTO_APPROVE"); v != "" {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				cfg.AutoApprove = append(cfg.AutoApprove, item)
			}
		}
	} else {
		cfg.AutoApprove = []string{"read_file", "list_files", "search_files"}
	}

	if cfg.Provider == "" {
		switch {
		case cfg.AnthropicKey != "":
			cfg.Provider = "anthropic"
		case cfg.OpenAIKey != "":
			cfg.Provider = "openai"
		case cfg.GoogleKey != "":
			cfg.Provider = "google"
		default:
			return nil, fmt.Errorf("no provider configured: set RECODE_PROVIDER and an API key")
		}
	}

	return cfg, nil
}

func main() {
	godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	provider, err := newProvider(context.Background(), cfg)
	if err != nil {
		log.Fatalf("provider error: %v", err)
	}

	handler := NewAgentHandler(provider, cfg)

	mux := http.NewServeMux()
	mux.Handle("/api/agent", corsMiddleware(handler))
	mux.HandleFunc("/health", healthHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE needs no write timeout
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("AG-UI server starting on :%s", cfg.Port)
	log.Printf("provider: %s, workdir: %s", cfg.Provider, cfg.WorkDir)
	log.Printf("endpoint: POST http://localhost:%s/api/agent", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}

	log.Println("server stopped")
}

func newProvider(ctx context.Context, cfg *Config) (recode.ChatProvider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.AnthropicKey), nil
	case "openai":
		return openai.New(cfg.OpenAIKey), nil
	case "google":
		return google.New(ctx, cfg.GoogleKey)
	}
	return nil, fmt.Errorf("unknown provider %q (want anthropic, openai, or google)", cfg.Provider)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
