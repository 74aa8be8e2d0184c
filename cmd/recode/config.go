package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the CLI configuration, read from the environment after an
// optional .env load.
type Config struct {
	Provider string // anthropic, openai, or google
	Model    string // optional model override

	WorkDir  string // workspace root the tools operate in
	StateDir string // where task history is persisted

	MaxIterations int
	Timeout       time.Duration

	// AutoApprove lists tool names cleared without asking. Defaults to the
	// read-only tools.
	AutoApprove []string

	// MCPCommand optionally names a command to spawn as a stdio MCP server
	// whose tools are bridged into the run. MCPSSEURL does the same for an
	// already-running SSE server; the stdio command wins when both are set.
	MCPCommand string
	MCPArgs    []string
	MCPSSEURL  string

	AnthropicKey string
	OpenAIKey    string
	GoogleKey    string
}

// LoadConfig reads configuration from RECODE_* and provider key variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Provider:      os.Getenv("RECODE_PROVIDER"),
		Model:         os.Getenv("RECODE_MODEL"),
		WorkDir:       envOr("RECODE_WORKDIR", "."),
		StateDir:      envOr("RECODE_STATE_DIR", ".recode"),
		MaxIterations: envInt("RECODE_MAX_ITERATIONS", 25),
		Timeout:       envDuration("RECODE_TIMEOUT", 0),
		AutoApprove:   envList("RECODE_AUTO_APPROVE", []string{"read_file", "list_files", "search_files"}),
		AnthropicKey:  os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		GoogleKey:     os.Getenv("GOOGLE_API_KEY"),
	}

	if mcp := os.Getenv("RECODE_MCP_SERVER"); mcp != "" {
		parts := strings.Fields(mcp)
		cfg.MCPCommand = parts[0]
		cfg.MCPArgs = parts[1:]
	}
	cfg.MCPSSEURL = os.Getenv("RECODE_MCP_SSE_URL")

	if cfg.Provider == "" {
		// Pick the first provider with a key set.
		switch {
		case cfg.AnthropicKey != "":
			cfg.Provider = "anthropic"
		case cfg.OpenAIKey != "":
			cfg.Provider = "openai"
		case cfg.GoogleKey != "":
			cfg.Provider = "google"
		default:
			return nil, fmt.Errorf("no provider configured: set RECODE_PROVIDER and an API key (ANTHROPIC_API_KEY, OPENAI_API_KEY, or GOOGLE_API_KEY)")
		}
	}

	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("RECODE_PROVIDER=anthropic but ANTHROPIC_API_KEY is not set")
		}
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("RECODE_PROVIDER=openai but OPENAI_API_KEY is not set")
		}
	case "google":
		if cfg.GoogleKey == "" {
			return nil, fmt.Errorf("RECODE_PROVIDER=google but GOOGLE_API_KEY is not set")
		}
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic, openai, or google)", cfg.Provider)
	}

	return cfg, nil
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

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if v == "none" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
