package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"agentloop/internal/agent"
	"agentloop/internal/domain"
)

// DefaultPath is the config file used when AGENTLOOP_CONFIG is unset.
const DefaultPath = "agentloop.json"

// Environment variables read by this package.
const (
	EnvConfigPath = "AGENTLOOP_CONFIG"
	EnvProvider   = "AGENTLOOP_PROVIDER"
	EnvModel      = "AGENTLOOP_MODEL"
)

// marshalIndent, writeFile and readFile are used by Load, WriteDefault and Save; tests may replace to force errors.
var (
	marshalIndent = json.MarshalIndent
	writeFile     = os.WriteFile
	readFile      = os.ReadFile
)

// ResolvePath returns flagPath when set, else $AGENTLOOP_CONFIG, else DefaultPath.
func ResolvePath(flagPath string) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return filepath.Clean(p)
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return filepath.Clean(p)
	}
	return DefaultPath
}

// Default returns the built-in configuration: local echo model, the
// research-assistant prompt, no tool retries and text logging at info.
func Default() *domain.Config {
	return &domain.Config{
		Agent: domain.AgentConfig{
			Model:        domain.ModelConfig{Provider: "local"},
			SystemPrompt: agent.DefaultSystemPrompt,
			MaxSteps:     agent.DefaultMaxSteps,
			ContextWindow: domain.ContextWindowConfig{
				Encoding: "cl100k_base",
			},
		},
		Router: domain.RouterConfig{
			Model: domain.ModelConfig{Provider: "local"},
		},
		Retry: domain.RetryConfig{
			MaxRetries:     0,
			InitialBackoff: 200,
			MaxBackoff:     5000,
			Multiplier:     2,
		},
		Infra: domain.InfraConfig{LogFormat: "text", LogLevel: "info"},
	}
}

// WriteDefault writes Default() to path (e.g. agentloop.json). Parent directories are not created.
func WriteDefault(path string) error {
	data, err := marshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, data, 0644)
}

// Load reads path, unmarshals it over the defaults, applies environment
// overrides and cleans path fields. Returns error if the file is missing or invalid JSON.
func Load(path string) (*domain.Config, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	c := Default()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	ApplyEnv(c)
	CleanPaths(c)
	return c, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults
// (with environment overrides). The bool reports whether the file existed.
func LoadOrDefault(path string) (*domain.Config, bool, error) {
	c, err := Load(path)
	if err == nil {
		return c, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		c = Default()
		ApplyEnv(c)
		return c, false, nil
	}
	return nil, false, err
}

// ApplyEnv overrides the model selection of both the agent and the router
// from AGENTLOOP_PROVIDER and AGENTLOOP_MODEL.
func ApplyEnv(cfg *domain.Config) {
	if cfg == nil {
		return
	}
	if p := strings.TrimSpace(os.Getenv(EnvProvider)); p != "" {
		cfg.Agent.Model.Provider = p
		cfg.Router.Model.Provider = p
	}
	if m := strings.TrimSpace(os.Getenv(EnvModel)); m != "" {
		cfg.Agent.Model.Model = m
		cfg.Router.Model.Model = m
	}
}

// CleanPaths applies filepath.Clean to all path fields in cfg to prevent path traversal.
func CleanPaths(cfg *domain.Config) {
	if cfg == nil {
		return
	}
	if cfg.Router.CatalogPath != "" {
		cfg.Router.CatalogPath = filepath.Clean(cfg.Router.CatalogPath)
	}
}

// Save writes cfg to path as JSON, creating the parent directory.
func Save(path string, cfg *domain.Config) error {
	if cfg == nil {
		return fmt.Errorf("config save: nil config")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config save mkdir: %w", err)
	}
	data, err := marshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config save marshal: %w", err)
	}
	if err := writeFile(path, data, 0644); err != nil {
		return fmt.Errorf("config save write: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the environment without overriding variables already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config dotenv %s: %w", p, err)
		}
	}
	return nil
}
