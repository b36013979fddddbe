package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/providers"
)

// Config is the complete pkgdocs-mcp configuration, loaded in the same
// layered order the teacher uses for its own config: hardcoded defaults,
// then user/global config, then project config, then environment
// variables, each layer overriding only the fields it sets.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Workspace  WorkspaceConfig  `yaml:"workspace" json:"workspace"`
	Renderer   RendererConfig   `yaml:"renderer" json:"renderer"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Chat       ChatConfig       `yaml:"chat" json:"chat"`
	Registry   RegistryConfig   `yaml:"registry" json:"registry"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// WorkspaceConfig locates the Go workspace being documented.
type WorkspaceConfig struct {
	// Path is the directory containing the go.mod(s) to render documentation
	// for. Defaults to the current directory.
	Path string `yaml:"path" json:"path"`
}

// RendererConfig configures the `go doc`/`go list` driver.
type RendererConfig struct {
	// Tags are build tags passed to `go doc`/`go list` (-tags) so renderable
	// packages behind a build tag are still reachable.
	Tags []string `yaml:"tags" json:"tags"`
}

// EmbeddingsConfig configures the embedding provider used to rank
// documentation chunks against a question.
type EmbeddingsConfig struct {
	Model   string `yaml:"model" json:"model"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Dimensions is the embedding vector width; 0 lets the provider decide.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// CacheDir is where the two-tier embedding cache persists its on-disk
	// tier. Defaults to ~/.cache/pkgdocs-mcp/embeddings.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// ChatConfig configures the chat-completion provider used to answer the
// question once the relevant documentation chunk has been found.
type ChatConfig struct {
	Model   string `yaml:"model" json:"model"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// RegistryConfig configures how the package registry ingests documentation.
type RegistryConfig struct {
	// Lazy enables query-time ingestion of packages that were not preloaded
	// at startup but are renderable from the workspace.
	Lazy bool `yaml:"lazy" json:"lazy"`
	// Preload lists package names to render and embed eagerly at startup.
	Preload []string `yaml:"preload" json:"preload"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with the same defaults spec §6
// documents for every provider-facing environment variable.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Workspace: WorkspaceConfig{
			Path: ".",
		},
		Renderer: RendererConfig{
			Tags: nil,
		},
		Embeddings: EmbeddingsConfig{
			Model:      providers.DefaultEmbeddingModel,
			BaseURL:    providers.DefaultEmbeddingsURL,
			Dimensions: 0,
			CacheDir:   defaultEmbeddingCacheDir(),
		},
		Chat: ChatConfig{
			Model:   providers.DefaultChatModel,
			BaseURL: providers.DefaultChatURL,
		},
		Registry: RegistryConfig{
			Lazy:    true,
			Preload: nil,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

func defaultEmbeddingCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "pkgdocs-mcp", "embeddings")
	}
	return filepath.Join(home, ".cache", "pkgdocs-mcp", "embeddings")
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/pkgdocs-mcp/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/pkgdocs-mcp/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pkgdocs-mcp", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "pkgdocs-mcp", "config.yaml")
	}
	return filepath.Join(home, ".config", "pkgdocs-mcp", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// A nil config and nil error means no user config is present, which is fine.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file, or returns a nil config
// and nil error if it doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration from dir, applying layers of increasing
// precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/pkgdocs-mcp/config.yaml)
//  3. Project config (.pkgdocs-mcp.yaml in dir)
//  4. Environment variables (EMBEDDING_MODEL, LLM_MODEL, OPENAI_API_BASE,
//     PKGDOCS_LOG_LEVEL); OPENAI_API_KEY is read separately by APIKey
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .pkgdocs-mcp.yaml or
// .pkgdocs-mcp.yml in dir. No file present is fine; defaults apply.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".pkgdocs-mcp.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".pkgdocs-mcp.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Workspace.Path != "" {
		c.Workspace.Path = other.Workspace.Path
	}

	if len(other.Renderer.Tags) > 0 {
		c.Renderer.Tags = other.Renderer.Tags
	}

	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.BaseURL != "" {
		c.Embeddings.BaseURL = other.Embeddings.BaseURL
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.CacheDir != "" {
		c.Embeddings.CacheDir = other.Embeddings.CacheDir
	}

	if other.Chat.Model != "" {
		c.Chat.Model = other.Chat.Model
	}
	if other.Chat.BaseURL != "" {
		c.Chat.BaseURL = other.Chat.BaseURL
	}

	// Lazy is boolean; only adopt it if the other config set any registry
	// field at all, same reasoning the teacher applies to its own
	// all-or-nothing boolean sub-sections.
	if other.Registry.Lazy || len(other.Registry.Preload) > 0 {
		c.Registry.Lazy = other.Registry.Lazy
	}
	if len(other.Registry.Preload) > 0 {
		c.Registry.Preload = other.Registry.Preload
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies the environment variable overrides spec §6
// names, at the highest precedence.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("OPENAI_API_BASE"); v != "" {
		c.Embeddings.BaseURL = v
		c.Chat.BaseURL = v
	}
	if v := os.Getenv("PKGDOCS_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// APIKey returns OPENAI_API_KEY from the environment. It is never read from
// a config file or merged, so it can never end up written back out by
// WriteYAML.
func APIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if strings.TrimSpace(c.Embeddings.Model) == "" {
		return fmt.Errorf("embeddings.model must not be empty")
	}
	if strings.TrimSpace(c.Chat.Model) == "" {
		return fmt.Errorf("chat.model must not be empty")
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists reports whether path exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
