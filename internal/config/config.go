// Package config handles runtime configuration and the .vigil directory
// structure. Every directory a game runs from gets a .vigil/ folder holding
// the config file, the logs, and the save database.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marrowfield/vigil/internal/game"
)

const (
	// VigilDir is the name of the directory created next to the game.
	VigilDir = ".vigil"

	defaultModel     = "gpt-4o-mini"
	defaultAPIKeyEnv = "OPENAI_API_KEY"
)

const defaultConfigYAML = `# vigil configuration
version: 1

provider:
  # Any OpenAI-compatible endpoint. Leave base_url empty for the default.
  base_url: ""
  model: gpt-4o-mini
  # Name of the environment variable holding the API key (.env is honored).
  api_key_env: OPENAI_API_KEY

retry:
  max_attempts: 4
  initial_delay: 500ms
  max_delay: 10s

auto_run:
  yield: 250ms

cast:
  - {name: Abel, role: shepherd, persona: "soft-spoken, watches hands not faces"}
  - {name: Mirren, role: listener, persona: "sharp, impatient with liars"}
  - {name: Tobias, role: guard, persona: "stubborn, protective of the young"}
  - {name: Greta, role: coroner, persona: "clinical, speaks in certainties"}
  - {name: Casper, role: twin, persona: "nervous, finishes his sister's sentences"}
  - {name: Liesel, role: twin, persona: "calm, finishes her brother's sentences"}
  - {name: Oswin, role: marked, persona: "charming, too quick to agree"}
  - {name: Petra, role: marked, persona: "quiet, counts everything"}
  - {name: Edric, role: heretic, persona: "devout, dreams he does not speak of"}
`

// ProviderConfig selects the text-generation endpoint.
type ProviderConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// RetryConfig bounds the turn retry policy. Delays are duration strings.
type RetryConfig struct {
	MaxAttempts  uint   `yaml:"max_attempts"`
	InitialDelay string `yaml:"initial_delay"`
	MaxDelay     string `yaml:"max_delay"`
}

// AutoRunConfig tunes the auto-run loop.
type AutoRunConfig struct {
	Yield string `yaml:"yield"`
}

// CastMember is one roster entry in the config file.
type CastMember struct {
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`
	Persona string `yaml:"persona,omitempty"`
}

// ProjectConfig models .vigil/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Provider ProviderConfig `yaml:"provider"`
	Retry    RetryConfig    `yaml:"retry"`
	AutoRun  AutoRunConfig  `yaml:"auto_run"`
	Cast     []CastMember   `yaml:"cast"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the directory vigil was started from.
	ProjectDir string
	// VigilProjectDir is ProjectDir/.vigil.
	VigilProjectDir string

	Project ProjectConfig
}

// InitVigilDir creates the .vigil directory structure.
func InitVigilDir(projectDir string) error {
	vigilDir := filepath.Join(projectDir, VigilDir)
	dirs := []string{
		filepath.Join(vigilDir, "logs"),
		filepath.Join(vigilDir, "saves"),
		filepath.Join(vigilDir, "chronicles"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(vigilDir, "config.yaml"))
}

// NewConfig loads (or defaults) the project configuration.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:      projectDir,
		VigilProjectDir: filepath.Join(projectDir, VigilDir),
		Project:         defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.VigilProjectDir, "logs")
}

// SavesPath returns the path to the save database.
func (c *Config) SavesPath() string {
	return filepath.Join(c.VigilProjectDir, "saves", "saves.db")
}

// ChroniclesDir returns the path to the exported chronicles directory.
func (c *Config) ChroniclesDir() string {
	return filepath.Join(c.VigilProjectDir, "chronicles")
}

// ProjectConfigPath returns the on-disk location of the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.VigilProjectDir, "config.yaml")
}

// APIKey reads the provider credential from the configured environment
// variable. An empty result is a validation error at call time, not here.
func (c *Config) APIKey() string {
	env := c.Project.Provider.APIKeyEnv
	if env == "" {
		env = defaultAPIKeyEnv
	}
	return os.Getenv(env)
}

// InitialDelay returns the parsed retry initial delay.
func (c *Config) InitialDelay() time.Duration {
	return parseDuration(c.Project.Retry.InitialDelay, 500*time.Millisecond)
}

// MaxDelay returns the parsed retry delay cap.
func (c *Config) MaxDelay() time.Duration {
	return parseDuration(c.Project.Retry.MaxDelay, 10*time.Second)
}

// AutoRunYield returns the parsed pause between auto-run steps.
func (c *Config) AutoRunYield() time.Duration {
	return parseDuration(c.Project.AutoRun.Yield, 250*time.Millisecond)
}

// Roster converts the configured cast into roster players.
func (c *Config) Roster() ([]game.Player, error) {
	if len(c.Project.Cast) < 4 {
		return nil, fmt.Errorf("config: cast needs at least 4 members, have %d", len(c.Project.Cast))
	}
	seen := map[string]struct{}{}
	counts := map[game.Role]int{}
	roster := make([]game.Player, 0, len(c.Project.Cast))
	for i, member := range c.Project.Cast {
		name := strings.TrimSpace(member.Name)
		if name == "" {
			return nil, fmt.Errorf("config: cast[%d]: name is required", i)
		}
		if _, dup := seen[strings.ToLower(name)]; dup {
			return nil, fmt.Errorf("config: cast[%d]: duplicate name %q", i, name)
		}
		seen[strings.ToLower(name)] = struct{}{}
		role, ok := game.ParseRole(member.Role)
		if !ok || role == game.RoleRisen {
			return nil, fmt.Errorf("config: cast[%d]: unknown role %q", i, member.Role)
		}
		counts[role]++
		roster = append(roster, game.Player{
			Name:    name,
			Role:    role,
			Alive:   true,
			Persona: strings.TrimSpace(member.Persona),
		})
	}
	if counts[game.RoleMarked] == 0 {
		return nil, fmt.Errorf("config: cast needs at least one marked")
	}
	if n := counts[game.RoleTwin]; n != 0 && n != 2 {
		return nil, fmt.Errorf("config: twins come in pairs, have %d", n)
	}
	for _, solo := range []game.Role{game.RoleListener, game.RoleGuard, game.RoleCoroner, game.RoleHeretic} {
		if counts[solo] > 1 {
			return nil, fmt.Errorf("config: at most one %s, have %d", solo, counts[solo])
		}
	}
	return roster, nil
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	var parsed ProjectConfig
	// The embedded default is authored in this package; it always parses.
	_ = yaml.Unmarshal([]byte(defaultConfigYAML), &parsed)
	parsed.applyDefaults()
	return parsed
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Provider.Model) == "" {
		pc.Provider.Model = defaultModel
	}
	if strings.TrimSpace(pc.Provider.APIKeyEnv) == "" {
		pc.Provider.APIKeyEnv = defaultAPIKeyEnv
	}
	if pc.Retry.MaxAttempts == 0 {
		pc.Retry.MaxAttempts = 4
	}
}

func (pc ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	for _, field := range []struct{ name, value string }{
		{"retry.initial_delay", pc.Retry.InitialDelay},
		{"retry.max_delay", pc.Retry.MaxDelay},
		{"auto_run.yield", pc.AutoRun.Yield},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	return nil
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
