package regserver

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/cpusysregs/internal/ipc"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

const (
	BackendNative   = "native"
	BackendSnapshot = "snapshot"
)

// Config is the cpusysregsd configuration file.
type Config struct {
	Socket   string `yaml:"socket,omitempty"`
	Backend  string `yaml:"backend"`
	Snapshot string `yaml:"snapshot,omitempty"`
	// SnapshotCPU selects which recorded CPU the snapshot backend replays.
	SnapshotCPU int    `yaml:"snapshotCPU,omitempty"`
	LogLevel    string `yaml:"logLevel,omitempty"`

	// AllowWrites lists registers Set commands may reach. Empty means all
	// writable registers the backend supports. The native backend only
	// executes MSR when the list is non-empty.
	AllowWrites []string `yaml:"allowWrites,omitempty"`
}

func (c *Config) normalize() {
	if c.Backend == "" {
		c.Backend = BackendNative
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Socket == "" {
		c.Socket = ipc.DefaultSocketPath()
	}
}

// Validate checks the backend selection and resolves every name in
// AllowWrites.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNative:
	case BackendSnapshot:
		if c.Snapshot == "" {
			return fmt.Errorf("backend %q needs a snapshot path", c.Backend)
		}
		if c.SnapshotCPU < 0 {
			return fmt.Errorf("snapshot cpu %d is negative", c.SnapshotCPU)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	_, err := c.Writable()
	return err
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// Writable resolves AllowWrites to register IDs. A nil result means no
// restriction.
func (c Config) Writable() ([]sysreg.ID, error) {
	if len(c.AllowWrites) == 0 {
		return nil, nil
	}
	ids := make([]sysreg.ID, 0, len(c.AllowWrites))
	for _, name := range c.AllowWrites {
		e, ok := sysreg.ByName(name)
		if !ok {
			return nil, &sysreg.CatalogError{Op: "allowWrites", Name: name, Err: sysreg.ErrUnknownRegister}
		}
		if err := e.CheckAccess(true); err != nil {
			return nil, err
		}
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// LoadConfig reads and validates a configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var cfg Config
	cfg.normalize()
	return cfg
}

// WriteConfig writes cfg as YAML, creating the parent directory.
func WriteConfig(path string, cfg Config) error {
	cfg.normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	return nil
}
