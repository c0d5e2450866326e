// Package config loads and validates the cronrun configuration.
// It uses koanf v2 to read a YAML file describing daemon settings and
// the job table, and can write a commented example configuration for
// first-time setup.
//
// Configuration is loaded from /etc/cronrun/config.yaml by default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	goyaml "gopkg.in/yaml.v3"

	"github.com/doughall/cronrun/internal/cron"
)

// DefaultConfigPath is the default location of the daemon configuration.
const DefaultConfigPath = "/etc/cronrun/config.yaml"

// Job describes one scheduled job.
type Job struct {
	// Name uniquely identifies the job; it keys the run history and
	// appears in logs and notifications.
	Name string `koanf:"name" yaml:"name"`

	// Schedule is a five-field cron expression.
	Schedule string `koanf:"schedule" yaml:"schedule"`

	// Command is a shell command line, run with `sh -c`. Exactly one of
	// Command or Script must be set.
	Command string `koanf:"command" yaml:"command,omitempty"`

	// Script is inline script content fed to Interpreter via stdin.
	Script string `koanf:"script" yaml:"script,omitempty"`

	// Interpreter runs Script; one of bash, sh, python, perl.
	Interpreter string `koanf:"interpreter" yaml:"interpreter,omitempty"`

	// TimeoutSeconds bounds one execution. Default: 60.
	TimeoutSeconds int `koanf:"timeout_seconds" yaml:"timeout_seconds,omitempty"`

	// OutputRetention controls which run outputs are kept in history:
	// "always", "on_failure", or "never". Default: "always".
	OutputRetention string `koanf:"output_retention" yaml:"output_retention,omitempty"`
}

// NATS holds optional NATS reporting settings. Reporting is enabled
// when Servers and NKeySeed are both set.
type NATS struct {
	// Servers is a comma-separated list of NATS server URLs.
	Servers string `koanf:"servers" yaml:"servers,omitempty"`

	// NKeySeed is the NKey seed used for authentication (starts with SU).
	NKeySeed string `koanf:"nkey_seed" yaml:"nkey_seed,omitempty"`

	// SubjectPrefix prefixes all published subjects. Default: "cronrun".
	SubjectPrefix string `koanf:"subject_prefix" yaml:"subject_prefix,omitempty"`
}

// Config is the daemon configuration.
type Config struct {
	// LogLevel: "debug", "info", "warn", "error". Default: "info".
	LogLevel string `koanf:"log_level" yaml:"log_level"`

	// DataDir holds the run-history database. Default: /var/lib/cronrun.
	DataDir string `koanf:"data_dir" yaml:"data_dir"`

	// TickSeconds is how often the scheduler checks for due jobs.
	// Default: 30.
	TickSeconds int `koanf:"tick_seconds" yaml:"tick_seconds"`

	// MaxLoad1m defers job execution while the 1-minute load average
	// exceeds this value. 0 disables the guard.
	MaxLoad1m float64 `koanf:"max_load_1m" yaml:"max_load_1m,omitempty"`

	// WebhookURL, when set, receives a JSON report per job run.
	WebhookURL string `koanf:"webhook_url" yaml:"webhook_url,omitempty"`

	// NotifyOn filters webhook/NATS run reports: "always" or
	// "failures". Default: "always".
	NotifyOn string `koanf:"notify_on" yaml:"notify_on,omitempty"`

	// NATS configures optional NATS run reporting.
	NATS NATS `koanf:"nats" yaml:"nats,omitempty"`

	// Jobs is the job table.
	Jobs []Job `koanf:"jobs" yaml:"jobs"`
}

// Validation errors returned by Load.
var (
	ErrNoJobs          = errors.New("at least one job is required")
	ErrInvalidTick     = errors.New("tick_seconds must be positive")
	ErrInvalidNotifyOn = errors.New("notify_on must be \"always\" or \"failures\"")
)

// Load reads the YAML configuration at path, applies defaults, and
// validates it (including parsing every job's cron expression).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/cronrun"
	}
	if c.TickSeconds == 0 {
		c.TickSeconds = 30
	}
	if c.NotifyOn == "" {
		c.NotifyOn = "always"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "cronrun"
	}
	for i := range c.Jobs {
		if c.Jobs[i].TimeoutSeconds == 0 {
			c.Jobs[i].TimeoutSeconds = 60
		}
		if c.Jobs[i].OutputRetention == "" {
			c.Jobs[i].OutputRetention = "always"
		}
	}
}

func (c *Config) validate() error {
	if c.TickSeconds <= 0 {
		return ErrInvalidTick
	}
	if c.NotifyOn != "always" && c.NotifyOn != "failures" {
		return ErrInvalidNotifyOn
	}
	if len(c.Jobs) == 0 {
		return ErrNoJobs
	}

	names := make(map[string]bool, len(c.Jobs))
	for _, job := range c.Jobs {
		if job.Name == "" {
			return errors.New("job name is required")
		}
		if names[job.Name] {
			return fmt.Errorf("duplicate job name %q", job.Name)
		}
		names[job.Name] = true

		if _, err := cron.Parse(job.Schedule); err != nil {
			return fmt.Errorf("job %q: invalid schedule: %w", job.Name, err)
		}

		hasCommand := job.Command != ""
		hasScript := job.Script != ""
		if hasCommand == hasScript {
			return fmt.Errorf("job %q: exactly one of command or script is required", job.Name)
		}
		if hasScript && job.Interpreter == "" {
			return fmt.Errorf("job %q: script requires an interpreter", job.Name)
		}
		if job.TimeoutSeconds <= 0 {
			return fmt.Errorf("job %q: timeout_seconds must be positive", job.Name)
		}
		switch job.OutputRetention {
		case "always", "on_failure", "never":
		default:
			return fmt.Errorf("job %q: unknown output_retention %q", job.Name, job.OutputRetention)
		}
	}

	return nil
}

// NATSEnabled reports whether NATS run reporting is configured.
func (c *Config) NATSEnabled() bool {
	return c.NATS.Servers != "" && c.NATS.NKeySeed != ""
}

// WriteExample writes a starter configuration to path. It refuses to
// overwrite an existing file.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing %s", path)
	}

	example := &Config{
		LogLevel:    "info",
		DataDir:     "/var/lib/cronrun",
		TickSeconds: 30,
		Jobs: []Job{
			{
				Name:            "sync-mirrors",
				Schedule:        "*/15 * * * *",
				Command:         "rsync -a /srv/mirrors/ backup:/srv/mirrors/",
				TimeoutSeconds:  300,
				OutputRetention: "on_failure",
			},
			{
				Name:        "nightly-report",
				Schedule:    "5 0 * * *",
				Script:      "print('nightly report')\n",
				Interpreter: "python",
			},
		},
	}

	data, err := goyaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config to %s: %w", path, err)
	}
	return nil
}
