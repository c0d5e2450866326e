// config_test.go tests configuration loading, defaults, and validation.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
log_level: debug
data_dir: /tmp/cronrun-test
jobs:
  - name: backup
    schedule: "5 0 * * *"
    command: /usr/local/bin/backup.sh
  - name: report
    schedule: "*/15 9-17 * * 1-5"
    script: "print('ok')"
    interpreter: python
    timeout_seconds: 120
    output_retention: on_failure
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.TickSeconds != 30 {
		t.Errorf("TickSeconds default = %d, want 30", cfg.TickSeconds)
	}
	if cfg.NotifyOn != "always" {
		t.Errorf("NotifyOn default = %q, want always", cfg.NotifyOn)
	}
	if cfg.NATS.SubjectPrefix != "cronrun" {
		t.Errorf("SubjectPrefix default = %q, want cronrun", cfg.NATS.SubjectPrefix)
	}
	if len(cfg.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(cfg.Jobs))
	}
	if cfg.Jobs[0].TimeoutSeconds != 60 {
		t.Errorf("job timeout default = %d, want 60", cfg.Jobs[0].TimeoutSeconds)
	}
	if cfg.Jobs[0].OutputRetention != "always" {
		t.Errorf("retention default = %q, want always", cfg.Jobs[0].OutputRetention)
	}
	if cfg.Jobs[1].TimeoutSeconds != 120 {
		t.Errorf("job timeout = %d, want 120", cfg.Jobs[1].TimeoutSeconds)
	}
	if cfg.NATSEnabled() {
		t.Error("NATSEnabled should be false without servers")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{
			"no jobs",
			"log_level: info\n",
			"at least one job",
		},
		{
			"bad schedule",
			"jobs:\n  - name: x\n    schedule: \"61 * * * *\"\n    command: /bin/true\n",
			"minute field contains out of range value '61'",
		},
		{
			"duplicate names",
			"jobs:\n  - name: x\n    schedule: \"* * * * *\"\n    command: /bin/true\n  - name: x\n    schedule: \"* * * * *\"\n    command: /bin/true\n",
			"duplicate job name",
		},
		{
			"command and script both set",
			"jobs:\n  - name: x\n    schedule: \"* * * * *\"\n    command: /bin/true\n    script: \"echo hi\"\n",
			"exactly one of command or script",
		},
		{
			"neither command nor script",
			"jobs:\n  - name: x\n    schedule: \"* * * * *\"\n",
			"exactly one of command or script",
		},
		{
			"script without interpreter",
			"jobs:\n  - name: x\n    schedule: \"* * * * *\"\n    script: \"echo hi\"\n",
			"requires an interpreter",
		},
		{
			"bad retention",
			"jobs:\n  - name: x\n    schedule: \"* * * * *\"\n    command: /bin/true\n    output_retention: sometimes\n",
			"unknown output_retention",
		},
		{
			"bad notify_on",
			"notify_on: whenever\njobs:\n  - name: x\n    schedule: \"* * * * *\"\n    command: /bin/true\n",
			"notify_on",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestNATSEnabled(t *testing.T) {
	content := validConfig + `
nats:
  servers: nats://localhost:4222
  nkey_seed: SUABC
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.NATSEnabled() {
		t.Error("NATSEnabled should be true with servers and seed")
	}
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.yaml")
	if err := WriteExample(path); err != nil {
		t.Fatalf("WriteExample: %v", err)
	}

	// The example must load cleanly through the normal path.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if len(cfg.Jobs) == 0 {
		t.Error("example config has no jobs")
	}

	// Refuses to clobber.
	if err := WriteExample(path); err == nil {
		t.Error("expected refusal to overwrite existing file")
	}
}
