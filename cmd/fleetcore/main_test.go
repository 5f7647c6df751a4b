package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml", true)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_InvalidConfigValues verifies run rejects a config that fails
// validation before touching any infrastructure.
func TestRun_InvalidConfigValues(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")

	configContent := `
site:
  id: test-site

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
  qos: 5

fleet:
  device_timeout: 60s
  sweep_interval: 1s
  max_channels: 8
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath, true)
	if err == nil {
		t.Fatal("run() should fail with invalid qos")
	}
	if !strings.Contains(err.Error(), "mqtt.qos") {
		t.Errorf("error = %v, want mqtt.qos validation failure", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(configEnvVar, "/from/env.yaml")
		path, explicit := resolveConfigPath("/from/flag.yaml")
		if path != "/from/flag.yaml" || !explicit {
			t.Errorf("resolveConfigPath() = %q, %v", path, explicit)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(configEnvVar, "/from/env.yaml")
		path, explicit := resolveConfigPath("")
		if path != "/from/env.yaml" || !explicit {
			t.Errorf("resolveConfigPath() = %q, %v", path, explicit)
		}
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv(configEnvVar, "")
		path, explicit := resolveConfigPath("")
		if path != defaultConfigPath || explicit {
			t.Errorf("resolveConfigPath() = %q, %v", path, explicit)
		}
	})
}

func TestLoadConfig_ImplicitMissingUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), false)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Fleet.DeviceTimeout != 60*time.Second {
		t.Errorf("DeviceTimeout = %v, want 60s", cfg.Fleet.DeviceTimeout)
	}
	if cfg.Events.Capacity != 100 {
		t.Errorf("Events.Capacity = %d, want 100", cfg.Events.Capacity)
	}
}

func TestLoadConfig_ExplicitMissingFails(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), true); err == nil {
		t.Fatal("loadConfig() should fail for a missing explicit path")
	}
}

func TestLoadConfig_File(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
site:
  id: bench
events:
  capacity: 25
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := loadConfig(configPath, false)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Site.ID != "bench" {
		t.Errorf("Site.ID = %q, want bench", cfg.Site.ID)
	}
	if cfg.Events.Capacity != 25 {
		t.Errorf("Events.Capacity = %d, want 25", cfg.Events.Capacity)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "fleetcore "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", "/nonexistent/path/config.yaml"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("Execute() should fail with a missing --config file")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}
