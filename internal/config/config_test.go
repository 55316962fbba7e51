package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
redis:
  addr: "redis:6379"
agents:
  - agent_id: "agent-1"
    name: "Assistant"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Fatalf("expected default http_port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("expected redis.addr to be preserved, got %q", cfg.Redis.Addr)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("expected default logging, got %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, "not_a_real_field: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown top-level field")
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "env-redis:6379")
	path := writeTempConfig(t, `
redis:
  addr: "${TEST_REDIS_ADDR}"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Redis.Addr != "env-redis:6379" {
		t.Fatalf("expected env-expanded addr, got %q", cfg.Redis.Addr)
	}
}

func TestValidateConfigRejectsDriverWithoutDSN(t *testing.T) {
	path := writeTempConfig(t, `
database:
  driver: postgres
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when database.driver is set without a dsn")
	}
}

func TestValidateConfigRejectsAgentWithoutID(t *testing.T) {
	path := writeTempConfig(t, `
agents:
  - name: "Assistant"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an agent missing agent_id")
	}
}

func TestLoadDefaultsUnsetVersionToCurrent(t *testing.T) {
	path := writeTempConfig(t, `
agents:
  - agent_id: "agent-1"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Version != CurrentVersion {
		t.Fatalf("expected version to default to %d, got %d", CurrentVersion, cfg.Version)
	}
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	path := writeTempConfig(t, `
version: 999
agents:
  - agent_id: "agent-1"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a config version newer than this build")
	}
}

func TestJSONSchemaReturnsConfigSchema(t *testing.T) {
	schema, err := JSONSchema()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schema) == 0 {
		t.Fatal("expected a non-empty schema document")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
