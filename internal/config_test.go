package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/coursevault/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Canvas.Token = "secret"
	return cfg
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_NeedsToken(t *testing.T) {
	cfg := NewDefaultConfig()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "CANVAS_API_TOKEN") {
		t.Fatalf("err = %v, want missing token", err)
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config with token should pass: %v", err)
	}
}

func TestSyncConfig_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad time", func(c *Config) { c.Sync.Time = "6am" }},
		{"hour out of range", func(c *Config) { c.Sync.Time = "24:00" }},
		{"unknown zone", func(c *Config) { c.Sync.Timezone = "Mars/Olympus" }},
		{"no attempts", func(c *Config) { c.Sync.Retry.MaxAttempts = 0 }},
		{"max below base", func(c *Config) { c.Sync.Retry.MaxDelay = time.Millisecond }},
		{"course without id", func(c *Config) { c.Sync.Courses = []CourseConfig{{Name: "CS 101"}} }},
		{"non numeric course", func(c *Config) { c.Sync.Courses = []CourseConfig{{ID: "abc"}} }},
		{"bad base url", func(c *Config) { c.Canvas.BaseURL = "not a url" }},
		{"negative window", func(c *Config) { c.Canvas.CalendarPastDays = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := validConfig()
	cfg.Vault.Path = "/vault"
	if got := cfg.DBPath(); got != filepath.Join("/vault", ".canvas_sync", "sync.db") {
		t.Errorf("DBPath = %q", got)
	}
	if got := cfg.DaemonLogFile(); got != filepath.Join("/vault", ".canvas_sync", "sync.log") {
		t.Errorf("DaemonLogFile = %q", got)
	}
	cfg.SQLite.Path = "/tmp/x.db"
	if cfg.DBPath() != "/tmp/x.db" {
		t.Error("explicit sqlite path ignored")
	}
	p := cfg.Sync.Retry.Policy()
	if p.MaxAttempts != 3 || p.BaseDelay != time.Second || p.MaxDelay != 8*time.Second {
		t.Errorf("retry policy = %+v", p)
	}
}

func TestLoad_YAMLWithEnv(t *testing.T) {
	t.Setenv("CANVAS_API_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
vault:
  path: /tmp/vault
canvas:
  token: ${CANVAS_API_TOKEN}
  timeout: 10s
sync:
  time: "07:30"
  timezone: UTC
  retry:
    max_attempts: 5
    base_delay: 500ms
    max_delay: 4s
  courses:
    - id: "123"
      name: CS 101
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Canvas.Token != "from-env" || cfg.Canvas.Timeout != 10*time.Second {
		t.Errorf("canvas = %+v", cfg.Canvas)
	}
	if cfg.Canvas.BaseURL == "" || cfg.Canvas.CalendarFutureDays != 365 {
		t.Errorf("defaults lost: %+v", cfg.Canvas)
	}
	if cfg.Sync.Retry.BaseDelay != 500*time.Millisecond || cfg.Sync.Retry.MaxAttempts != 5 {
		t.Errorf("retry = %+v", cfg.Sync.Retry)
	}
	courses := cfg.Sync.CourseList()
	if len(courses) != 1 || courses[0].ID != "123" || courses[0].Name != "CS 101" {
		t.Errorf("courses = %+v", courses)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvCanvasToken, "tok")
	t.Setenv(EnvVaultPath, "/notes")
	t.Setenv(EnvCanvasURL, "")
	cfg := NewDefaultConfig()
	cfg.ApplyEnv()
	if cfg.Canvas.Token != "tok" || cfg.Vault.Path != "/notes" {
		t.Errorf("env not applied: %+v / %+v", cfg.Canvas, cfg.Vault)
	}
	if cfg.Canvas.BaseURL == "" {
		t.Error("empty variable cleared the default base url")
	}
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	t.Setenv(EnvCanvasToken, "env-token")
	t.Setenv(EnvCanvasURL, "https://canvas.example.edu")
	t.Setenv(EnvVaultPath, "/env/vault")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
vault:
  path: /file/vault
canvas:
  base_url: https://canvas.illinois.edu
  token: file-token
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vault.Path != "/env/vault" || cfg.Canvas.BaseURL != "https://canvas.example.edu" || cfg.Canvas.Token != "env-token" {
		t.Errorf("env did not win: vault=%q canvas=%+v", cfg.Vault.Path, cfg.Canvas)
	}
}

func TestLoad_SampleConfig(t *testing.T) {
	t.Setenv(EnvCanvasToken, "env-token")
	t.Setenv(EnvVaultPath, "/env/vault")
	t.Setenv(EnvCanvasURL, "")
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(filepath.Join("..", "config", "config.yaml"), cfg); err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if cfg.Vault.Path != "/env/vault" || cfg.Canvas.Token != "env-token" {
		t.Errorf("sample config: vault=%q token=%q", cfg.Vault.Path, cfg.Canvas.Token)
	}
	if cfg.Canvas.BaseURL == "" {
		t.Error("sample config cleared the default base url")
	}
}
