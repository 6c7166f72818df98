package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/vowpost/pkg/config"
)

func TestAuthConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         AuthConfig
		wantErr     string
		wantEnabled bool
	}{
		{name: "disabled", cfg: AuthConfig{Mode: AuthModeDisabled}},
		{name: "empty mode means disabled", cfg: AuthConfig{}},
		{name: "token", cfg: AuthConfig{Mode: AuthModeToken, Token: "mysecret"}, wantEnabled: true},
		{name: "token without secret", cfg: AuthConfig{Mode: AuthModeToken}, wantErr: "must be set when mode is token"},
		{name: "unknown mode", cfg: AuthConfig{Mode: "magic", Token: "x"}, wantErr: "mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if cfg.Mode == "" {
				t.Error("mode left empty")
			}
			if cfg.AuthEnabled() != tt.wantEnabled {
				t.Errorf("AuthEnabled() = %v, want %v", cfg.AuthEnabled(), tt.wantEnabled)
			}
		})
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestEditorConfig_Debounce(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		wantErr bool
	}{
		{"default", 300 * time.Millisecond, false},
		{"lower bound", 10 * time.Millisecond, false},
		{"upper bound", 10 * time.Second, false},
		{"too short", time.Millisecond, true},
		{"too long", time.Minute, true},
		{"missing", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := EditorConfig{Debounce: tt.d}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEditorConfig_NegativeTTL(t *testing.T) {
	cfg := EditorConfig{Debounce: time.Second, SessionTTL: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative session ttl should fail")
	}
}

func TestHTTPConfig_CORSOrigins(t *testing.T) {
	ok := HTTPConfig{Port: 8080, CORSOrigins: []string{"https://planner.example", "*"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid origins rejected: %v", err)
	}
	bad := HTTPConfig{Port: 8080, CORSOrigins: []string{"not a url"}}
	if err := bad.Validate(); err == nil {
		t.Fatal("invalid origin should fail")
	}
}

func TestLoadConfig_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("VOWPOST_TEST_TOKEN", "s3cret")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
vault:
  path: ./posts
sqlite:
  path: ./posts.db
auth:
  mode: token
  token: ${VOWPOST_TEST_TOKEN}
editor:
  debounce: 150ms
  slug_ids: true
events:
  outline_throttle: 5s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("token = %q", cfg.Auth.Token)
	}
	if cfg.Editor.Debounce != 150*time.Millisecond || !cfg.Editor.SlugIDs {
		t.Errorf("editor = %+v", cfg.Editor)
	}
	if cfg.Editor.SessionTTL != 30*time.Minute {
		t.Errorf("session ttl default lost: %v", cfg.Editor.SessionTTL)
	}
	if cfg.Events.Heartbeat != 15*time.Second {
		t.Errorf("heartbeat default lost: %v", cfg.Events.Heartbeat)
	}
	if cfg.Events.OutlineThrottle != 5*time.Second {
		t.Errorf("outline throttle = %v", cfg.Events.OutlineThrottle)
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
}

func TestLoadConfig_ShippedFile(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(filepath.Join("..", "config", "config.yaml"), cfg); err != nil {
		t.Fatalf("shipped config does not load: %v", err)
	}
	if cfg.Editor.Debounce != 300*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Editor.Debounce)
	}
}
