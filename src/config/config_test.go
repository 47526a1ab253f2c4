package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv(APIKeyPathEnvVar, filepath.Join(t.TempDir(), "missing"))
	t.Setenv("OPENAI_API_KEY", "test_api_key")
	t.Setenv("OCR_MODEL", "test_model")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("INITIAL_WAIT", "2.5")
	t.Setenv("PANEL_ANCHOR", "LEFT")
	t.Setenv("PROVIDERS", " a, ,b ")
	t.Setenv("NAME_DENYLIST", "Support,Bot")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.APIKey != "test_api_key" {
		t.Errorf("Expected APIKey to be 'test_api_key', got '%s'", cfg.APIKey)
	}
	if cfg.Model != "test_model" {
		t.Errorf("Expected Model to be 'test_model', got '%s'", cfg.Model)
	}
	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true, got %v", cfg.EnableFileLogging)
	}
	if cfg.Timings.InitialWait != 2500*time.Millisecond {
		t.Errorf("Expected InitialWait 2.5s, got %v", cfg.Timings.InitialWait)
	}
	if cfg.Panel.Anchor != AnchorLeft {
		t.Errorf("Expected anchor left, got %q", cfg.Panel.Anchor)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0] != "a" || cfg.Providers[1] != "b" {
		t.Errorf("Unexpected providers: %#v", cfg.Providers)
	}
	if len(cfg.NameDenylist) != 2 {
		t.Errorf("Unexpected denylist: %#v", cfg.NameDenylist)
	}
	if !cfg.HasOCR() {
		t.Error("Expected HasOCR with key and model set")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(APIKeyPathEnvVar, filepath.Join(t.TempDir(), "missing"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("WINDOW_POLL_INTERVAL", "-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Panel.Anchor != AnchorRight || cfg.Panel.Width != 290 || cfg.Panel.Height != 250 {
		t.Errorf("Unexpected panel defaults: %+v", cfg.Panel)
	}
	if cfg.Panel.Top+cfg.Panel.TopPadding != 70 {
		t.Errorf("Expected combined top offset 70, got %d", cfg.Panel.Top+cfg.Panel.TopPadding)
	}
	if cfg.MinImageBytes != 20000 {
		t.Errorf("Expected plausibility floor 20000, got %d", cfg.MinImageBytes)
	}
	if cfg.MinAlphaRatio != 0.5 {
		t.Errorf("Expected alpha ratio 0.5, got %v", cfg.MinAlphaRatio)
	}
	if cfg.Timings.PollInterval != 250*time.Millisecond {
		t.Errorf("Negative poll interval should fall back to default, got %v", cfg.Timings.PollInterval)
	}
	if cfg.Timings.RetryTimeout >= cfg.Timings.WindowTimeout {
		t.Errorf("Retry timeout %v should be shorter than primary %v", cfg.Timings.RetryTimeout, cfg.Timings.WindowTimeout)
	}
	if cfg.CaptureMode != BackendAuto {
		t.Errorf("Expected auto capture mode, got %q", cfg.CaptureMode)
	}
	if cfg.HasOCR() {
		t.Error("Expected HasOCR false without an API key")
	}
}

func TestAPIKeyFileTakesPrecedence(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyFile, []byte("  file_key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "env_key")

	cfg, err := LoadWithOptions(LoadOptions{APIKeyPathOverride: keyFile})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.APIKey != "file_key" {
		t.Errorf("Expected key from file, got %q", cfg.APIKey)
	}
	if cfg.APIKeyPath != keyFile {
		t.Errorf("Expected APIKeyPath %q, got %q", keyFile, cfg.APIKeyPath)
	}
}

func TestEnvFileOverride(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "agent.env")
	if err := os.WriteFile(envFile, []byte("AGENT_PORT=6060\nCAPTURE_BACKEND=screen\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGENT_PORT", "")
	t.Setenv("CAPTURE_BACKEND", "")
	os.Unsetenv("AGENT_PORT")
	os.Unsetenv("CAPTURE_BACKEND")

	cfg, err := LoadWithOptions(LoadOptions{EnvPathOverride: envFile})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Port != 6060 {
		t.Errorf("Expected port from env file, got %d", cfg.Port)
	}
	if cfg.CaptureMode != BackendScreen {
		t.Errorf("Expected screen capture mode, got %q", cfg.CaptureMode)
	}
}
