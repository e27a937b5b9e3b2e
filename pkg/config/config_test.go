package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "agents": {"defaults": {"provider": "fantasy", "model": "gpt-4o-mini"}},
	  "safety": {"banned_terms": ["kumar"], "rate_max_requests": 5},
	  "server": {"port": 8080},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
	if cfg.Agents.Defaults.Provider != "fantasy" {
		t.Fatalf("agents.defaults.provider = %q, want fantasy", cfg.Agents.Defaults.Provider)
	}
	if cfg.Safety.RateMaxRequests != 5 {
		t.Fatalf("safety.rate_max_requests = %d, want 5", cfg.Safety.RateMaxRequests)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("server.port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoadConfigKeepsDefaultsForMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"port": 9000}}`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Safety.MaxLength != 10000 || cfg.Safety.MinLength != 2 {
		t.Fatalf("safety lengths = %d/%d, want 10000/2", cfg.Safety.MaxLength, cfg.Safety.MinLength)
	}
	if cfg.Safety.RateWindowMS != 60000 || cfg.Safety.RateMaxRequests != 30 {
		t.Fatalf("rate settings = %d/%d, want 60000/30", cfg.Safety.RateWindowMS, cfg.Safety.RateMaxRequests)
	}
	if cfg.Context.MaxTokens != 16000 || cfg.Context.SystemReserve != 500 || cfg.Context.ReplyReserve != 1500 {
		t.Fatalf("context = %+v", cfg.Context)
	}
	if cfg.Agents.Defaults.Model != "llama-3.1-70b-versatile" {
		t.Fatalf("model = %q", cfg.Agents.Defaults.Model)
	}
	if cfg.Providers.OpenAI.BaseURL != "https://api.groq.com/openai/v1" {
		t.Fatalf("openai base url = %q", cfg.Providers.OpenAI.BaseURL)
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadOrDefaultWithoutFile(t *testing.T) {
	t.Setenv(envConfigPath, "")
	t.Chdir(t.TempDir())
	t.Setenv(envWeatherAPIKey, "weather-key")
	t.Setenv(envPort, "4000")

	if _, err := LoadConfig(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadConfig error = %v, want ErrNotFound", err)
	}

	cfg, err := LoadOrDefault()
	if err != nil {
		t.Fatalf("LoadOrDefault error: %v", err)
	}
	if cfg.Tools.Weather.APIKey != "weather-key" {
		t.Fatalf("weather api key = %q, want env override", cfg.Tools.Weather.APIKey)
	}
	if cfg.Server.Port != 4000 {
		t.Fatalf("server.port = %d, want 4000", cfg.Server.Port)
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" 1, ,2 ,3")
	if len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "3" {
		t.Fatalf("parseCSV = %#v", got)
	}
}
