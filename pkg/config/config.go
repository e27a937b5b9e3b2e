package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	envConfigPath        = "ZETA_CONFIG"
	envPort              = "ZETA_PORT"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envWeatherAPIKey     = "WEATHER_API_KEY"
	envSerpAPIKey        = "SERP_API_KEY"
	envRapidAPIKey       = "RAPIDAPI_KEY"
	envFootballAPIKey    = "API_FOOTBALL_KEY"
)

// ErrNotFound reports that no config.json could be located.
var ErrNotFound = errors.New("config file not found")

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Providers ProvidersConfig `json:"providers"`
	Safety    SafetyConfig    `json:"safety"`
	Context   ContextConfig   `json:"context"`
	Tools     ToolsConfig     `json:"tools"`
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Channels  ChannelsConfig  `json:"channels"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// AgentsConfig contains assistant defaults.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

// AgentDefaults describes the default model and generation settings.
type AgentDefaults struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	// SystemPromptFile overrides the embedded assistant persona when set.
	SystemPromptFile string `json:"system_prompt_file,omitempty"`
}

// ProvidersConfig stores per-provider connection settings.
type ProvidersConfig struct {
	OpenAI   OpenAIProviderConfig   `json:"openai"`
	Fantasy  FantasyProviderConfig  `json:"fantasy"`
	OpenCode OpenCodeProviderConfig `json:"opencode"`
	Gemini   GeminiProviderConfig   `json:"gemini"`
}

// OpenAIProviderConfig configures the OpenAI-compatible chat client (Groq by default).
type OpenAIProviderConfig struct {
	BaseURL               string `json:"base_url"`
	APIKeyEnv             string `json:"api_key_env"`
	FallbackAPIKeyEnv     string `json:"fallback_api_key_env,omitempty"`
	FallbackModel         string `json:"fallback_model,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// FantasyProviderConfig configures the fantasy agent-runtime client.
type FantasyProviderConfig struct {
	BaseURL               string `json:"base_url"`
	APIKeyEnv             string `json:"api_key_env"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// OpenCodeProviderConfig configures the OpenCode provider client.
type OpenCodeProviderConfig struct {
	BaseURL               string `json:"base_url"`
	Username              string `json:"username"`
	PasswordEnv           string `json:"password_env"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// GeminiProviderConfig configures the Gemini client.
type GeminiProviderConfig struct {
	APIKeyEnv             string `json:"api_key_env"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// SafetyConfig configures the inbound message gate.
type SafetyConfig struct {
	MaxLength       int      `json:"max_length"`
	MinLength       int      `json:"min_length"`
	BannedTerms     []string `json:"banned_terms"`
	BannedTermsFile string   `json:"banned_terms_file,omitempty"`
	RateWindowMS    int      `json:"rate_window_ms"`
	RateMaxRequests int      `json:"rate_max_requests"`
	MaxIdentities   int      `json:"max_identities"`
}

// ContextConfig configures conversation history budgeting.
type ContextConfig struct {
	MaxTokens     int `json:"max_tokens"`
	SystemReserve int `json:"system_reserve"`
	ReplyReserve  int `json:"reply_reserve"`
}

// ToolsConfig groups external capability settings.
type ToolsConfig struct {
	TimeoutSeconds int            `json:"timeout_seconds"`
	Weather        EndpointConfig `json:"weather"`
	Wikipedia      EndpointConfig `json:"wikipedia"`
	WebSearch      EndpointConfig `json:"web_search"`
	Football       EndpointConfig `json:"football"`
	Instagram      EndpointConfig `json:"instagram"`
	NPM            EndpointConfig `json:"npm"`
}

// EndpointConfig describes one HTTP-backed capability.
type EndpointConfig struct {
	BaseURL        string `json:"base_url,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// ServerConfig configures the HTTP API bind settings.
type ServerConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"`
	TrustProxy  bool     `json:"trust_proxy,omitempty"`
}

// StorageConfig configures conversation persistence.
type StorageConfig struct {
	Path string `json:"path"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allow_from"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
	Insecure    bool   `json:"insecure"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{Defaults: AgentDefaults{
			Provider:    "openai",
			Model:       "llama-3.1-70b-versatile",
			MaxTokens:   1000,
			Temperature: 0.2,
		}},
		Providers: ProvidersConfig{
			OpenAI: OpenAIProviderConfig{
				BaseURL:               "https://api.groq.com/openai/v1",
				APIKeyEnv:             "GROQ_API_KEY",
				RequestTimeoutSeconds: 30,
			},
			Fantasy:  FantasyProviderConfig{APIKeyEnv: "OPENAI_API_KEY", RequestTimeoutSeconds: 30},
			OpenCode: OpenCodeProviderConfig{BaseURL: "http://127.0.0.1:4096", RequestTimeoutSeconds: 30},
			Gemini:   GeminiProviderConfig{APIKeyEnv: "GEMINI_API_KEY", RequestTimeoutSeconds: 30},
		},
		Safety: SafetyConfig{
			MaxLength:       10000,
			MinLength:       2,
			RateWindowMS:    60000,
			RateMaxRequests: 30,
			MaxIdentities:   10000,
		},
		Context: ContextConfig{
			MaxTokens:     16000,
			SystemReserve: 500,
			ReplyReserve:  1500,
		},
		Tools: ToolsConfig{
			TimeoutSeconds: 20,
			Weather:        EndpointConfig{BaseURL: "https://api.weatherapi.com/v1", TimeoutSeconds: 8},
			Wikipedia:      EndpointConfig{BaseURL: "https://tr.wikipedia.org/api/rest_v1", TimeoutSeconds: 5},
			WebSearch:      EndpointConfig{BaseURL: "https://serpapi.com", TimeoutSeconds: 15},
			Football:       EndpointConfig{BaseURL: "https://v3.football.api-sports.io", TimeoutSeconds: 10},
			Instagram:      EndpointConfig{BaseURL: "https://instagram120.p.rapidapi.com", TimeoutSeconds: 10},
			NPM:            EndpointConfig{BaseURL: "https://registry.npmjs.org", TimeoutSeconds: 10},
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        3001,
			CORSOrigins: []string{"*"},
		},
		Storage:   StorageConfig{Path: filepath.Join("data", "zeta.db")},
		Telemetry: TelemetryConfig{Endpoint: "localhost:4317", ServiceName: "zeta", Insecure: true},
		Logging:   LoggingConfig{Format: "text", Level: "info"},
	}
}

// LoadConfig resolves config.json, unmarshals it over Default, and applies environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault behaves like LoadConfig but falls back to Default when no file exists.
func LoadOrDefault() (*Config, error) {
	cfg, err := LoadConfig()
	if errors.Is(err, ErrNotFound) {
		cfg = Default()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return cfg, err
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	if rawPort := strings.TrimSpace(os.Getenv(envPort)); rawPort != "" {
		if port, err := strconv.Atoi(rawPort); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}

	overrideKey(&cfg.Tools.Weather.APIKey, envWeatherAPIKey)
	overrideKey(&cfg.Tools.WebSearch.APIKey, envSerpAPIKey)
	overrideKey(&cfg.Tools.Instagram.APIKey, envRapidAPIKey)
	overrideKey(&cfg.Tools.Football.APIKey, envFootballAPIKey)
}

func overrideKey(target *string, env string) {
	if value := strings.TrimSpace(os.Getenv(env)); value != "" {
		*target = value
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is ZETA_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w (checked %s and %s)", ErrNotFound, candidates[0], candidates[1])
}
