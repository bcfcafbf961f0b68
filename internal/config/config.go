// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/cityagent/internal/telemetry"
)

// Agent transport modes.
const (
	ModeAgentCore = "agentcore"
	ModeLocal     = "local"
)

// DefaultAgentARN is the workshop weather agent runtime.
const DefaultAgentARN = "arn:aws:bedrock-agentcore:us-east-1:318747609494:runtime/weather_agent-E87KKC6j1D"

// Config holds all application configuration.
type Config struct {
	Port               string
	LogLevel           slog.Level
	CORSAllowedOrigins []string
	SessionTTL         time.Duration

	Agent     AgentConfig
	Telemetry telemetry.Config

	// API keys used by the remote agent's tools. Only their presence is reported.
	OpenWeatherAPIKey  string
	TicketmasterAPIKey string
}

// AgentConfig selects and addresses the agent runtime.
type AgentConfig struct {
	Mode          string
	Region        string
	Profile       string
	RuntimeARN    string
	Qualifier     string
	LocalEndpoint string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	ttlMinutes := getEnvInt("CHAT_SESSION_TTL_MINUTES", 60)

	cfg := &Config{
		Port:               getEnv("PORT", "8501"),
		LogLevel:           parseLevel(getEnv("LOG_LEVEL", "info")),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		SessionTTL:         time.Duration(ttlMinutes) * time.Minute,
		Agent: AgentConfig{
			Mode:          strings.ToLower(strings.TrimSpace(getEnv("AGENT_MODE", ModeAgentCore))),
			Region:        getEnv("AWS_REGION", "us-east-1"),
			Profile:       getEnv("AWS_PROFILE", "workshop-profile"),
			RuntimeARN:    getEnv("AGENT_RUNTIME_ARN", DefaultAgentARN),
			Qualifier:     getEnv("AGENT_QUALIFIER", ""),
			LocalEndpoint: getEnv("AGENT_LOCAL_ENDPOINT", "http://localhost:8080"),
		},
		Telemetry: telemetry.Config{
			ServiceName:     getEnv("OTEL_SERVICE_NAME", "cityagent"),
			TracesExporter:  telemetry.ExporterType(getEnv("OTEL_TRACES_EXPORTER", string(telemetry.ExporterNone))),
			MetricsExporter: telemetry.ExporterType(getEnv("OTEL_METRICS_EXPORTER", string(telemetry.ExporterNone))),
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
		OpenWeatherAPIKey:  getEnv("OPENWEATHER_API_KEY", ""),
		TicketmasterAPIKey: getEnv("TICKETMASTER_API_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("CHAT_SESSION_TTL_MINUTES must be > 0")
	}
	switch c.Agent.Mode {
	case ModeAgentCore:
		if c.Agent.Region == "" {
			return fmt.Errorf("AWS_REGION cannot be empty")
		}
		if !strings.HasPrefix(c.Agent.RuntimeARN, "arn:") {
			return fmt.Errorf("AGENT_RUNTIME_ARN must be an ARN, got %q", c.Agent.RuntimeARN)
		}
	case ModeLocal:
		if !strings.HasPrefix(c.Agent.LocalEndpoint, "http://") && !strings.HasPrefix(c.Agent.LocalEndpoint, "https://") {
			return fmt.Errorf("AGENT_LOCAL_ENDPOINT must be an http(s) URL, got %q", c.Agent.LocalEndpoint)
		}
	default:
		return fmt.Errorf("AGENT_MODE must be %q or %q, got %q", ModeAgentCore, ModeLocal, c.Agent.Mode)
	}
	if !c.Telemetry.TracesExporter.Valid() {
		return fmt.Errorf("OTEL_TRACES_EXPORTER: unknown exporter %q", c.Telemetry.TracesExporter)
	}
	if !c.Telemetry.MetricsExporter.Valid() {
		return fmt.Errorf("OTEL_METRICS_EXPORTER: unknown exporter %q", c.Telemetry.MetricsExporter)
	}
	return nil
}

// AgentTarget returns the ARN or endpoint the client reports in its status.
func (c *Config) AgentTarget() string {
	if c.Agent.Mode == ModeLocal {
		return c.Agent.LocalEndpoint
	}
	return c.Agent.RuntimeARN
}

// IsDevelopment returns true when the agent runs locally.
func (c *Config) IsDevelopment() bool {
	return c.Agent.Mode == ModeLocal
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
