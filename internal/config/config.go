package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderMock   Provider = "mock"
)

// FailureMode selects how upstream completion failures reach HTTP callers.
type FailureMode string

const (
	// FailureModeLegacy answers 200 with the diagnostic comment as the reply.
	FailureModeLegacy FailureMode = "legacy"
	// FailureModeStrict answers 502 with the upstream error text.
	FailureModeStrict FailureMode = "strict"
)

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 9000
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Admin         AdminConfig
	AI            AIConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
	MaxInFlight  int
}

type AdminConfig struct {
	Address string
}

type AIConfig struct {
	Provider     Provider
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	SystemPrompt string
	StripFences  bool
	FailureMode  FailureMode
	// Invalid holds parse errors for translator settings. They do not fail
	// Load; the translator factory reports them so the server can keep
	// serving as unavailable.
	Invalid error
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

// LoadDotEnv populates the process environment from a dotenv file without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// EnvFilePath returns the dotenv file named by AIBRIDGE_ENV_FILE, or ".env".
func EnvFilePath(lookup LookupFunc) string {
	if lookup != nil {
		if raw, ok := lookup("AIBRIDGE_ENV_FILE"); ok {
			return strings.TrimSpace(raw)
		}
	}
	return ".env"
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("AIBRIDGE_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid AIBRIDGE_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "AIBRIDGE_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "AIBRIDGE_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "AIBRIDGE_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "AIBRIDGE_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "AIBRIDGE_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "AIBRIDGE_HTTP_MAX_BODY_BYTES", &cfg.HTTP.MaxBodyBytes); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "AIBRIDGE_HTTP_MAX_IN_FLIGHT", &cfg.HTTP.MaxInFlight); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "AIBRIDGE_ADMIN_ADDR", &cfg.Admin.Address); err != nil {
		return Config{}, err
	}
	var aiErrs []error
	collect := func(err error) {
		if err != nil {
			aiErrs = append(aiErrs, err)
		}
	}
	applyProvider(lookup, "AIBRIDGE_AI_PROVIDER", &cfg.AI.Provider)
	collect(applyString(lookup, "AIBRIDGE_AI_BASE_URL", &cfg.AI.BaseURL))
	// DASHSCOPE_API_KEY is the variable the assistant scripts always used.
	collect(applyString(lookup, "DASHSCOPE_API_KEY", &cfg.AI.APIKey))
	collect(applyString(lookup, "AIBRIDGE_AI_API_KEY", &cfg.AI.APIKey))
	collect(applyString(lookup, "AIBRIDGE_AI_MODEL", &cfg.AI.Model))
	collect(applyFloat(lookup, "AIBRIDGE_AI_TEMPERATURE", &cfg.AI.Temperature))
	collect(applyDuration(lookup, "AIBRIDGE_AI_TIMEOUT", &cfg.AI.Timeout))
	collect(applyRawString(lookup, "AIBRIDGE_AI_SYSTEM_PROMPT", &cfg.AI.SystemPrompt))
	collect(applyBool(lookup, "AIBRIDGE_AI_STRIP_FENCES", &cfg.AI.StripFences))
	cfg.AI.Invalid = errors.Join(aiErrs...)

	if err := applyFailureMode(lookup, "AIBRIDGE_UPSTREAM_FAILURE_MODE", &cfg.AI.FailureMode); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "AIBRIDGE_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "AIBRIDGE_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("invalid AIBRIDGE_HTTP_MAX_BODY_BYTES: must be positive")
	}
	if cfg.HTTP.MaxInFlight < 0 {
		return Config{}, fmt.Errorf("invalid AIBRIDGE_HTTP_MAX_IN_FLIGHT: must not be negative")
	}
	return cfg, nil
}

// ApplyListenArg overrides the listen address from a single command-line
// argument of the form "host:port" or "port". A port that does not parse
// as an integer leaves the configured port untouched.
func ApplyListenArg(cfg *Config, arg string) {
	arg = strings.TrimSpace(arg)
	if cfg == nil || arg == "" {
		return
	}
	host, port := splitAddress(cfg.HTTP.Address)
	if idx := strings.Index(arg, ":"); idx >= 0 {
		host = arg[:idx]
		if p, err := strconv.Atoi(arg[idx+1:]); err == nil {
			port = p
		}
	} else if p, err := strconv.Atoi(arg); err == nil {
		port = p
	}
	cfg.HTTP.Address = net.JoinHostPort(host, strconv.Itoa(port))
}

func splitAddress(address string) (string, int) {
	host, rawPort, err := net.SplitHostPort(address)
	if err != nil {
		return DefaultHost, DefaultPort
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return host, DefaultPort
	}
	return host, port
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "aibridge"},
		HTTP: HTTPConfig{
			Address:      net.JoinHostPort(DefaultHost, strconv.Itoa(DefaultPort)),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 1 << 20,
			MaxInFlight:  16,
		},
		Admin: AdminConfig{
			Address: ":9100",
		},
		AI: AIConfig{
			Provider:    ProviderOpenAI,
			BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:       "qwen-plus",
			Timeout:     60 * time.Second,
			FailureMode: FailureModeLegacy,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = "127.0.0.1:19000"
		cfg.Admin.Address = ""
		cfg.AI.Provider = ProviderMock
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyRawString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = raw
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

// applyProvider only normalizes; unknown providers are rejected when the
// translator is built.
func applyProvider(lookup LookupFunc, key string, dst *Provider) {
	raw, ok := lookup(key)
	if !ok {
		return
	}
	*dst = Provider(strings.ToLower(strings.TrimSpace(raw)))
}

func applyFailureMode(lookup LookupFunc, key string, dst *FailureMode) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	mode := FailureMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case FailureModeLegacy, FailureModeStrict:
		*dst = mode
		return nil
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
