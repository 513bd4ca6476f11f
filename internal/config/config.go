package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultProjectURL = "https://github.com/maxgrechnev/pretender-bot"

type Config struct {
	BotToken           string
	BotTransport       string
	WebhookURL         string
	WebhookListenAddr  string
	DataDir            string
	StoreBackend       string
	RelaysFilePath     string
	DatabasePath       string
	ProjectURL         string
	RequestTimeout     time.Duration
	PollTimeoutSeconds int
	Workers            int
	DropPendingUpdates bool
	HealthPort         int
	LogLevel           string
	LogFilePath        string
	LogMaxSizeMB       int
	LogMaxBackups      int
	LogMaxAgeDays      int
	OTLPEndpoint       string
}

// fileValues mirrors the env keys so a YAML file can provide defaults.
type fileValues map[string]string

func LoadFromEnv() (Config, error) {
	envFile := defaultString(os.Getenv("ENV_FILE"), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	file, err := readConfigFile(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if err != nil {
		return Config{}, err
	}
	return load(file.lookup)
}

func load(get func(string) string) (Config, error) {
	dataDir := defaultString(get("DATA_DIR"), "./data")

	botToken, err := readToken(get)
	if err != nil {
		return Config{}, err
	}

	requestTimeoutMs, err := parseIntWithDefault(get, "REQUEST_TIMEOUT_MS", 30000)
	if err != nil {
		return Config{}, err
	}
	pollTimeout, err := parseIntWithDefault(get, "POLL_TIMEOUT_SECONDS", 50)
	if err != nil {
		return Config{}, err
	}
	workers, err := parseIntWithDefault(get, "WORKERS", 8)
	if err != nil {
		return Config{}, err
	}
	healthPort, err := parseIntWithDefault(get, "HEALTH_PORT", 4098)
	if err != nil {
		return Config{}, err
	}
	logMaxSize, err := parseIntWithDefault(get, "LOG_MAX_SIZE_MB", 1)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseIntWithDefault(get, "LOG_MAX_BACKUPS", 1)
	if err != nil {
		return Config{}, err
	}
	logMaxAge, err := parseIntWithDefault(get, "LOG_MAX_AGE_DAYS", 14)
	if err != nil {
		return Config{}, err
	}
	dropPending, err := parseBoolWithDefault(get, "DROP_PENDING_UPDATES", true)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		BotToken:           botToken,
		BotTransport:       defaultString(get("BOT_TRANSPORT"), "polling"),
		WebhookURL:         strings.TrimSpace(get("WEBHOOK_URL")),
		WebhookListenAddr:  defaultString(get("WEBHOOK_LISTEN_ADDR"), ":8090"),
		DataDir:            dataDir,
		StoreBackend:       strings.ToLower(defaultString(get("STORE_BACKEND"), "json")),
		RelaysFilePath:     defaultString(get("RELAYS_FILE"), filepath.Join(dataDir, "pretender-bot.json")),
		DatabasePath:       defaultString(get("DATABASE_PATH"), filepath.Join(dataDir, "pretender-bot.db")),
		ProjectURL:         defaultString(get("PROJECT_URL"), DefaultProjectURL),
		RequestTimeout:     time.Duration(requestTimeoutMs) * time.Millisecond,
		PollTimeoutSeconds: pollTimeout,
		Workers:            workers,
		DropPendingUpdates: dropPending,
		HealthPort:         healthPort,
		LogLevel:           strings.ToLower(defaultString(get("LOG_LEVEL"), "info")),
		LogFilePath:        defaultString(get("LOG_FILE_PATH"), filepath.Join(dataDir, "logs", "pretender-bot.log")),
		LogMaxSizeMB:       logMaxSize,
		LogMaxBackups:      logMaxBackups,
		LogMaxAgeDays:      logMaxAge,
		OTLPEndpoint:       strings.TrimSpace(get("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.BotToken == "" {
		return errors.New("BOT_TOKEN or BOT_TOKEN_FILE is required")
	}
	if cfg.BotTransport != "polling" && cfg.BotTransport != "webhook" {
		return fmt.Errorf("BOT_TRANSPORT must be polling or webhook: got %q", cfg.BotTransport)
	}
	if cfg.BotTransport == "webhook" && cfg.WebhookURL == "" {
		return errors.New("WEBHOOK_URL is required when BOT_TRANSPORT=webhook")
	}
	if cfg.StoreBackend != "json" && cfg.StoreBackend != "sqlite" {
		return fmt.Errorf("STORE_BACKEND must be json or sqlite: got %q", cfg.StoreBackend)
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("WORKERS must be > 0: got %d", cfg.Workers)
	}
	if cfg.PollTimeoutSeconds < 0 {
		return fmt.Errorf("POLL_TIMEOUT_SECONDS must be >= 0: got %d", cfg.PollTimeoutSeconds)
	}
	if cfg.HealthPort < 0 {
		return fmt.Errorf("HEALTH_PORT must be >= 0: got %d", cfg.HealthPort)
	}
	return nil
}

// readToken prefers BOT_TOKEN and falls back to the first line of BOT_TOKEN_FILE.
func readToken(get func(string) string) (string, error) {
	if token := strings.TrimSpace(get("BOT_TOKEN")); token != "" {
		return token, nil
	}
	path := strings.TrimSpace(get("BOT_TOKEN_FILE"))
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read BOT_TOKEN_FILE: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func readConfigFile(path string) (fileValues, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
	}
	var values fileValues
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return values, nil
}

func (f fileValues) lookup(key string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return f[key]
}

func parseIntWithDefault(get func(string) string, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be integer: %w", key, err)
	}
	return v, nil
}

func parseBoolWithDefault(get func(string) string, key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be boolean: %w", key, err)
	}
	return v, nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
