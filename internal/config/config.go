package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var validEnvs = map[string]bool{
	"local": true,
	"alpha": true,
	"beta":  true,
	"prod":  true,
}

const (
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

type Config struct {
	ServerPort    string
	AppEnv        string
	AuthDevMode   bool
	LogLevel      string
	Log           LogConfig
	LocalDBPath   string
	RemoteBackend string
	DB            DBConfig
	DynamoDB      DynamoDBConfig
	Sync          SyncConfig
	Network       NetworkConfig
	Cognito       CognitoConfig

	// parse failures, reported by Validate
	errs []error
}

func (c Config) ParseLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) Validate() error {
	if len(c.errs) > 0 {
		return errors.Join(c.errs...)
	}
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("invalid SERVER_PORT %q: %w", c.ServerPort, err)
	}
	if !validEnvs[c.AppEnv] {
		return fmt.Errorf("invalid APP_ENV %q: must be one of local, alpha, beta, prod", c.AppEnv)
	}
	if c.AuthDevMode && c.AppEnv != "local" {
		return fmt.Errorf("AUTH_DEV_MODE must not be enabled in %s environment", c.AppEnv)
	}
	if !c.AuthDevMode {
		if c.Cognito.UserPoolID == "" {
			return fmt.Errorf("COGNITO_USER_POOL_ID is required when AUTH_DEV_MODE is disabled")
		}
		if c.Cognito.AppClientID == "" {
			return fmt.Errorf("COGNITO_APP_CLIENT_ID is required when AUTH_DEV_MODE is disabled")
		}
	}
	if c.LocalDBPath == "" {
		return fmt.Errorf("LOCAL_DB_PATH must not be empty")
	}
	switch c.RemoteBackend {
	case BackendPostgres, BackendMemory:
	case BackendDynamoDB:
		if c.DynamoDB.Table == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required when REMOTE_BACKEND is dynamodb")
		}
	default:
		return fmt.Errorf("invalid REMOTE_BACKEND %q: must be one of postgres, dynamodb, memory", c.RemoteBackend)
	}
	if c.Sync.BatchSize < 1 || c.Sync.BatchSize > 100 {
		return fmt.Errorf("invalid SYNC_BATCH_SIZE %d: must be between 1 and 100", c.Sync.BatchSize)
	}
	if c.Sync.MaxRetries < 1 {
		return fmt.Errorf("invalid SYNC_MAX_RETRIES %d: must be at least 1", c.Sync.MaxRetries)
	}
	if c.Log.MaxSizeMB < 1 {
		return fmt.Errorf("invalid LOG_MAX_SIZE_MB %d: must be positive", c.Log.MaxSizeMB)
	}
	return nil
}

type LogConfig struct {
	// File enables rotated file logging when set.
	File      string
	MaxSizeMB int
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     d.Name,
		RawQuery: fmt.Sprintf("sslmode=%s", url.QueryEscape(d.SSLMode)),
	}
	return u.String()
}

type DynamoDBConfig struct {
	Table      string
	OwnerIndex string
	Region     string
	// Endpoint overrides the service URL, e.g. for DynamoDB Local.
	Endpoint string
}

type SyncConfig struct {
	BatchSize  int
	MaxRetries int
	RetryBase  time.Duration
}

type NetworkConfig struct {
	ProbeURL     string
	PollInterval time.Duration
	ProbeTimeout time.Duration
}

type CognitoConfig struct {
	Region          string
	UserPoolID      string
	AppClientID     string
	AppClientSecret string
}

// Load reads the configuration from environment variables.
func Load() Config {
	l := &loader{}
	return l.load()
}

// LoadFile reads a flat YAML map of the same keys Load understands.
// Environment variables still take precedence over the file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	file := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	l := &loader{file: file}
	return l.load(), nil
}

type loader struct {
	file map[string]string
	errs []error
}

func (l *loader) load() Config {
	cfg := Config{
		ServerPort:  l.envOrDefault("SERVER_PORT", "8080"),
		AppEnv:      l.envOrDefault("APP_ENV", "local"),
		AuthDevMode: strings.EqualFold(l.envOrDefault("AUTH_DEV_MODE", "false"), "true"),
		LogLevel:    l.envOrDefault("LOG_LEVEL", "info"),
		Log: LogConfig{
			File:      l.envOrDefault("LOG_FILE", ""),
			MaxSizeMB: l.intOrDefault("LOG_MAX_SIZE_MB", 10),
		},
		LocalDBPath:   l.envOrDefault("LOCAL_DB_PATH", "tasksync.db"),
		RemoteBackend: strings.ToLower(l.envOrDefault("REMOTE_BACKEND", BackendPostgres)),
		DB: DBConfig{
			Host:     l.envOrDefault("DB_HOST", "localhost"),
			Port:     l.envOrDefault("DB_PORT", "5432"),
			User:     l.envOrDefault("DB_USER", "tasksync"),
			Password: l.envOrDefault("DB_PASSWORD", "tasksync"),
			Name:     l.envOrDefault("DB_NAME", "tasksync"),
			SSLMode:  l.envOrDefault("DB_SSLMODE", "disable"),
		},
		DynamoDB: DynamoDBConfig{
			Table:      l.envOrDefault("DYNAMODB_TABLE", ""),
			OwnerIndex: l.envOrDefault("DYNAMODB_OWNER_INDEX", "ownerId-index"),
			Region:     l.envOrDefault("DYNAMODB_REGION", "ap-northeast-1"),
			Endpoint:   l.envOrDefault("DYNAMODB_ENDPOINT", ""),
		},
		Sync: SyncConfig{
			BatchSize:  l.intOrDefault("SYNC_BATCH_SIZE", 50),
			MaxRetries: l.intOrDefault("SYNC_MAX_RETRIES", 3),
			RetryBase:  l.durationOrDefault("SYNC_RETRY_BASE", time.Second),
		},
		Network: NetworkConfig{
			ProbeURL:     l.envOrDefault("NETWORK_PROBE_URL", "https://clients3.google.com/generate_204"),
			PollInterval: l.durationOrDefault("NETWORK_POLL_INTERVAL", 5*time.Second),
			ProbeTimeout: l.durationOrDefault("NETWORK_PROBE_TIMEOUT", 3*time.Second),
		},
		Cognito: CognitoConfig{
			Region:          l.envOrDefault("COGNITO_REGION", "ap-northeast-1"),
			UserPoolID:      l.envOrDefault("COGNITO_USER_POOL_ID", ""),
			AppClientID:     l.envOrDefault("COGNITO_APP_CLIENT_ID", ""),
			AppClientSecret: l.envOrDefault("COGNITO_APP_CLIENT_SECRET", ""),
		},
	}
	cfg.errs = l.errs
	return cfg
}

func (l *loader) envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := l.file[key]; v != "" {
		return v
	}
	return defaultVal
}

func (l *loader) intOrDefault(key string, defaultVal int) int {
	raw := l.envOrDefault(key, "")
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return defaultVal
	}
	return n
}

func (l *loader) durationOrDefault(key string, defaultVal time.Duration) time.Duration {
	raw := l.envOrDefault(key, "")
	if raw == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return defaultVal
	}
	if d <= 0 {
		l.errs = append(l.errs, fmt.Errorf("invalid %s %q: must be positive", key, raw))
		return defaultVal
	}
	return d
}
