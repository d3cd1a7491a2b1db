package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SecretMask replaces secrets wherever configuration is echoed.
const SecretMask = "***OCULTO***"

// Config holds application level configuration aggregated from env/config files.
// Both binaries load the same structure and read the sections they need.
type Config struct {
	Environment string
	Auth        struct {
		Secret             string
		TokenExpireMinutes int
		Port               int
		UserStore          string
		UserDBPath         string
		LogFile            string
	}
	Server struct {
		Port int
	}
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
	}
	Peer struct {
		URL     string
		Timeout time.Duration
	}
	Archive struct {
		Bucket   string
		Prefix   string
		Interval time.Duration
		Region   string
		Endpoint string
		Profile  string
	}
}

// TokenLifetime is the configured token lifetime.
func (c Config) TokenLifetime() time.Duration {
	return time.Duration(c.Auth.TokenExpireMinutes) * time.Minute
}

// envBindings maps config keys to the environment variables of the deployment.
var envBindings = map[string]string{
	"environment":             "ENVIRONMENT",
	"auth.secret":             "JWT_SECRET_KEY",
	"auth.tokenexpireminutes": "TOKEN_EXPIRE_MINUTES",
	"auth.port":               "AUTH_SERVICE_PORT",
	"auth.userstore":          "USER_STORE",
	"auth.userdbpath":         "USER_DB_PATH",
	"auth.logfile":            "AUTH_LOG_FILE",
	"server.port":             "API_PORT",
	"database.host":           "DB_HOST",
	"database.port":           "DB_PORT",
	"database.user":           "DB_USER",
	"database.password":       "DB_PASSWORD",
	"database.name":           "DB_NAME",
	"database.sslmode":        "DB_SSLMODE",
	"peer.url":                "AUTH_SERVICE_URL",
	"peer.timeout":            "AUTH_SERVICE_TIMEOUT",
	"archive.bucket":          "LOG_ARCHIVE_BUCKET",
	"archive.prefix":          "LOG_ARCHIVE_PREFIX",
	"archive.interval":        "LOG_ARCHIVE_INTERVAL",
	"archive.region":          "AWS_REGION",
	"archive.endpoint":        "S3_ENDPOINT",
	"archive.profile":         "AWS_PROFILE",
}

// Load reads configuration from environment variables, an optional config
// file and, when flags is non-nil, command-line flags. Flags registered with
// RegisterFlags override every other source once they are set.
func Load(flags *pflag.FlagSet) (Config, error) {
	loadDotEnv()

	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetDefault("environment", "development")
	v.SetDefault("auth.secret", "clave_secreta_proyecto_aso_2024")
	v.SetDefault("auth.tokenexpireminutes", 30)
	v.SetDefault("auth.port", 8001)
	v.SetDefault("auth.userstore", "memory")
	v.SetDefault("auth.userdbpath", "data/users.db")
	v.SetDefault("auth.logfile", defaultAuthLogFile())
	v.SetDefault("server.port", 8000)
	v.SetDefault("database.host", "host.docker.internal")
	v.SetDefault("database.port", 5433)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "admin")
	v.SetDefault("database.name", "mensajeria")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("peer.url", "http://localhost:8001")
	v.SetDefault("peer.timeout", 5*time.Second)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "request-logs")
	v.SetDefault("archive.interval", 5*time.Minute)
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.profile", "")

	configFile := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
		if err := bindFlag(v, flags, "port", "auth.port", "server.port"); err != nil {
			return Config{}, err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		_ = v.ReadInConfig() // optional file
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RegisterFlags adds the command-line flags understood by Load.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a config file (yaml, json or toml)")
	flags.Int("port", 0, "listen port (overrides the environment)")
}

func bindFlag(v *viper.Viper, flags *pflag.FlagSet, name string, keys ...string) error {
	f := flags.Lookup(name)
	if f == nil || !f.Changed {
		return nil
	}
	for _, key := range keys {
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return fmt.Errorf("auth jwt secret is required")
	}
	if c.Auth.TokenExpireMinutes <= 0 {
		return fmt.Errorf("token lifetime must be positive, got %d minutes", c.Auth.TokenExpireMinutes)
	}
	switch c.Auth.UserStore {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown user store %q", c.Auth.UserStore)
	}
	return nil
}

// defaultAuthLogFile keeps the container convention of writing to
// /app/logs when that directory is mounted.
func defaultAuthLogFile() string {
	if fi, err := os.Stat("/app/logs"); err == nil && fi.IsDir() {
		return "/app/logs/auth.log"
	}
	return ""
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
