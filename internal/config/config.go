package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Directory DirectoryConfig
	Kerberos  KerberosConfig
	Provision ProvisionConfig
	Lock      LockConfig
	Notify    NotifyConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NATSConfig holds optional NATS publication settings.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines staff authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// DirectoryConfig points at the account directory and the upstream
// affiliation registry.
type DirectoryConfig struct {
	LDAPURL          string
	BindDN           string
	BindPassword     string
	AccountsBaseDN   string
	AffiliateBaseDN  string
	MinUID           int
	ReservedPrefixes []string
}

// KerberosConfig drives the kadmin credential backend.
type KerberosConfig struct {
	KadminPath     string
	AdminPrincipal string
	Keytab         string
}

// ProvisionConfig holds filesystem provisioning roots.
type ProvisionConfig struct {
	HomeRoot string
	WebRoot  string
}

// LockConfig bounds creation-lock acquisition and creation tasks.
type LockConfig struct {
	WaitSeconds        int
	TTLSeconds         int
	TaskTimeoutSeconds int
	TaskRetainSeconds  int
}

// Wait returns the lock acquisition budget.
func (l LockConfig) Wait() time.Duration {
	return time.Duration(l.WaitSeconds) * time.Second
}

// TTL returns the lock's hard expiry.
func (l LockConfig) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
}

// TaskTimeout bounds a whole creation task.
func (l LockConfig) TaskTimeout() time.Duration {
	return time.Duration(l.TaskTimeoutSeconds) * time.Second
}

// TaskRetain is how long finished task handles stay pollable.
func (l LockConfig) TaskRetain() time.Duration {
	return time.Duration(l.TaskRetainSeconds) * time.Second
}

// NotifyConfig holds requester notification settings.
type NotifyConfig struct {
	EmailFrom string
	SMTPAddr  string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "account-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "accounts"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Directory: DirectoryConfig{
			LDAPURL:          getEnv("DIRECTORY_LDAP_URL", "ldaps://127.0.0.1:636"),
			BindDN:           os.Getenv("DIRECTORY_BIND_DN"),
			BindPassword:     os.Getenv("DIRECTORY_BIND_PASSWORD"),
			AccountsBaseDN:   getEnv("DIRECTORY_ACCOUNTS_BASE_DN", "ou=people,dc=example,dc=org"),
			AffiliateBaseDN:  getEnv("DIRECTORY_AFFILIATE_BASE_DN", "ou=people,dc=registry,dc=example,dc=org"),
			MinUID:           getEnvAsInt("DIRECTORY_MIN_UID", 1000),
			ReservedPrefixes: getEnvAsList("DIRECTORY_RESERVED_PREFIXES", []string{"sys"}),
		},
		Kerberos: KerberosConfig{
			KadminPath:     getEnv("KERBEROS_KADMIN_PATH", "/usr/bin/kadmin"),
			AdminPrincipal: getEnv("KERBEROS_ADMIN_PRINCIPAL", "accounts/admin"),
			Keytab:         getEnv("KERBEROS_KEYTAB", "/etc/accounts.keytab"),
		},
		Provision: ProvisionConfig{
			HomeRoot: getEnv("PROVISION_HOME_ROOT", "/home"),
			WebRoot:  getEnv("PROVISION_WEB_ROOT", "/srv/web"),
		},
		Lock: LockConfig{
			WaitSeconds:        getEnvAsInt("CREATION_LOCK_WAIT_SECONDS", 300),
			TTLSeconds:         getEnvAsInt("CREATION_LOCK_TTL_SECONDS", 600),
			TaskTimeoutSeconds: getEnvAsInt("CREATION_TASK_TIMEOUT_SECONDS", 900),
			TaskRetainSeconds:  getEnvAsInt("CREATION_TASK_RETAIN_SECONDS", 3600),
		},
		Notify: NotifyConfig{
			EmailFrom: getEnv("NOTIFY_EMAIL_FROM", "accounts@example.org"),
			SMTPAddr:  os.Getenv("NOTIFY_SMTP_ADDR"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
