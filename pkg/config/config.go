package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Content      ContentConfig
	Progress     ProgressConfig
	Certificates CertificatesConfig
	Fees         FeesConfig
	Catalog      CatalogConfig
	Mailer       MailerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ContentConfig is the single source of defaults applied to newly created
// classes, replacing the scattered per-call-site literals of the legacy
// system.
type ContentConfig struct {
	ClassLockedByDefault    bool
	ClassPublishedByDefault bool
}

// ProgressConfig tunes watch-progress bookkeeping.
type ProgressConfig struct {
	CompletionThreshold float64
}

// CertificatesConfig controls credential numbering, rendering and downloads.
type CertificatesConfig struct {
	NumberPrefix    string
	SequenceDigits  int
	CodeSuffixBytes int
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	VerifyCacheTTL  time.Duration
	DefaultTemplate string
	DefaultGrade    string
	IssuerName      string
	IssuerSignatory string
}

// FeesConfig governs monthly fee generation and defaulter blocking.
type FeesConfig struct {
	DefaultAmount float64
	DueDay        int
	BlockReason   string
}

// CatalogConfig tunes course catalog caching.
type CatalogConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// MailerConfig configures outbound notification mail.
type MailerConfig struct {
	Enabled     bool
	APIKey      string
	FromName    string
	FromAddress string
	Workers     int
	MaxRetries  int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Content = ContentConfig{
		ClassLockedByDefault:    v.GetBool("CLASS_LOCKED_BY_DEFAULT"),
		ClassPublishedByDefault: v.GetBool("CLASS_PUBLISHED_BY_DEFAULT"),
	}

	threshold := v.GetFloat64("PROGRESS_COMPLETION_THRESHOLD")
	if threshold <= 0 || threshold > 100 {
		threshold = 90
	}
	cfg.Progress = ProgressConfig{CompletionThreshold: threshold}

	cfg.Certificates = CertificatesConfig{
		NumberPrefix:    v.GetString("CERT_NUMBER_PREFIX"),
		SequenceDigits:  v.GetInt("CERT_SEQUENCE_DIGITS"),
		CodeSuffixBytes: v.GetInt("CERT_CODE_SUFFIX_BYTES"),
		StorageDir:      v.GetString("CERT_STORAGE_DIR"),
		SignedURLSecret: v.GetString("CERT_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("CERT_SIGNED_URL_TTL"), time.Hour),
		VerifyCacheTTL:  parseDuration(v.GetString("CERT_VERIFY_CACHE_TTL"), 10*time.Minute),
		DefaultTemplate: v.GetString("CERT_DEFAULT_TEMPLATE"),
		DefaultGrade:    v.GetString("CERT_DEFAULT_GRADE"),
		IssuerName:      v.GetString("CERT_ISSUER_NAME"),
		IssuerSignatory: v.GetString("CERT_ISSUER_SIGNATORY"),
	}

	dueDay := v.GetInt("FEE_DUE_DAY")
	if dueDay < 1 || dueDay > 28 {
		dueDay = 10
	}
	cfg.Fees = FeesConfig{
		DefaultAmount: v.GetFloat64("FEE_DEFAULT_AMOUNT"),
		DueDay:        dueDay,
		BlockReason:   v.GetString("FEE_BLOCK_REASON"),
	}

	cfg.Catalog = CatalogConfig{
		CacheEnabled: v.GetBool("ENABLE_CATALOG_CACHE"),
		CacheTTL:     parseDuration(v.GetString("CATALOG_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Mailer = MailerConfig{
		Enabled:     v.GetBool("ENABLE_MAIL"),
		APIKey:      v.GetString("SENDGRID_API_KEY"),
		FromName:    v.GetString("MAIL_FROM_NAME"),
		FromAddress: v.GetString("MAIL_FROM_ADDRESS"),
		Workers:     v.GetInt("MAIL_WORKERS"),
		MaxRetries:  v.GetInt("MAIL_MAX_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sat_lms")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CLASS_LOCKED_BY_DEFAULT", true)
	v.SetDefault("CLASS_PUBLISHED_BY_DEFAULT", false)
	v.SetDefault("PROGRESS_COMPLETION_THRESHOLD", 90)

	v.SetDefault("CERT_NUMBER_PREFIX", "CERT-SAT")
	v.SetDefault("CERT_SEQUENCE_DIGITS", 5)
	v.SetDefault("CERT_CODE_SUFFIX_BYTES", 4)
	v.SetDefault("CERT_STORAGE_DIR", "./certificates")
	v.SetDefault("CERT_SIGNED_URL_SECRET", "dev_cert_secret")
	v.SetDefault("CERT_SIGNED_URL_TTL", "1h")
	v.SetDefault("CERT_VERIFY_CACHE_TTL", "10m")
	v.SetDefault("CERT_DEFAULT_TEMPLATE", "classic")
	v.SetDefault("CERT_DEFAULT_GRADE", "pass")
	v.SetDefault("CERT_ISSUER_NAME", "SAT Academy")
	v.SetDefault("CERT_ISSUER_SIGNATORY", "Director of Studies")

	v.SetDefault("FEE_DEFAULT_AMOUNT", 50)
	v.SetDefault("FEE_DUE_DAY", 10)
	v.SetDefault("FEE_BLOCK_REASON", "Overdue monthly fee")

	v.SetDefault("ENABLE_CATALOG_CACHE", false)
	v.SetDefault("CATALOG_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_MAIL", false)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "SAT Academy")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@satacademy.example")
	v.SetDefault("MAIL_WORKERS", 1)
	v.SetDefault("MAIL_MAX_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
