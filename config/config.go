package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Supabase   SupabaseConfig
	Apify      ApifyConfig
	Backend    BackendConfig
	Digest     DigestConfig
	Archive    ArchiveConfig
	Sources    *SourcesConfig
	CronSecret string
	DBPath     string
	Port       string
	LogPath    string
	LogMaxSize int64
}

type SupabaseConfig struct {
	DBURL      string
	URL        string
	ServiceKey string
}

type ApifyConfig struct {
	Token         string
	APIBase       string
	WebhookSecret string
}

type BackendConfig struct {
	URL          string
	RunSecret    string
	Timeout      time.Duration
	PollInterval time.Duration
	PollMax      time.Duration
	RunCron      string
}

type DigestConfig struct {
	ResendAPIKey string
	FromEmail    string
	SendRPS      float64
	Cron         string
}

// ArchiveConfig points at an S3-compatible bucket for rendered digests.
// An empty Bucket disables archiving.
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

const (
	DefaultApifyAPIBase   = "https://api.apify.com/v2"
	DefaultFromEmail      = "Hunter <onboarding@resend.dev>"
	DefaultBackendTimeout = 50 * time.Second
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Supabase: SupabaseConfig{
			DBURL:      os.Getenv("DATABASE_URL"),
			URL:        firstEnv("NEXT_PUBLIC_SUPABASE_URL", "SUPABASE_URL"),
			ServiceKey: strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
		},
		Apify: ApifyConfig{
			Token:         strings.TrimSpace(os.Getenv("APIFY_TOKEN")),
			APIBase:       getEnv("APIFY_API_BASE", DefaultApifyAPIBase),
			WebhookSecret: os.Getenv("APIFY_WEBHOOK_SECRET"),
		},
		Backend: BackendConfig{
			URL:          strings.TrimSpace(os.Getenv("BACKEND_URL")),
			RunSecret:    strings.TrimSpace(os.Getenv("HUNTER_RUN_SECRET")),
			Timeout:      getEnvDuration("BACKEND_TIMEOUT", DefaultBackendTimeout),
			PollInterval: getEnvDuration("RUN_POLL_INTERVAL", 2500*time.Millisecond),
			PollMax:      getEnvDuration("RUN_POLL_MAX", 15*time.Minute),
			RunCron:      os.Getenv("RUN_CRON"),
		},
		Digest: DigestConfig{
			ResendAPIKey: strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
			FromEmail:    getEnv("DIGEST_FROM_EMAIL", DefaultFromEmail),
			SendRPS:      getEnvFloat("DIGEST_SEND_RPS", 2),
			Cron:         os.Getenv("DIGEST_CRON"),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("DIGEST_ARCHIVE_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-central-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		CronSecret: os.Getenv("CRON_SECRET"),
		DBPath:     os.Getenv("DB_PATH"),
		Port:       getEnv("PORT", "8080"),
		LogPath:    getEnv("LOG_PATH", "hunter.log"),
		LogMaxSize: getEnvInt64("LOG_MAX_BYTES", 2*1024*1024),
	}

	sources, err := LoadSources(getEnv("SOURCES_CONFIG", "config/sources.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
