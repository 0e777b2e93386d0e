package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth（3つすべて設定された場合のみGoogleサインインを有効にする）
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleHostedDomain string // 空でなければそのドメインのアカウントのみ許可

	// Session
	SessionMaxAge int
	SessionStore  string // "postgres" または "redis"
	RedisURL      string

	// Rate Limit（req/min/user）
	RateLimitGeneral    int
	RateLimitSubmission int

	// Query
	QueryStatusPolicy string

	// Notice import
	NoticeImportFeeds    []string
	NoticeImportCategory string
	NoticeImportAuthorID string
	NoticeImportInterval time.Duration
	FetchTimeout         time.Duration
	FetchMaxSize         int64

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// GoogleEnabled はGoogle OAuthの設定が揃っているかを返す。
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// LoadDotEnv は指定パスの.envファイルを環境変数に読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	cfg.GoogleHostedDomain = os.Getenv("GOOGLE_HOSTED_DOMAIN")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800)
	cfg.SessionStore = getEnvString("SESSION_STORE", "postgres")
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubmission = getEnvInt("RATE_LIMIT_SUBMISSION", 10)
	cfg.QueryStatusPolicy = getEnvString("QUERY_STATUS_POLICY", "open")
	cfg.NoticeImportFeeds = getEnvList("NOTICE_IMPORT_FEEDS")
	cfg.NoticeImportCategory = getEnvString("NOTICE_IMPORT_CATEGORY", "general")
	cfg.NoticeImportAuthorID = getEnvString("NOTICE_IMPORT_AUTHOR_ID", "")
	cfg.NoticeImportInterval = getEnvDuration("NOTICE_IMPORT_INTERVAL", 30*time.Minute)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.BaseURL)

	switch cfg.SessionStore {
	case "postgres":
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("invalid SESSION_STORE: %q (allowed: postgres, redis)", cfg.SessionStore)
	}

	switch cfg.QueryStatusPolicy {
	case "open", "forward":
	default:
		return nil, fmt.Errorf("invalid QUERY_STATUS_POLICY: %q (allowed: open, forward)", cfg.QueryStatusPolicy)
	}

	if len(cfg.NoticeImportFeeds) > 0 && cfg.NoticeImportAuthorID == "" {
		return nil, fmt.Errorf("NOTICE_IMPORT_AUTHOR_ID is required when NOTICE_IMPORT_FEEDS is set")
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数を空要素を除いて返す。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
