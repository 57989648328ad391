package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIBaseURL はリモート商品APIのデフォルトのベースURL。
const DefaultAPIBaseURL = "http://127.0.0.1:8000/api/"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote API
	APIBaseURL         string
	APITimeout         time.Duration // 0はトランスポートのデフォルトに従う
	APIMaxResponseSize int64

	// Credential
	CredentialDir     string
	CredentialPersist bool // falseの場合トークンはプロセス内のみに保持する

	// List view
	ListWindowSize      int
	ListOverscan        int
	ListWindowThreshold int

	// Rate Limit（req/min）
	RateLimitGeneral  int
	RateLimitMutation int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool
}

// LoadEnvFile は.envファイルを読み込んで環境変数に反映する。
// 既に設定されている環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.APIBaseURL = getEnvString("API_BASE_URL", DefaultAPIBaseURL)
	if err := validateBaseURL(cfg.APIBaseURL); err != nil {
		return nil, err
	}

	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 0)
	cfg.APIMaxResponseSize = getEnvInt64("API_MAX_RESPONSE_SIZE", 5242880)
	cfg.CredentialDir = getEnvString("CREDENTIAL_DIR", defaultCredentialDir())
	cfg.CredentialPersist = getEnvBool("CREDENTIAL_PERSIST", true)
	cfg.ListWindowSize = getEnvInt("LIST_WINDOW_SIZE", 20)
	cfg.ListOverscan = getEnvInt("LIST_OVERSCAN", 5)
	cfg.ListWindowThreshold = getEnvInt("LIST_WINDOW_THRESHOLD", 50)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMutation = getEnvInt("RATE_LIMIT_MUTATION", 30)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)

	if cfg.RateLimitGeneral <= 0 || cfg.RateLimitMutation <= 0 {
		return nil, fmt.Errorf("rate limits must be positive: general=%d mutation=%d",
			cfg.RateLimitGeneral, cfg.RateLimitMutation)
	}

	return cfg, nil
}

// validateBaseURL はAPIのベースURLがhttp(s)の絶対URLであることを確認する。
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("API_BASE_URL is invalid: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL: %q", raw)
	}
	return nil
}

// defaultCredentialDir はユーザー設定ディレクトリ配下の保存先を返す。
func defaultCredentialDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".agrogestao"
	}
	return filepath.Join(dir, "agrogestao")
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
