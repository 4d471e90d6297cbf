// Package config は環境変数（および任意の設定ファイル）からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hitoshi/roadmap/internal/linear"
	"github.com/hitoshi/roadmap/internal/model"
	"github.com/hitoshi/roadmap/internal/status"
)

// ConfigFileEnv は設定ファイルのパスを指定する環境変数名。
const ConfigFileEnv = "ROADMAP_CONFIG_FILE"

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Linear
	LinearAPIKey       string
	LinearAPIURL       string
	LinearTeamID       string
	LinearProjectID    string
	LinearRoadmapLabel string
	LinearTimeout      time.Duration // 0はタイムアウトなし

	// Cache
	IssuesCacheTTL     time.Duration
	CommentsCacheTTL   time.Duration
	CacheSweepInterval time.Duration

	// Rate Limit
	RateLimitMaxComments   int
	RateLimitWindow        time.Duration
	RateLimitSweepInterval time.Duration
	RateLimitGeneral       int // req/min/IP

	// Status
	StatusOverrides map[string]model.PublicStatus

	// Features
	RenderMarkdown    bool
	MetricsEnabled    bool
	TrustProxyHeaders bool

	// Server
	ServerPort        string
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Filter はIssue一覧の取得条件を返す。
func (c *Config) Filter() linear.Filter {
	return linear.Filter{
		TeamID:    c.LinearTeamID,
		ProjectID: c.LinearProjectID,
		LabelName: c.LinearRoadmapLabel,
	}
}

// Load は環境変数からConfigを読み込む。
// ROADMAP_CONFIG_FILEが設定されている場合はそのファイルも読み込み、環境変数を優先する。
// 必須項目が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile はpathの設定ファイルと環境変数からConfigを読み込む。
// pathが空の場合は環境変数のみを使用する。
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.LinearAPIKey = strings.TrimSpace(v.GetString("LINEAR_API_KEY"))
	if cfg.LinearAPIKey == "" {
		missing = append(missing, "LINEAR_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	overrides, err := status.ParseOverrides(v.GetString("STATUS_OVERRIDES"))
	if err != nil {
		return nil, fmt.Errorf("STATUS_OVERRIDES: %w", err)
	}
	cfg.StatusOverrides = overrides

	// Optional fields with defaults
	cfg.LinearAPIURL = getString(v, "LINEAR_API_URL", linear.DefaultEndpoint)
	cfg.LinearTeamID = getString(v, "LINEAR_TEAM_ID", "")
	cfg.LinearProjectID = getString(v, "LINEAR_PROJECT_ID", "")
	cfg.LinearRoadmapLabel = getString(v, "LINEAR_ROADMAP_LABEL", "")
	cfg.LinearTimeout = getDuration(v, "LINEAR_TIMEOUT", 0)
	cfg.IssuesCacheTTL = getMillis(v, "CACHE_TTL_ISSUES", 5*time.Minute)
	cfg.CommentsCacheTTL = getMillis(v, "CACHE_TTL_COMMENTS", 2*time.Minute)
	cfg.CacheSweepInterval = getDuration(v, "CACHE_SWEEP_INTERVAL", 5*time.Minute)
	cfg.RateLimitMaxComments = getInt(v, "RATE_LIMIT_MAX_COMMENTS", 5)
	cfg.RateLimitWindow = getMillis(v, "RATE_LIMIT_WINDOW_MS", time.Hour)
	cfg.RateLimitSweepInterval = getDuration(v, "RATE_LIMIT_SWEEP_INTERVAL", 10*time.Minute)
	cfg.RateLimitGeneral = getInt(v, "RATE_LIMIT_GENERAL", 120)
	cfg.RenderMarkdown = getBool(v, "RENDER_MARKDOWN", true)
	cfg.MetricsEnabled = getBool(v, "METRICS_ENABLED", true)
	cfg.TrustProxyHeaders = getBool(v, "TRUST_PROXY_HEADERS", true)
	cfg.ServerPort = getString(v, "SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getString(v, "CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getString(v, "LOG_LEVEL", "info")

	return cfg, nil
}

func getString(v *viper.Viper, key, defaultVal string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return defaultVal
}

// getInt は正の整数を読み込む。未設定・不正値・0以下はデフォルト値。
func getInt(v *viper.Viper, key string, defaultVal int) int {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(s)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

// getMillis はミリ秒の整数を読み込む。未設定・不正値・0以下はデフォルト値。
func getMillis(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	ms := getInt(v, key, -1)
	if ms <= 0 {
		return defaultVal
	}
	return time.Duration(ms) * time.Millisecond
}

// getDuration は"5m"形式の期間を読み込む。未設定・不正値・0以下はデフォルト値。
func getDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getBool(v *viper.Viper, key string, defaultVal bool) bool {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}
