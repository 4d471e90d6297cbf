package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/roadmap/internal/model"
	"github.com/hitoshi/roadmap/internal/worker/sweep"
)

// RateLimiterConfig はAPI全般のレート制限の設定を保持する。
type RateLimiterConfig struct {
	Rate            rate.Limit    // クライアントごとのレート（req/sec）
	Burst           int           // バーストサイズ
	CleanupInterval time.Duration // 未使用エントリのクリーンアップ間隔。0以下で無効
	Logger          *slog.Logger
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 120 req/min/IP。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            rate.Limit(120.0 / 60.0), // 2 req/sec
		Burst:           120,
		CleanupInterval: 5 * time.Minute,
	}
}

// PerMinute は1分あたりのリクエスト数からレート制限設定を作る。
// perMinuteが0以下の場合はデフォルト設定を返す。
func PerMinute(perMinute int) RateLimiterConfig {
	cfg := DefaultRateLimiterConfig()
	if perMinute > 0 {
		cfg.Rate = rate.Limit(float64(perMinute) / 60.0)
		cfg.Burst = perMinute
	}
	return cfg
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアントIPごとのAPI全般のレート制限を管理する。
// コメント投稿専用の制限（ratelimitパッケージ）とは独立に動作する。
type RateLimiter struct {
	config RateLimiterConfig
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	sweeper *sweep.Sweeper
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで未使用エントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 || config.Burst <= 0 {
		d := DefaultRateLimiterConfig()
		config.Rate, config.Burst = d.Rate, d.Burst
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rl := &RateLimiter{
		config:   config,
		logger:   logger,
		limiters: make(map[string]*clientLimiter),
	}
	rl.sweeper = sweep.New("ratelimit:general", config.CleanupInterval, rl.cleanup, logger)
	rl.sweeper.Start()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.sweeper.Stop()
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// クライアントIPはNewClientIPMiddlewareがコンテキストに設定したものを使う。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ClientIPFromContext(r.Context())

			if !rl.allow(clientIP) {
				writeRateLimitResponse(w, rl.config.Rate)
				rl.logger.Warn("rate limit exceeded",
					slog.String("client_ip", clientIP),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// allow はクライアントのリミッターを取得または作成し、1トークン消費できるかを返す。
func (rl *RateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	cl, exists := rl.limiters[clientIP]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.limiters[clientIP] = cl
	}
	cl.lastAccess = time.Now()
	rl.mu.Unlock()

	return cl.limiter.Allow()
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除し、削除件数を返す。
func (rl *RateLimiter) cleanup() int {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, ip)
			removed++
		}
	}
	return removed
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterには1トークンが補充されるまでの推定時間を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfter := time.Duration(math.Ceil(1.0/float64(r))) * time.Second
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:       model.ErrCodeRateLimited,
		Title:      "Too many requests",
		Message:    "Too many requests. Please try again later.",
		Category:   "rate_limit",
		Action:     "Please wait and retry after the specified time.",
		RetryAfter: retryAfter,
	})
}
