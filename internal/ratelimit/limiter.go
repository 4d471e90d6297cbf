// Package ratelimit は識別子ごとの固定ウィンドウ方式レートリミッターを提供する。
//
// スライディングウィンドウやトークンバケットではなく、ウィンドウ終了時にカウンタを
// 丸ごとリセットする。そのためウィンドウ境界をまたぐと最大で上限の2倍まで
// 許可されうる（既知の挙動）。
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/roadmap/internal/worker/sweep"
)

// Config はLimiterの設定を保持する。
type Config struct {
	MaxRequests   int              // ウィンドウあたりの最大許可数
	Window        time.Duration    // ウィンドウ長
	SweepInterval time.Duration    // 期限切れエントリのスイープ間隔。負の場合は無効
	Clock         func() time.Time // nilの場合はtime.Now
	Logger        *slog.Logger
}

// DefaultConfig はデフォルト設定を返す。
// 1識別子あたり1時間に5回、スイープは10分間隔。
func DefaultConfig() Config {
	return Config{
		MaxRequests:   5,
		Window:        time.Hour,
		SweepInterval: 10 * time.Minute,
	}
}

// Result はCheckの判定結果。
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// window は識別子ごとのカウンタ。
type window struct {
	count   int
	resetAt time.Time
}

// Limiter は固定ウィンドウ方式のレートリミッター。
// 複数goroutineから安全に利用できる。
type Limiter struct {
	config  Config
	clock   func() time.Time
	mu      sync.Mutex
	windows map[string]*window
	sweeper *sweep.Sweeper
}

// New はLimiterを生成し、バックグラウンドのスイープを開始する。
// MaxRequestsまたはWindowが0以下の場合はデフォルト値を使用する。
func New(config Config) *Limiter {
	defaults := DefaultConfig()
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaults.MaxRequests
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.SweepInterval == 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	l := &Limiter{
		config:  config,
		clock:   clock,
		windows: make(map[string]*window),
	}
	l.sweeper = sweep.New("ratelimit", config.SweepInterval, l.Sweep, config.Logger)
	l.sweeper.Start()

	return l
}

// Limit はウィンドウあたりの最大許可数を返す。
func (l *Limiter) Limit() int {
	return l.config.MaxRequests
}

// Window はウィンドウ長を返す。
func (l *Limiter) Window() time.Duration {
	return l.config.Window
}

// Check は識別子のリクエストを許可するか判定する。
// 拒否時はカウンタを変更しない（拒否の繰り返しでウィンドウが延長されることはない）。
// 識別子は不透明な文字列として扱い、形式は検証しない。
func (l *Limiter) Check(id string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	limit := l.config.MaxRequests

	w, ok := l.windows[id]
	if !ok || now.After(w.resetAt) {
		l.windows[id] = &window{
			count:   1,
			resetAt: now.Add(l.config.Window),
		}
		return Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - 1,
			ResetIn:   l.config.Window,
		}
	}

	if w.count >= limit {
		return Result{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetIn:   w.resetAt.Sub(now),
		}
	}

	w.count++
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.count,
		ResetIn:   w.resetAt.Sub(now),
	}
}

// Reset は識別子のカウンタを削除する。管理・テスト用。
func (l *Limiter) Reset(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, id)
}

// Clear はすべてのカウンタを削除する。管理・テスト用。
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.windows = make(map[string]*window)
}

// Sweep はウィンドウが終了したエントリを削除し、削除件数を返す。
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	removed := 0
	for id, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}

// Len は管理しているエントリ数を返す。テストおよびメトリクス用。
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.windows)
}

// Stop はバックグラウンドのスイープを停止する。冪等。
func (l *Limiter) Stop() {
	l.sweeper.Stop()
}
