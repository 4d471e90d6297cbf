// Package sweep はインメモリストアの期限切れエントリを定期的に掃除するジョブを提供する。
// キャッシュとレートリミッターがそれぞれ1つずつ所有し、生成時に開始、シャットダウン時に停止する。
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Func は1回分の掃除処理。削除したエントリ数を返す。
type Func func() int

// Sweeper は一定間隔でFuncを実行するバックグラウンドジョブ。
// Stopで明示的にキャンセルでき、Stopは冪等。
type Sweeper struct {
	name     string
	interval time.Duration
	fn       Func
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New はSweeperを生成する。起動はStartで行う。
// loggerがnilの場合はslog.Default()を使用する。
func New(name string, interval time.Duration, fn Func, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
	}
}

// Start はバックグラウンドgoroutineで掃除ループを開始する。
// intervalが0以下の場合、既に開始済みの場合、停止済みの場合は何もしない。
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval <= 0 || s.cancel != nil || s.stopped {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Run はコンテキストがキャンセルされるまで掃除ループを実行する（ブロッキング）。
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Debug("sweeper started",
		slog.String("sweeper", s.name),
		slog.Duration("interval", s.interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sweeper stopped", slog.String("sweeper", s.name))
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce は掃除処理を1回実行し、削除件数を返す。
func (s *Sweeper) RunOnce() int {
	start := time.Now()
	removed := s.fn()

	level := slog.LevelDebug
	if removed > 0 {
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, "sweep completed",
		slog.String("sweeper", s.name),
		slog.Int("removed", removed),
		slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
	)

	return removed
}

// Stop は掃除ループを停止し、goroutineの終了を待つ。
// 未開始の場合や2回目以降の呼び出しでは何もしない。
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.stopped = true
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
