// Package cache はプロセス内のTTLキャッシュを提供する。
//
// 読み取り時の遅延削除と定期スイープの2段構えで期限切れエントリを除去する。
// サイズ上限やLRUは持たない純粋なTTLストアで、プロセス再起動をまたいで値は残らない。
package cache

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/roadmap/internal/worker/sweep"
)

// DefaultSweepInterval は定期スイープのデフォルト間隔。
const DefaultSweepInterval = 5 * time.Minute

// entry はキャッシュ値と絶対有効期限を保持する。
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Options はCacheの生成オプション。
type Options struct {
	Name          string           // ログ・メトリクス用の名前
	SweepInterval time.Duration    // 0の場合はDefaultSweepInterval、負の場合はスイープ無効
	Clock         func() time.Time // nilの場合はtime.Now
	Logger        *slog.Logger
}

// Cache はキーごとに有効期限を持つTTLキャッシュ。
// 複数goroutineから安全に利用できる。
type Cache[V any] struct {
	name    string
	clock   func() time.Time
	mu      sync.Mutex
	entries map[string]entry[V]
	sweeper *sweep.Sweeper
}

// New はCacheを生成し、バックグラウンドのスイープを開始する。
// 不要になったらStopを呼び出すこと。
func New[V any](opts Options) *Cache[V] {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	c := &Cache[V]{
		name:    opts.Name,
		clock:   opts.Clock,
		entries: make(map[string]entry[V]),
	}
	c.sweeper = sweep.New("cache:"+opts.Name, opts.SweepInterval, c.Sweep, opts.Logger)
	c.sweeper.Start()

	return c
}

// Name はキャッシュ名を返す。
func (c *Cache[V]) Name() string {
	return c.name
}

// Get はキーに対応する値を返す。
// 期限切れのエントリは存在しないものとして扱い、その場で削除する。
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.clock().After(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set は値を保存する。既存のエントリは無条件に上書きする。
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.clock().Add(ttl),
	}
}

// Invalidate はキーのエントリを削除する。存在しなくてもエラーにしない。
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// InvalidatePattern はキーに部分文字列を含むエントリをすべて削除する。
// 正規表現ではなくリテラル一致で判定する。
func (c *Cache[V]) InvalidatePattern(substr string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.Contains(key, substr) {
			delete(c.entries, key)
		}
	}
}

// Clear はすべてのエントリを削除する。
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[V])
}

// Sweep は期限切れのエントリをすべて削除し、削除件数を返す。
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	removed := 0
	for key, e := range c.entries {
		if e.expiresAt.Before(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len は保持しているエントリ数（期限切れで未削除のものを含む）を返す。
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stop はバックグラウンドのスイープを停止する。冪等。
func (c *Cache[V]) Stop() {
	c.sweeper.Stop()
}
