package sweep

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestSweeper_RunsPeriodicallyUntilStopped(t *testing.T) {
	var calls atomic.Int32
	s := New("test", 5*time.Millisecond, func() int {
		calls.Add(1)
		return 0
	}, slog.New(slog.DiscardHandler))

	s.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)

	s.Stop()
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "停止後に掃除が実行されてはならない")
}

func TestSweeper_StopIsIdempotent(t *testing.T) {
	s := New("test", time.Millisecond, func() int { return 0 }, nil)
	s.Start()

	s.Stop()
	s.Stop()
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	s := New("test", time.Minute, func() int { return 0 }, nil)
	s.Stop()
}

func TestSweeper_StartAfterStopDoesNothing(t *testing.T) {
	var calls atomic.Int32
	s := New("test", time.Millisecond, func() int {
		calls.Add(1)
		return 0
	}, nil)

	s.Stop()
	s.Start()
	time.Sleep(20 * time.Millisecond)

	assert.Zero(t, calls.Load())
}

func TestSweeper_NonPositiveIntervalDisablesLoop(t *testing.T) {
	var calls atomic.Int32
	s := New("test", 0, func() int {
		calls.Add(1)
		return 0
	}, nil)

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	assert.Zero(t, calls.Load())
}

func TestSweeper_RunOnce_LogsRemovedCount(t *testing.T) {
	var buf bytes.Buffer
	s := New("cache:issues", time.Minute, func() int { return 3 }, newTestLogger(&buf))

	removed := s.RunOnce()
	require.Equal(t, 3, removed)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sweep completed", entry["msg"])
	assert.Equal(t, "cache:issues", entry["sweeper"])
	assert.EqualValues(t, 3, entry["removed"])
}

func TestSweeper_RunOnce_NothingRemovedIsDebugOnly(t *testing.T) {
	var buf bytes.Buffer
	s := New("test", time.Minute, func() int { return 0 }, newTestLogger(&buf))

	s.RunOnce()

	assert.Empty(t, buf.String(), "削除0件はInfoレベルでは出力しない")
}
