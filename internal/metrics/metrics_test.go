package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから名前とラベルが一致するメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestNewCollector_RegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit("issues")
	c.RecordCacheMiss("issues")
	c.RecordUpstreamRequest("list_issues", "success", 10*time.Millisecond)
	c.RecordCommentSubmitted()
	c.RecordCommentRejected("honeypot")
	c.RecordUnknownState()
	c.RecordHTTPStatus(200)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	want := map[string]bool{
		"roadmap_cache_hits_total":         false,
		"roadmap_cache_misses_total":       false,
		"roadmap_upstream_requests_total":  false,
		"roadmap_upstream_latency_seconds": false,
		"roadmap_comments_submitted_total": false,
		"roadmap_comments_rejected_total":  false,
		"roadmap_unknown_states_total":     false,
		"roadmap_http_status_total":        false,
	}
	for _, mf := range families {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s metric not found", name)
		}
	}
}

func TestRecordCacheHitAndMiss_ByCacheName(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit("issues")
	c.RecordCacheHit("issues")
	c.RecordCacheMiss("comments")

	if v := findMetric(t, reg, "roadmap_cache_hits_total", map[string]string{"cache": "issues"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("cache_hits_total{issues} = %v, want 2", v)
	}
	if v := findMetric(t, reg, "roadmap_cache_misses_total", map[string]string{"cache": "comments"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("cache_misses_total{comments} = %v, want 1", v)
	}
}

func TestRecordUpstreamRequest_CountsAndObservesLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamRequest("create_comment", "error", 250*time.Millisecond)

	counter := findMetric(t, reg, "roadmap_upstream_requests_total",
		map[string]string{"operation": "create_comment", "outcome": "error"})
	if v := counter.GetCounter().GetValue(); v != 1 {
		t.Errorf("upstream_requests_total = %v, want 1", v)
	}

	hist := findMetric(t, reg, "roadmap_upstream_latency_seconds",
		map[string]string{"operation": "create_comment"})
	if n := hist.GetHistogram().GetSampleCount(); n != 1 {
		t.Errorf("latency sample count = %d, want 1", n)
	}
	if s := hist.GetHistogram().GetSampleSum(); s != 0.25 {
		t.Errorf("latency sample sum = %v, want 0.25", s)
	}
}

func TestRecordCommentRejected_ByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCommentRejected("rate_limited")
	c.RecordCommentRejected("rate_limited")
	c.RecordCommentRejected("honeypot")

	if v := findMetric(t, reg, "roadmap_comments_rejected_total", map[string]string{"reason": "rate_limited"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("comments_rejected_total{rate_limited} = %v, want 2", v)
	}
}

func TestRecordHTTPStatus_ByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(429)

	if v := findMetric(t, reg, "roadmap_http_status_total", map[string]string{"status_code": "429"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("http_status_total{429} = %v, want 1", v)
	}
}

// TestCollector_ImplementsInterface はCollectorとNopがMetricsCollectorを満たすことを検証する。
func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
	var _ MetricsCollector = Nop{}
}

// TestNewCollector_DoubleRegistrationPanics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}
