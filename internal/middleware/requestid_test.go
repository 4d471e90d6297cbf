package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDMiddleware_GeneratesUUID(t *testing.T) {
	var captured string
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/issues", nil))

	if _, err := uuid.Parse(captured); err != nil {
		t.Errorf("request ID %q should be a UUID: %v", captured, err)
	}
	if got := w.Header().Get(RequestIDHeader); got != captured {
		t.Errorf("%s = %q, want %q", RequestIDHeader, got, captured)
	}
}

func TestRequestIDMiddleware_PropagatesIncomingID(t *testing.T) {
	var captured string
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/issues", nil)
	req.Header.Set(RequestIDHeader, "edge-abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured != "edge-abc-123" {
		t.Errorf("request ID = %q, want %q", captured, "edge-abc-123")
	}
	if got := w.Header().Get(RequestIDHeader); got != "edge-abc-123" {
		t.Errorf("%s = %q, want %q", RequestIDHeader, got, "edge-abc-123")
	}
}

func TestRequestIDMiddleware_ReplacesInvalidID(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"空白を含む", "has space"},
		{"制御文字", "bad\tid"},
		{"長すぎる", strings.Repeat("a", maxRequestIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.id)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if captured == tt.id {
				t.Errorf("invalid request ID %q should be replaced", tt.id)
			}
			if _, err := uuid.Parse(captured); err != nil {
				t.Errorf("replacement %q should be a UUID", captured)
			}
		})
	}
}
