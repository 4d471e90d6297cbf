package middleware

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClientIP はクライアントIPを特定できない場合の値。
// 特定できないクライアントはすべて同じレート制限枠を共有する。
const UnknownClientIP = "unknown"

// ClientIP はリクエストのクライアントIPを決定する。
//
// trustProxyがtrueの場合の優先順位:
//  1. X-Forwarded-Forの先頭
//  2. X-Real-IP
//  3. 接続元アドレス
//
// falseの場合は接続元アドレスのみを使う。いずれも得られなければ"unknown"を返す。
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}

	return UnknownClientIP
}

// NewClientIPMiddleware はクライアントIPを決定してコンテキストに設定するミドルウェアを返す。
func NewClientIPMiddleware(trustProxy bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trustProxy)
			next.ServeHTTP(w, r.WithContext(ContextWithClientIP(r.Context(), ip)))
		})
	}
}
