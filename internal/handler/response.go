package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/hitoshi/roadmap/internal/middleware"
	"github.com/hitoshi/roadmap/internal/model"
)

// listResponse は一覧系APIのレスポンス。
type listResponse struct {
	Data   json.RawMessage `json:"data"`
	Cached bool            `json:"cached"`
}

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeListResponse は {data, cached} 形式のレスポンスを書き込む。
// dataから弱いETagを計算し、If-None-Matchが一致すれば304を返す。
// cachedはETagに含めない（同じデータなら同じETag）。
func writeListResponse(w http.ResponseWriter, r *http.Request, data any, cached bool) {
	payload, err := json.Marshal(data)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	etag := weakETag(payload)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Data: payload, Cached: cached})
}

// weakETag はペイロードのxxhashから弱いETagを生成する。
func weakETag(payload []byte) string {
	return `W/"` + strconv.FormatUint(xxhash.Sum64(payload), 16) + `"`
}

// etagMatches はIf-None-Matchヘッダーがetagに一致するかを弱い比較で判定する。
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}
