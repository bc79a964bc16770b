package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gatehouse/internal/middleware"
)

// timestampLayouts はタイムスタンプAPIが受け付ける日付書式（先頭から順に試す）。
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// timestampResponse はタイムスタンプAPIのレスポンス。
type timestampResponse struct {
	Unix int64  `json:"unix"`
	UTC  string `json:"utc"`
}

// whoamiResponse はリクエストヘッダー解析APIのレスポンス。
type whoamiResponse struct {
	IPAddress string `json:"ipaddress"`
	Language  string `json:"language"`
	Software  string `json:"software"`
}

// MicroserviceHandler は状態を持たない小さなAPI群のハンドラー。
type MicroserviceHandler struct {
	now func() time.Time
}

// NewMicroserviceHandler はMicroserviceHandlerを生成する。
func NewMicroserviceHandler() *MicroserviceHandler {
	return &MicroserviceHandler{now: time.Now}
}

// Timestamp は日付文字列をUNIXミリ秒とUTC表記に変換する。
// GET /api/timestamp, GET /api/timestamp/{date}
func (h *MicroserviceHandler) Timestamp(w http.ResponseWriter, r *http.Request) {
	t, ok := h.parseTimestamp(chi.URLParam(r, "date"))
	if !ok {
		writeJSONError(w, http.StatusOK, "Invalid Date")
		return
	}

	writeJSON(w, http.StatusOK, timestampResponse{
		Unix: t.UnixMilli(),
		UTC:  t.UTC().Format(http.TimeFormat),
	})
}

// parseTimestamp は空なら現在時刻、数字のみならUNIXミリ秒として解釈する。
func (h *MicroserviceHandler) parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h.now(), true
	}

	if isAllDigits(raw) {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms), true
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WhoAmI はクライアントのIPアドレス・言語・ユーザーエージェントを返す。
// GET /api/whoami
func (h *MicroserviceHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, whoamiResponse{
		IPAddress: middleware.ClientIP(r),
		Language:  r.Header.Get("Accept-Language"),
		Software:  r.Header.Get("User-Agent"),
	})
}

// Hello は疎通確認用の固定レスポンスを返す。
// GET /api/hello
func (h *MicroserviceHandler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"greeting": "hello API"})
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
