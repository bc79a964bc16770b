package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gatehouse/internal/middleware"
	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/shorturl"
)

const (
	msgInvalidURL       = "Invalid URL"
	msgShortURLNotFound = "No short URL found for the given input"
)

// ShortURLService は短縮URLハンドラーが必要とするサービスインターフェース。
type ShortURLService interface {
	Shorten(ctx context.Context, originalURL string) (shorturl.Result, error)
	Lookup(ctx context.Context, code string) (*model.ShortURL, error)
}

// ShortURLMetrics は短縮URLの採番を記録するインターフェース。
type ShortURLMetrics interface {
	RecordShortURLAllocated()
}

// ShortURLHandler はURL短縮APIのハンドラー。
type ShortURLHandler struct {
	service ShortURLService
	metrics ShortURLMetrics
}

// NewShortURLHandler はShortURLHandlerを生成する。
func NewShortURLHandler(service ShortURLService, metrics ShortURLMetrics) *ShortURLHandler {
	return &ShortURLHandler{service: service, metrics: metrics}
}

// shortenResponse は短縮成功時のレスポンス。
type shortenResponse struct {
	OriginalURL string `json:"original_url"`
	ShortURL    int64  `json:"short_url"`
}

// Shorten はURLに短縮コードを割り当てる。
// POST /api/shorturl/new, POST /api/shorturl
// urlはクエリまたはフォームから受け取り、パーセントエンコードを1回デコードする。
func (h *ShortURLHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(r.FormValue("url"))
	if err != nil {
		writeJSONError(w, http.StatusOK, msgInvalidURL)
		return
	}

	result, err := h.service.Shorten(r.Context(), raw)
	if err != nil {
		slog.Error("failed to shorten url", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	switch result.Status {
	case shorturl.StatusInvalid:
		writeJSONError(w, http.StatusOK, msgInvalidURL)
		return
	case shorturl.StatusCreated:
		h.metrics.RecordShortURLAllocated()
	}

	writeJSON(w, http.StatusOK, shortenResponse{
		OriginalURL: result.ShortURL.OriginalURL,
		ShortURL:    result.ShortURL.Code,
	})
}

// Redirect は短縮コードの元URLへリダイレクトする。
// GET /api/shorturl/{code}
func (h *ShortURLHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Lookup(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		slog.Error("failed to look up short url", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if s == nil {
		writeJSONError(w, http.StatusNotFound, msgShortURLNotFound)
		return
	}

	http.Redirect(w, r, redirectTarget(s.OriginalURL), http.StatusFound)
}

// redirectTarget はスキームを省略して登録されたURLにhttp://を補う。
// 補わないとリダイレクト先がこのサーバー上の相対パスとして解釈される。
func redirectTarget(original string) string {
	lower := strings.ToLower(original)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return original
	}
	return "http://" + original
}
