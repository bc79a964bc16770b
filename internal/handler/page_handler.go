package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gatehouse/internal/middleware"
	"github.com/hitoshi/gatehouse/internal/view"
)

// PageRenderer はHTMLページの描画インターフェース。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, page string, data view.PageData) error
}

// PageHandler はHTML画面のハンドラー。
type PageHandler struct {
	renderer  PageRenderer
	providers ProviderLookup
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer PageRenderer, providers ProviderLookup) *PageHandler {
	return &PageHandler{renderer: renderer, providers: providers}
}

// Index はログイン画面を表示する。ログイン済みの場合はプロフィールへ移動する。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, "/profile", http.StatusFound)
		return
	}

	h.render(w, view.PageIndex, view.PageData{
		Title:     "Connected to Database",
		Message:   "Please login",
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Providers: h.providers.Names(),
	})
}

// Profile はログインユーザーのプロフィールを表示する。
// GET /profile（要セッション）
func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	h.render(w, view.PageProfile, view.PageData{
		Title: "Profile",
		User:  user,
	})
}

// Chat はOAuthログイン後の画面を表示する。
// GET /chat（要セッション）
func (h *PageHandler) Chat(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	h.render(w, view.PageChat, view.PageData{
		Title: "Chat",
		User:  user,
	})
}

func (h *PageHandler) render(w http.ResponseWriter, page string, data view.PageData) {
	err := h.renderer.Render(w, http.StatusOK, page, data)
	switch {
	case err == nil:
	case errors.Is(err, view.ErrResponseWrite):
		// ヘッダーは送信済みのためログのみ
		slog.Warn("failed to write page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	default:
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
