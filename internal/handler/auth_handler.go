// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/hitoshi/gatehouse/internal/auth"
	"github.com/hitoshi/gatehouse/internal/middleware"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthVerifierCookie = "oauth_verifier"

	// oauthCookieMaxAge はOAuthフロー中の一時Cookieの有効期間（秒）。
	oauthCookieMaxAge = 600

	// 認証方式のラベル（メトリクス用）
	methodLocal    = "local"
	methodRegister = "register"
)

// Authenticator は認証ハンドラーが必要とする認証サービスのインターフェース。
type Authenticator interface {
	LoginLocal(ctx context.Context, username, password string) auth.Outcome
	LoginOAuth(ctx context.Context, profile *auth.ProviderProfile) auth.Outcome
	Register(ctx context.Context, username, password string) auth.Outcome
}

// SessionStarter はセッションの発行と破棄のインターフェース。
type SessionStarter interface {
	Start(ctx context.Context, userID string) (string, error)
	End(ctx context.Context, token string) error
}

// ProviderLookup は名前でOAuthプロバイダーを引くインターフェース。
type ProviderLookup interface {
	Get(name string) (auth.OAuthProvider, bool)
	Names() []string
}

// AuthMetrics は認証に関するメトリクス記録インターフェース。
type AuthMetrics interface {
	RecordAuthAttempt(method, status string)
	RecordSessionStarted()
	RecordSessionEnded()
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はローカルログイン・登録・OAuthのHTTPハンドラー。
type AuthHandler struct {
	authenticator Authenticator
	sessions      SessionStarter
	providers     ProviderLookup
	metrics       AuthMetrics
	config        AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(authenticator Authenticator, sessions SessionStarter, providers ProviderLookup, metrics AuthMetrics, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		sessions:      sessions,
		providers:     providers,
		metrics:       metrics,
		config:        config,
	}
}

// Login はユーザー名とパスワードでログインする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	outcome := h.authenticator.LoginLocal(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	h.finish(w, r, methodLocal, outcome, "/profile")
}

// Register はローカルアカウントを作成し、そのままログインする。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	outcome := h.authenticator.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	h.finish(w, r, methodRegister, outcome, "/profile")
}

// Logout はセッションを破棄してトップへ戻す。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if endErr := h.sessions.End(r.Context(), cookie.Value); endErr != nil {
			// 破棄に失敗してもCookieはクリアする
			slog.Error("failed to end session", slog.String("error", endErr.Error()))
		} else {
			h.metrics.RecordSessionEnded()
		}
	}

	h.clearCookie(w, middleware.SessionCookieName)
	http.Redirect(w, r, "/", http.StatusFound)
}

// BeginOAuth はstateとPKCEのcode_verifierをCookieに保存し、プロバイダーへリダイレクトする。
// GET /auth/{provider}
func (h *AuthHandler) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.providers.Get(name)
	if !ok {
		slog.Warn("unknown oauth provider", slog.String("provider", name))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	verifier := oauth2.GenerateVerifier()

	h.setTemporaryCookie(w, oauthStateCookie, state)
	h.setTemporaryCookie(w, oauthVerifierCookie, verifier)

	http.Redirect(w, r, provider.AuthCodeURL(state, verifier), http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.providers.Get(name)
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	stateCookie, stateErr := r.Cookie(oauthStateCookie)
	verifierCookie, verifierErr := r.Cookie(oauthVerifierCookie)
	h.clearCookie(w, oauthStateCookie)
	h.clearCookie(w, oauthVerifierCookie)

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	if stateErr != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("provider", name))
		h.metrics.RecordAuthAttempt(name, auth.OutcomeRejected.String())
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if verifierErr != nil || verifierCookie.Value == "" {
		slog.Warn("oauth verifier cookie missing", slog.String("provider", name))
		h.metrics.RecordAuthAttempt(name, auth.OutcomeRejected.String())
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	// 2. 認可コードの取得（ユーザーが拒否した場合はerrorパラメータが付く）
	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback without code",
			slog.String("provider", name),
			slog.String("oauth_error", r.URL.Query().Get("error")),
		)
		h.metrics.RecordAuthAttempt(name, auth.OutcomeRejected.String())
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	// 3. コード交換とプロフィール取得
	profile, err := provider.Exchange(r.Context(), code, verifierCookie.Value)
	if err != nil {
		slog.Error("oauth exchange failed",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		h.metrics.RecordAuthAttempt(name, auth.OutcomeError.String())
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	// 4. ユーザーの解決とセッション発行
	h.finish(w, r, name, h.authenticator.LoginOAuth(r.Context(), profile), "/chat")
}

// finish はOutcomeに応じてセッションを発行し、リダイレクトする。
// REJECTEDはトップへ戻し、ERRORは500を返す。どちらもセッションは発行しない。
func (h *AuthHandler) finish(w http.ResponseWriter, r *http.Request, method string, outcome auth.Outcome, successPath string) {
	h.metrics.RecordAuthAttempt(method, outcome.Status.String())

	switch outcome.Status {
	case auth.OutcomeRejected:
		slog.Warn("login rejected",
			slog.String("method", method),
			slog.String("reason", string(outcome.Reason)),
		)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	case auth.OutcomeError:
		slog.Error("login failed",
			slog.String("method", method),
			slog.Any("error", outcome.Err),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !outcome.Authenticated() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	token, err := h.sessions.Start(r.Context(), outcome.User.ID)
	if err != nil {
		slog.Error("failed to start session",
			slog.String("method", method),
			slog.String("user_id", outcome.User.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.metrics.RecordSessionStarted()

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	slog.Info("login succeeded",
		slog.String("method", method),
		slog.String("user_id", outcome.User.ID),
	)
	http.Redirect(w, r, successPath, http.StatusFound)
}

func (h *AuthHandler) setTemporaryCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   oauthCookieMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if name == middleware.SessionCookieName {
		cookie.Domain = h.config.CookieDomain
	}
	http.SetCookie(w, cookie)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
