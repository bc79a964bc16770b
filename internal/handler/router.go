package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/gatehouse/internal/middleware"
)

// RouterMetrics はルーターが記録する全メトリクスのインターフェース。
// metrics.Collectorが実装する。
type RouterMetrics interface {
	middleware.HTTPMetrics
	AuthMetrics
	ShortURLMetrics
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 運用
	HealthChecker  HealthChecker
	Metrics        RouterMetrics
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない

	// 認証
	Authenticator Authenticator
	Sessions      SessionStarter
	Providers     ProviderLookup
	AuthConfig    AuthHandlerConfig

	// 画面
	Renderer  PageRenderer
	PublicDir string // 空の場合は/publicを公開しない

	// API
	ShortURLService ShortURLService
	ExerciseService ExerciseService
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Logging → Metrics → Recovery → SecurityHeaders → CORS → Session
//
// ログイン・登録フォームにはCSRF検証とログイン用レート制限、
// 短縮URL作成には短縮用レート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))

	authHandler := NewAuthHandler(deps.Authenticator, deps.Sessions, deps.Providers, deps.Metrics, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.Renderer, deps.Providers)
	shortHandler := NewShortURLHandler(deps.ShortURLService, deps.Metrics)
	microHandler := NewMicroserviceHandler()
	exerciseHandler := NewExerciseHandler(deps.ExerciseService)

	// --- 運用エンドポイント ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 静的ファイル ---
	if deps.PublicDir != "" {
		r.Handle("/public/*", http.StripPrefix("/public/", http.FileServer(http.Dir(deps.PublicDir))))
	}

	// --- ログインフォーム（CSRF検証あり） ---
	// 失敗したフォーム送信はすべてログイン画面へ戻す
	formCSRF := deps.CSRFConfig
	formCSRF.FailureRedirect = "/"
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(formCSRF))

		r.Get("/", pageHandler.Index)

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthFormMiddleware("/"))
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
		})
	})

	r.Get("/logout", authHandler.Logout)

	// --- OAuthフロー ---
	r.Route("/auth/{provider}", func(r chi.Router) {
		r.Get("/", authHandler.BeginOAuth)
		r.Get("/callback", authHandler.Callback)
	})

	// --- 認証が必要な画面 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser("/"))
		r.Get("/profile", pageHandler.Profile)
		r.Get("/chat", pageHandler.Chat)
	})

	// --- URL短縮 ---
	r.Route("/api/shorturl", func(r chi.Router) {
		shorten := deps.RateLimiter.ShortenMiddleware()
		r.With(shorten).Post("/", shortHandler.Shorten)
		r.With(shorten).Post("/new", shortHandler.Shorten)
		r.Get("/{code}", shortHandler.Redirect)
	})

	// --- 小さなAPI群 ---
	r.Get("/api/timestamp", microHandler.Timestamp)
	r.Get("/api/timestamp/{date}", microHandler.Timestamp)
	r.Get("/api/whoami", microHandler.WhoAmI)
	r.Get("/api/hello", microHandler.Hello)

	// --- エクササイズトラッカー ---
	r.Route("/api/exercise", func(r chi.Router) {
		r.Post("/new-user", exerciseHandler.CreateUser)
		r.Get("/users", exerciseHandler.ListUsers)
		r.Post("/add", exerciseHandler.AddExercise)
		r.Get("/log", exerciseHandler.Log)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Not Found"))
	})

	return r
}
