package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/gatehouse/internal/auth"
	"github.com/hitoshi/gatehouse/internal/config"
	"github.com/hitoshi/gatehouse/internal/database"
	"github.com/hitoshi/gatehouse/internal/exercise"
	"github.com/hitoshi/gatehouse/internal/handler"
	"github.com/hitoshi/gatehouse/internal/logger"
	"github.com/hitoshi/gatehouse/internal/metrics"
	"github.com/hitoshi/gatehouse/internal/middleware"
	"github.com/hitoshi/gatehouse/internal/security"
	"github.com/hitoshi/gatehouse/internal/sequence"
	"github.com/hitoshi/gatehouse/internal/shorturl"
	"github.com/hitoshi/gatehouse/internal/view"
	"github.com/hitoshi/gatehouse/internal/worker/cleanup"
)

const (
	shutdownTimeout = 30 * time.Second
	defaultPort     = "3000"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// server はserveコマンドで起動する依存関係一式。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// Close はバックグラウンドgoroutineを停止する。
func (s *server) Close() {
	s.rateLimiter.Stop()
}

// newServer はバックエンドから全サービスをワイヤリングしてルーターを構築する。
// regにはアプリケーションのメトリクスを登録し、/metricsで公開する。
func newServer(ctx context.Context, cfg *config.Config, b *backends, reg *prometheus.Registry) (*server, error) {
	// 1. 認証
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	authenticator := auth.NewAuthenticator(b.users, hasher, auth.NewIdentityResolver(b.users))
	sessions := auth.NewSessionManager(b.sessions, b.users, auth.SessionConfig{
		MaxAge: time.Duration(cfg.SessionMaxAge) * time.Second,
	})

	providers, err := newProviderRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. ドメインサービス
	shortURLService := shorturl.NewService(b.shortURLs, sequence.NewAllocator(b.sequences), shorturl.NewValidator())
	exerciseService := exercise.NewService(b.exercises, security.NewTextSanitizer())

	// 3. 画面
	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	// 4. ミドルウェア依存
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitAuth, cfg.RateLimitShorten),
	)
	collector := metrics.NewCollector(reg)

	publicDir := cfg.PublicDir
	if _, err := os.Stat(publicDir); err != nil {
		slog.Warn("public directory not found; static files disabled", slog.String("dir", publicDir))
		publicDir = ""
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionResolver:   sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		HealthChecker:  b.health,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),

		Authenticator: authenticator,
		Sessions:      sessions,
		Providers:     providers,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		Renderer:  renderer,
		PublicDir: publicDir,

		ShortURLService: shortURLService,
		ExerciseService: exerciseService,
	})

	return &server{handler: router, rateLimiter: rateLimiter}, nil
}

// newProviderRegistry は設定済みのOAuthプロバイダーだけを登録する。
func newProviderRegistry(ctx context.Context, cfg *config.Config) (*auth.Registry, error) {
	var list []auth.OAuthProvider

	if cfg.GitHubEnabled() {
		list = append(list, auth.NewGitHubProvider(auth.GitHubConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
		}))
	}

	if cfg.GoogleEnabled() {
		google, err := auth.NewGoogleProvider(ctx, auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize google provider: %w", err)
		}
		list = append(list, google)
	}

	registry := auth.NewRegistry(list...)
	slog.Info("oauth providers registered", slog.Any("providers", registry.Names()))
	return registry, nil
}

// newRegistry はGo/プロセスのランタイムメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// バックエンドへ接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	srv, err := newServer(ctx, cfg, b, newRegistry())
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除ジョブを日次で実行し、ctxがキャンセルされると終了する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.SessionBackend != config.BackendPostgres {
		return fmt.Errorf("worker requires SESSION_BACKEND=postgres, got %q", cfg.SessionBackend)
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	reg := newRegistry()
	job := cleanup.NewCleanupJob(b.expired, metrics.NewCollector(reg), slog.Default())

	// 削除件数のスクレイプとDockerヘルスチェック用に運用エンドポイントだけを公開する
	opsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           newOpsHandler(b.health, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker ops server error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", job.Interval),
		slog.String("ops_addr", opsServer.Addr),
	)

	job.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("worker ops server shutdown failed: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newOpsHandler はワーカー用の/healthと/metricsだけを持つハンドラーを返す。
func newOpsHandler(checker handler.HealthChecker, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /health", handler.NewHealthHandler(checker))
	mux.Handle("GET /metrics", metrics.Handler(gatherer))
	return mux
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrate requires STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, _, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
