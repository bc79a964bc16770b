package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/gatehouse/internal/middleware"
)

// healthCheckTimeout はヘルスチェック1回あたりのストア疎通確認の上限時間。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はストアの疎通確認インターフェース。
// *sql.DBとrepository.MemoryStoreが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// NewHealthHandler はストアへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			middleware.WriteStoreUnavailable(w)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
