package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/gatehouse/internal/config"
	"github.com/hitoshi/gatehouse/internal/database"
	"github.com/hitoshi/gatehouse/internal/repository"
)

// backends はSTORE_BACKEND / SESSION_BACKEND に応じて組み立てたリポジトリ群。
type backends struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	sequences repository.SequenceRepository
	shortURLs repository.ShortURLRepository
	exercises repository.ExerciseRepository

	// expired はセッションの一括削除に対応するバックエンドの場合のみ非nil
	expired repository.ExpiredSessionDeleter

	health  healthCheckers
	closers []func() error
}

// openBackends は設定に従ってストアとセッションストアへ接続する。
// 失敗した場合はそれまでに開いた接続を閉じる。
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	var db *sql.DB
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)

		if err := db.PingContext(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		b.users = repository.NewPostgresUserRepo(db, cfg.StoreTimeout)
		b.sequences = repository.NewPostgresSequenceRepo(db, cfg.StoreTimeout)
		b.shortURLs = repository.NewPostgresShortURLRepo(db, cfg.StoreTimeout)
		b.exercises = repository.NewPostgresExerciseRepo(db, cfg.StoreTimeout)
		b.health = append(b.health, db)
	case config.BackendMemory:
		store := repository.NewMemoryStore()
		b.users = store.Users
		b.sequences = store.Sequences
		b.shortURLs = store.ShortURLs
		b.exercises = store.Exercises
		b.health = append(b.health, store)

		if cfg.SessionBackend == config.BackendMemory {
			b.sessions = store.Sessions
			b.expired = store.Sessions
		}
		slog.Warn("using in-memory store; data is lost on restart")
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND: %q", cfg.StoreBackend)
	}

	switch cfg.SessionBackend {
	case config.BackendPostgres:
		repo := repository.NewPostgresSessionRepo(db, cfg.StoreTimeout)
		b.sessions = repo
		b.expired = repo
	case config.BackendRedis:
		client, err := database.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		b.sessions = repository.NewRedisSessionRepo(client, cfg.StoreTimeout)
		b.health = append(b.health, redisPinger{client: client})
		slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))
	case config.BackendMemory:
		if b.sessions == nil {
			b.Close()
			return nil, errors.New("SESSION_BACKEND=memory requires STORE_BACKEND=memory")
		}
	default:
		b.Close()
		return nil, fmt.Errorf("unsupported SESSION_BACKEND: %q", cfg.SessionBackend)
	}

	return b, nil
}

// Close は開いた接続を逆順に閉じる。
func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// healthCheckers は全バックエンドへの疎通確認をまとめる。
type healthCheckers []repository.HealthChecker

func (h healthCheckers) PingContext(ctx context.Context) error {
	for _, c := range h {
		if err := c.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// redisPinger はredis.ClientをHealthCheckerに適合させる。
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// compile-time interface check
var (
	_ repository.HealthChecker = healthCheckers(nil)
	_ repository.HealthChecker = redisPinger{}
)
