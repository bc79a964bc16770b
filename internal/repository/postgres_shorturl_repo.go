package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/gatehouse/internal/model"
)

// PostgresShortURLRepo はPostgreSQLを使用した短縮URLリポジトリ。
type PostgresShortURLRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresShortURLRepo はPostgresShortURLRepoを生成する。
func NewPostgresShortURLRepo(db *sql.DB, timeout time.Duration) *PostgresShortURLRepo {
	return &PostgresShortURLRepo{db: db, timeout: timeout}
}

// FindByURL は元URLで対応を取得する。見つからない場合はnilを返す。
func (r *PostgresShortURLRepo) FindByURL(ctx context.Context, originalURL string) (*model.ShortURL, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	return r.findOne(ctx, `SELECT code, original_url, created_at FROM short_urls WHERE original_url = $1`, originalURL)
}

// FindByCode は短縮コードで対応を取得する。見つからない場合はnilを返す。
func (r *PostgresShortURLRepo) FindByCode(ctx context.Context, code int64) (*model.ShortURL, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	return r.findOne(ctx, `SELECT code, original_url, created_at FROM short_urls WHERE code = $1`, code)
}

// CreateIfAbsent は対応を保存する。元URLが既に保存済みの場合は既存の対応を返す。
// その場合、採番済みのコードは欠番になる。
func (r *PostgresShortURLRepo) CreateIfAbsent(ctx context.Context, s *model.ShortURL) (*model.ShortURL, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	created := &model.ShortURL{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO short_urls (code, original_url, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (original_url) DO NOTHING
		 RETURNING code, original_url, created_at`,
		s.Code, s.OriginalURL, s.CreatedAt,
	).Scan(&created.Code, &created.OriginalURL, &created.CreatedAt)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, model.StoreError("failed to insert short url", err)
	}

	existing, err := r.findOne(ctx, `SELECT code, original_url, created_at FROM short_urls WHERE original_url = $1`, s.OriginalURL)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.StoreError("failed to insert short url", errors.New("conflicting row disappeared"))
	}
	return existing, nil
}

func (r *PostgresShortURLRepo) findOne(ctx context.Context, query string, arg any) (*model.ShortURL, error) {
	s := &model.ShortURL{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&s.Code, &s.OriginalURL, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.StoreError("failed to find short url", err)
	}
	return s, nil
}

// compile-time interface check
var _ ShortURLRepository = (*PostgresShortURLRepo)(nil)
