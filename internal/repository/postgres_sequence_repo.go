package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/gatehouse/internal/model"
)

// PostgresSequenceRepo はPostgreSQLを使用した名前付きシーケンス。
type PostgresSequenceRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresSequenceRepo はPostgresSequenceRepoを生成する。
func NewPostgresSequenceRepo(db *sql.DB, timeout time.Duration) *PostgresSequenceRepo {
	return &PostgresSequenceRepo{db: db, timeout: timeout}
}

// Next はシーケンスを1文でインクリメントして新しい値を返す。
// 行ロックにより並行呼び出しは直列化され、同じ値が2回返ることはない。
func (r *PostgresSequenceRepo) Next(ctx context.Context, name string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var value int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sequences (name, value) VALUES ($1, 1)
		 ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		 RETURNING value`,
		name,
	).Scan(&value)
	if err != nil {
		return 0, model.StoreError("failed to increment sequence "+name, err)
	}

	return value, nil
}

// compile-time interface check
var _ SequenceRepository = (*PostgresSequenceRepo)(nil)
