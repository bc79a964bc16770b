package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gatehouse/internal/model"
)

// dateLayout はDATE列とやり取りする日付の書式。
const dateLayout = "2006-01-02"

// PostgresExerciseRepo はPostgreSQLを使用したエクササイズトラッカーのリポジトリ。
type PostgresExerciseRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresExerciseRepo はPostgresExerciseRepoを生成する。
func NewPostgresExerciseRepo(db *sql.DB, timeout time.Duration) *PostgresExerciseRepo {
	return &PostgresExerciseRepo{db: db, timeout: timeout}
}

// CreateUser は利用者を作成する。
func (r *PostgresExerciseRepo) CreateUser(ctx context.Context, user *model.FitnessUser) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fitness_users (id, username, created_at) VALUES ($1, $2, $3)`,
		user.ID, user.Username, user.CreatedAt,
	)
	if isUniqueViolation(err, "fitness_users_username_key") {
		return fmt.Errorf("failed to insert fitness user %q: %w", user.Username, model.ErrDuplicateFitnessUser)
	}
	if err != nil {
		return model.StoreError("failed to insert fitness user", err)
	}
	return nil
}

// FindUserByID は利用者を取得する。見つからない場合はnilを返す。
func (r *PostgresExerciseRepo) FindUserByID(ctx context.Context, id string) (*model.FitnessUser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	user := &model.FitnessUser{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM fitness_users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.StoreError("failed to find fitness user", err)
	}
	return user, nil
}

// ListUsers は全利用者を作成順に返す。
func (r *PostgresExerciseRepo) ListUsers(ctx context.Context) ([]*model.FitnessUser, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, created_at FROM fitness_users ORDER BY created_at, username`,
	)
	if err != nil {
		return nil, model.StoreError("failed to list fitness users", err)
	}
	defer rows.Close()

	var users []*model.FitnessUser
	for rows.Next() {
		u := &model.FitnessUser{}
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
			return nil, model.StoreError("failed to scan fitness user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, model.StoreError("failed to iterate fitness users", err)
	}
	return users, nil
}

// AddExercise は運動記録を追加する。
func (r *PostgresExerciseRepo) AddExercise(ctx context.Context, e *model.Exercise) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exercises (id, user_id, description, duration, date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, e.Description, e.Duration, e.Date.Format(dateLayout), e.CreatedAt,
	)
	if err != nil {
		return model.StoreError("failed to insert exercise", err)
	}
	return nil
}

// ListExercises は利用者の運動記録を日付昇順で返す。
// Fromより後（当日を含まない）、To以前（当日を含む）の記録に絞り込む。
func (r *PostgresExerciseRepo) ListExercises(ctx context.Context, userID string, f model.ExerciseFilter) ([]*model.Exercise, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var b strings.Builder
	b.WriteString(`SELECT id, user_id, description, duration, date, created_at FROM exercises WHERE user_id = $1`)
	args := []any{userID}

	if !f.From.IsZero() {
		args = append(args, f.From.Format(dateLayout))
		fmt.Fprintf(&b, " AND date > $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To.Format(dateLayout))
		fmt.Fprintf(&b, " AND date <= $%d", len(args))
	}
	b.WriteString(" ORDER BY date, created_at")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, model.StoreError("failed to list exercises", err)
	}
	defer rows.Close()

	var exercises []*model.Exercise
	for rows.Next() {
		e := &model.Exercise{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Description, &e.Duration, &e.Date, &e.CreatedAt); err != nil {
			return nil, model.StoreError("failed to scan exercise", err)
		}
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.StoreError("failed to iterate exercises", err)
	}
	return exercises, nil
}

// compile-time interface check
var _ ExerciseRepository = (*PostgresExerciseRepo)(nil)
