package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gatehouse/internal/model"
)

// userColumns はusersテーブルのSELECT列。NULL許容列は空文字に正規化する。
const userColumns = `id, COALESCE(username, ''), COALESCE(password_hash, ''),
	COALESCE(provider, ''), COALESCE(provider_user_id, ''),
	display_name, avatar_url, email, login_count, last_login_at, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID, &user.Username, &user.PasswordHash,
		&user.Provider, &user.ProviderUserID,
		&user.DisplayName, &user.AvatarURL, &user.Email,
		&user.LoginCount, &lastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLoginAt = lastLogin.Time
	}
	return user, nil
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
// timeoutは1回のクエリに許容する時間。
func NewPostgresUserRepo(db *sql.DB, timeout time.Duration) *PostgresUserRepo {
	return &PostgresUserRepo{db: db, timeout: timeout}
}

// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.StoreError("failed to find user by username", err)
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	// UUIDとして解釈できないIDは存在しないユーザーとして扱う
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.StoreError("failed to find user by ID", err)
	}

	return user, nil
}

// Create はローカルユーザーを作成する。
// 一意制約違反はmodel.ErrDuplicateUsernameに変換する。存在確認を先に行うことはしない。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err, "users_username_key") {
		return fmt.Errorf("failed to insert user %q: %w", user.Username, model.ErrDuplicateUsername)
	}
	if err != nil {
		return model.StoreError("failed to insert user", err)
	}

	return nil
}

// UpsertByProvider は(provider, provider_user_id)をキーに1文でupsertする。
// 同一アカウントの並行コールバックでもユーザーは1件しか作られない。
func (r *PostgresUserRepo) UpsertByProvider(ctx context.Context, p UpsertProfile) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, provider, provider_user_id, display_name, avatar_url, email,
		                    login_count, last_login_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7, $7)
		 ON CONFLICT (provider, provider_user_id) DO UPDATE SET
		     last_login_at = EXCLUDED.last_login_at,
		     updated_at    = EXCLUDED.updated_at,
		     login_count   = users.login_count + 1
		 RETURNING `+userColumns,
		uuid.New().String(), p.Provider, p.ProviderUserID, p.DisplayName, p.AvatarURL, p.Email, now,
	))
	if err != nil {
		return nil, model.StoreError("failed to upsert user by provider", err)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
