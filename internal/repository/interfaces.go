// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/gatehouse/internal/model"
)

// UpsertProfile はOAuthログイン時にユーザーをupsertするための正規化済みプロフィール。
type UpsertProfile struct {
	Provider       string
	ProviderUserID string
	DisplayName    string
	AvatarURL      string
	Email          string
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername はユーザー名でローカルユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はローカルユーザーを作成する。
	// ユーザー名が既に存在する場合はmodel.ErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error

	// UpsertByProvider は(provider, provider_user_id)でユーザーをアトミックにupsertする。
	// 既存ユーザーはlast_login_atを更新しlogin_countを1増やす。プロフィールは初回作成時の値を維持する。
	UpsertByProvider(ctx context.Context, profile UpsertProfile) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByTokenHash はトークンハッシュでセッションを取得する。期限切れまたは存在しない場合はnilを返す。
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)
	// DeleteByTokenHash はセッションを削除する。存在しない場合もエラーにしない。
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
}

// ExpiredSessionDeleter は期限切れセッションを一括削除できるストアのインターフェース。
// Redisのように有効期限を自前で管理するストアは実装しない。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SequenceRepository は名前付きシーケンスの永続化インターフェース。
type SequenceRepository interface {
	// Next は指定シーケンスをアトミックにインクリメントして新しい値を返す。
	// 未使用の名前は1から始まる。
	Next(ctx context.Context, name string) (int64, error)
}

// ShortURLRepository は短縮URLの永続化インターフェース。
type ShortURLRepository interface {
	// FindByURL は元URLの完全一致で検索する。見つからない場合はnilを返す。
	FindByURL(ctx context.Context, originalURL string) (*model.ShortURL, error)

	// FindByCode は短縮コードで検索する。見つからない場合はnilを返す。
	FindByCode(ctx context.Context, code int64) (*model.ShortURL, error)

	// CreateIfAbsent は対応を保存し、保存済みの対応を返す。
	// 同じ元URLが並行して保存済みの場合は既存の対応を返す。
	CreateIfAbsent(ctx context.Context, shortURL *model.ShortURL) (*model.ShortURL, error)
}

// ExerciseRepository はエクササイズトラッカーの永続化インターフェース。
type ExerciseRepository interface {
	// CreateUser は利用者を作成する。名前が重複する場合はmodel.ErrDuplicateFitnessUserを返す。
	CreateUser(ctx context.Context, user *model.FitnessUser) error

	// FindUserByID は利用者を取得する。見つからない場合はnilを返す。
	FindUserByID(ctx context.Context, id string) (*model.FitnessUser, error)

	// ListUsers は全利用者を作成順に返す。
	ListUsers(ctx context.Context) ([]*model.FitnessUser, error)

	// AddExercise は運動記録を追加する。
	AddExercise(ctx context.Context, exercise *model.Exercise) error

	// ListExercises は利用者の運動記録を日付昇順で返す。
	ListExercises(ctx context.Context, userID string, filter model.ExerciseFilter) ([]*model.Exercise, error)
}

// HealthChecker はストアの疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}
