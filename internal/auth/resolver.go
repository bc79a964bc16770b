package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/repository"
)

// IdentityResolver は外部プロフィールをローカルユーザーに対応付ける。
// 初回は作成し、以降はログイン情報を更新する。
type IdentityResolver struct {
	users repository.UserRepository
}

// NewIdentityResolver はIdentityResolverを生成する。
func NewIdentityResolver(users repository.UserRepository) *IdentityResolver {
	return &IdentityResolver{users: users}
}

// Resolve はプロフィールを正規化し、(provider, provider_user_id)でupsertしたユーザーを返す。
func (r *IdentityResolver) Resolve(ctx context.Context, profile *ProviderProfile) (*model.User, error) {
	upsert, err := profile.toUpsert()
	if err != nil {
		return nil, err
	}

	user, err := r.users.UpsertByProvider(ctx, upsert)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s identity: %w", upsert.Provider, err)
	}

	slog.Info("oauth identity resolved",
		slog.String("user_id", user.ID),
		slog.String("provider", user.Provider),
		slog.Int("login_count", user.LoginCount),
	)
	return user, nil
}
