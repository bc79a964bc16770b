package auth

import (
	"errors"
	"strings"

	"github.com/hitoshi/gatehouse/internal/repository"
)

// 外部プロフィールに値がない場合のプレースホルダー
const (
	DefaultDisplayName = "John Doe"
	NoPublicEmail      = "No public email"
)

// ErrInvalidProfile はプロバイダー名または外部IDが欠けたプロフィールを表す。
var ErrInvalidProfile = errors.New("provider profile requires provider name and id")

// ProviderProfile はOAuthプロバイダーから取得したプロフィールを正規化したもの。
// プロバイダーごとのアダプターが生成する。
type ProviderProfile struct {
	ProviderName string
	ProviderID   string
	DisplayName  string
	AvatarURL    string
	Emails       []string
}

// toUpsert は既定値を適用してリポジトリ向けのプロフィールに変換する。
func (p *ProviderProfile) toUpsert() (repository.UpsertProfile, error) {
	if p == nil || strings.TrimSpace(p.ProviderName) == "" || strings.TrimSpace(p.ProviderID) == "" {
		return repository.UpsertProfile{}, ErrInvalidProfile
	}

	displayName := strings.TrimSpace(p.DisplayName)
	if displayName == "" {
		displayName = DefaultDisplayName
	}

	email := NoPublicEmail
	for _, e := range p.Emails {
		if e = strings.TrimSpace(e); e != "" {
			email = e
			break
		}
	}

	return repository.UpsertProfile{
		Provider:       p.ProviderName,
		ProviderUserID: p.ProviderID,
		DisplayName:    displayName,
		AvatarURL:      strings.TrimSpace(p.AvatarURL),
		Email:          email,
	}, nil
}
