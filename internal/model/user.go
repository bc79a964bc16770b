// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ローカル登録ユーザーはUsernameとPasswordHashを持ち、Provider系フィールドは空。
// OAuthで作成されたユーザーはPasswordHashを持たず、(Provider, ProviderUserID)で一意に識別される。
type User struct {
	ID           string
	Username     string
	PasswordHash string

	Provider       string
	ProviderUserID string
	DisplayName    string
	AvatarURL      string
	Email          string

	LoginCount  int
	LastLoginAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasLocalCredential はパスワードによるログインが可能なユーザーかどうかを返す。
func (u *User) HasLocalCredential() bool {
	return u.PasswordHash != ""
}

// Name は画面表示用の名前を返す。
func (u *User) Name() string {
	if u.Username != "" {
		return u.Username
	}
	return u.DisplayName
}

// Session はユーザーのログインセッションを表す。
// トークン本体は保存せず、SHA-256ハッシュのみを保持する。
type Session struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpiredAt は指定時刻の時点でセッションが期限切れかどうかを返す。
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
