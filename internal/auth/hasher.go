// Package auth はパスワード認証、OAuth認証、セッション管理を提供する。
package auth

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/gatehouse/internal/model"
)

// DefaultPasswordCost はbcryptのデフォルトコスト（2^12ラウンド）。
const DefaultPasswordCost = 12

// maxPasswordBytes はbcryptが扱える入力の上限。
const maxPasswordBytes = 72

var (
	// ErrEmptyPassword は空のパスワードを表す。
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong はbcryptの上限を超えるパスワードを表す。
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// PasswordHasher はパスワードの一方向ハッシュ化と照合を行う。
type PasswordHasher interface {
	// Hash はソルト付きのダイジェストを生成する。
	Hash(password string) (string, error)
	// Verify はパスワードとダイジェストを照合する。
	// 不一致は(false, nil)。ダイジェストが壊れている場合はmodel.ErrCredentialFormatを返す。
	Verify(password, digest string) (bool, error)
}

// BcryptHasher はbcryptによるPasswordHasher実装。
// bcryptはハッシュ同士をsubtle.ConstantTimeCompareで比較するため、
// 照合時間は一致した接頭辞の長さに依存しない。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costがbcryptの有効範囲外の場合は範囲内に丸める。0の場合はDefaultPasswordCostを使用する。
// DefaultPasswordCostより低いコストは警告ログを出す。
func NewBcryptHasher(cost int) *BcryptHasher {
	requested := cost
	switch {
	case cost == 0:
		cost = DefaultPasswordCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	if cost < DefaultPasswordCost {
		slog.Warn("bcrypt cost is below the recommended work factor",
			slog.Int("requested", requested),
			slog.Int("cost", cost),
			slog.Int("recommended", DefaultPasswordCost),
		)
	}
	return &BcryptHasher{cost: cost}
}

// Cost は使用するコストを返す。
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash はパスワードをbcryptでハッシュ化する。
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify はパスワードとbcryptダイジェストを照合する。
func (h *BcryptHasher) Verify(password, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		// 保存時に72バイト超は拒否しているため一致し得ない
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", model.ErrCredentialFormat, err)
	}
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
