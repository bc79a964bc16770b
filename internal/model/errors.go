// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// 永続化層とサービス層で共有するセンチネルエラー。
var (
	// ErrDuplicateUsername はユーザー名の一意制約違反を表す。
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrDuplicateFitnessUser はエクササイズトラッカー利用者名の一意制約違反を表す。
	ErrDuplicateFitnessUser = errors.New("fitness username already exists")

	// ErrCredentialFormat は保存済みパスワードダイジェストの破損を表す。
	// 誤ったパスワード（通常の不一致）とは区別して扱う。
	ErrCredentialFormat = errors.New("malformed credential digest")

	// ErrStoreUnavailable はストレージへのアクセス失敗やタイムアウトを表す。
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError はストレージ障害をErrStoreUnavailableとして扱えるようにラップする。
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, shorturl, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeShortURLNotFound = "SHORT_URL_NOT_FOUND"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewInternalError は詳細を伏せた内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStoreUnavailableError はストレージ障害エラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "ストレージに接続できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterで指定された時間が経過してから再度お試しください。",
	}
}
