package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/repository"
)

// maxUsernameLength はローカルユーザー名の最大長（users.usernameの列幅）。
const maxUsernameLength = 255

// OutcomeStatus はログイン試行1回の終端状態。
type OutcomeStatus int

const (
	// OutcomeSuccess は認証成功。
	OutcomeSuccess OutcomeStatus = iota
	// OutcomeRejected は入力に起因する通常の失敗。
	OutcomeRejected
	// OutcomeError はシステム側の理由で判定できなかったことを表す。
	OutcomeError
)

// String はメトリクスとログで使うラベルを返す。
func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSuccess:
		return "success"
	case OutcomeRejected:
		return "rejected"
	default:
		return "error"
	}
}

// RejectReason はOutcomeRejectedの理由。
type RejectReason string

const (
	ReasonNoSuchUser        RejectReason = "no_such_user"
	ReasonNoLocalCredential RejectReason = "no_local_credential"
	ReasonBadCredential     RejectReason = "bad_credential"
	ReasonDuplicateUsername RejectReason = "duplicate_username"
	ReasonInvalidInput      RejectReason = "invalid_input"
)

// Outcome はログイン試行の結果。
// SuccessのときUserを持ち、ErrorのときErrを持つ。
type Outcome struct {
	Status OutcomeStatus
	Reason RejectReason
	User   *model.User
	Err    error
}

// Authenticated は認証に成功したかどうかを返す。
func (o Outcome) Authenticated() bool {
	return o.Status == OutcomeSuccess && o.User != nil
}

func success(u *model.User) Outcome {
	return Outcome{Status: OutcomeSuccess, User: u}
}

func rejected(reason RejectReason, err error) Outcome {
	return Outcome{Status: OutcomeRejected, Reason: reason, Err: err}
}

func failed(err error) Outcome {
	return Outcome{Status: OutcomeError, Err: err}
}

// Authenticator はローカルパスワード認証とOAuth認証を共通のOutcomeにまとめる。
type Authenticator struct {
	users    repository.UserRepository
	hasher   PasswordHasher
	resolver *IdentityResolver

	dummyOnce   sync.Once
	dummyDigest string
}

// NewAuthenticator はAuthenticatorを生成する。
func NewAuthenticator(users repository.UserRepository, hasher PasswordHasher, resolver *IdentityResolver) *Authenticator {
	return &Authenticator{
		users:    users,
		hasher:   hasher,
		resolver: resolver,
	}
}

// normalizeUsername は登録とログインで共通のユーザー名正規化を行う。
func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// LoginLocal はユーザー名とパスワードで認証する。
// ユーザー名はRegisterと同じ規則で正規化してから検索する。
func (a *Authenticator) LoginLocal(ctx context.Context, username, password string) Outcome {
	user, err := a.users.FindByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return failed(fmt.Errorf("failed to look up user: %w", err))
	}

	if user == nil {
		// ユーザーの有無が応答時間から分からないようにダミーの照合を行う
		a.verifyDummy(password)
		return rejected(ReasonNoSuchUser, nil)
	}

	if !user.HasLocalCredential() {
		a.verifyDummy(password)
		return rejected(ReasonNoLocalCredential, nil)
	}

	ok, err := a.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		slog.Error("stored credential digest is malformed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return failed(err)
	}
	if !ok {
		return rejected(ReasonBadCredential, nil)
	}

	return success(user)
}

// LoginOAuth はプロバイダーが保証したプロフィールでユーザーを解決する。
// この経路には「パスワード不一致」に相当する失敗はない。
func (a *Authenticator) LoginOAuth(ctx context.Context, profile *ProviderProfile) Outcome {
	user, err := a.resolver.Resolve(ctx, profile)
	if err != nil {
		return failed(err)
	}
	return success(user)
}

// Register はローカルユーザーを作成する。パスワードは保存前にハッシュ化する。
// ユーザー名の重複は再試行せずReasonDuplicateUsernameとして返す。
func (a *Authenticator) Register(ctx context.Context, username, password string) Outcome {
	username = normalizeUsername(username)
	if username == "" || len(username) > maxUsernameLength {
		return rejected(ReasonInvalidInput, fmt.Errorf("username must be 1-%d characters", maxUsernameLength))
	}

	digest, err := a.hasher.Hash(password)
	if errors.Is(err, ErrEmptyPassword) || errors.Is(err, ErrPasswordTooLong) {
		return rejected(ReasonInvalidInput, err)
	}
	if err != nil {
		return failed(err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicateUsername) {
			return rejected(ReasonDuplicateUsername, err)
		}
		return failed(fmt.Errorf("failed to create user: %w", err))
	}

	slog.Info("local user registered", slog.String("user_id", user.ID))
	return success(user)
}

// verifyDummy は存在しないユーザーに対しても同等の照合コストを支払う。
func (a *Authenticator) verifyDummy(password string) {
	a.dummyOnce.Do(func() {
		digest, err := a.hasher.Hash("gatehouse-timing-equalizer")
		if err != nil {
			slog.Warn("failed to prepare dummy digest", slog.String("error", err.Error()))
			return
		}
		a.dummyDigest = digest
	})
	if a.dummyDigest != "" {
		_, _ = a.hasher.Verify(password, a.dummyDigest)
	}
}
