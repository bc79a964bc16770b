package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/repository"
)

// sessionTokenBytes はセッショントークンのエントロピー（256bit）。
const sessionTokenBytes = 32

// UserFinder はセッションの参照先ユーザーを確認するためのインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SessionConfig はセッション管理の設定。
type SessionConfig struct {
	MaxAge time.Duration // セッション有効期間
}

// SessionManager は認証済みユーザーIDと不透明なトークンを相互に変換する。
// トークン本体はクライアントにのみ渡し、ストアにはSHA-256ハッシュを保存する。
type SessionManager struct {
	sessions repository.SessionRepository
	users    UserFinder
	config   SessionConfig
	now      func() time.Time
}

// NewSessionManager はSessionManagerを生成する。
func NewSessionManager(sessions repository.SessionRepository, users UserFinder, config SessionConfig) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		users:    users,
		config:   config,
		now:      time.Now,
	}
}

// MaxAge はセッション有効期間を返す。
func (m *SessionManager) MaxAge() time.Duration {
	return m.config.MaxAge
}

// Start は新しいトークンを発行し、ユーザーIDとの対応を保存する。
func (m *SessionManager) Start(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user ID is required")
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := m.now()
	session := &model.Session{
		TokenHash: HashToken(token),
		UserID:    userID,
		ExpiresAt: now.Add(m.config.MaxAge),
		CreatedAt: now,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	return token, nil
}

// Resolve はトークンをユーザーIDに変換する。
// 未知・期限切れ・参照先ユーザーが存在しないトークンは空文字を返す。
func (m *SessionManager) Resolve(ctx context.Context, token string) (string, error) {
	user, err := m.ResolveUser(ctx, token)
	if err != nil || user == nil {
		return "", err
	}
	return user.ID, nil
}

// ResolveUser はトークンを参照先のユーザーに変換する。解決できない場合はnilを返す。
// 参照先ユーザーが消えたセッションは破棄する。
func (m *SessionManager) ResolveUser(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}

	tokenHash := HashToken(token)
	session, err := m.sessions.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if session.IsExpiredAt(m.now()) {
		m.discard(ctx, tokenHash, "expired")
		return nil, nil
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session user: %w", err)
	}
	if user == nil {
		m.discard(ctx, tokenHash, "orphaned")
		return nil, nil
	}

	return user, nil
}

// End はセッションを破棄する。未知のトークンに対しても成功する。
func (m *SessionManager) End(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.sessions.DeleteByTokenHash(ctx, HashToken(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (m *SessionManager) discard(ctx context.Context, tokenHash, reason string) {
	if err := m.sessions.DeleteByTokenHash(ctx, tokenHash); err != nil {
		slog.Warn("failed to discard session",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}
}

// HashToken はトークンをストアのキーに変換する。
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// generateToken は暗号的に安全なトークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
