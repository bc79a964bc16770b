package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gatehouse/internal/model"
)

// MemoryStore はプロセス内メモリで全リポジトリを提供する。
// 開発環境とテスト用。各リポジトリの操作はミューテックスで直列化され、
// PostgreSQL実装と同じアトミック性を持つ。
type MemoryStore struct {
	Users     *MemoryUserRepo
	Sessions  *MemorySessionRepo
	Sequences *MemorySequenceRepo
	ShortURLs *MemoryShortURLRepo
	Exercises *MemoryExerciseRepo
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Users:     &MemoryUserRepo{byID: make(map[string]*model.User)},
		Sessions:  &MemorySessionRepo{byHash: make(map[string]*model.Session)},
		Sequences: &MemorySequenceRepo{values: make(map[string]int64)},
		ShortURLs: &MemoryShortURLRepo{byCode: make(map[int64]*model.ShortURL), byURL: make(map[string]int64)},
		Exercises: &MemoryExerciseRepo{users: make(map[string]*model.FitnessUser)},
	}
}

// PingContext は常に成功する。
func (s *MemoryStore) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// MemoryUserRepo はメモリ上のユーザーリポジトリ。
type MemoryUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User
}

// FindByUsername はユーザー名でユーザーを取得する。
func (r *MemoryUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Username != "" && u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// FindByID は指定IDのユーザーを取得する。
func (r *MemoryUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

// Create はローカルユーザーを作成する。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Username != "" && u.Username == user.Username {
			return fmt.Errorf("failed to insert user %q: %w", user.Username, model.ErrDuplicateUsername)
		}
	}
	c := *user
	r.byID[user.ID] = &c
	return nil
}

// UpsertByProvider は(provider, provider_user_id)をキーにupsertする。
func (r *MemoryUserRepo) UpsertByProvider(ctx context.Context, p UpsertProfile) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, u := range r.byID {
		if u.Provider == p.Provider && u.ProviderUserID == p.ProviderUserID {
			u.LastLoginAt = now
			u.UpdatedAt = now
			u.LoginCount++
			c := *u
			return &c, nil
		}
	}

	u := &model.User{
		ID:             uuid.New().String(),
		Provider:       p.Provider,
		ProviderUserID: p.ProviderUserID,
		DisplayName:    p.DisplayName,
		AvatarURL:      p.AvatarURL,
		Email:          p.Email,
		LoginCount:     1,
		LastLoginAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.byID[u.ID] = u
	c := *u
	return &c, nil
}

// Delete はユーザーを削除する。テストでセッションの孤立を再現するために使う。
func (r *MemoryUserRepo) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// Count は保存済みユーザー数を返す。
func (r *MemoryUserRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// MemorySessionRepo はメモリ上のセッションリポジトリ。
type MemorySessionRepo struct {
	mu     sync.Mutex
	byHash map[string]*model.Session
}

// Create はセッションを保存する。
func (r *MemorySessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *session
	r.byHash[session.TokenHash] = &c
	return nil
}

// FindByTokenHash はセッションを取得する。期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byHash[tokenHash]
	if !ok || s.IsExpiredAt(time.Now()) {
		return nil, nil
	}
	c := *s
	return &c, nil
}

// DeleteByTokenHash はセッションを削除する。
func (r *MemorySessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byHash, tokenHash)
	return nil
}

// DeleteExpired はnow時点で期限切れのセッションを削除する。
func (r *MemorySessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for h, s := range r.byHash {
		if s.IsExpiredAt(now) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

// MemorySequenceRepo はメモリ上の名前付きシーケンス。
type MemorySequenceRepo struct {
	mu     sync.Mutex
	values map[string]int64
}

// Next はシーケンスをインクリメントして新しい値を返す。
func (r *MemorySequenceRepo) Next(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, model.StoreError("failed to increment sequence "+name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[name]++
	return r.values[name], nil
}

// Current は現在値を返す。未使用の名前は0。
func (r *MemorySequenceRepo) Current(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[name]
}

// MemoryShortURLRepo はメモリ上の短縮URLリポジトリ。
type MemoryShortURLRepo struct {
	mu     sync.Mutex
	byCode map[int64]*model.ShortURL
	byURL  map[string]int64
}

// FindByURL は元URLで対応を取得する。
func (r *MemoryShortURLRepo) FindByURL(ctx context.Context, originalURL string) (*model.ShortURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.byURL[originalURL]
	if !ok {
		return nil, nil
	}
	c := *r.byCode[code]
	return &c, nil
}

// FindByCode は短縮コードで対応を取得する。
func (r *MemoryShortURLRepo) FindByCode(ctx context.Context, code int64) (*model.ShortURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

// CreateIfAbsent は対応を保存する。元URLが保存済みの場合は既存の対応を返す。
func (r *MemoryShortURLRepo) CreateIfAbsent(ctx context.Context, s *model.ShortURL) (*model.ShortURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if code, ok := r.byURL[s.OriginalURL]; ok {
		c := *r.byCode[code]
		return &c, nil
	}
	if _, ok := r.byCode[s.Code]; ok {
		return nil, model.StoreError("failed to insert short url", fmt.Errorf("code %d already used", s.Code))
	}

	c := *s
	r.byCode[s.Code] = &c
	r.byURL[s.OriginalURL] = s.Code
	out := c
	return &out, nil
}

// MemoryExerciseRepo はメモリ上のエクササイズトラッカーリポジトリ。
type MemoryExerciseRepo struct {
	mu        sync.Mutex
	users     map[string]*model.FitnessUser
	order     []string
	exercises []*model.Exercise
}

// CreateUser は利用者を作成する。
func (r *MemoryExerciseRepo) CreateUser(ctx context.Context, user *model.FitnessUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return fmt.Errorf("failed to insert fitness user %q: %w", user.Username, model.ErrDuplicateFitnessUser)
		}
	}
	c := *user
	r.users[user.ID] = &c
	r.order = append(r.order, user.ID)
	return nil
}

// FindUserByID は利用者を取得する。
func (r *MemoryExerciseRepo) FindUserByID(ctx context.Context, id string) (*model.FitnessUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

// ListUsers は全利用者を作成順に返す。
func (r *MemoryExerciseRepo) ListUsers(ctx context.Context) ([]*model.FitnessUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]*model.FitnessUser, 0, len(r.order))
	for _, id := range r.order {
		c := *r.users[id]
		users = append(users, &c)
	}
	return users, nil
}

// AddExercise は運動記録を追加する。
func (r *MemoryExerciseRepo) AddExercise(ctx context.Context, e *model.Exercise) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *e
	r.exercises = append(r.exercises, &c)
	return nil
}

// ListExercises は利用者の運動記録を日付昇順で返す。
func (r *MemoryExerciseRepo) ListExercises(ctx context.Context, userID string, f model.ExerciseFilter) ([]*model.Exercise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Exercise
	for _, e := range r.exercises {
		if e.UserID != userID {
			continue
		}
		if !f.From.IsZero() && !e.Date.After(f.From) {
			continue
		}
		if !f.To.IsZero() && e.Date.After(f.To) {
			continue
		}
		c := *e
		out = append(out, &c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Date.Before(out[j].Date)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// compile-time interface check
var (
	_ UserRepository        = (*MemoryUserRepo)(nil)
	_ SessionRepository     = (*MemorySessionRepo)(nil)
	_ ExpiredSessionDeleter = (*MemorySessionRepo)(nil)
	_ SequenceRepository    = (*MemorySequenceRepo)(nil)
	_ ShortURLRepository    = (*MemoryShortURLRepo)(nil)
	_ ExerciseRepository    = (*MemoryExerciseRepo)(nil)
	_ HealthChecker         = (*MemoryStore)(nil)
)
