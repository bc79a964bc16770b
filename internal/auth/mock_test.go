package auth

import (
	"context"
	"sync/atomic"

	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByUsernameFn   func(ctx context.Context, username string) (*model.User, error)
	findByIDFn         func(ctx context.Context, id string) (*model.User, error)
	createFn           func(ctx context.Context, user *model.User) error
	upsertByProviderFn func(ctx context.Context, p repository.UpsertProfile) (*model.User, error)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpsertByProvider(ctx context.Context, p repository.UpsertProfile) (*model.User, error) {
	if m.upsertByProviderFn != nil {
		return m.upsertByProviderFn(ctx, p)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn            func(ctx context.Context, session *model.Session) error
	findByTokenHashFn   func(ctx context.Context, tokenHash string) (*model.Session, error)
	deleteByTokenHashFn func(ctx context.Context, tokenHash string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	if m.findByTokenHashFn != nil {
		return m.findByTokenHashFn(ctx, tokenHash)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if m.deleteByTokenHashFn != nil {
		return m.deleteByTokenHashFn(ctx, tokenHash)
	}
	return nil
}

// countingHasher は呼び出し回数を記録するPasswordHasher。
type countingHasher struct {
	inner       PasswordHasher
	hashCalls   atomic.Int32
	verifyCalls atomic.Int32
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashCalls.Add(1)
	return h.inner.Hash(password)
}

func (h *countingHasher) Verify(password, digest string) (bool, error) {
	h.verifyCalls.Add(1)
	return h.inner.Verify(password, digest)
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ PasswordHasher = (*countingHasher)(nil)
