package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/repository"
)

func newTestAuthenticator(users repository.UserRepository) *Authenticator {
	return NewAuthenticator(users, NewBcryptHasher(bcrypt.MinCost), NewIdentityResolver(users))
}

func TestOutcomeStatus_String(t *testing.T) {
	tests := []struct {
		status OutcomeStatus
		want   string
	}{
		{OutcomeSuccess, "success"},
		{OutcomeRejected, "rejected"},
		{OutcomeError, "error"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestAuthenticator_RegisterThenLogin(t *testing.T) {
	store := repository.NewMemoryStore()
	a := newTestAuthenticator(store.Users)
	ctx := context.Background()

	reg := a.Register(ctx, "alice", "s3cret")
	if !reg.Authenticated() {
		t.Fatalf("Register() = %+v, want success", reg)
	}
	if reg.User.PasswordHash == "s3cret" || reg.User.PasswordHash == "" {
		t.Errorf("PasswordHash = %q, want a bcrypt digest", reg.User.PasswordHash)
	}

	login := a.LoginLocal(ctx, "alice", "s3cret")
	if !login.Authenticated() {
		t.Fatalf("LoginLocal() = %+v, want success", login)
	}
	if login.User.ID != reg.User.ID {
		t.Errorf("login user ID = %q, want %q", login.User.ID, reg.User.ID)
	}

	wrong := a.LoginLocal(ctx, "alice", "not-the-password")
	if wrong.Status != OutcomeRejected || wrong.Reason != ReasonBadCredential {
		t.Errorf("LoginLocal(wrong) = %v/%q, want rejected/%q", wrong.Status, wrong.Reason, ReasonBadCredential)
	}
	if wrong.User != nil {
		t.Error("rejected outcome must not carry a user")
	}
}

func TestAuthenticator_RegisterThenLogin_PaddedUsername(t *testing.T) {
	store := repository.NewMemoryStore()
	a := newTestAuthenticator(store.Users)
	ctx := context.Background()

	reg := a.Register(ctx, " alice ", "s3cret")
	if !reg.Authenticated() {
		t.Fatalf("Register() = %+v, want success", reg)
	}
	if reg.User.Username != "alice" {
		t.Errorf("Username = %q, want %q", reg.User.Username, "alice")
	}

	for _, username := range []string{" alice ", "alice", "\talice"} {
		login := a.LoginLocal(ctx, username, "s3cret")
		if !login.Authenticated() {
			t.Fatalf("LoginLocal(%q) = %v/%q, want success", username, login.Status, login.Reason)
		}
		if login.User.ID != reg.User.ID {
			t.Errorf("LoginLocal(%q) user ID = %q, want %q", username, login.User.ID, reg.User.ID)
		}
	}
}

func TestAuthenticator_Register_Duplicate(t *testing.T) {
	store := repository.NewMemoryStore()
	a := newTestAuthenticator(store.Users)
	ctx := context.Background()

	if out := a.Register(ctx, "bob", "first"); !out.Authenticated() {
		t.Fatalf("first Register() = %+v", out)
	}

	out := a.Register(ctx, "bob", "second")
	if out.Status != OutcomeRejected || out.Reason != ReasonDuplicateUsername {
		t.Errorf("Register(duplicate) = %v/%q, want rejected/%q", out.Status, out.Reason, ReasonDuplicateUsername)
	}
	if !errors.Is(out.Err, model.ErrDuplicateUsername) {
		t.Errorf("Err = %v, want ErrDuplicateUsername", out.Err)
	}
	if n := store.Users.Count(); n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}

	// 最初のパスワードが有効なまま
	if out := a.LoginLocal(ctx, "bob", "first"); !out.Authenticated() {
		t.Errorf("LoginLocal(first password) = %+v, want success", out)
	}
}

func TestAuthenticator_Register_ConcurrentDuplicates(t *testing.T) {
	store := repository.NewMemoryStore()
	a := newTestAuthenticator(store.Users)

	const n = 8
	var wg sync.WaitGroup
	results := make([]Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Register(context.Background(), "carol", "pw")
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, r := range results {
		switch {
		case r.Authenticated():
			ok++
		case r.Reason == ReasonDuplicateUsername:
			dup++
		}
	}
	if ok != 1 || dup != n-1 {
		t.Errorf("success=%d duplicate=%d, want 1 and %d", ok, dup, n-1)
	}
}

func TestAuthenticator_Register_InvalidInput(t *testing.T) {
	a := newTestAuthenticator(repository.NewMemoryStore().Users)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "pw"},
		{"blank username", "   ", "pw"},
		{"empty password", "dave", ""},
		{"password over 72 bytes", "dave", string(make([]byte, 73))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := a.Register(context.Background(), tt.username, tt.password)
			if out.Status != OutcomeRejected || out.Reason != ReasonInvalidInput {
				t.Errorf("Register() = %v/%q, want rejected/%q", out.Status, out.Reason, ReasonInvalidInput)
			}
		})
	}
}

func TestAuthenticator_Register_StoreFailure(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(_ context.Context, _ *model.User) error {
			return model.StoreError("failed to insert user", errors.New("timeout"))
		},
	}
	a := newTestAuthenticator(users)

	out := a.Register(context.Background(), "erin", "pw")
	if out.Status != OutcomeError {
		t.Fatalf("Status = %v, want error", out.Status)
	}
	if !errors.Is(out.Err, model.ErrStoreUnavailable) {
		t.Errorf("Err = %v, want ErrStoreUnavailable", out.Err)
	}
}

func TestAuthenticator_LoginLocal_NoSuchUser_RunsDummyVerify(t *testing.T) {
	hasher := &countingHasher{inner: NewBcryptHasher(bcrypt.MinCost)}
	a := NewAuthenticator(repository.NewMemoryStore().Users, hasher, nil)

	out := a.LoginLocal(context.Background(), "nobody", "pw")
	if out.Status != OutcomeRejected || out.Reason != ReasonNoSuchUser {
		t.Errorf("LoginLocal() = %v/%q, want rejected/%q", out.Status, out.Reason, ReasonNoSuchUser)
	}
	if hasher.verifyCalls.Load() != 1 {
		t.Errorf("Verify calls = %d, want 1", hasher.verifyCalls.Load())
	}
}

func TestAuthenticator_LoginLocal_OAuthOnlyUser(t *testing.T) {
	users := &mockUserRepo{
		findByUsernameFn: func(_ context.Context, _ string) (*model.User, error) {
			return &model.User{ID: "u1", Username: "frank", Provider: "github", ProviderUserID: "9"}, nil
		},
	}
	a := newTestAuthenticator(users)

	out := a.LoginLocal(context.Background(), "frank", "pw")
	if out.Status != OutcomeRejected || out.Reason != ReasonNoLocalCredential {
		t.Errorf("LoginLocal() = %v/%q, want rejected/%q", out.Status, out.Reason, ReasonNoLocalCredential)
	}
}

func TestAuthenticator_LoginLocal_MalformedDigest(t *testing.T) {
	users := &mockUserRepo{
		findByUsernameFn: func(_ context.Context, _ string) (*model.User, error) {
			return &model.User{ID: "u1", Username: "grace", PasswordHash: "not-a-bcrypt-digest"}, nil
		},
	}
	a := newTestAuthenticator(users)

	out := a.LoginLocal(context.Background(), "grace", "pw")
	if out.Status != OutcomeError {
		t.Fatalf("Status = %v, want error", out.Status)
	}
	if !errors.Is(out.Err, model.ErrCredentialFormat) {
		t.Errorf("Err = %v, want ErrCredentialFormat", out.Err)
	}
}

func TestAuthenticator_LoginLocal_StoreFailure(t *testing.T) {
	users := &mockUserRepo{
		findByUsernameFn: func(_ context.Context, _ string) (*model.User, error) {
			return nil, model.StoreError("failed to find user", context.DeadlineExceeded)
		},
	}
	a := newTestAuthenticator(users)

	out := a.LoginLocal(context.Background(), "heidi", "pw")
	if out.Status != OutcomeError {
		t.Fatalf("Status = %v, want error", out.Status)
	}
	if !errors.Is(out.Err, model.ErrStoreUnavailable) {
		t.Errorf("Err = %v, want ErrStoreUnavailable", out.Err)
	}
}

func TestAuthenticator_LoginOAuth(t *testing.T) {
	store := repository.NewMemoryStore()
	a := newTestAuthenticator(store.Users)
	ctx := context.Background()

	profile := &ProviderProfile{ProviderName: "github", ProviderID: "42", DisplayName: "Ivan"}
	first := a.LoginOAuth(ctx, profile)
	second := a.LoginOAuth(ctx, profile)

	if !first.Authenticated() || !second.Authenticated() {
		t.Fatalf("LoginOAuth() = %+v / %+v, want success", first, second)
	}
	if first.User.ID != second.User.ID {
		t.Errorf("user IDs differ: %q vs %q", first.User.ID, second.User.ID)
	}
	if second.User.LoginCount != 2 {
		t.Errorf("LoginCount = %d, want 2", second.User.LoginCount)
	}
}

func TestAuthenticator_LoginOAuth_InvalidProfileIsError(t *testing.T) {
	a := newTestAuthenticator(repository.NewMemoryStore().Users)

	out := a.LoginOAuth(context.Background(), &ProviderProfile{ProviderName: "github"})
	if out.Status != OutcomeError {
		t.Fatalf("Status = %v, want error", out.Status)
	}
	if !errors.Is(out.Err, ErrInvalidProfile) {
		t.Errorf("Err = %v, want ErrInvalidProfile", out.Err)
	}
}
