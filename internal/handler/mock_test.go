package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/gatehouse/internal/auth"
	"github.com/hitoshi/gatehouse/internal/exercise"
	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/shorturl"
)

// --- モック定義 ---

type mockAuthenticator struct {
	loginLocalFn func(ctx context.Context, username, password string) auth.Outcome
	loginOAuthFn func(ctx context.Context, profile *auth.ProviderProfile) auth.Outcome
	registerFn   func(ctx context.Context, username, password string) auth.Outcome
}

func (m *mockAuthenticator) LoginLocal(ctx context.Context, username, password string) auth.Outcome {
	if m.loginLocalFn != nil {
		return m.loginLocalFn(ctx, username, password)
	}
	return auth.Outcome{Status: auth.OutcomeRejected, Reason: auth.ReasonNoSuchUser}
}

func (m *mockAuthenticator) LoginOAuth(ctx context.Context, profile *auth.ProviderProfile) auth.Outcome {
	if m.loginOAuthFn != nil {
		return m.loginOAuthFn(ctx, profile)
	}
	return auth.Outcome{Status: auth.OutcomeError}
}

func (m *mockAuthenticator) Register(ctx context.Context, username, password string) auth.Outcome {
	if m.registerFn != nil {
		return m.registerFn(ctx, username, password)
	}
	return auth.Outcome{Status: auth.OutcomeRejected, Reason: auth.ReasonInvalidInput}
}

type mockSessions struct {
	startFn func(ctx context.Context, userID string) (string, error)
	endFn   func(ctx context.Context, token string) error
}

func (m *mockSessions) Start(ctx context.Context, userID string) (string, error) {
	if m.startFn != nil {
		return m.startFn(ctx, userID)
	}
	return "token-" + userID, nil
}

func (m *mockSessions) End(ctx context.Context, token string) error {
	if m.endFn != nil {
		return m.endFn(ctx, token)
	}
	return nil
}

// stubProvider はテスト用のOAuthProvider。
type stubProvider struct {
	name       string
	exchangeFn func(ctx context.Context, code, verifier string) (*auth.ProviderProfile, error)
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthCodeURL(state, verifier string) string {
	return "https://" + p.name + ".example.com/authorize?state=" + state + "&verifier=" + verifier
}

func (p *stubProvider) Exchange(ctx context.Context, code, verifier string) (*auth.ProviderProfile, error) {
	if p.exchangeFn != nil {
		return p.exchangeFn(ctx, code, verifier)
	}
	return &auth.ProviderProfile{ProviderName: p.name, ProviderID: "ext-1"}, nil
}

// mockMetrics は記録回数を数えるRouterMetricsのモック。
type mockMetrics struct {
	mu             sync.Mutex
	authAttempts   map[string]int // "method/status" -> 回数
	sessionStarted int
	sessionEnded   int
	allocated      int
	statuses       []int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{authAttempts: make(map[string]int)}
}

func (m *mockMetrics) RecordAuthAttempt(method, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authAttempts[method+"/"+status]++
}

func (m *mockMetrics) RecordSessionStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionStarted++
}

func (m *mockMetrics) RecordSessionEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionEnded++
}

func (m *mockMetrics) RecordShortURLAllocated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocated++
}

func (m *mockMetrics) RecordHTTPStatus(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, statusCode)
}

func (m *mockMetrics) RecordRequestLatency(time.Duration) {}

func (m *mockMetrics) attempts(method, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authAttempts[method+"/"+status]
}

type mockShortURLService struct {
	shortenFn func(ctx context.Context, originalURL string) (shorturl.Result, error)
	lookupFn  func(ctx context.Context, code string) (*model.ShortURL, error)
}

func (m *mockShortURLService) Shorten(ctx context.Context, originalURL string) (shorturl.Result, error) {
	if m.shortenFn != nil {
		return m.shortenFn(ctx, originalURL)
	}
	return shorturl.Result{Status: shorturl.StatusInvalid}, nil
}

func (m *mockShortURLService) Lookup(ctx context.Context, code string) (*model.ShortURL, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, code)
	}
	return nil, nil
}

type mockExerciseService struct {
	createUserFn  func(ctx context.Context, username string) (*model.FitnessUser, error)
	listUsersFn   func(ctx context.Context) ([]*model.FitnessUser, error)
	addExerciseFn func(ctx context.Context, in exercise.AddInput) (*model.Exercise, *model.FitnessUser, error)
	logFn         func(ctx context.Context, q exercise.LogQuery) (*exercise.Log, error)
}

func (m *mockExerciseService) CreateUser(ctx context.Context, username string) (*model.FitnessUser, error) {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, username)
	}
	return nil, nil
}

func (m *mockExerciseService) ListUsers(ctx context.Context) ([]*model.FitnessUser, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx)
	}
	return nil, nil
}

func (m *mockExerciseService) AddExercise(ctx context.Context, in exercise.AddInput) (*model.Exercise, *model.FitnessUser, error) {
	if m.addExerciseFn != nil {
		return m.addExerciseFn(ctx, in)
	}
	return nil, nil, exercise.ErrUnknownUser
}

func (m *mockExerciseService) Log(ctx context.Context, q exercise.LogQuery) (*exercise.Log, error) {
	if m.logFn != nil {
		return m.logFn(ctx, q)
	}
	return nil, exercise.ErrUnknownUser
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- ヘルパー ---

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// compile-time interface check
var (
	_ Authenticator      = (*mockAuthenticator)(nil)
	_ SessionStarter     = (*mockSessions)(nil)
	_ auth.OAuthProvider = (*stubProvider)(nil)
	_ RouterMetrics      = (*mockMetrics)(nil)
	_ ShortURLService    = (*mockShortURLService)(nil)
	_ ExerciseService    = (*mockExerciseService)(nil)
	_ HealthChecker      = (*mockHealthChecker)(nil)
)
