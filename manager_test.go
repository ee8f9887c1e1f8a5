package goSession

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/tokenstore"
)

type fakeAPI struct {
	mu sync.Mutex

	loginToken string
	loginErr   error
	loginGate  chan struct{}

	registerToken string
	registerErr   error
	lastRegister  api.RegisterRequest

	exists   bool
	checkErr error

	deleteErr error

	loginCalls    int
	registerCalls int
	checkCalls    int
	deleteCalls   int
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (string, error) {
	f.mu.Lock()
	f.loginCalls++
	gate := f.loginGate
	token, err := f.loginToken, f.loginErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return token, err
}

func (f *fakeAPI) Register(_ context.Context, req api.RegisterRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	f.lastRegister = req
	return f.registerToken, f.registerErr
}

func (f *fakeAPI) CheckEmail(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	return f.exists, f.checkErr
}

func (f *fakeAPI) DeleteMe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeAPI) calls() (login, register, check, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.registerCalls, f.checkCalls, f.deleteCalls
}

type failingStore struct {
	err error
}

func (s failingStore) Get(context.Context, string) (string, error) { return "", s.err }
func (s failingStore) Set(context.Context, string, string) error { return s.err }
func (s failingStore) Remove(context.Context, string) error { return s.err }

func managerTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Storage.Backend = tokenstore.BackendMemory
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestManager(t *testing.T, cfg Config, store tokenstore.Store, client AuthAPI) *Manager {
	t.Helper()

	m, err := New().
		WithConfig(cfg).
		WithTokenStore(store).
		WithAPI(client).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newReadyManager(t *testing.T, store tokenstore.Store, client AuthAPI) *Manager {
	t.Helper()
	m := newTestManager(t, managerTestConfig(), store, client)
	m.Initialize(context.Background())
	return m
}

func signedIn(t *testing.T, store tokenstore.Store, token string) (*Manager, *fakeAPI) {
	t.Helper()
	fake := &fakeAPI{loginToken: token}
	m := newReadyManager(t, store, fake)
	if err := m.SignIn(context.Background(), "a@b.com", "correct-password"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	return m, fake
}

func TestManagerStartsLoading(t *testing.T) {
	m := newTestManager(t, managerTestConfig(), tokenstore.NewMemoryStore(), &fakeAPI{})

	snap := m.Snapshot()
	if snap.State != StateLoading || !snap.IsLoading || snap.IsAuthenticated || snap.Token != "" {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
	select {
	case <-m.Ready():
		t.Fatal("expected Ready to stay open before Initialize")
	default:
	}
}

func TestInitializeWithoutTokenIsUnauthenticated(t *testing.T) {
	m := newReadyManager(t, tokenstore.NewMemoryStore(), &fakeAPI{})

	if m.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", m.State())
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got := m.MetricsSnapshot().Counters[MetricInitEmpty]; got != 1 {
		t.Fatalf("expected MetricInitEmpty=1, got %d", got)
	}
}

func TestInitializeRestoresStoredToken(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	if err := store.Set(context.Background(), DefaultTokenKey, "stored-token"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	m := newReadyManager(t, store, &fakeAPI{})

	snap := m.Snapshot()
	if !snap.IsAuthenticated || snap.Token != "stored-token" {
		t.Fatalf("expected restored session, got %+v", snap)
	}
}

func TestInitializeStorageErrorTreatedAsNoSession(t *testing.T) {
	m := newReadyManager(t, failingStore{err: tokenstore.ErrUnavailable}, &fakeAPI{})

	if m.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", m.State())
	}
	if got := m.MetricsSnapshot().Counters[MetricStorageError]; got != 1 {
		t.Fatalf("expected one storage error, got %d", got)
	}
}

func TestInitializeRunsOnce(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	m := newReadyManager(t, store, &fakeAPI{})

	_ = store.Set(context.Background(), DefaultTokenKey, "late-token")
	m.Initialize(context.Background())

	if m.State() != StateUnauthenticated {
		t.Fatalf("expected second Initialize to be a no-op, got %s", m.State())
	}
}

func TestInitializeDiscardsExpiredJWT(t *testing.T) {
	expired, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	store := tokenstore.NewMemoryStore()
	_ = store.Set(context.Background(), DefaultTokenKey, expired)

	cfg := managerTestConfig()
	cfg.Session.DiscardExpiredTokens = true
	m := newTestManager(t, cfg, store, &fakeAPI{})
	m.Initialize(context.Background())

	if m.State() != StateUnauthenticated {
		t.Fatalf("expected expired token to be discarded, got %s", m.State())
	}
	if _, err := store.Get(context.Background(), DefaultTokenKey); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Fatalf("expected stored token removed, got %v", err)
	}
}

func TestInitializeKeepsOpaqueTokenWhenDiscardingExpired(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	_ = store.Set(context.Background(), DefaultTokenKey, "opaque-token")

	cfg := managerTestConfig()
	cfg.Session.DiscardExpiredTokens = true
	m := newTestManager(t, cfg, store, &fakeAPI{})
	m.Initialize(context.Background())

	if tok, _ := m.Token(); tok != "opaque-token" {
		t.Fatalf("expected opaque token kept, got %q", tok)
	}
}

func TestSignInPersistsTokenAcrossManagers(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	signedIn(t, store, "T1")

	fresh := newReadyManager(t, store, &fakeAPI{})
	snap := fresh.Snapshot()
	if snap.State != StateAuthenticated || snap.Token != "T1" {
		t.Fatalf("expected restored T1 session, got %+v", snap)
	}
}

func TestSignInFileStoreRoundTrip(t *testing.T) {
	store, err := tokenstore.NewFileStore(t.TempDir(), "test")
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	const token = "eyJhbGciOi.payload.sig-with-symbols_+/="
	signedIn(t, store, token)

	got, err := store.Get(context.Background(), DefaultTokenKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != token {
		t.Fatalf("expected %q, got %q", token, got)
	}
}

func TestSignInShortPasswordMakesNoAPICall(t *testing.T) {
	fake := &fakeAPI{loginToken: "T1"}
	m := newReadyManager(t, tokenstore.NewMemoryStore(), fake)

	err := m.SignIn(context.Background(), "a@b.com", "short")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindValidation || serr.Field != "password" {
		t.Fatalf("expected password validation error, got %#v", err)
	}
	if login, _, _, _ := fake.calls(); login != 0 {
		t.Fatalf("expected no Login call, got %d", login)
	}
	if m.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", m.State())
	}
}

func TestSignInInvalidEmailMakesNoAPICall(t *testing.T) {
	fake := &fakeAPI{loginToken: "T1"}
	m := newReadyManager(t, tokenstore.NewMemoryStore(), fake)

	for _, identifier := range []string{"", "   ", "not-an-email"} {
		if err := m.SignIn(context.Background(), identifier, "correct-password"); !errors.Is(err, ErrValidation) {
			t.Fatalf("identifier %q: expected ErrValidation, got %v", identifier, err)
		}
	}
	if login, _, _, _ := fake.calls(); login != 0 {
		t.Fatalf("expected no Login call, got %d", login)
	}
}

func TestSignInServerRejectionReturnsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"message":"Invalid credentials"}`))
	}))
	defer srv.Close()

	cfg := managerTestConfig()
	cfg.API.BaseURL = srv.URL
	m, err := New().WithConfig(cfg).WithTokenStore(tokenstore.NewMemoryStore()).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer m.Close()
	m.Initialize(context.Background())

	err = m.SignIn(context.Background(), "a@b.com", "wrong-password")
	if err == nil {
		t.Fatal("expected sign-in failure")
	}
	if err.Error() != "Invalid credentials" {
		t.Fatalf("expected server message, got %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidCredentials) || !errors.Is(err, api.ErrRejected) {
		t.Fatalf("expected ErrInvalidCredentials wrapping api.ErrRejected, got %v", err)
	}
	if snap := m.Snapshot(); snap.IsAuthenticated || snap.Token != "" {
		t.Fatalf("expected no session, got %+v", snap)
	}
	if got := m.MetricsSnapshot().Counters[MetricSignInFailure]; got != 1 {
		t.Fatalf("expected MetricSignInFailure=1, got %d", got)
	}
}

func TestSignInTransportFailureClassified(t *testing.T) {
	fake := &fakeAPI{loginErr: &api.Error{Message: "Unable to reach the server.", Err: api.ErrTransport}}
	m := newReadyManager(t, tokenstore.NewMemoryStore(), fake)

	err := m.SignIn(context.Background(), "a@b.com", "correct-password")
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindTransport || !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %#v", err)
	}
	if ErrorMessage(err) != "Unable to reach the server." {
		t.Fatalf("unexpected message %q", ErrorMessage(err))
	}
}

func TestSignInEmptyTokenIsFailure(t *testing.T) {
	m := newReadyManager(t, tokenstore.NewMemoryStore(), &fakeAPI{loginToken: ""})

	if err := m.SignIn(context.Background(), "a@b.com", "correct-password"); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport for missing token, got %v", err)
	}
	if m.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", m.State())
	}
}

func TestSignInPersistFailureKeepsSession(t *testing.T) {
	fake := &fakeAPI{loginToken: "T1"}
	store := &flakyStore{Store: tokenstore.NewMemoryStore(), setErr: tokenstore.ErrUnavailable}
	m := newReadyManager(t, store, fake)

	if err := m.SignIn(context.Background(), "a@b.com", "correct-password"); err != nil {
		t.Fatalf("expected persist failure to be swallowed, got %v", err)
	}
	if tok, ok := m.Token(); !ok || tok != "T1" {
		t.Fatalf("expected in-memory T1, got %q", tok)
	}
	if got := m.MetricsSnapshot().Counters[MetricStorageError]; got != 1 {
		t.Fatalf("expected storage error counted, got %d", got)
	}
}

type flakyStore struct {
	tokenstore.Store
	setErr    error
	removeErr error
}

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Store.Set(ctx, key, value)
}

func (s *flakyStore) Remove(ctx context.Context, key string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.Store.Remove(ctx, key)
}

func TestSignInGuards(t *testing.T) {
	fake := &fakeAPI{loginToken: "T1"}
	m := newTestManager(t, managerTestConfig(), tokenstore.NewMemoryStore(), fake)

	if err := m.SignIn(context.Background(), "a@b.com", "correct-password"); !errors.Is(err, ErrManagerNotReady) {
		t.Fatalf("expected ErrManagerNotReady while loading, got %v", err)
	}

	m.Initialize(context.Background())
	if err := m.SignIn(context.Background(), "a@b.com", "correct-password"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	err := m.SignIn(context.Background(), "a@b.com", "correct-password")
	if !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("expected ErrAlreadyAuthenticated, got %v", err)
	}
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindState {
		t.Fatalf("expected KindState, got %#v", err)
	}
	if login, _, _, _ := fake.calls(); login != 1 {
		t.Fatalf("expected exactly one Login call, got %d", login)
	}
}

func TestSignInRejectsOverlappingCalls(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeAPI{loginToken: "T1", loginGate: gate}
	m := newReadyManager(t, tokenstore.NewMemoryStore(), fake)

	first := make(chan error, 1)
	go func() {
		first <- m.SignIn(context.Background(), "a@b.com", "correct-password")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if login, _, _, _ := fake.calls(); login == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first SignIn never reached the API")
		}
		time.Sleep(time.Millisecond)
	}

	if err := m.SignIn(context.Background(), "a@b.com", "correct-password"); !errors.Is(err, ErrOperationInFlight) {
		t.Fatalf("expected ErrOperationInFlight, got %v", err)
	}

	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("first SignIn failed: %v", err)
	}
	if m.State() != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", m.State())
	}
}

func TestSignOutAlwaysUnauthenticated(t *testing.T) {
	t.Run("authenticated", func(t *testing.T) {
		store := tokenstore.NewMemoryStore()
		m, _ := signedIn(t, store, "T1")

		m.SignOut(context.Background())

		if snap := m.Snapshot(); snap.State != StateUnauthenticated || snap.Token != "" || snap.IsAuthenticated {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
		if _, err := store.Get(context.Background(), DefaultTokenKey); !errors.Is(err, tokenstore.ErrNotFound) {
			t.Fatalf("expected persisted token removed, got %v", err)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		m := newReadyManager(t, tokenstore.NewMemoryStore(), &fakeAPI{})
		m.SignOut(context.Background())
		m.SignOut(context.Background())
		if m.State() != StateUnauthenticated {
			t.Fatalf("expected unauthenticated, got %s", m.State())
		}
	})

	t.Run("loading", func(t *testing.T) {
		m := newTestManager(t, managerTestConfig(), tokenstore.NewMemoryStore(), &fakeAPI{})
		m.SignOut(context.Background())
		if m.State() != StateUnauthenticated {
			t.Fatalf("expected unauthenticated, got %s", m.State())
		}
		select {
		case <-m.Ready():
		default:
			t.Fatal("expected SignOut to resolve readiness")
		}

		// A late Initialize must not resurrect a session.
		m.Initialize(context.Background())
		if m.State() != StateUnauthenticated {
			t.Fatalf("expected unauthenticated after Initialize, got %s", m.State())
		}
	})

	t.Run("remove failure swallowed", func(t *testing.T) {
		store := &flakyStore{Store: tokenstore.NewMemoryStore()}
		m, _ := signedIn(t, store, "T1")
		store.removeErr = tokenstore.ErrUnavailable

		m.SignOut(context.Background())
		if snap := m.Snapshot(); snap.IsAuthenticated || snap.Token != "" {
			t.Fatalf("expected memory cleared despite store failure, got %+v", snap)
		}
	})
}

func TestOnAuthFailure(t *testing.T) {
	t.Run("authenticated signs out", func(t *testing.T) {
		store := tokenstore.NewMemoryStore()
		m, _ := signedIn(t, store, "T1")

		m.OnAuthFailure(context.Background(), &middleware.RejectedError{Token: "T1", Status: http.StatusUnauthorized})

		if snap := m.Snapshot(); snap.State != StateUnauthenticated || snap.Token != "" {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
		if _, err := store.Get(context.Background(), DefaultTokenKey); !errors.Is(err, tokenstore.ErrNotFound) {
			t.Fatalf("expected persisted token removed, got %v", err)
		}
		if got := m.MetricsSnapshot().Counters[MetricAuthFailure]; got != 1 {
			t.Fatalf("expected MetricAuthFailure=1, got %d", got)
		}
	})

	t.Run("unauthenticated is a no-op", func(t *testing.T) {
		m := newReadyManager(t, tokenstore.NewMemoryStore(), &fakeAPI{})
		var changes int
		m.Subscribe(func(Change) { changes++ })

		m.OnAuthFailure(context.Background(), nil)
		m.OnAuthFailure(context.Background(), nil)

		if m.State() != StateUnauthenticated || changes != 0 {
			t.Fatalf("expected no-op, state=%s changes=%d", m.State(), changes)
		}
		if got := m.MetricsSnapshot().Counters[MetricAuthFailure]; got != 0 {
			t.Fatalf("expected MetricAuthFailure=0, got %d", got)
		}
	})

	t.Run("stale token ignored", func(t *testing.T) {
		m, _ := signedIn(t, tokenstore.NewMemoryStore(), "T2")

		m.OnAuthFailure(context.Background(), &middleware.RejectedError{Token: "T1", Status: http.StatusUnauthorized})

		if tok, _ := m.Token(); tok != "T2" {
			t.Fatalf("expected T2 session kept, got %q", tok)
		}
	})
}

func TestBearerRejectionTriggersAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			_, _ = w.Write([]byte(`{"success":true,"data":{"token":"T1"}}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Token expired"}`))
		}
	}))
	defer srv.Close()

	cfg := managerTestConfig()
	cfg.API.BaseURL = srv.URL
	m, err := New().WithConfig(cfg).WithTokenStore(tokenstore.NewMemoryStore()).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer m.Close()
	m.Initialize(context.Background())

	if err := m.SignIn(context.Background(), "a@b.com", "correct-password"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	err = m.DeleteAccount(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if m.State() != StateUnauthenticated {
		t.Fatalf("expected the rejected token to end the session, got %s", m.State())
	}
}

func TestSignUpChains(t *testing.T) {
	req := SignUpRequest{Username: "alice", Email: "alice@example.com", Password: "correct-password", ConfirmPassword: "correct-password"}

	tests := []struct {
		name          string
		chain         SignUpChain
		registerToken string
		wantState     State
		wantToken     string
		wantLogins    int
	}{
		{name: "register token", chain: ChainRegisterToken, registerToken: "R1", wantState: StateAuthenticated, wantToken: "R1"},
		{name: "register token missing falls back to sign in", chain: ChainRegisterToken, wantState: StateAuthenticated, wantToken: "L1", wantLogins: 1},
		{name: "sign in", chain: ChainSignIn, registerToken: "R1", wantState: StateAuthenticated, wantToken: "L1", wantLogins: 1},
		{name: "none", chain: ChainNone, registerToken: "R1", wantState: StateUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := managerTestConfig()
			cfg.Session.SignUpChain = tt.chain
			fake := &fakeAPI{registerToken: tt.registerToken, loginToken: "L1"}
			m := newTestManager(t, cfg, tokenstore.NewMemoryStore(), fake)
			m.Initialize(context.Background())

			if err := m.SignUp(context.Background(), req); err != nil {
				t.Fatalf("SignUp failed: %v", err)
			}
			snap := m.Snapshot()
			if snap.State != tt.wantState || snap.Token != tt.wantToken {
				t.Fatalf("expected %s/%q, got %+v", tt.wantState, tt.wantToken, snap)
			}
			login, register, _, _ := fake.calls()
			if register != 1 || login != tt.wantLogins {
				t.Fatalf("expected register=1 login=%d, got register=%d login=%d", tt.wantLogins, register, login)
			}
			if fake.lastRegister.Username != "alice" || fake.lastRegister.Email != "alice@example.com" {
				t.Fatalf("unexpected register request %+v", fake.lastRegister)
			}
		})
	}
}

func TestSignUpValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   SignUpRequest
		field string
	}{
		{name: "short username", req: SignUpRequest{Username: "al", Email: "a@b.com", Password: "correct-password"}, field: "username"},
		{name: "bad username charset", req: SignUpRequest{Username: "al ice", Email: "a@b.com", Password: "correct-password"}, field: "username"},
		{name: "bad email", req: SignUpRequest{Username: "alice", Email: "nope", Password: "correct-password"}, field: "email"},
		{name: "short password", req: SignUpRequest{Username: "alice", Email: "a@b.com", Password: "short"}, field: "password"},
		{name: "confirm mismatch", req: SignUpRequest{Username: "alice", Email: "a@b.com", Password: "correct-password", ConfirmPassword: "other-password"}, field: "confirm_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAPI{registerToken: "R1"}
			m := newReadyManager(t, tokenstore.NewMemoryStore(), fake)

			err := m.SignUp(context.Background(), tt.req)
			var serr *Error
			if !errors.As(err, &serr) || serr.Kind != KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if serr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, serr.Field)
			}
			if _, register, _, _ := fake.calls(); register != 0 {
				t.Fatalf("expected no Register call, got %d", register)
			}
		})
	}
}

func TestSignUpEmailTakenPreflight(t *testing.T) {
	cfg := managerTestConfig()
	cfg.Session.CheckEmailBeforeSignUp = true
	fake := &fakeAPI{exists: true, registerToken: "R1"}
	m := newTestManager(t, cfg, tokenstore.NewMemoryStore(), fake)
	m.Initialize(context.Background())

	err := m.SignUp(context.Background(), SignUpRequest{Username: "alice", Email: "a@b.com", Password: "correct-password"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, register, check, _ := fake.calls(); check != 1 || register != 0 {
		t.Fatalf("expected check=1 register=0, got check=%d register=%d", check, register)
	}
}

func TestSignUpRejectedByServer(t *testing.T) {
	fake := &fakeAPI{registerErr: &api.Error{Status: http.StatusConflict, Message: "Username already taken", Err: api.ErrRejected}}
	m := newReadyManager(t, tokenstore.NewMemoryStore(), fake)

	err := m.SignUp(context.Background(), SignUpRequest{Username: "alice", Email: "a@b.com", Password: "correct-password"})
	if !errors.Is(err, ErrRegistrationRejected) {
		t.Fatalf("expected ErrRegistrationRejected, got %v", err)
	}
	if err.Error() != "Username already taken" {
		t.Fatalf("expected server message, got %q", err.Error())
	}
	if m.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", m.State())
	}
}

func TestCheckEmail(t *testing.T) {
	fake := &fakeAPI{exists: true}
	m := newReadyManager(t, tokenstore.NewMemoryStore(), fake)

	exists, err := m.CheckEmail(context.Background(), " a@b.com ")
	if err != nil || !exists {
		t.Fatalf("expected exists, got %v %v", exists, err)
	}
	if _, err := m.CheckEmail(context.Background(), "invalid"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, _, check, _ := fake.calls(); check != 1 {
		t.Fatalf("expected one CheckEmail call, got %d", check)
	}
}

func TestDeleteAccount(t *testing.T) {
	t.Run("requires session", func(t *testing.T) {
		fake := &fakeAPI{}
		m := newReadyManager(t, tokenstore.NewMemoryStore(), fake)
		if err := m.DeleteAccount(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
		if _, _, _, del := fake.calls(); del != 0 {
			t.Fatalf("expected no DeleteMe call, got %d", del)
		}
	})

	t.Run("signs out on success", func(t *testing.T) {
		m, fake := signedIn(t, tokenstore.NewMemoryStore(), "T1")
		var last Change
		m.Subscribe(func(c Change) { last = c })

		if err := m.DeleteAccount(context.Background()); err != nil {
			t.Fatalf("DeleteAccount failed: %v", err)
		}
		if m.State() != StateUnauthenticated || last.Reason != ReasonAccountDeleted {
			t.Fatalf("expected account_deleted sign-out, state=%s change=%+v", m.State(), last)
		}
		if _, _, _, del := fake.calls(); del != 1 {
			t.Fatalf("expected one DeleteMe call, got %d", del)
		}
	})

	t.Run("failure keeps session", func(t *testing.T) {
		m, fake := signedIn(t, tokenstore.NewMemoryStore(), "T1")
		fake.mu.Lock()
		fake.deleteErr = &api.Error{Status: http.StatusInternalServerError, Message: "Internal Server Error", Err: api.ErrTransport}
		fake.mu.Unlock()

		if err := m.DeleteAccount(context.Background()); !errors.Is(err, ErrTransport) {
			t.Fatalf("expected ErrTransport, got %v", err)
		}
		if m.State() != StateAuthenticated {
			t.Fatalf("expected session kept, got %s", m.State())
		}
	})
}

func TestSubscribeReceivesTransitionsInOrder(t *testing.T) {
	fake := &fakeAPI{loginToken: "T1"}
	m := newTestManager(t, managerTestConfig(), tokenstore.NewMemoryStore(), fake)

	var (
		mu      sync.Mutex
		changes []Change
	)
	unsubscribe := m.Subscribe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
		// Callbacks run outside the session lock.
		_ = m.Snapshot()
	})

	m.Initialize(context.Background())
	if err := m.SignIn(context.Background(), "a@b.com", "correct-password"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	m.SignOut(context.Background())
	unsubscribe()
	unsubscribe()
	if err := m.SignIn(context.Background(), "a@b.com", "correct-password"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Change{
		{From: StateLoading, To: StateUnauthenticated, Reason: ReasonInitialized},
		{From: StateUnauthenticated, To: StateAuthenticated, Reason: ReasonSignIn, TokenChanged: true},
		{From: StateAuthenticated, To: StateUnauthenticated, Reason: ReasonSignOut, TokenChanged: true},
	}
	if len(changes) != len(want) {
		t.Fatalf("expected %d changes, got %d: %+v", len(want), len(changes), changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Fatalf("change %d: expected %+v, got %+v", i, want[i], changes[i])
		}
	}
}

func TestWaitHonorsContext(t *testing.T) {
	m := newTestManager(t, managerTestConfig(), tokenstore.NewMemoryStore(), &fakeAPI{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestManagerConcurrentReadsDuringTransitions(t *testing.T) {
	m := newReadyManager(t, tokenstore.NewMemoryStore(), &fakeAPI{loginToken: "T1"})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := m.Snapshot()
				if snap.IsAuthenticated && snap.Token == "" {
					t.Error("authenticated snapshot without token")
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		_ = m.SignIn(context.Background(), "a@b.com", "correct-password")
		m.SignOut(context.Background())
	}
	close(stop)
	wg.Wait()
}
