package goSession

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/internal/validate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/tokenstore"
)

// Manager defines a public type used by goSession APIs.
//
// Manager is the single owner of the session token. It is safe for concurrent use; only
// one of SignIn, SignUp and DeleteAccount may run at a time.
type Manager struct {
	config  Config
	store   tokenstore.Store
	api     AuthAPI
	logger  *slog.Logger
	events  *eventDispatcher
	metrics *Metrics
	now     func() time.Time
	closers []func() error

	mu    sync.Mutex
	state State
	token string

	initOnce  sync.Once
	ready     chan struct{}
	readyOnce sync.Once

	inFlight atomic.Bool

	subMu   sync.Mutex
	subs    []subscriber
	nextSub uint64
}

type subscriber struct {
	id uint64
	fn func(Change)
}

/*
====================================
LIFECYCLE
====================================
*/

// Initialize reads the persisted token and resolves the Loading state. It runs once;
// later calls return immediately. A storage failure is logged and treated as no session.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		m.initialize(ctx)
	})
}

func (m *Manager) initialize(ctx context.Context) {
	key := m.config.Storage.TokenKey

	token, err := m.store.Get(ctx, key)
	if err != nil {
		token = ""
		if !errors.Is(err, tokenstore.ErrNotFound) {
			m.storageFailure(ctx, "get", err)
		}
	}

	if token != "" && m.config.Session.DiscardExpiredTokens {
		if claims, err := jwt.Inspect(token); err == nil && claims.Expired(m.now(), 0) {
			m.logger.Info("discarding expired stored session token", "key", key)
			m.metrics.Inc(MetricInitDiscardedExpired)
			if err := m.store.Remove(ctx, key); err != nil {
				m.storageFailure(ctx, "remove", err)
			}
			token = ""
		}
	}

	m.mu.Lock()
	if m.state != StateLoading {
		// SignOut already resolved the session while the store was being read.
		m.mu.Unlock()
		return
	}
	if token != "" {
		m.state = StateAuthenticated
		m.token = token
	} else {
		m.state = StateUnauthenticated
	}
	to := m.state
	m.mu.Unlock()

	m.markReady()

	if to == StateAuthenticated {
		m.metrics.Inc(MetricInitRestored)
	} else {
		m.metrics.Inc(MetricInitEmpty)
	}
	m.publish(Change{From: StateLoading, To: to, Reason: ReasonInitialized, TokenChanged: to == StateAuthenticated})
	m.emit(ctx, Event{EventType: EventInitialized, From: StateLoading.String(), To: to.String(), Success: true})
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() {
		close(m.ready)
	})
}

// Ready is closed once the session state is defined. UI must not render
// authenticated-only or unauthenticated-only views before then.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Wait blocks until [Manager.Ready] is closed or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the event dispatcher and releases stores opened by the Builder.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.events.Close()

	var errs []error
	for _, closeFn := range m.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

/*
====================================
READ ACCESS
====================================
*/

// Token returns the in-memory token. It satisfies middleware.TokenSource.
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != ""
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns the consumer view of the session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:           m.state,
		Token:           m.token,
		IsAuthenticated: m.state == StateAuthenticated,
		IsLoading:       m.state == StateLoading,
	}
}

// Subscribe registers fn for every state transition and returns a function that
// removes it. fn runs synchronously on the goroutine that caused the change, after the
// session lock is released; it may call back into the Manager.
func (m *Manager) Subscribe(fn func(Change)) func() {
	if fn == nil {
		return func() {}
	}

	m.subMu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *Manager) publish(c Change) {
	m.subMu.Lock()
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.subMu.Unlock()

	for _, s := range subs {
		s.fn(c)
	}
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

// EventsDropped returns the number of events lost to dispatcher backpressure.
func (m *Manager) EventsDropped() uint64 {
	if m == nil || m.events == nil {
		return 0
	}
	return m.events.Dropped()
}

/*
====================================
SIGN IN / SIGN UP
====================================
*/

// SignIn validates the credentials locally, then exchanges them for a token. Failures
// leave the session unauthenticated and come back as *Error with a display message.
func (m *Manager) SignIn(ctx context.Context, identifier, secret string) error {
	if err := m.begin(StateUnauthenticated); err != nil {
		return err
	}
	defer m.end()

	identifier = strings.TrimSpace(identifier)
	if verr := validate.SignIn(identifier, secret, m.limits()); verr != nil {
		m.metrics.Inc(MetricSignInValidationRejected)
		return validationError(verr)
	}

	token, err := m.login(ctx, identifier, secret)
	if err != nil {
		m.metrics.Inc(MetricSignInFailure)
		serr := classify(err, ErrInvalidCredentials)
		m.emit(ctx, Event{EventType: EventSignIn, Success: false, Error: serr.Message})
		return serr
	}

	m.metrics.Inc(MetricSignInSuccess)
	m.establish(ctx, token, ReasonSignIn, EventSignIn)
	return nil
}

func (m *Manager) login(ctx context.Context, email, password string) (string, error) {
	start := m.now()
	token, err := m.api.Login(ctx, email, password)
	m.metrics.Observe(MetricSignInLatency, m.now().Sub(start))
	if err == nil && token == "" {
		err = errMissingToken
	}
	return token, err
}

var errMissingToken = newError(KindTransport, ErrTransport, "Server response did not include a session token", nil)

// SignUp validates the registration locally, registers the account, and then turns the
// registration into a session according to Session.SignUpChain.
func (m *Manager) SignUp(ctx context.Context, req SignUpRequest) error {
	if err := m.begin(StateUnauthenticated); err != nil {
		return err
	}
	defer m.end()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if verr := validate.SignUp(req.Username, req.Email, req.Password, req.ConfirmPassword, m.limits()); verr != nil {
		m.metrics.Inc(MetricSignUpValidationRejected)
		return validationError(verr)
	}

	fail := func(serr *Error) error {
		m.metrics.Inc(MetricSignUpFailure)
		m.emit(ctx, Event{EventType: EventSignUp, Success: false, Error: serr.Message})
		return serr
	}

	if m.config.Session.CheckEmailBeforeSignUp {
		exists, err := m.api.CheckEmail(ctx, req.Email)
		if err != nil {
			return fail(classify(err, ErrRegistrationRejected))
		}
		if exists {
			serr := newError(KindAuthentication, ErrEmailTaken, "An account with this email already exists", nil)
			serr.Field = "email"
			return fail(serr)
		}
	}

	token, err := m.api.Register(ctx, api.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return fail(classify(err, ErrRegistrationRejected))
	}
	m.metrics.Inc(MetricSignUpSuccess)

	chain := m.config.Session.SignUpChain
	if chain == ChainRegisterToken && token == "" {
		chain = ChainSignIn
	}

	switch chain {
	case ChainNone:
		m.emit(ctx, Event{EventType: EventSignUp, Success: true, Metadata: map[string]string{"chain": chain.String()}})
		return nil

	case ChainSignIn:
		token, err = m.login(ctx, req.Email, req.Password)
		if err != nil {
			m.metrics.Inc(MetricSignInFailure)
			serr := classify(err, ErrInvalidCredentials)
			m.emit(ctx, Event{EventType: EventSignUp, Success: false, Error: serr.Message, Metadata: map[string]string{"chain": chain.String()}})
			return serr
		}
		m.metrics.Inc(MetricSignInSuccess)
	}

	m.establish(ctx, token, ReasonSignUp, EventSignUp)
	return nil
}

// CheckEmail reports whether an account already exists for email.
func (m *Manager) CheckEmail(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if verr := validate.Email(email); verr != nil {
		return false, validationError(verr)
	}
	exists, err := m.api.CheckEmail(ctx, email)
	if err != nil {
		return false, classify(err, ErrTransport)
	}
	return exists, nil
}

// begin applies the state and in-flight guards for a mutating network operation.
// The state is checked again after the flag is taken since a concurrent SignOut may
// have run in between.
func (m *Manager) begin(want State) error {
	if err := m.checkState(want); err != nil {
		m.metrics.Inc(MetricOperationRejected)
		return err
	}
	if !m.inFlight.CompareAndSwap(false, true) {
		m.metrics.Inc(MetricOperationRejected)
		return stateError(ErrOperationInFlight)
	}
	if err := m.checkState(want); err != nil {
		m.inFlight.Store(false)
		m.metrics.Inc(MetricOperationRejected)
		return err
	}
	return nil
}

func (m *Manager) checkState(want State) error {
	state := m.State()
	if state == want {
		return nil
	}
	switch state {
	case StateLoading:
		return stateError(ErrManagerNotReady)
	case StateAuthenticated:
		return stateError(ErrAlreadyAuthenticated)
	}
	return stateError(ErrNotAuthenticated)
}

func (m *Manager) end() {
	m.inFlight.Store(false)
}

// establish makes token the active session, then persists it. A persistence failure
// leaves the in-memory session in place and is only logged.
func (m *Manager) establish(ctx context.Context, token string, reason Reason, eventType string) {
	m.mu.Lock()
	from := m.state
	m.state = StateAuthenticated
	m.token = token
	m.mu.Unlock()

	if err := m.store.Set(ctx, m.config.Storage.TokenKey, token); err != nil {
		m.storageFailure(ctx, "set", err)
	}

	m.publish(Change{From: from, To: StateAuthenticated, Reason: reason, TokenChanged: true})
	m.emit(ctx, Event{EventType: eventType, From: from.String(), To: StateAuthenticated.String(), Success: true})
}

/*
====================================
SIGN OUT / AUTH FAILURE
====================================
*/

// SignOut clears the persisted and in-memory token from any state. It never fails;
// storage errors are logged and swallowed.
func (m *Manager) SignOut(ctx context.Context) {
	m.metrics.Inc(MetricSignOut)
	m.endSession(ctx, ReasonSignOut, EventSignOut, "")
}

// OnAuthFailure is the recovery path for a token the backend refused. It behaves like
// SignOut while authenticated and is a no-op otherwise. When err identifies the refused
// token and that token has since been replaced, the call is ignored. It performs no
// network I/O and therefore cannot loop.
func (m *Manager) OnAuthFailure(ctx context.Context, err error) {
	var rejected *middleware.RejectedError
	refused := ""
	if errors.As(err, &rejected) {
		refused = rejected.Token
	}

	m.mu.Lock()
	stale := m.state != StateAuthenticated || (refused != "" && refused != m.token)
	m.mu.Unlock()
	if stale {
		return
	}

	m.logger.Warn("session token rejected by backend; signing out", "error", err)
	m.metrics.Inc(MetricAuthFailure)
	m.endSession(ctx, ReasonAuthFailure, EventAuthFailure, refused)
}

// endSession resets to Unauthenticated. When onlyToken is set the reset happens only if
// that token is still the active one.
func (m *Manager) endSession(ctx context.Context, reason Reason, eventType, onlyToken string) {
	m.mu.Lock()
	if onlyToken != "" && onlyToken != m.token {
		m.mu.Unlock()
		return
	}
	from := m.state
	hadToken := m.token != ""
	m.state = StateUnauthenticated
	m.token = ""
	m.mu.Unlock()

	m.markReady()

	if err := m.store.Remove(ctx, m.config.Storage.TokenKey); err != nil {
		m.storageFailure(ctx, "remove", err)
	}

	if from != StateUnauthenticated {
		m.publish(Change{From: from, To: StateUnauthenticated, Reason: reason, TokenChanged: hadToken})
	}
	m.emit(ctx, Event{EventType: eventType, From: from.String(), To: StateUnauthenticated.String(), Success: true})
}

/*
====================================
ACCOUNT
====================================
*/

// DeleteAccount deletes the signed-in account and then signs out.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	if err := m.begin(StateAuthenticated); err != nil {
		return err
	}
	defer m.end()

	if err := m.api.DeleteMe(ctx); err != nil {
		serr := classify(err, ErrTransport)
		m.emit(ctx, Event{EventType: EventAccountDeleted, Success: false, Error: serr.Message})
		return serr
	}

	m.metrics.Inc(MetricAccountDeleted)
	m.endSession(ctx, ReasonAccountDeleted, EventAccountDeleted, "")
	return nil
}

/*
====================================
HELPERS
====================================
*/

func (m *Manager) limits() validate.Limits {
	return validate.Limits{
		MinPasswordLength: m.config.Validation.MinPasswordLength,
		MaxPasswordLength: m.config.Validation.MaxPasswordLength,
		MinUsernameLength: m.config.Validation.MinUsernameLength,
		MaxUsernameLength: m.config.Validation.MaxUsernameLength,
	}
}

func (m *Manager) storageFailure(ctx context.Context, op string, err error) {
	m.metrics.Inc(MetricStorageError)
	m.logger.Warn("token store operation failed", "op", op, "key", m.config.Storage.TokenKey, "error", err)
	m.emit(ctx, Event{EventType: EventStorageError, Success: false, Error: err.Error(), Metadata: map[string]string{"op": op}})
}

func (m *Manager) emit(ctx context.Context, e Event) {
	if m.events == nil {
		return
	}
	e.Timestamp = m.now()
	m.events.Emit(ctx, e)
}

func validationError(verr *validate.Error) *Error {
	serr := newError(KindValidation, ErrValidation, verr.Message, nil)
	serr.Field = verr.Field
	return serr
}

// classify maps a backend error onto the session taxonomy. rejected is the sentinel
// used when the backend answered and refused.
func classify(err error, rejected error) *Error {
	var serr *Error
	if errors.As(err, &serr) {
		return serr
	}

	message := err.Error()
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(KindTransport, ErrTransport, "The request was cancelled or timed out.", err)
	case errors.Is(err, api.ErrUnauthorized):
		return newError(KindAuthentication, ErrUnauthorized, message, err)
	case errors.Is(err, api.ErrRejected):
		return newError(KindAuthentication, rejected, message, err)
	case errors.Is(err, api.ErrTransport):
		return newError(KindTransport, ErrTransport, message, err)
	}
	return newError(KindTransport, ErrTransport, message, err)
}
