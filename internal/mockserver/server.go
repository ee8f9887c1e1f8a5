package mockserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/MrEthical07/goSession/internal/password"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/validate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/middleware"
)

// Config parameterizes a [Server]. Zero values select development defaults.
type Config struct {
	Secret   []byte
	TokenTTL time.Duration
	Issuer   string
	Password password.Config
	Limits   validate.Limits
	Users    UserStore
	Logger   *slog.Logger
	// Throttle, when set, limits failed logins per account and answers 429
	// once the budget is spent.
	Throttle *rate.Limiter
	// OmitRegisterToken makes POST /register answer without a token, like backends
	// that require a separate sign-in.
	OmitRegisterToken bool
}

// Server implements the authentication endpoints.
type Server struct {
	users  UserStore
	tokens *jwt.Manager
	hasher *password.Hasher
	limits validate.Limits
	logger *slog.Logger
	router *mux.Router

	throttle          *rate.Limiter
	omitRegisterToken bool
}

// New validates cfg and wires the routes.
func New(cfg Config) (*Server, error) {
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte("algolearn-mock-secret")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "algolearn-mock"
	}
	if cfg.Password == (password.Config{}) {
		cfg.Password = password.DefaultConfig()
	}
	if cfg.Limits == (validate.Limits{}) {
		cfg.Limits = validate.Limits{MinPasswordLength: 8, MaxPasswordLength: 128, MinUsernameLength: 3, MaxUsernameLength: 32}
	}
	if cfg.Users == nil {
		cfg.Users = NewMemoryUsers()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	tokens, err := jwt.NewManager(jwt.Config{Secret: cfg.Secret, TTL: cfg.TokenTTL, Issuer: cfg.Issuer})
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	s := &Server{
		users:             cfg.Users,
		tokens:            tokens,
		hasher:            hasher,
		limits:            cfg.Limits,
		logger:            cfg.Logger,
		throttle:          cfg.Throttle,
		omitRegisterToken: cfg.OmitRegisterToken,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "OK"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/checkemail", s.handleCheckEmail).Methods(http.MethodGet)

	guard := middleware.Guard(s.verify, writeError)
	r.Handle("/users/me", guard(http.HandlerFunc(s.handleMe))).Methods(http.MethodGet)
	r.Handle("/users/me", guard(http.HandlerFunc(s.handleDeleteMe))).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// verify maps a bearer token to the user ID it was issued for. Tokens of deleted
// accounts are refused.
func (s *Server) verify(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	id, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return "", err
	}
	if _, err := s.users.ByID(ctx, id); err != nil {
		return "", err
	}
	return claims.UserID, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", r.Header.Get(middleware.RequestIDHeader),
			"duration", time.Since(start),
		)
	})
}

func userID(r *http.Request) (int64, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(identity.UserID, 10, 64)
	return id, err == nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
