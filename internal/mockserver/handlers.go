package mockserver

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/validate"
)

const maxBodyBytes = 64 << 10

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type tokenData struct {
	Token string    `json:"token"`
	User  *api.User `json:"user,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) issue(u api.User) (string, error) {
	return s.tokens.Issue(strconv.FormatInt(u.ID, 10), u.Username, u.Role)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ip := clientIP(r)
	if s.throttle != nil {
		switch err := s.throttle.Check(r.Context(), req.Email, ip); {
		case errors.Is(err, rate.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "Too many login attempts. Try again later.")
			return
		case err != nil:
			s.logger.Warn("login throttle check failed", "error", err)
		}
	}

	account, err := s.users.ByEmail(r.Context(), req.Email)
	if err != nil {
		if !isNotFound(err) {
			s.logger.Error("user lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		s.loginFailed(r, req.Email, ip)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	ok, err := s.hasher.Verify(req.Password, account.PasswordHash)
	if err != nil || !ok {
		s.loginFailed(r, req.Email, ip)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if s.throttle != nil {
		if err := s.throttle.Reset(r.Context(), req.Email); err != nil {
			s.logger.Warn("login throttle reset failed", "error", err)
		}
	}

	if need, err := s.hasher.NeedsRehash(account.PasswordHash); err == nil && need {
		if hash, err := s.hasher.Hash(req.Password); err == nil {
			if err := s.users.UpdatePasswordHash(r.Context(), account.User.ID, hash); err != nil {
				s.logger.Warn("password rehash failed", "user_id", account.User.ID, "error", err)
			}
		}
	}

	token, err := s.issue(account.User)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Login successful", Data: tokenData{Token: token}})
}

func (s *Server) loginFailed(r *http.Request, email, ip string) {
	if s.throttle == nil {
		return
	}
	err := s.throttle.Fail(r.Context(), email, ip)
	switch {
	case errors.Is(err, rate.ErrRateLimited):
		s.logger.Info("login budget exhausted", "ip", ip)
	case err != nil:
		s.logger.Warn("login throttle update failed", "error", err)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if verr := validate.SignUp(req.Username, req.Email, req.Password, "", s.limits); verr != nil {
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error("password hash failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	account := &Account{
		User: api.User{
			Username:  req.Username,
			Email:     req.Email,
			Role:      "student",
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		},
		PasswordHash: hash,
	}
	switch err := s.users.Create(r.Context(), account); {
	case errors.Is(err, ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email already registered")
		return
	case errors.Is(err, ErrUsernameTaken):
		writeError(w, http.StatusConflict, "Username already taken")
		return
	case err != nil:
		s.logger.Error("user create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if s.omitRegisterToken {
		writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "User registered"})
		return
	}
	token, err := s.issue(account.User)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	user := account.User
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "User registered", Data: tokenData{Token: token, User: &user}})
}

func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	_, err := s.users.ByEmail(r.Context(), email)
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "Email not registered")
	case err != nil:
		s.logger.Error("user lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Email registered", Data: map[string]bool{"exists": true}})
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	account, err := s.users.ByID(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: account.User})
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Account deleted"})
}
