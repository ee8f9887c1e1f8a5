package mockserver

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/MrEthical07/goSession/api"
)

var (
	// ErrUserNotFound is returned when no account matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by Create when the e-mail is registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned by Create when the username is registered.
	ErrUsernameTaken = errors.New("username already taken")
)

// Account is a stored user with its password hash.
type Account struct {
	User         api.User `json:"user"`
	PasswordHash string   `json:"password_hash"`
}

// UserStore persists accounts. E-mail and username lookups are case-insensitive.
type UserStore interface {
	// Create assigns Account.User.ID and stores the account.
	Create(ctx context.Context, account *Account) error
	ByEmail(ctx context.Context, email string) (Account, error)
	ByID(ctx context.Context, id int64) (Account, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MemoryUsers is a UserStore held in process memory.
type MemoryUsers struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]Account
	byEmail    map[string]int64
	byUsername map[string]int64
}

// NewMemoryUsers returns an empty store.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		byID:       make(map[int64]Account),
		byEmail:    make(map[string]int64),
		byUsername: make(map[string]int64),
	}
}

func (s *MemoryUsers) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, username := normalize(account.User.Email), normalize(account.User.Username)
	if _, ok := s.byEmail[email]; ok {
		return ErrEmailTaken
	}
	if _, ok := s.byUsername[username]; ok {
		return ErrUsernameTaken
	}

	s.nextID++
	account.User.ID = s.nextID
	s.byID[account.User.ID] = *account
	s.byEmail[email] = account.User.ID
	s.byUsername[username] = account.User.ID
	return nil
}

func (s *MemoryUsers) ByEmail(_ context.Context, email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalize(email)]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryUsers) ByID(_ context.Context, id int64) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return a, nil
}

func (s *MemoryUsers) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	a.PasswordHash = hash
	s.byID[id] = a
	return nil
}

func (s *MemoryUsers) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, normalize(a.User.Email))
	delete(s.byUsername, normalize(a.User.Username))
	return nil
}
