package goSession

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/goSession/api"
)

// State is the position of a [Manager] in the session lifecycle.
type State uint8

const (
	// StateLoading is the initial state until Initialize has read the store.
	StateLoading State = iota
	// StateUnauthenticated means no token is held.
	StateUnauthenticated
	// StateAuthenticated means a token is held in memory.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Snapshot is the read-only view handed to UI consumers.
// IsAuthenticated implies Token != "".
type Snapshot struct {
	State           State
	Token           string
	IsAuthenticated bool
	IsLoading       bool
}

// Reason names what caused a [Change].
type Reason string

const (
	ReasonInitialized    Reason = "initialized"
	ReasonSignIn         Reason = "sign_in"
	ReasonSignUp         Reason = "sign_up"
	ReasonSignOut        Reason = "sign_out"
	ReasonAuthFailure    Reason = "auth_failure"
	ReasonAccountDeleted Reason = "account_deleted"
)

// Change is delivered to subscribers after every state transition.
// TokenChanged is true whenever caches keyed by the token must be dropped.
type Change struct {
	From         State
	To           State
	Reason       Reason
	TokenChanged bool
}

// SignUpRequest carries registration input. ConfirmPassword is checked only when set.
type SignUpRequest struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// SignUpChain selects how a successful registration turns into a session.
type SignUpChain uint8

const (
	// ChainRegisterToken adopts the token returned by the register call. When the backend
	// sends none, the Manager falls back to a sign-in with the same credentials.
	ChainRegisterToken SignUpChain = iota
	// ChainSignIn ignores the register token and signs in with the same credentials.
	ChainSignIn
	// ChainNone leaves the session unauthenticated; the caller signs in explicitly.
	ChainNone
)

func (c SignUpChain) String() string {
	switch c {
	case ChainRegisterToken:
		return "register-token"
	case ChainSignIn:
		return "sign-in"
	case ChainNone:
		return "none"
	}
	return fmt.Sprintf("chain(%d)", uint8(c))
}

// UnmarshalText lets the chain be set from configuration text.
func (c *SignUpChain) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "register-token", "register_token", "":
		*c = ChainRegisterToken
	case "sign-in", "sign_in", "signin":
		*c = ChainSignIn
	case "none":
		*c = ChainNone
	default:
		return fmt.Errorf("unknown sign-up chain %q", string(text))
	}
	return nil
}

// AuthAPI is the backend surface the Manager needs. *api.Client implements it.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, req api.RegisterRequest) (string, error)
	CheckEmail(ctx context.Context, email string) (bool, error)
	DeleteMe(ctx context.Context) error
}
