package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrNoToken is returned when a bearer request is made without a session token.
var ErrNoToken = errors.New("no session token")

// ErrBearerRejected is passed to the auth-failure hook when the server rejects the token.
var ErrBearerRejected = errors.New("bearer token rejected")

// RejectedError reports which token the server refused, so a late answer for a
// replaced token can be told apart from a failure of the current one.
type RejectedError struct {
	Token  string
	Status int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrBearerRejected, e.Status)
}

func (e *RejectedError) Unwrap() error {
	return ErrBearerRejected
}

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// TokenSource exposes the current session token without granting write access.
type TokenSource interface {
	Token() (string, bool)
}

// AuthFailureFunc is invoked once per rejected bearer request.
type AuthFailureFunc func(ctx context.Context, err error)

type bearerContextKey struct{}

// WithBearer marks requests built from ctx as requiring the session token.
func WithBearer(ctx context.Context) context.Context {
	return context.WithValue(ctx, bearerContextKey{}, true)
}

func bearerRequested(ctx context.Context) bool {
	v, _ := ctx.Value(bearerContextKey{}).(bool)
	return v
}

// BearerTransport adds "Authorization: Bearer <token>" to marked requests.
type BearerTransport struct {
	Base      http.RoundTripper
	Source    TokenSource
	OnFailure AuthFailureFunc
}

func (t *BearerTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !bearerRequested(req.Context()) {
		return t.base().RoundTrip(req)
	}
	token, ok := "", false
	if t.Source != nil {
		token, ok = t.Source.Token()
	}
	if !ok || token == "" {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, ErrNoToken
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.base().RoundTrip(authed)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if t.OnFailure != nil {
			t.OnFailure(req.Context(), &RejectedError{Token: token, Status: resp.StatusCode})
		}
	}
	return resp, nil
}

// RequestIDTransport sets X-Request-ID when the caller did not provide one.
type RequestIDTransport struct {
	Base http.RoundTripper
}

func (t *RequestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Header.Get(RequestIDHeader) != "" {
		return base.RoundTrip(req)
	}

	stamped := req.Clone(req.Context())
	stamped.Header.Set(RequestIDHeader, uuid.NewString())
	return base.RoundTrip(stamped)
}
