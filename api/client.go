package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/middleware"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseSize = 1 << 20
)

// Config parameterizes a [Client].
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Transport is the innermost round tripper; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

type binding struct {
	source    middleware.TokenSource
	onFailure middleware.AuthFailureFunc
}

// Client calls the authentication endpoints. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	bound     atomic.Pointer[binding]
}

// New validates cfg and builds a client. Bearer calls fail with ErrUnauthorized until
// [Client.Bind] supplies a token source.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("api base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base URL must be http or https, got %q", base.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{baseURL: base, userAgent: cfg.UserAgent}

	bearer := &middleware.BearerTransport{
		Base:      cfg.Transport,
		Source:    tokenSourceFunc(c.token),
		OnFailure: c.authFailure,
	}
	c.http = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &middleware.RequestIDTransport{Base: bearer},
	}
	return c, nil
}

// Bind connects the client to the session that owns the token.
func (c *Client) Bind(source middleware.TokenSource, onFailure middleware.AuthFailureFunc) {
	c.bound.Store(&binding{source: source, onFailure: onFailure})
}

type tokenSourceFunc func() (string, bool)

func (f tokenSourceFunc) Token() (string, bool) { return f() }

func (c *Client) token() (string, bool) {
	b := c.bound.Load()
	if b == nil || b.source == nil {
		return "", false
	}
	return b.source.Token()
}

func (c *Client) authFailure(ctx context.Context, err error) {
	b := c.bound.Load()
	if b == nil || b.onFailure == nil {
		return
	}
	b.onFailure(ctx, err)
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/login", nil, LoginRequest{Email: email, Password: password}, false)
	if err != nil {
		return "", err
	}
	return decodeToken(env)
}

// Register creates an account and returns the session token the backend issues for it.
// A successful registration without a token returns "" and no error.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/register", nil, req, false)
	if err != nil {
		return "", err
	}
	var body tokenBody
	if raw := env.Body(); !isEmptyJSON(raw) {
		_ = json.Unmarshal(raw, &body)
	}
	return body.value(), nil
}

// CheckEmail reports whether an account exists for email.
func (c *Client) CheckEmail(ctx context.Context, email string) (bool, error) {
	env, err := c.do(ctx, http.MethodGet, "/checkemail", url.Values{"email": {email}}, nil, false)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && errors.Is(err, ErrRejected) {
			if apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusOK {
				return false, nil
			}
		}
		return false, err
	}

	var body existsBody
	if raw := env.Body(); !isEmptyJSON(raw) {
		if err := json.Unmarshal(raw, &body); err != nil {
			return false, newError(ErrTransport, http.StatusOK, "Unexpected response from the server")
		}
	}
	if body.Exists != nil {
		return *body.Exists, nil
	}
	return true, nil
}

// Me fetches the profile of the token's owner.
func (c *Client) Me(ctx context.Context) (*User, error) {
	env, err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, true)
	if err != nil {
		return nil, err
	}

	var u User
	if err := json.Unmarshal(env.Body(), &u); err != nil {
		return nil, newError(ErrTransport, http.StatusOK, "Unexpected response from the server")
	}
	return &u, nil
}

// DeleteMe deletes the token owner's account.
func (c *Client) DeleteMe(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/users/me", nil, nil, true)
	return err
}

func decodeToken(env Envelope) (string, error) {
	var body tokenBody
	raw := env.Body()
	if isEmptyJSON(raw) {
		return "", newError(ErrTransport, http.StatusOK, "Server response did not include a session token")
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.value() == "" {
		return "", newError(ErrTransport, http.StatusOK, "Server response did not include a session token")
	}
	return body.value(), nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs one request. A 2xx body without envelope markers is treated as a
// successful envelope whose data is the whole body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any, bearer bool) (Envelope, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	if bearer {
		ctx = middleware.WithBearer(ctx)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return Envelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, middleware.ErrNoToken) {
			return Envelope{}, newError(ErrUnauthorized, 0, "You are not signed in.")
		}
		return Envelope{}, &Error{Message: defaultMessage(ErrTransport, 0), Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Envelope{}, &Error{Status: resp.StatusCode, Message: defaultMessage(ErrTransport, 0), Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := ErrRejected
		if bearer && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			kind = ErrUnauthorized
		} else if resp.StatusCode >= 500 {
			kind = ErrTransport
		}
		return Envelope{}, newError(kind, resp.StatusCode, env.Message)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return Envelope{}, nil
	}
	if decodeErr != nil {
		return Envelope{}, newError(ErrTransport, resp.StatusCode, "Unexpected response from the server")
	}
	if !env.Present() {
		return Envelope{Data: raw}, nil
	}
	if !env.OK() {
		return Envelope{}, newError(ErrRejected, resp.StatusCode, env.Message)
	}
	return env, nil
}
