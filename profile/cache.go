package profile

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/middleware"
)

// ErrNoSession is returned by Get when there is no session token.
var ErrNoSession = errors.New("no active session")

// Fetcher loads the profile of the token's owner.
type Fetcher interface {
	Me(ctx context.Context) (*api.User, error)
}

// Option configures a [Cache].
type Option func(*Cache)

// WithTTL bounds how long a fetched record is served. Zero keeps it until the token
// changes or Invalidate is called.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

type entry struct {
	token     string
	user      api.User
	fetchedAt time.Time
}

// Cache holds at most one profile record, for the current token.
type Cache struct {
	fetcher Fetcher
	source  middleware.TokenSource
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group

	mu         sync.Mutex
	current    *entry
	generation uint64
}

// New returns an empty cache.
func New(fetcher Fetcher, source middleware.TokenSource, opts ...Option) *Cache {
	c := &Cache{
		fetcher: fetcher,
		source:  source,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the profile for the current token, fetching it when nothing fresh is
// cached. The returned value is a copy.
func (c *Cache) Get(ctx context.Context) (*api.User, error) {
	token, ok := c.source.Token()
	if !ok {
		return nil, ErrNoSession
	}

	if u, ok := c.lookup(token); ok {
		return u, nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	v, err, _ := c.group.Do(token, func() (any, error) {
		u, err := c.fetcher.Me(ctx)
		if err != nil {
			return nil, err
		}
		c.store(token, gen, *u)
		return *u, nil
	})
	if err != nil {
		return nil, err
	}

	u := v.(api.User)
	return &u, nil
}

// Peek returns the cached record for the current token without fetching.
func (c *Cache) Peek() (*api.User, bool) {
	token, ok := c.source.Token()
	if !ok {
		return nil, false
	}
	return c.lookup(token)
}

// Invalidate drops the cached record. A fetch already in flight will not repopulate it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.generation++
}

func (c *Cache) lookup(token string) (*api.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.current
	if e == nil || e.token != token {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	u := e.user
	return &u, true
}

func (c *Cache) store(token string, gen uint64, u api.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	if current, ok := c.source.Token(); !ok || current != token {
		return
	}
	c.current = &entry{token: token, user: u, fetchedAt: c.now()}
}
