package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoCredential = errors.New("no valid credential in session")
)

// Claims mirrors the identity claims the auth service puts into access tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Context holds the bearer credential for the current session and notifies
// subscribers when it is invalidated (logout, revocation in another tab).
// It never performs signature verification: the signing key lives on the
// server, and the server's 401 is the only authoritative rejection. The
// client only inspects claims to know who it is acting as and to avoid
// sending a token it can already see is expired.
type Context struct {
	mu          sync.RWMutex
	token       string
	claims      *Claims
	now         func() time.Time
	subscribers []chan struct{}
}

func NewContext() *Context {
	return &Context{now: time.Now}
}

// SetCredential installs a bearer token for subsequent operations. The token
// is parsed (unverified) so identity claims are available locally; a token
// that does not parse is rejected.
func (c *Context) SetCredential(token string) error {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return ErrNoCredential
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.claims = claims
	return nil
}

// Credential returns the current bearer token, or ErrNoCredential when the
// session holds none or the token is already past its expiry.
func (c *Context) Credential() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" {
		return "", ErrNoCredential
	}
	if c.claims != nil && c.claims.ExpiresAt != nil && c.claims.ExpiresAt.Before(c.now()) {
		return "", ErrNoCredential
	}
	return c.token, nil
}

func (c *Context) IsAuthenticated() bool {
	_, err := c.Credential()
	return err == nil
}

// UserID returns the subject of the current credential, or "" when anonymous.
func (c *Context) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.claims == nil {
		return ""
	}
	if c.claims.UserID != "" {
		return c.claims.UserID
	}
	return c.claims.Subject
}

// Invalidate drops the credential and closes every revocation channel handed
// out by Revoked. Used for logout and for cross-tab revocation signals.
func (c *Context) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	c.claims = nil
	for _, ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
}

// Revoked returns a channel that is closed when the credential is
// invalidated. Each caller gets its own channel; a channel obtained after an
// invalidation fires on the next one.
func (c *Context) Revoked() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan struct{})
	c.subscribers = append(c.subscribers, ch)
	return ch
}
