// Package auth holds the bearer credential shared by the REST client and
// the realtime transport. It is passed explicitly at construction instead of
// living in ambient global state, so a 401 on one path clears it for both.
package auth

import "sync"

type Credential struct {
	mu    sync.RWMutex
	token string
}

func NewCredential(token string) *Credential {
	return &Credential{token: token}
}

func (c *Credential) Set(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Credential) Clear() {
	c.Set("")
}

func (c *Credential) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Credential) Present() bool {
	return c.Token() != ""
}

// Authorization returns the header value, or "" when no token is held.
func (c *Credential) Authorization() string {
	tok := c.Token()
	if tok == "" {
		return ""
	}
	return "Bearer " + tok
}
