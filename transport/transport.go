// Package transport abstracts how the persistent login code travels
// between requests. The kernel only needs a keyed get/put/forget store;
// a cookie and an in-memory jar are provided, server-side sessions can
// implement the same interface.
package transport

import (
	"net/http"
	"sync"
	"time"
)

// TokenTransport carries one persistence code across requests.
type TokenTransport interface {
	// Get returns the stored code, if any.
	Get() (string, bool)

	// Put stores a code for at most ttl.
	Put(code string, ttl time.Duration)

	// Forget clears the stored code.
	Forget()
}

// MemoryTransport is an in-process jar, used in tests and by embedders
// that manage their own session storage.
type MemoryTransport struct {
	mu   sync.Mutex
	code string
	set  bool
}

// NewMemoryTransport returns an empty jar.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

func (t *MemoryTransport) Get() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.code, t.set
}

func (t *MemoryTransport) Put(code string, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.code = code
	t.set = true
}

func (t *MemoryTransport) Forget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.code = ""
	t.set = false
}

// CookieTransport stores the code in an HTTP cookie. One instance is
// scoped to a single request/response pair.
type CookieTransport struct {
	name string
	w    http.ResponseWriter
	r    *http.Request
}

// NewCookieTransport binds a transport to the given request pair under
// the given cookie name.
func NewCookieTransport(w http.ResponseWriter, r *http.Request, name string) *CookieTransport {
	return &CookieTransport{name: name, w: w, r: r}
}

func (t *CookieTransport) Get() (string, bool) {
	c, err := t.r.Cookie(t.name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (t *CookieTransport) Put(code string, ttl time.Duration) {
	http.SetCookie(t.w, &http.Cookie{
		Name:     t.name,
		Value:    code,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (t *CookieTransport) Forget() {
	http.SetCookie(t.w, &http.Cookie{
		Name:     t.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
