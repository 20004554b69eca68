// Package browser wraps headless-Chrome automation behind a small
// session-oriented interface so login and publish flows can be tested
// against fakes.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrProxyFormat = errors.New("invalid proxy format, expected IP:PORT or IP:PORT:LOGIN:PASSWORD")

// SessionOptions configure one isolated browser session.
type SessionOptions struct {
	UserAgent string
	Proxy     string // host:port or host:port:user:pass, empty for direct
}

// Cookie is the persisted subset of a browser cookie, JSON-stable so jars
// written by one process version load in the next.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// Session is a single live browser page. Every blocking call takes a bounded
// timeout; no method waits forever.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	Type(ctx context.Context, sel, text string) error
	PressEnter(ctx context.Context) error
	Click(ctx context.Context, sel string, timeout time.Duration) error
	// ClickIfPresent clicks sel when it exists right now; absence is not an error.
	ClickIfPresent(ctx context.Context, sel string) (bool, error)
	Evaluate(ctx context.Context, js string, out any) error
	SetUploadFile(ctx context.Context, sel, path string, timeout time.Duration) error
	WaitEnabled(ctx context.Context, sel string, timeout time.Duration) error
	URL(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Close() error
}

// Driver opens sessions. The session lifetime is independent of the request
// context that created it: pending-login pages outlive their HTTP request.
type Driver interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// ProxyAuth holds optional upstream proxy credentials.
type ProxyAuth struct {
	Username string
	Password string
}

// ParseProxy splits host:port[:user:pass] into a scheme URL and credentials.
func ParseProxy(proxy string) (server string, auth *ProxyAuth, err error) {
	parts := strings.Split(proxy, ":")
	if len(parts) < 2 {
		return "", nil, ErrProxyFormat
	}

	server = fmt.Sprintf("http://%s:%s", parts[0], parts[1])
	if len(parts) >= 4 && parts[2] != "" && parts[3] != "" {
		auth = &ProxyAuth{Username: parts[2], Password: parts[3]}
	}
	return server, auth, nil
}
