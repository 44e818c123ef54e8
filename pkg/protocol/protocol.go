// Package protocol implements the Audioscrobbler 1.2 submission protocol:
// an authenticated handshake, nowplaying/scrobble form submission, and the
// plaintext response grammar both use. Client never performs network I/O
// directly — callers inject an Executor; HTTPExecutor is the net/http-backed
// implementation the package provides.
package protocol

import (
	"context"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTimeout is the per-request timeout mandated by the protocol.
const DefaultTimeout = 5 * time.Second

// ProtocolVersion is the fixed "p" handshake parameter.
const ProtocolVersion = "1.2"

// Executor performs the HTTP exchanges the protocol needs. Implementations
// translate connection failures, DNS errors, and timeouts into a non-nil
// err; Get/Post themselves never interpret status codes or bodies.
type Executor interface {
	Get(ctx context.Context, rawURL string, query url.Values, timeout time.Duration) (status int, body string, err error)
	Post(ctx context.Context, rawURL string, form url.Values, timeout time.Duration) (status int, body string, err error)
}

// Config identifies the client to the scrobbling service.
type Config struct {
	ClientName     string // "c" handshake parameter, defaults to "legacy"
	ClientVersion  string // "v" handshake parameter
	Username       string
	PasswordMD5Hex string // pre-hashed password; the client never sees plaintext
	HandshakeURL   string
}

const defaultClientName = "legacy"

// Credentials is the session state produced by a successful handshake.
type Credentials struct {
	SessionID     string
	NowPlayingURL string
	ScrobbleURL   string
}

// Client is the stateful protocol codec: it holds Config and, once
// handshaken, Credentials. State mutation (creds) is not safe for
// concurrent use by design (the engine serializes access per §5 of the
// submission protocol) — the one exception is Handshake itself, which
// collapses concurrent callers on the same Client onto a single in-flight
// attempt via singleflight, so two goroutines never issue two handshakes at
// once.
type Client struct {
	cfg      Config
	executor Executor
	creds    *Credentials
	hsGroup  singleflight.Group
}

// NewClient constructs a Client. cfg.ClientName defaults to "legacy" when empty.
func NewClient(cfg Config, executor Executor) *Client {
	if cfg.ClientName == "" {
		cfg.ClientName = defaultClientName
	}
	return &Client{cfg: cfg, executor: executor}
}

// HasSession reports whether a handshake has produced live credentials.
func (c *Client) HasSession() bool { return c.creds != nil }

// Credentials returns the current session credentials, or nil if none.
func (c *Client) Credentials() *Credentials { return c.creds }

// ClearSession discards the current session, forcing the next NowPlaying or
// Scrobble call to fail with BadSession until a fresh Handshake succeeds.
func (c *Client) ClearSession() { c.creds = nil }
