package protocol

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jlieth/legacy-scrobbler/pkg/listen"
)

// Handshake performs the authenticated handshake and, on success, stores
// the resulting session credentials on the Client.
//
// Returns *HandshakeError for BANNED/BADAUTH/BADTIME (fatal, do not retry),
// *HardFailure for any other unrecognized body or non-2xx status, and
// *RequestsError for a transport failure reported by the Executor.
func (c *Client) Handshake(ctx context.Context) error {
	_, err, _ := c.hsGroup.Do("handshake", func() (interface{}, error) {
		return nil, c.doHandshake(ctx)
	})
	return err
}

func (c *Client) doHandshake(ctx context.Context) error {
	now := time.Now().Unix()
	timestamp := strconv.FormatInt(now, 10)
	token := authToken(c.cfg.PasswordMD5Hex, timestamp)

	query := url.Values{}
	query.Set("hs", "true")
	query.Set("p", ProtocolVersion)
	query.Set("c", c.cfg.ClientName)
	query.Set("v", c.cfg.ClientVersion)
	query.Set("u", c.cfg.Username)
	query.Set("t", timestamp)
	query.Set("a", token)

	status, body, err := c.executor.Get(ctx, c.cfg.HandshakeURL, query, DefaultTimeout)
	if err != nil {
		return &RequestsError{Detail: err.Error()}
	}
	if status < 200 || status >= 300 {
		return &HardFailure{Detail: strconv.Itoa(status)}
	}

	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	switch lines[0] {
	case "OK":
		if len(lines) < 4 {
			return &HardFailure{Detail: body}
		}
		c.creds = &Credentials{
			SessionID:     lines[1],
			NowPlayingURL: lines[2],
			ScrobbleURL:   lines[3],
		}
		return nil
	case "BANNED":
		return &HandshakeError{Reason: ClientBanned}
	case "BADAUTH":
		return &HandshakeError{Reason: BadAuth}
	case "BADTIME":
		return &HandshakeError{Reason: BadTime}
	default:
		return &HardFailure{Detail: body}
	}
}

// NowPlaying posts a single now-playing notification. Requires a live
// session; otherwise returns *BadSession without making a request.
func (c *Client) NowPlaying(ctx context.Context, l listen.Listen) error {
	if c.creds == nil {
		return &BadSession{Detail: "no session"}
	}
	form := l.NowPlayingParams()
	form.Set("s", c.creds.SessionID)

	return c.submit(ctx, c.creds.NowPlayingURL, form)
}

// Scrobble posts a batch of up to 50 listens. Requires a live session and a
// non-empty batch; an empty batch returns ErrSubmissionWithoutListens
// without making a request, signalling a caller bug.
func (c *Client) Scrobble(ctx context.Context, listens []listen.Listen) error {
	if len(listens) == 0 {
		return ErrSubmissionWithoutListens
	}
	if c.creds == nil {
		return &BadSession{Detail: "no session"}
	}

	form := url.Values{}
	for i, l := range listens {
		for k, v := range l.ScrobbleParams(i) {
			form[k] = v
		}
	}
	form.Set("s", c.creds.SessionID)

	return c.submit(ctx, c.creds.ScrobbleURL, form)
}

// submit POSTs form to url and classifies the plaintext response shared by
// NowPlaying and Scrobble: "OK" succeeds, "BADSESSION" is a BadSession (the
// held session is left in place), anything else is a HardFailure.
func (c *Client) submit(ctx context.Context, rawURL string, form url.Values) error {
	status, body, err := c.executor.Post(ctx, rawURL, form, DefaultTimeout)
	if err != nil {
		return &RequestsError{Detail: err.Error()}
	}
	if status < 200 || status >= 300 {
		return &HardFailure{Detail: strconv.Itoa(status)}
	}

	switch {
	case strings.HasPrefix(body, "OK"):
		return nil
	case strings.HasPrefix(body, "BADSESSION"):
		return &BadSession{Detail: "server rejected session"}
	default:
		return &HardFailure{Detail: body}
	}
}

// HTTPExecutor is the default Executor backed by net/http.
type HTTPExecutor struct {
	Client *http.Client
}

// NewHTTPExecutor builds an HTTPExecutor using the given client, or
// http.DefaultClient if nil.
func NewHTTPExecutor(client *http.Client) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExecutor{Client: client}
}

func (e *HTTPExecutor) Get(ctx context.Context, rawURL string, query url.Values, timeout time.Duration) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := rawURL
	if encoded := query.Encode(); encoded != "" {
		full += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return 0, "", err
	}
	return e.do(req)
}

func (e *HTTPExecutor) Post(ctx context.Context, rawURL string, form url.Values, timeout time.Duration) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *HTTPExecutor) do(req *http.Request) (int, string, error) {
	resp, err := e.Client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	buf := new(strings.Builder)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return 0, "", err
	}
	return resp.StatusCode, buf.String(), nil
}
