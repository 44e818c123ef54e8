package protocol

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/jlieth/legacy-scrobbler/pkg/listen"
)

// fakeExecutor lets tests script GET/POST outcomes without touching the network.
type fakeExecutor struct {
	getStatus  int
	getBody    string
	getErr     error
	postStatus int
	postBody   string
	postErr    error

	lastGetQuery  url.Values
	lastPostForm  url.Values
}

func (f *fakeExecutor) Get(ctx context.Context, rawURL string, query url.Values, timeout time.Duration) (int, string, error) {
	f.lastGetQuery = query
	return f.getStatus, f.getBody, f.getErr
}

func (f *fakeExecutor) Post(ctx context.Context, rawURL string, form url.Values, timeout time.Duration) (int, string, error) {
	f.lastPostForm = form
	return f.postStatus, f.postBody, f.postErr
}

func testConfig() Config {
	return Config{
		ClientVersion:  "1.0",
		Username:       "user",
		PasswordMD5Hex: "3858f62230ac3c915f300c664312c63f",
		HandshakeURL:   "https://example.test/handshake",
	}
}

func TestHandshakeSuccess(t *testing.T) {
	exec := &fakeExecutor{getStatus: 200, getBody: "OK\nSID\nhttps://np\nhttps://sub\n"}
	c := NewClient(testConfig(), exec)

	if err := c.Handshake(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.HasSession() {
		t.Fatal("expected session after successful handshake")
	}
	creds := c.Credentials()
	if creds.SessionID != "SID" || creds.NowPlayingURL != "https://np" || creds.ScrobbleURL != "https://sub" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
	if exec.lastGetQuery.Get("c") != defaultClientName {
		t.Errorf("expected default client name %q, got %q", defaultClientName, exec.lastGetQuery.Get("c"))
	}
	if exec.lastGetQuery.Get("p") != "1.2" {
		t.Errorf("expected protocol version 1.2, got %q", exec.lastGetQuery.Get("p"))
	}
}

func TestHandshakeBanned(t *testing.T) {
	exec := &fakeExecutor{getStatus: 200, getBody: "BANNED\n"}
	c := NewClient(testConfig(), exec)

	err := c.Handshake(context.Background())
	var hsErr *HandshakeError
	if !errors.As(err, &hsErr) || hsErr.Reason != ClientBanned {
		t.Fatalf("expected HandshakeError{ClientBanned}, got %v", err)
	}
}

func TestHandshakeBadAuth(t *testing.T) {
	exec := &fakeExecutor{getStatus: 200, getBody: "BADAUTH\n"}
	c := NewClient(testConfig(), exec)

	err := c.Handshake(context.Background())
	var hsErr *HandshakeError
	if !errors.As(err, &hsErr) || hsErr.Reason != BadAuth {
		t.Fatalf("expected HandshakeError{BadAuth}, got %v", err)
	}
}

func TestHandshakeBadTime(t *testing.T) {
	exec := &fakeExecutor{getStatus: 200, getBody: "BADTIME\n"}
	c := NewClient(testConfig(), exec)

	err := c.Handshake(context.Background())
	var hsErr *HandshakeError
	if !errors.As(err, &hsErr) || hsErr.Reason != BadTime {
		t.Fatalf("expected HandshakeError{BadTime}, got %v", err)
	}
}

func TestHandshakeUnrecognizedBodyIsHardFailure(t *testing.T) {
	exec := &fakeExecutor{getStatus: 200, getBody: "FAILED some reason\n"}
	c := NewClient(testConfig(), exec)

	err := c.Handshake(context.Background())
	var hf *HardFailure
	if !errors.As(err, &hf) {
		t.Fatalf("expected HardFailure, got %v", err)
	}
}

func TestHandshakeNon2xxIsHardFailure(t *testing.T) {
	exec := &fakeExecutor{getStatus: 500, getBody: "oops"}
	c := NewClient(testConfig(), exec)

	err := c.Handshake(context.Background())
	var hf *HardFailure
	if !errors.As(err, &hf) {
		t.Fatalf("expected HardFailure, got %v", err)
	}
}

func TestHandshakeTransportErrorIsRequestsError(t *testing.T) {
	exec := &fakeExecutor{getErr: errors.New("connection refused")}
	c := NewClient(testConfig(), exec)

	err := c.Handshake(context.Background())
	var re *RequestsError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestsError, got %v", err)
	}
}

func handshaken(t *testing.T) (*Client, *fakeExecutor) {
	t.Helper()
	exec := &fakeExecutor{getStatus: 200, getBody: "OK\nSID\nhttps://np\nhttps://sub\n"}
	c := NewClient(testConfig(), exec)
	if err := c.Handshake(context.Background()); err != nil {
		t.Fatalf("setup handshake failed: %v", err)
	}
	return c, exec
}

func TestNowPlayingWithoutSessionIsBadSession(t *testing.T) {
	exec := &fakeExecutor{}
	c := NewClient(testConfig(), exec)
	l, _ := listen.New(time.Now(), "Artist", "Track")

	err := c.NowPlaying(context.Background(), l)
	var bs *BadSession
	if !errors.As(err, &bs) {
		t.Fatalf("expected BadSession, got %v", err)
	}
}

func TestNowPlayingSuccess(t *testing.T) {
	c, exec := handshaken(t)
	exec.postStatus, exec.postBody = 200, "OK\n"

	l, _ := listen.New(time.Now(), "Artist", "Track")
	if err := c.NowPlaying(context.Background(), l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.lastPostForm.Get("s") != "SID" {
		t.Errorf("expected session id in form, got %q", exec.lastPostForm.Get("s"))
	}
	if exec.lastPostForm.Get("a") != "Artist" {
		t.Errorf("expected artist in form, got %q", exec.lastPostForm.Get("a"))
	}
}

func TestScrobbleWithoutListensIsFatal(t *testing.T) {
	c, _ := handshaken(t)
	err := c.Scrobble(context.Background(), nil)
	if !errors.Is(err, ErrSubmissionWithoutListens) {
		t.Fatalf("expected ErrSubmissionWithoutListens, got %v", err)
	}
}

func TestScrobbleSuccess(t *testing.T) {
	c, exec := handshaken(t)
	exec.postStatus, exec.postBody = 200, "OK\n"

	l1, _ := listen.New(time.Now(), "Artist1", "Track1", listen.WithLength(200))
	l2, _ := listen.New(time.Now(), "Artist2", "Track2")

	if err := c.Scrobble(context.Background(), []listen.Listen{l1, l2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.lastPostForm.Get("a[0]") != "Artist1" || exec.lastPostForm.Get("a[1]") != "Artist2" {
		t.Errorf("expected indexed artists, got %+v", exec.lastPostForm)
	}
	if exec.lastPostForm.Get("s") != "SID" {
		t.Errorf("expected session id in form, got %q", exec.lastPostForm.Get("s"))
	}
}

func TestScrobbleBadSessionClearsNothingItself(t *testing.T) {
	// the Client does not clear its own session on BadSession; that is the
	// engine's responsibility per the state machine (§4.4).
	c, exec := handshaken(t)
	exec.postStatus, exec.postBody = 200, "BADSESSION\n"

	l, _ := listen.New(time.Now(), "Artist", "Track")
	err := c.Scrobble(context.Background(), []listen.Listen{l})

	var bs *BadSession
	if !errors.As(err, &bs) {
		t.Fatalf("expected BadSession, got %v", err)
	}
	if !c.HasSession() {
		t.Fatal("Client.Scrobble must not clear the session itself")
	}
}

func TestScrobbleUnrecognizedBodyIsHardFailure(t *testing.T) {
	c, exec := handshaken(t)
	exec.postStatus, exec.postBody = 200, "weird body"

	l, _ := listen.New(time.Now(), "Artist", "Track")
	err := c.Scrobble(context.Background(), []listen.Listen{l})

	var hf *HardFailure
	if !errors.As(err, &hf) {
		t.Fatalf("expected HardFailure, got %v", err)
	}
}
