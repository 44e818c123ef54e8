// Package scrobbler implements the tick-driven submission engine: the state
// machine that coordinates the backoff timer, the protocol client, and the
// in-memory pending queue.
package scrobbler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/jlieth/legacy-scrobbler/internal/delay"
	"github.com/jlieth/legacy-scrobbler/pkg/listen"
	"github.com/jlieth/legacy-scrobbler/pkg/protocol"
)

// State is the engine's closed state label.
type State int

const (
	// NoSession is the initial state and the state entered after any
	// unrecovered hard failure or session loss.
	NoSession State = iota
	// Idle means a session is held; nowplaying/scrobble submissions proceed.
	Idle
	// Poisoned is terminal: a fatal HandshakeError has propagated and the
	// engine refuses further work until reconstructed.
	Poisoned
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "NoSession"
	case Idle:
		return "Idle"
	case Poisoned:
		return "Poisoned"
	default:
		return "Unknown"
	}
}

// BatchSize is the fixed maximum number of listens submitted per scrobble tick.
const BatchSize = 50

// HardFailThreshold is the number of consecutive hard failures that forces
// the engine back to NoSession while the queue remains intact.
const HardFailThreshold = 3

// ErrPoisoned is returned by Tick once the engine has entered the terminal
// Poisoned state.
var ErrPoisoned = errors.New("scrobbler: engine is poisoned, reconstruct to recover")

// protocolClient is the subset of *protocol.Client the engine depends on.
// Narrowing to an interface keeps the state machine testable without a live
// Executor.
type protocolClient interface {
	Handshake(ctx context.Context) error
	NowPlaying(ctx context.Context, l listen.Listen) error
	Scrobble(ctx context.Context, listens []listen.Listen) error
	ClearSession()
}

// Engine is the tick-driven state machine described by the submission
// protocol: one client, one backoff timer, one sorted queue, one optional
// now-playing slot. It is not safe for concurrent use; callers serialize
// access to a single Engine.
type Engine struct {
	client protocolClient
	delay  *delay.Delay
	logger zerolog.Logger

	state      State
	queue      []listen.Listen
	nowPlaying *listen.Listen
	hardFails  int
	poisonErr  error
}

// New constructs an Engine in the NoSession state with a fresh backoff timer.
func New(client protocolClient, logger zerolog.Logger) *Engine {
	return &Engine{
		client: client,
		delay:  delay.New(delay.DefaultOptions),
		logger: logger.With().Str("component", "scrobbler").Logger(),
		state:  NoSession,
	}
}

// State returns the engine's current state label.
func (e *Engine) State() State { return e.state }

// HardFails returns the consecutive hard-failure counter.
func (e *Engine) HardFails() int { return e.hardFails }

// QueueLen returns the number of listens awaiting submission.
func (e *Engine) QueueLen() int { return len(e.queue) }

// AddListens appends listens to the pending queue and re-sorts it ascending
// by date. Duplicates are permitted; the server is the deduplication authority.
func (e *Engine) AddListens(listens ...listen.Listen) {
	e.queue = append(e.queue, listens...)
	sort.SliceStable(e.queue, func(i, j int) bool {
		return e.queue[i].Date().Before(e.queue[j].Date())
	})
}

// SendNowPlaying arms the now-playing slot, overwriting any previous value.
// It is submitted with priority over queued scrobbles on the next Idle tick.
func (e *Engine) SendNowPlaying(l listen.Listen) {
	e.nowPlaying = &l
}

// Tick performs at most one HTTP exchange: a handshake attempt when
// NoSession and no backoff is active, a now-playing submission when one is
// pending, or a scrobble batch otherwise. Returns nil when no work was due
// or the action succeeded. Returns the fatal error unmodified the first time
// a HandshakeError or SubmissionWithoutListens propagates. A HandshakeError
// also poisons the engine: every subsequent Tick call returns it wrapped
// together with ErrPoisoned instead of attempting further I/O.
func (e *Engine) Tick(ctx context.Context) error {
	if e.state == Poisoned {
		return fmt.Errorf("%w: %w", ErrPoisoned, e.poisonErr)
	}

	switch e.state {
	case NoSession:
		return e.tickHandshake(ctx)
	case Idle:
		if e.nowPlaying != nil {
			return e.tickNowPlaying(ctx)
		}
		if len(e.queue) > 0 {
			return e.tickScrobble(ctx)
		}
		return nil
	}
	return nil
}

func (e *Engine) tickHandshake(ctx context.Context) error {
	if e.delay.IsActive() {
		return nil
	}

	err := e.client.Handshake(ctx)

	// The failure/success handler (Increase or Reset) runs before the
	// post-attempt handler (delay.Update) on every path. Update only
	// re-anchors the start time, so the next backoff window has the length
	// the handler set, measured from this attempt.
	var hsErr *protocol.HandshakeError
	if errors.As(err, &hsErr) {
		e.logger.Error().Err(err).Msg("fatal handshake rejection")
		e.poisonErr = err
		e.state = Poisoned
		e.delay.Update()
		return err
	}

	if err != nil {
		e.onHardFailure(err)
		e.delay.Update()
		return nil
	}

	e.hardFails = 0
	e.delay.Reset()
	e.delay.Update()
	e.state = Idle
	e.logger.Info().Msg("handshake succeeded")
	return nil
}

func (e *Engine) tickNowPlaying(ctx context.Context) error {
	l := *e.nowPlaying
	err := e.client.NowPlaying(ctx, l)
	if err == nil {
		e.nowPlaying = nil
		e.logger.Info().Str("track", l.TrackTitle()).Msg("now playing updated")
		return nil
	}
	return e.onSubmissionFailure(err)
}

func (e *Engine) tickScrobble(ctx context.Context) error {
	n := BatchSize
	if n > len(e.queue) {
		n = len(e.queue)
	}
	batch := e.queue[:n]

	err := e.client.Scrobble(ctx, batch)
	if err == nil {
		e.queue = e.queue[n:]
		e.logger.Info().Int("submitted", n).Int("remaining", len(e.queue)).Msg("scrobble batch submitted")
		return nil
	}
	if errors.Is(err, protocol.ErrSubmissionWithoutListens) {
		e.logger.Error().Err(err).Msg("programmer error: scrobble called without listens")
		return err
	}
	return e.onSubmissionFailure(err)
}

// onSubmissionFailure applies the shared nowplaying/scrobble failure policy:
// BadSession drops straight to NoSession without touching the fail counter;
// anything else goes through the hard-failure path.
func (e *Engine) onSubmissionFailure(err error) error {
	var bs *protocol.BadSession
	if errors.As(err, &bs) {
		e.logger.Warn().Err(err).Msg("session rejected, re-handshaking")
		e.client.ClearSession()
		e.state = NoSession
		return nil
	}
	e.onHardFailure(err)
	return nil
}

// onHardFailure applies the shared HardFailure/RequestsError recovery
// policy: increment the counter, grow the backoff, and drop to NoSession
// once the threshold is reached.
func (e *Engine) onHardFailure(err error) {
	e.hardFails++
	e.delay.Increase()
	e.logger.Warn().Err(err).Int("hard_fails", e.hardFails).Msg("request failed")

	if e.state != NoSession && e.hardFails >= HardFailThreshold {
		e.state = NoSession
	}
}
