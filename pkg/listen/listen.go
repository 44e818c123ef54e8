// Package listen implements the Listen value object used throughout the
// Audioscrobbler 1.2 submission pipeline: a single play event, its protocol
// parameter rendering, and the scrobble-eligibility rule.
package listen

import (
	"errors"
	"net/url"
	"strconv"
	"time"
)

// ErrDateWithoutTimezone is returned by New when the supplied date is the
// zero time.Time value. A naive timestamp (no instant in time at all) can
// never be rendered to a correct unix timestamp, so construction fails
// rather than silently submitting a play at the epoch.
var ErrDateWithoutTimezone = errors.New("listen: date has no timezone information")

// DefaultSource is the source code meaning "chosen by the user", used when
// no explicit Source option is given.
const DefaultSource = "P"

// Listen is an immutable description of a single play event. Construct one
// with New; all fields are read-only after construction.
type Listen struct {
	date        time.Time
	artistName  string
	trackTitle  string
	albumTitle  *string
	length      *int
	trackNumber *int
	mbTrackID   *string
	source      string
	rating      *string
}

// Option configures optional Listen fields at construction time.
type Option func(*Listen)

// WithAlbum sets the album title.
func WithAlbum(album string) Option {
	return func(l *Listen) { l.albumTitle = &album }
}

// WithLength sets the track length in seconds.
func WithLength(seconds int) Option {
	return func(l *Listen) { l.length = &seconds }
}

// WithTrackNumber sets the track's position on its album.
func WithTrackNumber(n int) Option {
	return func(l *Listen) { l.trackNumber = &n }
}

// WithMBTrackID sets the MusicBrainz track identifier.
func WithMBTrackID(id string) Option {
	return func(l *Listen) { l.mbTrackID = &id }
}

// WithSource overrides the default source code ("P").
func WithSource(code string) Option {
	return func(l *Listen) { l.source = code }
}

// WithRating sets the single-character rating code.
func WithRating(code string) Option {
	return func(l *Listen) { l.rating = &code }
}

// New constructs a Listen. date must be a real instant (the zero time.Time
// is rejected as DateWithoutTimezone, mirroring the Python original's check
// that date.tzinfo is set).
func New(date time.Time, artistName, trackTitle string, opts ...Option) (Listen, error) {
	if date.IsZero() {
		return Listen{}, ErrDateWithoutTimezone
	}

	l := Listen{
		date:       date,
		artistName: artistName,
		trackTitle: trackTitle,
		source:     DefaultSource,
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l, nil
}

// Date returns the play's start time.
func (l Listen) Date() time.Time { return l.date }

// ArtistName returns the performing artist.
func (l Listen) ArtistName() string { return l.artistName }

// TrackTitle returns the track title.
func (l Listen) TrackTitle() string { return l.trackTitle }

// Length returns the track length in seconds and whether it is known.
func (l Listen) Length() (int, bool) {
	if l.length == nil {
		return 0, false
	}
	return *l.length, true
}

// Timestamp returns the integer seconds since epoch for Date.
func (l Listen) Timestamp() int64 { return l.date.Unix() }

// RequiredPlayTime returns the number of seconds this Listen must have been
// played to count as a scrobble: 240 if length exceeds 480 seconds,
// otherwise round(length/2). The result is meaningless when Length is
// unknown; callers should check Length first.
func (l Listen) RequiredPlayTime() int {
	length, ok := l.Length()
	if !ok {
		return 0
	}
	if length > 480 {
		return 240
	}
	return roundHalfToEven(length)
}

// roundHalfToEven computes round(length/2) the way Python 3's round()
// does: exact halves (odd length) round to the nearest even integer, not
// always up. length/2 is only ever a half-integer when length is odd.
func roundHalfToEven(length int) int {
	if length%2 == 0 {
		return length / 2
	}
	floor := (length - 1) / 2
	if floor%2 == 0 {
		return floor
	}
	return floor + 1
}

// EligibleForScrobbling reports whether this Listen should be submitted.
// A nil reference assumes enough play time has passed (the streaming case).
// When Length is unknown the rule is inapplicable and this returns true.
func (l Listen) EligibleForScrobbling(reference *time.Time) bool {
	length, ok := l.Length()
	if !ok {
		return true
	}
	if length < 30 {
		return false
	}
	if reference == nil {
		return true
	}
	elapsed := reference.Sub(l.date)
	return int(elapsed.Seconds()) >= l.RequiredPlayTime()
}

// NowPlayingParams renders the now-playing query parameters (§4.1).
func (l Listen) NowPlayingParams() url.Values {
	v := url.Values{}
	v.Set("a", l.artistName)
	v.Set("t", l.trackTitle)
	v.Set("b", derefOrEmpty(l.albumTitle))
	if n, ok := l.Length(); ok {
		v.Set("l", strconv.Itoa(n))
	} else {
		v.Set("l", "")
	}
	v.Set("n", intPtrOrEmpty(l.trackNumber))
	v.Set("m", derefOrEmpty(l.mbTrackID))
	return v
}

// ScrobbleParams renders the scrobble query parameters for this Listen at
// batch position idx (§4.1). Unlike NowPlayingParams, an absent length
// renders as "0", not the empty string.
func (l Listen) ScrobbleParams(idx int) url.Values {
	suffix := "[" + strconv.Itoa(idx) + "]"
	v := url.Values{}
	v.Set("a"+suffix, l.artistName)
	v.Set("t"+suffix, l.trackTitle)
	v.Set("i"+suffix, strconv.FormatInt(l.Timestamp(), 10))
	v.Set("o"+suffix, l.source)
	v.Set("r"+suffix, derefOrEmpty(l.rating))
	if n, ok := l.Length(); ok {
		v.Set("l"+suffix, strconv.Itoa(n))
	} else {
		v.Set("l"+suffix, "0")
	}
	v.Set("b"+suffix, derefOrEmpty(l.albumTitle))
	v.Set("n"+suffix, intPtrOrEmpty(l.trackNumber))
	v.Set("m"+suffix, derefOrEmpty(l.mbTrackID))
	return v
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intPtrOrEmpty(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
