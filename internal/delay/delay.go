// Package delay implements the time-aware exponential backoff primitive
// used to gate handshake retries.
package delay

import "time"

// Options configures a Delay's growth policy.
type Options struct {
	Base       int // seconds
	Max        int // seconds
	Multiplier int
}

// DefaultOptions are the scrobbler engine's backoff parameters: 60s base,
// 7200s (120 min) ceiling, doubling multiplier.
var DefaultOptions = Options{Base: 60, Max: 7200, Multiplier: 2}

// Delay holds the current backoff length and the instant it was armed.
type Delay struct {
	seconds   int
	startTime *time.Time
	opts      Options
}

// New creates a Delay with the given options. Zero-value Options fields are
// replaced by DefaultOptions' corresponding field.
func New(opts Options) *Delay {
	if opts.Base == 0 {
		opts.Base = DefaultOptions.Base
	}
	if opts.Max == 0 {
		opts.Max = DefaultOptions.Max
	}
	if opts.Multiplier == 0 {
		opts.Multiplier = DefaultOptions.Multiplier
	}
	return &Delay{opts: opts}
}

// Seconds returns the current backoff length.
func (d *Delay) Seconds() int { return d.seconds }

// Reset clears both the backoff length and the armed time.
func (d *Delay) Reset() {
	d.seconds = 0
	d.startTime = nil
}

// Update re-anchors the armed time to now without changing the backoff
// length. Called after every handshake attempt, success or failure.
func (d *Delay) Update() {
	now := time.Now()
	d.startTime = &now
}

// Increase grows the backoff: seconds = min(max, seconds*multiplier) if a
// backoff is already armed, else seconds = base.
func (d *Delay) Increase() {
	if d.seconds > 0 {
		d.seconds *= d.opts.Multiplier
	} else {
		d.seconds = d.opts.Base
	}
	if d.seconds > d.opts.Max {
		d.seconds = d.opts.Max
	}
}

// Start is Reset followed by Update followed by Increase: arms a fresh
// backoff at the base length starting now.
func (d *Delay) Start() {
	d.Reset()
	d.Update()
	d.Increase()
}

// Remaining returns the time left until the current backoff elapses. Zero
// when no backoff is armed or it has already elapsed.
func (d *Delay) Remaining() time.Duration {
	if d.seconds == 0 || d.startTime == nil {
		return 0
	}
	end := d.startTime.Add(time.Duration(d.seconds) * time.Second)
	remaining := time.Until(end)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsActive reports whether a backoff is currently in effect. Compares the
// full duration returned by Remaining, never a truncated sub-day component
// of it (the Python original's `remaining.seconds > 0` check truncates days
// away; this Go port has no such field to mistakenly reach for).
func (d *Delay) IsActive() bool {
	return d.Remaining() > 0
}
