// Package refresh drives the fetch/render cycle shared by every view.
package refresh

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	Initializing State = iota
	Idle
	Fetching
	Error
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

type Indicator string

const (
	IndicatorLive  Indicator = "live"
	IndicatorStale Indicator = "stale"
	IndicatorError Indicator = "error"
)

// Token identifies one fetch. A completion is applied only if its fetch
// began after the one whose result is currently shown; anything older is a
// stale response.
type Token string

type Controller struct {
	mu sync.Mutex

	name     string
	interval time.Duration
	now      func() time.Time

	state       State
	seq         uint64
	applied     uint64
	inflight    map[Token]uint64
	lastSuccess time.Time
	lastErr     error
}

type Option func(*Controller)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates a controller for the named view. name is only used
// as a metrics label.
func NewController(name string, interval time.Duration, opts ...Option) *Controller {
	c := &Controller{
		name:     name,
		interval: interval,
		now:      time.Now,
		state:    Initializing,
		inflight: make(map[Token]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin starts a fetch and returns its token. Fetches still in flight stay
// valid until a newer one completes.
func (c *Controller) Begin() Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	tok := Token(uuid.NewString())
	c.inflight[tok] = c.seq
	c.state = Fetching
	return tok
}

// Complete records the outcome of the fetch identified by tok. It returns
// false, and changes nothing, if a fetch begun later has already completed
// or tok is unknown.
func (c *Controller) Complete(tok Token, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq, ok := c.inflight[tok]
	if !ok {
		refreshTotal.WithLabelValues(c.name, "stale").Inc()
		return false
	}
	delete(c.inflight, tok)
	if seq <= c.applied {
		refreshTotal.WithLabelValues(c.name, "stale").Inc()
		return false
	}
	c.applied = seq
	for t, s := range c.inflight {
		if s < seq {
			delete(c.inflight, t)
		}
	}

	if err != nil {
		c.state = Error
		c.lastErr = err
		refreshTotal.WithLabelValues(c.name, "error").Inc()
		return true
	}

	c.state = Idle
	c.lastErr = nil
	c.lastSuccess = c.now()
	refreshTotal.WithLabelValues(c.name, "success").Inc()
	refreshLastSuccess.WithLabelValues(c.name).Set(float64(c.lastSuccess.Unix()))
	return true
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err is the error from the last applied completion, if it failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) LastSuccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

func (c *Controller) Interval() time.Duration {
	return c.interval
}

// InFlight reports whether a fetch has begun and not yet completed.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight) > 0
}

// Indicator is error after a failed refresh, stale once the last success is
// older than twice the interval, and live otherwise.
func (c *Controller) Indicator() Indicator {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastErr != nil {
		return IndicatorError
	}
	if c.lastSuccess.IsZero() {
		return IndicatorStale
	}
	if c.interval > 0 && c.now().Sub(c.lastSuccess) > 2*c.interval {
		return IndicatorStale
	}
	return IndicatorLive
}
