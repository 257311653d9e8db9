package capture

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bombona_tracker/internal/logger"

	"github.com/google/uuid"
)

// Policy decides what Open does while a session is live.
type Policy string

const (
	PolicyReject  Policy = "reject"
	PolicyPreempt Policy = "preempt"
)

const (
	DefaultInterval       = 300 * time.Millisecond
	DefaultRequestTimeout = 10 * time.Second
)

type Config struct {
	Interval       time.Duration
	RequestTimeout time.Duration
	Constraints    Constraints
	Policy         Policy
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Constraints == (Constraints{}) {
		c.Constraints = DefaultConstraints()
	}
	if c.Policy == "" {
		c.Policy = PolicyReject
	}
	return c
}

// Stats counts resource events over the controller's lifetime.
type Stats struct {
	Opened          int64 `json:"opened"`
	Acquired        int64 `json:"acquired"`
	Released        int64 `json:"released"`
	SamplersStarted int64 `json:"samplers_started"`
	SamplersStopped int64 `json:"samplers_stopped"`
	Ticks           int64 `json:"ticks"`
	Decoded         int64 `json:"decoded"`
}

type counters struct {
	opened, acquired, released atomic.Int64
	samplersStarted            atomic.Int64
	samplersStopped            atomic.Int64
	ticks, decoded             atomic.Int64
}

// requestOpener is implemented by cameras whose answers are scoped to one
// request.
type requestOpener interface {
	openRequest()
}

// Controller owns one camera and runs at most one capture session on it.
type Controller struct {
	cam Camera
	dec Decoder
	cfg Config
	log *logger.Logger

	mu      sync.Mutex
	current *Session
	closed  bool

	stats counters
	now   func() time.Time
}

// NewController builds a controller. A nil decoder is treated as NoDecoder.
func NewController(cam Camera, dec Decoder, cfg Config, log *logger.Logger) *Controller {
	if dec == nil {
		dec = NoDecoder{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		cam: cam,
		dec: dec,
		cfg: cfg.withDefaults(),
		log: log.Named("capture"),
		now: time.Now,
	}
}

// Open starts a session. ctx bounds the whole session: cancelling it cancels
// the session. Under PolicyPreempt a live session is cancelled and fully
// released before the new one starts.
func (c *Controller) Open(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrControllerClosed
	}
	if prev := c.current; prev != nil {
		if c.cfg.Policy != PolicyPreempt {
			c.mu.Unlock()
			return nil, ErrSessionActive
		}
		c.mu.Unlock()

		c.log.Infow("capture_preempt", "session", prev.id)
		prev.Cancel()
		<-prev.Done()

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrControllerClosed
		}
		if c.current != nil {
			c.mu.Unlock()
			return nil, ErrSessionActive
		}
	}

	s := newSession(c, uuid.NewString())
	c.current = s
	if r, ok := c.cam.(requestOpener); ok {
		r.openRequest()
	}
	c.mu.Unlock()

	c.stats.opened.Add(1)
	go s.run(ctx)
	return s, nil
}

// Current returns the live session, or nil when the controller is idle.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// State is Idle unless a session is live.
func (c *Controller) State() State {
	if s := c.Current(); s != nil {
		return s.State()
	}
	return Idle
}

// Resolve applies a manually entered payload. With a live session this is
// the session's manual override; with none it is a camera-less Decoded outcome.
func (c *Controller) Resolve(ctx context.Context, payload string) (Outcome, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Outcome{}, ErrEmptyPayload
	}
	if s := c.Current(); s != nil {
		if err := s.Submit(payload); err == nil {
			return s.Wait(ctx)
		}
	}
	c.stats.decoded.Add(1)
	out := Outcome{
		SessionID: uuid.NewString(),
		State:     Decoded,
		Payload:   payload,
		Manual:    true,
		At:        c.now(),
	}
	c.log.Infow("capture_manual_resolve", "session", out.SessionID)
	return out, nil
}

// Close cancels any live session, waits for its release and rejects further opens.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	s := c.current
	c.mu.Unlock()
	if s != nil {
		s.Cancel()
		<-s.Done()
	}
}

func (c *Controller) Stats() Stats {
	return Stats{
		Opened:          c.stats.opened.Load(),
		Acquired:        c.stats.acquired.Load(),
		Released:        c.stats.released.Load(),
		SamplersStarted: c.stats.samplersStarted.Load(),
		SamplersStopped: c.stats.samplersStopped.Load(),
		Ticks:           c.stats.ticks.Load(),
		Decoded:         c.stats.decoded.Load(),
	}
}

// detach returns the controller to Idle once s has ended.
func (c *Controller) detach(s *Session) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()
}
