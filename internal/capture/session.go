package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const watchBuffer = 8

// Session is one open-to-terminal capture lifecycle.
type Session struct {
	id   string
	ctrl *Controller

	// queried once at session start
	canDecode bool

	cancelOnce sync.Once
	cancelCh   chan struct{}
	manualCh   chan string

	mu       sync.Mutex
	state    State
	watchers []chan Transition
	stream   Stream
	outcome  Outcome
	settled  bool // no further manual entry is accepted

	releaseOnce sync.Once
	finishOnce  sync.Once
	done        chan struct{}
}

func newSession(c *Controller, id string) *Session {
	return &Session{
		id:        id,
		ctrl:      c,
		canDecode: c.dec.Available(),
		cancelCh:  make(chan struct{}),
		manualCh:  make(chan string, 1),
		state:     Idle,
		done:      make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ManualOnly reports that no decoder was available when the session started.
func (s *Session) ManualOnly() bool { return !s.canDecode }

// Done is closed after the outcome is set and every resource is released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Outcome is valid once Done is closed.
func (s *Session) Outcome() (Outcome, bool) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		out, _ := s.Outcome()
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Cancel requests cancellation. It is honored at the next tick boundary.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

// Submit is the manual override: the session ends Decoded with payload
// unless it reaches another terminal state first.
func (s *Session) Submit(payload string) error {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return ErrEmptyPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return ErrSessionClosed
	}
	select {
	case s.manualCh <- payload:
		return nil
	default:
		// an earlier payload is pending and ends the session
		return ErrSessionClosed
	}
}

// Watch streams transitions from now on. The channel is closed when the session ends.
func (s *Session) Watch() <-chan Transition {
	ch := make(chan Transition, watchBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		close(ch)
	default:
		s.watchers = append(s.watchers, ch)
	}
	return ch
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	if from == to || from.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = to
	tr := Transition{SessionID: s.id, From: from, To: to, At: s.ctrl.now()}
	for _, w := range s.watchers {
		select {
		case w <- tr:
		default:
		}
	}
	s.mu.Unlock()

	s.ctrl.log.Debugw("capture_transition", "session", s.id, "from", from, "to", to)
}

type acquireResult struct {
	stream Stream
	err    error
}

func (s *Session) run(ctx context.Context) {
	s.transition(Requesting)

	stream, out, ok := s.acquire(ctx)
	if !ok {
		s.finish(out)
		return
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
	s.transition(Active)

	s.finish(s.sample(ctx))
}

// acquire waits for the camera grant, bounded by the request timeout.
func (s *Session) acquire(ctx context.Context) (Stream, Outcome, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, s.ctrl.cfg.RequestTimeout)
	defer cancel()

	granted := make(chan acquireResult, 1)
	go func() {
		st, err := s.ctrl.cam.Acquire(reqCtx, s.ctrl.cfg.Constraints)
		granted <- acquireResult{stream: st, err: err}
	}()

	select {
	case r := <-granted:
		if r.err != nil {
			if r.stream != nil {
				s.ctrl.stats.acquired.Add(1)
				s.releaseLate(r.stream)
			}
			if ctx.Err() != nil {
				return nil, s.ended(Cancelled, "", false, nil), false
			}
			if reqCtx.Err() == context.DeadlineExceeded {
				return nil, s.ended(Failed, "", false, ErrRequestTimeout), false
			}
			return nil, s.ended(Failed, "", false, fmt.Errorf("%w: %w", ErrCapabilityDenied, r.err)), false
		}
		if r.stream == nil {
			return nil, s.ended(Failed, "", false, fmt.Errorf("%w: no stream bound", ErrCapabilityDenied)), false
		}
		s.ctrl.stats.acquired.Add(1)
		return r.stream, Outcome{}, true
	case <-reqCtx.Done():
		go s.drainGrant(granted)
		if ctx.Err() != nil {
			return nil, s.ended(Cancelled, "", false, nil), false
		}
		return nil, s.ended(Failed, "", false, ErrRequestTimeout), false
	case <-s.cancelCh:
		go s.drainGrant(granted)
		return nil, s.ended(Cancelled, "", false, nil), false
	case p := <-s.manualCh:
		go s.drainGrant(granted)
		return nil, s.ended(Decoded, p, true, nil), false
	}
}

// drainGrant releases a stream granted after the session stopped waiting for it.
func (s *Session) drainGrant(granted <-chan acquireResult) {
	r := <-granted
	if r.err == nil && r.stream != nil {
		s.ctrl.stats.acquired.Add(1)
		s.releaseLate(r.stream)
	}
}

func (s *Session) releaseLate(st Stream) {
	if err := st.Release(); err != nil {
		s.ctrl.log.Warnw("capture_release_failed", "session", s.id, "err", err)
	}
	s.ctrl.stats.released.Add(1)
}

// sample runs the fixed-interval sampler until a terminal outcome.
// Without a decoder no ticker is started and only manual entry or
// cancellation can end the session.
func (s *Session) sample(ctx context.Context) Outcome {
	var tick <-chan time.Time
	if s.canDecode {
		t := time.NewTicker(s.ctrl.cfg.Interval)
		s.ctrl.stats.samplersStarted.Add(1)
		defer func() {
			t.Stop()
			s.ctrl.stats.samplersStopped.Add(1)
		}()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return s.ended(Cancelled, "", false, nil)
		case <-s.cancelCh:
			return s.ended(Cancelled, "", false, nil)
		case p := <-s.manualCh:
			return s.ended(Decoded, p, true, nil)
		case <-tick:
			s.ctrl.stats.ticks.Add(1)
			if !s.stream.Ready() {
				continue
			}
			s.transition(Scanning)

			img, err := s.stream.Frame(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return s.ended(Cancelled, "", false, nil)
				}
				return s.ended(Failed, "", false, fmt.Errorf("capture frame: %w", err))
			}
			payload, err := s.ctrl.dec.Decode(img)
			if err != nil {
				return s.ended(Failed, "", false, fmt.Errorf("%w: %w", ErrDecoderFault, err))
			}
			if payload = strings.TrimSpace(payload); payload != "" {
				return s.ended(Decoded, payload, false, nil)
			}
		}
	}
}

func (s *Session) ended(st State, payload string, manual bool, err error) Outcome {
	return Outcome{
		SessionID: s.id,
		State:     st,
		Payload:   payload,
		Manual:    manual,
		Err:       err,
		At:        s.ctrl.now(),
	}
}

// settle closes the session to manual entry. A payload accepted before
// that wins over a cancel or failure decided at the same time.
func (s *Session) settle(out Outcome) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled = true
	if out.State == Decoded {
		return out
	}
	select {
	case p := <-s.manualCh:
		return s.ended(Decoded, p, true, nil)
	default:
		return out
	}
}

// finish releases the stream, publishes the outcome exactly once and
// returns the controller to Idle.
func (s *Session) finish(out Outcome) {
	s.finishOnce.Do(func() {
		out = s.settle(out)

		s.mu.Lock()
		st := s.stream
		s.mu.Unlock()
		if st != nil {
			s.releaseOnce.Do(func() { s.releaseLate(st) })
		}

		if out.State == Decoded {
			s.ctrl.stats.decoded.Add(1)
		}
		s.transition(out.State)

		s.mu.Lock()
		s.outcome = out
		for _, w := range s.watchers {
			close(w)
		}
		s.watchers = nil
		s.mu.Unlock()

		s.ctrl.detach(s)
		close(s.done)

		if out.Err != nil {
			s.ctrl.log.Infow("capture_session_failed", "session", s.id, "err", out.Err)
		} else {
			s.ctrl.log.Infow("capture_session_ended", "session", s.id, "state", out.State, "manual", out.Manual)
		}
	})
}
