package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

var (
	// ErrNoStream is returned when a frame arrives while no stream is bound.
	ErrNoStream = errors.New("no stream bound")
	// ErrNoRequest is returned when a grant or denial arrives while no
	// camera request is open.
	ErrNoRequest = errors.New("no camera request pending")
	// ErrAnswered is returned for a second answer to the same request.
	ErrAnswered = errors.New("camera request already answered")
)

// PushCamera is a camera living on a remote client. The client answers each
// request with Grant or Deny and then pushes encoded frames. An answer only
// applies to the request open when it arrives.
type PushCamera struct {
	mu      sync.Mutex
	pending chan error
	stream  *pushStream
}

func NewPushCamera() *PushCamera {
	return &PushCamera{}
}

// Grant answers the open request positively.
func (p *PushCamera) Grant() error { return p.answer(nil) }

// Deny answers the open request with reason.
func (p *PushCamera) Deny(reason string) error {
	if reason == "" {
		reason = "permission denied"
	}
	return p.answer(errors.New(reason))
}

func (p *PushCamera) answer(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return ErrNoRequest
	}
	select {
	case p.pending <- err:
		return nil
	default:
		return ErrAnswered
	}
}

// openRequest starts a new request window, dropping any answer left from an
// earlier one. The controller calls it from Open so that an answer sent right
// after Open is kept even before Acquire runs.
func (p *PushCamera) openRequest() {
	p.mu.Lock()
	p.pending = make(chan error, 1)
	p.mu.Unlock()
}

func (p *PushCamera) closeRequest(ch chan error) {
	p.mu.Lock()
	if p.pending == ch {
		p.pending = nil
	}
	p.mu.Unlock()
}

func (p *PushCamera) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	p.mu.Lock()
	if p.pending == nil {
		p.pending = make(chan error, 1)
	}
	ch := p.pending
	p.mu.Unlock()

	select {
	case err := <-ch:
		p.closeRequest(ch)
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		p.closeRequest(ch)
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return nil, ErrCameraBusy
	}
	p.stream = &pushStream{cam: p, constraints: c}
	return p.stream, nil
}

// Push decodes an encoded frame and makes it the stream's current frame.
func (p *PushCamera) Push(data []byte) error {
	p.mu.Lock()
	st := p.stream
	p.mu.Unlock()
	if st == nil {
		return ErrNoStream
	}
	img, err := DecodeFrame(data)
	if err != nil {
		return err
	}
	st.set(img)
	return nil
}

// Bound reports whether a stream is currently held.
func (p *PushCamera) Bound() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

func (p *PushCamera) unbind(st *pushStream) {
	p.mu.Lock()
	if p.stream == st {
		p.stream = nil
	}
	p.mu.Unlock()
}

type pushStream struct {
	cam         *PushCamera
	constraints Constraints

	mu       sync.Mutex
	latest   image.Image
	frames   int
	released bool
}

func (s *pushStream) set(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.latest = img
	s.frames++
}

func (s *pushStream) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.released && s.latest != nil
}

func (s *pushStream) Frame(context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, fmt.Errorf("frame: %w", ErrNoStream)
	}
	if s.latest == nil {
		return nil, errors.New("frame: nothing buffered")
	}
	return s.latest, nil
}

func (s *pushStream) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.latest = nil
	s.mu.Unlock()

	s.cam.unbind(s)
	return nil
}
