package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bombona_tracker/internal/capture"
	"bombona_tracker/internal/logger"
	"bombona_tracker/internal/models"
)

// Source selects the camera behind a capture session.
type Source string

const (
	// SourcePush is the user's own browser camera, streamed over websocket.
	SourcePush Source = "push"
	// SourceDevice is the camera attached to the server, shared by all users.
	SourceDevice Source = "device"
)

func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "", SourcePush:
		return SourcePush, nil
	case SourceDevice:
		return SourceDevice, nil
	}
	return "", fmt.Errorf("%w: unknown capture source %q", ErrValidation, s)
}

type SessionView struct {
	ID         string        `json:"id"`
	Source     Source        `json:"source"`
	State      capture.State `json:"state" swaggertype:"string" enums:"idle,requesting,active,scanning,decoded,cancelled,failed"`
	ManualOnly bool          `json:"manual_only"`
}

// ScanResult is a terminal capture outcome with the container it resolved to.
type ScanResult struct {
	Outcome   capture.Outcome   `json:"outcome"`
	Error     string            `json:"error,omitempty"`
	Container *models.Container `json:"container,omitempty"`
}

var ErrNoSession = errors.New("no capture session")

type pushCapture struct {
	cam  *capture.PushCamera
	ctrl *capture.Controller
}

type sessionKey struct {
	user   int
	source Source
}

type CaptureService struct {
	scanner Scanner
	cfg     capture.Config
	dec     capture.Decoder
	log     *logger.Logger

	// sessions outlive the requests that open them
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	push        map[int]*pushCapture
	latest      map[sessionKey]*capture.Session
	device      *capture.Controller
	deviceOwner int
	deviceSess  *capture.Session
}

func NewCaptureService(scanner Scanner, cfg capture.Config, device capture.Camera, dec capture.Decoder, log *logger.Logger) *CaptureService {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &CaptureService{
		scanner: scanner,
		cfg:     cfg,
		dec:     dec,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		push:    make(map[int]*pushCapture),
		latest:  make(map[sessionKey]*capture.Session),
	}
	if device != nil {
		s.device = capture.NewController(device, dec, cfg, log.Named("device"))
	}
	return s
}

var _ Capture = (*CaptureService)(nil)

func (s *CaptureService) pushFor(userID int) *pushCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.push[userID]
	if !ok {
		cam := capture.NewPushCamera()
		pc = &pushCapture{
			cam:  cam,
			ctrl: capture.NewController(cam, s.dec, s.cfg, s.log.With("user_id", userID)),
		}
		s.push[userID] = pc
	}
	return pc
}

// controller returns the controller userID may drive for source.
func (s *CaptureService) controller(userID int, source Source) (*capture.Controller, error) {
	switch source {
	case SourcePush, "":
		return s.pushFor(userID).ctrl, nil
	case SourceDevice:
		if s.device == nil {
			return nil, fmt.Errorf("%w: no capture device configured", capture.ErrCapabilityDenied)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if live := s.device.Current(); live != nil && live == s.deviceSess && s.deviceOwner != userID {
			return nil, capture.ErrCameraBusy
		}
		return s.device, nil
	}
	return nil, fmt.Errorf("%w: unknown capture source %q", ErrValidation, source)
}

func view(sess *capture.Session, source Source) SessionView {
	return SessionView{ID: sess.ID(), Source: source, State: sess.State(), ManualOnly: sess.ManualOnly()}
}

func (s *CaptureService) Open(_ context.Context, userID int, source Source) (SessionView, error) {
	ctrl, err := s.controller(userID, source)
	if err != nil {
		return SessionView{}, err
	}
	sess, err := ctrl.Open(s.ctx)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	s.latest[sessionKey{userID, source}] = sess
	if source == SourceDevice {
		s.deviceOwner, s.deviceSess = userID, sess
	}
	s.mu.Unlock()
	s.log.Infow("capture_opened", "user_id", userID, "source", source, "session", sess.ID(), "manual_only", sess.ManualOnly())
	return view(sess, source), nil
}

func (s *CaptureService) live(userID int, source Source) (*capture.Session, error) {
	ctrl, err := s.controller(userID, source)
	if err != nil {
		return nil, err
	}
	sess := ctrl.Current()
	if sess == nil {
		return nil, ErrNoSession
	}
	return sess, nil
}

// recent returns the live session or, once it ended, the last one userID opened on source.
func (s *CaptureService) recent(userID int, source Source) (*capture.Session, error) {
	if sess, err := s.live(userID, source); err == nil {
		return sess, nil
	} else if !errors.Is(err, ErrNoSession) {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.latest[sessionKey{userID, source}]; ok {
		return sess, nil
	}
	return nil, ErrNoSession
}

func (s *CaptureService) Current(userID int, source Source) (SessionView, bool) {
	sess, err := s.live(userID, source)
	if err != nil {
		return SessionView{}, false
	}
	return view(sess, source), true
}

func (s *CaptureService) Cancel(userID int, source Source) error {
	sess, err := s.live(userID, source)
	if err != nil {
		return err
	}
	sess.Cancel()
	return nil
}

// Submit is manual entry: it ends the live session with payload, or resolves
// payload directly when no session is open.
func (s *CaptureService) Submit(ctx context.Context, userID int, source Source, payload string) (ScanResult, error) {
	ctrl, err := s.controller(userID, source)
	if err != nil {
		return ScanResult{}, err
	}
	out, err := ctrl.Resolve(ctx, payload)
	if err != nil {
		if errors.Is(err, capture.ErrEmptyPayload) {
			return ScanResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return ScanResult{}, err
	}
	return s.resolve(ctx, out)
}

// Await blocks until the user's most recent session ends and resolves its outcome.
func (s *CaptureService) Await(ctx context.Context, userID int, source Source) (ScanResult, error) {
	sess, err := s.recent(userID, source)
	if err != nil {
		return ScanResult{}, err
	}
	out, err := sess.Wait(ctx)
	if err != nil {
		return ScanResult{}, err
	}
	return s.resolve(ctx, out)
}

// Resolve maps a terminal outcome to its container.
func (s *CaptureService) resolve(ctx context.Context, out capture.Outcome) (ScanResult, error) {
	res := ScanResult{Outcome: out, Error: out.Error()}
	if out.State != capture.Decoded {
		return res, nil
	}
	c, err := s.scanner.Lookup(ctx, out.Payload)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.Container = &c
	return res, nil
}

// Watch follows the user's most recent session. The channel is closed when it ends.
func (s *CaptureService) Watch(userID int, source Source) (<-chan capture.Transition, error) {
	sess, err := s.recent(userID, source)
	if err != nil {
		return nil, err
	}
	return sess.Watch(), nil
}

// Grant answers the open camera request of the user's push session.
func (s *CaptureService) Grant(userID int) error {
	return answerErr(s.pushFor(userID).cam.Grant())
}

func (s *CaptureService) Deny(userID int, reason string) error {
	return answerErr(s.pushFor(userID).cam.Deny(reason))
}

func answerErr(err error) error {
	if errors.Is(err, capture.ErrNoRequest) || errors.Is(err, capture.ErrAnswered) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

func (s *CaptureService) PushFrame(userID int, data []byte) error {
	return s.pushFor(userID).cam.Push(data)
}

// Release tears down the user's push camera, cancelling any live session on it.
func (s *CaptureService) Release(userID int) {
	s.mu.Lock()
	pc, ok := s.push[userID]
	delete(s.push, userID)
	delete(s.latest, sessionKey{userID, SourcePush})
	s.mu.Unlock()
	if ok {
		pc.ctrl.Close()
	}
}

// Close cancels every session and waits for their resources to be released.
func (s *CaptureService) Close() {
	s.mu.Lock()
	all := make([]*pushCapture, 0, len(s.push))
	for id, pc := range s.push {
		all = append(all, pc)
		delete(s.push, id)
	}
	s.mu.Unlock()

	for _, pc := range all {
		pc.ctrl.Close()
	}
	if s.device != nil {
		s.device.Close()
	}
	s.cancel()
}
