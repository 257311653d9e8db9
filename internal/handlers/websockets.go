package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bombona_tracker/internal/capture"
	"bombona_tracker/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 << 20 // one encoded camera frame
	outBuffer  = 16
)

// Envelope types written to the capture stream.
const (
	envReady      = "ready"
	envSession    = "session"
	envTransition = "transition"
	envResult     = "result"
	envError      = "error"
)

// Commands accepted on the capture stream as text messages.
const (
	cmdOpen   = "open"
	cmdGrant  = "grant"
	cmdDeny   = "deny"
	cmdCancel = "cancel"
	cmdManual = "manual"
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	Kind  string      `json:"kind,omitempty"`
}

type wsCommand struct {
	Type    string `json:"type"`
	Reason  string `json:"reason,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// Requests are bearer-authenticated; origins are not checked.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// captureStream is the client side of a capture session. Binary messages are
// encoded camera frames; text messages are wsCommand values. Every state
// change and the final result are written back as envelopes.
//
// @Summary      Capture stream
// @Description  Websocket. Binary messages are frames; text commands are open, grant, deny, cancel and manual
// @Tags         capture
// @Param        source        query  string  false  "push | device"
// @Param        access_token  query  string  false  "Bearer token, for clients that cannot set headers"
// @Success      101
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/capture/ws [get]
// @Security     BearerAuth
func (h *Handler) captureStream(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	uid := userID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()
	if src == service.SourcePush {
		// a browser camera does not outlive its connection
		defer h.services.Release(uid)
	}

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := make(chan wsEnvelope, outBuffer)
	done := make(chan struct{})
	s := &captureConn{h: h, uid: uid, src: src, out: out}
	go s.read(ctx, conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := writeEnvelope(conn, wsEnvelope{Type: envReady, Data: gin.H{"source": src}}); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	// Writer/select loop. gorilla allows a single concurrent writer.
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case env := <-out:
			if err := writeEnvelope(conn, env); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err, "type", env.Type)
				}
				return
			}
		}
	}
}

func writeEnvelope(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

// captureConn handles the inbound side of one capture stream.
type captureConn struct {
	h   *Handler
	uid int
	src service.Source
	out chan<- wsEnvelope
}

func (s *captureConn) send(ctx context.Context, env wsEnvelope) {
	select {
	case s.out <- env:
	case <-ctx.Done():
	}
}

func (s *captureConn) sendErr(ctx context.Context, err error) {
	_, kind := classify(err)
	s.send(ctx, wsEnvelope{Type: envError, Error: err.Error(), Kind: kind})
}

func (s *captureConn) read(ctx context.Context, conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if s.h.log != nil {
				s.h.log.Infow("ws_read_closed", "err", err, "user_id", s.uid)
			}
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			s.frame(ctx, data)
		case websocket.TextMessage:
			var cmd wsCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				s.sendErr(ctx, fmt.Errorf("%w: bad command: %v", service.ErrValidation, err))
				continue
			}
			s.command(ctx, cmd)
		}
	}
}

func (s *captureConn) frame(ctx context.Context, data []byte) {
	if s.src != service.SourcePush {
		s.sendErr(ctx, fmt.Errorf("%w: frames are only accepted for the push source", service.ErrValidation))
		return
	}
	err := s.h.services.PushFrame(s.uid, data)
	switch {
	case err == nil:
	case errors.Is(err, capture.ErrNoStream):
		// frames sent before the grant was consumed
	default:
		s.sendErr(ctx, fmt.Errorf("%w: %v", service.ErrValidation, err))
	}
}

func (s *captureConn) command(ctx context.Context, cmd wsCommand) {
	svc := s.h.services
	switch cmd.Type {
	case cmdOpen:
		v, err := svc.Open(ctx, s.uid, s.src)
		if err != nil {
			s.sendErr(ctx, err)
			return
		}
		s.send(ctx, wsEnvelope{Type: envSession, Data: v})
		go s.follow(ctx)
	case cmdGrant:
		if err := svc.Grant(s.uid); err != nil {
			s.sendErr(ctx, err)
		}
	case cmdDeny:
		if err := svc.Deny(s.uid, cmd.Reason); err != nil {
			s.sendErr(ctx, err)
		}
	case cmdCancel:
		if err := svc.Cancel(s.uid, s.src); err != nil {
			s.sendErr(ctx, err)
		}
	case cmdManual:
		_, followed := svc.Current(s.uid, s.src)
		res, err := svc.Submit(ctx, s.uid, s.src, cmd.Payload)
		if followed && !errors.Is(err, service.ErrValidation) {
			// the follower reports the session's result
			return
		}
		s.result(ctx, res, err)
	default:
		s.sendErr(ctx, fmt.Errorf("%w: unknown command %q", service.ErrValidation, cmd.Type))
	}
}

// follow streams the latest session's transitions and then its result.
func (s *captureConn) follow(ctx context.Context) {
	svc := s.h.services
	watch, err := svc.Watch(s.uid, s.src)
	if err != nil {
		s.sendErr(ctx, err)
		return
	}
	for tr := range watch {
		s.send(ctx, wsEnvelope{Type: envTransition, Data: tr})
	}
	res, err := svc.Await(ctx, s.uid, s.src)
	if ctx.Err() != nil {
		return
	}
	s.result(ctx, res, err)
}

func (s *captureConn) result(ctx context.Context, res service.ScanResult, err error) {
	env := wsEnvelope{Type: envResult, Data: res, Error: res.Error}
	if err != nil {
		_, env.Kind = classify(err)
		env.Error = err.Error()
	} else if res.Outcome.Err != nil {
		_, env.Kind = classify(res.Outcome.Err)
	}
	s.send(ctx, env)
}
