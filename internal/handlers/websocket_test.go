package handlers

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"bombona_tracker/internal/capture"
	"bombona_tracker/internal/models"
	"bombona_tracker/internal/service"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Kind  string          `json:"kind"`
}

func dialCapture(t *testing.T, s *service.Service, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(newTestRouter(s))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/api/v1/capture/ws"
	u.RawQuery = query

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestWebSocket_RequiresToken(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&service.Service{Authorization: &mockAuth{}}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/api/v1/capture/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	_, resp, err := dialer.Dial(u.String(), nil)
	if err == nil {
		t.Fatalf("expected handshake to fail without a token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestWebSocket_SessionStreamsTransitionsAndResult(t *testing.T) {
	ct := models.Container{ID: "c1", QRCode: "BOM-1"}
	mc := &mockCapture{
		view: service.SessionView{ID: "s1", Source: service.SourcePush, State: capture.Requesting},
		transitions: []capture.Transition{
			{SessionID: "s1", From: capture.Requesting, To: capture.Active},
			{SessionID: "s1", From: capture.Active, To: capture.Decoded},
		},
		await: service.ScanResult{
			Outcome:   capture.Outcome{SessionID: "s1", State: capture.Decoded, Payload: "BOM-1"},
			Container: &ct,
		},
	}
	conn := dialCapture(t, signedIn(&service.Service{Capture: mc}), "access_token=tok&source=push")

	if env := readEnvelope(t, conn); env.Type != envReady {
		t.Fatalf("first envelope: %+v", env)
	}

	if err := conn.WriteJSON(wsCommand{Type: cmdGrant}); err != nil {
		t.Fatalf("write grant: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("frame")); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if err := conn.WriteJSON(wsCommand{Type: cmdOpen}); err != nil {
		t.Fatalf("write open: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.Type != envSession {
		t.Fatalf("expected session, got %+v", env)
	}
	for _, want := range []string{"active", "decoded"} {
		env = readEnvelope(t, conn)
		if env.Type != envTransition {
			t.Fatalf("expected transition, got %+v", env)
		}
		var tr struct {
			To string `json:"to"`
		}
		_ = json.Unmarshal(env.Data, &tr)
		if tr.To != want {
			t.Fatalf("transition to %q, want %q", tr.To, want)
		}
	}
	env = readEnvelope(t, conn)
	if env.Type != envResult || env.Error != "" {
		t.Fatalf("expected clean result, got %+v", env)
	}
	var res service.ScanResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if res.Container == nil || res.Container.QRCode != "BOM-1" {
		t.Fatalf("result=%+v", res)
	}

	grants, _, frames, _ := mc.snapshot()
	if grants != 1 || frames != 1 {
		t.Fatalf("grants=%d frames=%d", grants, frames)
	}
}

func TestWebSocket_BadCommandAndRelease(t *testing.T) {
	mc := &mockCapture{}
	conn := dialCapture(t, signedIn(&service.Service{Capture: mc}), "access_token=tok")
	readEnvelope(t, conn) // ready

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"fly"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != envError || env.Kind != kindValidation {
		t.Fatalf("expected validation error, got %+v", env)
	}

	if err := conn.WriteJSON(wsCommand{Type: cmdDeny, Reason: "user said no"}); err != nil {
		t.Fatalf("write deny: %v", err)
	}
	_ = conn.Close()

	deadline := time.Now().Add(time.Second)
	for {
		_, denials, _, released := mc.snapshot()
		if len(released) == 1 && released[0] == testUser.ID && len(denials) == 1 && denials[0] == "user said no" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("denials=%v released=%v", denials, released)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_ManualWithoutSessionReturnsResult(t *testing.T) {
	ct := models.Container{ID: "c1", QRCode: "BOM-7"}
	mc := &mockCapture{submit: service.ScanResult{
		Outcome:   capture.Outcome{State: capture.Decoded, Payload: "BOM-7", Manual: true},
		Container: &ct,
	}}
	conn := dialCapture(t, signedIn(&service.Service{Capture: mc}), "access_token=tok")
	readEnvelope(t, conn) // ready

	if err := conn.WriteJSON(wsCommand{Type: cmdManual, Payload: "BOM-7"}); err != nil {
		t.Fatalf("write manual: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != envResult {
		t.Fatalf("expected result, got %+v", env)
	}
}

func TestWebSocket_GrantWithoutRequestIsReported(t *testing.T) {
	mc := &mockCapture{answerErr: fmt.Errorf("%w: %w", service.ErrConflict, capture.ErrNoRequest)}
	conn := dialCapture(t, signedIn(&service.Service{Capture: mc}), "access_token=tok")
	readEnvelope(t, conn) // ready

	if err := conn.WriteJSON(wsCommand{Type: cmdGrant}); err != nil {
		t.Fatalf("write grant: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != envError || env.Kind != kindConflict {
		t.Fatalf("expected conflict error, got %+v", env)
	}
}
