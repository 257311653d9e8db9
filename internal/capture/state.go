package capture

import (
	"fmt"
	"time"
)

// State is the lifecycle position of a capture session.
type State int

const (
	Idle State = iota
	Requesting
	Active
	Scanning
	Decoded
	Cancelled
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Requesting: "requesting",
	Active:     "active",
	Scanning:   "scanning",
	Decoded:    "decoded",
	Cancelled:  "cancelled",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == Decoded || s == Cancelled || s == Failed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown capture state %q", string(b))
}

// Transition is published to watchers on every state change.
type Transition struct {
	SessionID string    `json:"session_id"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	At        time.Time `json:"at"`
}

// Outcome is the single terminal result of a session.
type Outcome struct {
	SessionID string    `json:"session_id"`
	State     State     `json:"state" swaggertype:"string" enums:"idle,requesting,active,scanning,decoded,cancelled,failed"`
	Payload   string    `json:"payload,omitempty"`
	Manual    bool      `json:"manual"`
	Err       error     `json:"-"`
	At        time.Time `json:"at"`
}

// Error returns the failure message, empty unless the session failed.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
