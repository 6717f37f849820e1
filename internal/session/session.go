package session

import "time"

const historyLimit = 20

// PendingCall is a partially filled tool call carried across turns while
// the dispatcher asks for the missing fields.
type PendingCall struct {
	Intent string            `json:"intent"`
	Fields map[string]string `json:"fields"`
	// Token pins the eventual create to one mutation even if the
	// completed call is retried by the front end.
	IdempotencyToken string `json:"idempotency_token,omitempty"`
}

type Turn struct {
	Role string    `json:"role"` // "user" | "assistant"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session is one conversation's state. A session is owned by exactly one
// in-flight turn at a time; different sessions run in parallel.
type Session struct {
	ID      string       `json:"id"`
	Pending *PendingCall `json:"pending,omitempty"`
	History []Turn       `json:"history,omitempty"`
	Updated time.Time    `json:"updated"`
}

func New(id string) *Session {
	return &Session{ID: id}
}

// Remember appends a turn, keeping the ring bounded. History is context
// only, never safety-critical state.
func (s *Session) Remember(role, text string, at time.Time) {
	s.History = append(s.History, Turn{Role: role, Text: text, At: at})
	if len(s.History) > historyLimit {
		s.History = s.History[len(s.History)-historyLimit:]
	}
	s.Updated = at
}
