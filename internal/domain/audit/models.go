package audit

import (
	"encoding/json"
	"time"
)

// Entry is what a mutation hands to the recorder.
type Entry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Reason     string
	Override   bool
	RequestID  string
	Before     any
	After      any
}

// Event is a persisted audit row.
type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Reason     string          `json:"reason,omitempty"`
	Override   bool            `json:"override"`
	RequestID  string          `json:"requestId,omitempty"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after"`
	PrevHash   string          `json:"prevHash,omitempty"`
	Hash       string          `json:"hash"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Filter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	From       time.Time
	To         time.Time
}

// Break describes an audit row whose hash no longer matches its content or
// predecessor.
type Break struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	EventID    string `json:"eventId"`
	Reason     string `json:"reason"`
}

type VerifyReport struct {
	Entities int     `json:"entities"`
	Events   int     `json:"events"`
	Breaks   []Break `json:"breaks"`
}

func (r VerifyReport) OK() bool {
	return len(r.Breaks) == 0
}
