package audit

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"golang.org/x/crypto/blake2b"
)

type chainPayload struct {
	ID         string `json:"id"`
	ActorID    string `json:"actorId"`
	Action     string `json:"action"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Reason     string `json:"reason"`
	Override   bool   `json:"override"`
	RequestID  string `json:"requestId"`
	Before     any    `json:"before"`
	After      any    `json:"after"`
	CreatedAt  string `json:"createdAt"`
}

// ComputeHash chains an event to the previous hash of the same entity.
// Snapshots are re-encoded first so that the jsonb round trip in Postgres
// does not change the digest.
func ComputeHash(prevHash string, evt Event) (string, error) {
	before, err := canonical(evt.Before)
	if err != nil {
		return "", err
	}
	after, err := canonical(evt.After)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(chainPayload{
		ID:         evt.ID,
		ActorID:    evt.ActorID,
		Action:     evt.Action,
		EntityType: evt.EntityType,
		EntityID:   evt.EntityID,
		Reason:     evt.Reason,
		Override:   evt.Override,
		RequestID:  evt.RequestID,
		Before:     before,
		After:      after,
		CreatedAt:  evt.CreatedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	h.Write([]byte(prevHash))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func canonical(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyChain walks one entity's events in insertion order.
func VerifyChain(events []Event) []Break {
	var breaks []Break
	prev := ""
	for _, evt := range events {
		if evt.PrevHash != prev {
			breaks = append(breaks, Break{EntityType: evt.EntityType, EntityID: evt.EntityID, EventID: evt.ID, Reason: "previous hash mismatch"})
		}
		want, err := ComputeHash(evt.PrevHash, evt)
		switch {
		case err != nil:
			breaks = append(breaks, Break{EntityType: evt.EntityType, EntityID: evt.EntityID, EventID: evt.ID, Reason: "unreadable snapshot: " + err.Error()})
		case want != evt.Hash:
			breaks = append(breaks, Break{EntityType: evt.EntityType, EntityID: evt.EntityID, EventID: evt.ID, Reason: "content hash mismatch"})
		}
		prev = evt.Hash
	}
	return breaks
}
