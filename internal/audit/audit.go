package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"venueflow/internal/event"
)

// SystemActor authors steps and entries written by the engine itself.
const SystemActor = "system"

type Action string

const (
	ActionSubmitted            Action = "Submitted"
	ActionApproved             Action = "Approved"
	ActionRejected             Action = "Rejected"
	ActionModificationRequired Action = "ModificationRequired"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApproved, ActionRejected, ActionModificationRequired:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown approval action: %s", s)
	}
}

// ApprovalStep records one approval transition. Rows are never updated or deleted.
type ApprovalStep struct {
	ID        string      `json:"id"`
	EventID   string      `json:"eventId"`
	Stage     event.Stage `json:"stage"`
	Action    Action      `json:"action"`
	ActorID   string      `json:"actorId"`
	Comments  string      `json:"comments,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

type EntryKind string

const (
	EntryAllocationSucceeded EntryKind = "allocation_succeeded"
	EntryAllocationFailed    EntryKind = "allocation_failed"
	EntryBookingsReleased    EntryKind = "bookings_released"
	EntryProvisionalExpired  EntryKind = "provisional_expired"
)

// Entry is an append-only ledger line for allocation and booking decisions.
type Entry struct {
	ID        string          `json:"id"`
	EventID   string          `json:"eventId,omitempty"`
	Kind      EntryKind       `json:"kind"`
	Actor     string          `json:"actor"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewEntry marshals metadata into an Entry. A nil metadata leaves the column NULL.
func NewEntry(id, eventID string, kind EntryKind, actor string, metadata any, at time.Time) Entry {
	var raw json.RawMessage
	if metadata != nil {
		b, _ := json.Marshal(metadata)
		raw = b
	}
	return Entry{ID: id, EventID: eventID, Kind: kind, Actor: actor, Metadata: raw, CreatedAt: at}
}
