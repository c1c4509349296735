package event

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusCompleted Status = "Completed"
	StatusRunning   Status = "Running"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusCompleted, StatusRunning:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Valid() bool { return w.Start.Before(w.End) }

// Overlaps is the strict overlap test; touching endpoints do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && w.End.After(o.Start)
}

type Event struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	StartTime           time.Time `json:"startTime"`
	EndTime             time.Time `json:"endTime"`
	ParticipantCount    int       `json:"participantCount"`
	VenueTypePreference string    `json:"venueTypePreference,omitempty"`
	SchoolID            string    `json:"schoolId"`
	DepartmentID        string    `json:"departmentId"`
	CoordinatorID       string    `json:"coordinatorId"`
	Status              Status    `json:"status"`
	Stage               Stage     `json:"approvalStage"`
	RejectionReason     string    `json:"rejectionReason,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func (e Event) Window() Window {
	return Window{Start: e.StartTime, End: e.EndTime}
}

// Consistent reports whether Status agrees with Stage. Running and Completed
// are only reachable after the chain finished with Approved.
func (e Event) Consistent() bool {
	switch e.Status {
	case StatusRunning, StatusCompleted:
		return e.Stage == StageApproved
	default:
		return StatusFor(e.Stage) == e.Status
	}
}

type ResourceRequest struct {
	ID                string `json:"id"`
	EventID           string `json:"eventId"`
	ResourceID        string `json:"resourceId"`
	Quantity          int    `json:"quantity"`
	IsAllocated       bool   `json:"isAllocated"`
	AllocatedQuantity int    `json:"allocatedQuantity"`
}
