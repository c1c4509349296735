package booking

import (
	"time"

	"venueflow/internal/event"
)

type Status string

const (
	StatusProvisional Status = "provisional"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
)

type VenueBooking struct {
	ID          string     `json:"id"`
	EventID     string     `json:"eventId"`
	VenueID     string     `json:"venueId"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     time.Time  `json:"endTime"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

func (b VenueBooking) Window() event.Window {
	return event.Window{Start: b.StartTime, End: b.EndTime}
}

type ResourceBooking struct {
	ID          string     `json:"id"`
	EventID     string     `json:"eventId"`
	ResourceID  string     `json:"resourceId"`
	Quantity    int        `json:"quantity"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     time.Time  `json:"endTime"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

func (b ResourceBooking) Window() event.Window {
	return event.Window{Start: b.StartTime, End: b.EndTime}
}

// ReservedQuantity sums quantities of bookings; callers pass only the
// confirmed, overlapping set.
func ReservedQuantity(bs []ResourceBooking) int {
	n := 0
	for _, b := range bs {
		n += b.Quantity
	}
	return n
}

// EventIDs returns the distinct event ids of bookings in first-seen order.
func EventIDs[B VenueBooking | ResourceBooking](bs []B, seen map[string]bool) []string {
	var out []string
	for _, b := range bs {
		var id string
		switch v := any(b).(type) {
		case VenueBooking:
			id = v.EventID
		case ResourceBooking:
			id = v.EventID
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Released counts bookings cancelled by a housekeeping pass.
type Released struct {
	Venues    int `json:"venues"`
	Resources int `json:"resources"`
}

func (r Released) Total() int { return r.Venues + r.Resources }
