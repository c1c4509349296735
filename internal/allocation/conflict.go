package allocation

import (
	"fmt"
	"strings"

	"venueflow/internal/booking"
)

type ConflictKind string

const (
	KindVenueUnavailable ConflictKind = "venue_unavailable"
	KindResourceShortage ConflictKind = "resource_shortage"
	KindTimeOverlap      ConflictKind = "time_overlap"
)

// Conflict explains one reason an allocation cannot go through. It is a
// result value, never an error.
type Conflict struct {
	Kind        ConflictKind `json:"kind"`
	ResourceID  string       `json:"resourceId,omitempty"`
	EventIDs    []string     `json:"eventIds"`
	Detail      string       `json:"detail"`
	Suggestions []string     `json:"suggestions"`
	Requested   int          `json:"requested"`
	Available   int          `json:"available"`
}

func (c Conflict) String() string {
	if c.ResourceID != "" {
		return fmt.Sprintf("%s (%s): %s", c.Kind, c.ResourceID, c.Detail)
	}
	return fmt.Sprintf("%s: %s", c.Kind, c.Detail)
}

// Result is the outcome of one allocation attempt. Bookings are only set on
// success; a failed attempt leaves nothing behind.
type Result struct {
	EventID          string                    `json:"eventId"`
	Success          bool                      `json:"success"`
	VenueBooking     *booking.VenueBooking     `json:"venueBooking,omitempty"`
	ResourceBookings []booking.ResourceBooking `json:"resourceBookings,omitempty"`
	Conflicts        []Conflict                `json:"conflicts,omitempty"`
}

// Explanation renders every conflict on one line, suitable for approval comments.
func (r Result) Explanation() string {
	if r.Success {
		return ""
	}
	parts := make([]string, 0, len(r.Conflicts))
	for _, c := range r.Conflicts {
		p := c.String()
		if len(c.EventIDs) > 0 {
			p += " [conflicting events: " + strings.Join(c.EventIDs, ", ") + "]"
		}
		if len(c.Suggestions) > 0 {
			p += " Suggestions: " + strings.Join(c.Suggestions, "; ") + "."
		}
		parts = append(parts, p)
	}
	return "Allocation failed: " + strings.Join(parts, " | ")
}

func noVenueConflict(participants int, venueType string) Conflict {
	detail := fmt.Sprintf("no active venue holds %d participants", participants)
	if venueType != "" {
		detail += fmt.Sprintf(" with type %q", venueType)
	}
	return Conflict{
		Kind:     KindVenueUnavailable,
		EventIDs: []string{},
		Detail:   detail,
		Suggestions: []string{
			"reduce the participant count",
			"choose a different time slot",
		},
	}
}

func venuesBusyConflict(candidates int, eventIDs []string) Conflict {
	if eventIDs == nil {
		eventIDs = []string{}
	}
	return Conflict{
		Kind:     KindVenueUnavailable,
		EventIDs: eventIDs,
		Detail:   fmt.Sprintf("all %d candidate venues are booked during the requested window", candidates),
		Suggestions: []string{
			"pick another time slot",
			"reduce the participant count so a smaller venue qualifies",
		},
	}
}

func shortageConflict(resourceID string, requested, available int, eventIDs []string) Conflict {
	if available < 0 {
		available = 0
	}
	if eventIDs == nil {
		eventIDs = []string{}
	}
	return Conflict{
		Kind:       KindResourceShortage,
		ResourceID: resourceID,
		EventIDs:   eventIDs,
		Detail:     fmt.Sprintf("need %d, only %d available", requested, available),
		Suggestions: []string{
			"reduce the requested quantity",
			"choose a different time slot",
			"substitute a similar resource",
		},
		Requested: requested,
		Available: available,
	}
}

func unknownResourceConflict(resourceID string, requested int, detail string) Conflict {
	return Conflict{
		Kind:        KindResourceShortage,
		ResourceID:  resourceID,
		EventIDs:    []string{},
		Detail:      detail,
		Suggestions: []string{"substitute a similar resource"},
		Requested:   requested,
	}
}

func badWindowConflict() Conflict {
	return Conflict{
		Kind:        KindTimeOverlap,
		EventIDs:    []string{},
		Detail:      "event start must be before its end",
		Suggestions: []string{"correct the event time window"},
	}
}
