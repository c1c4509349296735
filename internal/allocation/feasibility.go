package allocation

import (
	"context"

	"github.com/shopspring/decimal"

	"venueflow/internal/event"
	"venueflow/internal/store"
	"venueflow/internal/venue"
)

// Report previews what allocation would do right now, without booking.
type Report struct {
	EventID    string       `json:"eventId"`
	Stage      event.Stage  `json:"approvalStage"`
	Feasible   bool         `json:"feasible"`
	Candidates int          `json:"candidateVenues"`
	Venue      *venue.Venue `json:"venue,omitempty"`
	// VenueUtilization is participants / capacity of the chosen venue.
	VenueUtilization decimal.Decimal        `json:"venueUtilization"`
	Resources        []ResourceAvailability `json:"resources"`
	Conflicts        []Conflict             `json:"conflicts"`
}

type ResourceAvailability struct {
	RequestID  string `json:"requestId"`
	ResourceID string `json:"resourceId"`
	Name       string `json:"name,omitempty"`
	Requested  int    `json:"requested"`
	Total      int    `json:"total"`
	Booked     int    `json:"booked"`
	Available  int    `json:"available"`
	Sufficient bool   `json:"sufficient"`
	// Utilization is (booked + requested) / total: above 1 means a shortage.
	Utilization decimal.Decimal `json:"utilization"`
}

// CheckFeasibility runs the venue and resource checks of allocation in a
// read-only transaction. It may be called at any stage and never writes.
func (e *Engine) CheckFeasibility(ctx context.Context, eventID string) (Report, error) {
	var rep Report
	err := e.Store.WithReadOnlyTx(ctx, func(tx store.Tx) error {
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		p, err := buildPlan(ctx, tx, ev)
		if err != nil {
			return err
		}
		rep = report(ev, p)
		return nil
	})
	return rep, err
}

func report(ev *event.Event, p plan) Report {
	rep := Report{
		EventID:          ev.ID,
		Stage:            ev.Stage,
		Feasible:         len(p.conflicts) == 0,
		Candidates:       p.candidates,
		Venue:            p.venue,
		VenueUtilization: decimal.Zero,
		Resources:        make([]ResourceAvailability, 0, len(p.requests)),
		Conflicts:        p.conflicts,
	}
	if rep.Conflicts == nil {
		rep.Conflicts = []Conflict{}
	}
	if p.venue != nil {
		rep.VenueUtilization = ratio(ev.ParticipantCount, p.venue.Capacity)
	}
	for _, rp := range p.requests {
		ra := ResourceAvailability{
			RequestID:   rp.req.ID,
			ResourceID:  rp.req.ResourceID,
			Requested:   rp.req.Quantity,
			Booked:      rp.booked,
			Available:   max(rp.available, 0),
			Sufficient:  rp.sufficient(),
			Utilization: decimal.Zero,
		}
		if rp.resource != nil {
			ra.Name = rp.resource.Name
			ra.Total = rp.resource.TotalQuantity
			ra.Utilization = ratio(rp.booked+rp.req.Quantity, rp.resource.TotalQuantity)
		}
		rep.Resources = append(rep.Resources, ra)
	}
	return rep
}

// ratio is num/den rounded to two places; zero when den is not positive.
func ratio(num, den int) decimal.Decimal {
	if den <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(num)).Div(decimal.NewFromInt(int64(den))).Round(2)
}
