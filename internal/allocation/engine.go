package allocation

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"venueflow/internal/apperr"
	"venueflow/internal/audit"
	"venueflow/internal/booking"
	"venueflow/internal/event"
	"venueflow/internal/metrics"
	"venueflow/internal/resource"
	"venueflow/internal/store"
	"venueflow/internal/venue"
)

// errUnallocatable aborts the booking savepoint; it never leaves the package.
var errUnallocatable = errors.New("allocation: conflicts found")

type Engine struct {
	Store   store.Store
	Metrics *metrics.Metrics

	Now   func() time.Time
	NewID func() string
}

func NewEngine(st store.Store, m *metrics.Metrics) *Engine {
	return &Engine{Store: st, Metrics: m, Now: time.Now, NewID: uuid.NewString}
}

// AllocateEvent runs allocation for an event that has cleared every human
// approval, in its own transaction. On success the event is finalized.
func (e *Engine) AllocateEvent(ctx context.Context, eventID string) (Result, error) {
	started := time.Now()
	var res Result
	err := e.Store.WithTx(ctx, func(tx store.Tx) error {
		ev, err := tx.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if ev.Stage != event.StageHeadApproved {
			return apperr.NotReady("event %s is at stage %s, allocation needs %s", ev.ID, ev.Stage, event.StageHeadApproved)
		}
		res, err = e.Allocate(ctx, tx, ev, audit.SystemActor)
		if err != nil {
			return err
		}
		if res.Success {
			return e.Finalize(ctx, tx, ev)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	e.Observe(res, time.Since(started))
	return res, nil
}

// Allocate reserves a venue and every requested resource for ev inside tx.
// Bookings are made in a savepoint: either all of them survive or none do.
// Each attempt appends a ledger entry authored by actor. Conflicts are
// reported in the Result; the error is reserved for storage failures.
func (e *Engine) Allocate(ctx context.Context, tx store.Tx, ev *event.Event, actor string) (Result, error) {
	res := Result{EventID: ev.ID}

	err := tx.Savepoint(ctx, func(sp store.Tx) error {
		p, err := buildPlan(ctx, sp, ev)
		if err != nil {
			return err
		}
		if len(p.conflicts) > 0 {
			res.Conflicts = p.conflicts
			return errUnallocatable
		}
		return e.book(ctx, sp, ev, p, &res)
	})
	switch {
	case err == nil:
		res.Success = true
	case errors.Is(err, errUnallocatable):
		res.VenueBooking = nil
		res.ResourceBookings = nil
	default:
		return Result{}, err
	}

	kind := audit.EntryAllocationSucceeded
	if !res.Success {
		kind = audit.EntryAllocationFailed
	}
	entry := audit.NewEntry(e.NewID(), ev.ID, kind, actor, res, e.Now())
	if err := tx.InsertLedgerEntry(ctx, &entry); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Finalize moves a successfully allocated event to Approved and appends the
// system step that closes the chain.
func (e *Engine) Finalize(ctx context.Context, tx store.Tx, ev *event.Event) error {
	if err := tx.UpdateEventStage(ctx, ev.ID, event.StageApproved, event.StatusApproved, nil); err != nil {
		return err
	}
	step := audit.ApprovalStep{
		ID:        e.NewID(),
		EventID:   ev.ID,
		Stage:     event.StageApproved,
		Action:    audit.ActionApproved,
		ActorID:   audit.SystemActor,
		Comments:  "venue and resources allocated",
		CreatedAt: e.Now(),
	}
	if err := tx.InsertApprovalStep(ctx, &step); err != nil {
		return err
	}
	ev.Stage = event.StageApproved
	ev.Status = event.StatusApproved
	return nil
}

// Observe records an attempt in metrics. Call it after commit.
func (e *Engine) Observe(res Result, took time.Duration) {
	e.Metrics.AllocationAttempt(res.Success, took)
	for _, c := range res.Conflicts {
		e.Metrics.Conflict(string(c.Kind))
	}
	if !res.Success {
		log.Printf("allocation failed event=%s conflicts=%d", res.EventID, len(res.Conflicts))
	}
}

func (e *Engine) book(ctx context.Context, tx store.Tx, ev *event.Event, p plan, res *Result) error {
	now := e.Now()

	vb := booking.VenueBooking{
		ID:        e.NewID(),
		EventID:   ev.ID,
		VenueID:   p.venue.ID,
		StartTime: ev.StartTime,
		EndTime:   ev.EndTime,
		Status:    booking.StatusConfirmed,
		CreatedAt: now,
	}
	if err := tx.InsertVenueBooking(ctx, &vb); err != nil {
		return err
	}
	res.VenueBooking = &vb

	for _, rp := range p.requests {
		rb := booking.ResourceBooking{
			ID:         e.NewID(),
			EventID:    ev.ID,
			ResourceID: rp.req.ResourceID,
			Quantity:   rp.req.Quantity,
			StartTime:  ev.StartTime,
			EndTime:    ev.EndTime,
			Status:     booking.StatusConfirmed,
			CreatedAt:  now,
		}
		if err := tx.InsertResourceBooking(ctx, &rb); err != nil {
			return err
		}
		if err := tx.MarkResourceRequestAllocated(ctx, rp.req.ID, rp.req.Quantity); err != nil {
			return err
		}
		res.ResourceBookings = append(res.ResourceBookings, rb)
	}
	return nil
}

// plan is what the current state allows for one event. Building it only reads.
type plan struct {
	venue      *venue.Venue
	candidates int
	requests   []requestPlan
	conflicts  []Conflict
}

type requestPlan struct {
	req       event.ResourceRequest
	resource  *resource.Resource
	booked    int
	available int
}

func (r requestPlan) sufficient() bool {
	return r.resource != nil && r.resource.IsActive && r.available >= r.req.Quantity
}

func buildPlan(ctx context.Context, tx store.Tx, ev *event.Event) (plan, error) {
	var p plan
	w := ev.Window()
	if !w.Valid() {
		p.conflicts = append(p.conflicts, badWindowConflict())
		return p, nil
	}

	candidates, err := tx.ListCandidateVenues(ctx, venue.Filter{
		MinCapacity: ev.ParticipantCount,
		Type:        ev.VenueTypePreference,
	})
	if err != nil {
		return p, err
	}
	p.candidates = len(candidates)

	if len(candidates) == 0 {
		p.conflicts = append(p.conflicts, noVenueConflict(ev.ParticipantCount, ev.VenueTypePreference))
	} else {
		seen := map[string]bool{}
		var busy []string
		for i := range candidates {
			overlapping, err := tx.ListOverlappingVenueBookings(ctx, candidates[i].ID, w)
			if err != nil {
				return p, err
			}
			if len(overlapping) == 0 {
				p.venue = &candidates[i]
				break
			}
			busy = append(busy, booking.EventIDs(overlapping, seen)...)
		}
		if p.venue == nil {
			p.conflicts = append(p.conflicts, venuesBusyConflict(len(candidates), busy))
		}
	}

	reqs, err := tx.ListResourceRequests(ctx, ev.ID)
	if err != nil {
		return p, err
	}
	// Several requests of one event may name the same resource; each one is
	// checked against what the earlier ones already claimed.
	claimed := map[string]int{}
	for _, req := range reqs {
		rp, c, err := planRequest(ctx, tx, req, w, claimed[req.ResourceID])
		if err != nil {
			return p, err
		}
		p.requests = append(p.requests, rp)
		if c != nil {
			p.conflicts = append(p.conflicts, *c)
			continue
		}
		claimed[req.ResourceID] += req.Quantity
	}
	return p, nil
}

// planRequest checks one request. booked counts confirmed overlapping
// bookings plus claimed, the quantity earlier requests of the same event take.
func planRequest(ctx context.Context, tx store.Tx, req event.ResourceRequest, w event.Window, claimed int) (requestPlan, *Conflict, error) {
	rp := requestPlan{req: req}
	res, err := tx.GetResource(ctx, req.ResourceID)
	if errors.Is(err, apperr.ErrNotFound) {
		c := unknownResourceConflict(req.ResourceID, req.Quantity, "resource not found")
		return rp, &c, nil
	}
	if err != nil {
		return rp, nil, err
	}
	rp.resource = res
	if !res.IsActive {
		c := unknownResourceConflict(req.ResourceID, req.Quantity, "resource is inactive")
		return rp, &c, nil
	}

	overlapping, err := tx.ListOverlappingResourceBookings(ctx, req.ResourceID, w)
	if err != nil {
		return rp, nil, err
	}
	rp.booked = booking.ReservedQuantity(overlapping) + claimed
	rp.available = res.TotalQuantity - rp.booked
	if rp.sufficient() {
		return rp, nil, nil
	}
	c := shortageConflict(req.ResourceID, req.Quantity, rp.available, booking.EventIDs(overlapping, map[string]bool{}))
	return rp, &c, nil
}
