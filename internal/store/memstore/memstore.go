// Package memstore is an in-memory store.Store. Transactions run one at a
// time against a private copy of the state that replaces the shared state
// only on success, which gives serializable semantics and full rollback.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"venueflow/internal/apperr"
	"venueflow/internal/audit"
	"venueflow/internal/booking"
	"venueflow/internal/event"
	"venueflow/internal/resource"
	"venueflow/internal/store"
	"venueflow/internal/user"
	"venueflow/internal/venue"
)

// ErrReadOnly is returned by mutating calls inside WithReadOnlyTx.
var ErrReadOnly = errors.New("memstore: write in read-only transaction")

type state struct {
	events           map[string]event.Event
	requests         map[string]event.ResourceRequest
	users            map[string]user.User
	venues           map[string]venue.Venue
	resources        map[string]resource.Resource
	venueBookings    []booking.VenueBooking
	resourceBookings []booking.ResourceBooking
	steps            []audit.ApprovalStep
	entries          []audit.Entry
}

func newState() *state {
	return &state{
		events:    map[string]event.Event{},
		requests:  map[string]event.ResourceRequest{},
		users:     map[string]user.User{},
		venues:    map[string]venue.Venue{},
		resources: map[string]resource.Resource{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.venues {
		c.venues[k] = v
	}
	for k, v := range s.resources {
		c.resources[k] = v
	}
	c.venueBookings = append([]booking.VenueBooking(nil), s.venueBookings...)
	c.resourceBookings = append([]booking.ResourceBooking(nil), s.resourceBookings...)
	c.steps = append([]audit.ApprovalStep(nil), s.steps...)
	c.entries = append([]audit.Entry(nil), s.entries...)
	return c
}

type Store struct {
	mu     sync.Mutex
	st     *state
	writes int
	faults map[string]error

	// Now stamps created_at columns. Defaults to time.Now.
	Now func() time.Time
}

func New() *Store {
	return &Store{st: newState(), faults: map[string]error{}, Now: time.Now}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) WithReadOnlyTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{st: s.st.clone(), readOnly: readOnly, faults: s.faults, now: s.Now}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	s.writes += tx.writes
	return nil
}

// Writes counts mutations committed since the store was created.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// InjectFault makes the named Tx method (e.g. "InsertApprovalStep") fail with
// err until cleared with a nil err.
func (s *Store) InjectFault(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

// Seeding and inspection helpers. They bypass transactions and are meant for
// tests and local demos.

func (s *Store) AddUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

func (s *Store) AddVenue(v venue.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.venues[v.ID] = v
}

func (s *Store) AddResource(r resource.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.resources[r.ID] = r
}

func (s *Store) AddEvent(e event.Event, requests ...event.ResourceRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.events[e.ID] = e
	for _, r := range requests {
		r.EventID = e.ID
		s.st.requests[r.ID] = r
	}
}

func (s *Store) AddVenueBooking(b booking.VenueBooking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.venueBookings = append(s.st.venueBookings, b)
}

func (s *Store) AddResourceBooking(b booking.ResourceBooking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.resourceBookings = append(s.st.resourceBookings, b)
}

func (s *Store) Event(id string) (event.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.st.events[id]
	return e, ok
}

func (s *Store) Requests(eventID string) []event.ResourceRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return requestsOf(s.st, eventID)
}

func (s *Store) VenueBookings() []booking.VenueBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]booking.VenueBooking(nil), s.st.venueBookings...)
}

func (s *Store) ResourceBookings() []booking.ResourceBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]booking.ResourceBooking(nil), s.st.resourceBookings...)
}

func (s *Store) Steps(eventID string) []audit.ApprovalStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.ApprovalStep
	for _, st := range s.st.steps {
		if st.EventID == eventID {
			out = append(out, st)
		}
	}
	return out
}

func (s *Store) Entries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.st.entries...)
}

func requestsOf(st *state, eventID string) []event.ResourceRequest {
	var out []event.ResourceRequest
	for _, r := range st.requests {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type Tx struct {
	st       *state
	readOnly bool
	writes   int
	faults   map[string]error
	now      func() time.Time
}

func (t *Tx) fault(method string) error {
	return t.faults[method]
}

func (t *Tx) write(method string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if err := t.fault(method); err != nil {
		return err
	}
	t.writes++
	return nil
}

func (t *Tx) Savepoint(ctx context.Context, fn func(tx store.Tx) error) error {
	nested := &Tx{st: t.st.clone(), readOnly: t.readOnly, faults: t.faults, now: t.now}
	if err := fn(nested); err != nil {
		return err
	}
	t.st = nested.st
	t.writes += nested.writes
	return nil
}

func (t *Tx) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	e, ok := t.st.events[id]
	if !ok {
		return nil, apperr.NotFound("event %s", id)
	}
	return &e, nil
}

func (t *Tx) GetEventForUpdate(ctx context.Context, id string) (*event.Event, error) {
	if err := t.fault("GetEventForUpdate"); err != nil {
		return nil, err
	}
	return t.GetEvent(ctx, id)
}

func (t *Tx) UpdateEventStage(ctx context.Context, id string, stage event.Stage, status event.Status, rejectionReason *string) error {
	if err := t.write("UpdateEventStage"); err != nil {
		return err
	}
	e, ok := t.st.events[id]
	if !ok {
		return apperr.NotFound("event %s", id)
	}
	e.Stage = stage
	e.Status = status
	if rejectionReason != nil {
		e.RejectionReason = *rejectionReason
	}
	e.UpdatedAt = t.now()
	t.st.events[id] = e
	return nil
}

func (t *Tx) UpdateEventStatus(ctx context.Context, id string, status event.Status) error {
	if err := t.write("UpdateEventStatus"); err != nil {
		return err
	}
	e, ok := t.st.events[id]
	if !ok {
		return apperr.NotFound("event %s", id)
	}
	e.Status = status
	e.UpdatedAt = t.now()
	t.st.events[id] = e
	return nil
}

func (t *Tx) ListEndedEventIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ended []event.Event
	for _, e := range t.st.events {
		if (e.Status == event.StatusApproved || e.Status == event.StatusRunning) && !e.EndTime.After(cutoff) {
			ended = append(ended, e)
		}
	}
	sort.Slice(ended, func(i, j int) bool {
		if !ended[i].EndTime.Equal(ended[j].EndTime) {
			return ended[i].EndTime.Before(ended[j].EndTime)
		}
		return ended[i].ID < ended[j].ID
	})
	out := make([]string, 0, len(ended))
	for _, e := range ended {
		out = append(out, e.ID)
	}
	return out, nil
}

func (t *Tx) ListResourceRequests(ctx context.Context, eventID string) ([]event.ResourceRequest, error) {
	return requestsOf(t.st, eventID), nil
}

func (t *Tx) MarkResourceRequestAllocated(ctx context.Context, requestID string, quantity int) error {
	if err := t.write("MarkResourceRequestAllocated"); err != nil {
		return err
	}
	r, ok := t.st.requests[requestID]
	if !ok {
		return apperr.NotFound("resource request %s", requestID)
	}
	r.IsAllocated = true
	r.AllocatedQuantity = quantity
	t.st.requests[requestID] = r
	return nil
}

func (t *Tx) ResetResourceRequests(ctx context.Context, eventID string) error {
	for id, r := range t.st.requests {
		if r.EventID != eventID || !r.IsAllocated {
			continue
		}
		if err := t.write("ResetResourceRequests"); err != nil {
			return err
		}
		r.IsAllocated = false
		r.AllocatedQuantity = 0
		t.st.requests[id] = r
	}
	return nil
}

func (t *Tx) GetUser(ctx context.Context, id string) (*user.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s", id)
	}
	return &u, nil
}

func (t *Tx) ListActiveUsersByRole(ctx context.Context, role user.Role, scope user.Scope) ([]user.User, error) {
	var out []user.User
	for _, u := range t.st.users {
		if u.IsActive && u.Role == role && scope.Covers(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *Tx) ListCandidateVenues(ctx context.Context, f venue.Filter) ([]venue.Venue, error) {
	var out []venue.Venue
	for _, v := range t.st.venues {
		if v.Bookable(f) {
			out = append(out, v)
		}
	}
	venue.SortCandidates(out)
	return out, nil
}

func (t *Tx) GetResource(ctx context.Context, id string) (*resource.Resource, error) {
	r, ok := t.st.resources[id]
	if !ok {
		return nil, apperr.NotFound("resource %s", id)
	}
	return &r, nil
}

func (t *Tx) ListOverlappingVenueBookings(ctx context.Context, venueID string, w event.Window) ([]booking.VenueBooking, error) {
	var out []booking.VenueBooking
	for _, b := range t.st.venueBookings {
		if b.VenueID == venueID && b.Status == booking.StatusConfirmed && b.Window().Overlaps(w) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Tx) ListOverlappingResourceBookings(ctx context.Context, resourceID string, w event.Window) ([]booking.ResourceBooking, error) {
	var out []booking.ResourceBooking
	for _, b := range t.st.resourceBookings {
		if b.ResourceID == resourceID && b.Status == booking.StatusConfirmed && b.Window().Overlaps(w) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Tx) InsertVenueBooking(ctx context.Context, b *booking.VenueBooking) error {
	if err := t.write("InsertVenueBooking"); err != nil {
		return err
	}
	b.CreatedAt = t.now()
	t.st.venueBookings = append(t.st.venueBookings, *b)
	return nil
}

func (t *Tx) InsertResourceBooking(ctx context.Context, b *booking.ResourceBooking) error {
	if err := t.write("InsertResourceBooking"); err != nil {
		return err
	}
	b.CreatedAt = t.now()
	t.st.resourceBookings = append(t.st.resourceBookings, *b)
	return nil
}

func (t *Tx) CancelBookingsForEvent(ctx context.Context, eventID string, at time.Time) (booking.Released, error) {
	return t.cancelWhere("CancelBookingsForEvent", at,
		func(evID string, st booking.Status, _ time.Time) bool {
			return evID == eventID && st != booking.StatusCancelled
		})
}

func (t *Tx) CancelStaleProvisionalBookings(ctx context.Context, cutoff, at time.Time) (booking.Released, error) {
	return t.cancelWhere("CancelStaleProvisionalBookings", at,
		func(_ string, st booking.Status, createdAt time.Time) bool {
			return st == booking.StatusProvisional && createdAt.Before(cutoff)
		})
}

func (t *Tx) cancelWhere(method string, at time.Time, match func(eventID string, st booking.Status, createdAt time.Time) bool) (booking.Released, error) {
	var out booking.Released
	cancelledAt := at
	for i, b := range t.st.venueBookings {
		if !match(b.EventID, b.Status, b.CreatedAt) {
			continue
		}
		if err := t.write(method); err != nil {
			return out, err
		}
		b.Status = booking.StatusCancelled
		b.CancelledAt = &cancelledAt
		t.st.venueBookings[i] = b
		out.Venues++
	}
	for i, b := range t.st.resourceBookings {
		if !match(b.EventID, b.Status, b.CreatedAt) {
			continue
		}
		if err := t.write(method); err != nil {
			return out, err
		}
		b.Status = booking.StatusCancelled
		b.CancelledAt = &cancelledAt
		t.st.resourceBookings[i] = b
		out.Resources++
	}
	return out, nil
}

func (t *Tx) InsertApprovalStep(ctx context.Context, s *audit.ApprovalStep) error {
	if err := t.write("InsertApprovalStep"); err != nil {
		return err
	}
	t.st.steps = append(t.st.steps, *s)
	return nil
}

func (t *Tx) ListApprovalSteps(ctx context.Context, eventID string) ([]audit.ApprovalStep, error) {
	var out []audit.ApprovalStep
	for _, s := range t.st.steps {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t *Tx) InsertLedgerEntry(ctx context.Context, e *audit.Entry) error {
	if err := t.write("InsertLedgerEntry"); err != nil {
		return err
	}
	t.st.entries = append(t.st.entries, *e)
	return nil
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*Tx)(nil)
)
