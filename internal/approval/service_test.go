package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venueflow/internal/allocation"
	"venueflow/internal/apperr"
	"venueflow/internal/audit"
	"venueflow/internal/booking"
	"venueflow/internal/event"
	"venueflow/internal/notify"
	"venueflow/internal/resource"
	"venueflow/internal/store/memstore"
	"venueflow/internal/venue"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time { return day.Add(time.Duration(hour) * time.Hour) }

// recorder captures dispatched notifications.
type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recorder) recipients(t notify.Type) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		if n.Type == t {
			out = append(out, n.UserID)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

func newService(st *memstore.Store) (*Service, *recorder) {
	ids := memstore.SeqIDs("id")
	clock := func() time.Time { return day }

	eng := allocation.NewEngine(st, nil)
	eng.Now, eng.NewID = clock, ids

	rec := &recorder{}
	svc := NewService(st, eng, notify.NewDispatcher(rec, nil), nil)
	svc.Now, svc.NewID = clock, ids
	return svc, rec
}

func campus() *memstore.Store {
	st := memstore.New()
	memstore.SeedCampus(st)
	st.AddVenue(venue.Venue{ID: "v-60", Name: "Room 60", Capacity: 60, IsActive: true})
	st.AddVenue(venue.Venue{ID: "v-100", Name: "Main Hall", Capacity: 100, IsActive: true})
	return st
}

func TestSubmit_FromDraftNotifiesActiveDepartmentHeads(t *testing.T) {
	st := campus()
	st.AddEvent(memstore.NewEvent("ev-1", event.StageDraft, at(10), 2*time.Hour, 50))
	svc, rec := newService(st)

	ev, err := svc.Submit(context.Background(), memstore.CoordinatorID, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, event.StageSubmitted, ev.Stage)
	assert.Equal(t, event.StatusSubmitted, ev.Status)

	steps := st.Steps("ev-1")
	require.Len(t, steps, 1)
	assert.Equal(t, audit.ActionSubmitted, steps[0].Action)
	assert.Equal(t, memstore.CoordinatorID, steps[0].ActorID)

	// Inactive and other-department heads are left out.
	assert.Equal(t, []string{memstore.HodID}, rec.recipients(notify.TypeApprovalRequired))
}

func TestSubmit_Rules(t *testing.T) {
	st := campus()
	st.AddEvent(memstore.NewEvent("ev-draft", event.StageDraft, at(10), time.Hour, 10))
	st.AddEvent(memstore.NewEvent("ev-submitted", event.StageSubmitted, at(10), time.Hour, 10))
	st.AddEvent(memstore.NewEvent("ev-bad-window", event.StageDraft, at(10), 0, 10))
	svc, _ := newService(st)
	ctx := context.Background()

	_, err := svc.Submit(ctx, memstore.HodID, "ev-draft")
	assert.True(t, errors.Is(err, apperr.ErrPermissionDenied), "only the owner submits")

	_, err = svc.Submit(ctx, memstore.CoordinatorID, "ev-submitted")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	_, err = svc.Submit(ctx, memstore.CoordinatorID, "ev-bad-window")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.Submit(ctx, memstore.CoordinatorID, "ev-missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	assert.Zero(t, st.Writes())
}

func TestProcessApproval_DeanCannotActAtSubmitted(t *testing.T) {
	st := campus()
	st.AddEvent(memstore.NewEvent("ev-1", event.StageSubmitted, at(10), time.Hour, 10))
	svc, rec := newService(st)

	_, err := svc.ProcessApproval(context.Background(), memstore.DeanID, audit.ActionApproved, "", "ev-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrPermissionDenied))

	ev, _ := st.Event("ev-1")
	assert.Equal(t, event.StageSubmitted, ev.Stage)
	assert.Empty(t, st.Steps("ev-1"))
	assert.Empty(t, rec.sent)
}

func TestProcessApproval_ScopeMismatchIsDenied(t *testing.T) {
	st := campus()
	st.AddEvent(memstore.NewEvent("ev-sub", event.StageSubmitted, at(10), time.Hour, 10))
	st.AddEvent(memstore.NewEvent("ev-hod", event.StageHodApproved, at(10), time.Hour, 10))
	svc, _ := newService(st)
	ctx := context.Background()

	_, err := svc.ProcessApproval(ctx, memstore.OtherHodID, audit.ActionApproved, "", "ev-sub")
	assert.True(t, errors.Is(err, apperr.ErrPermissionDenied))

	_, err = svc.ProcessApproval(ctx, memstore.InactiveHodID, audit.ActionApproved, "", "ev-sub")
	assert.True(t, errors.Is(err, apperr.ErrPermissionDenied))

	_, err = svc.ProcessApproval(ctx, memstore.OtherDeanID, audit.ActionApproved, "", "ev-hod")
	assert.True(t, errors.Is(err, apperr.ErrPermissionDenied))

	_, err = svc.ProcessApproval(ctx, "u-ghost", audit.ActionApproved, "", "ev-sub")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestProcessApproval_FullChainAllocates(t *testing.T) {
	st := campus()
	st.AddResource(resource.Resource{ID: "r-chairs", TotalQuantity: 100, IsActive: true})
	st.AddEvent(memstore.NewEvent("ev-1", event.StageDraft, at(10), 2*time.Hour, 50),
		event.ResourceRequest{ID: "rq-1", ResourceID: "r-chairs", Quantity: 50})
	svc, rec := newService(st)
	ctx := context.Background()

	_, err := svc.Submit(ctx, memstore.CoordinatorID, "ev-1")
	require.NoError(t, err)
	rec.reset()

	out, err := svc.ProcessApproval(ctx, memstore.HodID, audit.ActionApproved, "looks good", "ev-1")
	require.NoError(t, err)
	assert.Equal(t, event.StageHodApproved, out.Event.Stage)
	assert.Equal(t, event.StatusSubmitted, out.Event.Status)
	assert.Nil(t, out.Allocation)
	assert.Equal(t, []string{memstore.DeanID}, rec.recipients(notify.TypeApprovalRequired))
	assert.Equal(t, []string{memstore.CoordinatorID}, rec.recipients(notify.TypeStageAdvanced))
	rec.reset()

	out, err = svc.ProcessApproval(ctx, memstore.DeanID, audit.ActionApproved, "", "ev-1")
	require.NoError(t, err)
	assert.Equal(t, event.StageDeanApproved, out.Event.Stage)
	assert.Equal(t, []string{memstore.InstitutionHeadID}, rec.recipients(notify.TypeApprovalRequired))
	rec.reset()

	out, err = svc.ProcessApproval(ctx, memstore.InstitutionHeadID, audit.ActionApproved, "", "ev-1")
	require.NoError(t, err)
	require.NotNil(t, out.Allocation)
	assert.True(t, out.Allocation.Success)
	assert.Equal(t, event.StageApproved, out.Event.Stage)
	assert.Equal(t, event.StatusApproved, out.Event.Status)
	assert.Equal(t, audit.ActionApproved, out.Step.Action)
	assert.Equal(t, event.StageHeadApproved, out.Step.Stage)
	assert.Equal(t, []string{memstore.CoordinatorID}, rec.recipients(notify.TypeApproved))
	assert.Empty(t, rec.recipients(notify.TypeApprovalRequired))

	stored, _ := st.Event("ev-1")
	assert.Equal(t, event.StageApproved, stored.Stage)
	require.Len(t, st.VenueBookings(), 1)
	assert.Equal(t, "v-60", st.VenueBookings()[0].VenueID)
	assert.True(t, st.Requests("ev-1")[0].IsAllocated)

	var stages []event.Stage
	var actors []string
	for _, s := range st.Steps("ev-1") {
		stages = append(stages, s.Stage)
		actors = append(actors, s.ActorID)
	}
	assert.Equal(t, []event.Stage{
		event.StageSubmitted, event.StageHodApproved, event.StageDeanApproved,
		event.StageHeadApproved, event.StageApproved,
	}, stages)
	assert.Equal(t, audit.SystemActor, actors[len(actors)-1])

	history, err := svc.History(ctx, "ev-1")
	require.NoError(t, err)
	assert.Len(t, history, 5)

	_, err = svc.ProcessApproval(ctx, memstore.InstitutionHeadID, audit.ActionApproved, "", "ev-1")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "approved is terminal")
}

// The venue is free but one of two requested resources is short: nothing is
// booked and the Head's approval is recorded as ModificationRequired at the
// stage the event was already in.
func TestProcessApproval_FinalApprovalWithShortageRevertsStage(t *testing.T) {
	st := campus()
	st.AddResource(resource.Resource{ID: "r-chairs", TotalQuantity: 100, IsActive: true})
	st.AddResource(resource.Resource{ID: "r-mics", TotalQuantity: 20, IsActive: true})
	st.AddResourceBooking(booking.ResourceBooking{
		ID: "rb-x", EventID: "ev-other", ResourceID: "r-mics", Quantity: 15,
		StartTime: at(9), EndTime: at(11), Status: booking.StatusConfirmed,
	})
	st.AddEvent(memstore.NewEvent("ev-1", event.StageDeanApproved, at(10), 2*time.Hour, 50),
		event.ResourceRequest{ID: "rq-1", ResourceID: "r-chairs", Quantity: 40},
		event.ResourceRequest{ID: "rq-2", ResourceID: "r-mics", Quantity: 10},
	)
	svc, rec := newService(st)

	out, err := svc.ProcessApproval(context.Background(), memstore.InstitutionHeadID, audit.ActionApproved, "", "ev-1")
	require.NoError(t, err)

	require.NotNil(t, out.Allocation)
	assert.False(t, out.Allocation.Success)
	require.Len(t, out.Allocation.Conflicts, 1)
	assert.Equal(t, allocation.KindResourceShortage, out.Allocation.Conflicts[0].Kind)

	assert.Equal(t, event.StageDeanApproved, out.Event.Stage)
	assert.Equal(t, event.StatusSubmitted, out.Event.Status)
	assert.Equal(t, audit.ActionModificationRequired, out.Step.Action)
	assert.Equal(t, event.StageDeanApproved, out.Step.Stage)
	assert.Contains(t, out.Step.Comments, "need 10, only 5 available")

	stored, _ := st.Event("ev-1")
	assert.Equal(t, event.StageDeanApproved, stored.Stage)
	assert.Equal(t, event.StatusSubmitted, stored.Status)

	assert.Empty(t, st.VenueBookings())
	assert.Len(t, st.ResourceBookings(), 1)
	for _, rq := range st.Requests("ev-1") {
		assert.False(t, rq.IsAllocated, rq.ID)
	}

	steps := st.Steps("ev-1")
	require.Len(t, steps, 1)
	assert.Equal(t, memstore.InstitutionHeadID, steps[0].ActorID)

	entries := st.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EntryAllocationFailed, entries[0].Kind)

	assert.Equal(t, []string{memstore.CoordinatorID}, rec.recipients(notify.TypeAllocationFailed))

	// The event is still awaiting the Head, who may retry.
	out, err = svc.ProcessApproval(context.Background(), memstore.InstitutionHeadID, audit.ActionApproved, "", "ev-1")
	require.NoError(t, err)
	assert.False(t, out.Allocation.Success)
}

func TestProcessApproval_Reject(t *testing.T) {
	st := campus()
	st.AddEvent(memstore.NewEvent("ev-1", event.StageHodApproved, at(10), time.Hour, 10))
	svc, rec := newService(st)

	out, err := svc.ProcessApproval(context.Background(), memstore.DeanID, audit.ActionRejected, "budget", "ev-1")
	require.NoError(t, err)
	assert.Equal(t, event.StageRejected, out.Event.Stage)
	assert.Equal(t, event.StatusRejected, out.Event.Status)
	assert.Equal(t, "budget", out.Event.RejectionReason)

	stored, _ := st.Event("ev-1")
	assert.Equal(t, "budget", stored.RejectionReason)
	assert.Equal(t, []string{memstore.CoordinatorID}, rec.recipients(notify.TypeRejected))

	_, err = svc.ProcessApproval(context.Background(), memstore.DeanID, audit.ActionApproved, "", "ev-1")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "rejected is terminal")
}

func TestProcessApproval_ModificationRequiredLoopsBackToSubmitted(t *testing.T) {
	st := campus()
	st.AddEvent(memstore.NewEvent("ev-1", event.StageSubmitted, at(10), time.Hour, 10))
	svc, rec := newService(st)
	ctx := context.Background()

	out, err := svc.ProcessApproval(ctx, memstore.HodID, audit.ActionModificationRequired, "fix the title", "ev-1")
	require.NoError(t, err)
	assert.Equal(t, event.StageModificationRequired, out.Event.Stage)
	assert.Equal(t, event.StatusSubmitted, out.Event.Status)
	assert.Equal(t, []string{memstore.CoordinatorID}, rec.recipients(notify.TypeModificationRequired))

	_, err = svc.ProcessApproval(ctx, memstore.HodID, audit.ActionApproved, "", "ev-1")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "nothing to approve until resubmitted")

	ev, err := svc.Submit(ctx, memstore.CoordinatorID, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, event.StageSubmitted, ev.Stage)

	out, err = svc.ProcessApproval(ctx, memstore.HodID, audit.ActionApproved, "", "ev-1")
	require.NoError(t, err)
	assert.Equal(t, event.StageHodApproved, out.Event.Stage)
}

func TestProcessApproval_NotifierFailureDoesNotFailTransition(t *testing.T) {
	st := campus()
	st.AddEvent(memstore.NewEvent("ev-1", event.StageSubmitted, at(10), time.Hour, 10))
	svc, rec := newService(st)
	rec.err = errors.New("smtp down")

	out, err := svc.ProcessApproval(context.Background(), memstore.HodID, audit.ActionApproved, "", "ev-1")
	require.NoError(t, err)
	assert.Equal(t, event.StageHodApproved, out.Event.Stage)
	assert.NotEmpty(t, rec.sent)
}

func TestProcessApproval_StorageFailureRollsBackEverything(t *testing.T) {
	st := campus()
	st.AddEvent(memstore.NewEvent("ev-1", event.StageDeanApproved, at(10), 2*time.Hour, 50))
	st.InjectFault("InsertApprovalStep", errors.New("disk full"))
	svc, rec := newService(st)

	_, err := svc.ProcessApproval(context.Background(), memstore.InstitutionHeadID, audit.ActionApproved, "", "ev-1")
	require.Error(t, err)

	stored, _ := st.Event("ev-1")
	assert.Equal(t, event.StageDeanApproved, stored.Stage)
	assert.Empty(t, st.VenueBookings())
	assert.Empty(t, st.Entries())
	assert.Empty(t, rec.sent, "nothing is announced for a rolled back transition")
}

func TestProcessApproval_UnknownAction(t *testing.T) {
	st := campus()
	st.AddEvent(memstore.NewEvent("ev-1", event.StageSubmitted, at(10), time.Hour, 10))
	svc, _ := newService(st)

	_, err := svc.ProcessApproval(context.Background(), memstore.HodID, audit.ActionSubmitted, "", "ev-1")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
