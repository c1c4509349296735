package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"venueflow/internal/allocation"
	"venueflow/internal/apperr"
	"venueflow/internal/audit"
	"venueflow/internal/event"
	"venueflow/internal/metrics"
	"venueflow/internal/notify"
	"venueflow/internal/store"
	"venueflow/internal/user"
)

type Service struct {
	Store      store.Store
	Engine     *allocation.Engine
	Dispatcher *notify.Dispatcher
	Metrics    *metrics.Metrics

	Now   func() time.Time
	NewID func() string
}

func NewService(st store.Store, eng *allocation.Engine, d *notify.Dispatcher, m *metrics.Metrics) *Service {
	return &Service{Store: st, Engine: eng, Dispatcher: d, Metrics: m, Now: time.Now, NewID: uuid.NewString}
}

// Outcome describes one processed approval. Allocation is set only when the
// approval completed the human part of the chain.
type Outcome struct {
	Event      event.Event        `json:"event"`
	Step       audit.ApprovalStep `json:"step"`
	Allocation *allocation.Result `json:"allocation,omitempty"`
}

// Submit moves a draft, or an event sent back for modification, into the
// chain at Submitted. Only the owning coordinator may submit.
func (s *Service) Submit(ctx context.Context, coordinatorID, eventID string) (event.Event, error) {
	var (
		out    event.Event
		queued []notify.Notification
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		queued = nil

		ev, err := tx.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, coordinatorID); err != nil {
			return err
		}
		if ev.CoordinatorID != coordinatorID {
			return apperr.PermissionDenied("only the event coordinator may submit event %s", ev.ID)
		}
		resubmission := ev.Stage == event.StageModificationRequired
		if ev.Status != event.StatusDraft && !resubmission {
			return apperr.InvalidState("event %s cannot be submitted from status %s", ev.ID, ev.Status)
		}
		if !ev.Window().Valid() {
			return apperr.Validation("event start must be before its end")
		}
		if ev.ParticipantCount < 1 {
			return apperr.Validation("participant count must be at least 1")
		}

		if err := tx.UpdateEventStage(ctx, ev.ID, event.StageSubmitted, event.StatusSubmitted, nil); err != nil {
			return err
		}
		ev.Stage, ev.Status = event.StageSubmitted, event.StatusSubmitted

		step := s.step(ev.ID, event.StageSubmitted, audit.ActionSubmitted, coordinatorID, "")
		if err := tx.InsertApprovalStep(ctx, &step); err != nil {
			return err
		}

		title := "Event submitted for approval"
		if resubmission {
			title = "Event resubmitted for approval"
		}
		hods, err := tx.ListActiveUsersByRole(ctx, user.RoleDepartmentHead, user.Scope{Kind: user.ScopeDepartment, ID: ev.DepartmentID})
		if err != nil {
			return err
		}
		for _, u := range hods {
			queued = append(queued, notify.ForEvent(u.ID, ev.ID, notify.TypeApprovalRequired, title,
				fmt.Sprintf("%q is awaiting your approval.", ev.Title),
				map[string]any{"stage": ev.Stage.String()}))
		}

		out = *ev
		return nil
	})
	if err != nil {
		return event.Event{}, err
	}

	s.Metrics.ApprovalTransition(string(audit.ActionSubmitted))
	s.Dispatcher.Dispatch(ctx, queued)
	return out, nil
}

// ProcessApproval applies one approver decision to an event. When an
// approval completes the human chain, allocation runs in the same
// transaction; if it fails the stage is left where it was and the decision is
// recorded as ModificationRequired with the conflicts as comments. For the
// Head's approval that means the event goes back to DeanApproved with status
// Submitted; it never rests at HeadApproved.
func (s *Service) ProcessApproval(ctx context.Context, approverID string, action audit.Action, comments, eventID string) (Outcome, error) {
	var (
		out    Outcome
		queued []notify.Notification
	)
	started := time.Now()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		out, queued = Outcome{}, nil

		ev, err := tx.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		approver, err := tx.GetUser(ctx, approverID)
		if err != nil {
			return err
		}
		if err := authorize(ev, approver); err != nil {
			return err
		}

		switch action {
		case audit.ActionApproved:
			return s.approve(ctx, tx, ev, approver, comments, &out, &queued)
		case audit.ActionRejected:
			reason := comments
			if err := tx.UpdateEventStage(ctx, ev.ID, event.StageRejected, event.StatusRejected, &reason); err != nil {
				return err
			}
			ev.Stage, ev.Status, ev.RejectionReason = event.StageRejected, event.StatusRejected, reason
			out.Step = s.step(ev.ID, event.StageRejected, audit.ActionRejected, approver.ID, comments)
			queued = append(queued, notify.ForEvent(ev.CoordinatorID, ev.ID, notify.TypeRejected,
				"Event rejected", fmt.Sprintf("%q was rejected: %s", ev.Title, comments),
				map[string]any{"stage": ev.Stage.String(), "actorId": approver.ID}))
		case audit.ActionModificationRequired:
			if err := tx.UpdateEventStage(ctx, ev.ID, event.StageModificationRequired, event.StatusSubmitted, nil); err != nil {
				return err
			}
			ev.Stage, ev.Status = event.StageModificationRequired, event.StatusSubmitted
			out.Step = s.step(ev.ID, event.StageModificationRequired, audit.ActionModificationRequired, approver.ID, comments)
			queued = append(queued, notify.ForEvent(ev.CoordinatorID, ev.ID, notify.TypeModificationRequired,
				"Changes requested", fmt.Sprintf("%q needs changes before it can continue: %s", ev.Title, comments),
				map[string]any{"stage": ev.Stage.String(), "actorId": approver.ID}))
		default:
			return apperr.Validation("unsupported approval action %q", action)
		}

		if err := tx.InsertApprovalStep(ctx, &out.Step); err != nil {
			return err
		}
		out.Event = *ev
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	s.Metrics.ApprovalTransition(string(out.Step.Action))
	if out.Allocation != nil && s.Engine != nil {
		s.Engine.Observe(*out.Allocation, time.Since(started))
	}
	s.Dispatcher.Dispatch(ctx, queued)
	return out, nil
}

func (s *Service) approve(ctx context.Context, tx store.Tx, ev *event.Event, approver *user.User, comments string, out *Outcome, queued *[]notify.Notification) error {
	prev := ev.Stage
	next := prev.Next()

	if !next.FinalHumanApproval() {
		if err := tx.UpdateEventStage(ctx, ev.ID, next, event.StatusFor(next), nil); err != nil {
			return err
		}
		ev.Stage, ev.Status = next, event.StatusFor(next)
		out.Step = s.step(ev.ID, next, audit.ActionApproved, approver.ID, comments)
		if err := tx.InsertApprovalStep(ctx, &out.Step); err != nil {
			return err
		}

		*queued = append(*queued, notify.ForEvent(ev.CoordinatorID, ev.ID, notify.TypeStageAdvanced,
			"Approval progressed", fmt.Sprintf("%q reached %s.", ev.Title, next),
			map[string]any{"stage": next.String(), "actorId": approver.ID}))
		role, kind, ok := next.RequiredApprover()
		if ok {
			approvers, err := tx.ListActiveUsersByRole(ctx, role, scopeOf(kind, ev))
			if err != nil {
				return err
			}
			for _, u := range approvers {
				*queued = append(*queued, notify.ForEvent(u.ID, ev.ID, notify.TypeApprovalRequired,
					"Approval required", fmt.Sprintf("%q is awaiting your approval.", ev.Title),
					map[string]any{"stage": next.String()}))
			}
		}
		out.Event = *ev
		return nil
	}

	if s.Engine == nil {
		return fmt.Errorf("approval: no allocation engine configured")
	}
	if err := tx.UpdateEventStage(ctx, ev.ID, next, event.StatusFor(next), nil); err != nil {
		return err
	}
	ev.Stage, ev.Status = next, event.StatusFor(next)

	res, err := s.Engine.Allocate(ctx, tx, ev, approver.ID)
	if err != nil {
		return err
	}
	out.Allocation = &res

	if res.Success {
		out.Step = s.step(ev.ID, next, audit.ActionApproved, approver.ID, comments)
		if err := tx.InsertApprovalStep(ctx, &out.Step); err != nil {
			return err
		}
		if err := s.Engine.Finalize(ctx, tx, ev); err != nil {
			return err
		}
		data := map[string]any{"stage": ev.Stage.String(), "actorId": approver.ID}
		if res.VenueBooking != nil {
			data["venueId"] = res.VenueBooking.VenueID
		}
		*queued = append(*queued, notify.ForEvent(ev.CoordinatorID, ev.ID, notify.TypeApproved,
			"Event approved", fmt.Sprintf("%q is approved and its venue and resources are booked.", ev.Title), data))
		out.Event = *ev
		return nil
	}

	// Revert, don't advance: the event stays at the stage it was in before
	// this approval and goes back to the coordinator.
	if err := tx.UpdateEventStage(ctx, ev.ID, prev, event.StatusSubmitted, nil); err != nil {
		return err
	}
	ev.Stage, ev.Status = prev, event.StatusSubmitted

	explanation := res.Explanation()
	if comments != "" {
		explanation += " Approver comments: " + comments
	}
	out.Step = s.step(ev.ID, prev, audit.ActionModificationRequired, approver.ID, explanation)
	if err := tx.InsertApprovalStep(ctx, &out.Step); err != nil {
		return err
	}
	*queued = append(*queued, notify.ForEvent(ev.CoordinatorID, ev.ID, notify.TypeAllocationFailed,
		"Allocation failed", explanation,
		map[string]any{"stage": prev.String(), "actorId": approver.ID, "conflicts": res.Conflicts}))
	out.Event = *ev
	return nil
}

// History lists the approval steps of an event in the order they were taken.
func (s *Service) History(ctx context.Context, eventID string) ([]audit.ApprovalStep, error) {
	var steps []audit.ApprovalStep
	err := s.Store.WithReadOnlyTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return err
		}
		var err error
		steps, err = tx.ListApprovalSteps(ctx, eventID)
		return err
	})
	if steps == nil && err == nil {
		steps = []audit.ApprovalStep{}
	}
	return steps, err
}

// authorize checks the approver against the fixed role and scope required at
// the event's current stage.
func authorize(ev *event.Event, approver *user.User) error {
	role, kind, ok := ev.Stage.RequiredApprover()
	if !ok {
		return apperr.InvalidState("event %s at stage %s is not awaiting approval", ev.ID, ev.Stage)
	}
	if !approver.IsActive {
		return apperr.PermissionDenied("approver %s is inactive", approver.ID)
	}
	if approver.Role != role {
		return apperr.PermissionDenied("stage %s requires role %s, approver has %s", ev.Stage, role, approver.Role)
	}
	if !scopeOf(kind, ev).Covers(*approver) {
		return apperr.PermissionDenied("approver %s is outside the event's %s", approver.ID, kind)
	}
	return nil
}

func scopeOf(kind user.ScopeKind, ev *event.Event) user.Scope {
	switch kind {
	case user.ScopeDepartment:
		return user.Scope{Kind: kind, ID: ev.DepartmentID}
	case user.ScopeSchool:
		return user.Scope{Kind: kind, ID: ev.SchoolID}
	default:
		return user.Scope{Kind: user.ScopeInstitution}
	}
}

func (s *Service) step(eventID string, stage event.Stage, action audit.Action, actorID, comments string) audit.ApprovalStep {
	return audit.ApprovalStep{
		ID:        s.NewID(),
		EventID:   eventID,
		Stage:     stage,
		Action:    action,
		ActorID:   actorID,
		Comments:  comments,
		CreatedAt: s.Now(),
	}
}
