package memstore

import (
	"fmt"
	"sync/atomic"
	"time"

	"venueflow/internal/event"
	"venueflow/internal/user"
)

// A small campus used by tests and demos: one school with two departments,
// a second school, and one approver per role.
const (
	SchoolID          = "sch-eng"
	OtherSchoolID     = "sch-arts"
	DepartmentID      = "dep-cs"
	OtherDepartmentID = "dep-ee"

	CoordinatorID     = "u-coordinator"
	HodID             = "u-hod"
	OtherHodID        = "u-hod-ee"
	InactiveHodID     = "u-hod-retired"
	DeanID            = "u-dean"
	OtherDeanID       = "u-dean-arts"
	InstitutionHeadID = "u-head"
)

func SeedCampus(s *Store) {
	for _, u := range []user.User{
		{ID: CoordinatorID, Name: "Casey", Role: user.RoleCoordinator, SchoolID: SchoolID, DepartmentID: DepartmentID, IsActive: true},
		{ID: HodID, Name: "Harper", Role: user.RoleDepartmentHead, SchoolID: SchoolID, DepartmentID: DepartmentID, IsActive: true},
		{ID: OtherHodID, Name: "Emery", Role: user.RoleDepartmentHead, SchoolID: SchoolID, DepartmentID: OtherDepartmentID, IsActive: true},
		{ID: InactiveHodID, Name: "Rowan", Role: user.RoleDepartmentHead, SchoolID: SchoolID, DepartmentID: DepartmentID, IsActive: false},
		{ID: DeanID, Name: "Dana", Role: user.RoleDean, SchoolID: SchoolID, IsActive: true},
		{ID: OtherDeanID, Name: "Sage", Role: user.RoleDean, SchoolID: OtherSchoolID, IsActive: true},
		{ID: InstitutionHeadID, Name: "Ira", Role: user.RoleInstitutionalHead, IsActive: true},
	} {
		s.AddUser(u)
	}
}

// NewEvent returns an event of the campus department owned by CoordinatorID,
// sitting at stage with the status that stage implies.
func NewEvent(id string, stage event.Stage, start time.Time, d time.Duration, participants int) event.Event {
	return event.Event{
		ID:               id,
		Title:            "Event " + id,
		StartTime:        start,
		EndTime:          start.Add(d),
		ParticipantCount: participants,
		SchoolID:         SchoolID,
		DepartmentID:     DepartmentID,
		CoordinatorID:    CoordinatorID,
		Status:           event.StatusFor(stage),
		Stage:            stage,
	}
}

// SeqIDs returns a deterministic id generator: prefix-1, prefix-2, ...
func SeqIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}
