package event

import (
	"fmt"

	"venueflow/internal/user"
)

// Stage is an event's position in the approval chain. It is distinct from Status.
type Stage uint8

const (
	StageDraft Stage = iota
	StageSubmitted
	StageHodApproved
	StageDeanApproved
	StageHeadApproved
	StageApproved
	StageRejected
	StageModificationRequired

	stageCount
)

// stageRule is one row of the approval chain.
//
// approver is the role that must act while the event sits in this stage;
// empty means no human approval is pending here.
type stageRule struct {
	name     string
	next     Stage
	approver user.Role
	scope    user.ScopeKind
	terminal bool
}

var stageTable = [...]stageRule{
	StageDraft:                {name: "Draft", next: StageSubmitted},
	StageSubmitted:            {name: "Submitted", next: StageHodApproved, approver: user.RoleDepartmentHead, scope: user.ScopeDepartment},
	StageHodApproved:          {name: "HodApproved", next: StageDeanApproved, approver: user.RoleDean, scope: user.ScopeSchool},
	StageDeanApproved:         {name: "DeanApproved", next: StageHeadApproved, approver: user.RoleInstitutionalHead, scope: user.ScopeInstitution},
	StageHeadApproved:         {name: "HeadApproved", next: StageApproved},
	StageApproved:             {name: "Approved", next: StageApproved, terminal: true},
	StageRejected:             {name: "Rejected", next: StageRejected, terminal: true},
	StageModificationRequired: {name: "ModificationRequired", next: StageSubmitted},
}

// Adding a Stage without a stageTable row breaks the build here.
var _ = [1]struct{}{}[len(stageTable)-int(stageCount)]

func (s Stage) valid() bool { return s < stageCount }

func (s Stage) String() string {
	if !s.valid() {
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
	return stageTable[s].name
}

func ParseStage(v string) (Stage, error) {
	for i, r := range stageTable {
		if r.name == v {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown approval stage: %s", v)
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid approval stage %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Next is the stage the fixed chain advances to from s.
// Terminal stages return themselves.
func (s Stage) Next() Stage {
	if !s.valid() {
		return s
	}
	return stageTable[s].next
}

func (s Stage) Terminal() bool {
	return s.valid() && stageTable[s].terminal
}

// RequiredApprover returns the role and scope that must act on an event in stage s.
// ok is false when no human approval is pending in s.
func (s Stage) RequiredApprover() (role user.Role, scope user.ScopeKind, ok bool) {
	if !s.valid() || stageTable[s].approver == "" {
		return "", "", false
	}
	r := stageTable[s]
	return r.approver, r.scope, true
}

// FinalHumanApproval reports whether reaching s completes the human part of the
// chain, so the only remaining step is allocation.
func (s Stage) FinalHumanApproval() bool {
	return s.valid() && !stageTable[s].terminal && stageTable[s].approver == "" && stageTable[s].next.Terminal()
}

// StatusFor maps an approval stage onto the lifecycle status it implies.
func StatusFor(s Stage) Status {
	switch s {
	case StageDraft:
		return StatusDraft
	case StageApproved:
		return StatusApproved
	case StageRejected:
		return StatusRejected
	default:
		return StatusSubmitted
	}
}
