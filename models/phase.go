package models

// Phase is one of the three fixed production stages.
type Phase int

const (
	PhaseCutting   Phase = 1
	PhaseSewing    Phase = 2
	PhasePackaging Phase = 3
)

func (p Phase) Valid() bool {
	return p >= PhaseCutting && p <= PhasePackaging
}

func (p Phase) String() string {
	switch p {
	case PhaseCutting:
		return "Cutting"
	case PhaseSewing:
		return "Sewing"
	case PhasePackaging:
		return "Packaging"
	default:
		return "Unknown"
	}
}

// Batch statuses accepted by the store.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Operator roles. Every role except Admin is bound to a single phase.
const (
	RoleAdmin     = "Admin"
	RoleCutting   = "Cutting"
	RoleSewing    = "Sewing"
	RolePackaging = "Packaging"
)

// PhaseForRole returns the phase a floor role is bound to. Admin and unknown
// roles report false.
func PhaseForRole(role string) (Phase, bool) {
	switch role {
	case RoleCutting:
		return PhaseCutting, true
	case RoleSewing:
		return PhaseSewing, true
	case RolePackaging:
		return PhasePackaging, true
	}
	return 0, false
}

func KnownRole(role string) bool {
	if role == RoleAdmin {
		return true
	}
	_, ok := PhaseForRole(role)
	return ok
}
