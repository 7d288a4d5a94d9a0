package poker

// Role classifies a participant. There is no hierarchy beyond the
// facilitator holding elevated capabilities, and nothing prevents several
// participants from all picking facilitator: role checks are advisory and
// the store performs no validation.
type Role string

const (
	RoleFacilitator Role = "facilitator"
	RoleVoter       Role = "voter"
	RoleObserver    Role = "observer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFacilitator, RoleVoter, RoleObserver:
		return true
	}
	return false
}

// CanManageBacklog covers adding, deleting and selecting stories.
func (r Role) CanManageBacklog() bool { return r == RoleFacilitator }

// CanDriveRound covers reveal, reset and accepting an estimate.
func (r Role) CanDriveRound() bool { return r == RoleFacilitator }

// CanRunTimer covers starting and stopping the shared countdown.
func (r Role) CanRunTimer() bool { return r == RoleFacilitator }

// CanVote covers casting a hidden estimate.
func (r Role) CanVote() bool { return r == RoleVoter }

// CanReact is true for every chosen role; a participant must pick one
// before interacting at all.
func (r Role) CanReact() bool { return r.Valid() }
