package poker

import "errors"

// RoundState is derived from the loosely-coupled stored fields so that
// invalid combinations (revealed with no active story) collapse into a
// single well-defined state instead of leaking to callers.
type RoundState string

const (
	// RoundIdle: no resolvable active story, nothing to vote on.
	RoundIdle RoundState = "idle"
	// RoundCollecting: active story, votes hidden.
	RoundCollecting RoundState = "collecting"
	// RoundRevealed: active story, votes visible.
	RoundRevealed RoundState = "revealed"
)

var (
	ErrNotFacilitator  = errors.New("requires facilitator role")
	ErrNotVoter        = errors.New("requires voter role")
	ErrNoRole          = errors.New("participant has not chosen a role")
	ErrNotParticipant  = errors.New("not a participant of this room")
	ErrNoActiveStory   = errors.New("no active story")
	ErrNotRevealed     = errors.New("votes are not revealed")
	ErrAlreadyRevealed = errors.New("votes are already revealed")
	ErrStoryMismatch   = errors.New("story is not the current story")
	ErrUnknownCard     = errors.New("value is not a card of the room's deck")
)

// RoundState derives the voting-round state. Revealed without a resolvable
// current story is treated as Idle: reveal is round-scoped and a round only
// exists while a story is active.
func (r *Room) RoundState() RoundState {
	if _, ok := r.CurrentStory(); !ok {
		return RoundIdle
	}
	if r.Revealed {
		return RoundRevealed
	}
	return RoundCollecting
}

func (r *Room) participantRole(userID string) (Role, error) {
	p, ok := r.Participants[userID]
	if !ok {
		return "", ErrNotParticipant
	}
	if !p.Role.Valid() {
		return "", ErrNoRole
	}
	return p.Role, nil
}

// CheckCastVote gates a vote intent. All checks here are advisory: the
// store accepts whatever is written, the gate just refuses to issue the
// write on behalf of a client that should not be casting.
func (r *Room) CheckCastVote(userID, value string) error {
	role, err := r.participantRole(userID)
	if err != nil {
		return err
	}
	if !role.CanVote() {
		return ErrNotVoter
	}
	switch r.RoundState() {
	case RoundIdle:
		return ErrNoActiveStory
	case RoundRevealed:
		return ErrAlreadyRevealed
	}
	if !GetDeck(r.Deck).Contains(value) {
		return ErrUnknownCard
	}
	return nil
}

// CheckReveal gates a reveal intent. Partial votes are fine: nothing
// requires every voter to have cast before revealing.
func (r *Room) CheckReveal(userID string) error {
	role, err := r.participantRole(userID)
	if err != nil {
		return err
	}
	if !role.CanDriveRound() {
		return ErrNotFacilitator
	}
	if r.RoundState() == RoundIdle {
		return ErrNoActiveStory
	}
	return nil
}

// CheckReset gates a round reset (re-vote on the same story).
func (r *Room) CheckReset(userID string) error {
	role, err := r.participantRole(userID)
	if err != nil {
		return err
	}
	if !role.CanDriveRound() {
		return ErrNotFacilitator
	}
	return nil
}

// CheckAcceptEstimate gates estimate acceptance: facilitator only, votes
// revealed, and the story must be the one the votes belong to.
func (r *Room) CheckAcceptEstimate(userID, storyID string) error {
	role, err := r.participantRole(userID)
	if err != nil {
		return err
	}
	if !role.CanDriveRound() {
		return ErrNotFacilitator
	}
	if r.RoundState() != RoundRevealed {
		return ErrNotRevealed
	}
	if r.CurrentStoryID != storyID {
		return ErrStoryMismatch
	}
	return nil
}

// CheckManageBacklog gates add/delete/select story intents.
func (r *Room) CheckManageBacklog(userID string) error {
	role, err := r.participantRole(userID)
	if err != nil {
		return err
	}
	if !role.CanManageBacklog() {
		return ErrNotFacilitator
	}
	return nil
}

// CheckRunTimer gates timer start/stop intents.
func (r *Room) CheckRunTimer(userID string) error {
	role, err := r.participantRole(userID)
	if err != nil {
		return err
	}
	if !role.CanRunTimer() {
		return ErrNotFacilitator
	}
	return nil
}

// CheckReact gates a reaction: any participant with a chosen role.
func (r *Room) CheckReact(userID string) error {
	role, err := r.participantRole(userID)
	if err != nil {
		return err
	}
	if !role.CanReact() {
		return ErrNoRole
	}
	return nil
}
