package poker

import (
	"sort"
	"time"
)

// CurrentStory resolves the active story. A CurrentStoryID that no longer
// keys into Stories (the story was deleted out from under it) resolves to
// no active story rather than an error; the stale reference is tolerated
// everywhere it is read.
func (r *Room) CurrentStory() (Story, bool) {
	if r.CurrentStoryID == "" {
		return Story{}, false
	}
	s, ok := r.Stories[r.CurrentStoryID]
	return s, ok
}

// SortedStories returns the backlog in display order: createdAt ascending,
// id as the tiebreak so the order is stable.
func (r *Room) SortedStories() []Story {
	stories := make([]Story, 0, len(r.Stories))
	for _, s := range r.Stories {
		stories = append(stories, s)
	}
	sort.Slice(stories, func(i, j int) bool {
		if stories[i].CreatedAt != stories[j].CreatedAt {
			return stories[i].CreatedAt < stories[j].CreatedAt
		}
		return stories[i].ID < stories[j].ID
	})
	return stories
}

// Voters returns the participants with role voter.
func (r *Room) Voters() []Participant {
	var voters []Participant
	for _, p := range r.Participants {
		if p.Role == RoleVoter {
			voters = append(voters, p)
		}
	}
	return voters
}

// VoterVotes restricts the vote map to entries cast by participants whose
// role is voter. Entries from anyone else are ignored by the aggregator.
func (r *Room) VoterVotes() map[string]string {
	votes := make(map[string]string, len(r.Votes))
	for userID, value := range r.Votes {
		if p, ok := r.Participants[userID]; ok && p.Role == RoleVoter {
			votes[userID] = value
		}
	}
	return votes
}

// LiveReactions filters out reactions past their TTL. Expired entries may
// still be present in storage until the writer's scheduled delete fires;
// readers must treat them as absent.
func (r *Room) LiveReactions(now time.Time) map[string]Reaction {
	live := make(map[string]Reaction)
	for userID, reaction := range r.Reactions {
		if !reaction.ExpiredAt(now) {
			live[userID] = reaction
		}
	}
	return live
}

// ExpiredAt reports whether the reaction is past its TTL at the given time.
func (re Reaction) ExpiredAt(now time.Time) bool {
	return now.UnixMilli()-re.Timestamp >= ReactionTTL.Milliseconds()
}
