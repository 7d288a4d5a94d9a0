package poker

import "time"

// Room TTL and the reaction lifetime are fixed; expiry is enforced by
// timestamp comparison on read, not by a background sweep.
const (
	RoomTTL     = 24 * time.Hour
	ReactionTTL = 3 * time.Second
)

const RoomTypeScrumPoker = "scrum-poker"

// RoomStatus is advisory; the authoritative expiry check is ExpiresAt.
type RoomStatus string

const (
	StatusActive    RoomStatus = "active"
	StatusCompleted RoomStatus = "completed"
	StatusExpired   RoomStatus = "expired"
)

// Avatar holds the two independent customization slots.
type Avatar struct {
	Head string `json:"head"`
	Body string `json:"body"`
}

// Participant is created on join and hard-removed on leave. Role stays empty
// until the participant picks one.
type Participant struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Avatar   Avatar `json:"avatar"`
	Role     Role   `json:"role,omitempty"`
	JoinedAt int64  `json:"joinedAt"`
}

// Story is never mutated after creation except to set EstimatedValue.
type Story struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	EstimatedValue string `json:"estimatedValue,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

// Timer is a server-relative countdown. Remaining time is derived from
// StartedAt by every reader independently, never stored.
type Timer struct {
	Active    bool  `json:"active"`
	Duration  int64 `json:"duration"` // seconds
	StartedAt int64 `json:"startedAt,omitempty"`
}

// Reaction is ephemeral: entries older than ReactionTTL are treated as
// absent by readers regardless of whether the writer's delete has fired yet.
type Reaction struct {
	Emoji     string `json:"emoji"`
	Timestamp int64  `json:"timestamp"`
}

// Room is the root aggregate, one per session. All timestamps are Unix
// milliseconds.
type Room struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"`
	CreatedBy      string                 `json:"createdBy"`
	CreatedAt      int64                  `json:"createdAt"`
	ExpiresAt      int64                  `json:"expiresAt"`
	Status         RoomStatus             `json:"status"`
	Deck           DeckType               `json:"deck"`
	CurrentStoryID string                 `json:"currentStoryId,omitempty"`
	Revealed       bool                   `json:"revealed"`
	Participants   map[string]Participant `json:"participants"`
	Stories        map[string]Story       `json:"stories"`
	Votes          map[string]string      `json:"votes"`
	Timer          *Timer                 `json:"timer,omitempty"`
	Reactions      map[string]Reaction    `json:"reactions,omitempty"`
}

// NewRoom builds a fresh room owned by creatorID. The caller supplies the
// already generated room id.
func NewRoom(id, creatorID string, deck DeckType, now time.Time) *Room {
	if _, ok := Decks[deck]; !ok {
		deck = DeckFibonacci
	}
	return &Room{
		ID:           id,
		Type:         RoomTypeScrumPoker,
		CreatedBy:    creatorID,
		CreatedAt:    now.UnixMilli(),
		ExpiresAt:    now.Add(RoomTTL).UnixMilli(),
		Status:       StatusActive,
		Deck:         deck,
		Participants: make(map[string]Participant),
		Stories:      make(map[string]Story),
		Votes:        make(map[string]string),
	}
}

// Expired reports whether the room has passed its expiry timestamp.
func (r *Room) Expired(now time.Time) bool {
	return r.ExpiresAt <= now.UnixMilli()
}

// Normalize fills in nil collections so readers never have to nil-check.
// Optional subtrees are simply missing from the stored document until the
// first write touches them.
func (r *Room) Normalize() {
	if r.Participants == nil {
		r.Participants = make(map[string]Participant)
	}
	if r.Stories == nil {
		r.Stories = make(map[string]Story)
	}
	if r.Votes == nil {
		r.Votes = make(map[string]string)
	}
	if r.Reactions == nil {
		r.Reactions = make(map[string]Reaction)
	}
	if r.Deck == "" {
		r.Deck = DeckFibonacci
	}
}
