package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/namexbalboa/manage-tools-by-namex/db"
	"github.com/namexbalboa/manage-tools-by-namex/poker"
	"github.com/namexbalboa/manage-tools-by-namex/store"
)

// Intent Types (client -> server)
const (
	IntentSelectRole     = "select_role"
	IntentAddStory       = "add_story"
	IntentDeleteStory    = "delete_story"
	IntentSelectStory    = "select_story"
	IntentCastVote       = "cast_vote"
	IntentReveal         = "reveal"
	IntentReset          = "reset"
	IntentAcceptEstimate = "accept_estimate"
	IntentStartTimer     = "start_timer"
	IntentStopTimer      = "stop_timer"
	IntentReact          = "react"
)

// Message Types (server -> client)
const (
	MsgTypeRoomState   = "room_state"
	MsgTypeRoomExpired = "room_expired"
	MsgTypeError       = "error"
)

type WireMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type Intent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roomView is the snapshot pushed to every client on each store change. The
// derived fields are computed server-side so clients render without
// re-implementing the aggregation rules; the raw room is included so they can.
type roomView struct {
	Room        *poker.Room        `json:"room"`
	RoundState  poker.RoundState   `json:"roundState"`
	VotedCount  int                `json:"votedCount"`
	VoterCount  int                `json:"voterCount"`
	VoteSummary *poker.VoteSummary `json:"voteSummary,omitempty"`
	Timer       *timerView         `json:"timer,omitempty"`
}

type timerView struct {
	Active           bool  `json:"active"`
	RemainingSeconds int64 `json:"remainingSeconds"`
	LowTime          bool  `json:"lowTime"`
}

// Hub fans room snapshots from the store subscription out to the local
// websocket clients and turns client intents into store writes. There is one
// relay goroutine per room; the store is the only cross-pod synchronization.
type Hub struct {
	store      store.RoomStore
	register   chan *Client
	unregister chan *Client
	relays     map[string]*roomRelay
	mutex      sync.Mutex
}

type roomRelay struct {
	roomID  string
	clients map[*Client]bool
	cancel  context.CancelFunc

	// Auto-stop scheduling for the locally observed active timer. Keyed by
	// StartedAt so a restarted timer reschedules and a stopped one cancels.
	autoStop    *time.Timer
	autoStopKey int64
}

func NewHub(st store.RoomStore) *Hub {
	return &Hub{
		store:      st,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		relays:     make(map[string]*roomRelay),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			relay, ok := h.relays[client.roomID]
			if !ok {
				ctx, cancel := context.WithCancel(context.Background())
				relay = &roomRelay{
					roomID:  client.roomID,
					clients: make(map[*Client]bool),
					cancel:  cancel,
				}
				h.relays[client.roomID] = relay
				go h.runRelay(ctx, relay)
			}
			relay.clients[client] = true
			h.mutex.Unlock()
			log.Printf("[HUB] Client %s joined room %s", client.userID, client.roomID)

		case client := <-h.unregister:
			h.mutex.Lock()
			relay, ok := h.relays[client.roomID]
			if ok && relay.clients[client] {
				delete(relay.clients, client)
				close(client.send)
				if len(relay.clients) == 0 {
					relay.cancel()
					relay.cancelAutoStopLocked()
					delete(h.relays, client.roomID)
				}
			}
			h.mutex.Unlock()

			// Leaving is a hard removal of the participant entry only.
			if ok {
				if err := h.store.RemoveParticipant(context.Background(), client.roomID, client.userID); err != nil {
					log.Printf("[HUB] Failed to remove participant %s from room %s: %v", client.userID, client.roomID, err)
				}
			}
			log.Printf("[HUB] Client %s left room %s", client.userID, client.roomID)
		}
	}
}

// join writes the participant entry before the client is registered so the
// first snapshot the client receives already includes itself. The room
// creator gets the facilitator role on first join; a rejoining participant
// keeps whatever role it had.
func (h *Hub) join(client *Client, avatar poker.Avatar) error {
	ctx := context.Background()
	room, err := h.store.GetRoom(ctx, client.roomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomExpired) {
			return errors.New("room has expired")
		}
		if errors.Is(err, store.ErrRoomNotFound) {
			return errors.New("room not found")
		}
		return err
	}

	p := poker.Participant{
		UserID:   client.userID,
		Nickname: client.nickname,
		Avatar:   avatar,
		JoinedAt: time.Now().UnixMilli(),
	}
	if existing, ok := room.Participants[client.userID]; ok {
		p.Role = existing.Role
	} else if room.CreatedBy == client.userID {
		p.Role = poker.RoleFacilitator
	}

	return h.store.SetParticipant(ctx, client.roomID, p)
}

// runRelay owns the store subscription for one room and broadcasts every
// snapshot to the local clients.
func (h *Hub) runRelay(ctx context.Context, relay *roomRelay) {
	ch, err := h.store.Subscribe(ctx, relay.roomID)
	if err != nil {
		log.Printf("[HUB] Subscribe failed for room %s: %v", relay.roomID, err)
		h.broadcast(relay, WireMessage{Type: MsgTypeError, Payload: map[string]string{"message": "subscription failed"}})
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case room, ok := <-ch:
			if !ok {
				return
			}
			if room == nil {
				log.Printf("[HUB] Room %s is gone, notifying clients", relay.roomID)
				h.broadcast(relay, WireMessage{Type: MsgTypeRoomExpired})
				continue
			}
			h.scheduleAutoStop(relay, room)
			h.broadcast(relay, WireMessage{Type: MsgTypeRoomState, Payload: buildRoomView(room, time.Now())})
		}
	}
}

func buildRoomView(room *poker.Room, now time.Time) roomView {
	// Snapshot copies are ours to trim; expired reactions are invisible even
	// when the writer's delete has not fired yet.
	room.Reactions = room.LiveReactions(now)

	voted, total := room.Progress()
	view := roomView{
		Room:       room,
		RoundState: room.RoundState(),
		VotedCount: voted,
		VoterCount: total,
	}

	if view.RoundState == poker.RoundRevealed {
		summary := poker.Summarize(room.VoterVotes())
		view.VoteSummary = &summary
	}

	if room.Timer != nil {
		view.Timer = &timerView{
			Active:           room.Timer.Active,
			RemainingSeconds: int64(room.Timer.Remaining(now) / time.Second),
			LowTime:          room.Timer.LowTime(now),
		}
	}
	return view
}

func (h *Hub) broadcast(relay *roomRelay, msg WireMessage) {
	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[HUB] Marshal failed: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range relay.clients {
		select {
		case client.send <- bytes:
		default:
			// Client is not draining; the read pump will reap it.
		}
	}
}

// scheduleAutoStop arms a stop write at the observed timer's deadline. Every
// pod that sees the active timer arms its own; the extra stops are
// last-write-wins no-ops.
func (h *Hub) scheduleAutoStop(relay *roomRelay, room *poker.Room) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	t := room.Timer
	if t == nil || !t.Active {
		relay.cancelAutoStopLocked()
		return
	}
	if relay.autoStopKey == t.StartedAt {
		return
	}
	relay.cancelAutoStopLocked()

	deadline, ok := t.Deadline()
	if !ok {
		return
	}
	roomID := relay.roomID
	duration := t.Duration
	relay.autoStopKey = t.StartedAt
	relay.autoStop = time.AfterFunc(time.Until(deadline), func() {
		if err := h.store.SetTimer(context.Background(), roomID, poker.StopTimer(duration)); err != nil {
			log.Printf("[HUB] Timer auto-stop failed for room %s: %v", roomID, err)
		}
	})
}

func (r *roomRelay) cancelAutoStopLocked() {
	if r.autoStop != nil {
		r.autoStop.Stop()
		r.autoStop = nil
	}
	r.autoStopKey = 0
}

func (h *Hub) sendError(c *Client, message string) {
	bytes, err := json.Marshal(WireMessage{Type: MsgTypeError, Payload: map[string]string{"message": message}})
	if err != nil {
		return
	}
	select {
	case c.send <- bytes:
	default:
	}
}

// handleIntent dispatches one client intent to the store. Role and round
// gates are advisory: they run against the snapshot read here, and a
// concurrent write may still interleave.
func (h *Hub) handleIntent(client *Client, raw []byte) {
	var intent Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		log.Printf("[HUB] Invalid intent format from %s: %v", client.userID, err)
		h.sendError(client, "invalid message format")
		return
	}

	ctx := context.Background()
	room, err := h.store.GetRoom(ctx, client.roomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomExpired) || errors.Is(err, store.ErrRoomNotFound) {
			h.sendError(client, "room is gone")
		} else {
			log.Printf("[HUB] Failed to read room %s: %v", client.roomID, err)
			h.sendError(client, "temporary failure, try again")
		}
		return
	}

	switch intent.Type {
	case IntentSelectRole:
		err = h.handleSelectRole(ctx, client, intent.Payload)
	case IntentAddStory:
		err = h.handleAddStory(ctx, client, room, intent.Payload)
	case IntentDeleteStory:
		err = h.handleDeleteStory(ctx, client, room, intent.Payload)
	case IntentSelectStory:
		err = h.handleSelectStory(ctx, client, room, intent.Payload)
	case IntentCastVote:
		err = h.handleCastVote(ctx, client, room, intent.Payload)
	case IntentReveal:
		if err = room.CheckReveal(client.userID); err == nil {
			err = h.store.SetRevealed(ctx, client.roomID, true)
		}
	case IntentReset:
		if err = room.CheckReset(client.userID); err == nil {
			err = h.store.ResetRound(ctx, client.roomID)
		}
	case IntentAcceptEstimate:
		err = h.handleAcceptEstimate(ctx, client, room, intent.Payload)
	case IntentStartTimer:
		err = h.handleStartTimer(ctx, client, room, intent.Payload)
	case IntentStopTimer:
		if err = room.CheckRunTimer(client.userID); err == nil {
			var duration int64
			if room.Timer != nil {
				duration = room.Timer.Duration
			}
			err = h.store.SetTimer(ctx, client.roomID, poker.StopTimer(duration))
		}
	case IntentReact:
		err = h.handleReact(ctx, client, room, intent.Payload)
	default:
		log.Printf("[HUB] Unknown intent %q from %s", intent.Type, client.userID)
		err = errors.New("unknown intent")
	}

	if err != nil {
		log.Printf("[HUB] Intent %s from %s failed: %v", intent.Type, client.userID, err)
		h.sendError(client, err.Error())
	}
}

func (h *Hub) handleSelectRole(ctx context.Context, client *Client, payload json.RawMessage) error {
	var p struct {
		Role poker.Role `json:"role"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid payload")
	}
	if !p.Role.Valid() {
		return errors.New("unknown role")
	}
	return h.store.SetParticipantRole(ctx, client.roomID, client.userID, p.Role)
}

func (h *Hub) handleAddStory(ctx context.Context, client *Client, room *poker.Room, payload json.RawMessage) error {
	if err := room.CheckManageBacklog(client.userID); err != nil {
		return err
	}
	var p struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid payload")
	}
	if p.Title == "" {
		return errors.New("title is required")
	}
	return h.store.SetStory(ctx, client.roomID, poker.Story{
		ID:          uuid.NewString(),
		Title:       p.Title,
		Description: p.Description,
		CreatedAt:   time.Now().UnixMilli(),
	})
}

func (h *Hub) handleDeleteStory(ctx context.Context, client *Client, room *poker.Room, payload json.RawMessage) error {
	if err := room.CheckManageBacklog(client.userID); err != nil {
		return err
	}
	var p struct {
		StoryID string `json:"storyId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.StoryID == "" {
		return errors.New("invalid payload")
	}
	return h.store.DeleteStory(ctx, client.roomID, p.StoryID)
}

func (h *Hub) handleSelectStory(ctx context.Context, client *Client, room *poker.Room, payload json.RawMessage) error {
	if err := room.CheckManageBacklog(client.userID); err != nil {
		return err
	}
	var p struct {
		StoryID string `json:"storyId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.StoryID == "" {
		return errors.New("invalid payload")
	}
	if _, ok := room.Stories[p.StoryID]; !ok {
		return errors.New("story not found")
	}
	return h.store.SelectStory(ctx, client.roomID, p.StoryID)
}

func (h *Hub) handleCastVote(ctx context.Context, client *Client, room *poker.Room, payload json.RawMessage) error {
	var p struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid payload")
	}
	if err := room.CheckCastVote(client.userID, p.Value); err != nil {
		return err
	}
	return h.store.SetVote(ctx, client.roomID, client.userID, p.Value)
}

func (h *Hub) handleAcceptEstimate(ctx context.Context, client *Client, room *poker.Room, payload json.RawMessage) error {
	var p struct {
		StoryID string `json:"storyId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.StoryID == "" {
		return errors.New("invalid payload")
	}
	if err := room.CheckAcceptEstimate(client.userID, p.StoryID); err != nil {
		return err
	}

	votes := room.VoterVotes()
	value, ok := poker.ResolveEstimate(votes)
	if !ok {
		return errors.New("votes do not resolve to an estimate")
	}

	if err := h.store.SetStoryEstimate(ctx, client.roomID, p.StoryID, value); err != nil {
		return err
	}

	// Write-behind archive; the session does not wait on DynamoDB.
	story := room.Stories[p.StoryID]
	summary := poker.Summarize(votes)
	go func() {
		rec := db.EstimateRecord{
			RoomID:         room.ID,
			Timestamp:      time.Now().UnixMilli(),
			StoryID:        story.ID,
			StoryTitle:     story.Title,
			EstimatedValue: value,
			Consensus:      summary.Consensus,
			VoteCount:      len(votes),
			Deck:           string(room.Deck),
			AcceptedBy:     client.userID,
		}
		if err := db.SaveEstimateWithMock(rec); err != nil {
			log.Printf("[HUB] Failed to archive estimate for room %s: %v", room.ID, err)
		}
	}()
	return nil
}

func (h *Hub) handleStartTimer(ctx context.Context, client *Client, room *poker.Room, payload json.RawMessage) error {
	if err := room.CheckRunTimer(client.userID); err != nil {
		return err
	}
	var p struct {
		Duration int64 `json:"duration"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid payload")
	}
	if p.Duration <= 0 {
		return errors.New("duration must be positive")
	}
	return h.store.SetTimer(ctx, client.roomID, poker.StartTimer(p.Duration, time.Now()))
}

func (h *Hub) handleReact(ctx context.Context, client *Client, room *poker.Room, payload json.RawMessage) error {
	if err := room.CheckReact(client.userID); err != nil {
		return err
	}
	var p struct {
		Emoji string `json:"emoji"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.Emoji == "" {
		return errors.New("invalid payload")
	}

	re := poker.Reaction{Emoji: p.Emoji, Timestamp: time.Now().UnixMilli()}
	if err := h.store.SetReaction(ctx, client.roomID, client.userID, re); err != nil {
		return err
	}

	// Guarded cleanup: the delete only fires if this reaction still holds
	// the slot, so overwriting reactions never lose their full lifetime.
	roomID := client.roomID
	userID := client.userID
	time.AfterFunc(poker.ReactionTTL, func() {
		if err := h.store.RemoveReaction(context.Background(), roomID, userID, re.Timestamp); err != nil {
			log.Printf("[HUB] Reaction cleanup failed for room %s: %v", roomID, err)
		}
	})
	return nil
}
