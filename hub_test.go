package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/namexbalboa/manage-tools-by-namex/db"
	"github.com/namexbalboa/manage-tools-by-namex/poker"
	"github.com/namexbalboa/manage-tools-by-namex/store"
)

func newHubFixture(t *testing.T) (*Hub, *store.MemoryStore, *poker.Room) {
	t.Helper()
	st := store.NewMemoryStore()
	hub := NewHub(st)
	room := poker.NewRoom(store.NewRoomID(), "creator", poker.DeckFibonacci, time.Now())
	if err := st.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	return hub, st, room
}

func newTestClient(hub *Hub, roomID, userID string) *Client {
	return &Client{
		hub:      hub,
		send:     make(chan []byte, 8),
		roomID:   roomID,
		userID:   userID,
		nickname: userID,
	}
}

func intentJSON(t *testing.T, typ string, payload interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	msg, err := json.Marshal(Intent{Type: typ, Payload: raw})
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return msg
}

func getRoom(t *testing.T, st store.RoomStore, roomID string) *poker.Room {
	t.Helper()
	room, err := st.GetRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	return room
}

func TestJoin_CreatorBecomesFacilitator(t *testing.T) {
	hub, st, room := newHubFixture(t)

	client := newTestClient(hub, room.ID, "creator")
	if err := hub.join(client, poker.Avatar{Head: "cap"}); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	got := getRoom(t, st, room.ID)
	p, ok := got.Participants["creator"]
	if !ok {
		t.Fatal("Expected creator participant entry")
	}
	if p.Role != poker.RoleFacilitator {
		t.Errorf("Expected facilitator role for creator, got %q", p.Role)
	}
	if p.Avatar.Head != "cap" {
		t.Errorf("Expected avatar to be stored, got %+v", p.Avatar)
	}
}

func TestJoin_OthersStartWithoutRole(t *testing.T) {
	hub, st, room := newHubFixture(t)

	client := newTestClient(hub, room.ID, "guest")
	if err := hub.join(client, poker.Avatar{}); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	got := getRoom(t, st, room.ID)
	if got.Participants["guest"].Role != "" {
		t.Errorf("Expected empty role for non-creator, got %q", got.Participants["guest"].Role)
	}
}

func TestJoin_RejoinKeepsRole(t *testing.T) {
	hub, st, room := newHubFixture(t)
	ctx := context.Background()

	client := newTestClient(hub, room.ID, "guest")
	if err := hub.join(client, poker.Avatar{}); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := st.SetParticipantRole(ctx, room.ID, "guest", poker.RoleVoter); err != nil {
		t.Fatalf("SetParticipantRole failed: %v", err)
	}

	if err := hub.join(client, poker.Avatar{}); err != nil {
		t.Fatalf("rejoin failed: %v", err)
	}
	got := getRoom(t, st, room.ID)
	if got.Participants["guest"].Role != poker.RoleVoter {
		t.Errorf("Expected role to survive rejoin, got %q", got.Participants["guest"].Role)
	}
}

func TestJoin_MissingRoom(t *testing.T) {
	hub, _, _ := newHubFixture(t)
	client := newTestClient(hub, "nosuchroom", "guest")
	if err := hub.join(client, poker.Avatar{}); err == nil {
		t.Error("Expected error joining missing room")
	}
}

func TestHandleIntent_SelectRoleAndVote(t *testing.T) {
	hub, st, room := newHubFixture(t)

	client := newTestClient(hub, room.ID, "guest")
	if err := hub.join(client, poker.Avatar{}); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	hub.handleIntent(client, intentJSON(t, IntentSelectRole, map[string]string{"role": "voter"}))
	got := getRoom(t, st, room.ID)
	if got.Participants["guest"].Role != poker.RoleVoter {
		t.Fatalf("Expected voter role, got %q", got.Participants["guest"].Role)
	}

	// Voting needs an active story; set one up as the creator-facilitator
	facilitator := newTestClient(hub, room.ID, "creator")
	if err := hub.join(facilitator, poker.Avatar{}); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	hub.handleIntent(facilitator, intentJSON(t, IntentAddStory, map[string]string{"title": "login"}))

	got = getRoom(t, st, room.ID)
	if len(got.Stories) != 1 {
		t.Fatalf("Expected 1 story, got %d", len(got.Stories))
	}
	var storyID string
	for id := range got.Stories {
		storyID = id
	}

	hub.handleIntent(facilitator, intentJSON(t, IntentSelectStory, map[string]string{"storyId": storyID}))
	hub.handleIntent(client, intentJSON(t, IntentCastVote, map[string]string{"value": "5"}))

	got = getRoom(t, st, room.ID)
	if got.Votes["guest"] != "5" {
		t.Errorf("Expected vote 5, got %q", got.Votes["guest"])
	}
}

func TestHandleIntent_ObserverCannotVote(t *testing.T) {
	hub, st, room := newHubFixture(t)

	facilitator := newTestClient(hub, room.ID, "creator")
	hub.join(facilitator, poker.Avatar{})
	hub.handleIntent(facilitator, intentJSON(t, IntentAddStory, map[string]string{"title": "login"}))
	var storyID string
	for id := range getRoom(t, st, room.ID).Stories {
		storyID = id
	}
	hub.handleIntent(facilitator, intentJSON(t, IntentSelectStory, map[string]string{"storyId": storyID}))

	observer := newTestClient(hub, room.ID, "observer")
	hub.join(observer, poker.Avatar{})
	hub.handleIntent(observer, intentJSON(t, IntentSelectRole, map[string]string{"role": "observer"}))
	hub.handleIntent(observer, intentJSON(t, IntentCastVote, map[string]string{"value": "5"}))

	got := getRoom(t, st, room.ID)
	if _, ok := got.Votes["observer"]; ok {
		t.Error("Expected observer vote to be rejected")
	}

	// The observer should have received an error message
	sawError := false
	for len(observer.send) > 0 {
		var msg WireMessage
		json.Unmarshal(<-observer.send, &msg)
		if msg.Type == MsgTypeError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("Expected error message for rejected vote")
	}
}

func TestHandleIntent_NonFacilitatorCannotManageBacklog(t *testing.T) {
	hub, st, room := newHubFixture(t)

	voter := newTestClient(hub, room.ID, "guest")
	hub.join(voter, poker.Avatar{})
	hub.handleIntent(voter, intentJSON(t, IntentSelectRole, map[string]string{"role": "voter"}))
	hub.handleIntent(voter, intentJSON(t, IntentAddStory, map[string]string{"title": "sneaky"}))

	got := getRoom(t, st, room.ID)
	if len(got.Stories) != 0 {
		t.Errorf("Expected story add to be rejected, got %d stories", len(got.Stories))
	}
}

func TestHandleIntent_RevealAndAcceptEstimate(t *testing.T) {
	t.Setenv("USE_MOCKS", "true")
	db.InitWithMocks()
	hub, st, room := newHubFixture(t)

	facilitator := newTestClient(hub, room.ID, "creator")
	hub.join(facilitator, poker.Avatar{})
	hub.handleIntent(facilitator, intentJSON(t, IntentAddStory, map[string]string{"title": "login"}))
	var storyID string
	for id := range getRoom(t, st, room.ID).Stories {
		storyID = id
	}
	hub.handleIntent(facilitator, intentJSON(t, IntentSelectStory, map[string]string{"storyId": storyID}))

	v1 := newTestClient(hub, room.ID, "v1")
	v2 := newTestClient(hub, room.ID, "v2")
	for _, c := range []*Client{v1, v2} {
		hub.join(c, poker.Avatar{})
		hub.handleIntent(c, intentJSON(t, IntentSelectRole, map[string]string{"role": "voter"}))
		hub.handleIntent(c, intentJSON(t, IntentCastVote, map[string]string{"value": "8"}))
	}

	hub.handleIntent(facilitator, intentJSON(t, IntentReveal, map[string]string{}))
	got := getRoom(t, st, room.ID)
	if !got.Revealed {
		t.Fatal("Expected round to be revealed")
	}

	hub.handleIntent(facilitator, intentJSON(t, IntentAcceptEstimate, map[string]string{"storyId": storyID}))
	got = getRoom(t, st, room.ID)
	if got.Stories[storyID].EstimatedValue != "8" {
		t.Errorf("Expected consensus estimate 8, got %q", got.Stories[storyID].EstimatedValue)
	}
}

func TestHandleIntent_ResetClearsRound(t *testing.T) {
	hub, st, room := newHubFixture(t)

	facilitator := newTestClient(hub, room.ID, "creator")
	hub.join(facilitator, poker.Avatar{})
	hub.handleIntent(facilitator, intentJSON(t, IntentAddStory, map[string]string{"title": "login"}))
	var storyID string
	for id := range getRoom(t, st, room.ID).Stories {
		storyID = id
	}
	hub.handleIntent(facilitator, intentJSON(t, IntentSelectStory, map[string]string{"storyId": storyID}))

	voter := newTestClient(hub, room.ID, "v1")
	hub.join(voter, poker.Avatar{})
	hub.handleIntent(voter, intentJSON(t, IntentSelectRole, map[string]string{"role": "voter"}))
	hub.handleIntent(voter, intentJSON(t, IntentCastVote, map[string]string{"value": "3"}))
	hub.handleIntent(facilitator, intentJSON(t, IntentReveal, map[string]string{}))

	hub.handleIntent(facilitator, intentJSON(t, IntentReset, map[string]string{}))

	got := getRoom(t, st, room.ID)
	if got.Revealed || len(got.Votes) != 0 {
		t.Errorf("Expected clean round after reset, got revealed=%v votes=%v", got.Revealed, got.Votes)
	}
	if got.CurrentStoryID != storyID {
		t.Errorf("Expected story selection preserved, got %q", got.CurrentStoryID)
	}
}

func TestHandleIntent_Timer(t *testing.T) {
	hub, st, room := newHubFixture(t)

	facilitator := newTestClient(hub, room.ID, "creator")
	hub.join(facilitator, poker.Avatar{})

	hub.handleIntent(facilitator, intentJSON(t, IntentStartTimer, map[string]int64{"duration": 120}))
	got := getRoom(t, st, room.ID)
	if got.Timer == nil || !got.Timer.Active || got.Timer.Duration != 120 {
		t.Fatalf("Expected active 120s timer, got %+v", got.Timer)
	}

	hub.handleIntent(facilitator, intentJSON(t, IntentStopTimer, map[string]string{}))
	got = getRoom(t, st, room.ID)
	if got.Timer == nil || got.Timer.Active || got.Timer.StartedAt != 0 {
		t.Errorf("Expected stopped timer with cleared start, got %+v", got.Timer)
	}
}

func TestHandleIntent_Reaction(t *testing.T) {
	hub, st, room := newHubFixture(t)

	facilitator := newTestClient(hub, room.ID, "creator")
	hub.join(facilitator, poker.Avatar{})
	hub.handleIntent(facilitator, intentJSON(t, IntentReact, map[string]string{"emoji": "🎉"}))

	got := getRoom(t, st, room.ID)
	if got.Reactions["creator"].Emoji != "🎉" {
		t.Errorf("Expected reaction stored, got %+v", got.Reactions)
	}
}

func TestBuildRoomView(t *testing.T) {
	now := time.Now()
	room := poker.NewRoom("roomid0000001", "creator", poker.DeckFibonacci, now)
	room.Stories["s1"] = poker.Story{ID: "s1", Title: "login"}
	room.CurrentStoryID = "s1"
	room.Participants["v1"] = poker.Participant{UserID: "v1", Role: poker.RoleVoter}
	room.Participants["v2"] = poker.Participant{UserID: "v2", Role: poker.RoleVoter}
	room.Votes["v1"] = "5"
	room.Revealed = true
	room.Reactions = map[string]poker.Reaction{
		"v1": {Emoji: "👍", Timestamp: now.UnixMilli()},
		"v2": {Emoji: "👎", Timestamp: now.Add(-10 * time.Second).UnixMilli()},
	}
	room.Timer = &poker.Timer{Active: true, Duration: 60, StartedAt: now.Add(-40 * time.Second).UnixMilli()}

	view := buildRoomView(room, now)

	if view.RoundState != poker.RoundRevealed {
		t.Errorf("Expected revealed state, got %s", view.RoundState)
	}
	if view.VotedCount != 1 || view.VoterCount != 2 {
		t.Errorf("Expected progress 1/2, got %d/%d", view.VotedCount, view.VoterCount)
	}
	if view.VoteSummary == nil {
		t.Fatal("Expected vote summary while revealed")
	}
	if _, ok := view.Room.Reactions["v2"]; ok {
		t.Error("Expected expired reaction to be filtered from the view")
	}
	if view.Timer == nil || view.Timer.RemainingSeconds != 20 || !view.Timer.LowTime {
		t.Errorf("Expected 20s remaining low-time timer, got %+v", view.Timer)
	}
}
