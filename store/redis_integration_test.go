package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/namexbalboa/manage-tools-by-namex/poker"
)

// These tests only run against a real Redis; set REDIS_ENDPOINT to enable.
func integrationStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ENDPOINT")
	if addr == "" {
		t.Skip("Skipping integration test: REDIS_ENDPOINT not set")
	}
	s := NewRedisStore(NewRedisClient(addr))
	if err := s.Ping(context.Background()); err != nil {
		t.Skipf("Skipping integration test: Redis not reachable: %v", err)
	}
	return s
}

func TestRedisIntegration_RoomRoundTrip(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	room := poker.NewRoom(NewRoomID(), "creator", poker.DeckTShirt, time.Now())
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	defer s.DeleteRoom(ctx, room.ID)

	if err := s.SetParticipant(ctx, room.ID, poker.Participant{
		UserID:   "u1",
		Nickname: "ada",
		JoinedAt: time.Now().UnixMilli(),
	}); err != nil {
		t.Fatalf("SetParticipant failed: %v", err)
	}
	if err := s.SetStory(ctx, room.ID, poker.Story{ID: "s1", Title: "login", CreatedAt: time.Now().UnixMilli()}); err != nil {
		t.Fatalf("SetStory failed: %v", err)
	}
	if err := s.SelectStory(ctx, room.ID, "s1"); err != nil {
		t.Fatalf("SelectStory failed: %v", err)
	}
	if err := s.SetVote(ctx, room.ID, "u1", "M"); err != nil {
		t.Fatalf("SetVote failed: %v", err)
	}

	got, err := s.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if got.Deck != poker.DeckTShirt {
		t.Errorf("Expected tshirt deck, got %s", got.Deck)
	}
	if got.CurrentStoryID != "s1" {
		t.Errorf("Expected current story s1, got %q", got.CurrentStoryID)
	}
	if got.Votes["u1"] != "M" {
		t.Errorf("Expected vote M, got %q", got.Votes["u1"])
	}
	if got.Participants["u1"].Nickname != "ada" {
		t.Errorf("Expected participant ada, got %q", got.Participants["u1"].Nickname)
	}
}

func TestRedisIntegration_SubscribeSeesWrites(t *testing.T) {
	s := integrationStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	room := poker.NewRoom(NewRoomID(), "creator", poker.DeckFibonacci, time.Now())
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	defer s.DeleteRoom(context.Background(), room.ID)

	ch, err := s.Subscribe(ctx, room.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	snap := waitSnapshot(t, ch)
	if snap == nil || snap.ID != room.ID {
		t.Fatalf("Expected initial snapshot for %s, got %v", room.ID, snap)
	}

	if err := s.SetVote(ctx, room.ID, "u1", "8"); err != nil {
		t.Fatalf("SetVote failed: %v", err)
	}
	for {
		snap = waitSnapshot(t, ch)
		if snap == nil {
			t.Fatal("Room vanished while waiting for vote snapshot")
		}
		if snap.Votes["u1"] == "8" {
			break
		}
	}
}

func TestRedisIntegration_LazyExpiry(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	room := poker.NewRoom(NewRoomID(), "creator", poker.DeckFibonacci, time.Now())
	room.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	_, err := s.GetRoom(ctx, room.ID)
	if !errors.Is(err, ErrRoomExpired) {
		t.Fatalf("Expected ErrRoomExpired, got %v", err)
	}
	_, err = s.GetRoom(ctx, room.ID)
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound after expiry delete, got %v", err)
	}
}

func TestRedisIntegration_ReactionGuard(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	room := poker.NewRoom(NewRoomID(), "creator", poker.DeckFibonacci, time.Now())
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	defer s.DeleteRoom(ctx, room.ID)

	if err := s.SetReaction(ctx, room.ID, "u1", poker.Reaction{Emoji: "👍", Timestamp: 1000}); err != nil {
		t.Fatalf("SetReaction failed: %v", err)
	}
	if err := s.SetReaction(ctx, room.ID, "u1", poker.Reaction{Emoji: "🎉", Timestamp: 2000}); err != nil {
		t.Fatalf("SetReaction failed: %v", err)
	}

	if err := s.RemoveReaction(ctx, room.ID, "u1", 1000); err != nil {
		t.Fatalf("RemoveReaction failed: %v", err)
	}
	got, err := s.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if got.Reactions["u1"].Emoji != "🎉" {
		t.Errorf("Expected newer reaction to survive stale delete, got %q", got.Reactions["u1"].Emoji)
	}
}
