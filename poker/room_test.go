package poker

import (
	"testing"
	"time"
)

func TestNewRoomDefaults(t *testing.T) {
	now := testNow()
	room := NewRoom("abc123", "u1", "", now)

	if room.Type != RoomTypeScrumPoker {
		t.Errorf("Expected type scrum-poker, got %q", room.Type)
	}
	if room.Deck != DeckFibonacci {
		t.Errorf("Expected fibonacci deck fallback, got %q", room.Deck)
	}
	if room.Status != StatusActive {
		t.Errorf("Expected active status, got %q", room.Status)
	}
	if want := now.Add(RoomTTL).UnixMilli(); room.ExpiresAt != want {
		t.Errorf("Expected expiry %d, got %d", want, room.ExpiresAt)
	}
}

func TestRoomExpired(t *testing.T) {
	now := testNow()
	room := NewRoom("r1", "u1", DeckFibonacci, now)

	if room.Expired(now) {
		t.Error("Fresh room should not be expired")
	}
	if !room.Expired(now.Add(RoomTTL)) {
		t.Error("Room should be expired exactly at expiresAt")
	}
	if !room.Expired(now.Add(RoomTTL + time.Hour)) {
		t.Error("Room should stay expired after expiresAt")
	}
}

func TestNormalize_FillsNilCollections(t *testing.T) {
	room := &Room{ID: "r1"}
	room.Normalize()

	if room.Participants == nil || room.Stories == nil || room.Votes == nil || room.Reactions == nil {
		t.Error("Expected all collections non-nil after Normalize")
	}
	if room.Deck != DeckFibonacci {
		t.Errorf("Expected fibonacci default deck, got %q", room.Deck)
	}
}

func TestSortedStories(t *testing.T) {
	room := NewRoom("r1", "u1", DeckFibonacci, testNow())
	room.Stories["b"] = Story{ID: "b", CreatedAt: 200}
	room.Stories["a"] = Story{ID: "a", CreatedAt: 100}
	room.Stories["c"] = Story{ID: "c", CreatedAt: 200}

	stories := room.SortedStories()
	if len(stories) != 3 {
		t.Fatalf("Expected 3 stories, got %d", len(stories))
	}
	if stories[0].ID != "a" || stories[1].ID != "b" || stories[2].ID != "c" {
		t.Errorf("Expected order a,b,c got %s,%s,%s", stories[0].ID, stories[1].ID, stories[2].ID)
	}
}

func TestCurrentStory_Dangling(t *testing.T) {
	room := NewRoom("r1", "u1", DeckFibonacci, testNow())
	room.Stories["s1"] = Story{ID: "s1", CreatedAt: 1}
	room.CurrentStoryID = "s1"

	if _, ok := room.CurrentStory(); !ok {
		t.Fatal("Expected current story to resolve")
	}

	delete(room.Stories, "s1")
	if _, ok := room.CurrentStory(); ok {
		t.Error("Expected dangling currentStoryId to resolve to no story")
	}
}

func TestLiveReactions(t *testing.T) {
	now := testNow()
	room := NewRoom("r1", "u1", DeckFibonacci, now)
	room.Reactions = map[string]Reaction{
		"fresh": {Emoji: "🎉", Timestamp: now.UnixMilli()},
		"stale": {Emoji: "👍", Timestamp: now.Add(-5 * time.Second).UnixMilli()},
		"edge":  {Emoji: "🔥", Timestamp: now.Add(-ReactionTTL).UnixMilli()},
	}

	live := room.LiveReactions(now)
	if len(live) != 1 {
		t.Fatalf("Expected 1 live reaction, got %d", len(live))
	}
	if _, ok := live["fresh"]; !ok {
		t.Error("Expected the fresh reaction to survive")
	}
}

func TestReactionExpiredAt(t *testing.T) {
	now := testNow()
	reaction := Reaction{Emoji: "👏", Timestamp: now.UnixMilli()}

	if reaction.ExpiredAt(now) {
		t.Error("Reaction should be live at write time")
	}
	if !reaction.ExpiredAt(now.Add(ReactionTTL)) {
		t.Error("Reaction should be expired exactly at the TTL boundary")
	}
}

func TestDeckCatalog(t *testing.T) {
	fib := GetDeck(DeckFibonacci)
	if len(fib.Cards) != 13 {
		t.Errorf("Expected 13 fibonacci cards, got %d", len(fib.Cards))
	}
	if !fib.Contains("89") || !fib.Contains("?") || !fib.Contains("☕") {
		t.Error("Fibonacci deck is missing expected cards")
	}
	if fib.Contains("4") {
		t.Error("Fibonacci deck should not contain 4")
	}

	if got := GetDeck("no-such-deck"); got.ID != DeckFibonacci {
		t.Errorf("Expected fallback to fibonacci, got %q", got.ID)
	}

	if !IsSpecial("?") || !IsSpecial("☕") {
		t.Error("Expected ? and ☕ to be special")
	}
	if IsSpecial("5") || IsSpecial("XL") {
		t.Error("Regular cards must not be special")
	}
}
