package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/namexbalboa/manage-tools-by-namex/poker"
)

// MemoryStore is the in-memory RoomStore used in mock mode and in tests.
// It mirrors the Redis adapter's semantics: field-scoped writes, whole-room
// snapshots pushed to subscribers in write order, lazy expiry on read.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*poker.Room
	subs  map[string]map[chan *poker.Room]struct{}
}

func NewMemoryStore() *MemoryStore {
	log.Println("[MOCK] In-memory room store initialized")
	return &MemoryStore{
		rooms: make(map[string]*poker.Room),
		subs:  make(map[string]map[chan *poker.Room]struct{}),
	}
}

func (m *MemoryStore) CreateRoom(ctx context.Context, room *poker.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = cloneRoom(room)
	m.notifyLocked(room.ID)
	return nil
}

func (m *MemoryStore) GetRoom(ctx context.Context, roomID string) (*poker.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Expired(time.Now()) {
		// Lazy expiry: the read deletes the room. A concurrent reader that
		// already removed it lands in the not-found branch above, so the
		// second delete is a no-op.
		delete(m.rooms, roomID)
		m.notifyGoneLocked(roomID)
		return nil, ErrRoomExpired
	}
	return cloneRoom(room), nil
}

func (m *MemoryStore) DeleteRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return nil
	}
	delete(m.rooms, roomID)
	m.notifyGoneLocked(roomID)
	return nil
}

// mutate runs fn against the live document and notifies subscribers.
func (m *MemoryStore) mutate(roomID string, fn func(*poker.Room) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.Normalize()
	if err := fn(room); err != nil {
		return err
	}
	m.notifyLocked(roomID)
	return nil
}

func (m *MemoryStore) SetParticipant(ctx context.Context, roomID string, p poker.Participant) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		room.Participants[p.UserID] = p
		return nil
	})
}

func (m *MemoryStore) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		delete(room.Participants, userID)
		return nil
	})
}

func (m *MemoryStore) SetParticipantRole(ctx context.Context, roomID, userID string, role poker.Role) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		p := room.Participants[userID]
		p.UserID = userID
		p.Role = role
		room.Participants[userID] = p
		return nil
	})
}

func (m *MemoryStore) SetStory(ctx context.Context, roomID string, s poker.Story) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		room.Stories[s.ID] = s
		return nil
	})
}

func (m *MemoryStore) DeleteStory(ctx context.Context, roomID, storyID string) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		// currentStoryId is deliberately left untouched even when it points
		// at the deleted story; readers tolerate the dangling reference.
		delete(room.Stories, storyID)
		return nil
	})
}

func (m *MemoryStore) SetStoryEstimate(ctx context.Context, roomID, storyID, value string) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		s, ok := room.Stories[storyID]
		if !ok {
			return ErrStoryNotFound
		}
		s.EstimatedValue = value
		room.Stories[storyID] = s
		return nil
	})
}

func (m *MemoryStore) SelectStory(ctx context.Context, roomID, storyID string) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		room.CurrentStoryID = storyID
		room.Votes = make(map[string]string)
		room.Revealed = false
		return nil
	})
}

func (m *MemoryStore) SetVote(ctx context.Context, roomID, userID, value string) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		room.Votes[userID] = value
		return nil
	})
}

func (m *MemoryStore) SetRevealed(ctx context.Context, roomID string, revealed bool) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		room.Revealed = revealed
		return nil
	})
}

func (m *MemoryStore) ResetRound(ctx context.Context, roomID string) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		room.Votes = make(map[string]string)
		room.Revealed = false
		return nil
	})
}

func (m *MemoryStore) SetTimer(ctx context.Context, roomID string, t poker.Timer) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		room.Timer = &t
		return nil
	})
}

func (m *MemoryStore) SetReaction(ctx context.Context, roomID, userID string, re poker.Reaction) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		room.Reactions[userID] = re
		return nil
	})
}

func (m *MemoryStore) RemoveReaction(ctx context.Context, roomID, userID string, timestamp int64) error {
	return m.mutate(roomID, func(room *poker.Room) error {
		re, ok := room.Reactions[userID]
		if !ok || re.Timestamp != timestamp {
			// A newer reaction replaced the one this delete was scheduled
			// for; leave it alone.
			return nil
		}
		delete(room.Reactions, userID)
		return nil
	})
}

func (m *MemoryStore) Subscribe(ctx context.Context, roomID string) (<-chan *poker.Room, error) {
	m.mu.Lock()

	ch := make(chan *poker.Room, 16)
	if m.subs[roomID] == nil {
		m.subs[roomID] = make(map[chan *poker.Room]struct{})
	}
	m.subs[roomID][ch] = struct{}{}

	// Initial snapshot, with the same lazy-expiry check a read performs.
	if room, ok := m.rooms[roomID]; ok {
		if room.Expired(time.Now()) {
			delete(m.rooms, roomID)
			m.notifyGoneLocked(roomID)
		} else {
			ch <- cloneRoom(room)
		}
	} else {
		ch <- nil
	}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if set, ok := m.subs[roomID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(m.subs, roomID)
			}
		}
		m.mu.Unlock()
	}()

	return ch, nil
}

func (m *MemoryStore) notifyLocked(roomID string) {
	room, ok := m.rooms[roomID]
	if !ok {
		return
	}
	for ch := range m.subs[roomID] {
		select {
		case ch <- cloneRoom(room):
		default:
			// Subscriber is not keeping up; it will catch up on the next
			// snapshot since every notification carries the whole room.
		}
	}
}

func (m *MemoryStore) notifyGoneLocked(roomID string) {
	for ch := range m.subs[roomID] {
		select {
		case ch <- nil:
		default:
		}
	}
}

func cloneRoom(room *poker.Room) *poker.Room {
	c := *room
	c.Participants = make(map[string]poker.Participant, len(room.Participants))
	for k, v := range room.Participants {
		c.Participants[k] = v
	}
	c.Stories = make(map[string]poker.Story, len(room.Stories))
	for k, v := range room.Stories {
		c.Stories[k] = v
	}
	c.Votes = make(map[string]string, len(room.Votes))
	for k, v := range room.Votes {
		c.Votes[k] = v
	}
	if room.Reactions != nil {
		c.Reactions = make(map[string]poker.Reaction, len(room.Reactions))
		for k, v := range room.Reactions {
			c.Reactions[k] = v
		}
	}
	if room.Timer != nil {
		t := *room.Timer
		c.Timer = &t
	}
	c.Normalize()
	return &c
}
