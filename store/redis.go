package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/namexbalboa/manage-tools-by-namex/poker"
)

// Room documents live in one Redis hash per room so every mutation stays a
// narrow field write. Subtree entries use a "<kind>:<id>" field name; the
// scalar top-level fields share the "meta" field. After every write a change
// notice goes out on the room's pub/sub channel and subscribers re-read the
// whole document, which gives the Firebase-style "whole document per change"
// push on top of plain hashes.
const (
	roomKeyPrefix  = "poker:room:"
	fieldMeta      = "meta"
	fieldCurrent   = "currentStoryId"
	fieldRevealed  = "revealed"
	fieldTimer     = "timer"
	prefixPart     = "participant:"
	prefixStory    = "story:"
	prefixVote     = "vote:"
	prefixReaction = "reaction:"

	noticeUpdate = "update"
	noticeGone   = "gone"
)

// roomMeta holds the immutable-ish top-level scalars.
type roomMeta struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	CreatedBy string           `json:"createdBy"`
	CreatedAt int64            `json:"createdAt"`
	ExpiresAt int64            `json:"expiresAt"`
	Status    poker.RoomStatus `json:"status"`
	Deck      poker.DeckType   `json:"deck"`
}

type RedisStore struct {
	client *redis.Client
}

// NewRedisClient builds a client from the endpoint with the connection
// settings used across our deployments.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping verifies the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func roomKey(roomID string) string    { return roomKeyPrefix + roomID }
func changeChan(roomID string) string { return roomKeyPrefix + roomID + ":changes" }

func (s *RedisStore) publish(ctx context.Context, roomID, notice string) {
	if err := s.client.Publish(ctx, changeChan(roomID), notice).Err(); err != nil {
		log.Printf("[STORE] Failed to publish %s notice for room %s: %v", notice, roomID, err)
	}
}

func (s *RedisStore) CreateRoom(ctx context.Context, room *poker.Room) error {
	meta := roomMeta{
		ID:        room.ID,
		Type:      room.Type,
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt,
		ExpiresAt: room.ExpiresAt,
		Status:    room.Status,
		Deck:      room.Deck,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	key := roomKey(room.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldMeta, string(metaJSON), fieldRevealed, "0")
		// Storage hygiene only: the authoritative expiry check is the
		// expiresAt comparison performed on read.
		pipe.Expire(ctx, key, poker.RoomTTL)
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, room.ID, noticeUpdate)
	return nil
}

func (s *RedisStore) GetRoom(ctx context.Context, roomID string) (*poker.Room, error) {
	fields, err := s.client.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrRoomNotFound
	}

	room, err := assembleRoom(fields)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}
	if room.Expired(time.Now()) {
		// Lazy expiry. DEL on an already-deleted key is a no-op, so racing
		// readers can all take this branch safely.
		if err := s.client.Del(ctx, roomKey(roomID)).Err(); err != nil {
			log.Printf("[STORE] Failed to delete expired room %s: %v", roomID, err)
		}
		s.publish(ctx, roomID, noticeGone)
		return nil, ErrRoomExpired
	}
	return room, nil
}

func (s *RedisStore) DeleteRoom(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, roomKey(roomID)).Err(); err != nil {
		return err
	}
	s.publish(ctx, roomID, noticeGone)
	return nil
}

// ensureRoom guards field writes against recreating a deleted room's hash
// as a partial document. Check-then-write, not atomic; a room deleted in
// between simply ends up with an orphaned hash that the next read expires.
func (s *RedisStore) ensureRoom(ctx context.Context, roomID string) error {
	n, err := s.client.Exists(ctx, roomKey(roomID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *RedisStore) setField(ctx context.Context, roomID, field, value string) error {
	if err := s.ensureRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, roomKey(roomID), field, value).Err(); err != nil {
		return err
	}
	s.publish(ctx, roomID, noticeUpdate)
	return nil
}

func (s *RedisStore) setJSONField(ctx context.Context, roomID, field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.setField(ctx, roomID, field, string(data))
}

func (s *RedisStore) delField(ctx context.Context, roomID, field string) error {
	if err := s.ensureRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.client.HDel(ctx, roomKey(roomID), field).Err(); err != nil {
		return err
	}
	s.publish(ctx, roomID, noticeUpdate)
	return nil
}

func (s *RedisStore) SetParticipant(ctx context.Context, roomID string, p poker.Participant) error {
	return s.setJSONField(ctx, roomID, prefixPart+p.UserID, p)
}

func (s *RedisStore) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	return s.delField(ctx, roomID, prefixPart+userID)
}

func (s *RedisStore) SetParticipantRole(ctx context.Context, roomID, userID string, role poker.Role) error {
	field := prefixPart + userID
	raw, err := s.client.HGet(ctx, roomKey(roomID), field).Result()
	var p poker.Participant
	switch {
	case err == redis.Nil:
		p = poker.Participant{UserID: userID}
	case err != nil:
		return err
	default:
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return fmt.Errorf("participant %s: %w", userID, err)
		}
	}
	// Read-modify-write without a transaction: a concurrent participant
	// update resolves last-write-wins like every other field conflict.
	p.Role = role
	return s.setJSONField(ctx, roomID, field, p)
}

func (s *RedisStore) SetStory(ctx context.Context, roomID string, story poker.Story) error {
	return s.setJSONField(ctx, roomID, prefixStory+story.ID, story)
}

func (s *RedisStore) DeleteStory(ctx context.Context, roomID, storyID string) error {
	// currentStoryId is left as-is even when it references the deleted
	// story; readers resolve the dangling id to "no active story".
	return s.delField(ctx, roomID, prefixStory+storyID)
}

func (s *RedisStore) SetStoryEstimate(ctx context.Context, roomID, storyID, value string) error {
	field := prefixStory + storyID
	raw, err := s.client.HGet(ctx, roomKey(roomID), field).Result()
	if err == redis.Nil {
		return ErrStoryNotFound
	}
	if err != nil {
		return err
	}
	var story poker.Story
	if err := json.Unmarshal([]byte(raw), &story); err != nil {
		return fmt.Errorf("story %s: %w", storyID, err)
	}
	story.EstimatedValue = value
	return s.setJSONField(ctx, roomID, field, story)
}

func (s *RedisStore) SelectStory(ctx context.Context, roomID, storyID string) error {
	if err := s.ensureRoom(ctx, roomID); err != nil {
		return err
	}
	key := roomKey(roomID)

	voteFields, err := s.hashFieldsWithPrefix(ctx, key, prefixVote)
	if err != nil {
		return err
	}

	// One pipeline so the paired writes are issued together; a concurrent
	// reader may still observe the intermediate state and must tolerate it.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldCurrent, storyID, fieldRevealed, "0")
		if len(voteFields) > 0 {
			pipe.HDel(ctx, key, voteFields...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, roomID, noticeUpdate)
	return nil
}

func (s *RedisStore) SetVote(ctx context.Context, roomID, userID, value string) error {
	return s.setField(ctx, roomID, prefixVote+userID, value)
}

func (s *RedisStore) SetRevealed(ctx context.Context, roomID string, revealed bool) error {
	v := "0"
	if revealed {
		v = "1"
	}
	return s.setField(ctx, roomID, fieldRevealed, v)
}

func (s *RedisStore) ResetRound(ctx context.Context, roomID string) error {
	if err := s.ensureRoom(ctx, roomID); err != nil {
		return err
	}
	key := roomKey(roomID)

	voteFields, err := s.hashFieldsWithPrefix(ctx, key, prefixVote)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldRevealed, "0")
		if len(voteFields) > 0 {
			pipe.HDel(ctx, key, voteFields...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, roomID, noticeUpdate)
	return nil
}

func (s *RedisStore) SetTimer(ctx context.Context, roomID string, t poker.Timer) error {
	return s.setJSONField(ctx, roomID, fieldTimer, t)
}

func (s *RedisStore) SetReaction(ctx context.Context, roomID, userID string, re poker.Reaction) error {
	return s.setJSONField(ctx, roomID, prefixReaction+userID, re)
}

func (s *RedisStore) RemoveReaction(ctx context.Context, roomID, userID string, timestamp int64) error {
	key := roomKey(roomID)
	field := prefixReaction + userID
	removed := false

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, field).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		var re poker.Reaction
		if err := json.Unmarshal([]byte(raw), &re); err != nil {
			return err
		}
		if re.Timestamp != timestamp {
			// A newer reaction took the slot; this scheduled delete is stale.
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, key, field)
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, key)

	if err == redis.TxFailedErr {
		// The key changed under the watch; whoever changed it owns the
		// reaction now.
		return nil
	}
	if err != nil {
		return err
	}
	if removed {
		s.publish(ctx, roomID, noticeUpdate)
	}
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, roomID string) (<-chan *poker.Room, error) {
	pubsub := s.client.Subscribe(ctx, changeChan(roomID))
	// Force the subscription onto the wire before the initial read so no
	// change notice between read and subscribe is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan *poker.Room, 16)

	deliver := func() {
		room, err := s.GetRoom(ctx, roomID)
		if err != nil {
			room = nil
		}
		select {
		case out <- room:
		default:
			// Slow subscriber; the next snapshot supersedes this one anyway.
		}
	}

	go func() {
		defer close(out)
		defer pubsub.Close()

		deliver()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if msg.Payload == noticeGone {
					select {
					case out <- nil:
					default:
					}
					continue
				}
				deliver()
			}
		}
	}()

	return out, nil
}

func (s *RedisStore) hashFieldsWithPrefix(ctx context.Context, key, prefix string) ([]string, error) {
	all, err := s.client.HKeys(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var fields []string
	for _, f := range all {
		if strings.HasPrefix(f, prefix) {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func assembleRoom(fields map[string]string) (*poker.Room, error) {
	room := &poker.Room{}
	room.Normalize()

	for field, raw := range fields {
		switch {
		case field == fieldMeta:
			var meta roomMeta
			if err := json.Unmarshal([]byte(raw), &meta); err != nil {
				return nil, fmt.Errorf("meta: %w", err)
			}
			room.ID = meta.ID
			room.Type = meta.Type
			room.CreatedBy = meta.CreatedBy
			room.CreatedAt = meta.CreatedAt
			room.ExpiresAt = meta.ExpiresAt
			room.Status = meta.Status
			room.Deck = meta.Deck
		case field == fieldCurrent:
			room.CurrentStoryID = raw
		case field == fieldRevealed:
			room.Revealed = raw == "1"
		case field == fieldTimer:
			var t poker.Timer
			if err := json.Unmarshal([]byte(raw), &t); err != nil {
				return nil, fmt.Errorf("timer: %w", err)
			}
			room.Timer = &t
		case strings.HasPrefix(field, prefixPart):
			var p poker.Participant
			if err := json.Unmarshal([]byte(raw), &p); err != nil {
				return nil, fmt.Errorf("participant %s: %w", field, err)
			}
			room.Participants[p.UserID] = p
		case strings.HasPrefix(field, prefixStory):
			var st poker.Story
			if err := json.Unmarshal([]byte(raw), &st); err != nil {
				return nil, fmt.Errorf("story %s: %w", field, err)
			}
			room.Stories[st.ID] = st
		case strings.HasPrefix(field, prefixVote):
			room.Votes[strings.TrimPrefix(field, prefixVote)] = raw
		case strings.HasPrefix(field, prefixReaction):
			var re poker.Reaction
			if err := json.Unmarshal([]byte(raw), &re); err != nil {
				return nil, fmt.Errorf("reaction %s: %w", field, err)
			}
			room.Reactions[strings.TrimPrefix(field, prefixReaction)] = re
		}
	}
	room.Normalize()
	return room, nil
}
