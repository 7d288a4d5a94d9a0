// Package store is the room store adapter: a tree-structured, key-addressable,
// subscribable store holding one document per room. Writes are narrow and
// field-scoped; subscribers receive whole-room snapshots after every change.
// The store is the only synchronization primitive between clients - there is
// no locking, versioning or compare-and-swap beyond the guarded reaction
// delete, and concurrent writers resolve last-write-wins.
package store

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/namexbalboa/manage-tools-by-namex/poker"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomExpired   = errors.New("room expired")
	ErrStoryNotFound = errors.New("story not found")
)

// RoomStore is implemented by the Redis adapter and by the in-memory store
// used in mock mode and tests. Every mutation notifies all subscribers of
// the room with a fresh snapshot; per-room ordering of notifications matches
// the order the store applied the writes.
type RoomStore interface {
	// CreateRoom writes a new room document.
	CreateRoom(ctx context.Context, room *poker.Room) error
	// GetRoom reads a room. Reading a room past its expiresAt deletes it as
	// a side effect and returns ErrRoomExpired; the deletion is idempotent,
	// concurrent readers discovering expiry together must not error on the
	// second delete. No background sweep exists.
	GetRoom(ctx context.Context, roomID string) (*poker.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error

	// SetParticipant creates or overwrites participants/<userId>.
	SetParticipant(ctx context.Context, roomID string, p poker.Participant) error
	// RemoveParticipant is a hard removal, not a soft delete.
	RemoveParticipant(ctx context.Context, roomID, userID string) error
	// SetParticipantRole writes participants/<userId>/role. Read-modify-write
	// of a single participant entry; concurrent role picks are last-write-wins.
	SetParticipantRole(ctx context.Context, roomID, userID string, role poker.Role) error

	// SetStory creates or overwrites stories/<storyId>.
	SetStory(ctx context.Context, roomID string, s poker.Story) error
	// DeleteStory removes only the story entry. Deleting the currently
	// selected story intentionally leaves currentStoryId dangling; readers
	// resolve the stale reference to "no active story".
	DeleteStory(ctx context.Context, roomID, storyID string) error
	// SetStoryEstimate writes stories/<storyId>/estimatedValue. Acceptance
	// is terminal for the round but the value is simply overwritten if the
	// story is re-opened for a fresh round.
	SetStoryEstimate(ctx context.Context, roomID, storyID, value string) error

	// SelectStory starts a fresh round: currentStoryId=<id>, votes={},
	// revealed=false. The three field writes are always issued together,
	// but consumers still tolerate observing the intermediate state.
	SelectStory(ctx context.Context, roomID, storyID string) error
	// SetVote writes/overwrites votes/<userId>.
	SetVote(ctx context.Context, roomID, userID, value string) error
	SetRevealed(ctx context.Context, roomID string, revealed bool) error
	// ResetRound clears votes and revealed while keeping currentStoryId,
	// staying on the same story for a re-vote.
	ResetRound(ctx context.Context, roomID string) error

	SetTimer(ctx context.Context, roomID string, t poker.Timer) error

	// SetReaction overwrites reactions/<userId>.
	SetReaction(ctx context.Context, roomID, userID string, re poker.Reaction) error
	// RemoveReaction deletes reactions/<userId> only while its stored
	// timestamp still equals the given one, so a stale scheduled delete
	// cannot remove a newer reaction.
	RemoveReaction(ctx context.Context, roomID, userID string, timestamp int64) error

	// Subscribe delivers a snapshot immediately and then after every write
	// to the room. A nil snapshot means the room was deleted or expired.
	// The channel closes when ctx is done.
	Subscribe(ctx context.Context, roomID string) (<-chan *poker.Room, error)
}

const roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRoomID generates an unguessable 13-character base36 room identifier,
// the namespace key for the room's subtree.
func NewRoomID() string {
	id := make([]byte, 13)
	max := big.NewInt(int64(len(roomIDAlphabet)))
	for i := range id {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken.
			panic(err)
		}
		id[i] = roomIDAlphabet[n.Int64()]
	}
	return string(id)
}
