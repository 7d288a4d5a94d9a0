package db

import (
	"log"

	"github.com/namexbalboa/manage-tools-by-namex/mocks"
)

// useMocks indicates whether to use mock implementations
var useMocks bool

// InitWithMocks initializes the database layer with mock support
func InitWithMocks() {
	useMocks = mocks.IsMockMode()

	if useMocks {
		log.Println("[DB] Running in MOCK MODE - using in-memory database")
		// Initialize mock
		mocks.GetMockDynamoDB()
	} else {
		// Initialize real DynamoDB
		Init()
	}
}

// SaveEstimateWithMock archives an estimate (mock or real)
func SaveEstimateWithMock(rec EstimateRecord) error {
	if useMocks {
		return mocks.GetMockDynamoDB().SaveEstimate(mocks.EstimateRecord{
			RoomID:         rec.RoomID,
			Timestamp:      rec.Timestamp,
			StoryID:        rec.StoryID,
			StoryTitle:     rec.StoryTitle,
			EstimatedValue: rec.EstimatedValue,
			Consensus:      rec.Consensus,
			VoteCount:      rec.VoteCount,
			Deck:           rec.Deck,
			AcceptedBy:     rec.AcceptedBy,
		})
	}
	return SaveEstimate(rec)
}

// GetRoomHistoryWithMock retrieves archived estimates for a room (mock or real)
func GetRoomHistoryWithMock(roomID string, limit int32) ([]EstimateRecord, error) {
	if useMocks {
		mockRecords, err := mocks.GetMockDynamoDB().GetEstimatesByRoom(roomID, int(limit))
		if err != nil {
			return nil, err
		}
		records := make([]EstimateRecord, len(mockRecords))
		for i, mr := range mockRecords {
			records[i] = EstimateRecord{
				RoomID:         mr.RoomID,
				Timestamp:      mr.Timestamp,
				StoryID:        mr.StoryID,
				StoryTitle:     mr.StoryTitle,
				EstimatedValue: mr.EstimatedValue,
				Consensus:      mr.Consensus,
				VoteCount:      mr.VoteCount,
				Deck:           mr.Deck,
				AcceptedBy:     mr.AcceptedBy,
			}
		}
		return records, nil
	}
	return GetRoomHistory(roomID, limit)
}

// CountEstimatesByRoomWithMock returns the archived estimate count (mock or real)
func CountEstimatesByRoomWithMock(roomID string) (int, error) {
	if useMocks {
		return mocks.GetMockDynamoDB().CountEstimatesByRoom(roomID), nil
	}
	return CountEstimatesByRoom(roomID)
}

// IsMockMode returns whether mock mode is enabled
func IsMockMode() bool {
	return useMocks
}
