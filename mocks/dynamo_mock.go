package mocks

import (
	"log"
	"sort"
	"sync"
	"time"
)

// MockDynamoDB provides an in-memory mock for the estimate archive
type MockDynamoDB struct {
	mu        sync.RWMutex
	estimates []EstimateRecord
}

// EstimateRecord mirrors the archived estimate shape in the mock database
type EstimateRecord struct {
	RoomID         string `json:"roomId"`
	Timestamp      int64  `json:"timestamp"`
	StoryID        string `json:"storyId"`
	StoryTitle     string `json:"storyTitle"`
	EstimatedValue string `json:"estimatedValue"`
	Consensus      bool   `json:"consensus"`
	VoteCount      int    `json:"voteCount"`
	Deck           string `json:"deck"`
	AcceptedBy     string `json:"acceptedBy"`
}

var mockDynamoInstance *MockDynamoDB
var mockDynamoOnce sync.Once

// GetMockDynamoDB returns the singleton mock DynamoDB instance
func GetMockDynamoDB() *MockDynamoDB {
	mockDynamoOnce.Do(func() {
		mockDynamoInstance = &MockDynamoDB{
			estimates: make([]EstimateRecord, 0),
		}
		// Add some sample data for local development
		mockDynamoInstance.seedData()
		log.Println("[MOCK] In-memory DynamoDB initialized for local development")
	})
	return mockDynamoInstance
}

// seedData adds sample data for local testing
func (m *MockDynamoDB) seedData() {
	now := time.Now().UnixMilli()
	sampleEstimates := []EstimateRecord{
		{
			RoomID: "mockroom00001", Timestamp: now - 7_200_000,
			StoryID: "mock-story-1", StoryTitle: "User login flow",
			EstimatedValue: "5", Consensus: true, VoteCount: 4,
			Deck: "fibonacci", AcceptedBy: "mock-user-1",
		},
		{
			RoomID: "mockroom00001", Timestamp: now - 3_600_000,
			StoryID: "mock-story-2", StoryTitle: "Search results pagination",
			EstimatedValue: "6.5", Consensus: false, VoteCount: 4,
			Deck: "fibonacci", AcceptedBy: "mock-user-1",
		},
		{
			RoomID: "mockroom00002", Timestamp: now - 1_800_000,
			StoryID: "mock-story-3", StoryTitle: "Export to CSV",
			EstimatedValue: "M", Consensus: true, VoteCount: 3,
			Deck: "tshirt", AcceptedBy: "mock-user-2",
		},
	}
	m.estimates = append(m.estimates, sampleEstimates...)

	log.Printf("[MOCK] Seeded %d estimate records for local development", len(sampleEstimates))
}

// SaveEstimate appends an archived estimate
func (m *MockDynamoDB) SaveEstimate(rec EstimateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.estimates = append(m.estimates, rec)
	log.Printf("[MOCK] Estimate saved: %s=%s (Room: %s)", rec.StoryID, rec.EstimatedValue, rec.RoomID)
	return nil
}

// GetEstimatesByRoom returns estimates for a room, sorted by timestamp descending
func (m *MockDynamoDB) GetEstimatesByRoom(roomID string, limit int) ([]EstimateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roomEstimates := make([]EstimateRecord, 0)
	for _, rec := range m.estimates {
		if rec.RoomID == roomID {
			roomEstimates = append(roomEstimates, rec)
		}
	}

	// Sort by timestamp descending
	sort.Slice(roomEstimates, func(i, j int) bool {
		return roomEstimates[i].Timestamp > roomEstimates[j].Timestamp
	})

	if limit > len(roomEstimates) {
		limit = len(roomEstimates)
	}
	return roomEstimates[:limit], nil
}

// GetRecentEstimates returns the most recent estimates across all rooms
func (m *MockDynamoDB) GetRecentEstimates(limit int) ([]EstimateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]EstimateRecord, len(m.estimates))
	copy(records, m.estimates)

	// Sort by timestamp descending
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})

	if limit > len(records) {
		limit = len(records)
	}
	return records[:limit], nil
}

// CountEstimatesByRoom returns the total number of archived estimates for a room
func (m *MockDynamoDB) CountEstimatesByRoom(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rec := range m.estimates {
		if rec.RoomID == roomID {
			count++
		}
	}
	return count
}
