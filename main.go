package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/namexbalboa/manage-tools-by-namex/db"
	"github.com/namexbalboa/manage-tools-by-namex/mocks"
	"github.com/namexbalboa/manage-tools-by-namex/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, relying on environment")
	}

	initAuth()

	// Mock mode swaps Redis and DynamoDB for in-memory implementations so
	// the whole stack runs locally with no external services.
	var roomStore store.RoomStore
	if mocks.IsMockMode() {
		log.Println("Running in MOCK MODE - using in-memory room store")
		roomStore = store.NewMemoryStore()
	} else {
		endpoint := os.Getenv("REDIS_ENDPOINT")
		if endpoint == "" {
			endpoint = "localhost:6379"
		}
		redisStore := store.NewRedisStore(store.NewRedisClient(endpoint))
		if err := redisStore.Ping(context.Background()); err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", endpoint, err)
		}
		log.Printf("[STORE] Connected to Redis at %s", endpoint)
		roomStore = redisStore
	}

	db.InitWithMocks()

	hub := NewHub(roomStore)
	go hub.Run()

	// Register handlers
	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/api/session", handleCreateSession)
	http.HandleFunc("/api/rooms", handleCreateRoom(roomStore))
	http.HandleFunc("/api/rooms/", handleRoom(roomStore))
	http.HandleFunc("/api/decks", handleDecks)
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
