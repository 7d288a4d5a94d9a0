package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/namexbalboa/manage-tools-by-namex/db"
	"github.com/namexbalboa/manage-tools-by-namex/poker"
	"github.com/namexbalboa/manage-tools-by-namex/store"
)

// Response structure for API endpoints
type Response struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Health check endpoint
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	response := Response{
		Message: "Backend is running",
		Status:  "healthy",
	}
	json.NewEncoder(w).Encode(response)
}

type createRoomRequest struct {
	Deck poker.DeckType `json:"deck"`
}

type createRoomResponse struct {
	Room    *poker.Room `json:"room"`
	JoinURL string      `json:"joinUrl"`
}

// handleCreateRoom creates a room owned by the requesting session. The
// creator is not a participant until its websocket joins; ownership alone
// grants the facilitator role on that first join.
func handleCreateRoom(st store.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enableCORS(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
			return
		}

		claims, err := requestClaims(r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid or missing token"})
			return
		}

		var req createRoomRequest
		if r.Body != nil {
			// An empty body means default deck
			json.NewDecoder(r.Body).Decode(&req)
		}

		room := poker.NewRoom(store.NewRoomID(), claims.UserID, req.Deck, time.Now())
		if err := st.CreateRoom(r.Context(), room); err != nil {
			log.Printf("[API] Failed to create room: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "failed to create room"})
			return
		}

		log.Printf("[API] Room %s created by %s (deck: %s)", room.ID, claims.UserID, room.Deck)
		json.NewEncoder(w).Encode(createRoomResponse{
			Room:    room,
			JoinURL: joinURL(room.ID),
		})
	}
}

// handleRoom serves GET /api/rooms/{id} and the /qr and /history subpaths.
func handleRoom(st store.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enableCORS(w)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
		parts := strings.Split(rest, "/")
		roomID := parts[0]
		if roomID == "" {
			http.NotFound(w, r)
			return
		}

		if len(parts) == 1 {
			serveRoomSnapshot(st, w, r, roomID)
			return
		}
		switch parts[1] {
		case "qr":
			serveRoomQR(st, w, r, roomID)
		case "history":
			serveRoomHistory(w, roomID)
		default:
			http.NotFound(w, r)
		}
	}
}

func serveRoomSnapshot(st store.RoomStore, w http.ResponseWriter, r *http.Request, roomID string) {
	w.Header().Set("Content-Type", "application/json")

	room, err := st.GetRoom(r.Context(), roomID)
	if err != nil {
		writeRoomError(w, roomID, err)
		return
	}
	json.NewEncoder(w).Encode(buildRoomView(room, time.Now()))
}

// serveRoomQR renders the join link as a QR PNG. The room is read first so
// expired links 410 instead of encoding a dead URL.
func serveRoomQR(st store.RoomStore, w http.ResponseWriter, r *http.Request, roomID string) {
	if _, err := st.GetRoom(r.Context(), roomID); err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeRoomError(w, roomID, err)
		return
	}

	png, err := qrcode.Encode(joinURL(roomID), qrcode.Medium, 256)
	if err != nil {
		log.Printf("[API] QR encode failed for room %s: %v", roomID, err)
		http.Error(w, "failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func serveRoomHistory(w http.ResponseWriter, roomID string) {
	w.Header().Set("Content-Type", "application/json")

	records, err := db.GetRoomHistoryWithMock(roomID, 50)
	if err != nil {
		log.Printf("[API] Failed to load history for room %s: %v", roomID, err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "failed to load history"})
		return
	}
	if records == nil {
		records = []db.EstimateRecord{}
	}
	json.NewEncoder(w).Encode(records)
}

func writeRoomError(w http.ResponseWriter, roomID string, err error) {
	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "room not found"})
	case errors.Is(err, store.ErrRoomExpired):
		w.WriteHeader(http.StatusGone)
		json.NewEncoder(w).Encode(map[string]string{"error": "room has expired"})
	default:
		log.Printf("[API] Failed to read room %s: %v", roomID, err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "failed to read room"})
	}
}

// handleDecks serves the deck catalog.
func handleDecks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	enableCORS(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	decks := make([]poker.Deck, 0, len(poker.Decks))
	for _, dt := range []poker.DeckType{poker.DeckFibonacci, poker.DeckTShirt, poker.DeckLinear} {
		decks = append(decks, poker.GetDeck(dt))
	}
	json.NewEncoder(w).Encode(decks)
}

func joinURL(roomID string) string {
	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	return fmt.Sprintf("%s/poker?room=%s", frontendURL, roomID)
}
