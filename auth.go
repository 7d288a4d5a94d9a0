package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/namexbalboa/manage-tools-by-namex/poker"
)

var jwtSecret []byte

// ProfileClaims carries the self-asserted participant profile. There is no
// identity verification: nickname and avatar are whatever the client claims,
// and the token only binds them to a stable userId for the session.
type ProfileClaims struct {
	UserID   string       `json:"user_id"`
	Nickname string       `json:"nickname"`
	Avatar   poker.Avatar `json:"avatar"`
	jwt.RegisteredClaims
}

type sessionRequest struct {
	Nickname string       `json:"nickname"`
	Avatar   poker.Avatar `json:"avatar"`
}

type sessionResponse struct {
	UserID   string       `json:"userId"`
	Nickname string       `json:"nickname"`
	Avatar   poker.Avatar `json:"avatar"`
	Token    string       `json:"token"`
}

func initAuth() {
	jwtSecretStr := os.Getenv("JWT_SECRET")
	if jwtSecretStr == "" {
		// Generate a random secret if not provided
		secret := make([]byte, 32)
		rand.Read(secret)
		jwtSecret = secret
		log.Println("Warning: JWT_SECRET not set, using randomly generated secret")
	} else {
		jwtSecret = []byte(jwtSecretStr)
	}
}

func generateSessionToken(userID, nickname string, avatar poker.Avatar) (string, error) {
	claims := ProfileClaims{
		UserID:   userID,
		Nickname: nickname,
		Avatar:   avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "manage-tools",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(jwtSecret)
	if err != nil {
		log.Printf("[AUTH] ERROR: Failed to sign session token: %s", err.Error())
		return "", err
	}
	return signedToken, nil
}

func verifySessionToken(tokenString string) (*ProfileClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ProfileClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			log.Printf("[AUTH] ERROR: Unexpected signing method: %v", token.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*ProfileClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// handleCreateSession issues a session token for a self-asserted profile.
func handleCreateSession(w http.ResponseWriter, r *http.Request) {
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

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid request body"})
		return
	}

	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Nickname == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "nickname is required"})
		return
	}

	userID := uuid.NewString()
	token, err := generateSessionToken(userID, req.Nickname, req.Avatar)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "failed to create session"})
		return
	}

	log.Printf("[AUTH] Session created for %s (%s)", req.Nickname, userID)
	json.NewEncoder(w).Encode(sessionResponse{
		UserID:   userID,
		Nickname: req.Nickname,
		Avatar:   req.Avatar,
		Token:    token,
	})
}

// requestClaims extracts and verifies the bearer token on a REST request.
func requestClaims(r *http.Request) (*ProfileClaims, error) {
	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		return nil, fmt.Errorf("no token provided")
	}
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	return verifySessionToken(tokenString)
}

func enableCORS(w http.ResponseWriter) {
	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	w.Header().Set("Access-Control-Allow-Origin", frontendURL)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}
