package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/robotcrusher/game/auth"
	"github.com/wricardo/mcp-training/robotcrusher/game/config"
	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
	"github.com/wricardo/mcp-training/robotcrusher/game/service"
	"github.com/wricardo/mcp-training/robotcrusher/transport/websocket"
)

// maxRulesBody caps the size of uploaded rule sets
const maxRulesBody = 64 << 10

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil when WebSocket streaming is not wanted.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Players
	api.HandleFunc("/auth/sign-in", s.handleSignIn).Methods("POST")

	// Match management
	api.HandleFunc("/matches", s.handleCreateMatch).Methods("POST")
	api.HandleFunc("/matches", s.handleListMatches).Methods("GET")
	api.HandleFunc("/matches/{id}", s.handleGetMatch).Methods("GET")
	api.HandleFunc("/matches/{id}", s.handleDeleteMatch).Methods("DELETE")

	// Game operations
	api.HandleFunc("/matches/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/matches/{id}/move", s.handleMove).Methods("POST")

	// Rules
	api.HandleFunc("/rules", s.handleListRules).Methods("GET")
	api.HandleFunc("/rules", s.handleSaveRules).Methods("POST")
	api.HandleFunc("/rules/{name}", s.handleGetRules).Methods("GET")

	// Results
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrMatchNotFound),
		errors.Is(err, service.ErrRulesNotFound),
		errors.Is(err, config.ErrRulesNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidDirection),
		errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, config.ErrInvalidRules):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	respondError(w, status, err.Error())
}

// bearerToken reads the token from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Player Handlers

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Match Handlers

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RulesID string `json:"rules_id,omitempty"`
		Token   string `json:"token,omitempty"`
	}

	if r.Body != nil {
		// An empty body selects the default rules
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	token := bearerToken(r)
	if token == "" {
		token = req.Token
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "sign in first: missing bearer token")
		return
	}

	match, err := s.service.CreateMatch(r.Context(), token, req.RulesID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, match)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.service.ListMatches(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of matches to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.SliceStable(matches, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = matches[i].CreatedAt, matches[j].CreatedAt
		} else {
			ti, tj = matches[i].LastAccessedAt, matches[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(matches)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(matches) {
			matches = matches[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(matches),
		"total":   total,
		"matches": matches,
		"sort":    sortBy,
		"order":   order,
	})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["id"]

	match, err := s.service.GetMatch(r.Context(), matchID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, match)
}

func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["id"]

	if err := s.service.DeleteMatch(r.Context(), matchID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Match %s deleted", matchID),
	})
}

// Game Operation Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["id"]

	snapshot, err := s.service.GetState(r.Context(), matchID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if r.URL.Query().Get("view") == "rows" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"match_id":     snapshot.MatchID,
			"state":        snapshot.State,
			"level":        snapshot.Level,
			"kills":        snapshot.Kills,
			"player_power": snapshot.PlayerPower,
			"rows":         snapshot.Rows(),
		})
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["id"]

	var req struct {
		Direction string `json:"direction"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Move(r.Context(), matchID, req.Direction)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Compact server log for observability
	log.WithFields(log.Fields{
		"match":   matchID,
		"dir":     result.Direction,
		"outcome": result.Outcome,
		"power":   result.Snapshot.PlayerPower,
		"level":   result.Snapshot.Level,
	}).Debug("move")

	respondJSON(w, http.StatusOK, result)
}

// Rules Handlers

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.service.ListRules(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rules)
}

func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	rules, err := s.service.LoadRules(r.Context(), name)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rules)
}

// handleSaveRules accepts a rule set as JSON, or as YAML when the content type says so
func (s *Server) handleSaveRules(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRulesBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ext := ".json"
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		ext = ".yaml"
	}

	rules, err := engine.ParseRules(data, ext)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid rules: %v", err))
		return
	}

	if rules.Name == "" {
		respondError(w, http.StatusBadRequest, "Rules name is required")
		return
	}

	if err := s.service.SaveRules(r.Context(), rules.Name+ext, rules); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Rules saved successfully",
		"rules_id": rules.Name,
	})
}

// Result Handlers

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	results, err := s.service.Leaderboard(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "streaming is disabled", http.StatusNotFound)
		return
	}

	matchID := r.URL.Query().Get("match")
	if matchID == "" {
		http.Error(w, "match parameter required", http.StatusBadRequest)
		return
	}

	// Verify match exists
	match, err := s.service.GetMatch(r.Context(), matchID)
	if err != nil {
		http.Error(w, "Invalid match", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, match.ID, websocket.ParseFormat(r.URL.Query().Get("format")))
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
