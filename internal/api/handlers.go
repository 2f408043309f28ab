package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ayush123-bit/paircode/internal/db"
	"github.com/ayush123-bit/paircode/internal/llm"
	"github.com/ayush123-bit/paircode/internal/metrics"
	"github.com/ayush123-bit/paircode/internal/ratelimit"
	"github.com/ayush123-bit/paircode/internal/ws"
)

// New rooms start with this buffer until the first broadcast.
const defaultSeedCode = "# Start coding here...\n"

const (
	completionsPerSecond = 1
	completionsBurst     = 5
)

// Completer produces autocomplete suggestions for the /api/autocomplete
// endpoint.
type Completer interface {
	Complete(ctx context.Context, code string, cursor int, language string) (llm.Result, error)
}

type API struct {
	hub       *ws.Hub
	database  *db.Database
	completer Completer
	limiter   *ratelimit.KeyedLimiters
}

func New(hub *ws.Hub, database *db.Database, completer Completer) *API {
	return &API{
		hub:       hub,
		database:  database,
		completer: completer,
		limiter:   ratelimit.NewKeyedLimiters(completionsPerSecond, completionsBurst),
	}
}

// Routes mounts every endpoint, including the realtime channel and the
// metrics scrape.
func (a *API) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.StatsHandler).Methods(http.MethodGet)

	r.HandleFunc("/api/rooms", a.ListRoomsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms", a.CreateRoomHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/rooms/{roomId}", a.GetRoomHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms/{roomId}", a.DeleteRoomHandler).Methods(http.MethodDelete)

	r.HandleFunc("/api/autocomplete", a.AutocompleteHandler).Methods(http.MethodPost)

	r.HandleFunc("/ws/{roomId}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(a.hub, w, r)
	})

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return r
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"active_rooms":   a.hub.GetRoomCount(),
		"active_clients": a.hub.GetClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err == nil {
			stats["total_rooms"] = dbStats["room_count"]
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Room handlers

type RoomResponse struct {
	RoomID      string    `json:"room_id"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"created_at"`
	ActiveUsers int       `json:"active_users,omitempty"`
}

type CreateRoomRequest struct {
	Language string `json:"language"`
}

func (a *API) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Language == "" {
		req.Language = "python"
	}

	roomID := uuid.NewString()
	if err := a.database.CreateRoom(roomID, defaultSeedCode, req.Language); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to create room")
		return
	}

	room, err := a.database.GetRoom(roomID)
	if err != nil || room == nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get room")
		return
	}

	metrics.RoomsCreated.Inc()

	jsonResponse(w, http.StatusCreated, RoomResponse{
		RoomID:    room.ID,
		Code:      room.Code,
		Language:  room.Language,
		CreatedAt: room.CreatedAt,
	})
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	room, err := a.database.GetRoom(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get room")
		return
	}

	if room == nil {
		errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	activeRooms := a.hub.GetActiveRooms()

	jsonResponse(w, http.StatusOK, RoomResponse{
		RoomID:      room.ID,
		Code:        room.Code,
		Language:    room.Language,
		CreatedAt:   room.CreatedAt,
		ActiveUsers: activeRooms[roomID],
	})
}

func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.database.ListRooms(20, 0)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list rooms")
		return
	}

	activeRooms := a.hub.GetActiveRooms()

	response := make([]RoomResponse, len(rooms))
	for i, room := range rooms {
		response[i] = RoomResponse{
			RoomID:      room.ID,
			Language:    room.Language,
			CreatedAt:   room.CreatedAt,
			ActiveUsers: activeRooms[room.ID],
		}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{"rooms": response})
}

func (a *API) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	if err := a.database.DeleteRoom(roomID); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to delete room")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"deleted": roomID})
}

// Autocomplete

type AutocompleteRequest struct {
	Code           string `json:"code"`
	CursorPosition int    `json:"cursor_position"`
	Language       string `json:"language"`
}

type AutocompleteResponse struct {
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
}

func (a *API) AutocompleteHandler(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !a.limiter.Allow(host) {
		errorResponse(w, http.StatusTooManyRequests, "Too many completion requests")
		return
	}

	var req AutocompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Language == "" {
		req.Language = "python"
	}

	result, err := a.completer.Complete(r.Context(), req.Code, req.CursorPosition, req.Language)
	if err != nil {
		metrics.CompletionFailures.Inc()
		log.Printf("Autocomplete failed: %v", err)
		errorResponse(w, http.StatusBadGateway, "Completion unavailable")
		return
	}

	metrics.CompletionRequests.Inc()

	jsonResponse(w, http.StatusOK, AutocompleteResponse{
		Suggestion: result.Suggestion,
		Confidence: result.Confidence,
	})
}
