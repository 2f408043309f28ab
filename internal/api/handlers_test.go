package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayush123-bit/paircode/internal/db"
	"github.com/ayush123-bit/paircode/internal/llm"
	"github.com/ayush123-bit/paircode/internal/ws"
)

type fakeCompleter struct {
	result llm.Result
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, code string, cursor int, language string) (llm.Result, error) {
	return f.result, f.err
}

func setupTestAPI(t *testing.T) (*API, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "paircode-api-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create database: %v", err)
	}

	hub := ws.NewHub(database)
	go hub.Run()

	api := New(hub, database, &fakeCompleter{result: llm.Result{Suggestion: "pass", Confidence: 0.9}})

	cleanup := func() {
		database.Close()
		os.RemoveAll(tmpDir)
	}

	return api, cleanup
}

func TestHealthHandler(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	api.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%v'", response["status"])
	}
}

func TestCreateRoomSeedsDefaults(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	req := httptest.NewRequest("POST", "/api/rooms", bytes.NewReader([]byte(`{"language":"python"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	api.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	var room RoomResponse
	if err := json.NewDecoder(w.Body).Decode(&room); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if room.RoomID == "" {
		t.Error("Room ID should be generated")
	}
	if room.Code != defaultSeedCode {
		t.Errorf("Expected seed code, got %q", room.Code)
	}
	if room.Language != "python" {
		t.Errorf("Expected language 'python', got %q", room.Language)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/api/rooms/does-not-exist", nil)
	w := httptest.NewRecorder()

	api.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCreateThenGetRoom(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	req := httptest.NewRequest("POST", "/api/rooms", bytes.NewReader([]byte(`{"language":"go"}`)))
	w := httptest.NewRecorder()
	api.Routes().ServeHTTP(w, req)

	var created RoomResponse
	json.NewDecoder(w.Body).Decode(&created)

	req = httptest.NewRequest("GET", "/api/rooms/"+created.RoomID, nil)
	w = httptest.NewRecorder()
	api.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var fetched RoomResponse
	json.NewDecoder(w.Body).Decode(&fetched)
	if fetched.RoomID != created.RoomID {
		t.Errorf("Room ID mismatch: %q vs %q", fetched.RoomID, created.RoomID)
	}
	if fetched.Language != "go" {
		t.Errorf("Expected language 'go', got %q", fetched.Language)
	}
}

func TestDeleteRoom(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	api.database.CreateRoom("delete-me", "", "python")

	req := httptest.NewRequest("DELETE", "/api/rooms/delete-me", nil)
	w := httptest.NewRecorder()
	api.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	room, _ := api.database.GetRoom("delete-me")
	if room != nil {
		t.Error("Room should have been deleted")
	}
}

func TestInvalidJSON(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	req := httptest.NewRequest("POST", "/api/rooms", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	api.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestAutocomplete(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	body := `{"code":"x = 1\n","cursor_position":6,"language":"python"}`
	req := httptest.NewRequest("POST", "/api/autocomplete", bytes.NewReader([]byte(body)))
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()

	api.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp AutocompleteResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Suggestion != "pass" || resp.Confidence != 0.9 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestAutocompleteUpstreamFailure(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()
	api.completer = &fakeCompleter{err: errors.New("upstream down")}

	body := `{"code":"x = 1\n","cursor_position":6}`
	req := httptest.NewRequest("POST", "/api/autocomplete", bytes.NewReader([]byte(body)))
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()

	api.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
}

func TestAutocompleteRateLimited(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	body := `{"code":"x = 1\n","cursor_position":6}`
	var last int
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("POST", "/api/autocomplete", bytes.NewReader([]byte(body)))
		req.RemoteAddr = "10.0.0.3:1234"
		w := httptest.NewRecorder()
		api.Routes().ServeHTTP(w, req)
		last = w.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("Expected status 429 after burst, got %d", last)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	req := httptest.NewRequest("PUT", "/api/rooms", nil)
	w := httptest.NewRecorder()
	api.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}
