package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayush123-bit/paircode/internal/api"
	"github.com/ayush123-bit/paircode/internal/cleanup"
	"github.com/ayush123-bit/paircode/internal/config"
	"github.com/ayush123-bit/paircode/internal/db"
	"github.com/ayush123-bit/paircode/internal/llm"
	"github.com/ayush123-bit/paircode/internal/ws"
)

func main() {
	cfg := config.Load()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	hub := ws.NewHub(database)
	go hub.Run()

	completer := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	if cfg.OpenAIAPIKey == "" {
		log.Println("OPENAI_API_KEY not set; autocomplete disabled")
	}

	sweeper := cleanup.New(database, cleanup.DefaultConfig())
	sweeper.Start()
	defer sweeper.Stop()

	apiHandler := api.New(hub, database, completer)
	handler := corsMiddleware(apiHandler.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("paircode server starting on :%s", cfg.ServerPort)
		log.Printf("Database: %s", cfg.DBPath)
		log.Println("Endpoints:")
		log.Println("  - Realtime:     /ws/{roomId}")
		log.Println("  - Health:       GET /health")
		log.Println("  - Stats:        GET /api/stats")
		log.Println("  - Rooms:        GET/POST /api/rooms")
		log.Println("  - Room:         GET/DELETE /api/rooms/{id}")
		log.Println("  - Autocomplete: POST /api/autocomplete")
		log.Println("  - Metrics:      GET /metrics")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
