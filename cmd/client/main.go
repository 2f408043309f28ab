package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ayush123-bit/paircode/internal/controller"
	"github.com/ayush123-bit/paircode/internal/directory"
	"github.com/ayush123-bit/paircode/internal/protocol"
	"github.com/ayush123-bit/paircode/internal/scheduler"
	"github.com/ayush123-bit/paircode/internal/transport"
)

// A line-based text surface: every line typed on stdin is appended to
// the shared buffer, remote updates and suggestions are printed as
// they land. Good enough to pair against a browser participant.
func main() {
	serverURL := flag.String("server", "http://localhost:8080", "paircode server URL")
	roomID := flag.String("room", "", "room to join; empty creates a new one")
	language := flag.String("language", "python", "language for a newly created room")
	flag.Parse()

	if err := run(*serverURL, *roomID, *language); err != nil {
		log.Fatal(err)
	}
}

func run(serverURL, roomID, language string) error {
	dir := directory.New(serverURL)
	ctx := context.Background()

	if roomID == "" {
		room, err := dir.CreateRoom(ctx, language)
		if err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		roomID = room.RoomID
		fmt.Printf("Created room %s\n", roomID)
	}

	wsURL := strings.Replace(serverURL, "http", "ws", 1)

	var ctrl *controller.Controller
	ctrl = controller.New(controller.Config{
		Directory: dir,
		NewTransport: func(onMessage func(protocol.Message)) controller.Transport {
			return transport.New(wsURL, onMessage)
		},
		Completion: func(ctx context.Context, code string, cursor int) (scheduler.Completion, error) {
			resp, err := dir.GetCompletion(ctx, directory.CompletionRequest{
				Code:           code,
				CursorPosition: cursor,
				Language:       language,
			})
			if err != nil {
				return scheduler.Completion{}, err
			}
			return scheduler.Completion{Suggestion: resp.Suggestion, Confidence: resp.Confidence}, nil
		},
		OnRemoteUpdate: func(text string) {
			fmt.Printf("-- remote update\n---\n%s---\n", text)
			// The surface contract: a programmatic update is reported
			// back as a local edit, which echo suppression swallows.
			ctrl.HandleLocalEdit(text, len(text))
		},
		OnPresenceChange: func(count int) {
			fmt.Printf("-- %d user(s) connected\n", count)
		},
	})
	defer ctrl.Leave()

	if err := ctrl.Join(ctx, roomID); err != nil {
		return fmt.Errorf("could not join room %s: %w", roomID, err)
	}

	fmt.Printf("Joined room %s\n---\n%s---\n", roomID, ctrl.Store().Document())
	fmt.Println("Type lines to append, \"/dismiss\" to clear a suggestion; Ctrl-D leaves the room.")

	// Print suggestions as the scheduler publishes them.
	done := make(chan struct{})
	defer close(done)
	go watchSuggestions(ctrl, done)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "/dismiss" {
			ctrl.DismissSuggestion()
			continue
		}
		text := ctrl.Store().Document() + line + "\n"
		ctrl.HandleLocalEdit(text, len(text))
	}

	fmt.Println("Leaving room.")
	return scanner.Err()
}

func watchSuggestions(ctrl *controller.Controller, done <-chan struct{}) {
	var last string
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		suggestion, ok := ctrl.Store().Suggestion()
		if ok && suggestion != last {
			fmt.Printf("-- suggestion: %s\n", suggestion)
			last = suggestion
		}
		if !ok {
			last = ""
		}
	}
}
