package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zoobzio/gantry"
)

// Request/Response types
type CreateNoteRequest struct {
	Title string `json:"title" validate:"min=1,max=100"`
	Body  string `json:"body" validate:"max=10000"`
}

type NoteResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

type PingResponse struct {
	Message string `json:"message"`
	Caller  string `json:"caller,omitempty"`
}

func main() {
	// External session store: mint a couple of sessions up front so the
	// example is immediately exercisable with curl.
	sessions := gantry.NewMemorySessionStore()
	user := sessions.Issue("user-1", gantry.PrivilegeStandard, nil, time.Hour)
	admin := sessions.Issue("admin-1", gantry.PrivilegeElevated, nil, time.Hour)
	fmt.Printf("[Main] user session:  %s\n", user.SessionID)
	fmt.Printf("[Main] admin session: %s\n", admin.SessionID)

	resolver := gantry.NewSessionResolver(sessions)

	// Rate-limit store with a background sweep for expired windows.
	limits := gantry.NewMemoryLimitStore()
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	limits.StartJanitor(janitorCtx, 2*time.Minute)

	executor := gantry.NewExecutor(resolver, limits,
		gantry.DefaultExecutorConfig().
			WithDefaultLimit(gantry.Limit{MaxAttempts: 60, Window: time.Minute}),
	)

	// Operations.
	ping := gantry.NewOperation("ping",
		func(_ context.Context, rc *gantry.RequestContext, _ gantry.NoInput) (PingResponse, error) {
			resp := PingResponse{Message: "pong"}
			if rc.Authenticated() {
				resp.Caller = rc.Identity.ID()
			}
			return resp, nil
		},
	).WithTier(gantry.TierOptional).WithRoute("GET", "/ping")

	createNote := gantry.NewOperation("create-note",
		func(_ context.Context, rc *gantry.RequestContext, in CreateNoteRequest) (NoteResponse, error) {
			return NoteResponse{
				ID:     "note-1",
				Title:  in.Title,
				Author: rc.Identity.ID(),
			}, nil
		},
	).WithTier(gantry.TierAuthenticated).
		WithLimit(gantry.Limit{MaxAttempts: 10, Window: time.Minute})

	deleteNote := gantry.NewOperation("delete-note",
		func(_ context.Context, _ *gantry.RequestContext, _ gantry.NoInput) (PingResponse, error) {
			return PingResponse{Message: "deleted"}, nil
		},
	).WithTier(gantry.TierPrivileged).WithRoute("DELETE", "/notes/{id}")

	// Gateway.
	config := gantry.DefaultGatewayConfig().WithPort(8081)
	gateway := gantry.NewGateway(executor, config).
		WithOperations(ping, createNote, deleteNote)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Println("[Main] Press Ctrl+C to shutdown gracefully")
		serverErrors <- gateway.Start()
	}()

	select {
	case err := <-serverErrors:
		log.Fatalf("[Main] Server error: %v", err)
	case sig := <-sigChan:
		fmt.Printf("\n[Main] Received signal: %v\n", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := gateway.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Main] Shutdown error: %v", err)
		}

		fmt.Println("[Main] Shutdown complete")
	}
}
