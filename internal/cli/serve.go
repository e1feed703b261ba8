package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/navikt/avtalt/internal/api"
	"github.com/navikt/avtalt/internal/bus"
	membus "github.com/navikt/avtalt/internal/bus/memory"
	redisbus "github.com/navikt/avtalt/internal/bus/redis"
	"github.com/navikt/avtalt/internal/repository"
	"github.com/navikt/avtalt/internal/service"
	"github.com/navikt/avtalt/internal/web"
)

func NewServeCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the negotiation HTTP service",
		Long:  "Serve the negotiation API and the live transcript stream. With Redis enabled, negotiations run over Redis pub/sub so participant agents can join from other processes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(deps)
		},
	}

	return cmd
}

func runServe(deps *Dependencies) error {
	// Initialize the repository using the factory
	repo, err := repository.NewRepository(deps.RedisConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}

	// Close a Redis-backed repository properly on exit
	if redisRepo, ok := repo.(interface{ Close() error }); ok {
		defer func() {
			if err := redisRepo.Close(); err != nil {
				log.Printf("Error closing Redis connection: %v", err)
			}
		}()
	}

	// With Redis enabled every negotiation gets its own pub/sub namespace,
	// so standalone participant agents can join it. Otherwise negotiations
	// stay in process on the memory bus.
	busFactory := func(negotiationID string) (bus.Bus, error) {
		if deps.RedisConfig.Enabled {
			return redisbus.NewBus(deps.RedisConfig, negotiationID)
		}
		return membus.NewBus(deps.NegotiationConfig.BusQueueSize), nil
	}

	negotiationService := service.NewNegotiationService(repo, busFactory, deps.NegotiationConfig)

	// Stream transcript lines to web clients as they happen
	sseManager := web.NewSSEManager(negotiationService)
	negotiationService.RegisterUpdateCallback(sseManager.HandleNegotiationUpdate)

	mux := api.SetupRoutes(negotiationService)
	mux.Handle("/events", sseManager)

	server := &http.Server{
		Addr:         ":" + deps.ServerConfig.Port,
		Handler:      web.WrapMuxWithMiddleware(mux),
		ReadTimeout:  deps.ServerConfig.ReadTimeout,
		WriteTimeout: 0, // Disable write timeout for SSE connections
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine
	go func() {
		log.Printf("Starting avtalt server on port %s", deps.ServerConfig.Port)
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for an interrupt or terminate signal from the OS
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until a signal is received or an error occurs
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-shutdown:
		log.Println("Shutting down server...")

		// Close SSE connections first so Shutdown is not held open by them
		sseManager.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), deps.ServerConfig.ShutdownTimeout)
		defer cancel()

		// Abandon whatever is still negotiating
		if err := negotiationService.Shutdown(ctx); err != nil {
			log.Printf("Error stopping negotiations: %v", err)
		}

		// Doesn't block if there are no connections, but will otherwise
		// wait until the timeout deadline.
		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return fmt.Errorf("failed to shut down server: %w", err)
		}

		log.Println("Server gracefully stopped")
	}

	return nil
}
