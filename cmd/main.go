package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"matchroom/ai"
	"matchroom/auth"
	"matchroom/domain"
	"matchroom/handlers"
	"matchroom/infrastructure/ws"
	"matchroom/repositories"
	"matchroom/runtime"
	"matchroom/runtime/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := loggerFromLevel(config.LogLevel)

	// 2. Cache (BadgerDB)
	cacheDB, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("cache opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = cacheDB.Close()
	}()

	// 3. Durable store (PostgreSQL)
	db, err := gorm.Open(postgres.Open(config.DatabaseURL), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	if err := db.AutoMigrate(repositories.Models()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// 4. Repositories & AI
	cache := repositories.NewRoomCache(cacheDB, log)
	conversations := repositories.NewConversationRepository(db, log)
	reports := repositories.NewReportRepository(db, log)
	profiles := repositories.NewProfileRepository(db, log)
	llm := ai.NewLLMClient(log, config.LLMBaseURL, config.LLMAPIKey, config.LLMModel, config.LLMTimeout)
	analyzer := ai.NewAnalyzer(log, llm)

	// 5. Registry, dispatcher & handlers
	registry := runtime.NewRegistry(log, config.VacancyBufferSize)
	dispatcher := runtime.NewDispatcher(log, registry)
	dispatcher.Register(domain.TypeChat, handlers.NewChatHandler(log, registry, cache))
	dispatcher.Register(domain.TypeAssess, handlers.NewAssessHandler(log, registry, conversations, reports, profiles, analyzer))
	dispatcher.Register(domain.TypeReport, handlers.NewReportHandler(log, registry, reports, profiles, analyzer))

	// 6. Supervision
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		runtime.NewFlushWorker(log, cache, conversations, registry.Vacated()),
		workers.NewLivenessWorker(log, registry, config.PingInterval),
	)
	go sup.Run(ctx)

	// 7. HTTP server (WebSocket endpoint)
	issuer := auth.NewTokenIssuer(config.JWTSecret)
	wsServer := ws.NewServer(log, issuer, registry, dispatcher)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	// Use an error channel to capture ListenAndServe issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup. Draining the server first keeps the dispatcher
	// able to finish frames already in flight.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown incomplete", "error", err)
	}
	dispatcher.Wait()
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

func loggerFromLevel(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
