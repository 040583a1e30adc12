package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/cramdeck/internal/api"
	"github.com/conorfennell/cramdeck/internal/config"
	"github.com/conorfennell/cramdeck/internal/content"
	"github.com/conorfennell/cramdeck/internal/progress"
	"github.com/conorfennell/cramdeck/internal/quiz"
	"github.com/conorfennell/cramdeck/internal/schedule"
	"github.com/conorfennell/cramdeck/internal/storage"
)

func main() {
	// 1. Load configuration from file, environment and flags
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := cfg.Log.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("cramdeck stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// 2. Open the database
	db, err := storage.Open(cfg.Data.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Database opened", "path", cfg.Data.Path)

	// 3. Load static content
	deck, err := content.Resolve(ctx, cfg.Content.Source, cfg.Content.Repos, logger)
	if err != nil {
		return fmt.Errorf("failed to load deck: %w", err)
	}

	// 4. Build the progress store and restore saved progress
	sched := schedule.DefaultParams()
	sched.DesiredRetention = cfg.Schedule.Retention
	store := progress.New(deck.Chapters,
		progress.WithPersister(progress.NewPersister(db, progress.Format(cfg.Progress.Format), logger)),
		progress.WithLogger(logger),
		progress.WithStrictIndices(cfg.Progress.Strict),
		progress.WithMasteryRule(progress.MasteryRule(cfg.Progress.Mastery)),
		progress.WithSchedule(sched),
	)
	store.Load()
	store.Subscribe(func(e progress.Event) {
		logger.Debug("Progress changed", "event", e.Kind, "chapter", e.Chapter, "card", e.Card)
	})

	// 5. Build the quiz engine and history
	engine := quiz.NewEngine(
		quiz.WithQuestionsPerQuiz(cfg.Quiz.Size),
		quiz.WithRand(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))),
	)
	for number, bank := range deck.Banks {
		engine.Register(number, bank)
	}
	history := quiz.NewHistory(db, logger)
	history.Load()

	logger.Info("Deck loaded",
		"title", deck.Title,
		"chapters", len(deck.Chapters),
		"quiz_banks", len(deck.Banks),
		"progress", fmt.Sprintf("%.1f%%", store.OverallProgress()),
		"quizzes_taken", len(history.All()),
	)

	// 6. Serve the API until interrupted
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(store, engine, history, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
