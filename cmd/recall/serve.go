package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/recall/internal/grading"
	"github.com/pavelanni/recall/internal/handler"
	appI18n "github.com/pavelanni/recall/internal/i18n"
	"github.com/pavelanni/recall/internal/model"
	"github.com/pavelanni/recall/internal/progress"
	"github.com/pavelanni/recall/internal/scheduler"
	"github.com/pavelanni/recall/internal/store"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "recall.db", "SQLite database path")
	f.StringSliceP("catalog", "c", nil, "Catalog JSON files to import at startup (repeatable)")
	f.StringP("lang", "l", "en", "Fallback language for API messages (en, ru)")
	f.String("default-learner", "default-learner", "Learner id for requests without X-Learner-ID")
	f.Int("max-review", 20, "Maximum due reviews per session")
	f.Int("max-new", 10, "Maximum new questions per session")
	f.String("backfill", "none", "What unused review slots are filled with (none, new, reinforce)")
	f.Float64("rate-limit", 10, "Write requests per second per learner (0 disables)")
	f.Int("rate-burst", 20, "Write request burst per learner")
	addProgressFlags(cmd)
	addSchedulerFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func addSchedulerFlags(cmd *cobra.Command) {
	d := scheduler.DefaultConfig()
	f := cmd.Flags()
	f.Float64("scheduler.initial-ease", d.InitialEase, "Ease factor of a first review")
	f.Float64("scheduler.min-ease", d.MinEase, "Lowest ease factor")
	f.Float64("scheduler.max-ease", d.MaxEase, "Highest ease factor")
	f.Float64("scheduler.ease-increment", d.EaseIncrement, "Ease gained on a correct answer")
	f.Float64("scheduler.ease-decrement", d.EaseDecrement, "Ease lost on an incorrect answer")
	f.Int("scheduler.initial-interval", d.InitialInterval, "Days until the first repeat")
	f.Int("scheduler.lapse-interval", d.LapseInterval, "Days until the repeat after a wrong answer")
	f.Int("scheduler.max-interval", d.MaxInterval, "Longest gap between repeats in days")
}

func schedulerConfig(v *viper.Viper) scheduler.Config {
	return scheduler.Config{
		InitialEase:     v.GetFloat64("scheduler.initial-ease"),
		MinEase:         v.GetFloat64("scheduler.min-ease"),
		MaxEase:         v.GetFloat64("scheduler.max-ease"),
		EaseIncrement:   v.GetFloat64("scheduler.ease-increment"),
		EaseDecrement:   v.GetFloat64("scheduler.ease-decrement"),
		InitialInterval: v.GetInt("scheduler.initial-interval"),
		LapseInterval:   v.GetInt("scheduler.lapse-interval"),
		MaxInterval:     v.GetInt("scheduler.max-interval"),
	}
}

func addProgressFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("timezone", "UTC", "IANA time zone that defines the learner's day")
	f.Int("mastery-streak", 3, "Correct answers in a row for a question to count as mastered")
	f.Float64("mastery-ease", 2.5, "Minimum ease factor for a question to count as mastered")
}

func progressConfig(v *viper.Viper) (progress.Config, error) {
	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return progress.Config{}, fmt.Errorf("load timezone %q: %w", v.GetString("timezone"), err)
	}
	return progress.Config{
		MasteryStreak: v.GetInt("mastery-streak"),
		MasteryEase:   v.GetFloat64("mastery-ease"),
		Location:      loc,
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loadCatalog(ctx, db, v.GetStringSlice("catalog")); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	sched, err := scheduler.NewExact(schedulerConfig(v))
	if err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}
	progCfg, err := progressConfig(v)
	if err != nil {
		return err
	}
	agg := progress.New(db, progCfg)

	quizCfg := model.QuizConfig{
		DefaultLearner: v.GetString("default-learner"),
		MaxReview:      v.GetInt("max-review"),
		MaxNew:         v.GetInt("max-new"),
		Backfill:       v.GetString("backfill"),
		RateLimit:      v.GetFloat64("rate-limit"),
		RateBurst:      v.GetInt("rate-burst"),
	}
	h, err := handler.New(db, grading.New(db, sched, agg), agg, quizCfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", srv.Addr,
		"db", v.GetString("db"),
		"lang", lang,
		"timezone", progCfg.Location.String(),
		"max_review", quizCfg.MaxReview,
		"max_new", quizCfg.MaxNew,
		"backfill", quizCfg.Backfill,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
