package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tgienger/reportbot/internal/bot"
	"github.com/tgienger/reportbot/internal/config"
	"github.com/tgienger/reportbot/internal/db"
	"github.com/tgienger/reportbot/internal/logger"
	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/reminder"
	"github.com/tgienger/reportbot/internal/service"
	"github.com/tgienger/reportbot/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot and the daily reminder",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	log := logger.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled: cfg.Telemetry.Enabled,
		Stdout:  cfg.Telemetry.Stdout,
	}, "reportbot", version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}()

	database, path, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	// Two pollers on one token steal each other's updates
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "lock database")
	}
	if !locked {
		return errors.Errorf("another reportbot instance is serving %s", path)
	}
	defer lock.Unlock()

	log.Info("database ready", "path", path)

	msgs, err := bot.LoadMessages(cfg.Messages)
	if err != nil {
		return err
	}

	svc := service.New(database, newPolicy(cfg, database), log)

	api, err := bot.Connect(ctx, cfg.Telegram.Token, cfg.Telegram.Debug, log)
	if err != nil {
		return err
	}
	b := bot.New(api, svc, log, bot.Options{Messages: msgs, Location: loc, Deadline: cfg.Reminder.At})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Poll(gctx, api, cfg.Telegram.PollTimeout)
	})
	if cfg.Reminder.Enabled {
		sched, err := newScheduler(cfg, database, b, log)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return sched.Run(gctx)
		})
	}

	err = g.Wait()
	log.Info("reportbot stopped")
	return err
}

func newScheduler(cfg *config.Config, database *db.DB, b *bot.Bot, log *slog.Logger) (*reminder.Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return reminder.New(reminder.Config{
		At:           cfg.Reminder.At,
		Location:     loc,
		SkipWeekends: cfg.Reminder.SkipWeekends,
		Window:       cfg.Reminder.Window,
	}, database, b, log,
		reminder.WithState(database),
		reminder.WithMessage(func(u models.UserRef) string {
			return b.ReminderText(u, cfg.Reminder.At, cfg.Reminder.Timezone)
		}),
	)
}
