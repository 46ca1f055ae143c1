package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgienger/reportbot/internal/bot"
	"github.com/tgienger/reportbot/internal/config"
	"github.com/tgienger/reportbot/internal/logger"
	"github.com/tgienger/reportbot/internal/reminder"
	"github.com/tgienger/reportbot/internal/service"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		database, path, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓")+" schema up to date "+mutedStyle.Render(path))
		return nil
	},
}

var remindForce bool

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send the daily reminder if it is due",
	Long: `Sends the daily reminder once, the same way the running bot does. Without
--force nothing is sent unless the reminder is due and has not gone out today.
A forced send also counts as today's reminder for a running bot.`,
	RunE: runRemind,
}

func init() {
	remindCmd.Flags().BoolVar(&remindForce, "force", false, "Send now regardless of the schedule")
}

func runRemind(cmd *cobra.Command, _ []string) error {
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
	ctx := cmd.Context()

	database, _, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	msgs, err := bot.LoadMessages(cfg.Messages)
	if err != nil {
		return err
	}
	api, err := bot.Connect(ctx, cfg.Telegram.Token, false, log)
	if err != nil {
		return err
	}
	b := bot.New(api, service.New(database, newPolicy(cfg, database), log), log, bot.Options{Messages: msgs, Location: loc, Deadline: cfg.Reminder.At})

	sched, err := newScheduler(cfg, database, b, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !remindForce {
		now := time.Now()
		if sched.Tick(ctx, now) {
			fmt.Fprintln(out, okStyle.Render("✓")+" reminder sent")
		} else {
			fmt.Fprintln(out, warnStyle.Render("!")+" reminder not due or already sent, next at "+sched.NextFire(now).Format("02.01.2006 15:04 MST"))
		}
		return nil
	}

	res := sched.Fire(ctx, time.Now())
	printResult(cmd, res)
	return res.Err
}

func printResult(cmd *cobra.Command, res reminder.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s delivered %d of %d\n", okStyle.Render("✓"), res.Delivered, res.Users)
	for _, f := range res.Failures {
		fmt.Fprintln(out, failStyle.Render("✗")+" "+f.Error())
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reportbot %s (commit: %s, built: %s)\n", version, commit, date)
	},
}
