package main

import (
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tgienger/reportbot/internal/config"
	"github.com/tgienger/reportbot/internal/logger"
	"github.com/tgienger/reportbot/internal/service"
	"github.com/tgienger/reportbot/internal/ui"
)

var adminAs int64

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Browse and correct reports in the terminal",
	Long: `Opens a terminal console over the bot's database. Edits are recorded
under the administrator given with --as, exactly as if they were made
through the bot.`,
	RunE: runAdmin,
}

func init() {
	adminCmd.Flags().Int64Var(&adminAs, "as", 0, "Administrator id to act as (default: first configured admin)")
}

func runAdmin(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if len(cfg.Admins) == 0 {
		return errors.New("no administrators configured (ADMIN_IDS or admins)")
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	actor := adminAs
	if actor == 0 {
		actor = cfg.Admins[0]
	}
	if !slices.Contains(cfg.Admins, actor) {
		return errors.Errorf("%d is not an administrator", actor)
	}

	// The console owns the terminal, so logs only go to the file if one is set
	logCfg := cfg.Log
	logCfg.Console = false
	log := logger.Discard()
	if logCfg.File != "" {
		log = logger.New(logCfg, nil)
	}

	database, _, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	svc := service.New(database, newPolicy(cfg, database), log)
	app := ui.NewApp(svc, database, actor, loc)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "run console")
	}
	return nil
}
