package main

import (
	"fmt"
	"os"
	_ "time/tzdata" // reminder timezones on hosts without zoneinfo

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tgienger/reportbot/internal/access"
	"github.com/tgienger/reportbot/internal/config"
	"github.com/tgienger/reportbot/internal/db"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configFile string

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
)

var rootCmd = &cobra.Command{
	Use:   "reportbot",
	Short: "Telegram bot for daily work reports",
	Long: `reportbot collects daily work reports and plans from a team over Telegram,
reminds everyone to report in the evening and lets administrators review
and correct what was submitted.

Examples:
  reportbot serve                 # Run the bot and the daily reminder
  reportbot admin                 # Browse reports in the terminal
  reportbot remind --force        # Send the reminder right now
  reportbot migrate               # Create or upgrade the database`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file (default: reportbot.yaml or /etc/reportbot/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(remindCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// openDatabase opens the configured database and returns it with its path
func openDatabase(cfg *config.Config) (*db.DB, string, error) {
	path, err := db.ResolvePath(cfg.Database.Path)
	if err != nil {
		return nil, "", err
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, "", err
	}
	return database, path, nil
}

func newPolicy(cfg *config.Config, database *db.DB) *access.Policy {
	var opts []access.Option
	if !cfg.Access.AdminsEditReports {
		opts = append(opts, access.OwnerOnlyReports())
	}
	return access.NewPolicy(cfg.Admins, database, database, opts...)
}
