// Package config loads reportbot settings from a YAML file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REPORTBOT_LOG_LEVEL
const EnvPrefix = "REPORTBOT"

// DefaultPaths are tried in order when no config file is given
var DefaultPaths = []string{"reportbot.yaml", "/etc/reportbot/config.yaml"}

type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Admins    []int64         `mapstructure:"-"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Access    AccessConfig    `mapstructure:"access"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Messages  string          `mapstructure:"messages"` // optional catalogue overriding the built-in texts
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	Debug       bool   `mapstructure:"debug"`
	PollTimeout int    `mapstructure:"poll_timeout"` // seconds
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // empty means the XDG data directory
}

type ReminderConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	At           string        `mapstructure:"at"`
	Timezone     string        `mapstructure:"timezone"`
	SkipWeekends bool          `mapstructure:"skip_weekends"`
	Window       time.Duration `mapstructure:"window"`
}

type AccessConfig struct {
	AdminsEditReports bool `mapstructure:"admins_edit_reports"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	File       string `mapstructure:"file"`
	Console    bool   `mapstructure:"console"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Stdout  bool `mapstructure:"stdout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("admins", []string{})
	v.SetDefault("database.path", "")
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.at", "18:00")
	v.SetDefault("reminder.timezone", "Europe/Moscow")
	v.SetDefault("reminder.skip_weekends", true)
	v.SetDefault("reminder.window", "10m")
	v.SetDefault("access.admins_edit_reports", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.console", true)
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)
	v.SetDefault("messages", "")
}

// Load reads configuration. configFile may be empty, in which case the
// DefaultPaths are tried and a missing file is not an error.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal in production
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	v := viper.New()
	setDefaults(v)

	path := configFile
	if path == "" {
		for _, p := range DefaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Names used by the first deployments
	for key, legacy := range map[string]string{
		"telegram.token": "BOT_TOKEN",
		"admins":         "ADMIN_IDS",
		"database.path":  "DB_NAME",
	} {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, errors.Wrapf(err, "bind %s", key)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	admins, err := ParseAdminIDs(v.GetStringSlice("admins"))
	if err != nil {
		return nil, err
	}
	c.Admins = admins

	return c, nil
}

// ParseAdminIDs accepts ids as list items, comma separated strings, or both
func ParseAdminIDs(items []string) ([]int64, error) {
	var ids []int64
	for _, item := range items {
		for _, field := range strings.Split(item, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			id, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid admin id %q", field)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Validate checks the settings needed to run the bot
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is not set (BOT_TOKEN or telegram.token)")
	}
	if len(c.Admins) == 0 {
		return errors.New("no administrators configured (ADMIN_IDS or admins)")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the reminder timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "reminder timezone %q", c.Reminder.Timezone)
	}
	return loc, nil
}
