package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/casedesk/internal/llm"
)

var (
	cfgFile     string
	dbPath      string
	redisURL    string
	logLevel    string
	fixturesDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "casedesk",
	Short: "Terminal-first legal practice desk",
	Long: `Casedesk is a terminal-first desk for a small legal practice. It triages
cases under review and client communication threads, and hosts an assistant
chat for quick questions.

Features:
- Review board: filter, sort and kanban view of open cases
- Communications board: client threads with unread-first triage
- Assistant chat with per-conversation reply tracking
- SQLite storage, optional Redis Streams event publishing
- Fixture directory watcher for loading sample data`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.casedesk.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/casedesk.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis connection URL (empty disables the event bus)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, error)")
	rootCmd.PersistentFlags().StringVar(&fixturesDir, "fixtures-dir", "./data/fixtures", "Directory watched for fixture files")

	// Bind flags to viper
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("fixtures.dir", rootCmd.PersistentFlags().Lookup("fixtures-dir"))

	setDefaults(viper.GetViper())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory and cwd with name ".casedesk" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".casedesk")
	}

	// CASEDESK_DATABASE_PATH overrides database.path, and so on.
	viper.SetEnvPrefix("casedesk")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "./data/casedesk.db")
	v.SetDefault("redis.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("fixtures.dir", "./data/fixtures")
	v.SetDefault("feedback.bind", "127.0.0.1:8082")
	v.SetDefault("feedback.rps", 5)
	v.SetDefault("feedback.burst", 10)
	v.SetDefault("assistant.settings", "config/assistant.json")
	v.SetDefault("assistant.provider", "")
	v.SetDefault("assistant.persona", "")
	v.SetDefault("assistant.min_delay", time.Second)
	v.SetDefault("assistant.max_delay", 2*time.Second)
	v.SetDefault("ui.theme", "dark")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return configFrom(viper.GetViper())
}

func configFrom(v *viper.Viper) Config {
	return Config{
		Database: DatabaseConfig{Path: v.GetString("database.path")},
		Redis:    RedisConfig{URL: v.GetString("redis.url")},
		Log:      LogConfig{Level: v.GetString("log.level")},
		Fixtures: FixturesConfig{Dir: v.GetString("fixtures.dir")},
		Feedback: FeedbackConfig{
			Bind:  v.GetString("feedback.bind"),
			RPS:   v.GetInt("feedback.rps"),
			Burst: v.GetInt("feedback.burst"),
		},
		Assistant: AssistantConfig{
			Settings: v.GetString("assistant.settings"),
			Provider: v.GetString("assistant.provider"),
			Endpoint: v.GetString("assistant.endpoint"),
			Model:    v.GetString("assistant.model"),
			APIKey:   v.GetString("assistant.api_key"),
			Persona:  v.GetString("assistant.persona"),
			MinDelay: v.GetDuration("assistant.min_delay"),
			MaxDelay: v.GetDuration("assistant.max_delay"),
		},
		UI: UIConfig{Theme: v.GetString("ui.theme")},
	}
}

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Fixtures  FixturesConfig  `mapstructure:"fixtures"`
	Feedback  FeedbackConfig  `mapstructure:"feedback"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	UI        UIConfig        `mapstructure:"ui"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type FixturesConfig struct {
	Dir string `mapstructure:"dir"`
}

type FeedbackConfig struct {
	Bind  string `mapstructure:"bind"`
	RPS   int    `mapstructure:"rps"`
	Burst int    `mapstructure:"burst"`
}

// AssistantConfig selects the chat provider. Settings names an optional JSON
// file; the remaining fields override it when set.
type AssistantConfig struct {
	Settings string        `mapstructure:"settings"`
	Provider string        `mapstructure:"provider"`
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Persona  string        `mapstructure:"persona"`
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

type UIConfig struct {
	Theme string `mapstructure:"theme"`
}

// ProviderConfig merges the settings file with the configured overrides.
func (a AssistantConfig) ProviderConfig() (llm.ProviderConfig, error) {
	base := llm.DefaultSettings().Active
	if a.Settings != "" {
		s, err := llm.LoadSettings(a.Settings)
		if err != nil {
			return llm.ProviderConfig{}, err
		}
		base = s.Active
	}
	return base.Overlay(llm.ProviderConfig{
		Provider: a.Provider,
		Endpoint: a.Endpoint,
		Model:    a.Model,
		APIKey:   a.APIKey,
		Persona:  a.Persona,
	}).WithDefaults(), nil
}

// newLogger returns a prefixed logger honouring log.level. "error" keeps
// only lines that look like failures; "debug" adds file positions.
func newLogger(w io.Writer, prefix, level string) *log.Logger {
	switch strings.ToLower(level) {
	case "debug":
		return log.New(w, prefix, log.LstdFlags|log.Lshortfile)
	case "error":
		return log.New(&errorFilterWriter{w}, prefix, log.LstdFlags)
	default:
		return log.New(w, prefix, log.LstdFlags)
	}
}

// errorFilterWriter only writes error messages to the underlying writer
type errorFilterWriter struct {
	writer io.Writer
}

func (w *errorFilterWriter) Write(p []byte) (n int, err error) {
	lc := strings.ToLower(string(p))
	if strings.Contains(lc, "error") ||
		strings.Contains(lc, "failed") ||
		strings.Contains(lc, "panic") {
		return w.writer.Write(p)
	}
	return len(p), nil
}
