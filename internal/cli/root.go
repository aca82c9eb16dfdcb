package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thornlabs/pulse/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "A scheduled workflow dispatcher",
	Long: `Pulse runs stored workflow definitions on cron and interval schedules.

Workflow definitions live in a SQLite database. Each enabled workflow with
a schedule trigger is registered at startup and fired by a background
scheduler; every fire is recorded as a run.

Start the scheduler:
  pulse serve

Inspect stored schedules:
  pulse schedules list`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pulse.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads configuration honoring the --config flag, falling back
// to defaults when no file is present.
func loadConfig() *config.Config {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		log.Warn().Err(err).Msg("No usable config file found, using defaults")
		return config.Default()
	}
	return cfg
}

// setupLogging configures zerolog from the verbosity flag. serve replaces
// this with the full logging config once it is loaded.
func setupLogging() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// configureLogging applies the loaded logging configuration.
func configureLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx := logger.With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
}

// Version returns the version string.
func Version() string {
	return "pulse version 0.1.0-dev"
}
