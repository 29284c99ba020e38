package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/qbitctl/config"
	"github.com/s0up4200/qbitctl/dispatch"
	"github.com/s0up4200/qbitctl/qbittorrent"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
	logger   zerolog.Logger
	registry *dispatch.Registry
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "qbitctl",
	Short: "Remote control for a qBittorrent daemon",
	Long: `qbitctl drives a qBittorrent daemon through its Web API. Operations are
exposed as named tools taking JSON arguments, and read-only snapshots of the
daemon are exposed as resources.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(versionCmd)
}

// initializeApp loads the configuration and builds the dispatch registry
func initializeApp(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = strings.ToLower(logLevel)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	logger = setupLogger(cfg.Logging)

	api, err := buildAPI(cfg.QBittorrent, logger)
	if err != nil {
		return fmt.Errorf("failed to create qBittorrent client: %w", err)
	}

	registry = dispatch.NewRegistry(api, logger)
	return nil
}

// buildAPI creates the configured qBittorrent backend
func buildAPI(c config.QBittorrentConfig, logger zerolog.Logger) (qbittorrent.API, error) {
	var opts []qbittorrent.Option
	if c.Timeout > 0 {
		opts = append(opts, qbittorrent.WithTimeout(c.Timeout))
	}

	switch c.Backend {
	case config.BackendLibrary:
		logger.Debug().Str("url", c.URL).Msg("Using go-qbittorrent backend")
		return qbittorrent.NewLibraryClient(c.URL, c.Username, c.Password, logger, opts...)
	default:
		logger.Debug().Str("url", c.URL).Msg("Using Web API backend")
		return qbittorrent.NewClient(c.URL, c.Username, c.Password, logger, opts...)
	}
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
