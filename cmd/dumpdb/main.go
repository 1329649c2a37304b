package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/mwhitford/dumpdb/internal/config"
)

var (
	cfg     *config.Config
	cfgFile string

	dbPath     string
	outputDir  string
	streams    []string
	logLevel   string
	logFormat  string
	noProgress bool
)

var rootCmd = &cobra.Command{
	Use:   "dumpdb",
	Short: "Minidump inspection and extraction tool",
	Long: `dumpdb reads minidump crash files and makes their contents inspectable:
it validates the header, lists the stream directory, extracts stream
payloads to disk, and records the catalog (streams, threads, modules,
memory regions) into a queryable SQLite database.

The reader detects the file's byte order from the magic signature, so both
little- and big-endian dumps are supported.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd.Flags().Changed("database") {
			cfg.Database = dbPath
		}
		if cmd.Flags().Changed("output") {
			cfg.Output = outputDir
		}
		if cmd.Flags().Changed("streams") {
			cfg.Streams = streams
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}

		var level slog.Level
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var handler slog.Handler
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
		} else {
			handler = tint.NewHandler(os.Stderr, &tint.Options{
				Level: level,
			})
		}

		logger := slog.New(handler)
		slog.SetDefault(logger)

		slog.Debug("Configuration",
			"database", cfg.Database,
			"output", cfg.Output,
			"streams", cfg.Streams,
			"log_level", cfg.LogLevel,
			"log_format", cfg.LogFormat)

		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is dumpdb.yaml in pwd)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "", "database file path")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "directory for extracted stream payloads")
	rootCmd.PersistentFlags().StringSliceVar(&streams, "streams", []string{}, "comma-separated stream types to extract (names or numeric tags)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(streamsCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(queryCmd)
}
