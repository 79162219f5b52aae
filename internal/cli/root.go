// Package cli implements the worldstate CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/worldstate/internal/config"
	"github.com/rcliao/worldstate/internal/logging"
	"github.com/rcliao/worldstate/internal/merge"
	"github.com/rcliao/worldstate/internal/pipeline"
	"github.com/rcliao/worldstate/internal/store"
)

var (
	dbPath        string
	schemaPath    string
	templatesPath string
	logLevel      string

	settings config.Settings
	logger   = zap.NewNop()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "worldstate",
	Short: "Sync story world state from tagged chat turns",
	Long: `Parses [Actor^Category|Key::value] tags out of each chat turn, merges them into a
per-chat world-state tree and records a narrative of what changed. SQLite-backed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.LoadSettings()
		if err != nil {
			return err
		}
		if dbPath != "" {
			settings.DBPath = dbPath
		}
		if schemaPath != "" {
			settings.Schema = schemaPath
		}
		if templatesPath != "" {
			settings.Templates = templatesPath
		}
		if logLevel != "" {
			settings.LogLevel = logLevel
		}

		logger, err = logging.New(settings.LogLevel)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $WORLDSTATE_DB or ~/.worldstate/state.db)")
	RootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "Schema file or directory (default: $WORLDSTATE_SCHEMA)")
	RootCmd.PersistentFlags().StringVar(&templatesPath, "templates", "", "Narrative template file (default: $WORLDSTATE_TEMPLATES)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $WORLDSTATE_LOG_LEVEL or info)")
}

func getDBPath() string {
	if settings.DBPath != "" {
		return settings.DBPath
	}
	return config.DefaultDBPath()
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func openSource() (*config.Source, error) {
	return config.NewSource(settings.Schema, settings.Templates, logger)
}

func newService(src pipeline.Snapshotter) *pipeline.Service {
	engine := merge.New(merge.Options{NameKeys: settings.NameKeys})
	return pipeline.New(src, engine, logger)
}

// readInput returns the positional args joined, or piped stdin.
func readInput(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return "", nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
