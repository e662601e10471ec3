package root

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"homekeep/internal/config"
	"homekeep/internal/ui"
)

const Version = "0.1.0"

var (
	cfgPath string
	dbFlag  string
	format  string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "hk",
	Short:         "homekeep: recurring household task tracker",
	Long:          "homekeep tracks recurring household tasks, when they are next due, and every time they were done.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		l, err := newLogger(c.Log)
		if err != nil {
			return err
		}
		if err := validateFormat(format); err != nil {
			return err
		}
		cfg = c
		logger = l
		return nil
	},
}

func Execute() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default ~/.homekeep/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database path (overrides db_path)")
	rootCmd.PersistentFlags().StringVar(&format, "format", formatTable, "Output format (table|json|yaml)")

	rootCmd.AddCommand(
		newAddCmd(),
		newListCmd(),
		newShowCmd(),
		newDoCmd(),
		newHistoryCmd(),
		newDueCmd(),
		newStatusCmd(),
		newBoardCmd(),
		newServeCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render(ui.IconError+" "+err.Error()))
		os.Exit(1)
	}
}

// newLogger writes structured logs to stderr so they never mix with
// command output.
func newLogger(lc config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", lc.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
