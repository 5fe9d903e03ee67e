package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/analysis"
	cfgpkg "github.com/TSE-Systems/tse-analytics-sub003/internal/config"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/logging"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/manager"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/parser"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/utils"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/workspace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile       string
	debug         bool
	workspaceFlag string

	// Set up in PersistentPreRunE
	cfg    *cfgpkg.Global
	logger *zap.Logger
	mgr    *manager.Manager
)

var rootCmd = &cobra.Command{
	Use:   "tsea",
	Short: "tsea: metabolic and behavioral dataset toolkit",
	Long: `tsea imports per-animal time series from lab instruments into a workspace,
groups animals into factors, bins and merges datasets, runs statistical
processors that produce HTML reports, and exports tables to CSV or XLSX.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tsea/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "workspace file (overrides workspace_path)")
}

// setup loads configuration and builds the logger and manager shared by
// every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	l, err := logging.New(cfg.LogLevel, debug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger = l
	mgr = manager.New(logger,
		manager.WithImportWorkers(cfg.ImportWorkers),
		manager.WithImportOptions(parser.Options{
			Delimiter: cfg.DelimiterRune(),
			Number:    analysis.NumberFormat{DecimalSeparator: cfg.DecimalRune()},
			Logger:    logger.Named("parser"),
		}),
	)
	return nil
}

// workspacePath resolves the workspace file: the --workspace flag, then a
// workspace file in the working directory or one of its parents, then the
// configured workspace_path.
func workspacePath() string {
	if workspaceFlag != "" {
		return workspaceFlag
	}
	if p, err := utils.FindUp("", workspace.FileName); err == nil {
		return p
	}
	return cfg.WorkspacePath
}

// openWorkspace loads the workspace file. A missing file leaves the empty
// workspace of a fresh manager in place.
func openWorkspace() error {
	path := workspacePath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Debug("no workspace file yet", zap.String("path", path))
		return nil
	}
	return mgr.LoadWorkspace(path)
}

func saveWorkspace() error {
	return mgr.SaveWorkspace(workspacePath())
}
