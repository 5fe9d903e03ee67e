package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/events"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import <file|glob>...",
	Short: "Import instrument files (.csv, .tsv, .txt, .xlsx) into the workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		cycle, err := cfg.Cycle()
		if err != nil {
			return err
		}
		agg, err := model.ParseAggregation(cfg.DefaultAggregation)
		if err != nil {
			return fmt.Errorf("default_aggregation: %w", err)
		}

		sub := mgr.Events().Subscribe(func(e events.Event) {
			logger.Debug("dataset added", zap.String("id", e.DatasetID))
		}, events.DatasetAdded)
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		datasets, err := mgr.ImportFiles(ctx, files)
		if err != nil {
			return err
		}
		// configured defaults are part of the import, not a binning change
		release := mgr.Events().Suppress()
		for _, ds := range datasets {
			s := ds.Binning
			s.Cycle = cycle
			s.Operation = agg
			if err := mgr.SetBinning(ds.ID, s); err != nil {
				release()
				return err
			}
		}
		release()
		out := cmd.OutOrStdout()
		for _, ds := range datasets {
			rows := 0
			for _, dt := range ds.Tables {
				rows += dt.Original.Len()
			}
			fmt.Fprintf(out, "✓ Imported %s: %d animals, %d rows (id %s)\n", ds.Name, len(ds.Animals), rows, shortID(ds.ID))
		}
		return saveWorkspace()
	},
}

// expandInputs resolves glob patterns and drops duplicates. Arguments that
// match nothing are kept so the importer reports them.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	return files, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(importCmd)
}
