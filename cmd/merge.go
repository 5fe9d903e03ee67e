package cmd

import (
	"fmt"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/merge"
	"github.com/spf13/cobra"
)

var (
	mergeName      string
	mergeMode      string
	mergeSingleRun bool
	mergeRename    bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <dataset> <dataset>...",
	Short: "Merge datasets into a new dataset",
	Long: `Merge two or more datasets with identical tables and variables into a
new dataset. In continuous mode later datasets are shifted to follow the
previous one; in overlap mode original timestamps are kept and elapsed
time restarts per input. Inputs are left unchanged.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := merge.ParseMode(mergeMode)
		if err != nil {
			return err
		}
		if err := openWorkspace(); err != nil {
			return err
		}
		out, err := mgr.MergeDatasets(args, merge.Options{
			Name:                   mergeName,
			Mode:                   mode,
			SingleRun:              mergeSingleRun,
			GenerateNewAnimalNames: mergeRename,
		})
		if err != nil {
			return err
		}
		if err := saveWorkspace(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Merged %d datasets into %s (id %s)\n", len(args), out.Name, shortID(out.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	f := mergeCmd.Flags()
	f.StringVarP(&mergeName, "name", "n", "", "name of the merged dataset (default: input names joined)")
	f.StringVar(&mergeMode, "mode", string(merge.Continuous), "continuous|overlap")
	f.BoolVar(&mergeSingleRun, "single-run", false, "label every row with run 1")
	f.BoolVar(&mergeRename, "rename-animals", false, "rename colliding animal IDs instead of overwriting")
}
