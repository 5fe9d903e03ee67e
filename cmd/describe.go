package cmd

import (
	"fmt"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/analysis"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/manager"
	"github.com/spf13/cobra"
)

var (
	descTable          string
	descVars           []string
	descGroupBy        string
	descCorr           bool
	descRaw            bool
	descRemoveOutliers bool
	descSampleRows     int
)

var describeCmd = &cobra.Command{
	Use:   "describe <dataset>",
	Short: "Summarize the variables of a dataset table",
	Long: `Summarize every variable of a datatable: counts, missing values,
min/max/mean/std and robust (MAD) outliers. Disabled animals are excluded
and the dataset's binning is applied unless --raw is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		p, err := mgr.Prepare(args[0], manager.PrepareOptions{
			Table:            descTable,
			Variables:        descVars,
			RemoveOutliers:   descRemoveOutliers,
			OutlierThreshold: cfg.OutlierThreshold,
			SkipBinning:      descRaw,
		})
		if err != nil {
			return err
		}
		units, err := unitsOf(p.Dataset.ID, descTable)
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		opt.SampleRows = descSampleRows
		opt.GroupBy = descGroupBy
		opt.Correlations = descCorr
		opt.OutlierThreshold = cfg.OutlierThreshold
		name := p.Dataset.Name
		if descTable != "" {
			name += "/" + descTable
		}
		rep, err := analysis.Describe(name, p.Table, units, opt)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, rep.Markdown())
		if p.Outliers > 0 {
			fmt.Fprintf(out, "\n%d outlier values masked before summarizing\n", p.Outliers)
		}
		return nil
	},
}

// unitsOf selects a datatable (the default one when table is empty) and
// maps its variable names to their units.
func unitsOf(ref, table string) (map[string]string, error) {
	if err := mgr.SetSelectedDataset(ref); err != nil {
		return nil, err
	}
	if table != "" {
		if err := mgr.SetSelectedDatatable(table); err != nil {
			return nil, err
		}
	}
	dt, err := mgr.SelectedDatatable()
	if err != nil {
		return nil, err
	}
	units := make(map[string]string, len(dt.Variables))
	for name, v := range dt.Variables {
		units[name] = v.Unit
	}
	return units, nil
}

func init() {
	rootCmd.AddCommand(describeCmd)
	f := describeCmd.Flags()
	f.StringVarP(&descTable, "table", "t", "", "datatable name (default: Main)")
	f.StringSliceVar(&descVars, "vars", nil, "variables to include (default: all)")
	f.StringVar(&descGroupBy, "group-by", "", "summarize per level of this factor")
	f.BoolVar(&descCorr, "corr", false, "include a correlation matrix")
	f.BoolVar(&descRaw, "raw", false, "skip binning")
	f.BoolVar(&descRemoveOutliers, "remove-outliers", false, "mask outliers in every variable first")
	f.IntVar(&descSampleRows, "sample-rows", 5, "number of example rows")
}
