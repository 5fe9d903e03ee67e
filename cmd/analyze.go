package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/export"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/manager"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/toolbox"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"
)

var (
	anaProcs          []string
	anaTable          string
	anaVariable       string
	anaCovariate      string
	anaSplit          string
	anaFactor         string
	anaAlpha          float64
	anaBins           int
	anaOutputPath     string
	anaTitle          string
	anaRemoveOutliers bool
	anaRaw            bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dataset>",
	Short: "Run statistical processors and write an HTML report",
	Long: `Run one or more toolbox processors over a prepared dataset table and
write their results into a single self-contained HTML report. Processors
whose preconditions are not met are listed in the report with the reason.`,
	Example: `  tsea analyze study --proc anova --var VO2 --split factors --factor Treatment
  tsea analyze study --proc correlation,regression --var VO2 --covariate RER -o vo2.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if anaVariable == "" {
			return fmt.Errorf("--var is required")
		}
		split, err := toolbox.ParseSplit(anaSplit)
		if err != nil {
			return err
		}
		if split == toolbox.SplitFactors && anaFactor == "" {
			return fmt.Errorf("--factor is required with --split factors")
		}
		procs := anaProcs
		if len(procs) == 0 {
			procs = []string{"distribution"}
		}
		for _, name := range procs {
			if _, ok := toolbox.Processors[strings.ToLower(name)]; !ok {
				return fmt.Errorf("unknown processor %q (available: %s)", name, strings.Join(toolbox.Names(), ", "))
			}
		}
		if err := openWorkspace(); err != nil {
			return err
		}

		vars := []string{anaVariable}
		if anaCovariate != "" && anaCovariate != anaVariable {
			vars = append(vars, anaCovariate)
		}
		p, err := mgr.Prepare(args[0], manager.PrepareOptions{
			Table:            anaTable,
			Variables:        vars,
			RemoveOutliers:   anaRemoveOutliers,
			OutlierThreshold: cfg.OutlierThreshold,
			SkipBinning:      anaRaw,
		})
		if err != nil {
			return err
		}
		params := toolbox.Params{
			Variable:  anaVariable,
			Covariate: anaCovariate,
			Split:     split,
			Factor:    anaFactor,
			Bins:      anaBins,
			Alpha:     anaAlpha,
			Plot: toolbox.PlotSize{
				Width:  vg.Length(cfg.PlotWidthIn) * vg.Inch,
				Height: vg.Length(cfg.PlotHeightIn) * vg.Inch,
			},
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		started := time.Now()
		res := <-worker.Run(ctx, func(ctx context.Context) ([]toolbox.Result, error) {
			out := make([]toolbox.Result, 0, len(procs))
			for _, name := range procs {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				r, err := toolbox.Run(name, p.Dataset, p.Table, params)
				if err != nil {
					return nil, err
				}
				out = append(out, r)
			}
			return out, nil
		})
		if res.Err != nil {
			return res.Err
		}
		logger.Debug("processors finished", zap.Int("count", len(res.Value)), zap.Duration("took", time.Since(started)))

		title := anaTitle
		if title == "" {
			title = fmt.Sprintf("%s: %s", p.Dataset.Name, anaVariable)
		}
		path := anaOutputPath
		if path == "" {
			path = filepath.Join(cfg.ReportDir, fmt.Sprintf("%s-%s-%s.html",
				safeName(p.Dataset.Name), safeName(anaVariable), time.Now().Format("20060102-150405")))
		}
		if err := export.ReportFile(path, title, res.Value); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, r := range res.Value {
			if r.IsActive() {
				fmt.Fprintf(out, "✓ %s\n", procs[i])
			} else {
				fmt.Fprintf(out, "⚠ %s: not available: %s\n", procs[i], r.Reason)
			}
		}
		if p.Outliers > 0 {
			fmt.Fprintf(out, "%d outlier values masked\n", p.Outliers)
		}
		fmt.Fprintf(out, "✓ Report written: %s\n", path)
		return nil
	},
}

// safeName turns a display name into a file name component.
func safeName(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "report"
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	f := analyzeCmd.Flags()
	f.StringSliceVarP(&anaProcs, "proc", "p", nil, "processors to run: "+strings.Join(toolbox.Names(), ", ")+" (default distribution)")
	f.StringVarP(&anaTable, "table", "t", "", "datatable name (default: Main)")
	f.StringVar(&anaVariable, "var", "", "dependent variable")
	f.StringVar(&anaCovariate, "covariate", "", "second variable for correlation and regression")
	f.StringVar(&anaSplit, "split", "none", "split groups by none|animals|factors|runs")
	f.StringVar(&anaFactor, "factor", "", "factor name for --split factors")
	f.Float64Var(&anaAlpha, "alpha", 0.05, "significance level")
	f.IntVar(&anaBins, "bins", 0, "histogram bin count (default 20)")
	f.StringVarP(&anaOutputPath, "output", "o", "", "report path (default: <report_dir>/<dataset>-<var>-<time>.html)")
	f.StringVar(&anaTitle, "title", "", "report title")
	f.BoolVar(&anaRemoveOutliers, "remove-outliers", false, "mask outliers before analysis")
	f.BoolVar(&anaRaw, "raw", false, "skip binning")
}
