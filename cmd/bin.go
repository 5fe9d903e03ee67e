package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/spf13/cobra"
)

var (
	binMode   string
	binUnit   string
	binDelta  int
	binOp     string
	binGroup  string
	binFactor string
	binLight  string
	binDark   string
	binPhases []string
	binOff    bool
)

var binCmd = &cobra.Command{
	Use:   "bin <dataset>",
	Short: "Configure binning of a dataset",
	Long: `Configure how a dataset is binned before analysis and export. Only the
flags given are changed; the rest keep their stored values.`,
	Example: `  tsea bin study --mode intervals --unit hour --delta 2 --op mean
  tsea bin study --mode cycles --light 06:00 --dark 18:00 --group factors --factor Treatment
  tsea bin study --mode phases --phase Baseline=0s --phase Treatment=48h
  tsea bin study --off`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		ds, err := mgr.Dataset(args[0])
		if err != nil {
			return err
		}
		s, err := binSettings(cmd, ds.Binning)
		if err != nil {
			return err
		}
		if err := mgr.SetBinning(ds.ID, s); err != nil {
			return err
		}
		if err := saveWorkspace(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Binning %s\n", describeBinning(s))
		return nil
	},
}

// binSettings overlays the changed flags on s.
func binSettings(cmd *cobra.Command, s model.BinningSettings) (model.BinningSettings, error) {
	f := cmd.Flags()
	s.Apply = !binOff
	if f.Changed("mode") {
		s.Mode = model.BinningMode(strings.ToLower(binMode))
	}
	if f.Changed("unit") {
		s.Interval.Unit = model.TimeUnit(strings.ToLower(binUnit))
	}
	if f.Changed("delta") {
		s.Interval.Delta = binDelta
	}
	if f.Changed("op") {
		op, err := model.ParseAggregation(binOp)
		if err != nil {
			return s, err
		}
		s.Operation = op
	}
	if f.Changed("group") {
		s.Grouping = model.GroupingMode(strings.ToLower(binGroup))
		if s.Grouping != model.GroupByFactor {
			s.Factor = ""
		}
	}
	if f.Changed("factor") {
		s.Factor = binFactor
	}
	if f.Changed("light") {
		t, err := model.ParseTimeOfDay(binLight)
		if err != nil {
			return s, fmt.Errorf("--light: %w", err)
		}
		s.Cycle.LightStart = t
	}
	if f.Changed("dark") {
		t, err := model.ParseTimeOfDay(binDark)
		if err != nil {
			return s, fmt.Errorf("--dark: %w", err)
		}
		s.Cycle.DarkStart = t
	}
	if f.Changed("phase") {
		s.Phases = nil
		for _, p := range binPhases {
			name, start, ok := strings.Cut(p, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return s, fmt.Errorf("invalid phase %q (want name=duration)", p)
			}
			d, err := time.ParseDuration(strings.TrimSpace(start))
			if err != nil {
				return s, fmt.Errorf("phase %s: %w", name, err)
			}
			s.Phases = append(s.Phases, model.TimePhase{Name: strings.TrimSpace(name), Start: d})
		}
	}
	return s, nil
}

func init() {
	rootCmd.AddCommand(binCmd)
	f := binCmd.Flags()
	f.StringVar(&binMode, "mode", "", "intervals|cycles|phases")
	f.StringVar(&binUnit, "unit", "", "interval unit: day|hour|minute")
	f.IntVar(&binDelta, "delta", 0, "interval width in units")
	f.StringVar(&binOp, "op", "", "aggregation: auto (per variable)|mean|median|sum")
	f.StringVar(&binGroup, "group", "", "grouping: animals|factors|runs")
	f.StringVar(&binFactor, "factor", "", "factor name when grouping by factors")
	f.StringVar(&binLight, "light", "", "light phase start (HH:MM)")
	f.StringVar(&binDark, "dark", "", "dark phase start (HH:MM)")
	f.StringArrayVar(&binPhases, "phase", nil, "phase as name=offset, e.g. Treatment=48h (repeatable)")
	f.BoolVar(&binOff, "off", false, "store the settings but disable binning")
}
