package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets in the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		datasets := mgr.Workspace().List()
		if len(datasets) == 0 {
			fmt.Fprintln(out, "(no datasets)")
			return nil
		}
		for _, ds := range datasets {
			fmt.Fprintf(out, "- %s  %s (%d animals, tables: %s)\n",
				shortID(ds.ID), ds.Name, len(ds.Animals), strings.Join(ds.TableNames(), ", "))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <dataset>",
	Short: "Show animals, tables, factors and binning of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		ds, err := mgr.Dataset(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Dataset: %s (%s)\n", ds.Name, ds.ID)
		if len(ds.Metadata) > 0 {
			keys := make([]string, 0, len(ds.Metadata))
			for k := range ds.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintln(out, "\n[METADATA]")
			for _, k := range keys {
				fmt.Fprintf(out, "%s: %s\n", k, ds.Metadata[k])
			}
		}

		fmt.Fprintln(out, "\n[ANIMALS]")
		for _, id := range ds.AnimalIDs() {
			a := ds.Animals[id]
			state := "enabled"
			if !a.Enabled {
				state = "disabled"
			}
			fmt.Fprintf(out, "- %s box %d, %s%s\n", a.ID, a.Box, state, formatProps(a.Properties))
		}

		fmt.Fprintln(out, "\n[TABLES]")
		for _, name := range ds.TableNames() {
			dt := ds.Tables[name]
			fmt.Fprintf(out, "- %s: %d rows, interval %s\n", name, dt.Original.Len(), dt.SamplingInterval)
			for _, v := range dt.VariableNames() {
				meta := dt.Variables[v]
				unit := ""
				if meta.Unit != "" {
					unit = " [" + meta.Unit + "]"
				}
				fmt.Fprintf(out, "  • %s%s (%s)\n", v, unit, meta.Aggregation)
			}
		}

		if len(ds.Factors) > 0 {
			fmt.Fprintln(out, "\n[FACTORS]")
			for _, name := range ds.FactorNames() {
				fmt.Fprintf(out, "- %s: %s\n", name, strings.Join(ds.Factors[name].LevelNames(), ", "))
			}
		}

		fmt.Fprintln(out, "\n[BINNING]")
		fmt.Fprintln(out, describeBinning(ds.Binning))
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <dataset>",
	Short: "Remove a dataset from the workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		ds, err := mgr.Dataset(args[0])
		if err != nil {
			return err
		}
		if err := mgr.RemoveDataset(ds.ID); err != nil {
			return err
		}
		if err := saveWorkspace(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", ds.Name)
		return nil
	},
}

func formatProps(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + props[k]
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func describeBinning(s model.BinningSettings) string {
	state := "off"
	if s.Apply {
		state = "on"
	}
	var detail string
	switch s.Mode {
	case model.BinCycles:
		detail = fmt.Sprintf("light %s, dark %s", s.Cycle.LightStart, s.Cycle.DarkStart)
	case model.BinPhases:
		names := make([]string, len(s.Phases))
		for i, p := range s.Phases {
			names[i] = fmt.Sprintf("%s@%s", p.Name, p.Start)
		}
		detail = strings.Join(names, ", ")
	default:
		detail = fmt.Sprintf("every %d %s", s.Interval.Delta, s.Interval.Unit)
	}
	grouping := string(s.Grouping)
	if s.Grouping == model.GroupByFactor {
		grouping += " " + s.Factor
	}
	return fmt.Sprintf("%s: %s (%s), %s, grouped by %s", state, s.Mode, detail, s.Operation, grouping)
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(removeCmd)
}
