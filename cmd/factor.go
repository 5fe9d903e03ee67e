package cmd

import (
	"fmt"
	"strings"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/spf13/cobra"
)

var factorLevels []string

var factorCmd = &cobra.Command{
	Use:   "factor",
	Short: "Define named groupings of animals",
}

var factorSetCmd = &cobra.Command{
	Use:   "set <dataset> <factor>",
	Short: "Create or replace a factor",
	Long: `Create or replace a factor. Every --level takes "name=animal,animal,...".
Animals listed under no level are NA for this factor.`,
	Example: `  tsea factor set study Treatment --level Control=A1,A2 --level Drug=A3,A4`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(factorLevels) == 0 {
			return fmt.Errorf("at least one --level is required")
		}
		if err := openWorkspace(); err != nil {
			return err
		}
		ds, err := mgr.Dataset(args[0])
		if err != nil {
			return err
		}
		f := &model.Factor{Name: args[1]}
		for _, spec := range factorLevels {
			name, ids, ok := strings.Cut(spec, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				return fmt.Errorf("invalid level %q (want name=animal,...)", spec)
			}
			lvl := model.FactorLevel{Name: name}
			for _, id := range strings.Split(ids, ",") {
				id = strings.TrimSpace(id)
				if id == "" {
					continue
				}
				if _, err := ds.Animal(id); err != nil {
					return err
				}
				lvl.AnimalIDs = append(lvl.AnimalIDs, id)
			}
			f.Levels = append(f.Levels, lvl)
		}
		if err := f.Validate(); err != nil {
			return err
		}
		next := make(map[string]*model.Factor, len(ds.Factors)+1)
		for k, v := range ds.Factors {
			next[k] = v
		}
		next[f.Name] = f
		if err := mgr.SetFactors(ds.ID, next); err != nil {
			return err
		}
		if err := saveWorkspace(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Factor %s set with %d levels\n", f.Name, len(f.Levels))
		return nil
	},
}

var factorRemoveCmd = &cobra.Command{
	Use:   "remove <dataset> <factor>",
	Short: "Remove a factor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		ds, err := mgr.Dataset(args[0])
		if err != nil {
			return err
		}
		if _, err := ds.Factor(args[1]); err != nil {
			return err
		}
		next := make(map[string]*model.Factor, len(ds.Factors))
		for k, v := range ds.Factors {
			if k != args[1] {
				next[k] = v
			}
		}
		if err := mgr.SetFactors(ds.ID, next); err != nil {
			return err
		}
		if err := saveWorkspace(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Factor %s removed\n", args[1])
		return nil
	},
}

var factorListCmd = &cobra.Command{
	Use:   "list <dataset>",
	Short: "List factors and their levels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		ds, err := mgr.Dataset(args[0])
		if err != nil {
			return err
		}
		if len(ds.Factors) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no factors)")
			return nil
		}
		for _, name := range ds.FactorNames() {
			printFactor(cmd, ds.Factors[name])
			var na []string
			for _, id := range ds.AnimalIDs() {
				if ds.Factors[name].LevelOf(id) == "" {
					na = append(na, id)
				}
			}
			if len(na) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  • NA: %s\n", strings.Join(na, ", "))
			}
		}
		return nil
	},
}

func printFactor(cmd *cobra.Command, f *model.Factor) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "- %s\n", f.Name)
	for _, l := range f.Levels {
		fmt.Fprintf(out, "  • %s: %s\n", l.Name, strings.Join(l.AnimalIDs, ", "))
	}
}

func init() {
	rootCmd.AddCommand(factorCmd)
	factorCmd.AddCommand(factorSetCmd, factorRemoveCmd, factorListCmd)
	factorSetCmd.Flags().StringArrayVarP(&factorLevels, "level", "l", nil, "level as name=animal,animal (repeatable)")
}
