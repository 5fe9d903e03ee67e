package cmd

import (
	"fmt"
	"strings"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/events"
	"github.com/spf13/cobra"
)

var animalCmd = &cobra.Command{
	Use:   "animal",
	Short: "Enable, disable or annotate animals of a dataset",
}

func toggleAnimals(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		ds, err := mgr.Dataset(args[0])
		if err != nil {
			return err
		}
		// subscribers see the toggles only once the batch is done
		release := mgr.Events().Defer()
		for _, id := range args[1:] {
			if err := mgr.SetAnimalEnabled(ds.ID, id, enabled); err != nil {
				release()
				return err
			}
		}
		release()
		if err := saveWorkspace(); err != nil {
			return err
		}
		verb := "Enabled"
		if !enabled {
			verb = "Disabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s in %s\n", verb, strings.Join(args[1:], ", "), ds.Name)
		return nil
	}
}

var animalEnableCmd = &cobra.Command{
	Use:   "enable <dataset> <animal>...",
	Short: "Include animals in analyses",
	Args:  cobra.MinimumNArgs(2),
	RunE:  toggleAnimals(true),
}

var animalDisableCmd = &cobra.Command{
	Use:   "disable <dataset> <animal>...",
	Short: "Exclude animals from analyses",
	Args:  cobra.MinimumNArgs(2),
	RunE:  toggleAnimals(false),
}

var animalSetCmd = &cobra.Command{
	Use:   "set <dataset> <animal> <key=value>...",
	Short: "Set animal properties",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		ds, err := mgr.Dataset(args[0])
		if err != nil {
			return err
		}
		changed := 0
		sub := mgr.Events().Subscribe(func(events.Event) { changed++ }, events.DatasetChanged)
		defer sub.Close()
		for _, kv := range args[2:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return fmt.Errorf("invalid property %q (want key=value)", kv)
			}
			if err := mgr.SetAnimalProperty(ds.ID, args[1], strings.TrimSpace(k), strings.TrimSpace(v)); err != nil {
				return err
			}
		}
		if err := saveWorkspace(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %d properties on %s\n", changed, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(animalCmd)
	animalCmd.AddCommand(animalEnableCmd, animalDisableCmd, animalSetCmd)
}
