package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var wsForce bool

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Create or inspect the workspace file",
}

var workspaceNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create an empty workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "Workspace"
		if len(args) == 1 {
			name = args[0]
		}
		path := workspacePath()
		if exists(path) && !wsForce {
			return fmt.Errorf("workspace already exists at %s (use --force to replace)", path)
		}
		mgr.NewWorkspace(name)
		if err := saveWorkspace(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Workspace created: %s\n", path)
		return nil
	},
}

var workspaceInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show workspace location and contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openWorkspace(); err != nil {
			return err
		}
		ws := mgr.Workspace()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Name: %s\n", ws.Name)
		fmt.Fprintf(out, "Path: %s\n", workspacePath())
		fmt.Fprintf(out, "Format version: %d\n", ws.FormatVersion)
		fmt.Fprintf(out, "Datasets: %d\n", len(ws.Datasets))
		if !ws.UpdatedAt.IsZero() {
			fmt.Fprintf(out, "Updated: %s\n", ws.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
	workspaceCmd.AddCommand(workspaceNewCmd)
	workspaceCmd.AddCommand(workspaceInfoCmd)
	workspaceNewCmd.Flags().BoolVar(&wsForce, "force", false, "replace an existing workspace file")
}
