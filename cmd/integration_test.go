package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default so state from a previous
// invocation does not leak into the next one.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns its output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	require.NoError(t, err, "command %v: %s", args, out)
	return out
}

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeStudy(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Experiment;CLI study\n\n")
	b.WriteString("Box;Animal;Weight\n1;A1;24,5\n2;A2;25,1\n3;A3;23,9\n4;A4;24,0\n\n")
	b.WriteString("Sample Interval;00:30\n\n")
	b.WriteString("Date;Time;Animal;Box;VO2;Drink\n;;;;[ml/h];[ml]\n")
	day := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		ts := day.Add(time.Duration(i) * 30 * time.Minute)
		for k, id := range []string{"A1", "A2", "A3", "A4"} {
			fmt.Fprintf(&b, "%s;%s;%s;%d;%.2f;0,1\n", ts.Format("02.01.2006"), ts.Format("15:04"), id, k+1,
				1+0.3*float64(k/2)+0.02*float64(i%3))
		}
	}
	p := filepath.Join(dir, "study.csv")
	require.NoError(t, os.WriteFile(p, []byte(b.String()), 0o644))
	return p
}

func TestCLI_ImportFactorBinAnalyzeExport(t *testing.T) {
	home := setHome(t)
	ws := filepath.Join(home, "ws.tsea.json")
	data := writeStudy(t, home)

	out := mustRun(t, "-w", ws, "import", data)
	assert.Contains(t, out, "Imported study: 4 animals, 48 rows")
	assert.FileExists(t, ws)

	assert.Contains(t, mustRun(t, "-w", ws, "list"), "study")

	mustRun(t, "-w", ws, "factor", "set", "study", "Treatment", "--level", "Control=A1,A2", "--level", "Drug=A3,A4")
	out = mustRun(t, "-w", ws, "factor", "list", "study")
	assert.Contains(t, out, "Control: A1, A2")

	mustRun(t, "-w", ws, "animal", "disable", "study", "A4")
	mustRun(t, "-w", ws, "animal", "set", "study", "A1", "Sex=f")
	out = mustRun(t, "-w", ws, "bin", "study", "--mode", "intervals", "--unit", "hour", "--delta", "2")
	assert.Contains(t, out, "on: intervals (every 2 hour)")

	out = mustRun(t, "-w", ws, "show", "study")
	assert.Contains(t, out, "A4 box 4, disabled")
	assert.Contains(t, out, "(Sex=f, Weight=24,5)")
	assert.Contains(t, out, "VO2 [ml/h] (mean)")
	assert.Contains(t, out, "Drink [ml] (sum)")

	out = mustRun(t, "-w", ws, "describe", "study", "--vars", "VO2", "--group-by", "Treatment")
	assert.Contains(t, out, "[DATATABLE SUMMARY]")
	assert.Contains(t, out, "Rows: 9")
	assert.Contains(t, out, "Treatment=Control")

	report := filepath.Join(home, "report.html")
	out = mustRun(t, "-w", ws, "analyze", "study", "--proc", "anova,histogram", "--var", "VO2",
		"--split", "factors", "--factor", "Treatment", "-o", report)
	assert.Contains(t, out, "Report written")
	html, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<!doctype html>")
	assert.Contains(t, string(html), "data:image/png;base64,")

	csvPath := filepath.Join(home, "out", "study.csv")
	mustRun(t, "-w", ws, "export", "csv", "study", "-o", csvPath, "--delimiter", ";")
	b, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "Timestamp;Elapsed;Animal;Box;Run;Bin;Treatment;VO2;Drink", lines[0])
	assert.Len(t, lines, 10)

	xlsxPath := filepath.Join(home, "study.xlsx")
	assert.Contains(t, mustRun(t, "-w", ws, "export", "xlsx", "study", "-o", xlsxPath), "1 sheets")
	assert.FileExists(t, xlsxPath)
}

func TestCLI_MergeAndRemove(t *testing.T) {
	home := setHome(t)
	ws := filepath.Join(home, "ws.tsea.json")
	a := writeStudy(t, home)
	bdir := filepath.Join(home, "b")
	require.NoError(t, os.MkdirAll(bdir, 0o755))
	bfile := filepath.Join(bdir, "second.csv")
	require.NoError(t, os.Rename(writeStudy(t, bdir), bfile))

	mustRun(t, "-w", ws, "import", a, bfile)
	out := mustRun(t, "-w", ws, "merge", "study", "second", "--name", "both", "--mode", "overlap", "--rename-animals")
	assert.Contains(t, out, "Merged 2 datasets into both")
	out = mustRun(t, "-w", ws, "show", "both")
	assert.Contains(t, out, "A1-2")

	mustRun(t, "-w", ws, "remove", "second")
	out = mustRun(t, "-w", ws, "list")
	assert.NotContains(t, out, "second")

	_, err := runCmd(t, "-w", ws, "show", "second")
	assert.ErrorContains(t, err, "dataset not found")
	_, err = runCmd(t, "-w", ws, "merge", "study", "both", "--mode", "stacked")
	assert.Error(t, err)
}

func TestCLI_WorkspaceAndConfig(t *testing.T) {
	home := setHome(t)
	ws := filepath.Join(home, "fresh.tsea.json")

	mustRun(t, "-w", ws, "workspace", "new", "Lab")
	_, err := runCmd(t, "-w", ws, "workspace", "new")
	assert.ErrorContains(t, err, "already exists")
	out := mustRun(t, "-w", ws, "workspace", "info")
	assert.Contains(t, out, "Name: Lab")
	assert.Contains(t, out, "Datasets: 0")

	cfgPath := filepath.Join(home, "cfg.yaml")
	mustRun(t, "--config", cfgPath, "config", "set", "light_start", "06:00")
	out = mustRun(t, "--config", cfgPath, "config", "show")
	assert.Contains(t, out, "light_start: 06:00")
	assert.Contains(t, out, "dark_start: 19:00")

	_, err = runCmd(t, "--config", cfgPath, "config", "set", "light_start", "noon")
	assert.Error(t, err)
	_, err = runCmd(t, "--config", cfgPath, "config", "set", "nope", "1")
	assert.ErrorContains(t, err, "unknown key")
}
