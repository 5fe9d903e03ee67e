package cmd

import (
	"fmt"
	"unicode/utf8"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/export"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/manager"
	"github.com/spf13/cobra"
)

var (
	expOutput         string
	expTable          string
	expVars           []string
	expRaw            bool
	expRemoveOutliers bool
	expDelimiter      string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export prepared dataset tables to CSV or XLSX",
}

func prepareExport(ref, table string) (*manager.Prepared, error) {
	return mgr.Prepare(ref, manager.PrepareOptions{
		Table:            table,
		Variables:        expVars,
		RemoveOutliers:   expRemoveOutliers,
		OutlierThreshold: cfg.OutlierThreshold,
		SkipBinning:      expRaw,
	})
}

var exportCSVCmd = &cobra.Command{
	Use:   "csv <dataset>",
	Short: "Write one datatable as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if expOutput == "" {
			return fmt.Errorf("--output is required")
		}
		var delim rune
		switch expDelimiter {
		case "":
			delim = cfg.DelimiterRune()
		case `\t`, "tab":
			delim = '\t'
		default:
			if utf8.RuneCountInString(expDelimiter) != 1 {
				return fmt.Errorf("--delimiter must be a single character: %q", expDelimiter)
			}
			delim, _ = utf8.DecodeRuneInString(expDelimiter)
		}
		if err := openWorkspace(); err != nil {
			return err
		}
		p, err := prepareExport(args[0], expTable)
		if err != nil {
			return err
		}
		if err := export.CSVFile(expOutput, p.Table, export.CSVOptions{Delimiter: delim}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d rows to %s\n", p.Table.Len(), expOutput)
		return nil
	},
}

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx <dataset>",
	Short: "Write datatables as worksheets of an XLSX workbook",
	Long:  `Write a datatable (or, without --table, every datatable) as worksheets with a units row.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if expOutput == "" {
			return fmt.Errorf("--output is required")
		}
		if err := openWorkspace(); err != nil {
			return err
		}
		ds, err := mgr.Dataset(args[0])
		if err != nil {
			return err
		}
		tables := ds.TableNames()
		if expTable != "" {
			tables = []string{expTable}
		}
		sheets := make([]export.Sheet, 0, len(tables))
		for _, name := range tables {
			p, err := prepareExport(ds.ID, name)
			if err != nil {
				return err
			}
			units, err := unitsOf(ds.ID, name)
			if err != nil {
				return err
			}
			sheets = append(sheets, export.Sheet{Name: name, Table: p.Table, Units: units})
		}
		if err := export.XLSXFile(expOutput, sheets); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d sheets to %s\n", len(sheets), expOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportCSVCmd, exportXLSXCmd)
	for _, c := range []*cobra.Command{exportCSVCmd, exportXLSXCmd} {
		f := c.Flags()
		f.StringVarP(&expOutput, "output", "o", "", "output file")
		f.StringVarP(&expTable, "table", "t", "", "datatable name")
		f.StringSliceVar(&expVars, "vars", nil, "variables to include (default: all)")
		f.BoolVar(&expRaw, "raw", false, "skip binning")
		f.BoolVar(&expRemoveOutliers, "remove-outliers", false, "mask outliers before export")
	}
	exportCSVCmd.Flags().StringVar(&expDelimiter, "delimiter", "", "field delimiter (default: config delimiter or ',')")
}
