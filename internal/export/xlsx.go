package export

import (
	"fmt"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet of an XLSX export.
type Sheet struct {
	Name  string
	Table *model.Table
	// Units maps variable names to units shown in a second header row.
	Units map[string]string
}

const maxSheetName = 31

// XLSXFile writes every sheet into a new workbook at path.
func XLSXFile(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("xlsx export: no sheets")
	}
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for i, s := range sheets {
		name := s.Name
		if r := []rune(name); len(r) > maxSheetName {
			name = string(r[:maxSheetName])
		}
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, s, headerStyle); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, s Sheet, headerStyle int) error {
	cols := Columns(s.Table)
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rowNum := 2
	if len(s.Units) > 0 {
		units := make([]any, len(cols))
		offset := len(cols) - len(s.Table.Variables)
		for i, v := range s.Table.Variables {
			units[offset+i] = s.Units[v]
		}
		if err := f.SetSheetRow(sheet, "A2", &units); err != nil {
			return fmt.Errorf("write units: %w", err)
		}
		rowNum = 3
	}
	last, err := excelize.CoordinatesToCellName(len(cols), rowNum-1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}
	for i := range s.Table.Rows {
		row := cells(s.Table, &s.Table.Rows[i])
		cell, err := excelize.CoordinatesToCellName(1, rowNum+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(cols))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "A", 20); err != nil {
		return err
	}
	if len(cols) > 1 {
		if err := f.SetColWidth(sheet, "B", lastCol, 12); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      rowNum - 1,
		TopLeftCell: fmt.Sprintf("A%d", rowNum),
		ActivePane:  "bottomLeft",
	})
}
