package parser

import (
	"fmt"
	"strings"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/xuri/excelize/v2"
)

type xlsxImporter struct{}

func (xlsxImporter) CanImport(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

func (xlsxImporter) Import(path string, opt Options) (*model.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := opt.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found; available sheets: %s", sheet, strings.Join(f.GetSheetList(), ", "))
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	records := make([][]string, len(rows))
	for i, row := range rows {
		empty := true
		for j := range row {
			row[j] = strings.TrimSpace(row[j])
			if row[j] != "" {
				empty = false
			}
		}
		if !empty {
			records[i] = row
		}
	}
	ds, err := buildDataset(datasetName(path), records, opt)
	if err != nil {
		return nil, err
	}
	ds.Metadata["source"] = path
	ds.Metadata["sheet"] = sheet
	return ds, nil
}
