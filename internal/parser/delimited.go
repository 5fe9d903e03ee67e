package parser

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
)

type delimitedImporter struct{}

func (delimitedImporter) CanImport(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (delimitedImporter) Import(path string, opt Options) (*model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(lines) > 0 {
		lines[0] = strings.TrimPrefix(lines[0], "\ufeff")
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(lines, path)
	}
	records := make([][]string, len(lines))
	for i, line := range lines {
		records[i] = splitLine(line, delim)
	}
	ds, err := buildDataset(datasetName(path), records, opt)
	if err != nil {
		return nil, err
	}
	ds.Metadata["source"] = path
	return ds, nil
}

// sniffDelimiter picks tab, then ';', then ',' based on the first lines.
func sniffDelimiter(lines []string, path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	var tabs, semis, commas int
	for i, l := range lines {
		if i >= 20 {
			break
		}
		tabs += strings.Count(l, "\t")
		semis += strings.Count(l, ";")
		commas += strings.Count(l, ",")
	}
	switch {
	case tabs > 0 && tabs >= semis:
		return '\t'
	case semis > 0:
		return ';'
	case commas > 0:
		return ','
	}
	return ';'
}

// splitLine splits a line on delim and trims spaces and quotes. A line with
// only empty fields becomes an empty record.
func splitLine(line string, delim rune) []string {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	parts := strings.Split(line, string(delim))
	empty := true
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"`)
		parts[i] = p
		if p != "" {
			empty = false
		}
	}
	if empty {
		return nil
	}
	return parts
}
