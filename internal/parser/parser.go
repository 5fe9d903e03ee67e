package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/analysis"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"go.uber.org/zap"
)

// Options controls dataset import.
type Options struct {
	// Delimiter for text files. If 0, auto-detects among ';', '\t', ','.
	Delimiter rune
	// Number fixes decimal/thousands separators; zero values auto-detect.
	Number analysis.NumberFormat
	// Sheet selects the XLSX worksheet; empty means the first sheet.
	Sheet  string
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Importer defines a dataset importer implementation.
type Importer interface {
	CanImport(filename string) bool
	Import(path string, opt Options) (*model.Dataset, error)
}

var registry []Importer

// Register adds an importer implementation to the registry.
func Register(i Importer) {
	registry = append(registry, i)
}

// ErrUnsupported indicates a format is not supported.
var ErrUnsupported = errors.New("unsupported dataset format")

// ImportFile selects an importer based on filename and returns the dataset.
func ImportFile(path string, opt Options) (*model.Dataset, error) {
	for _, imp := range registry {
		if imp.CanImport(path) {
			ds, err := imp.Import(path, opt)
			if err != nil {
				return nil, fmt.Errorf("import %s: %w", filepath.Base(path), err)
			}
			return ds, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

func datasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func init() {
	Register(delimitedImporter{})
	Register(xlsxImporter{})
}
