// Package workspace persists a set of datasets as one versioned JSON
// document.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/utils"
)

const (
	// FormatVersion is written into every saved workspace.
	FormatVersion = 1
	// FileName is the default workspace file name.
	FileName = "workspace.tsea.json"
)

var (
	ErrDatasetNotFound    = errors.New("dataset not found")
	ErrAmbiguousDataset   = errors.New("dataset reference is ambiguous")
	ErrUnsupportedVersion = errors.New("unsupported workspace format version")
	ErrNoPath             = errors.New("workspace path not set")
)

// Workspace is the root persisted document.
type Workspace struct {
	FormatVersion int                       `json:"format_version"`
	Name          string                    `json:"name"`
	Datasets      map[string]*model.Dataset `json:"datasets"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`

	path string
}

// New returns an empty in-memory workspace. Call SaveAs to persist it.
func New(name string) *Workspace {
	now := time.Now()
	return &Workspace{
		FormatVersion: FormatVersion,
		Name:          name,
		Datasets:      map[string]*model.Dataset{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Load reads a workspace file and rebuilds every derived table.
func Load(path string) (*Workspace, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("workspace not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	var w Workspace
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("parse workspace: %w", err)
	}
	if w.FormatVersion < 1 || w.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("%w: %d (supported: 1..%d)", ErrUnsupportedVersion, w.FormatVersion, FormatVersion)
	}
	if w.Datasets == nil {
		w.Datasets = map[string]*model.Dataset{}
	}
	for id, ds := range w.Datasets {
		if ds == nil {
			delete(w.Datasets, id)
			continue
		}
		ensureMaps(ds)
		ds.Refresh()
	}
	w.path = path
	return &w, nil
}

func ensureMaps(ds *model.Dataset) {
	if ds.Metadata == nil {
		ds.Metadata = map[string]string{}
	}
	if ds.Animals == nil {
		ds.Animals = map[string]*model.Animal{}
	}
	if ds.Tables == nil {
		ds.Tables = map[string]*model.Datatable{}
	}
	if ds.Factors == nil {
		ds.Factors = map[string]*model.Factor{}
	}
	for _, a := range ds.Animals {
		if a.Properties == nil {
			a.Properties = map[string]string{}
		}
	}
}

// Path returns the file the workspace was loaded from or last saved to.
func (w *Workspace) Path() string { return w.path }

// Save writes the workspace back to Path.
func (w *Workspace) Save() error {
	if w.path == "" {
		return ErrNoPath
	}
	return w.SaveAs(w.path)
}

// SaveAs writes the whole workspace atomically to path and remembers it.
func (w *Workspace) SaveAs(path string) error {
	w.FormatVersion = FormatVersion
	w.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(w)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	w.path = path
	return nil
}

// Add inserts ds, replacing any dataset with the same ID.
func (w *Workspace) Add(ds *model.Dataset) {
	if w.Datasets == nil {
		w.Datasets = map[string]*model.Dataset{}
	}
	w.Datasets[ds.ID] = ds
	w.UpdatedAt = time.Now()
}

// Remove deletes the dataset with the given ID.
func (w *Workspace) Remove(id string) error {
	if _, ok := w.Datasets[id]; !ok {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	delete(w.Datasets, id)
	w.UpdatedAt = time.Now()
	return nil
}

// List returns datasets ordered by creation time, then name.
func (w *Workspace) List() []*model.Dataset {
	out := make([]*model.Dataset, 0, len(w.Datasets))
	for _, ds := range w.Datasets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Find resolves ref as a full ID, a unique ID prefix or a unique name.
func (w *Workspace) Find(ref string) (*model.Dataset, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrDatasetNotFound)
	}
	if ds, ok := w.Datasets[ref]; ok {
		return ds, nil
	}
	var matches []*model.Dataset
	for _, ds := range w.List() {
		if ds.Name == ref || strings.HasPrefix(ds.ID, ref) {
			matches = append(matches, ds)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return nil, fmt.Errorf("%w: %q matches %d datasets", ErrAmbiguousDataset, ref, len(matches))
}
