// Package manager holds the application state: the open workspace and the
// current selection. Every mutation publishes an event on the bus.
package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/analysis"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/binning"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/events"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/merge"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/parser"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/worker"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/workspace"
	"go.uber.org/zap"
)

// ErrNoSelection is returned when an operation needs a selected dataset.
var ErrNoSelection = errors.New("no dataset selected")

// Manager is the explicitly constructed application context.
type Manager struct {
	log           *zap.Logger
	bus           *events.Bus
	ws            *workspace.Workspace
	selected      *model.Dataset
	selectedTable string
	importOpt     parser.Options
	workers       int
}

// Option configures a Manager.
type Option func(*Manager)

// WithImportOptions sets the parser options used by ImportFiles.
func WithImportOptions(opt parser.Options) Option {
	return func(m *Manager) { m.importOpt = opt }
}

// WithImportWorkers bounds the number of files imported in parallel.
func WithImportWorkers(n int) Option {
	return func(m *Manager) { m.workers = n }
}

// New returns a manager holding an empty, unsaved workspace.
func New(logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		log:     logger,
		bus:     events.NewBus(),
		ws:      workspace.New("Workspace"),
		workers: 4,
	}
	for _, o := range opts {
		o(m)
	}
	if m.importOpt.Logger == nil {
		m.importOpt.Logger = logger
	}
	return m
}

// Events returns the bus state changes are published on.
func (m *Manager) Events() *events.Bus { return m.bus }

// Workspace returns the open workspace.
func (m *Manager) Workspace() *workspace.Workspace { return m.ws }

func (m *Manager) publish(kind events.Kind, datasetID, table string) {
	m.log.Debug("event", zap.Stringer("kind", kind), zap.String("dataset", datasetID), zap.String("datatable", table))
	m.bus.Publish(events.Event{Kind: kind, DatasetID: datasetID, Datatable: table})
}

// NewWorkspace replaces the open workspace with an empty one.
func (m *Manager) NewWorkspace(name string) {
	m.ws = workspace.New(name)
	m.selected, m.selectedTable = nil, ""
	m.publish(events.WorkspaceChanged, "", "")
}

// LoadWorkspace opens a workspace file, replacing the current one.
func (m *Manager) LoadWorkspace(path string) error {
	ws, err := workspace.Load(path)
	if err != nil {
		return err
	}
	m.ws = ws
	m.selected, m.selectedTable = nil, ""
	m.log.Info("workspace loaded", zap.String("path", path), zap.Int("datasets", len(ws.Datasets)))
	m.publish(events.WorkspaceChanged, "", "")
	return nil
}

// SaveWorkspace writes the workspace to path, or to where it was loaded
// from when path is empty.
func (m *Manager) SaveWorkspace(path string) error {
	var err error
	if path == "" {
		err = m.ws.Save()
	} else {
		err = m.ws.SaveAs(path)
	}
	if err != nil {
		return err
	}
	m.log.Debug("workspace saved", zap.String("path", m.ws.Path()))
	return nil
}

// Dataset resolves ref (ID, ID prefix or name) in the workspace.
func (m *Manager) Dataset(ref string) (*model.Dataset, error) {
	return m.ws.Find(ref)
}

// AddDataset inserts ds into the workspace.
func (m *Manager) AddDataset(ds *model.Dataset) {
	m.ws.Add(ds)
	m.publish(events.DatasetAdded, ds.ID, "")
}

// RemoveDataset deletes a dataset, clearing the selection if it pointed at it.
func (m *Manager) RemoveDataset(ref string) error {
	ds, err := m.ws.Find(ref)
	if err != nil {
		return err
	}
	if err := m.ws.Remove(ds.ID); err != nil {
		return err
	}
	if m.selected != nil && m.selected.ID == ds.ID {
		m.selected, m.selectedTable = nil, ""
	}
	m.publish(events.DatasetRemoved, ds.ID, "")
	return nil
}

// SetSelectedDataset selects a dataset and its default datatable.
func (m *Manager) SetSelectedDataset(ref string) error {
	ds, err := m.ws.Find(ref)
	if err != nil {
		return err
	}
	m.selected = ds
	m.selectedTable = ""
	if dt, err := ds.DefaultTable(); err == nil {
		m.selectedTable = dt.Name
	}
	m.publish(events.DatasetSelected, ds.ID, m.selectedTable)
	return nil
}

// SelectedDataset returns the selected dataset or nil.
func (m *Manager) SelectedDataset() *model.Dataset { return m.selected }

// SetSelectedDatatable selects a datatable of the selected dataset.
func (m *Manager) SetSelectedDatatable(name string) error {
	if m.selected == nil {
		return ErrNoSelection
	}
	if _, err := m.selected.Table(name); err != nil {
		return err
	}
	m.selectedTable = name
	m.publish(events.DatatableSelected, m.selected.ID, name)
	return nil
}

// SelectedDatatable returns the selected datatable.
func (m *Manager) SelectedDatatable() (*model.Datatable, error) {
	if m.selected == nil {
		return nil, ErrNoSelection
	}
	return m.selected.Table(m.selectedTable)
}

// SetFactors replaces the factors of a dataset and rebuilds its tables.
func (m *Manager) SetFactors(ref string, factors map[string]*model.Factor) error {
	ds, err := m.ws.Find(ref)
	if err != nil {
		return err
	}
	for name, f := range factors {
		if f == nil || f.Name != name {
			return fmt.Errorf("factor %q: key and name differ", name)
		}
	}
	ds.SetFactors(factors)
	if ds.Binning.Grouping == model.GroupByFactor {
		if _, ok := ds.Factors[ds.Binning.Factor]; !ok {
			m.log.Warn("binning factor no longer exists, grouping by animal",
				zap.String("dataset", ds.Name), zap.String("factor", ds.Binning.Factor))
			ds.Binning.Grouping = model.GroupByAnimal
			ds.Binning.Factor = ""
		}
	}
	m.publish(events.FactorsChanged, ds.ID, "")
	return nil
}

// SetBinning validates and stores the binning settings of a dataset.
func (m *Manager) SetBinning(ref string, s model.BinningSettings) error {
	ds, err := m.ws.Find(ref)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("binning settings: %w", err)
	}
	if s.Grouping == model.GroupByFactor {
		if _, err := ds.Factor(s.Factor); err != nil {
			return err
		}
	}
	ds.Binning = s
	m.publish(events.BinningChanged, ds.ID, "")
	return nil
}

// SetAnimalEnabled includes or excludes an animal from analyses.
func (m *Manager) SetAnimalEnabled(ref, animal string, enabled bool) error {
	ds, err := m.ws.Find(ref)
	if err != nil {
		return err
	}
	if err := ds.SetAnimalEnabled(animal, enabled); err != nil {
		return err
	}
	m.publish(events.DatasetChanged, ds.ID, "")
	return nil
}

// SetAnimalProperty sets a free-form animal property.
func (m *Manager) SetAnimalProperty(ref, animal, key, value string) error {
	ds, err := m.ws.Find(ref)
	if err != nil {
		return err
	}
	if err := ds.SetAnimalProperty(animal, key, value); err != nil {
		return err
	}
	m.publish(events.DatasetChanged, ds.ID, "")
	return nil
}

// ImportFiles parses paths in parallel and adds the datasets once all of
// them succeeded. Events are published after the last dataset is added.
func (m *Manager) ImportFiles(ctx context.Context, paths []string) ([]*model.Dataset, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	started := time.Now()
	opt := m.importOpt
	datasets, err := worker.Map(ctx, m.workers, paths, func(_ context.Context, path string) (*model.Dataset, error) {
		m.log.Debug("importing", zap.String("file", filepath.Base(path)))
		return parser.ImportFile(path, opt)
	})
	if err != nil {
		return nil, err
	}
	release := m.bus.Defer()
	defer release()
	for _, ds := range datasets {
		m.AddDataset(ds)
	}
	m.publish(events.ImportFinished, "", "")
	m.log.Info("import finished", zap.Int("files", len(paths)), zap.Duration("took", time.Since(started)))
	return datasets, nil
}

// MergeDatasets merges the referenced datasets into a new dataset that is
// added to the workspace.
func (m *Manager) MergeDatasets(refs []string, opt merge.Options) (*model.Dataset, error) {
	inputs := make([]*model.Dataset, 0, len(refs))
	for _, ref := range refs {
		ds, err := m.ws.Find(ref)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, ds)
	}
	out, err := merge.Merge(inputs, opt)
	if err != nil {
		return nil, err
	}
	m.AddDataset(out)
	m.log.Info("datasets merged", zap.String("name", out.Name), zap.Int("inputs", len(inputs)))
	return out, nil
}

// PrepareOptions controls Prepare.
type PrepareOptions struct {
	Table     string
	Variables []string
	// RemoveOutliers masks outliers in every selected variable. Variables
	// flagged with RemoveOutliers are masked regardless.
	RemoveOutliers   bool
	OutlierThreshold float64
	// SkipBinning returns the unbinned selection.
	SkipBinning bool
}

// Prepared is the analysis-ready table of Prepare.
type Prepared struct {
	Dataset  *model.Dataset
	Table    *model.Table
	Outliers int
}

// Prepare selects enabled animals and variables, masks outliers and applies
// the dataset's binning settings.
func (m *Manager) Prepare(ref string, opt PrepareOptions) (*Prepared, error) {
	ds, err := m.ws.Find(ref)
	if err != nil {
		return nil, err
	}
	var dt *model.Datatable
	if opt.Table == "" {
		dt, err = ds.DefaultTable()
	} else {
		dt, err = ds.Table(opt.Table)
	}
	if err != nil {
		return nil, err
	}
	t, err := dt.Select(ds.EnabledAnimals(), opt.Variables...)
	if err != nil {
		return nil, err
	}
	var mask []string
	for _, v := range t.Variables {
		if opt.RemoveOutliers {
			mask = append(mask, v)
		} else if meta, ok := dt.Variables[v]; ok && meta.RemoveOutliers {
			mask = append(mask, v)
		}
	}
	removed := 0
	if len(mask) > 0 {
		t, removed = analysis.RemoveOutliers(t, mask, opt.OutlierThreshold)
	}
	if !opt.SkipBinning {
		t, err = binning.Apply(t, ds.Binning, dt.Policies())
		if err != nil {
			return nil, err
		}
	}
	return &Prepared{Dataset: ds, Table: t, Outliers: removed}, nil
}
