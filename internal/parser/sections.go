package parser

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/analysis"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"go.uber.org/zap"
)

// ErrNoData is returned when a file has no data block.
var ErrNoData = errors.New("no data block found")

// GroupFactor is the factor created from a file's group block.
const GroupFactor = "Group"

var levelColors = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b", "#e377c2", "#7f7f7f"}

var timestampLayouts = []string{
	"02.01.2006 15:04:05", "02.01.2006 15:04",
	"2006-01-02 15:04:05", "2006-01-02 15:04",
	"2006/01/02 15:04:05", "2006/01/02 15:04",
	"01/02/2006 15:04:05", "01/02/2006 15:04",
	"1/2/2006 15:04:05", "1/2/2006 15:04",
	time.RFC3339, "2006-01-02T15:04:05",
}

// block is a run of non-blank records.
type block struct {
	line    int // 1-based line of the first record
	records [][]string
}

func splitBlocks(records [][]string) []block {
	var out []block
	var cur *block
	for i, r := range records {
		if len(r) == 0 {
			cur = nil
			continue
		}
		if cur == nil {
			out = append(out, block{line: i + 1})
			cur = &out[len(out)-1]
		}
		cur.records = append(cur.records, r)
	}
	return out
}

func cell(r []string, i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

func isDataHeader(r []string) bool {
	switch strings.ToLower(cell(r, 0)) {
	case "date", "datetime", "date/time", "date time":
	default:
		return false
	}
	for _, c := range r {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "animal", "animal no.", "animal no", "animal id":
			return true
		}
	}
	return false
}

// buildDataset turns sectioned records into a dataset: header block, animal
// block, optional sample interval, optional group block, then data.
func buildDataset(name string, records [][]string, opt Options) (*model.Dataset, error) {
	log := opt.logger().With(zap.String("dataset", name))
	blocks := splitBlocks(records)
	ds := model.NewDataset(name)
	var interval time.Duration
	var group *model.Factor
	var data [][]string
	dataLine := 0

	for bi, b := range blocks {
		if data != nil {
			// blank lines inside the data block
			data = append(data, b.records...)
			continue
		}
		head := strings.ToLower(cell(b.records[0], 0))
		switch {
		case isDataHeader(b.records[0]):
			data = b.records
			dataLine = b.line
		case head == "box" || (head == "animal" && strings.EqualFold(cell(b.records[0], 1), "box")):
			if err := parseAnimals(ds, b); err != nil {
				return nil, err
			}
		case strings.HasPrefix(head, "sample interval"):
			iv, err := parseInterval(cell(b.records[0], 1))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", b.line, err)
			}
			interval = iv
		case head == "group":
			group = parseGroups(b)
		case bi == 0:
			iv, err := parseHeader(ds, b)
			if err != nil {
				return nil, err
			}
			if iv > 0 {
				interval = iv
			}
		default:
			log.Debug("skipping unrecognized section", zap.Int("line", b.line), zap.String("head", head))
		}
	}
	if data == nil {
		return nil, ErrNoData
	}
	table, units, err := parseData(ds, data, dataLine, opt)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = inferInterval(table)
	}
	start := table.Start()
	for i := range table.Rows {
		r := &table.Rows[i]
		r.Run = 1
		r.Elapsed = r.Timestamp.Sub(start)
		if interval > 0 {
			r.Bin = int(r.Elapsed / interval)
		}
	}
	vars := make(map[string]*model.Variable, len(table.Variables))
	for _, v := range table.Variables {
		vars[v] = model.NewVariable(v, units[v])
	}
	ds.AddTable(model.NewDatatable(model.MainTable, table, vars, interval))
	if group != nil && len(group.Levels) > 0 {
		ds.SetFactors(map[string]*model.Factor{group.Name: group})
	}
	log.Debug("imported dataset",
		zap.Int("rows", table.Len()),
		zap.Int("animals", len(ds.Animals)),
		zap.Int("variables", len(table.Variables)),
		zap.Duration("interval", interval))
	return ds, nil
}

func parseHeader(ds *model.Dataset, b block) (time.Duration, error) {
	var interval time.Duration
	for i, r := range b.records {
		var fields []string
		for _, c := range r {
			if c = strings.TrimSpace(c); c != "" {
				fields = append(fields, c)
			}
		}
		switch {
		case len(fields) == 0:
		case len(fields) == 1 && i == 0:
			ds.Metadata["title"] = fields[0]
		case len(fields) == 1:
			ds.Metadata[fields[0]] = ""
		default:
			key := fields[0]
			val := strings.Join(fields[1:], " ")
			if strings.HasPrefix(strings.ToLower(key), "sample interval") {
				iv, err := parseInterval(val)
				if err != nil {
					return 0, fmt.Errorf("line %d: %w", b.line+i, err)
				}
				interval = iv
			}
			ds.Metadata[key] = val
		}
	}
	return interval, nil
}

func parseAnimals(ds *model.Dataset, b block) error {
	header := b.records[0]
	boxCol, animalCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "box":
			boxCol = i
		case "animal", "animal no.", "animal no", "animal id":
			animalCol = i
		}
	}
	if animalCol < 0 {
		return fmt.Errorf("line %d: animal section has no Animal column", b.line)
	}
	for i, r := range b.records[1:] {
		id := cell(r, animalCol)
		if id == "" {
			continue
		}
		box := 0
		if s := cell(r, boxCol); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("line %d: invalid box %q", b.line+i+1, s)
			}
			box = n
		}
		a := model.NewAnimal(id, box)
		for j, h := range header {
			if j == boxCol || j == animalCol {
				continue
			}
			key := strings.TrimSpace(h)
			if key == "" {
				continue
			}
			if v := cell(r, j); v != "" {
				a.Properties[key] = v
			}
		}
		ds.Animals[id] = a
	}
	return nil
}

func parseGroups(b block) *model.Factor {
	f := &model.Factor{Name: GroupFactor}
	index := map[string]int{}
	for _, r := range b.records[1:] {
		level, animal := cell(r, 0), cell(r, 1)
		if level == "" || animal == "" {
			continue
		}
		li, ok := index[level]
		if !ok {
			li = len(f.Levels)
			index[level] = li
			f.Levels = append(f.Levels, model.FactorLevel{Name: level, Color: levelColors[li%len(levelColors)]})
		}
		f.Levels[li].AnimalIDs = append(f.Levels[li].AnimalIDs, animal)
	}
	return f
}

// parseInterval accepts "HH:MM:SS", "HH:MM", Go durations ("5m") or plain minutes.
func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty sample interval")
	}
	if parts := strings.Split(s, ":"); len(parts) == 2 || len(parts) == 3 {
		var total time.Duration
		units := []time.Duration{time.Hour, time.Minute, time.Second}
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid sample interval %q", s)
			}
			total += time.Duration(n) * units[i]
		}
		return total, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	return 0, fmt.Errorf("invalid sample interval %q", s)
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range timestampLayouts {
		if t, err := time.ParseInLocation(l, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseData(ds *model.Dataset, rows [][]string, line int, opt Options) (*model.Table, map[string]string, error) {
	header := rows[0]
	dateCol, timeCol, dtCol, animalCol, boxCol := -1, -1, -1, -1, -1
	var varCols []int
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "time":
			timeCol = i
		case "datetime", "date/time", "date time":
			dtCol = i
		case "animal", "animal no.", "animal no", "animal id":
			animalCol = i
		case "box":
			boxCol = i
		case "":
		default:
			varCols = append(varCols, i)
		}
	}
	if animalCol < 0 {
		return nil, nil, fmt.Errorf("line %d: data section has no Animal column", line)
	}
	if dtCol < 0 && (dateCol < 0 || timeCol < 0) {
		return nil, nil, fmt.Errorf("line %d: data section needs DateTime or Date and Time columns", line)
	}

	stamp := func(r []string) (time.Time, bool) {
		if dtCol >= 0 {
			return parseTimestamp(cell(r, dtCol))
		}
		return parseTimestamp(cell(r, dateCol) + " " + cell(r, timeCol))
	}

	body := rows[1:]
	units := map[string]string{}
	names := make([]string, len(varCols))
	for k, c := range varCols {
		n, u := analysis.SplitUnit(header[c])
		names[k] = n
		if u != "" {
			units[n] = u
		}
	}
	// optional unit row
	if len(body) > 0 {
		if _, ok := stamp(body[0]); !ok {
			for k, c := range varCols {
				if u := analysis.TrimUnit(cell(body[0], c)); u != "" {
					units[names[k]] = u
				}
			}
			body = body[1:]
			line++
		}
	}

	t := model.NewTable(names...)
	t.Rows = make([]model.Row, 0, len(body))
	bad := 0
	for i, r := range body {
		ts, ok := stamp(r)
		if !ok {
			return nil, nil, fmt.Errorf("line %d: invalid timestamp in %q", line+i+1, strings.Join(r, " "))
		}
		id := cell(r, animalCol)
		if id == "" {
			return nil, nil, fmt.Errorf("line %d: missing animal", line+i+1)
		}
		box := 0
		if s := cell(r, boxCol); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				box = n
			}
		}
		a, known := ds.Animals[id]
		if !known {
			a = model.NewAnimal(id, box)
			ds.Animals[id] = a
		}
		if box == 0 {
			box = a.Box
		}
		row := model.Row{Animal: id, Box: box, Timestamp: ts, Values: make(model.Values, len(varCols))}
		for k, c := range varCols {
			s := cell(r, c)
			if s == "" || s == "-" {
				row.Values[k] = math.NaN()
				continue
			}
			x, ok := analysis.ParseNumber(s, opt.Number)
			if !ok {
				bad++
				x = math.NaN()
			}
			row.Values[k] = x
		}
		t.Rows = append(t.Rows, row)
	}
	if bad > 0 {
		opt.logger().Warn("non-numeric values treated as missing", zap.String("dataset", ds.Name), zap.Int("count", bad))
	}
	t.SortByTime()
	return t, units, nil
}

// inferInterval returns the smallest positive step between consecutive
// timestamps of the same animal.
func inferInterval(t *model.Table) time.Duration {
	byAnimal := map[string][]time.Time{}
	for _, r := range t.Rows {
		byAnimal[r.Animal] = append(byAnimal[r.Animal], r.Timestamp)
	}
	var best time.Duration
	for _, ts := range byAnimal {
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
		for i := 1; i < len(ts); i++ {
			d := ts[i].Sub(ts[i-1])
			if d > 0 && (best == 0 || d < best) {
				best = d
			}
		}
	}
	return best
}
