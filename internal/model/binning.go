package model

import (
	"fmt"
	"strings"
	"time"
)

// BinningMode selects the binning strategy.
type BinningMode string

const (
	BinIntervals BinningMode = "intervals"
	BinCycles    BinningMode = "cycles"
	BinPhases    BinningMode = "phases"
)

// GroupingMode selects the key rows are grouped by before aggregation.
type GroupingMode string

const (
	GroupByAnimal GroupingMode = "animals"
	GroupByFactor GroupingMode = "factors"
	GroupByRun    GroupingMode = "runs"
)

// TimeUnit is the unit of a fixed binning interval.
type TimeUnit string

const (
	UnitDay    TimeUnit = "day"
	UnitHour   TimeUnit = "hour"
	UnitMinute TimeUnit = "minute"
)

// Duration returns the length of one unit.
func (u TimeUnit) Duration() (time.Duration, error) {
	switch u {
	case UnitDay:
		return 24 * time.Hour, nil
	case UnitHour:
		return time.Hour, nil
	case UnitMinute:
		return time.Minute, nil
	}
	return 0, fmt.Errorf("unsupported time unit: %q (use day|hour|minute)", string(u))
}

// TimeOfDay is an offset from midnight, encoded as "HH:MM" or "HH:MM:SS".
type TimeOfDay time.Duration

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
			return TimeOfDay(d), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day: %q (use HH:MM)", s)
}

// Of returns the time-of-day offset of t.
func Of(t time.Time) TimeOfDay {
	return TimeOfDay(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond()))
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// IntervalSettings configures fixed-width time binning.
type IntervalSettings struct {
	Unit  TimeUnit `json:"unit"`
	Delta int      `json:"delta"`
}

// Width returns Delta×Unit.
func (s IntervalSettings) Width() (time.Duration, error) {
	u, err := s.Unit.Duration()
	if err != nil {
		return 0, err
	}
	if s.Delta <= 0 {
		return 0, fmt.Errorf("interval delta must be positive, got %d", s.Delta)
	}
	return time.Duration(s.Delta) * u, nil
}

// CycleSettings holds the light and dark boundaries of a day.
type CycleSettings struct {
	LightStart TimeOfDay `json:"light_start"`
	DarkStart  TimeOfDay `json:"dark_start"`
}

// TimePhase is a named experiment phase starting at an offset from the
// beginning of the experiment.
type TimePhase struct {
	Name  string        `json:"name"`
	Start time.Duration `json:"start"`
}

// BinningSettings is the per-dataset binning configuration.
type BinningSettings struct {
	Apply     bool             `json:"apply"`
	Mode      BinningMode      `json:"mode"`
	Operation Aggregation      `json:"operation"`
	Grouping  GroupingMode     `json:"grouping"`
	Factor    string           `json:"factor,omitempty"`
	Interval  IntervalSettings `json:"interval"`
	Cycle     CycleSettings    `json:"cycle"`
	Phases    []TimePhase      `json:"phases,omitempty"`
}

// DefaultBinningSettings returns hourly binning per animal, disabled, with
// per-variable aggregation and a 07:00/19:00 light cycle.
func DefaultBinningSettings() BinningSettings {
	return BinningSettings{
		Mode:      BinIntervals,
		Operation: AggregateAuto,
		Grouping:  GroupByAnimal,
		Interval:  IntervalSettings{Unit: UnitHour, Delta: 1},
		Cycle: CycleSettings{
			LightStart: TimeOfDay(7 * time.Hour),
			DarkStart:  TimeOfDay(19 * time.Hour),
		},
	}
}

// Validate checks the settings for the selected mode.
func (s BinningSettings) Validate() error {
	switch s.Grouping {
	case GroupByAnimal, GroupByRun:
	case GroupByFactor:
		if s.Factor == "" {
			return fmt.Errorf("grouping by factor requires a factor name")
		}
	default:
		return fmt.Errorf("unsupported grouping: %q", string(s.Grouping))
	}
	if _, err := ParseAggregation(string(s.Operation)); err != nil {
		return err
	}
	switch s.Mode {
	case BinIntervals:
		_, err := s.Interval.Width()
		return err
	case BinCycles:
		if s.Cycle.LightStart == s.Cycle.DarkStart {
			return fmt.Errorf("light and dark start must differ")
		}
		return nil
	case BinPhases:
		if len(s.Phases) == 0 {
			return fmt.Errorf("phase binning requires at least one phase")
		}
		seen := map[string]bool{}
		for _, p := range s.Phases {
			if p.Name == "" {
				return fmt.Errorf("phase name is required")
			}
			if seen[p.Name] {
				return fmt.Errorf("duplicate phase %q", p.Name)
			}
			seen[p.Name] = true
		}
		return nil
	}
	return fmt.Errorf("unsupported binning mode: %q", string(s.Mode))
}
