package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	dirName   = ".tsea"
	envPrefix = "TSEA"
)

// Global configuration structure.
type Global struct {
	WorkspacePath string `mapstructure:"workspace_path" yaml:"workspace_path"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`

	// Import
	Delimiter        string `mapstructure:"delimiter" yaml:"delimiter"`
	DecimalSeparator string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	ImportWorkers    int    `mapstructure:"import_workers" yaml:"import_workers"`

	// Analysis defaults
	OutlierThreshold   float64 `mapstructure:"outlier_threshold" yaml:"outlier_threshold"`
	LightStart         string  `mapstructure:"light_start" yaml:"light_start"`
	DarkStart          string  `mapstructure:"dark_start" yaml:"dark_start"`
	DefaultAggregation string  `mapstructure:"default_aggregation" yaml:"default_aggregation"`

	// Reports
	ReportDir    string  `mapstructure:"report_dir" yaml:"report_dir"`
	PlotWidthIn  float64 `mapstructure:"plot_width_in" yaml:"plot_width_in"`
	PlotHeightIn float64 `mapstructure:"plot_height_in" yaml:"plot_height_in"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"workspace_path", "log_level", "delimiter", "decimal_separator", "import_workers",
	"outlier_threshold", "light_start", "dark_start", "default_aggregation",
	"report_dir", "plot_width_in", "plot_height_in",
}

// Dir returns ~/.tsea.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to cfgFile, or to ~/.tsea/config.yaml
// when cfgFile is empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("workspace_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("delimiter", "")
	v.SetDefault("decimal_separator", "")
	v.SetDefault("import_workers", 4)
	v.SetDefault("outlier_threshold", 3.5)
	v.SetDefault("light_start", "07:00")
	v.SetDefault("dark_start", "19:00")
	v.SetDefault("default_aggregation", "auto")
	v.SetDefault("report_dir", "")
	v.SetDefault("plot_width_in", 6.0)
	v.SetDefault("plot_height_in", 4.0)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.WorkspacePath == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.WorkspacePath = filepath.Join(dir, "workspace.tsea.json")
	}
	if c.ReportDir == "" {
		c.ReportDir = "reports"
	}
	return &c, nil
}

// Set validates and assigns one key.
func (c *Global) Set(key, val string) error {
	switch key {
	case "workspace_path":
		c.WorkspacePath = val
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug|info|warn|error)", val)
		}
	case "delimiter":
		if val == `\t` || val == "tab" {
			val = "\t"
		}
		if utf8.RuneCountInString(val) > 1 {
			return fmt.Errorf("delimiter must be a single character: %q", val)
		}
		c.Delimiter = val
	case "decimal_separator":
		if val != "" && val != "." && val != "," {
			return fmt.Errorf("invalid decimal_separator: %q (use . or ,)", val)
		}
		c.DecimalSeparator = val
	case "import_workers":
		i, err := strconv.Atoi(val)
		if err != nil || i < 1 {
			return fmt.Errorf("invalid int for import_workers: %v", val)
		}
		c.ImportWorkers = i
	case "outlier_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid float for outlier_threshold: %v", val)
		}
		c.OutlierThreshold = f
	case "light_start", "dark_start":
		if _, err := model.ParseTimeOfDay(val); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if key == "light_start" {
			c.LightStart = val
		} else {
			c.DarkStart = val
		}
	case "default_aggregation":
		a, err := model.ParseAggregation(val)
		if err != nil {
			return err
		}
		c.DefaultAggregation = string(a)
	case "report_dir":
		c.ReportDir = val
	case "plot_width_in", "plot_height_in":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid float for %s: %v", key, val)
		}
		if key == "plot_width_in" {
			c.PlotWidthIn = f
		} else {
			c.PlotHeightIn = f
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get returns the display value of key.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "workspace_path":
		return c.WorkspacePath, nil
	case "log_level":
		return c.LogLevel, nil
	case "delimiter":
		return c.Delimiter, nil
	case "decimal_separator":
		return c.DecimalSeparator, nil
	case "import_workers":
		return strconv.Itoa(c.ImportWorkers), nil
	case "outlier_threshold":
		return strconv.FormatFloat(c.OutlierThreshold, 'g', -1, 64), nil
	case "light_start":
		return c.LightStart, nil
	case "dark_start":
		return c.DarkStart, nil
	case "default_aggregation":
		return c.DefaultAggregation, nil
	case "report_dir":
		return c.ReportDir, nil
	case "plot_width_in":
		return strconv.FormatFloat(c.PlotWidthIn, 'g', -1, 64), nil
	case "plot_height_in":
		return strconv.FormatFloat(c.PlotHeightIn, 'g', -1, 64), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// DelimiterRune returns the configured delimiter, or 0 for auto-detect.
func (c *Global) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

// DecimalRune returns the configured decimal separator, or 0 for auto-detect.
func (c *Global) DecimalRune() rune {
	switch c.DecimalSeparator {
	case ",":
		return ','
	case ".":
		return '.'
	}
	return 0
}

// Cycle returns the configured light/dark boundaries.
func (c *Global) Cycle() (model.CycleSettings, error) {
	light, err := model.ParseTimeOfDay(c.LightStart)
	if err != nil {
		return model.CycleSettings{}, fmt.Errorf("light_start: %w", err)
	}
	dark, err := model.ParseTimeOfDay(c.DarkStart)
	if err != nil {
		return model.CycleSettings{}, fmt.Errorf("dark_start: %w", err)
	}
	return model.CycleSettings{LightStart: light, DarkStart: dark}, nil
}
