// Package config loads engine profiles from YAML. A profile selects the
// chart kinds a front end exposes, the point-chart row cap and the default
// line-chart ordering.
//
// Example (YAML):
//
//	profile: explorer
//	delta_sharing_timeout: 30s
//	profiles:
//	  explorer:
//	    kinds: [histogram, scatter, line, heatmap]
//	    row_cap: 5000
//	    line_sort: asc
//	    preview_rows: 20
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/chart"
)

const (
	// Dashboard is the default profile: every chart kind, rows in source
	// order.
	Dashboard = "dashboard"
	// Explorer exposes histogram, scatter, line and heatmap, with line
	// charts sorted ascending on X.
	Explorer = "explorer"

	// DefaultPreviewRows is the preview size when a profile sets none.
	DefaultPreviewRows = 10
)

// Profile is one front-end variant over the shared engine.
type Profile struct {
	Kinds       []string                `yaml:"kinds"`
	RowCap      int                     `yaml:"row_cap"`
	LineSort    datatable.SortDirection `yaml:"line_sort"`
	PreviewRows int                     `yaml:"preview_rows"`
}

// Config is the whole configuration file.
type Config struct {
	Profile             string             `yaml:"profile"`
	Profiles            map[string]Profile `yaml:"profiles"`
	DeltaSharingTimeout time.Duration      `yaml:"delta_sharing_timeout"`
}

// Default returns the built-in dashboard and explorer profiles.
func Default() Config {
	return Config{
		Profile: Dashboard,
		Profiles: map[string]Profile{
			Dashboard: {
				Kinds:       kindNames(chart.AllKinds),
				RowCap:      chart.DefaultRowCap,
				LineSort:    datatable.SortNone,
				PreviewRows: DefaultPreviewRows,
			},
			Explorer: {
				Kinds:       kindNames([]chart.Kind{chart.Histogram, chart.Scatter, chart.Line, chart.Heatmap}),
				RowCap:      chart.DefaultRowCap,
				LineSort:    datatable.SortAscending,
				PreviewRows: DefaultPreviewRows,
			},
		},
		DeltaSharingTimeout: 60 * time.Second,
	}
}

func kindNames(kinds []chart.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// Load reads a YAML file on top of Default. Profiles in the file replace
// built-in profiles of the same name; zero fields fall back to defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes YAML content on top of Default and validates the result.
func Parse(b []byte) (Config, error) {
	var raw Config
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := Default()
	if s := strings.TrimSpace(raw.Profile); s != "" {
		cfg.Profile = s
	}
	if raw.DeltaSharingTimeout > 0 {
		cfg.DeltaSharingTimeout = raw.DeltaSharingTimeout
	}
	for name, p := range raw.Profiles {
		if len(p.Kinds) == 0 {
			p.Kinds = kindNames(chart.AllKinds)
		}
		if p.RowCap == 0 {
			p.RowCap = chart.DefaultRowCap
		}
		if p.PreviewRows == 0 {
			p.PreviewRows = DefaultPreviewRows
		}
		cfg.Profiles[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds the configuration from the environment:
//
//	EDA_CONFIG   path to a YAML file (optional)
//	EDA_PROFILE  active profile name
//	EDA_ROW_CAP  row cap override for the active profile
func FromEnv() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("EDA_CONFIG")); path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return Config{}, err
		}
	}
	if name := strings.TrimSpace(os.Getenv("EDA_PROFILE")); name != "" {
		cfg.Profile = name
	}
	if v := strings.TrimSpace(os.Getenv("EDA_ROW_CAP")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid EDA_ROW_CAP=%q: %w", v, err)
		}
		if err := cfg.SetRowCap(n); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetRowCap overrides the active profile's row cap.
func (c *Config) SetRowCap(n int) error {
	p, err := c.Active()
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("row cap must be positive, got %d", n)
	}
	p.RowCap = n
	c.Profiles[c.Profile] = p
	return nil
}

// Validate checks that the active profile exists and every profile names
// known chart kinds with a positive row cap.
func (c Config) Validate() error {
	if _, ok := c.Profiles[c.Profile]; !ok {
		return fmt.Errorf("unknown profile %q (have %s)", c.Profile, strings.Join(c.ProfileNames(), ", "))
	}
	for _, name := range c.ProfileNames() {
		p := c.Profiles[name]
		if _, err := p.ChartKinds(); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
		if p.RowCap <= 0 {
			return fmt.Errorf("profile %s: row_cap must be positive, got %d", name, p.RowCap)
		}
		if p.PreviewRows < 0 {
			return fmt.Errorf("profile %s: preview_rows must not be negative", name)
		}
	}
	if c.DeltaSharingTimeout < 0 {
		return fmt.Errorf("delta_sharing_timeout must not be negative")
	}
	return nil
}

// ProfileNames lists profile names in sorted order.
func (c Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Active returns the selected profile.
func (c Config) Active() (Profile, error) {
	p, ok := c.Profiles[c.Profile]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q", c.Profile)
	}
	return p, nil
}

// ChartKinds parses the profile's kind names.
func (p Profile) ChartKinds() ([]chart.Kind, error) {
	kinds := make([]chart.Kind, 0, len(p.Kinds))
	for _, name := range p.Kinds {
		k, err := chart.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// DispatcherOptions turns the profile into chart dispatcher options.
func (p Profile) DispatcherOptions(logger *log.Logger) ([]chart.Option, error) {
	kinds, err := p.ChartKinds()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return []chart.Option{
		chart.WithKinds(kinds...),
		chart.WithRowCap(p.RowCap),
		chart.WithLineSort(p.LineSort),
		chart.WithLogger(logger),
	}, nil
}
