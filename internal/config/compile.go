package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

// CompileSettings is the compile settings file: what to read and how to
// reconcile it.
type CompileSettings struct {
	Periods       PeriodRange          `yaml:"periods"`
	Cases         CaseFiles            `yaml:"cases"`
	Detector      domain.Detector      `yaml:"detector"`
	Threshold     float64              `yaml:"threshold"`
	StationLayout domain.StationLayout `yaml:"station_layout"`
	Regions       domain.RegionMap     `yaml:"regions"`
	Climate       ClimateFiles         `yaml:"climate"`
}

// PeriodRange is an inclusive range of periods.
type PeriodRange struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Periods lists the range in ascending order.
func (r PeriodRange) Periods() []int {
	if r.To < r.From {
		return nil
	}
	out := make([]int, 0, r.To-r.From+1)
	for p := r.From; p <= r.To; p++ {
		out = append(out, p)
	}
	return out
}

// CaseFiles describes how per-period case files are named and read.
type CaseFiles struct {
	Prefix       string           `yaml:"prefix"`
	Suffix       string           `yaml:"suffix"`
	Variants     map[int][]string `yaml:"variants"`
	EntityColumn string           `yaml:"entity_column"`
	PeriodColumn string           `yaml:"period_column"`
	Delimiter    string           `yaml:"delimiter"`
}

// Comma returns the delimiter rune, defaulting to ','.
func (c CaseFiles) Comma() rune {
	if c.Delimiter == "" {
		return ','
	}
	return []rune(c.Delimiter)[0]
}

// ClimateFiles lists per-station climate tables. Files may be empty, which
// disables the climate join.
type ClimateFiles struct {
	Variable      string   `yaml:"variable"`
	Files         []string `yaml:"files"`
	StationColumn string   `yaml:"station_column"`
	PeriodColumn  string   `yaml:"period_column"`
	ValueColumn   string   `yaml:"value_column"`
}

// DefaultCompileSettings returns the reference coccidioidomycosis layout.
func DefaultCompileSettings() CompileSettings {
	return CompileSettings{
		Periods: PeriodRange{From: 2014, To: 2022},
		Cases: CaseFiles{
			Prefix:       "coccidioidomycosis_cases_",
			Suffix:       ".csv",
			Variants:     map[int][]string{2020: {"_a", "_b"}},
			EntityColumn: "State",
			PeriodColumn: "Year",
		},
		Detector:      domain.Detector{Marker: domain.DefaultCumulativeMarker},
		Threshold:     domain.DefaultReconcileThreshold,
		StationLayout: domain.DefaultStationLayout(),
		Regions:       domain.RegionMap{},
		Climate: ClimateFiles{
			Variable:      "climate",
			StationColumn: "STATION",
			PeriodColumn:  "YEAR",
		},
	}
}

// LoadCompileSettings reads path and fills unset fields from
// DefaultCompileSettings. When optional is true a missing file yields the
// defaults.
func LoadCompileSettings(path string, optional bool) (CompileSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return DefaultCompileSettings(), nil
		}
		return CompileSettings{}, fmt.Errorf("read CONFIG_FILE %s: %w", path, err)
	}

	var s CompileSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return CompileSettings{}, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
	}
	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return CompileSettings{}, fmt.Errorf("CONFIG_FILE %s: %w", path, err)
	}
	return s, nil
}

func (s *CompileSettings) applyDefaults() {
	d := DefaultCompileSettings()
	if s.Periods == (PeriodRange{}) {
		s.Periods = d.Periods
	}
	if s.Cases.Prefix == "" {
		s.Cases.Prefix = d.Cases.Prefix
	}
	if s.Cases.Suffix == "" {
		s.Cases.Suffix = d.Cases.Suffix
	}
	if s.Cases.Variants == nil {
		s.Cases.Variants = d.Cases.Variants
	}
	if s.Cases.EntityColumn == "" {
		s.Cases.EntityColumn = d.Cases.EntityColumn
	}
	if s.Cases.PeriodColumn == "" {
		s.Cases.PeriodColumn = d.Cases.PeriodColumn
	}
	if s.Detector.Marker == "" {
		s.Detector.Marker = d.Detector.Marker
	}
	if s.Threshold == 0 {
		s.Threshold = d.Threshold
	}
	if len(s.StationLayout) == 0 {
		s.StationLayout = d.StationLayout
	}
	if s.Regions == nil {
		s.Regions = d.Regions
	}
	if s.Climate.Variable == "" {
		s.Climate.Variable = d.Climate.Variable
	}
	if s.Climate.StationColumn == "" {
		s.Climate.StationColumn = d.Climate.StationColumn
	}
	if s.Climate.PeriodColumn == "" {
		s.Climate.PeriodColumn = d.Climate.PeriodColumn
	}
}

// Validate reports the first inconsistent setting.
func (s CompileSettings) Validate() error {
	if s.Periods.To < s.Periods.From {
		return fmt.Errorf("periods: to %d is before from %d", s.Periods.To, s.Periods.From)
	}
	if s.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative, got %v", s.Threshold)
	}
	if strings.TrimSpace(s.Cases.EntityColumn) == "" || strings.TrimSpace(s.Cases.PeriodColumn) == "" {
		return errors.New("cases: entity_column and period_column are required")
	}
	if n := len([]rune(s.Cases.Delimiter)); n > 1 {
		return fmt.Errorf("cases: delimiter must be a single character, got %q", s.Cases.Delimiter)
	}
	if err := s.StationLayout.Validate(); err != nil {
		return err
	}
	for region, members := range s.Regions {
		if len(members) == 0 {
			return fmt.Errorf("regions: %q has no members", region)
		}
	}
	if len(s.Climate.Files) > 0 && strings.TrimSpace(s.Climate.ValueColumn) == "" {
		return errors.New("climate: value_column is required when files are listed")
	}
	return nil
}

// ClimatePaths resolves the climate file names against dataDir.
func (s CompileSettings) ClimatePaths(dataDir string) []string {
	out := make([]string, len(s.Climate.Files))
	for i, f := range s.Climate.Files {
		out[i] = resolve(dataDir, f)
	}
	return out
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
