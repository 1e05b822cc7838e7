// Package config loads the system-level configuration and sets up the run
// directory layout used during run-sheet resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/me/runsheet/internal/flowcell"
)

// SystemFileName is the conventional system configuration file name.
const SystemFileName = "runsheet_system.yaml"

// SystemConfig holds system-wide settings merged into every sample record.
type SystemConfig struct {
	// Resources holds default per-tool resource overrides.
	Resources map[string]map[string]any `yaml:"resources"`
	// Algorithm holds system-level algorithm defaults applied beneath
	// per-sample values.
	Algorithm map[string]any `yaml:"algorithm"`
	// GalaxyConfig locates the tool-data configuration used to find the
	// installed reference-data tree.
	GalaxyConfig string `yaml:"galaxy_config"`
	// Integrations holds provider sections (for example "arvados") keyed
	// by provider name.
	Integrations map[string]map[string]any `yaml:"integrations"`
	// LogLevel and LogFormat configure engine logging.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns a SystemConfig with empty tables and info-level text
// logging.
func Default() *SystemConfig {
	return &SystemConfig{
		Resources: map[string]map[string]any{},
		Algorithm: map[string]any{},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the system configuration. When path is empty, SystemFileName
// is searched in workDir and then in the run sheet's directory; a missing
// file yields defaults. The second return value is the resolved config
// file path ("" when defaults are used).
func Load(path, workDir, runSheetDir string) (*SystemConfig, string, error) {
	if path == "" {
		for _, dir := range []string{workDir, runSheetDir} {
			if dir == "" {
				continue
			}
			cand := filepath.Join(dir, SystemFileName)
			if _, err := os.Stat(cand); err == nil {
				path = cand
				break
			}
		}
	}
	if path == "" {
		return Default(), "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read system config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("parse system config %s: %w", path, err)
	}
	if cfg.Resources == nil {
		cfg.Resources = map[string]map[string]any{}
	}
	if cfg.Algorithm == nil {
		cfg.Algorithm = map[string]any{}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return cfg, abs, nil
}

// Directories is the run directory layout handed to resolution.
type Directories struct {
	Work     string
	Flowcell string
	Fastq    string
	Galaxy   string
	Config   string
}

// Map renders the layout as the string map attached to organized records.
func (d Directories) Map() map[string]string {
	return map[string]string{
		"work":     d.Work,
		"flowcell": d.Flowcell,
		"fastq":    d.Fastq,
		"galaxy":   d.Galaxy,
		"config":   d.Config,
	}
}

// SetupDirectories resolves the directory layout for a run. fcDir may be
// empty when there is no flowcell context. The galaxy directory defaults to
// the config file's directory unless galaxy_config points elsewhere.
func SetupDirectories(workDir, fcDir string, cfg *SystemConfig, configFile string) Directories {
	configDir := workDir
	if configFile != "" {
		configDir = filepath.Dir(configFile)
	}
	configDir = absOr(configDir, workDir)

	galaxyDir := configDir
	if cfg != nil && cfg.GalaxyConfig != "" {
		gc := cfg.GalaxyConfig
		if !filepath.IsAbs(gc) {
			gc = filepath.Join(configDir, gc)
		}
		galaxyDir = filepath.Dir(gc)
	}

	var fastqDir string
	if fcDir != "" {
		fcDir = absOr(fcDir, workDir)
		fastqDir = flowcell.FastqDir(fcDir)
	}
	return Directories{
		Work:     absOr(workDir, workDir),
		Flowcell: fcDir,
		Fastq:    fastqDir,
		Galaxy:   galaxyDir,
		Config:   configDir,
	}
}

func absOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
