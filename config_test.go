package odfilter

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default configuration must be valid, but got %v", err)
	}
	if cfg.Output.Agents != "agents.csv" || cfg.Output.ODLookup != "od_ingolstadt_custom.txt" {
		t.Errorf("Unexpected default output files: %+v", cfg.Output)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "conf.yaml")
	if err := os.WriteFile(fname, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return fname
}

func TestLoadConfiguration(t *testing.T) {
	fname := writeConfig(t, `
input:
  demand: demand.rou.xml
  network_format: osm
  osm_file: city.osm.pbf
filter:
  max_paths: 3
  timeout: 2s
sampling:
  beta: -2.5
`)
	cfg, err := LoadConfiguration(fname)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Input.Demand != "demand.rou.xml" || cfg.Input.OSMFile != "city.osm.pbf" {
		t.Errorf("Input must be read from file, but got %+v", cfg.Input)
	}
	if cfg.Filter.MaxPaths != 3 || cfg.Filter.Timeout != 2*time.Second {
		t.Errorf("Filter must be read from file, but got %+v", cfg.Filter)
	}
	if cfg.Sampling.Beta != -2.5 || cfg.Sampling.NumSamples != DefaultSamplingParameters().NumSamples {
		t.Errorf("Sampling must be merged with defaults, but got %+v", cfg.Sampling)
	}
	if cfg.Output.Agents != "agents.csv" {
		t.Errorf("Missing fields must keep default values, but got %+v", cfg.Output)
	}
}

func TestLoadConfigurationInvalid(t *testing.T) {
	cases := map[string]string{
		"zero max paths": "filter:\n  max_paths: 0\n",
		"no osm file":    "input:\n  network_format: osm\n",
		"bad format":     "input:\n  network_format: shapefile\n",
		"bad weight":     "sampling:\n  weight: distance\n",
		"broken yaml":    "filter: [",
	}
	for name, content := range cases {
		if _, err := LoadConfiguration(writeConfig(t, content)); err == nil {
			t.Errorf("Configuration '%s' must be rejected", name)
		}
	}
	if _, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Missing file must be rejected")
	}
}
