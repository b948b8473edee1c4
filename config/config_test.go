package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
mesh:
  glacier: larsen-2018
  resolution: 2500
  dirichlet_labels: [2, 4]
physics:
  temperature: 260.15
estimation:
  max_iterations: 25
`))
	require.NoError(t, err)

	require.Equal(t, "larsen-2018", cfg.Mesh.Glacier)
	require.Equal(t, 2500.0, cfg.Mesh.Resolution)
	require.Equal(t, []int{2, 4}, cfg.Mesh.DirichletLabels)
	require.Equal(t, 260.15, cfg.Physics.Temperature)
	require.Equal(t, 25, cfg.Estimation.MaxIterations)

	// Untouched sections keep their defaults.
	require.Equal(t, Default().Solver, cfg.Solver)
	require.Equal(t, Default().Output, cfg.Output)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("mesh: [not a mapping"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"glacier and outline file", func(c *Config) {
			c.Mesh.Glacier = "ross"
			c.Mesh.OutlineFile = "ross.geojson"
		}},
		{"zero resolution", func(c *Config) { c.Mesh.Resolution = 0 }},
		{"warm temperature", func(c *Config) { c.Physics.Temperature = 300 }},
		{"negative friction", func(c *Config) { c.Physics.Friction = -1 }},
		{"zero solver tolerance", func(c *Config) { c.Solver.Tolerance = 0 }},
		{"negative time step", func(c *Config) { c.Prognostic.Dt = -1 }},
		{"zero estimation iterations", func(c *Config) { c.Estimation.MaxIterations = 0 }},
		{"zero observation sigma", func(c *Config) { c.Estimation.Sigma = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mesh:\n  resolution: 1000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1000.0, cfg.Mesh.Resolution)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
