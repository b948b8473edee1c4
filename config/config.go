// Package config holds the YAML run configuration shared by the command-line
// drivers: which glacier to model, how fine a mesh to build, the physics
// parameters, and the solver and estimation settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is a complete run configuration.
type Config struct {
	// Mesh selects the domain and its discretization.
	Mesh MeshConfig `yaml:"mesh"`

	// Physics sets the material parameters of the ice.
	Physics PhysicsConfig `yaml:"physics"`

	// Solver tunes the diagnostic momentum solver.
	Solver SolverConfig `yaml:"solver"`

	// Prognostic configures time stepping for coupled runs.
	Prognostic PrognosticConfig `yaml:"prognostic"`

	// Input names the gridded observation files.
	Input InputConfig `yaml:"input"`

	// Estimation configures the statistical parameter estimation.
	Estimation EstimationConfig `yaml:"estimation"`

	// Output is where results land.
	Output OutputConfig `yaml:"output"`
}

// MeshConfig selects the glacier outline and mesh resolution.
type MeshConfig struct {
	// Glacier is a name from the outline registry (e.g. "larsen-2018").
	// Mutually exclusive with OutlineFile.
	Glacier string `yaml:"glacier"`

	// OutlineFile is a local GeoJSON outline.
	OutlineFile string `yaml:"outline_file"`

	// Resolution is the target edge length in meters.
	Resolution float64 `yaml:"resolution"`

	// DirichletLabels are the boundary segments where velocity is imposed.
	DirichletLabels []int `yaml:"dirichlet_labels"`
}

// PhysicsConfig sets ice material parameters.
type PhysicsConfig struct {
	// Temperature of the ice in Kelvin, used for the Glen flow law rate
	// factor when no fluidity field is supplied.
	Temperature float64 `yaml:"temperature"`

	// Friction is the Weertman friction coefficient for grounded ice; zero
	// selects the floating-shelf model.
	Friction float64 `yaml:"friction"`

	// Accumulation is the surface mass balance in meters per year.
	Accumulation float64 `yaml:"accumulation"`
}

// SolverConfig tunes the Picard iteration and the inner linear solver.
type SolverConfig struct {
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"max_iterations"`
	LinearTol     float64 `yaml:"linear_tolerance"`
	LinearMaxIter int     `yaml:"linear_max_iterations"`
}

// PrognosticConfig configures coupled diagnostic/prognostic time stepping.
type PrognosticConfig struct {
	Dt        float64 `yaml:"dt"`         // years
	FinalTime float64 `yaml:"final_time"` // years
}

// InputConfig names the NetCDF rasters holding the observations. Variable
// names default to the ones the preprocessing scripts emit.
type InputConfig struct {
	// ThicknessFile holds the ice thickness raster.
	ThicknessFile string `yaml:"thickness_file"`
	ThicknessVar  string `yaml:"thickness_var"`

	// VelocityFile holds the observed velocity components.
	VelocityFile string `yaml:"velocity_file"`
	VelocityXVar string `yaml:"velocity_x_var"`
	VelocityYVar string `yaml:"velocity_y_var"`
}

// EstimationConfig configures the inverse solver.
type EstimationConfig struct {
	MaxIterations     int     `yaml:"max_iterations"`
	GradientTolerance float64 `yaml:"gradient_tolerance"`

	// Sigma is the observation uncertainty in m/yr applied uniformly when
	// the velocity product carries no per-pixel errors.
	Sigma float64 `yaml:"sigma"`

	// RegularizationLength and RegularizationAmplitude set the smoothness
	// penalty on the control field.
	RegularizationLength    float64 `yaml:"regularization_length"`
	RegularizationAmplitude float64 `yaml:"regularization_amplitude"`
}

// OutputConfig is where results are written.
type OutputConfig struct {
	// Checkpoint is the NetCDF file receiving the final state.
	Checkpoint string `yaml:"checkpoint"`
}

// Default returns a configuration with sensible defaults for an Antarctic
// ice shelf run; callers override what they need.
func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			Resolution:      5000,
			DirichletLabels: []int{1},
		},
		Physics: PhysicsConfig{
			Temperature: 254.15,
		},
		Solver: SolverConfig{
			Tolerance:     1e-6,
			MaxIterations: 50,
			LinearTol:     1e-10,
			LinearMaxIter: 10000,
		},
		Prognostic: PrognosticConfig{
			Dt:        1.0 / 12,
			FinalTime: 10,
		},
		Input: InputConfig{
			ThicknessVar: "thickness",
			VelocityXVar: "vx",
			VelocityYVar: "vy",
		},
		Estimation: EstimationConfig{
			MaxIterations:           50,
			GradientTolerance:       1e-4,
			Sigma:                   10,
			RegularizationLength:    5000,
			RegularizationAmplitude: 1,
		},
		Output: OutputConfig{
			Checkpoint: "cryoflow.nc",
		},
	}
}

// Load reads a YAML configuration file over the defaults and validates it.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Mesh.Glacier != "" && c.Mesh.OutlineFile != "" {
		return fmt.Errorf("mesh: glacier and outline_file are mutually exclusive")
	}
	if c.Mesh.Resolution <= 0 {
		return fmt.Errorf("mesh: resolution must be positive, got %g", c.Mesh.Resolution)
	}
	if c.Physics.Temperature <= 0 || c.Physics.Temperature > 273.15 {
		return fmt.Errorf("physics: temperature %g K is not a valid ice temperature",
			c.Physics.Temperature)
	}
	if c.Physics.Friction < 0 {
		return fmt.Errorf("physics: friction must be non-negative, got %g", c.Physics.Friction)
	}
	if c.Solver.Tolerance <= 0 || c.Solver.MaxIterations <= 0 {
		return fmt.Errorf("solver: tolerance and max_iterations must be positive")
	}
	if c.Prognostic.Dt <= 0 || c.Prognostic.FinalTime <= 0 {
		return fmt.Errorf("prognostic: dt and final_time must be positive")
	}
	if c.Estimation.MaxIterations <= 0 {
		return fmt.Errorf("estimation: max_iterations must be positive")
	}
	if c.Estimation.Sigma <= 0 {
		return fmt.Errorf("estimation: sigma must be positive, got %g", c.Estimation.Sigma)
	}
	if c.Estimation.RegularizationLength < 0 {
		return fmt.Errorf("estimation: regularization_length must be non-negative")
	}
	return nil
}
