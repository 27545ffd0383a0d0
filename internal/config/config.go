package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"time"

	"github.com/olivierh59500/particle-life-engine/internal/logging"
	"github.com/olivierh59500/particle-life-engine/internal/physics"
	"gopkg.in/gcfg.v1"
)

// MaxTypes bounds the matrix size accepted from configuration.
const MaxTypes = 256

// Example is a complete config file with the default values.
const Example = `[simulation]
particles = 2000
types = 6
rmax = 0.04
friction = 0.85
force = 1.0
dt = 0.02
# use the measured time between steps instead of dt
auto-dt = true
boundary = wrap
# 0 means one worker per CPU
workers = 0
snapshot-workers = 0
positions = uniform
type-setter = random
matrix = random
# 0 seeds from the clock
seed = 0

[runtime]
log-level = info
stop-timeout-ms = 1000
# headless only: serve snapshot frames on this address
# addr = :8080
# headless only: seconds to run, 0 runs until interrupted
duration = 0
snapshot-every-ms = 33
# steps averaged for the reported step rate
rate-window = 60
width = 800
height = 800
`

// SimulationConfig is the [simulation] section.
type SimulationConfig struct {
	Particles       int     `gcfg:"particles"`
	Types           int     `gcfg:"types"`
	Rmax            float64 `gcfg:"rmax"`
	Friction        float64 `gcfg:"friction"`
	Force           float64 `gcfg:"force"`
	Dt              float64 `gcfg:"dt"`
	AutoDt          bool    `gcfg:"auto-dt"`
	Boundary        string  `gcfg:"boundary"`
	Workers         int     `gcfg:"workers"`
	SnapshotWorkers int     `gcfg:"snapshot-workers"`
	Positions       string  `gcfg:"positions"`
	TypeSetter      string  `gcfg:"type-setter"`
	Matrix          string  `gcfg:"matrix"`
	Seed            int64   `gcfg:"seed"`
}

// RuntimeConfig is the [runtime] section.
type RuntimeConfig struct {
	LogLevel        string `gcfg:"log-level"`
	StopTimeoutMs   int    `gcfg:"stop-timeout-ms"`
	Addr            string `gcfg:"addr"`
	Duration        int    `gcfg:"duration"`
	SnapshotEveryMs int    `gcfg:"snapshot-every-ms"`
	RateWindow      int    `gcfg:"rate-window"`
	Width           int    `gcfg:"width"`
	Height          int    `gcfg:"height"`
}

// Config holds both sections of a config file.
type Config struct {
	Simulation SimulationConfig
	Runtime    RuntimeConfig
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	s := physics.DefaultSettings()
	return Config{
		Simulation: SimulationConfig{
			Particles:  2000,
			Types:      6,
			Rmax:       s.Rmax,
			Friction:   s.Friction,
			Force:      s.Force,
			Dt:         s.Dt,
			AutoDt:     true,
			Boundary:   s.Boundary.String(),
			Positions:  "uniform",
			TypeSetter: "random",
			Matrix:     "random",
		},
		Runtime: RuntimeConfig{
			LogLevel:        "info",
			StopTimeoutMs:   1000,
			SnapshotEveryMs: 33,
			RateWindow:      60,
			Width:           800,
			Height:          800,
		},
	}
}

// ReadFile reads a gcfg file on top of the defaults.
func ReadFile(path string) (Config, error) {
	cfg := Default()
	if err := gcfg.ReadFileInto(&cfg, path); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ReadString parses gcfg text on top of the defaults.
func ReadString(text string) (Config, error) {
	cfg := Default()
	if err := gcfg.ReadStringInto(&cfg, text); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// resolver maps one flag and environment variable onto a config field.
type resolver struct {
	flagName    string
	envVarName  string
	description string
	setter      func(*Config, string) error
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatSetter(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func stringSetter(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

var resolvers = []resolver{
	{"particles", "PLIFE_PARTICLES", "number of particles", intSetter(func(c *Config) *int { return &c.Simulation.Particles })},
	{"types", "PLIFE_TYPES", "number of particle types (matrix size)", intSetter(func(c *Config) *int { return &c.Simulation.Types })},
	{"rmax", "PLIFE_RMAX", "interaction radius", floatSetter(func(c *Config) *float64 { return &c.Simulation.Rmax })},
	{"friction", "PLIFE_FRICTION", "velocity kept per 60 Hz frame, in [0, 1]", floatSetter(func(c *Config) *float64 { return &c.Simulation.Friction })},
	{"force", "PLIFE_FORCE", "force scale", floatSetter(func(c *Config) *float64 { return &c.Simulation.Force })},
	{"dt", "PLIFE_DT", "fixed time step in seconds", floatSetter(func(c *Config) *float64 { return &c.Simulation.Dt })},
	{"auto-dt", "PLIFE_AUTO_DT", "use measured time between steps (true/false)", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Simulation.AutoDt = b
		return nil
	}},
	{"boundary", "PLIFE_BOUNDARY", "wrap or clamp", stringSetter(func(c *Config) *string { return &c.Simulation.Boundary })},
	{"workers", "PLIFE_WORKERS", "physics workers, 0 for one per CPU", intSetter(func(c *Config) *int { return &c.Simulation.Workers })},
	{"snapshot-workers", "PLIFE_SNAPSHOT_WORKERS", "snapshot copy workers, 0 for one per CPU", intSetter(func(c *Config) *int { return &c.Simulation.SnapshotWorkers })},
	{"positions", "PLIFE_POSITIONS", "position setter", stringSetter(func(c *Config) *string { return &c.Simulation.Positions })},
	{"type-setter", "PLIFE_TYPE_SETTER", "type setter", stringSetter(func(c *Config) *string { return &c.Simulation.TypeSetter })},
	{"matrix", "PLIFE_MATRIX", "matrix generator", stringSetter(func(c *Config) *string { return &c.Simulation.Matrix })},
	{"seed", "PLIFE_SEED", "random seed, 0 seeds from the clock", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Simulation.Seed = n
		return nil
	}},
	{"log-level", "PLIFE_LOG_LEVEL", "debug, info, warn or error", stringSetter(func(c *Config) *string { return &c.Runtime.LogLevel })},
	{"stop-timeout-ms", "PLIFE_STOP_TIMEOUT_MS", "graceful stop timeout in milliseconds", intSetter(func(c *Config) *int { return &c.Runtime.StopTimeoutMs })},
	{"addr", "PLIFE_ADDR", "listen address for the snapshot stream (headless)", stringSetter(func(c *Config) *string { return &c.Runtime.Addr })},
	{"duration", "PLIFE_DURATION", "seconds to run, 0 until interrupted (headless)", intSetter(func(c *Config) *int { return &c.Runtime.Duration })},
	{"snapshot-every-ms", "PLIFE_SNAPSHOT_EVERY_MS", "snapshot interval in milliseconds (headless)", intSetter(func(c *Config) *int { return &c.Runtime.SnapshotEveryMs })},
	{"rate-window", "PLIFE_RATE_WINDOW", "steps averaged for the reported step rate", intSetter(func(c *Config) *int { return &c.Runtime.RateWindow })},
	{"width", "PLIFE_WIDTH", "window width in pixels (viewer)", intSetter(func(c *Config) *int { return &c.Runtime.Width })},
	{"height", "PLIFE_HEIGHT", "window height in pixels (viewer)", intSetter(func(c *Config) *int { return &c.Runtime.Height })},
}

// Load resolves the configuration for a binary: defaults, then the config
// file named by -config or PLIFE_CONFIG, then environment variables, then
// flags. The result is validated.
func Load(name string, args []string, getenv func(string) string, output io.Writer) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	configPath := fs.String("config", "", "path to a gcfg config file (env PLIFE_CONFIG)")
	flagVars := make(map[string]*string, len(resolvers))
	for _, r := range resolvers {
		flagVars[r.flagName] = fs.String(r.flagName, "", fmt.Sprintf("%s (env %s)", r.description, r.envVarName))
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	path := *configPath
	if path == "" {
		path = getenv("PLIFE_CONFIG")
	}
	if path != "" {
		var err error
		if cfg, err = ReadFile(path); err != nil {
			return Config{}, err
		}
	}

	for _, r := range resolvers {
		value := *flagVars[r.flagName]
		if value == "" {
			value = getenv(r.envVarName)
		}
		if value == "" {
			continue
		}
		if err := r.setter(&cfg, value); err != nil {
			return Config{}, fmt.Errorf("invalid value %q for %s: %w", value, r.flagName, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field. Physics settings errors wrap
// physics.ErrInvalidSettings.
func (c Config) Validate() error {
	s := c.Simulation
	if _, err := c.Simulation.Settings(); err != nil {
		return err
	}
	var errs []error
	if s.Particles < 0 {
		errs = append(errs, fmt.Errorf("particles must not be negative, got %d", s.Particles))
	}
	if s.Types < 1 || s.Types > MaxTypes {
		errs = append(errs, fmt.Errorf("types must be in [1, %d], got %d", MaxTypes, s.Types))
	}
	if s.Workers < 0 || s.SnapshotWorkers < 0 {
		errs = append(errs, fmt.Errorf("worker counts must not be negative"))
	}
	if _, err := physics.Lookup(physics.PositionSetters, s.Positions); err != nil {
		errs = append(errs, fmt.Errorf("positions: %w", err))
	}
	if _, err := physics.Lookup(physics.TypeSetters, s.TypeSetter); err != nil {
		errs = append(errs, fmt.Errorf("type-setter: %w", err))
	}
	if _, err := physics.Lookup(physics.MatrixGenerators, s.Matrix); err != nil {
		errs = append(errs, fmt.Errorf("matrix: %w", err))
	}
	r := c.Runtime
	if r.StopTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("stop-timeout-ms must not be negative, got %d", r.StopTimeoutMs))
	}
	if r.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %d", r.Duration))
	}
	if r.SnapshotEveryMs < 1 {
		errs = append(errs, fmt.Errorf("snapshot-every-ms must be positive, got %d", r.SnapshotEveryMs))
	}
	if r.RateWindow < 1 {
		errs = append(errs, fmt.Errorf("rate-window must be positive, got %d", r.RateWindow))
	}
	if r.Width < 1 || r.Height < 1 {
		errs = append(errs, fmt.Errorf("width and height must be positive"))
	}
	return errors.Join(errs...)
}

// Settings converts the section into physics settings without a matrix.
func (s SimulationConfig) Settings() (physics.Settings, error) {
	b, err := physics.ParseBoundary(s.Boundary)
	if err != nil {
		return physics.Settings{}, err
	}
	settings := physics.Settings{
		Rmax:     s.Rmax,
		Friction: s.Friction,
		Force:    s.Force,
		Dt:       s.Dt,
		Boundary: b,
	}
	// the matrix is generated by the engine
	probe := settings
	probe.Matrix = physics.NewMatrix(1)
	if err := probe.Validate(); err != nil {
		return physics.Settings{}, err
	}
	return settings, nil
}

// SeedValue returns the configured seed, or a clock-based one for 0.
func (s SimulationConfig) SeedValue() int64 {
	if s.Seed != 0 {
		return s.Seed
	}
	return time.Now().UnixNano()
}

// WorkerCount returns n, or the number of CPUs for 0.
func WorkerCount(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// PhysicsOptions builds the engine options for this section.
func (s SimulationConfig) PhysicsOptions(logger logging.Logger) ([]physics.Option, error) {
	settings, err := s.Settings()
	if err != nil {
		return nil, err
	}
	positions, err := physics.Lookup(physics.PositionSetters, s.Positions)
	if err != nil {
		return nil, err
	}
	types, err := physics.Lookup(physics.TypeSetters, s.TypeSetter)
	if err != nil {
		return nil, err
	}
	matrices, err := physics.Lookup(physics.MatrixGenerators, s.Matrix)
	if err != nil {
		return nil, err
	}
	seed := s.SeedValue()
	return []physics.Option{
		physics.WithSettings(settings),
		physics.WithSeed(seed),
		physics.WithPositionSetter(positions(seed)),
		physics.WithTypeSetter(types(seed + 1)),
		physics.WithMatrixGenerator(matrices(seed + 2)),
		physics.WithParticleCount(s.Particles),
		physics.WithMatrixSize(s.Types),
		physics.WithWorkers(WorkerCount(s.Workers)),
		physics.WithLogger(logger),
	}, nil
}

// StopTimeout returns the graceful stop timeout.
func (r RuntimeConfig) StopTimeout() time.Duration {
	return time.Duration(r.StopTimeoutMs) * time.Millisecond
}

// SnapshotInterval returns the headless snapshot period.
func (r RuntimeConfig) SnapshotInterval() time.Duration {
	return time.Duration(r.SnapshotEveryMs) * time.Millisecond
}

// RunDuration returns how long the headless runner should run; zero means
// until interrupted.
func (r RuntimeConfig) RunDuration() time.Duration {
	return time.Duration(r.Duration) * time.Second
}
