package physics

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/olivierh59500/particle-life-engine/internal/distributor"
	"github.com/olivierh59500/particle-life-engine/internal/logging"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultMatrixSize    = 7
	DefaultParticleCount = 1000
)

// Physics owns the particles and settings of one simulation. It is not safe
// for concurrent use: every method must run on the goroutine that calls
// Update, which in practice means inside loop tasks.
type Physics struct {
	Settings  Settings
	Particles []Particle

	Accelerator     Accelerator
	PositionSetter  PositionSetter
	TypeSetter      TypeSetter
	MatrixGenerator MatrixGenerator

	rng         *rand.Rand
	distributor *distributor.Distributor
	log         logging.Logger
}

type options struct {
	positions     PositionSetter
	types         TypeSetter
	matrices      MatrixGenerator
	settings      Settings
	seed          int64
	particleCount int
	matrixSize    int
	workers       int
	logger        logging.Logger
}

// Option configures New.
type Option func(*options)

func WithPositionSetter(s PositionSetter) Option   { return func(o *options) { o.positions = s } }
func WithTypeSetter(s TypeSetter) Option           { return func(o *options) { o.types = s } }
func WithMatrixGenerator(g MatrixGenerator) Option { return func(o *options) { o.matrices = g } }
func WithSeed(seed int64) Option                   { return func(o *options) { o.seed = seed } }
func WithParticleCount(n int) Option               { return func(o *options) { o.particleCount = n } }
func WithMatrixSize(n int) Option                  { return func(o *options) { o.matrixSize = n } }
func WithWorkers(n int) Option                     { return func(o *options) { o.workers = n } }
func WithLogger(l logging.Logger) Option           { return func(o *options) { o.logger = l } }

// WithSettings replaces the default settings. The matrix field is ignored;
// the matrix always comes from the generator.
func WithSettings(s Settings) Option { return func(o *options) { o.settings = s } }

// New creates an engine, generates its matrix and particles and starts its
// worker pool.
func New(accel Accelerator, opts ...Option) (*Physics, error) {
	o := options{
		settings:      DefaultSettings(),
		seed:          time.Now().UnixNano(),
		particleCount: DefaultParticleCount,
		matrixSize:    DefaultMatrixSize,
		workers:       runtime.NumCPU(),
		logger:        logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if accel == nil {
		return nil, fmt.Errorf("physics: accelerator is required")
	}
	if o.particleCount < 0 {
		return nil, fmt.Errorf("physics: particle count must not be negative, got %d", o.particleCount)
	}
	if o.matrixSize < 1 {
		return nil, fmt.Errorf("physics: matrix size must be positive, got %d", o.matrixSize)
	}
	if o.positions == nil {
		o.positions = UniformPositions(o.seed)
	}
	if o.types == nil {
		o.types = RandomTypes(o.seed + 1)
	}
	if o.matrices == nil {
		o.matrices = RandomMatrix(o.seed + 2)
	}

	p := &Physics{
		Settings:        o.settings,
		Accelerator:     accel,
		PositionSetter:  o.positions,
		TypeSetter:      o.types,
		MatrixGenerator: o.matrices,
		rng:             rand.New(rand.NewSource(o.seed)),
		log:             o.logger,
	}
	p.Settings.Matrix = p.MatrixGenerator(o.matrixSize)
	if p.Settings.Matrix == nil || p.Settings.Matrix.Size() != o.matrixSize {
		return nil, fmt.Errorf("physics: matrix generator did not return a %dx%d matrix", o.matrixSize, o.matrixSize)
	}
	if err := p.Settings.Validate(); err != nil {
		return nil, err
	}

	p.distributor = distributor.New(o.workers)
	p.SetParticleCount(o.particleCount)
	p.log.Debugf("physics: %d particles, %d types, %d workers", len(p.Particles), o.matrixSize, o.workers)
	return p, nil
}

// Update advances every particle by one time step.
func (p *Physics) Update() error {
	s := p.Settings
	n := len(p.Particles)
	if n == 0 {
		return nil
	}

	if err := p.distributor.Distribute(n, func(c distributor.Chunk) {
		for i := c.Start; i < c.End; i++ {
			p.updateVelocity(i, &s)
		}
	}); err != nil {
		return fmt.Errorf("physics: velocity pass: %w", err)
	}

	if err := p.distributor.Distribute(n, func(c distributor.Chunk) {
		for i := c.Start; i < c.End; i++ {
			p.updatePosition(i, &s)
		}
	}); err != nil {
		return fmt.Errorf("physics: position pass: %w", err)
	}
	return nil
}

// MaxAutoDt caps the measured time step used by Advance.
const MaxAutoDt = 1.0 / 20

// Advance runs Update. With auto set, the measured time since the last
// step becomes the time step first, capped at MaxAutoDt.
func (p *Physics) Advance(measured float64, auto bool) error {
	if auto && measured > 0 {
		p.Settings.Dt = math.Min(measured, MaxAutoDt)
	}
	return p.Update()
}

func (p *Physics) updateVelocity(i int, s *Settings) {
	pi := &p.Particles[i]

	// friction is given per 60 Hz frame
	v := r3.Scale(math.Pow(s.Friction, 60*s.Dt), pi.Velocity)

	rmax2 := s.Rmax * s.Rmax
	scale := s.Rmax * s.Force * s.Dt
	for j := range p.Particles {
		if j == i {
			continue
		}
		q := &p.Particles[j]

		d := r3.Sub(q.Position, pi.Position)
		if s.Boundary == Wrap {
			d = wrapConnection(d)
		}
		d2 := r3.Norm2(d)
		if d2 == 0 || d2 > rmax2 {
			continue
		}
		a := p.Accelerator(s.Matrix.Get(pi.Type, q.Type), r3.Scale(1/s.Rmax, d))
		v = r3.Add(v, r3.Scale(scale, a))
	}
	pi.Velocity = v
}

func (p *Physics) updatePosition(i int, s *Settings) {
	pi := &p.Particles[i]
	pi.Position = ensure(r3.Add(pi.Position, r3.Scale(s.Dt, pi.Velocity)), s.Boundary)
}

func ensure(pos r3.Vec, b Boundary) r3.Vec {
	if b == Wrap {
		return wrap(pos)
	}
	return clamp(pos)
}

// EnsurePosition wraps or clamps pos according to the current boundary.
func (p *Physics) EnsurePosition(pos r3.Vec) r3.Vec {
	return ensure(pos, p.Settings.Boundary)
}

// ParticleCount returns the number of particles.
func (p *Physics) ParticleCount() int {
	return len(p.Particles)
}

// MatrixSize returns the number of types.
func (p *Physics) MatrixSize() int {
	return p.Settings.Matrix.Size()
}

// PreferredWorkers is the worker count the next Update will use.
func (p *Physics) PreferredWorkers() int {
	return p.distributor.PreferredWorkers()
}

// SetPreferredWorkers changes the worker count from the next Update on.
func (p *Physics) SetPreferredWorkers(n int) {
	p.distributor.SetPreferredWorkers(n)
}

// Kill stops the engine's workers and waits for them to exit. Any Update
// in flight returns an error.
func (p *Physics) Kill() {
	p.distributor.Kill()
	p.distributor.Wait()
}

// ApplySettings validates s and replaces the current settings with a deep
// copy. A nil matrix keeps the current one; a matrix of another size goes
// through SetMatrix so particle types stay in range.
func (p *Physics) ApplySettings(s Settings) error {
	if s.Matrix == nil {
		s.Matrix = p.Settings.Matrix
	}
	if err := s.Validate(); err != nil {
		return err
	}
	m := s.Matrix
	s.Matrix = p.Settings.Matrix
	p.Settings = s
	p.SetMatrix(m)
	return nil
}

// SetMatrix installs a copy of m, resizing and re-typing first if needed.
func (p *Physics) SetMatrix(m *Matrix) {
	p.SetMatrixSize(m.Size())
	p.Settings.Matrix = m.Clone()
}

// GenerateMatrix replaces the matrix with a fresh one of the same size.
func (p *Physics) GenerateMatrix() {
	size := p.MatrixSize()
	p.Settings.Matrix = p.newMatrix(size)
}

func (p *Physics) newMatrix(size int) *Matrix {
	m := p.MatrixGenerator(size)
	if m == nil || m.Size() != size {
		panic(fmt.Sprintf("physics: matrix generator returned wrong size for %d", size))
	}
	return m
}

// SetMatrixSize regenerates the matrix at the new size, keeping the
// coefficients both sizes share, and re-types particles whose type no
// longer exists.
func (p *Physics) SetMatrixSize(size int) {
	prev := p.Settings.Matrix
	if size == prev.Size() {
		return
	}
	m := p.newMatrix(size)
	keep := min(size, prev.Size())
	for i := 0; i < keep; i++ {
		for j := 0; j < keep; j++ {
			m.Set(i, j, prev.Get(i, j))
		}
	}
	p.Settings.Matrix = m

	if size < prev.Size() {
		for i := range p.Particles {
			if p.Particles[i].Type >= size {
				p.setType(&p.Particles[i])
			}
		}
	}
}

// SetParticleCount grows the population with generated particles or
// shrinks it by dropping random particles. Growing leaves existing
// particles untouched; shrinking shuffles the order first.
func (p *Physics) SetParticleCount(n int) {
	if n < 0 {
		n = 0
	}
	prev := len(p.Particles)
	switch {
	case n < prev:
		p.shuffle()
		p.Particles = p.Particles[:n:n]
	case n > prev:
		particles := make([]Particle, n)
		copy(particles, p.Particles)
		for i := prev; i < n; i++ {
			particles[i] = p.generateParticle()
		}
		p.Particles = particles
	}
}

func (p *Physics) shuffle() {
	p.rng.Shuffle(len(p.Particles), func(i, j int) {
		p.Particles[i], p.Particles[j] = p.Particles[j], p.Particles[i]
	})
}

// generateParticle sets the type first so position setters can depend on it.
func (p *Physics) generateParticle() Particle {
	var q Particle
	p.setType(&q)
	p.setPosition(&q)
	return q
}

func (p *Physics) setPosition(q *Particle) {
	q.Position = p.EnsurePosition(p.PositionSetter(q.Type, p.MatrixSize()))
	q.Velocity = r3.Vec{}
}

func (p *Physics) setType(q *Particle) {
	size := p.MatrixSize()
	t := p.TypeSetter(q.Position, q.Velocity, q.Type, size)
	if t < 0 || t >= size {
		panic(fmt.Sprintf("physics: type setter returned %d for %d types", t, size))
	}
	q.Type = t
}

// SetPositions re-seeds every particle's position and zeroes its velocity.
func (p *Physics) SetPositions() {
	for i := range p.Particles {
		p.setPosition(&p.Particles[i])
	}
}

// SetTypes re-seeds every particle's type.
func (p *Physics) SetTypes() {
	for i := range p.Particles {
		p.setType(&p.Particles[i])
	}
}

// TypeCounts returns how many particles have each type.
func (p *Physics) TypeCounts() []int {
	counts := make([]int, p.MatrixSize())
	for i := range p.Particles {
		counts[p.Particles[i].Type]++
	}
	return counts
}

// SetTypeCount makes the population have exactly counts[t] particles of
// type t. The matrix is resized to len(counts) first. Surplus particles of
// a type are removed at random; missing ones are generated with that type.
func (p *Physics) SetTypeCount(counts []int) {
	if len(counts) == 0 {
		return
	}
	p.SetMatrixSize(len(counts))

	byType := make([][]Particle, len(counts))
	for _, q := range p.Particles {
		byType[q.Type] = append(byType[q.Type], q)
	}

	total := 0
	for _, c := range counts {
		total += max(c, 0)
	}
	particles := make([]Particle, 0, total)
	for t, want := range counts {
		want = max(want, 0)
		have := byType[t]
		if len(have) > want {
			p.rng.Shuffle(len(have), func(i, j int) { have[i], have[j] = have[j], have[i] })
			have = have[:want]
		}
		particles = append(particles, have...)
		for i := len(have); i < want; i++ {
			q := Particle{Type: t}
			p.setPosition(&q)
			particles = append(particles, q)
		}
	}
	p.Particles = particles
	p.shuffle()
}

// SetTypeCountEqual spreads the current population evenly over all types.
func (p *Physics) SetTypeCountEqual() {
	size := p.MatrixSize()
	n := len(p.Particles)
	counts := make([]int, size)
	for t := range counts {
		counts[t] = n / size
		if t < n%size {
			counts[t]++
		}
	}
	p.SetTypeCount(counts)
}
