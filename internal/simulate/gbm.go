// Package simulate generates asset prices under geometric Brownian motion.
//
// Paths are generated in fixed-size chunks. Every chunk draws from its own
// random source, so chunks can run on separate goroutines without sharing
// generator state, and a seeded run produces the same prices no matter how
// many workers execute it.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/option-pricing/internal/logger"
)

// DefaultChunkSize is the number of paths drawn from one random source.
const DefaultChunkSize = 8192

// ctxCheckDraws is how many normal draws a worker makes between context checks.
const ctxCheckDraws = 1 << 14

var (
	ErrInvalidModel = errors.New("invalid gbm model")
	ErrInvalidCount = errors.New("simulation count must be positive")
)

// GBM describes the risk-neutral process
//
//	dS = r*S*dt + sigma*S*dW
//
// Maturity is in years.
type GBM struct {
	Spot     float64
	Rate     float64
	Sigma    float64
	Maturity float64
}

func (m GBM) validate() error {
	switch {
	case !(m.Spot > 0) || math.IsInf(m.Spot, 0):
		return fmt.Errorf("%w: spot=%v", ErrInvalidModel, m.Spot)
	case !(m.Sigma >= 0) || math.IsInf(m.Sigma, 0):
		return fmt.Errorf("%w: sigma=%v", ErrInvalidModel, m.Sigma)
	case !(m.Maturity > 0) || math.IsInf(m.Maturity, 0):
		return fmt.Errorf("%w: maturity=%v", ErrInvalidModel, m.Maturity)
	case math.IsNaN(m.Rate) || math.IsInf(m.Rate, 0):
		return fmt.Errorf("%w: rate=%v", ErrInvalidModel, m.Rate)
	}
	return nil
}

// Result holds the output of one Run.
type Result struct {
	// Terminal holds one terminal price per simulation.
	Terminal []float64

	// Paths holds full trajectories (Steps+1 points, starting at the spot)
	// for the first KeepPaths simulations only.
	Paths [][]float64

	Spot  float64
	Steps int
	Seed  uint64
	Run   uint64
}

// Len is the number of simulations.
func (r *Result) Len() int { return len(r.Terminal) }

// Sample returns up to n trajectories without recomputation. When no full
// paths were retained each entry is the two-point path [spot, terminal].
func (r *Result) Sample(n int) [][]float64 {
	if n <= 0 {
		return nil
	}
	if len(r.Paths) > 0 {
		n = min(n, len(r.Paths))
		out := make([][]float64, n)
		for i := range out {
			out[i] = append([]float64(nil), r.Paths[i]...)
		}
		return out
	}
	n = min(n, len(r.Terminal))
	out := make([][]float64, n)
	for i := range out {
		out[i] = []float64{r.Spot, r.Terminal[i]}
	}
	return out
}

// SourceFunc builds the random source for one chunk of one run.
type SourceFunc func(run, chunk uint64) rand.Source

// Option configures a Simulator.
type Option func(*Simulator)

// WithSteps discretizes each path into n steps of dt = T/n. The default is a
// single step straight to maturity.
func WithSteps(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.steps = n
		}
	}
}

// WithKeepPaths retains full trajectories for the first n simulations.
func WithKeepPaths(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.keep = n
		}
	}
}

// WithSeed makes every run reproducible. Run r, chunk c draws from
// PCG(seed, r<<32|c), so consecutive runs stay independent of each other.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.seed = seed
		s.seeded = true
	}
}

// WithSource replaces the random source entirely.
func WithSource(fn SourceFunc) Option {
	return func(s *Simulator) {
		s.source = fn
	}
}

// WithWorkers bounds the number of chunks generated concurrently.
func WithWorkers(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithChunkSize sets how many paths share one random source.
func WithChunkSize(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// Simulator is not safe for concurrent use: it counts runs.
type Simulator struct {
	steps     int
	keep      int
	workers   int
	chunkSize int

	seed   uint64
	seeded bool
	source SourceFunc

	runs uint64
}

func New(opts ...Option) *Simulator {
	s := &Simulator{
		steps:     1,
		workers:   runtime.GOMAXPROCS(0),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Steps is the number of time steps per path.
func (s *Simulator) Steps() int { return s.steps }

// Run simulates n independent paths of m.
//
// Each step applies
//
//	S(t+dt) = S(t) * exp((r - sigma^2/2)*dt + sigma*sqrt(dt)*Z)
//
// with Z ~ N(0,1) drawn fresh per step and per path. With one step this is
// the exact terminal distribution. Runtime is linear in n*steps.
func (s *Simulator) Run(ctx context.Context, m GBM, n int) (*Result, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}

	run := s.runs
	s.runs++

	seed := s.seed
	if !s.seeded {
		seed = rand.Uint64()
	}
	source := s.source
	if source == nil {
		source = func(run, chunk uint64) rand.Source {
			return rand.NewPCG(seed, run<<32|chunk)
		}
	}

	res := &Result{
		Terminal: make([]float64, n),
		Spot:     m.Spot,
		Steps:    s.steps,
		Seed:     seed,
		Run:      run,
	}
	if keep := min(s.keep, n); keep > 0 {
		res.Paths = make([][]float64, keep)
		for i := range res.Paths {
			res.Paths[i] = make([]float64, s.steps+1)
		}
	}

	dt := m.Maturity / float64(s.steps)
	drift := (m.Rate - 0.5*m.Sigma*m.Sigma) * dt
	vol := m.Sigma * math.Sqrt(dt)
	chunks := (n + s.chunkSize - 1) / s.chunkSize

	logger.Debugf("event=simulate run=%d paths=%d steps=%d chunks=%d workers=%d", run, n, s.steps, chunks, s.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for c := 0; c < chunks; c++ {
		lo := c * s.chunkSize
		hi := min(lo+s.chunkSize, n)
		src := source(run, uint64(c))
		g.Go(func() error {
			rng := rand.New(src)
			work := ctxCheckDraws
			for i := lo; i < hi; i++ {
				if work += s.steps; work >= ctxCheckDraws {
					if err := gctx.Err(); err != nil {
						return err
					}
					work = 0
				}
				var path []float64
				if i < len(res.Paths) {
					path = res.Paths[i]
					path[0] = m.Spot
				}
				x := 0.0
				for k := 1; k <= s.steps; k++ {
					x += drift + vol*rng.NormFloat64()
					if path != nil {
						path[k] = positive(m.Spot * math.Exp(x))
					}
				}
				res.Terminal[i] = positive(m.Spot * math.Exp(x))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulate run %d: %w", run, err)
	}

	logger.Tracef("event=simulate_done run=%d seed=%d", run, seed)
	return res, nil
}

// positive keeps simulated prices finite and above zero when exp under-
// or overflows.
func positive(x float64) float64 {
	switch {
	case x <= 0:
		return math.SmallestNonzeroFloat64
	case x > math.MaxFloat64:
		return math.MaxFloat64
	}
	return x
}
