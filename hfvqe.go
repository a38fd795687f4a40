// Package hfvqe variationally optimizes a restricted Hartree-Fock ansatz
// using one-particle reduced density matrices estimated from simulated
// quantum measurements.
package hfvqe

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"hfvqe/chem"
	"hfvqe/circuit"
	"hfvqe/opdm"
)

// Energy is the restricted Hartree-Fock mean-field energy of the spatial
// 1-RDM d in the molecular orbital basis,
//
//	E = 2 tr(h d) + sum_pqrs d_pq d_rs (2(pq|rs) - (pr|qs)) + Enuc.
//
// It is exact when d is the 1-RDM of a Slater determinant.
func Energy(sys *chem.System, d *mat.SymDense) float64 {
	n := sys.Norb
	f := fockTwoBody(sys, d)
	var e float64
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			e += d.At(p, q) * (2*sys.Hcore.At(p, q) + f.At(p, q))
		}
	}
	return e + sys.Enuc
}

// Fock is the effective Fock matrix h + 2J(d) - K(d).
func Fock(sys *chem.System, d *mat.SymDense) *mat.SymDense {
	n := sys.Norb
	f := fockTwoBody(sys, d)
	out := mat.NewSymDense(n, nil)
	for p := 0; p < n; p++ {
		for q := p; q < n; q++ {
			out.SetSym(p, q, sys.Hcore.At(p, q)+f.At(p, q))
		}
	}
	return out
}

func fockTwoBody(sys *chem.System, d *mat.SymDense) *mat.SymDense {
	n := sys.Norb
	f := mat.NewSymDense(n, nil)
	for p := 0; p < n; p++ {
		for q := p; q < n; q++ {
			var v float64
			for r := 0; r < n; r++ {
				for s := 0; s < n; s++ {
					v += d.At(r, s) * (2*sys.ERI[chem.ERIIndex(n, p, q, r, s)] - sys.ERI[chem.ERIIndex(n, p, r, q, s)])
				}
			}
			f.SetSym(p, q, v)
		}
	}
	return f
}

// Gradient is the energy gradient with respect to an antisymmetric orbital
// rotation applied on top of the current basis, 2(F d - d F). It vanishes at
// the Hartree-Fock solution.
func Gradient(sys *chem.System, d *mat.SymDense) *mat.Dense {
	n := sys.Norb
	f := Fock(sys, d)
	fd := mat.NewDense(n, n, nil)
	df := mat.NewDense(n, n, nil)
	fd.Mul(f, d)
	df.Mul(d, f)
	g := mat.NewDense(n, n, nil)
	g.Sub(fd, df)
	g.Scale(2, g)
	return g
}

// Expm is the matrix exponential by scaling and squaring with a Taylor
// series. For antisymmetric input the result is orthogonal.
func Expm(a *mat.Dense) *mat.Dense {
	n, _ := a.Dims()

	norm := mat.Norm(a, 1)
	squarings := 0
	for norm > 0.5 {
		norm /= 2
		squarings++
	}
	scaled := mat.NewDense(n, n, nil)
	scaled.Scale(math.Pow(0.5, float64(squarings)), a)

	result := eye(n)
	term := eye(n)
	next := mat.NewDense(n, n, nil)
	for k := 1; k <= 20; k++ {
		next.Mul(term, scaled)
		next.Scale(1/float64(k), next)
		term.CloneFrom(next)
		result.Add(result, term)
	}

	for i := 0; i < squarings; i++ {
		next.Mul(result, result)
		result.CloneFrom(next)
	}
	return result
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Objective estimates the energy of basis rotations by simulated measurement.
type Objective struct {
	Sys *chem.System
	// Shots per measurement setting; 0 means exact expectations.
	Shots int
	// Resamples is the ensemble size for energy error bars.
	Resamples int
	// ReadoutError is the per-qubit bit flip probability at readout.
	ReadoutError float64

	rng *rand.Rand
}

func NewObjective(sys *chem.System, shots int, seed uint64) *Objective {
	return &Objective{Sys: sys, Shots: shots, Resamples: 50, rng: rand.New(rand.NewSource(seed))}
}

// Round is one full measurement round at a fixed basis rotation.
type Round struct {
	Raw  *opdm.Estimate
	Pure *mat.SymDense
	// RawEnergy is the energy of the unpurified estimate.
	RawEnergy float64
	// Energy is the energy of the purified estimate.
	Energy float64
	// EnergyErr is the standard deviation of the energy over the
	// resampled ensemble.
	EnergyErr float64
}

// Round measures the 1-RDM of the determinant with orbital rotation u,
// purifies it, and propagates the shot noise to an energy error bar.
func (o *Objective) Round(u *mat.Dense) (*Round, error) {
	sampler := circuit.NewSampler(u, o.Sys.Nocc, o.rng)
	sampler.ReadoutError = o.ReadoutError

	est, err := opdm.EstimateOPDM(sampler, o.Shots)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	pure, err := opdm.Purify(est.D, o.Sys.Nocc)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	r := &Round{
		Raw:       est,
		Pure:      pure,
		RawEnergy: Energy(o.Sys, est.D),
		Energy:    Energy(o.Sys, pure),
	}

	if o.Shots > 0 && o.Resamples > 0 {
		energies := make([]float64, 0, o.Resamples)
		for _, d := range opdm.Resample(est, o.Resamples, o.rng) {
			p, err := opdm.Purify(d, o.Sys.Nocc)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
			energies = append(energies, Energy(o.Sys, p))
		}
		r.EnergyErr = stat.StdDev(energies, nil)
	}
	return r, nil
}

// Iteration is one energy evaluation of the optimization trajectory.
type Iteration struct {
	Step      int
	Energy    float64
	RawEnergy float64
	EnergyErr float64
	GradNorm  float64
	Seconds   float64
}

// Result is the outcome of a basis-rotation optimization.
type Result struct {
	Trajectory []Iteration
	U          *mat.Dense
	Energy     float64
	EnergyErr  float64
}

const (
	optimizeGradTol = 1e-6
	minLearningRate = 1e-4
	maxRejects      = 6
)

// Optimize descends the measured energy over orbital rotations, starting
// from u0. Each iteration re-measures the 1-RDM, purifies it, and steps
// along the exponential of the Fock commutator gradient. Rejected uphill
// steps shrink the learning rate.
func Optimize(o *Objective, u0 *mat.Dense, maxIters int) (*Result, error) {
	u := mat.DenseCopyOf(u0)
	cur, err := o.Round(u)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	res := &Result{}
	record := func(step int, r *Round, gnorm float64, start time.Time) {
		res.Trajectory = append(res.Trajectory, Iteration{
			Step:      step,
			Energy:    r.Energy,
			RawEnergy: r.RawEnergy,
			EnergyErr: r.EnergyErr,
			GradNorm:  gnorm,
			Seconds:   time.Since(start).Seconds(),
		})
	}

	start := time.Now()
	g := Gradient(o.Sys, cur.Pure)
	record(0, cur, mat.Norm(g, 2), start)

	rate := newLearningRateAdjuster()
	rejects := 0
	for step := 1; step <= maxIters; step++ {
		gnorm := mat.Norm(g, 2)
		if gnorm < optimizeGradTol {
			break
		}

		start = time.Now()
		stepDir := mat.NewDense(o.Sys.Norb, o.Sys.Norb, nil)
		stepDir.Scale(-rate.v, g)
		uNew := mat.NewDense(o.Sys.Norb, o.Sys.Norb, nil)
		uNew.Mul(Expm(stepDir), u)

		next, err := o.Round(uNew)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		gNext := Gradient(o.Sys, next.Pure)
		record(step, next, mat.Norm(gNext, 2), start)

		// Allow uphill moves within the noise.
		if next.Energy <= cur.Energy+2*cur.EnergyErr+1e-12 {
			u, cur, g = uNew, next, gNext
			rate.grow()
			rejects = 0
			continue
		}
		rate.shrink()
		rejects++
		if rate.v <= minLearningRate && rejects >= maxRejects {
			break
		}
	}

	res.U = u
	res.Energy = cur.Energy
	res.EnergyErr = cur.EnergyErr
	return res, nil
}

type learningRateAdjuster struct {
	v float64
}

func newLearningRateAdjuster() *learningRateAdjuster {
	return &learningRateAdjuster{v: 0.5}
}

func (a *learningRateAdjuster) grow() {
	a.v = math.Min(a.v*1.2, 1)
}

func (a *learningRateAdjuster) shrink() {
	a.v = math.Max(a.v/2, minLearningRate)
}
