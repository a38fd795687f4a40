package opdm

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler measures per-mode occupations under a measurement setting. A
// setting is a list of disjoint mode pairs; for each pair a pi/4 Givens
// rotation is appended before readout. shots==0 means exact expectations
// with zero variance.
type Sampler interface {
	Modes() int
	Occupations(pairs [][2]int, shots int) (mean, variance []float64, err error)
}

// Estimate is a measured 1-RDM and the per-element variance of its entries.
type Estimate struct {
	D   *mat.SymDense
	Var *mat.SymDense
}

// EstimateOPDM measures the full 1-RDM of the sampler's state. Diagonal
// elements come from the bare occupation setting; the element D_pq comes from
// the rotated occupation difference (n_q - n_p)/2 of the round containing
// the pair (p, q).
func EstimateOPDM(s Sampler, shots int) (*Estimate, error) {
	n := s.Modes()
	e := &Estimate{D: mat.NewSymDense(n, nil), Var: mat.NewSymDense(n, nil)}

	mean, variance, err := s.Occupations(nil, shots)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	for p := 0; p < n; p++ {
		e.D.SetSym(p, p, mean[p])
		e.Var.SetSym(p, p, variance[p])
	}

	for _, pairs := range Rounds(n) {
		mean, variance, err := s.Occupations(pairs, shots)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		for _, pq := range pairs {
			p, q := pq[0], pq[1]
			e.D.SetSym(p, q, (mean[q]-mean[p])/2)
			e.Var.SetSym(p, q, (variance[p]+variance[q])/4)
		}
	}
	return e, nil
}

// Resample draws m plausible 1-RDMs by perturbing each independent element
// of the estimate with Gaussian noise of its estimated variance.
func Resample(e *Estimate, m int, rng *rand.Rand) []*mat.SymDense {
	n := e.D.SymmetricDim()
	out := make([]*mat.SymDense, 0, m)
	for i := 0; i < m; i++ {
		d := mat.NewSymDense(n, nil)
		for p := 0; p < n; p++ {
			for q := p; q < n; q++ {
				v := e.D.At(p, q)
				if sigma2 := e.Var.At(p, q); sigma2 > 0 {
					normal := distuv.Normal{Mu: 0, Sigma: math.Sqrt(sigma2), Src: rng}
					v += normal.Rand()
				}
				d.SetSym(p, q, v)
			}
		}
		out = append(out, d)
	}
	return out
}
