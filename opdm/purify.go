package opdm

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	mcweenyTol      = 1e-12
	mcweenyMaxIters = 100
)

// McWeeny iterates D <- 3D^2 - 2D^3 until D is idempotent to within tol in
// the Frobenius norm. The input must have eigenvalues in [0, 1] for the
// iteration to converge; ProjectTrace guarantees that.
func McWeeny(d *mat.SymDense) (*mat.SymDense, error) {
	n := d.SymmetricDim()
	cur := mat.DenseCopyOf(d)
	d2 := mat.NewDense(n, n, nil)
	d3 := mat.NewDense(n, n, nil)
	diff := mat.NewDense(n, n, nil)
	for iter := 0; iter < mcweenyMaxIters; iter++ {
		d2.Mul(cur, cur)
		diff.Sub(d2, cur)
		if mat.Norm(diff, 2) < mcweenyTol {
			out := mat.NewSymDense(n, nil)
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					out.SetSym(i, j, 0.5*(cur.At(i, j)+cur.At(j, i)))
				}
			}
			return out, nil
		}

		d3.Mul(d2, cur)
		d2.Scale(3, d2)
		d3.Scale(2, d3)
		cur.Sub(d2, d3)
	}
	return nil, errors.Errorf("mcweeny not converged after %d iterations", mcweenyMaxIters)
}

// ProjectTrace projects d onto the set of symmetric matrices with
// eigenvalues in [0, 1] and the given trace, by clipping a uniformly shifted
// spectrum. The shift is found by bisection.
func ProjectTrace(d *mat.SymDense, trace float64) (*mat.SymDense, error) {
	n := d.SymmetricDim()
	if trace < 0 || trace > float64(n) {
		return nil, errors.Errorf("trace %f out of range for %d modes", trace, n)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(d, true); !ok {
		return nil, errors.Errorf("eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	clippedSum := func(shift float64) float64 {
		var sum float64
		for _, v := range vals {
			sum += clip01(v + shift)
		}
		return sum
	}

	lo, hi := -1.0, 1.0
	for _, v := range vals {
		lo = math.Min(lo, -v-1)
		hi = math.Max(hi, 1-v+1)
	}
	for iter := 0; iter < 200; iter++ {
		mid := 0.5 * (lo + hi)
		if clippedSum(mid) < trace {
			lo = mid
		} else {
			hi = mid
		}
	}
	shift := 0.5 * (lo + hi)

	out := mat.NewSymDense(n, nil)
	for k := 0; k < n; k++ {
		lambda := clip01(vals[k] + shift)
		if lambda == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				out.SetSym(i, j, out.At(i, j)+lambda*vecs.At(i, k)*vecs.At(j, k))
			}
		}
	}
	return out, nil
}

// Purify maps a measured 1-RDM to the idempotent estimator with nocc
// occupied orbitals: a physical projection followed by McWeeny iteration.
func Purify(d *mat.SymDense, nocc int) (*mat.SymDense, error) {
	proj, err := ProjectTrace(d, float64(nocc))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	pure, err := McWeeny(proj)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return pure, nil
}

func clip01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
