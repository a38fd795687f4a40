package circuit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Rotation is a plane rotation by Theta mixing modes P and Q.
type Rotation struct {
	P, Q  int
	Theta float64
}

// Decompose factors the orthogonal matrix u into adjacent-row plane
// rotations, u = R(rots[0]) R(rots[1]) ... R(rots[k-1]) diag(signs).
// Entries below the diagonal are eliminated column by column, bottom up.
func Decompose(u mat.Matrix) ([]Rotation, []float64) {
	n, cols := u.Dims()
	if n != cols {
		panic(fmt.Sprintf("%d %d", n, cols))
	}
	w := mat.DenseCopyOf(u)

	rots := make([]Rotation, 0, n*(n-1)/2)
	for c := 0; c < n-1; c++ {
		for r := n - 1; r > c; r-- {
			a, b := w.At(r-1, c), w.At(r, c)
			if math.Abs(b) < 1e-14 {
				continue
			}
			theta := math.Atan2(b, a)
			cs, sn := math.Cos(theta), math.Sin(theta)
			for j := 0; j < n; j++ {
				up, dn := w.At(r-1, j), w.At(r, j)
				w.Set(r-1, j, cs*up+sn*dn)
				w.Set(r, j, -sn*up+cs*dn)
			}
			rots = append(rots, Rotation{P: r - 1, Q: r, Theta: theta})
		}
	}

	signs := make([]float64, n)
	for i := 0; i < n; i++ {
		if w.At(i, i) < 0 {
			signs[i] = -1
		} else {
			signs[i] = 1
		}
	}
	return rots, signs
}

// Prepare builds the Slater determinant state whose orbital matrix is the
// first nocc columns of the orthogonal matrix u. The column signs dropped by
// Decompose only affect the global phase.
func Prepare(u mat.Matrix, nocc int) *State {
	n, _ := u.Dims()
	s := Reference(n, nocc)
	rots, _ := Decompose(u)
	// The first factor of u acts last on the state.
	for i := len(rots) - 1; i >= 0; i-- {
		s.Givens(rots[i].P, rots[i].Q, rots[i].Theta)
	}
	return s
}
