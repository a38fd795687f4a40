package opdm

import (
	"fmt"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestRounds(t *testing.T) {
	t.Parallel()
	for _, n := range []int{2, 4, 5, 7, 8} {
		t.Run(fmt.Sprintf("%d", n), func(t *testing.T) {
			t.Parallel()
			seen := make(map[[2]int]int)
			for _, pairs := range Rounds(n) {
				used := make(map[int]bool)
				for _, pq := range pairs {
					p, q := pq[0], pq[1]
					if p >= q || q >= n {
						t.Fatalf("%v", pq)
					}
					if used[p] || used[q] {
						t.Fatalf("round %v reuses a mode", pairs)
					}
					used[p], used[q] = true, true
					seen[pq]++
				}
			}
			for p := 0; p < n; p++ {
				for q := p + 1; q < n; q++ {
					if seen[[2]int{p, q}] != 1 {
						t.Fatalf("pair (%d,%d) seen %d times", p, q, seen[[2]int{p, q}])
					}
				}
			}
		})
	}
}

// detSampler reports the exact rotated occupations of a state with a known
// 1-RDM: occupations transform as diag(V D V^T) under mode rotations V.
type detSampler struct {
	d *mat.Dense
}

func (s detSampler) Modes() int {
	n, _ := s.d.Dims()
	return n
}

func (s detSampler) Occupations(pairs [][2]int, shots int) ([]float64, []float64, error) {
	n := s.Modes()
	v := identity(n)
	for _, pq := range pairs {
		applyPlaneRotation(v, pq[0], pq[1], math.Pi/4)
	}
	rotated := mat.NewDense(n, n, nil)
	rotated.Mul(v, s.d)
	rotated.Mul(rotated, v.T())

	mean := make([]float64, n)
	for m := 0; m < n; m++ {
		mean[m] = rotated.At(m, m)
	}
	return mean, make([]float64, n), nil
}

func identity(n int) *mat.Dense {
	v := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		v.Set(i, i, 1)
	}
	return v
}

// applyPlaneRotation sets v = R v where R is the plane rotation with
// R_pp = cos, R_qp = sin, R_pq = -sin.
func applyPlaneRotation(v *mat.Dense, p, q int, theta float64) {
	n, _ := v.Dims()
	c, s := math.Cos(theta), math.Sin(theta)
	for j := 0; j < n; j++ {
		vp, vq := v.At(p, j), v.At(q, j)
		v.Set(p, j, c*vp-s*vq)
		v.Set(q, j, s*vp+c*vq)
	}
}

// determinantRDM is U P U^T with P projecting on the first nocc modes.
func determinantRDM(u *mat.Dense, nocc int) *mat.Dense {
	n, _ := u.Dims()
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var v float64
			for o := 0; o < nocc; o++ {
				v += u.At(i, o) * u.At(j, o)
			}
			d.Set(i, j, v)
		}
	}
	return d
}

func TestEstimateOPDM(t *testing.T) {
	t.Parallel()
	const n, nocc = 4, 2
	u := identity(n)
	applyPlaneRotation(u, 1, 2, 0.3)
	applyPlaneRotation(u, 0, 3, -0.7)
	applyPlaneRotation(u, 2, 3, 1.1)
	d := determinantRDM(u, nocc)

	e, err := EstimateOPDM(detSampler{d: d}, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if math.Abs(e.D.At(p, q)-d.At(p, q)) > 1e-12 {
				t.Fatalf("(%d,%d): %f, expected %f", p, q, e.D.At(p, q), d.At(p, q))
			}
			if e.Var.At(p, q) != 0 {
				t.Fatalf("(%d,%d): %f", p, q, e.Var.At(p, q))
			}
		}
	}
}

func TestPurify(t *testing.T) {
	t.Parallel()
	const n, nocc = 4, 2
	u := identity(n)
	applyPlaneRotation(u, 0, 1, 0.4)
	applyPlaneRotation(u, 1, 3, -0.9)
	exact := determinantRDM(u, nocc)

	// Corrupt the exact 1-RDM with a fixed symmetric perturbation.
	noisy := mat.NewSymDense(n, nil)
	perturb := []float64{0.013, -0.021, 0.008, 0.017, -0.011, 0.019, 0.004, -0.016, 0.009, 0.012}
	k := 0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			noisy.SetSym(i, j, exact.At(i, j)+perturb[k])
			k++
		}
	}

	pure, err := Purify(noisy, nocc)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// Idempotent with trace nocc.
	sq := mat.NewDense(n, n, nil)
	sq.Mul(pure, pure)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.Abs(sq.At(i, j)-pure.At(i, j)) > 1e-9 {
				t.Fatalf("(%d,%d): %f, expected %f", i, j, sq.At(i, j), pure.At(i, j))
			}
		}
	}
	if tr := mat.Trace(pure); math.Abs(tr-nocc) > 1e-9 {
		t.Fatalf("%f, expected %d", tr, nocc)
	}

	// Purification moves the estimate towards the exact 1-RDM.
	var before, after float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			before += sqr(noisy.At(i, j) - exact.At(i, j))
			after += sqr(pure.At(i, j) - exact.At(i, j))
		}
	}
	if after >= before {
		t.Fatalf("%f, expected below %f", after, before)
	}
}

func TestProjectTrace(t *testing.T) {
	t.Parallel()
	const n = 5
	d := mat.NewSymDense(n, nil)
	vals := []float64{1.7, -0.4, 0.9, 0.2, -1.1, 0.6, 0.05, -0.3, 0.8, 1.2, -0.7, 0.15, 0.45, -0.05, 0.3}
	k := 0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			d.SetSym(i, j, vals[k])
			k++
		}
	}

	const trace = 2.0
	proj, err := ProjectTrace(d, trace)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if tr := mat.Trace(proj); math.Abs(tr-trace) > 1e-9 {
		t.Fatalf("%f, expected %f", tr, trace)
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(proj, false); !ok {
		t.Fatalf("factorize failed")
	}
	for _, v := range eig.Values(nil) {
		if v < -1e-12 || v > 1+1e-12 {
			t.Fatalf("%f", v)
		}
	}
}

func TestResample(t *testing.T) {
	t.Parallel()
	const n = 3
	e := &Estimate{D: mat.NewSymDense(n, nil), Var: mat.NewSymDense(n, nil)}
	for i := 0; i < n; i++ {
		e.D.SetSym(i, i, 0.5)
	}
	const sigma = 0.1
	e.Var.SetSym(0, 1, sigma*sigma)

	rng := rand.New(rand.NewSource(42))
	samples := Resample(e, 2000, rng)

	offdiag := make([]float64, 0, len(samples))
	for _, s := range samples {
		// Elements with zero variance are untouched.
		if s.At(0, 0) != 0.5 || s.At(2, 2) != 0.5 || s.At(0, 2) != 0 {
			t.Fatalf("%v", mat.Formatted(s))
		}
		offdiag = append(offdiag, s.At(0, 1))
	}
	sd := stat.StdDev(offdiag, nil)
	if sd < sigma/2 || sd > sigma*2 {
		t.Fatalf("%f, expected near %f", sd, sigma)
	}
}

func sqr(v float64) float64 { return v * v }
