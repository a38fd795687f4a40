package circuit

import (
	"fmt"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestGivensTwoModes(t *testing.T) {
	t.Parallel()
	const theta = 0.3
	s := Reference(2, 1)
	s.Givens(0, 1, theta)

	c, sn := math.Cos(theta), math.Sin(theta)
	tests := []struct {
		occ []int
		amp float64
	}{
		{occ: []int{1, 0}, amp: c},
		{occ: []int{0, 1}, amp: sn},
		{occ: []int{0, 0}, amp: 0},
		{occ: []int{1, 1}, amp: 0},
	}
	for _, test := range tests {
		got := s.Amplitude(test.occ)
		if math.Abs(float64(real(got))-test.amp) > 1e-6 || imag(got) != 0 {
			t.Fatalf("%v: %v, expected %f", test.occ, got, test.amp)
		}
	}
}

func TestGivensJordanWignerParity(t *testing.T) {
	t.Parallel()
	const theta = 0.4
	sn := math.Sin(theta)

	// An occupied mode between the rotated pair flips the sign.
	tests := []struct {
		ref    []int
		target []int
		amp    float64
	}{
		{ref: []int{1, 0, 0}, target: []int{0, 0, 1}, amp: sn},
		{ref: []int{1, 1, 0}, target: []int{0, 1, 1}, amp: -sn},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.ref), func(t *testing.T) {
			t.Parallel()
			s := NewState(3)
			s.amps.SetAt([]int{0, 0, 0}, 0)
			s.amps.SetAt(test.ref, 1)
			s.Givens(0, 2, theta)

			got := s.Amplitude(test.target)
			if math.Abs(float64(real(got))-test.amp) > 1e-6 {
				t.Fatalf("%v, expected %f", got, test.amp)
			}
		})
	}
}

func randOrthogonal(n int, rng *rand.Rand) *mat.Dense {
	u := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		u.Set(i, i, 1)
	}
	for p := 0; p < n; p++ {
		for q := p + 1; q < n; q++ {
			theta := rng.Float64()*2*math.Pi - math.Pi
			c, s := math.Cos(theta), math.Sin(theta)
			for j := 0; j < n; j++ {
				vp, vq := u.At(p, j), u.At(q, j)
				u.Set(p, j, c*vp-s*vq)
				u.Set(q, j, s*vp+c*vq)
			}
		}
	}
	return u
}

func TestDecompose(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{2, 3, 5} {
		t.Run(fmt.Sprintf("%d", n), func(t *testing.T) {
			u := randOrthogonal(n, rng)
			rots, signs := Decompose(u)

			// Rebuild R(rots[0]) ... R(rots[k-1]) diag(signs).
			w := mat.NewDense(n, n, nil)
			for i := 0; i < n; i++ {
				w.Set(i, i, signs[i])
			}
			for i := len(rots) - 1; i >= 0; i-- {
				r := rots[i]
				c, s := math.Cos(r.Theta), math.Sin(r.Theta)
				for j := 0; j < n; j++ {
					vp, vq := w.At(r.P, j), w.At(r.Q, j)
					w.Set(r.P, j, c*vp-s*vq)
					w.Set(r.Q, j, s*vp+c*vq)
				}
			}

			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					if math.Abs(w.At(i, j)-u.At(i, j)) > 1e-10 {
						t.Fatalf("(%d,%d): %f, expected %f", i, j, w.At(i, j), u.At(i, j))
					}
				}
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(11))
	const n, nocc = 4, 2
	u := randOrthogonal(n, rng)
	s := Prepare(u, nocc)

	probs := s.Probabilities()
	var norm float64
	occ := make([]int, n)
	diag := make([]float64, n)
	for i, p := range probs {
		norm += p
		bits(occ, n, i)
		ones := 0
		for m, b := range occ {
			if b == 1 {
				ones++
				diag[m] += p
			}
		}
		// Givens rotations preserve particle number.
		if p > 1e-9 && ones != nocc {
			t.Fatalf("%v has probability %f", occ, p)
		}
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("%f", norm)
	}

	// Diagonal of the 1-RDM equals (U P U^T)_pp.
	for p := 0; p < n; p++ {
		var want float64
		for o := 0; o < nocc; o++ {
			want += u.At(p, o) * u.At(p, o)
		}
		if math.Abs(diag[p]-want) > 1e-5 {
			t.Fatalf("%d: %f, expected %f", p, diag[p], want)
		}
	}
}

func TestSamplerOccupationsExact(t *testing.T) {
	t.Parallel()
	const theta = 0.3
	u := mat.NewDense(2, 2, []float64{
		math.Cos(theta), -math.Sin(theta),
		math.Sin(theta), math.Cos(theta),
	})
	sampler := NewSampler(u, 1, rand.New(rand.NewSource(1)))

	// Plain occupations are the 1-RDM diagonal.
	mean, variance, err := sampler.Occupations(nil, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	c, sn := math.Cos(theta), math.Sin(theta)
	if math.Abs(mean[0]-c*c) > 1e-6 || math.Abs(mean[1]-sn*sn) > 1e-6 {
		t.Fatalf("%v", mean)
	}
	if variance[0] != 0 || variance[1] != 0 {
		t.Fatalf("%v", variance)
	}

	// The pi/4 setting reads out the off-diagonal element:
	// (n1 - n0)/2 = D_01 = cos(theta) sin(theta).
	mean, _, err = sampler.Occupations([][2]int{{0, 1}}, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	got := (mean[1] - mean[0]) / 2
	if math.Abs(got-c*sn) > 1e-6 {
		t.Fatalf("%f, expected %f", got, c*sn)
	}
}

func TestSamplerCounts(t *testing.T) {
	t.Parallel()
	const theta = 0.5
	u := mat.NewDense(2, 2, []float64{
		math.Cos(theta), -math.Sin(theta),
		math.Sin(theta), math.Cos(theta),
	})
	sampler := NewSampler(u, 1, rand.New(rand.NewSource(3)))

	const shots = 20000
	counts, err := sampler.Counts(nil, shots)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	total := 0
	for key, c := range counts {
		if len(key) != 2 {
			t.Fatalf("%q", key)
		}
		total += c
	}
	if total != shots {
		t.Fatalf("%d, expected %d", total, shots)
	}

	want := math.Cos(theta) * math.Cos(theta)
	got := float64(counts["10"]) / shots
	if math.Abs(got-want) > 0.02 {
		t.Fatalf("%f, expected %f", got, want)
	}
}
