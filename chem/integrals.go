package chem

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// STO-3G exponents and contraction coefficients for hydrogen 1s.
var sto3gH = struct {
	alpha [3]float64
	coeff [3]float64
}{
	alpha: [3]float64{3.42525091, 0.62391373, 0.16885540},
	coeff: [3]float64{0.15432897, 0.53532814, 0.44463454},
}

// shell is a contracted s-type Gaussian.
type shell struct {
	center [3]float64
	alpha  []float64
	coeff  []float64
}

func basisFor(m Molecule) ([]shell, error) {
	shells := make([]shell, 0, len(m.Atoms))
	for _, a := range m.Atoms {
		if a.Z != 1 {
			return nil, errors.Errorf("no s-type basis for Z=%d", a.Z)
		}
		sh := shell{center: a.Coords}
		for i := range sto3gH.alpha {
			al := sto3gH.alpha[i]
			// Fold the primitive normalization into the coefficient.
			norm := math.Pow(2*al/math.Pi, 0.75)
			sh.alpha = append(sh.alpha, al)
			sh.coeff = append(sh.coeff, sto3gH.coeff[i]*norm)
		}
		// Normalize the contraction.
		saa := overlapShell(sh, sh)
		for i := range sh.coeff {
			sh.coeff[i] /= math.Sqrt(saa)
		}
		shells = append(shells, sh)
	}
	return shells, nil
}

// Integrals computes the overlap, kinetic, nuclear attraction and electron
// repulsion integrals of m in the atomic orbital basis.
func Integrals(m Molecule) (*mat.SymDense, *mat.SymDense, *mat.SymDense, []float64, error) {
	shells, err := basisFor(m)
	if err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "")
	}
	n := len(shells)

	s := mat.NewSymDense(n, nil)
	t := mat.NewSymDense(n, nil)
	v := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, overlapShell(shells[i], shells[j]))
			t.SetSym(i, j, kineticShell(shells[i], shells[j]))
			v.SetSym(i, j, nuclearShell(shells[i], shells[j], m))
		}
	}

	eri := make([]float64, n*n*n*n)
	for p := 0; p < n; p++ {
		for q := 0; q <= p; q++ {
			for r := 0; r <= p; r++ {
				smax := r
				if r == p {
					smax = q
				}
				for ss := 0; ss <= smax; ss++ {
					val := repulsionShell(shells[p], shells[q], shells[r], shells[ss])
					for _, ix := range [][4]int{
						{p, q, r, ss}, {q, p, r, ss}, {p, q, ss, r}, {q, p, ss, r},
						{r, ss, p, q}, {ss, r, p, q}, {r, ss, q, p}, {ss, r, q, p},
					} {
						eri[ERIIndex(n, ix[0], ix[1], ix[2], ix[3])] = val
					}
				}
			}
		}
	}

	return s, t, v, eri, nil
}

// ERIIndex is the flat index of the chemists' notation integral (pq|rs).
func ERIIndex(n, p, q, r, s int) int {
	return ((p*n+q)*n+r)*n + s
}

func overlapShell(a, b shell) float64 {
	var sum float64
	for i, ai := range a.alpha {
		for j, bj := range b.alpha {
			sum += a.coeff[i] * b.coeff[j] * overlapPrim(ai, a.center, bj, b.center)
		}
	}
	return sum
}

func kineticShell(a, b shell) float64 {
	var sum float64
	for i, ai := range a.alpha {
		for j, bj := range b.alpha {
			sum += a.coeff[i] * b.coeff[j] * kineticPrim(ai, a.center, bj, b.center)
		}
	}
	return sum
}

func nuclearShell(a, b shell, m Molecule) float64 {
	var sum float64
	for i, ai := range a.alpha {
		for j, bj := range b.alpha {
			for _, atom := range m.Atoms {
				sum += a.coeff[i] * b.coeff[j] * nuclearPrim(ai, a.center, bj, b.center, atom)
			}
		}
	}
	return sum
}

func repulsionShell(a, b, c, d shell) float64 {
	var sum float64
	for i, ai := range a.alpha {
		for j, bj := range b.alpha {
			for k, ck := range c.alpha {
				for l, dl := range d.alpha {
					w := a.coeff[i] * b.coeff[j] * c.coeff[k] * d.coeff[l]
					sum += w * repulsionPrim(ai, a.center, bj, b.center, ck, c.center, dl, d.center)
				}
			}
		}
	}
	return sum
}

// Equation A.9, Szabo and Ostlund.
func overlapPrim(al float64, a [3]float64, bl float64, b [3]float64) float64 {
	p := al + bl
	mu := al * bl / p
	return math.Pow(math.Pi/p, 1.5) * math.Exp(-mu*dist2(a, b))
}

// Equation A.11.
func kineticPrim(al float64, a [3]float64, bl float64, b [3]float64) float64 {
	p := al + bl
	mu := al * bl / p
	r2 := dist2(a, b)
	return mu * (3 - 2*mu*r2) * math.Pow(math.Pi/p, 1.5) * math.Exp(-mu*r2)
}

// Equation A.33.
func nuclearPrim(al float64, a [3]float64, bl float64, b [3]float64, atom Atom) float64 {
	p := al + bl
	mu := al * bl / p
	center := gaussCenter(al, a, bl, b)
	return -float64(atom.Z) * 2 * math.Pi / p * math.Exp(-mu*dist2(a, b)) * boys0(p*dist2(center, atom.Coords))
}

// Equation A.41.
func repulsionPrim(al float64, a [3]float64, bl float64, b [3]float64, cl float64, c [3]float64, dl float64, d [3]float64) float64 {
	p := al + bl
	q := cl + dl
	muAB := al * bl / p
	muCD := cl * dl / q
	pc := gaussCenter(al, a, bl, b)
	qc := gaussCenter(cl, c, dl, d)
	rho := p * q / (p + q)
	pre := 2 * math.Pow(math.Pi, 2.5) / (p * q * math.Sqrt(p+q))
	return pre * math.Exp(-muAB*dist2(a, b)) * math.Exp(-muCD*dist2(c, d)) * boys0(rho*dist2(pc, qc))
}

func gaussCenter(al float64, a [3]float64, bl float64, b [3]float64) [3]float64 {
	var c [3]float64
	p := al + bl
	for i := range c {
		c[i] = (al*a[i] + bl*b[i]) / p
	}
	return c
}

// boys0 is the zeroth Boys function F0.
func boys0(t float64) float64 {
	if t < 1e-12 {
		return 1 - t/3
	}
	return 0.5 * math.Sqrt(math.Pi/t) * math.Erf(math.Sqrt(t))
}
