package chem

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	scfMaxSteps = 200
	scfTolE     = 1e-10
)

// SCFResult holds the converged restricted Hartree-Fock solution in the
// atomic orbital basis.
type SCFResult struct {
	Energy          float64
	Orbitals        *mat.Dense // columns are molecular orbitals
	OrbitalEnergies []float64
}

// RHF solves the restricted Hartree-Fock equations of m.
func RHF(m Molecule) (*SCFResult, error) {
	if m.NumElectrons()%2 != 0 {
		return nil, errors.Errorf("odd electron count %d", m.NumElectrons())
	}
	nocc := m.NumElectrons() / 2

	s, t, v, eri, err := Integrals(m)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	n := s.SymmetricDim()
	if nocc > n {
		return nil, errors.Errorf("%d occupied orbitals, %d basis functions", nocc, n)
	}

	hcore := mat.NewDense(n, n, nil)
	hcore.Add(t, v)

	x, err := sqrtInv(s)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	// Core Hamiltonian guess.
	c, epsilon, err := solveFock(hcore, x)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	d := density(c, nocc)

	g := mat.NewDense(n, n, nil)
	f := mat.NewDense(n, n, nil)
	var energy, prev float64
	for step := 0; step < scfMaxSteps; step++ {
		buildG(g, d, eri)
		f.Add(hcore, g)

		energy = 0
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				energy += d.At(i, j) * (2*hcore.At(i, j) + g.At(i, j))
			}
		}

		if step > 0 && math.Abs(energy-prev) < scfTolE {
			return &SCFResult{
				Energy:          energy + m.NuclearRepulsion(),
				Orbitals:        c,
				OrbitalEnergies: epsilon,
			}, nil
		}
		prev = energy

		c, epsilon, err = solveFock(f, x)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		d = density(c, nocc)
	}
	return nil, errors.Errorf("scf not converged after %d steps, energy %f", scfMaxSteps, energy)
}

// solveFock diagonalizes f in the orthogonalized basis x and back-transforms
// the eigenvectors.
func solveFock(f *mat.Dense, x *mat.Dense) (*mat.Dense, []float64, error) {
	n, _ := f.Dims()
	fp := mat.NewDense(n, n, nil)
	fp.Mul(x, f)
	fp.Mul(fp, x)

	// Symmetrize against round-off before factorizing.
	fsym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			fsym.SetSym(i, j, 0.5*(fp.At(i, j)+fp.At(j, i)))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(fsym, true); !ok {
		return nil, nil, errors.Errorf("fock eigendecomposition failed")
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	c := mat.NewDense(n, n, nil)
	c.Mul(x, &vecs)
	return c, eig.Values(nil), nil
}

func density(c *mat.Dense, nocc int) *mat.Dense {
	n, _ := c.Dims()
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var v float64
			for o := 0; o < nocc; o++ {
				v += c.At(i, o) * c.At(j, o)
			}
			d.Set(i, j, v)
		}
	}
	return d
}

func buildG(g, d *mat.Dense, eri []float64) {
	n, _ := g.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var v float64
			for k := 0; k < n; k++ {
				for l := 0; l < n; l++ {
					v += d.At(k, l) * (2*eri[ERIIndex(n, i, j, k, l)] - eri[ERIIndex(n, i, k, j, l)])
				}
			}
			g.Set(i, j, v)
		}
	}
}

func sqrtInv(s *mat.SymDense) (*mat.Dense, error) {
	n := s.SymmetricDim()
	var eig mat.EigenSym
	if ok := eig.Factorize(s, true); !ok {
		return nil, errors.Errorf("overlap eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	x := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		if vals[i] < 1e-10 {
			return nil, errors.Errorf("overlap matrix is near singular: %f", vals[i])
		}
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				x.Set(j, k, x.At(j, k)+vecs.At(j, i)*vecs.At(k, i)/math.Sqrt(vals[i]))
			}
		}
	}
	return x, nil
}

// System is a molecular electronic system expressed in the basis of its
// converged Hartree-Fock molecular orbitals. It is immutable once built.
type System struct {
	Norb int
	Nocc int
	// Hcore is the one-body integral matrix h_pq.
	Hcore *mat.SymDense
	// ERI are the two-body integrals (pq|rs) in chemists' notation,
	// indexed by ERIIndex.
	ERI  []float64
	Enuc float64
	// SCFEnergy is the restricted Hartree-Fock energy, the value the
	// basis-rotation optimization should recover.
	SCFEnergy float64
}

// NewSystem solves the Hartree-Fock equations of m and transforms its
// integrals to the molecular orbital basis.
func NewSystem(m Molecule) (*System, error) {
	scf, err := RHF(m)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	_, t, v, eri, err := Integrals(m)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	n := t.SymmetricDim()

	hcore := mat.NewDense(n, n, nil)
	hcore.Add(t, v)
	hmo := mat.NewDense(n, n, nil)
	hmo.Mul(hcore, scf.Orbitals)
	hmo.Mul(scf.Orbitals.T(), hmo)
	hsym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			hsym.SetSym(i, j, 0.5*(hmo.At(i, j)+hmo.At(j, i)))
		}
	}

	return &System{
		Norb:      n,
		Nocc:      m.NumElectrons() / 2,
		Hcore:     hsym,
		ERI:       transformERI(eri, scf.Orbitals),
		Enuc:      m.NuclearRepulsion(),
		SCFEnergy: scf.Energy,
	}, nil
}

// transformERI rotates the two-body integrals into the molecular orbital
// basis, one index at a time.
func transformERI(eri []float64, c *mat.Dense) []float64 {
	n, _ := c.Dims()
	cur := eri
	for pass := 0; pass < 4; pass++ {
		next := make([]float64, len(eri))
		for p := 0; p < n; p++ {
			for q := 0; q < n; q++ {
				for r := 0; r < n; r++ {
					for s := 0; s < n; s++ {
						var v float64
						for u := 0; u < n; u++ {
							// Rotate the last index, then cycle it to the front.
							v += cur[ERIIndex(n, q, r, s, u)] * c.At(u, p)
						}
						next[ERIIndex(n, p, q, r, s)] = v
					}
				}
			}
		}
		cur = next
	}
	return cur
}
