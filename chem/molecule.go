// Package chem builds molecular systems and their electronic integrals.
//
// Only s-type contracted Gaussians are supported, which covers the hydrogen
// chains used throughout this repository.
//
// References:
//   - Modern Quantum Chemistry, Szabo and Ostlund, appendix A.
package chem

import (
	"math"
)

type Atom struct {
	Z      int
	Coords [3]float64 // bohr
}

type Molecule struct {
	Atoms []Atom
}

// HydrogenChain is a linear chain of n hydrogen atoms along the z axis.
func HydrogenChain(n int, spacing float64) Molecule {
	m := Molecule{Atoms: make([]Atom, 0, n)}
	for i := 0; i < n; i++ {
		m.Atoms = append(m.Atoms, Atom{Z: 1, Coords: [3]float64{0, 0, float64(i) * spacing}})
	}
	return m
}

func (m Molecule) NumElectrons() int {
	n := 0
	for _, a := range m.Atoms {
		n += a.Z
	}
	return n
}

func (m Molecule) NuclearRepulsion() float64 {
	var e float64
	for i, a := range m.Atoms {
		for _, b := range m.Atoms[i+1:] {
			e += float64(a.Z*b.Z) / dist(a.Coords, b.Coords)
		}
	}
	return e
}

func dist(a, b [3]float64) float64 {
	return math.Sqrt(dist2(a, b))
}

func dist2(a, b [3]float64) float64 {
	var d2 float64
	for i := range a {
		d := a[i] - b[i]
		d2 += d * d
	}
	return d2
}
