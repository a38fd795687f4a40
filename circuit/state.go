// Package circuit simulates the basis-rotation circuits and measurements of
// a restricted Hartree-Fock ansatz under the Jordan-Wigner encoding.
package circuit

import (
	"fmt"
	"math"

	"github.com/fumin/tensor"
)

// State is a statevector over n qubits, one tensor axis per qubit.
// Qubit p carries the occupation of fermionic mode p.
type State struct {
	n    int
	amps *tensor.Dense
}

// NewState returns the all-empty state |00...0>.
func NewState(n int) *State {
	if n < 1 {
		panic(fmt.Sprintf("%d", n))
	}
	shape := make([]int, n)
	for i := range shape {
		shape[i] = 2
	}
	s := &State{n: n, amps: tensor.Zeros(shape...)}
	s.amps.SetAt(make([]int, n), 1)
	return s
}

// Reference returns the Hartree-Fock reference |1..1 0..0> with the first
// nocc modes occupied.
func Reference(n, nocc int) *State {
	if nocc < 0 || nocc > n {
		panic(fmt.Sprintf("%d %d", nocc, n))
	}
	s := NewState(n)
	zero := make([]int, n)
	ref := make([]int, n)
	for p := 0; p < nocc; p++ {
		ref[p] = 1
	}
	s.amps.SetAt(zero, 0)
	s.amps.SetAt(ref, 1)
	return s
}

func (s *State) NumQubits() int { return s.n }

func (s *State) Clone() *State {
	shape := s.amps.Shape()
	c := &State{n: s.n, amps: tensor.Zeros(1)}
	c.amps.Reset(shape...).Set(make([]int, len(shape)), s.amps)
	return c
}

// Givens applies the fermionic Givens rotation between modes p and q,
// rotating the mode operators by the plane rotation with
// V_pp = cos(theta), V_qp = sin(theta), V_pq = -sin(theta), V_qq = cos(theta).
// Modes need not be adjacent; the Jordan-Wigner parity string is exact.
func (s *State) Givens(p, q int, theta float64) {
	if p == q || p < 0 || q < 0 || p >= s.n || q >= s.n {
		panic(fmt.Sprintf("%d %d", p, q))
	}
	c := complex(float32(math.Cos(theta)), 0)
	sn := float32(math.Sin(theta))

	lo, hi := p, q
	if lo > hi {
		lo, hi = hi, lo
	}

	x := make([]int, s.n)
	y := make([]int, s.n)
	for i := 0; i < 1<<s.n; i++ {
		bits(x, s.n, i)
		// Each coupled pair is visited once, at its p-occupied member.
		if x[p] != 1 || x[q] != 0 {
			continue
		}
		copy(y, x)
		y[p], y[q] = 0, 1

		// Parity of the modes strictly between p and q.
		eta := float32(1)
		for m := lo + 1; m < hi; m++ {
			if x[m] == 1 {
				eta = -eta
			}
		}

		ax := s.amps.At(x...)
		ay := s.amps.At(y...)
		es := complex(eta*sn, 0)
		s.amps.SetAt(x, c*ax-es*ay)
		s.amps.SetAt(y, es*ax+c*ay)
	}
}

// Probabilities returns the Born-rule distribution over basis states, indexed
// with mode 0 as the most significant bit.
func (s *State) Probabilities() []float64 {
	probs := make([]float64, 1<<s.n)
	idx := make([]int, s.n)
	for i := range probs {
		bits(idx, s.n, i)
		a := s.amps.At(idx...)
		probs[i] = float64(real(a)*real(a) + imag(a)*imag(a))
	}
	return probs
}

// Amplitude returns the amplitude of the basis state with the given
// occupations.
func (s *State) Amplitude(occ []int) complex64 {
	return s.amps.At(occ...)
}

// bits writes the binary digits of i into buf, mode 0 first.
func bits(buf []int, n, i int) {
	for b := 0; b < n; b++ {
		buf[n-1-b] = (i >> b) & 1
	}
}
