package circuit

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Sampler draws measurement outcomes from a prepared basis-rotation ansatz.
// With zero shots it reports exact Born-rule expectations.
type Sampler struct {
	state *State
	rng   *rand.Rand

	// ReadoutError is the probability that a measured bit is flipped,
	// independently per qubit and shot.
	ReadoutError float64
}

// NewSampler prepares the Slater determinant of the orthogonal orbital
// rotation u with nocc occupied modes.
func NewSampler(u mat.Matrix, nocc int, rng *rand.Rand) *Sampler {
	return &Sampler{state: Prepare(u, nocc), rng: rng}
}

func (s *Sampler) Modes() int { return s.state.NumQubits() }

// Counts samples shot bitstrings after appending a pi/4 Givens rotation for
// every pair in pairs. Keys are occupation strings with mode 0 first.
func (s *Sampler) Counts(pairs [][2]int, shots int) (map[string]int, error) {
	if shots <= 0 {
		return nil, errors.Errorf("%d shots", shots)
	}
	probs := s.rotated(pairs).Probabilities()

	cum := make([]float64, len(probs))
	var total float64
	for i, p := range probs {
		total += p
		cum[i] = total
	}

	n := s.Modes()
	occ := make([]int, n)
	var sb strings.Builder
	counts := make(map[string]int)
	for shot := 0; shot < shots; shot++ {
		r := s.rng.Float64() * total
		i := sort.SearchFloat64s(cum, r)
		if i >= len(probs) {
			i = len(probs) - 1
		}
		bits(occ, n, i)
		if s.ReadoutError > 0 {
			for b := range occ {
				if s.rng.Float64() < s.ReadoutError {
					occ[b] = 1 - occ[b]
				}
			}
		}

		sb.Reset()
		for _, b := range occ {
			sb.WriteByte('0' + byte(b))
		}
		counts[sb.String()]++
	}
	return counts, nil
}

// Occupations estimates the per-mode occupations under the measurement
// setting given by pairs, together with their shot-noise variances.
func (s *Sampler) Occupations(pairs [][2]int, shots int) ([]float64, []float64, error) {
	n := s.Modes()
	mean := make([]float64, n)
	variance := make([]float64, n)

	if shots == 0 {
		probs := s.rotated(pairs).Probabilities()
		occ := make([]int, n)
		for i, p := range probs {
			bits(occ, n, i)
			for m, b := range occ {
				if b == 1 {
					mean[m] += p
				}
			}
		}
		if s.ReadoutError > 0 {
			for m := range mean {
				mean[m] = (1-2*s.ReadoutError)*mean[m] + s.ReadoutError
			}
		}
		return mean, variance, nil
	}

	counts, err := s.Counts(pairs, shots)
	if err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	for key, c := range counts {
		for m := 0; m < n; m++ {
			if key[m] == '1' {
				mean[m] += float64(c)
			}
		}
	}
	for m := range mean {
		mean[m] /= float64(shots)
		variance[m] = mean[m] * (1 - mean[m]) / float64(shots)
	}
	return mean, variance, nil
}

// rotated clones the ansatz state and applies the measurement rotations.
func (s *Sampler) rotated(pairs [][2]int) *State {
	if len(pairs) == 0 {
		return s.state
	}
	st := s.state.Clone()
	for _, pq := range pairs {
		st.Givens(pq[0], pq[1], measureTheta)
	}
	return st
}

// measureTheta is the rotation angle whose occupation difference reads out
// the real part of the off-diagonal 1-RDM element.
const measureTheta = 0.7853981633974483 // pi/4
