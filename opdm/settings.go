// Package opdm estimates one-particle reduced density matrices from sampled
// measurement outcomes, and post-processes them into physical estimators.
package opdm

// Rounds partitions all mode pairs of an n-mode system into rounds of
// disjoint pairs, using the circle method of round-robin scheduling. Each
// round is one measurement setting; every unordered pair appears in exactly
// one round.
func Rounds(n int) [][][2]int {
	topN := n
	if topN%2 == 1 {
		topN++ // dummy mode, its pairs are dropped
	}
	idx := make([]int, topN)
	for i := range idx {
		idx[i] = i
	}

	rounds := make([][][2]int, 0, topN-1)
	for r := 0; r < topN-1; r++ {
		pairs := make([][2]int, 0, topN/2)
		for i := 0; i < topN/2; i++ {
			a, b := idx[i], idx[topN-1-i]
			if a >= n || b >= n {
				continue
			}
			if a > b {
				a, b = b, a
			}
			pairs = append(pairs, [2]int{a, b})
		}
		rounds = append(rounds, pairs)

		// Hold idx[0] fixed, rotate the rest.
		last := idx[topN-1]
		copy(idx[2:], idx[1:topN-1])
		idx[1] = last
	}
	return rounds
}
