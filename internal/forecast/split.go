package forecast

import (
	"math"
	"math/rand/v2"
)

// TrainTestSplit shuffles row indices with a fixed seed and holds out
// ceil(n*testFraction) of them. The same (n, testFraction, seed) always
// yields the same partition.
func TrainTestSplit(n int, testFraction float64, seed uint64) (train, test []int) {
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	return perm[nTest:], perm[:nTest]
}
