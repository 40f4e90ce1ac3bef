package review

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, mean(nil), "no reviews means no rating")
	assert.Equal(t, 5.0, mean([]int{5}))
	assert.Equal(t, 3.0, mean([]int{1, 5}))
	assert.InDelta(t, 4.333, mean([]int{4, 4, 5}), 0.001)
}

func TestMeanStaysWithinRatingBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		n := 1 + rng.Intn(50)
		ratings := make([]int, n)
		for j := range ratings {
			ratings[j] = 1 + rng.Intn(5)
		}
		avg := mean(ratings)
		assert.GreaterOrEqual(t, avg, 1.0)
		assert.LessOrEqual(t, avg, 5.0)
	}
}
