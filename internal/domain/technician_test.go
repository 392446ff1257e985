package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithScoreExample(t *testing.T) {
	tech := Technician{ID: "t1", Rating: 4.0, RatingCount: 2}
	change := tech.WithScore(5)

	assert.InDelta(t, 13.0/3.0, change.NewRating, 1e-9)
	assert.Equal(t, 3, change.NewCount)
	assert.Equal(t, 4.0, change.OldRating)
	assert.Equal(t, 2, change.OldCount)
}

func TestFirstScoreBecomesRating(t *testing.T) {
	change := Technician{}.WithScore(3)
	assert.Equal(t, 3.0, change.NewRating)
	assert.Equal(t, 1, change.NewCount)
}

func TestCumulativeMeanMatchesMeanInAnyOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(200)
		scores := make([]int, n)
		sum := 0
		for i := range scores {
			scores[i] = MinRatingScore + rng.Intn(MaxRatingScore)
			sum += scores[i]
		}
		rng.Shuffle(len(scores), func(i, j int) { scores[i], scores[j] = scores[j], scores[i] })

		tech := Technician{}
		for _, s := range scores {
			require.True(t, ValidScore(s))
			change := tech.WithScore(s)
			tech.Rating, tech.RatingCount = change.NewRating, change.NewCount
		}
		assert.Equal(t, n, tech.RatingCount)
		assert.InDelta(t, float64(sum)/float64(n), tech.Rating, 1e-9)
	}
}

func TestValidScore(t *testing.T) {
	assert.False(t, ValidScore(0))
	assert.True(t, ValidScore(1))
	assert.True(t, ValidScore(5))
	assert.False(t, ValidScore(6))
}
