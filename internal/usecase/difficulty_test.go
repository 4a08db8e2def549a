package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

func TestDifficultyBoundedStep(t *testing.T) {
	d := NewDifficultyController(testConfig())

	for current := domain.DifficultyMin; current <= domain.DifficultyMax; current++ {
		for score := 0; score <= 100; score += 5 {
			for rec := 0; rec <= domain.DifficultyMax; rec++ {
				next := d.Next(current, score, rec)
				assert.GreaterOrEqual(t, next, domain.DifficultyMin)
				assert.LessOrEqual(t, next, domain.DifficultyMax)
				assert.LessOrEqual(t, abs(next-current), 1,
					"current=%d score=%d rec=%d next=%d", current, score, rec, next)
			}
		}
	}
}

func TestDifficultyDirection(t *testing.T) {
	d := NewDifficultyController(testConfig())

	assert.Equal(t, 2, d.Next(3, 20, 0), "low score steps down")
	assert.Equal(t, 4, d.Next(3, 90, 0), "high score steps up")
	assert.Equal(t, 3, d.Next(3, 55, 0), "mid score holds")
	assert.Equal(t, 1, d.Next(1, 5, 0), "clamped at the floor")
	assert.Equal(t, 5, d.Next(5, 99, 0), "clamped at the ceiling")
}

func TestDifficultyExternalRecommendation(t *testing.T) {
	d := NewDifficultyController(testConfig())

	assert.Equal(t, 4, d.Next(3, 55, 4), "recommendation within a step is taken")
	assert.Equal(t, 4, d.Next(3, 55, 5), "far recommendation bounded to one step")
	assert.Equal(t, 2, d.Next(3, 55, 1), "downward recommendation bounded too")
	assert.Equal(t, 3, d.Next(3, 55, 0), "zero means no recommendation")
	// Out-of-range recommendations are ignored, not clamped into effect.
	assert.Equal(t, 4, d.Next(3, 90, 7))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
