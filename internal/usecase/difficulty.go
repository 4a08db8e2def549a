package usecase

import (
	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

// DifficultyController adjusts difficulty by at most one level per turn,
// clamped to [1,5]. An external recommendation may replace the step rule but
// is clamped to the same bounds and may still only move one level.
type DifficultyController struct {
	cfg config.Config
}

// NewDifficultyController constructs the controller.
func NewDifficultyController(cfg config.Config) *DifficultyController {
	return &DifficultyController{cfg: cfg}
}

// Next returns the difficulty for the coming turn. recommended is an external
// suggestion, 0 when absent.
func (d *DifficultyController) Next(current, lastScore, recommended int) int {
	next := current
	switch {
	case lastScore < d.cfg.LowScoreThreshold:
		next = current - 1
	case lastScore > d.cfg.HighScoreThreshold:
		next = current + 1
	}

	if recommended >= domain.DifficultyMin && recommended <= domain.DifficultyMax {
		// The recommendation wins, bounded to one step from where we are.
		next = boundStep(current, recommended)
	}
	return clampDifficulty(next)
}

func boundStep(current, target int) int {
	if target > current+1 {
		return current + 1
	}
	if target < current-1 {
		return current - 1
	}
	return target
}

func clampDifficulty(d int) int {
	if d < domain.DifficultyMin {
		return domain.DifficultyMin
	}
	if d > domain.DifficultyMax {
		return domain.DifficultyMax
	}
	return d
}
