package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

const goodAnswer = "First I profiled the slow query and found a missing index. " +
	"For example, in my project we cut p99 latency from 900ms to 90ms by adding " +
	"a covering index and then rewriting the join order. Finally we added a " +
	"dashboard tracking query latency so regressions surface within 5 minutes."

func TestHeuristicScoreBounds(t *testing.T) {
	h := NewHeuristicEvaluator(testConfig())

	answers := []string{
		"",
		"yes",
		goodAnswer,
		strings.Repeat("the same words again and again ", 50),
		"you are an idiot",
		"I don't know anything about that",
		strings.Repeat("a comprehensive answer with many distinct technical words covering replication sharding caching indexing ", 20),
	}
	for _, answer := range answers {
		eval := h.Evaluate(answer, nil)
		assert.GreaterOrEqual(t, eval.Score, 0, "answer: %.40s", answer)
		assert.LessOrEqual(t, eval.Score, 100, "answer: %.40s", answer)
	}
}

func TestHeuristicIdempotent(t *testing.T) {
	h := NewHeuristicEvaluator(testConfig())
	keywords := []string{"index", "latency", "join"}

	first := h.Evaluate(goodAnswer, keywords)
	second := h.Evaluate(goodAnswer, keywords)
	assert.Equal(t, first, second)
}

func TestHeuristicHardCaps(t *testing.T) {
	h := NewHeuristicEvaluator(testConfig())

	toxic := h.Evaluate("this question is stupid and so are you "+goodAnswer, nil)
	assert.LessOrEqual(t, toxic.Score, toxicScoreCap)

	noExp := h.Evaluate("I have no experience with that at all, sorry", nil)
	assert.LessOrEqual(t, noExp.Score, noExperienceScoreCap)

	refusal := h.Evaluate("I refuse, next question please", nil)
	assert.LessOrEqual(t, refusal.Score, refusalScoreCap)
}

func TestHeuristicKeywordCoverageDominates(t *testing.T) {
	h := NewHeuristicEvaluator(testConfig())
	keywords := []string{"index", "latency", "join", "covering", "dashboard"}

	covered := h.Evaluate(goodAnswer, keywords)
	uncovered := h.Evaluate("We talked about general approaches to making things faster overall in the system for quite a while.", keywords)
	assert.Greater(t, covered.Score, uncovered.Score+20)
}

func TestQualityFromScore(t *testing.T) {
	assert.Equal(t, domain.TierExcellent, QualityFromScore(90))
	assert.Equal(t, domain.TierGood, QualityFromScore(70))
	assert.Equal(t, domain.TierAverage, QualityFromScore(50))
	assert.Equal(t, domain.TierWeak, QualityFromScore(30))
	assert.Equal(t, domain.TierUnacceptable, QualityFromScore(10))
}

func TestTurnEvaluatorSkipsShortAnswers(t *testing.T) {
	gate := newFakeGate()
	te := NewTurnEvaluator(testConfig(), NewHeuristicEvaluator(testConfig()))

	eval := te.Evaluate(context.Background(), gate, 0, "Backend Engineer", domain.BankQuestion{Text: "q"}, "just a few words", nil)
	assert.Equal(t, domain.ProvenanceHeuristic, eval.Provenance)
	assert.Empty(t, gate.kinds(), "short answers never spend budget")
}

func TestTurnEvaluatorFirstTurnExternal(t *testing.T) {
	gate := newFakeGate()
	gate.payloads[domain.CallEvaluateTurn] = domain.TurnAssessment{
		Score: 82, Quality: "good",
		Strengths:             []string{"specific"},
		SkillDeltas:           map[string]int{"SQL": 6},
		RecommendedDifficulty: 3,
	}
	te := NewTurnEvaluator(testConfig(), NewHeuristicEvaluator(testConfig()))

	eval := te.Evaluate(context.Background(), gate, 0, "Backend Engineer", domain.BankQuestion{Text: "q"}, goodAnswer, domain.NewSkillProfile())
	require.Equal(t, domain.ProvenanceExternal, eval.Provenance)
	assert.Equal(t, 82, eval.Score)
	assert.Equal(t, domain.TierGood, eval.Quality)
	assert.Equal(t, 6, eval.SkillDeltas["SQL"])
	assert.Equal(t, 3, eval.RecommendedDifficulty)
	// Lexical metrics always come from the local pass.
	assert.Greater(t, eval.Metrics.WordCount, 0)
}

func TestTurnEvaluatorThrottlesExternalScoring(t *testing.T) {
	gate := newFakeGate()
	gate.payloads[domain.CallEvaluateTurn] = domain.TurnAssessment{Score: 60, Quality: "average"}
	te := NewTurnEvaluator(testConfig(), NewHeuristicEvaluator(testConfig()))

	external := 0
	for i := 0; i < 9; i++ {
		eval := te.Evaluate(context.Background(), gate, i, "r", domain.BankQuestion{}, goodAnswer, nil)
		if eval.Provenance == domain.ProvenanceExternal {
			external++
		}
	}
	// Turns 0, 3 and 6 of nine (interval 3).
	assert.Equal(t, 3, external)
	assert.Len(t, gate.kinds(), 3)
}

func TestTurnEvaluatorFallsBackOnGateFailure(t *testing.T) {
	te := NewTurnEvaluator(testConfig(), NewHeuristicEvaluator(testConfig()))

	eval := te.Evaluate(context.Background(), failingGate(domain.FallbackQuotaReached), 0, "r", domain.BankQuestion{}, goodAnswer, nil)
	assert.Equal(t, domain.ProvenanceHeuristic, eval.Provenance)
	assert.GreaterOrEqual(t, eval.Score, 0)
	assert.LessOrEqual(t, eval.Score, 100)
}
