package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

func sampleTurns() []domain.TurnRecord {
	return []domain.TurnRecord{
		{
			Index: 0, Question: "Tell me about your background.", Answer: "Six years of backend work.",
			Topic: "Experience", Difficulty: 2, Score: 60, Quality: domain.TierAverage,
			Strengths: []string{"backs claims with numbers"},
		},
		{
			Index: 1, Question: "How do you design an API?", Answer: goodAnswer,
			Topic: "API Design", Difficulty: 3, Score: 80, Quality: domain.TierGood,
			Strengths:  []string{"backs claims with numbers"},
			Weaknesses: []string{"light on tradeoffs"},
		},
	}
}

func draftPayload() domain.DraftEvaluation {
	return domain.DraftEvaluation{
		OverallScore: 68,
		Verdict:      "lean_hire",
		Strengths:    []string{"clear structure"},
		Weaknesses:   []string{"little depth on databases"},
		SkillScores:  map[string]int{"Go": 70},
		Summary:      "Capable backend candidate with room to grow.",
	}
}

func TestSynthesizeDraftThenRefine(t *testing.T) {
	s := NewSynthesizer(testConfig())
	gate := newFakeGate()
	gate.payloads[domain.CallDraftEval] = draftPayload()
	gate.payloads[domain.CallRefineEval] = domain.RefinedEvaluation{
		DraftEvaluation: domain.DraftEvaluation{
			OverallScore: 72,
			Verdict:      "lean_hire",
			Strengths:    []string{"clear structure", "quantifies impact"},
			Weaknesses:   []string{"little depth on databases"},
			SkillScores:  map[string]int{"Go": 72},
			Summary:      "Capable backend candidate; evidence is consistent across turns.",
		},
		RefinementNotes: "raised overall score to match per-turn evidence",
	}

	final := s.Synthesize(context.Background(), gate, "backend", sampleTurns(), domain.NewSkillProfile(), domain.AntiCheatReport{Verdict: domain.VerdictClean}, false)

	assert.Equal(t, []domain.CallKind{domain.CallDraftEval, domain.CallRefineEval}, gate.kinds())
	assert.Equal(t, 72, final.OverallScore)
	assert.Equal(t, domain.VerdictLeanHire, final.Verdict)
	assert.Equal(t, "raised overall score to match per-turn evidence", final.RefinementNotes)
	assert.False(t, final.Degraded)
	assert.NotContains(t, final.Summary, "Note:")
	assert.False(t, final.CreatedAt.IsZero())
}

func TestSynthesizeMismatchedDraftPayload(t *testing.T) {
	s := NewSynthesizer(testConfig())
	gate := newFakeGate()
	gate.payloads[domain.CallDraftEval] = []string{"wrong", "shape"}

	final := s.Synthesize(context.Background(), gate, "backend", sampleTurns(), domain.NewSkillProfile(), domain.AntiCheatReport{Verdict: domain.VerdictClean}, false)

	assert.True(t, final.Degraded)
	assert.Contains(t, final.Summary, DegradedDisclosure)
}

func TestSynthesizeMismatchedRefinePayload(t *testing.T) {
	s := NewSynthesizer(testConfig())
	gate := newFakeGate()
	gate.payloads[domain.CallDraftEval] = draftPayload()
	gate.payloads[domain.CallRefineEval] = 42

	final := s.Synthesize(context.Background(), gate, "backend", sampleTurns(), domain.NewSkillProfile(), domain.AntiCheatReport{Verdict: domain.VerdictClean}, false)

	assert.Equal(t, 68, final.OverallScore, "draft kept when refinement cannot be decoded")
	assert.Contains(t, final.Summary, "consistency review pass was unavailable")
	assert.Empty(t, final.RefinementNotes)
}

func TestSynthesizeKeepsDraftWhenRefineFails(t *testing.T) {
	s := NewSynthesizer(testConfig())
	gate := newFakeGate()
	gate.payloads[domain.CallDraftEval] = draftPayload()
	// No refine payload scripted: that call fails.

	final := s.Synthesize(context.Background(), gate, "backend", sampleTurns(), domain.NewSkillProfile(), domain.AntiCheatReport{Verdict: domain.VerdictClean}, false)

	assert.Equal(t, 68, final.OverallScore)
	assert.Equal(t, domain.VerdictLeanHire, final.Verdict)
	assert.Contains(t, final.Summary, "Capable backend candidate")
	assert.Contains(t, final.Summary, "consistency review pass was unavailable")
	assert.Empty(t, final.RefinementNotes)
}

func TestSynthesizeLocalFallback(t *testing.T) {
	s := NewSynthesizer(testConfig())
	profile := domain.NewSkillProfile()
	profile.Skills["Go"] = &domain.Skill{Name: "Go", Level: 55}
	report := domain.AntiCheatReport{Verdict: domain.VerdictClean, HeuristicOnly: true}

	final := s.Synthesize(context.Background(), failingGate(domain.FallbackQuotaReached), "backend", sampleTurns(), profile, report, true)

	assert.True(t, final.Degraded)
	assert.Equal(t, 70, final.OverallScore, "mean of 60 and 80")
	assert.Equal(t, domain.VerdictLeanHire, final.Verdict)
	assert.Contains(t, final.Summary, DegradedDisclosure)
	assert.Equal(t, 55, final.SkillScores["Go"])
	assert.Equal(t, []string{"backs claims with numbers"}, final.Strengths)
	assert.Equal(t, []string{"light on tradeoffs"}, final.Weaknesses)
}

func TestLocalFallbackVerdictBands(t *testing.T) {
	s := NewSynthesizer(testConfig())
	gate := failingGate(domain.FallbackServiceError)

	tests := []struct {
		score   int
		verdict domain.HireVerdict
	}{
		{85, domain.VerdictLeanHire},
		{70, domain.VerdictLeanHire},
		{55, domain.VerdictBorderline},
		{30, domain.VerdictNoHire},
		{0, domain.VerdictNoHire},
	}
	for _, tt := range tests {
		turns := []domain.TurnRecord{{Score: tt.score}}
		final := s.Synthesize(context.Background(), gate, "backend", turns, domain.NewSkillProfile(), domain.AntiCheatReport{}, true)
		assert.Equal(t, tt.verdict, final.Verdict, "score %d", tt.score)
	}
}

func TestSynthesizeDegradedWhenAuditHeuristic(t *testing.T) {
	s := NewSynthesizer(testConfig())
	gate := newFakeGate()
	gate.payloads[domain.CallDraftEval] = draftPayload()
	gate.payloads[domain.CallRefineEval] = domain.RefinedEvaluation{DraftEvaluation: draftPayload()}

	final := s.Synthesize(context.Background(), gate, "backend", sampleTurns(), domain.NewSkillProfile(), domain.AntiCheatReport{HeuristicOnly: true}, false)
	assert.True(t, final.Degraded, "heuristic-only audit marks the result degraded")
}

func TestBuildTranscript(t *testing.T) {
	got := BuildTranscript(sampleTurns())

	require.Contains(t, got, "Q1 [Experience, difficulty 2]: Tell me about your background.")
	require.Contains(t, got, "A1 (score 60, average): Six years of backend work.")
	require.Contains(t, got, "Q2 [API Design, difficulty 3]: How do you design an API?")
	assert.NotContains(t, got, "\n\n")
}

func TestCollectTurnNotes(t *testing.T) {
	turns := []domain.TurnRecord{
		{Strengths: []string{"a", "b"}, Weaknesses: []string{"w1"}},
		{Strengths: []string{"b"}, Weaknesses: []string{"w1", "w2"}},
		{Strengths: []string{"b", "c", "d", "e", "f", "g"}},
	}
	strengths, weaknesses := collectTurnNotes(turns)

	require.NotEmpty(t, strengths)
	assert.Equal(t, "b", strengths[0], "most frequent note first")
	assert.Len(t, strengths, 5)
	assert.Equal(t, []string{"w1", "w2"}, weaknesses)
}
