package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

func identityRole(role string) string { return role }

func selectorState(stage domain.Stage) domain.InterviewState {
	return domain.InterviewState{Role: "backend", Stage: stage, Difficulty: 2}
}

func TestSelectFollowUpFirst(t *testing.T) {
	bank := newFakeBank()
	bank.followUps["Databases"] = []string{"Which index type did you choose?", "How did you verify the plan?"}
	sel := NewQuestionSelector(testConfig(), bank, identityRole)
	ledger := domain.NewTopicLedger()
	ledger.Entry("Databases") // active

	prev := &lastTurn{Topic: "Databases", Answer: goodAnswer, Score: 60}
	got := sel.Select(context.Background(), newFakeGate(), selectorState(domain.StageCore), ledger, domain.NewSkillProfile(), prev, map[string]struct{}{})

	assert.Equal(t, SourceFollowUp, got.Source)
	assert.Equal(t, "Which index type did you choose?", got.Question.Text)
	assert.Equal(t, 1, ledger.Entry("Databases").FollowUps)
}

func TestSelectFollowUpCapEnforced(t *testing.T) {
	bank := newFakeBank()
	bank.followUps["Databases"] = []string{"one", "two", "three", "four"}
	bank.questions[domain.StageCore] = []domain.BankQuestion{
		{Text: "core question", Topic: "API Design", Difficulty: 2},
	}
	sel := NewQuestionSelector(testConfig(), bank, identityRole)
	ledger := domain.NewTopicLedger()
	ledger.Entry("Databases")
	prev := &lastTurn{Topic: "Databases", Answer: goodAnswer, Score: 60}

	followUps := 0
	for i := 0; i < 5; i++ {
		got := sel.Select(context.Background(), newFakeGate(), selectorState(domain.StageCore), ledger, domain.NewSkillProfile(), prev, map[string]struct{}{})
		if got.Source == SourceFollowUp {
			followUps++
		}
	}
	assert.Equal(t, 2, followUps, "never more than FollowUpCap follow-ups per topic")
	assert.Equal(t, 2, ledger.Entry("Databases").FollowUps)
}

func TestSelectNoFollowUpOnSkippedTopic(t *testing.T) {
	bank := newFakeBank()
	bank.followUps["Databases"] = []string{"one", "two"}
	bank.questions[domain.StageCore] = []domain.BankQuestion{
		{Text: "core question", Topic: "API Design", Difficulty: 2},
	}
	sel := NewQuestionSelector(testConfig(), bank, identityRole)
	ledger := domain.NewTopicLedger()
	ledger.Entry("Databases").Status = domain.TopicSkipped

	prev := &lastTurn{Topic: "Databases", Answer: "I have never worked with databases", Score: 10}
	got := sel.Select(context.Background(), newFakeGate(), selectorState(domain.StageCore), ledger, domain.NewSkillProfile(), prev, map[string]struct{}{})

	assert.Equal(t, SourceBank, got.Source)
	assert.NotEqual(t, "Databases", got.Question.Topic, "moved off the skipped topic")
}

func TestSelectWrapUpSkipsFollowUps(t *testing.T) {
	bank := newFakeBank()
	bank.followUps["Databases"] = []string{"one", "two"}
	bank.questions[domain.StageWrapUp] = []domain.BankQuestion{
		{Text: "Any questions for us?", Topic: "Experience", Difficulty: 2},
	}
	sel := NewQuestionSelector(testConfig(), bank, identityRole)
	ledger := domain.NewTopicLedger()
	ledger.Entry("Databases") // active, cap not reached

	prev := &lastTurn{Topic: "Databases", Answer: goodAnswer, Score: 60}
	got := sel.Select(context.Background(), newFakeGate(), selectorState(domain.StageWrapUp), ledger, domain.NewSkillProfile(), prev, map[string]struct{}{})

	assert.Equal(t, SourceBank, got.Source)
	assert.Zero(t, ledger.Entry("Databases").FollowUps)
}

func TestSelectBankExcludesUsedQuestions(t *testing.T) {
	bank := newFakeBank()
	bank.questions[domain.StageCore] = []domain.BankQuestion{
		{Text: "first", Topic: "API Design", Difficulty: 2},
		{Text: "second", Topic: "Databases", Difficulty: 2},
	}
	sel := NewQuestionSelector(testConfig(), bank, identityRole)
	used := map[string]struct{}{"first": {}}

	got := sel.Select(context.Background(), newFakeGate(), selectorState(domain.StageCore), domain.NewTopicLedger(), domain.NewSkillProfile(), nil, used)
	assert.Equal(t, SourceBank, got.Source)
	assert.Equal(t, "second", got.Question.Text)
}

func TestSelectContextualTiers(t *testing.T) {
	sel := NewQuestionSelector(testConfig(), newFakeBank(), identityRole)

	tests := []struct {
		name     string
		prev     *lastTurn
		contains string
	}{
		{
			name:     "probes a mentioned technology",
			prev:     &lastTurn{Topic: "Caching", Answer: "We put redis in front of the database.", Score: 60},
			contains: "redis",
		},
		{
			name:     "asks weak answers for detail",
			prev:     &lastTurn{Topic: "API Design", Answer: "we just did the usual thing there honestly speaking", Score: 20},
			contains: "concrete detail",
		},
		{
			name:     "pushes strong answers further",
			prev:     &lastTurn{Topic: "System Design", Answer: "we sharded by tenant and kept hot tenants isolated cleanly", Score: 90},
			contains: "ten times the scale",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sel.Select(context.Background(), newFakeGate(), selectorState(domain.StageCore), domain.NewTopicLedger(), domain.NewSkillProfile(), tt.prev, map[string]struct{}{})
			assert.Equal(t, SourceContextual, got.Source)
			assert.Contains(t, got.Question.Text, tt.contains)
			assert.Equal(t, tt.prev.Topic, got.Question.Topic)
		})
	}
}

func TestSelectExternalPlanning(t *testing.T) {
	sel := NewQuestionSelector(testConfig(), newFakeBank(), identityRole)
	gate := newFakeGate()
	gate.payloads[domain.CallPlanQuestion] = domain.PlannedQuestion{
		Question: "How would you roll out a breaking schema change with zero downtime?",
		Topic:    "Databases",
	}

	// Empty bank, no previous turn: only planning remains.
	got := sel.Select(context.Background(), gate, selectorState(domain.StageDeepDive), domain.NewTopicLedger(), domain.NewSkillProfile(), nil, map[string]struct{}{})

	require.Equal(t, SourceExternal, got.Source)
	assert.Equal(t, "Databases", got.Question.Topic)
	assert.Equal(t, []domain.CallKind{domain.CallPlanQuestion}, gate.kinds())
}

func TestSelectGenericFallbackOnMismatchedPlanningPayload(t *testing.T) {
	sel := NewQuestionSelector(testConfig(), newFakeBank(), identityRole)
	gate := newFakeGate()
	gate.payloads[domain.CallPlanQuestion] = map[string]int{"not": 1}

	got := sel.Select(context.Background(), gate, selectorState(domain.StageDeepDive), domain.NewTopicLedger(), domain.NewSkillProfile(), nil, map[string]struct{}{})

	assert.Equal(t, SourceGeneric, got.Source)
	assert.NotEmpty(t, got.Question.Text)
}

func TestSelectGenericFallbackWhenPlanningFails(t *testing.T) {
	sel := NewQuestionSelector(testConfig(), newFakeBank(), identityRole)

	got := sel.Select(context.Background(), failingGate(domain.FallbackQuotaReached), selectorState(domain.StageDeepDive), domain.NewTopicLedger(), domain.NewSkillProfile(), nil, map[string]struct{}{})

	assert.Equal(t, SourceGeneric, got.Source)
	assert.NotEmpty(t, got.Question.Text)
	assert.Equal(t, GeneralTopic, got.Question.Topic)
}

func TestStageForQuestionMonotonic(t *testing.T) {
	for _, total := range []int{5, 8, 12, 20} {
		last := StageForQuestion(0, total)
		assert.Equal(t, domain.StageBackground, last)
		for i := 1; i < total; i++ {
			cur := StageForQuestion(i, total)
			assert.GreaterOrEqual(t, stageRank(cur), stageRank(last), "total=%d index=%d", total, i)
			last = cur
		}
		assert.Equal(t, domain.StageWrapUp, StageForQuestion(total-1, total))
	}
}

func TestPhaseForQuestion(t *testing.T) {
	assert.Equal(t, domain.PhaseIntro, PhaseForQuestion(0, 12))
	assert.Equal(t, domain.PhaseCore, PhaseForQuestion(4, 12))
	assert.Equal(t, domain.PhaseDeepDive, PhaseForQuestion(8, 12))
	assert.Equal(t, domain.PhaseWrapUp, PhaseForQuestion(11, 12))
}
