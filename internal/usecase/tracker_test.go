package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

func TestInferTopic(t *testing.T) {
	tr := NewTracker(testConfig())

	assert.Equal(t, "Databases", tr.InferTopic("Databases", "anything", "anything"),
		"bank topic wins when present")
	assert.Equal(t, "Caching", tr.InferTopic("", "How would you invalidate a redis cache?", "use a ttl"))
	assert.Equal(t, GeneralTopic, tr.InferTopic("", "Tell me something interesting.", "hmm"))
}

func TestUpdateTopicTransitions(t *testing.T) {
	tr := NewTracker(testConfig())
	ledger := domain.NewTopicLedger()

	tr.UpdateTopic(ledger, "Databases", "I have never worked with databases", 10)
	assert.Equal(t, domain.TopicSkipped, ledger.Entry("Databases").Status)

	tr.UpdateTopic(ledger, "Caching", goodAnswer, 80)
	assert.Equal(t, domain.TopicCompleted, ledger.Entry("Caching").Status)

	tr.UpdateTopic(ledger, "Networking", goodAnswer, 55)
	assert.Equal(t, domain.TopicActive, ledger.Entry("Networking").Status)
	assert.Equal(t, 55, ledger.Entry("Networking").LastScore)
}

func TestSkillLevelsMonotonicOnRepeatedMentions(t *testing.T) {
	tr := NewTracker(testConfig())
	profile := domain.NewSkillProfile()

	answer := "In python I built a data pipeline processing events. " + goodAnswer
	prev := 0
	for i := 0; i < 10; i++ {
		tr.UpdateSkills(profile, answer, domain.TurnEvaluation{Quality: domain.TierGood})
		level := profile.Skills["Python"].Level
		assert.GreaterOrEqual(t, level, prev, "turn %d", i)
		assert.LessOrEqual(t, level, 100)
		prev = level
	}
	assert.Greater(t, prev, 0)
}

func TestExternalSkillDeltasTakePrecedence(t *testing.T) {
	tr := NewTracker(testConfig())
	profile := domain.NewSkillProfile()

	tr.UpdateSkills(profile, "a python answer", domain.TurnEvaluation{
		Quality:     domain.TierGood,
		SkillDeltas: map[string]int{"Go": 9, "SQL": -3},
	})
	require.Contains(t, profile.Skills, "Go")
	assert.Equal(t, 9, profile.Skills["Go"].Level)
	assert.Equal(t, 0, profile.Skills["SQL"].Level, "negative delta clamped at zero")
	assert.NotContains(t, profile.Skills, "Python", "keyword path skipped when deltas present")
}

func TestEvidenceListBounded(t *testing.T) {
	tr := NewTracker(testConfig())
	profile := domain.NewSkillProfile()

	for i := 0; i < 12; i++ {
		tr.UpdateSkills(profile, fmt.Sprintf("answer %d about python", i), domain.TurnEvaluation{Quality: domain.TierAverage})
	}
	skill := profile.Skills["Python"]
	require.NotNil(t, skill)
	assert.Len(t, skill.Evidence, 5)
	assert.Contains(t, skill.Evidence[4], "answer 11", "newest evidence kept")
}

func TestWeakSkills(t *testing.T) {
	profile := domain.NewSkillProfile()
	profile.Skills["Go"] = &domain.Skill{Name: "Go", Level: 80}
	profile.Skills["SQL"] = &domain.Skill{Name: "SQL", Level: 20}
	profile.Skills["Kafka"] = &domain.Skill{Name: "Kafka", Level: 50}

	weak := WeakSkills(profile)
	assert.Equal(t, []string{"SQL"}, weak)
	assert.Nil(t, WeakSkills(domain.NewSkillProfile()))
}
