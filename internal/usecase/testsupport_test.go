package usecase

import (
	"sync"
	"time"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

func testConfig() config.Config {
	return config.Config{
		AppEnv:               "test",
		FastModel:            "fast/model",
		StrongModel:          "strong/model",
		PlannerModel:         "planner/model",
		MaxReasoningCalls:    12,
		MinCallSpacing:       0,
		ReasoningTimeout:     time.Second,
		MaxTranscriptToken:   6000,
		TotalQuestions:       12,
		FollowUpCap:          2,
		ExternalEvalInterval: 3,
		LowScoreThreshold:    40,
		HighScoreThreshold:   75,
		CompletionScore:      70,
		ShortAnswerWords:     8,
		ToxicKeywords:        []string{"idiot", "stupid", "shut up"},
		FastAnswerLatency:    500 * time.Millisecond,
		FastAnswerWords:      80,
		MaxEvidencePerSkill:  5,
	}
}

// fakeGate is a scriptable CallGate: it returns the configured payload per
// call kind, or the configured fallback for every call when failing.
type fakeGate struct {
	mu       sync.Mutex
	calls    []domain.CallRequest
	failWith domain.FallbackReason // when set, every call fails
	payloads map[domain.CallKind]any
	degraded bool
}

func newFakeGate() *fakeGate {
	return &fakeGate{payloads: make(map[domain.CallKind]any)}
}

func failingGate(reason domain.FallbackReason) *fakeGate {
	g := newFakeGate()
	g.failWith = reason
	g.degraded = true
	return g
}

func (g *fakeGate) Call(_ domain.Context, req domain.CallRequest) domain.CallResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.failWith != domain.FallbackNone {
		return domain.CallResult{FallbackReason: g.failWith}
	}
	payload, ok := g.payloads[req.Kind]
	if !ok {
		return domain.CallResult{FallbackReason: domain.FallbackServiceError}
	}
	return domain.CallResult{OK: true, FromExternal: true, Payload: payload}
}

func (g *fakeGate) Budget() domain.BudgetSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.BudgetSnapshot{
		CallsUsed: len(g.calls),
		MaxCalls:  12,
		Degraded:  g.degraded,
	}
}

func (g *fakeGate) kinds() []domain.CallKind {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.CallKind, 0, len(g.calls))
	for _, c := range g.calls {
		out = append(out, c.Kind)
	}
	return out
}

// fakeBank is a tiny deterministic QuestionBank for selector and
// orchestrator tests.
type fakeBank struct {
	questions map[domain.Stage][]domain.BankQuestion
	followUps map[string][]string
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		questions: map[domain.Stage][]domain.BankQuestion{},
		followUps: map[string][]string{},
	}
}

func (b *fakeBank) Lookup(_ string, stage domain.Stage, difficulty int, exclude map[string]struct{}) (domain.BankQuestion, error) {
	for _, d := range []int{difficulty, difficulty - 1, difficulty + 1} {
		for _, q := range b.questions[stage] {
			if q.Difficulty != d {
				continue
			}
			if _, used := exclude[q.Text]; used {
				continue
			}
			return q, nil
		}
	}
	return domain.BankQuestion{}, domain.ErrNotFound
}

func (b *fakeBank) FollowUp(topic string, n int) (string, error) {
	scripted := b.followUps[topic]
	if n < 0 || n >= len(scripted) {
		return "", domain.ErrNotFound
	}
	return scripted[n], nil
}
