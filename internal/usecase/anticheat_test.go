package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
	"github.com/fairyhunter13/ai-interview-pipeline/pkg/lexical"
)

func analyzeAnswer(answer string) domain.LexicalMetrics {
	return domain.LexicalMetrics{
		WordCount:       lexical.WordCount(answer),
		UniqueWordRatio: lexical.UniqueWordRatio(answer),
	}
}

func turnWith(answer string, latency time.Duration) domain.TurnRecord {
	return domain.TurnRecord{
		Index:           1,
		Answer:          answer,
		ResponseLatency: latency,
		Metrics:         analyzeAnswer(answer),
	}
}

func TestInspectTurnSignals(t *testing.T) {
	d := NewAntiCheatDetector(testConfig())

	longAnswer := ""
	for i := 0; i < 85; i++ {
		longAnswer += fmt.Sprintf("word%d ", i)
	}
	repeated := ""
	for i := 0; i < 50; i++ {
		repeated += "same old thing "
	}

	tests := []struct {
		name    string
		turn    domain.TurnRecord
		code    string
		sev     domain.Severity
		absence bool
	}{
		{
			name: "pasted answer arrives too fast",
			turn: turnWith(longAnswer, 200*time.Millisecond),
			code: domain.SignalTooFastLongAnswer,
			sev:  domain.SeverityHigh,
		},
		{
			name: "near-empty answer",
			turn: turnWith("no idea", 5*time.Second),
			code: domain.SignalLowEffort,
			sev:  domain.SeverityLow,
		},
		{
			name: "padded repetition",
			turn: turnWith(repeated, 30*time.Second),
			code: domain.SignalRepetitive,
			sev:  domain.SeverityMedium,
		},
		{
			name: "toxic content",
			turn: turnWith("this question is stupid and so are you", 10*time.Second),
			code: domain.SignalToxicContent,
			sev:  domain.SeverityHigh,
		},
		{
			name:    "ordinary answer raises nothing",
			turn:    turnWith(goodAnswer, 20*time.Second),
			absence: true,
		},
		{
			name:    "long answer at human speed is fine",
			turn:    turnWith(longAnswer, 90*time.Second),
			code:    domain.SignalTooFastLongAnswer,
			absence: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := d.InspectTurn(tt.turn)
			if tt.absence {
				for _, s := range signals {
					assert.NotEqual(t, tt.code, s.Code)
				}
				if tt.code == "" {
					assert.Empty(t, signals)
				}
				return
			}
			require.Len(t, signals, 1)
			assert.Equal(t, tt.code, signals[0].Code)
			assert.Equal(t, tt.sev, signals[0].Severity)
			assert.Equal(t, tt.turn.Index, signals[0].TurnIndex)
		})
	}
}

func TestAuditUsesExternalFinding(t *testing.T) {
	d := NewAntiCheatDetector(testConfig())
	gate := newFakeGate()
	gate.payloads[domain.CallAntiCheatAudit] = domain.AuditFinding{
		RiskScore: 72,
		Flags:     []string{"answers read like documentation excerpts"},
		Verdict:   "suspicious",
	}
	signals := []domain.AntiCheatSignal{
		{Code: domain.SignalTooFastLongAnswer, Severity: domain.SeverityHigh, TurnIndex: 2},
	}

	report := d.Audit(context.Background(), gate, "Q1 ...", nil, signals)

	assert.False(t, report.HeuristicOnly)
	assert.Equal(t, 72, report.RiskScore)
	assert.Equal(t, domain.VerdictSuspicious, report.Verdict)
	assert.Equal(t, signals, report.Signals, "per-turn signals kept alongside the audit")
}

func TestAuditMismatchedPayloadUsesHeuristics(t *testing.T) {
	d := NewAntiCheatDetector(testConfig())
	gate := newFakeGate()
	gate.payloads[domain.CallAntiCheatAudit] = "not an audit finding"

	report := d.Audit(context.Background(), gate, "Q1 ...", nil, nil)

	assert.True(t, report.HeuristicOnly)
	assert.Equal(t, domain.VerdictClean, report.Verdict)
}

func TestAuditHeuristicFallback(t *testing.T) {
	d := NewAntiCheatDetector(testConfig())

	tests := []struct {
		name    string
		signals []domain.AntiCheatSignal
		turns   []domain.TurnRecord
		verdict domain.CheatVerdict
	}{
		{
			name:    "no signals is clean",
			verdict: domain.VerdictClean,
		},
		{
			name: "toxic content alone is cheating",
			signals: []domain.AntiCheatSignal{
				{Code: domain.SignalToxicContent, Severity: domain.SeverityHigh},
			},
			verdict: domain.VerdictCheating,
		},
		{
			name: "two high-severity signals is cheating",
			signals: []domain.AntiCheatSignal{
				{Code: domain.SignalTooFastLongAnswer, Severity: domain.SeverityHigh, TurnIndex: 1},
				{Code: domain.SignalTooFastLongAnswer, Severity: domain.SeverityHigh, TurnIndex: 4},
			},
			verdict: domain.VerdictCheating,
		},
		{
			name: "accumulated medium signals are suspicious",
			signals: []domain.AntiCheatSignal{
				{Code: domain.SignalRepetitive, Severity: domain.SeverityMedium},
				{Code: domain.SignalRepetitive, Severity: domain.SeverityMedium},
				{Code: domain.SignalRepetitive, Severity: domain.SeverityMedium},
				{Code: domain.SignalLowEffort, Severity: domain.SeverityLow},
			},
			verdict: domain.VerdictSuspicious,
		},
		{
			name: "mostly empty transcript is suspicious",
			signals: []domain.AntiCheatSignal{
				{Code: domain.SignalRepetitive, Severity: domain.SeverityMedium},
				{Code: domain.SignalRepetitive, Severity: domain.SeverityMedium},
				{Code: domain.SignalLowEffort, Severity: domain.SeverityLow},
			},
			turns: []domain.TurnRecord{
				{Metrics: domain.LexicalMetrics{WordCount: 2}},
				{Metrics: domain.LexicalMetrics{WordCount: 1}},
				{Metrics: domain.LexicalMetrics{WordCount: 60}},
			},
			verdict: domain.VerdictSuspicious,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := d.Audit(context.Background(), failingGate(domain.FallbackQuotaReached), "", tt.turns, tt.signals)
			assert.True(t, report.HeuristicOnly)
			assert.Equal(t, tt.verdict, report.Verdict)
			assert.LessOrEqual(t, report.RiskScore, 100)
		})
	}
}

func TestHeuristicRiskCapped(t *testing.T) {
	d := NewAntiCheatDetector(testConfig())
	signals := make([]domain.AntiCheatSignal, 10)
	for i := range signals {
		signals[i] = domain.AntiCheatSignal{Code: domain.SignalTooFastLongAnswer, Severity: domain.SeverityHigh, TurnIndex: i}
	}
	report := d.Audit(context.Background(), failingGate(domain.FallbackServiceError), "", nil, signals)
	assert.Equal(t, 100, report.RiskScore)
	assert.Equal(t, domain.VerdictCheating, report.Verdict)
}
