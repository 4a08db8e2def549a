package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
	"github.com/fairyhunter13/ai-interview-pipeline/pkg/lexical"
)

// AntiCheatDetector extracts per-turn heuristic signals at zero external cost
// and runs a single consolidated audit call at finalize time.
type AntiCheatDetector struct {
	cfg config.Config
}

// NewAntiCheatDetector constructs the detector.
func NewAntiCheatDetector(cfg config.Config) *AntiCheatDetector {
	return &AntiCheatDetector{cfg: cfg}
}

// InspectTurn returns the heuristic signals raised by one turn.
func (d *AntiCheatDetector) InspectTurn(turn domain.TurnRecord) []domain.AntiCheatSignal {
	var signals []domain.AntiCheatSignal
	add := func(code string, sev domain.Severity, msg string) {
		signals = append(signals, domain.AntiCheatSignal{
			Code:      code,
			Severity:  sev,
			Message:   msg,
			TurnIndex: turn.Index,
		})
		observability.AntiCheatSignalsTotal.WithLabelValues(code).Inc()
	}

	if turn.ResponseLatency < d.cfg.FastAnswerLatency && turn.Metrics.WordCount >= d.cfg.FastAnswerWords {
		add(domain.SignalTooFastLongAnswer, domain.SeverityHigh,
			fmt.Sprintf("%d words delivered %s after the question", turn.Metrics.WordCount, turn.ResponseLatency))
	}
	if turn.Metrics.WordCount <= 3 {
		add(domain.SignalLowEffort, domain.SeverityLow, "near-empty answer")
	}
	if turn.Metrics.WordCount >= 40 && turn.Metrics.UniqueWordRatio < 0.35 {
		add(domain.SignalRepetitive, domain.SeverityMedium,
			fmt.Sprintf("unique-word ratio %.2f over %d words", turn.Metrics.UniqueWordRatio, turn.Metrics.WordCount))
	}
	if lexical.ContainsAny(strings.ToLower(turn.Answer), d.cfg.ToxicKeywords) {
		add(domain.SignalToxicContent, domain.SeverityHigh, "answer matches the toxic-content denylist")
	}
	return signals
}

// Audit runs the end-of-interview integrity audit. On governor failure the
// report is the heuristic-only aggregate.
func (d *AntiCheatDetector) Audit(ctx domain.Context, gate domain.CallGate, transcript string, turns []domain.TurnRecord, signals []domain.AntiCheatSignal) domain.AntiCheatReport {
	res := gate.Call(ctx, domain.CallRequest{
		Kind:         domain.CallAntiCheatAudit,
		ModelID:      d.cfg.StrongModel,
		SystemPrompt: SystemPrompt(domain.CallAntiCheatAudit),
		UserPrompt:   BuildAntiCheatPrompt(transcript, signals),
	})
	if !res.OK {
		slog.Info("integrity audit unavailable, using heuristic aggregate",
			slog.String("fallback_reason", string(res.FallbackReason)))
		return d.heuristicReport(turns, signals)
	}

	finding, ok := res.Payload.(domain.AuditFinding)
	if !ok {
		// Governor validation guarantees the type; a mismatch is a wiring bug.
		slog.Error("unexpected payload type for integrity audit",
			slog.String("type", fmt.Sprintf("%T", res.Payload)))
		return d.heuristicReport(turns, signals)
	}
	return domain.AntiCheatReport{
		RiskScore:     finding.RiskScore,
		Verdict:       domain.CheatVerdict(finding.Verdict),
		Flags:         finding.Flags,
		Signals:       signals,
		HeuristicOnly: false,
	}
}

// heuristicReport aggregates the per-turn signals into a verdict without the
// external audit. Toxic content or repeated high-severity signals dominate.
func (d *AntiCheatDetector) heuristicReport(turns []domain.TurnRecord, signals []domain.AntiCheatSignal) domain.AntiCheatReport {
	risk := 0
	toxic := false
	highs := 0
	var flags []string
	for _, s := range signals {
		switch s.Severity {
		case domain.SeverityHigh:
			risk += 25
			highs++
		case domain.SeverityMedium:
			risk += 12
		case domain.SeverityLow:
			risk += 5
		}
		if s.Code == domain.SignalToxicContent {
			toxic = true
		}
		flags = append(flags, fmt.Sprintf("%s (turn %d)", s.Code, s.TurnIndex))
	}

	// A transcript of mostly one-line answers is itself suspicious.
	short := 0
	for _, t := range turns {
		if t.Metrics.WordCount <= 3 {
			short++
		}
	}
	if len(turns) > 0 && short*2 > len(turns) {
		risk += 15
		flags = append(flags, "majority of answers near-empty")
	}

	if risk > 100 {
		risk = 100
	}

	verdict := domain.VerdictClean
	switch {
	case toxic || highs >= 2:
		verdict = domain.VerdictCheating
	case risk >= 40:
		verdict = domain.VerdictSuspicious
	}

	return domain.AntiCheatReport{
		RiskScore:     risk,
		Verdict:       verdict,
		Flags:         flags,
		Signals:       signals,
		HeuristicOnly: true,
	}
}
