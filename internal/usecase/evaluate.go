// Package usecase implements the interview pipeline's application logic:
// turn evaluation, skill and topic tracking, difficulty control, question
// selection, anti-cheat detection, final synthesis and the orchestrator
// binding them together.
package usecase

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
	"github.com/fairyhunter13/ai-interview-pipeline/pkg/lexical"
)

// Patterns matched against lowercased answers. These drive hard caps in the
// heuristic score and topic skipping in the tracker.
var (
	noExperiencePhrases = []string{
		"i don't know", "i dont know", "no idea", "never used", "never worked with",
		"no experience", "not familiar", "haven't used", "havent used",
	}
	refusalPhrases = []string{
		"i won't answer", "i refuse", "next question", "skip this", "not going to answer",
		"why do you ask", "none of your business",
	}
	examplePhrases = []string{
		"for example", "for instance", "in my project", "in my experience", "we used",
		"i built", "i designed", "at my last", "in production",
	}
	sequencingPhrases = []string{
		"first", "then", "next", "finally", "after that", "step",
	}
)

// Hard caps applied after the additive score components.
const (
	toxicScoreCap        = 5
	noExperienceScoreCap = 15
	refusalScoreCap      = 10
)

// HeuristicEvaluator scores answers locally from lexical features. It is a
// pure function of its inputs: no state, no I/O, always available.
type HeuristicEvaluator struct {
	cfg config.Config
}

// NewHeuristicEvaluator constructs the evaluator.
func NewHeuristicEvaluator(cfg config.Config) *HeuristicEvaluator {
	return &HeuristicEvaluator{cfg: cfg}
}

// Evaluate scores one answer. expectedKeywords may be empty; when present,
// coverage dominates the score.
func (h *HeuristicEvaluator) Evaluate(answer string, expectedKeywords []string) domain.TurnEvaluation {
	answer = lexical.SanitizeText(answer)
	metrics := domain.LexicalMetrics{
		WordCount:       lexical.WordCount(answer),
		UniqueWordRatio: lexical.UniqueWordRatio(answer),
		FillerWordCount: lexical.FillerWordCount(answer),
		AvgSentenceLen:  lexical.AvgSentenceLength(answer),
	}

	var strengths, weaknesses []string

	// Length saturates around 30 words: longer answers stop earning points.
	lengthScore := math.Min(float64(metrics.WordCount)/30.0, 1.0) * 40

	diversity := metrics.UniqueWordRatio
	diversityPenalty := 0.0
	if metrics.WordCount >= 20 && diversity < 0.45 {
		diversityPenalty = (0.45 - diversity) * 40
		weaknesses = append(weaknesses, "answer repeats itself heavily")
	}

	score := lengthScore - diversityPenalty

	if len(expectedKeywords) > 0 {
		coverage := lexical.KeywordCoverage(answer, expectedKeywords)
		// With keywords supplied, coverage carries ~70% of the weight.
		score = score*0.3 + coverage*70
		if coverage >= 0.6 {
			strengths = append(strengths, "covers the expected ground well")
		} else if coverage < 0.2 {
			weaknesses = append(weaknesses, "misses most of the expected points")
		}
	}

	if lexical.HasNumericSpecific(answer) {
		score += 8
		strengths = append(strengths, "cites concrete numbers")
	}
	if lexical.ContainsAny(answer, examplePhrases) {
		score += 8
		strengths = append(strengths, "grounds the answer in real examples")
	}
	if lexical.ContainsAny(answer, sequencingPhrases) {
		score += 6
		strengths = append(strengths, "presents a structured sequence")
	}
	if metrics.FillerWordCount > 3 && metrics.WordCount > 0 &&
		float64(metrics.FillerWordCount)/float64(metrics.WordCount) > 0.1 {
		score -= 5
		weaknesses = append(weaknesses, "heavy use of filler words")
	}

	// Hard caps for disqualifying content, applied after the additive pass.
	switch {
	case lexical.ContainsAny(answer, h.cfg.ToxicKeywords):
		score = math.Min(score, toxicScoreCap)
		weaknesses = append(weaknesses, "contains inappropriate language")
	case lexical.ContainsAny(answer, noExperiencePhrases):
		score = math.Min(score, noExperienceScoreCap)
		weaknesses = append(weaknesses, "admits no experience with the topic")
	case lexical.ContainsAny(answer, refusalPhrases):
		score = math.Min(score, refusalScoreCap)
		weaknesses = append(weaknesses, "evades the question")
	}

	final := clampScore(int(math.Round(score)))
	return domain.TurnEvaluation{
		Score:      final,
		Quality:    QualityFromScore(final),
		Strengths:  strengths,
		Weaknesses: weaknesses,
		Metrics:    metrics,
		Provenance: domain.ProvenanceHeuristic,
	}
}

// QualityFromScore maps a score to its fixed quality band.
func QualityFromScore(score int) domain.QualityTier {
	switch {
	case score >= 85:
		return domain.TierExcellent
	case score >= 70:
		return domain.TierGood
	case score >= 50:
		return domain.TierAverage
	case score >= 25:
		return domain.TierWeak
	default:
		return domain.TierUnacceptable
	}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// TurnEvaluator decides per turn whether external scoring is warranted and
// merges the external payload when it arrives. The heuristic path is the
// floor: the pipeline never blocks or fails because the external service did.
type TurnEvaluator struct {
	cfg       config.Config
	heuristic *HeuristicEvaluator
}

// NewTurnEvaluator constructs the hybrid evaluator. The call gate is passed
// per invocation because every session owns its own budget.
func NewTurnEvaluator(cfg config.Config, heuristic *HeuristicEvaluator) *TurnEvaluator {
	return &TurnEvaluator{cfg: cfg, heuristic: heuristic}
}

// Evaluate scores one turn. turnIndex is zero-based; the first turn is always
// scored externally, later turns only every ExternalEvalInterval-th time, and
// short answers are never worth an external call.
func (t *TurnEvaluator) Evaluate(ctx domain.Context, gate domain.CallGate, turnIndex int, role string, q domain.BankQuestion, answer string, profile *domain.SkillProfile) domain.TurnEvaluation {
	local := t.heuristic.Evaluate(answer, q.ExpectedKeywords)

	if !t.wantExternal(turnIndex, local.Metrics.WordCount) {
		observability.TurnsEvaluatedTotal.WithLabelValues(string(domain.ProvenanceHeuristic)).Inc()
		return local
	}

	res := gate.Call(ctx, domain.CallRequest{
		Kind:         domain.CallEvaluateTurn,
		ModelID:      t.cfg.FastModel,
		SystemPrompt: SystemPrompt(domain.CallEvaluateTurn),
		UserPrompt:   BuildEvaluateTurnPrompt(role, q, answer, profile),
	})
	if !res.OK {
		slog.Debug("external turn scoring unavailable, using heuristic",
			slog.Int("turn", turnIndex),
			slog.String("fallback_reason", string(res.FallbackReason)))
		observability.TurnsEvaluatedTotal.WithLabelValues(string(domain.ProvenanceHeuristic)).Inc()
		return local
	}

	assessment, ok := res.Payload.(domain.TurnAssessment)
	if !ok {
		// Governor validation guarantees the type; a mismatch is a wiring bug.
		slog.Error("unexpected payload type for turn assessment",
			slog.String("type", fmt.Sprintf("%T", res.Payload)))
		observability.TurnsEvaluatedTotal.WithLabelValues(string(domain.ProvenanceHeuristic)).Inc()
		return local
	}

	observability.TurnsEvaluatedTotal.WithLabelValues(string(domain.ProvenanceExternal)).Inc()
	merged := domain.TurnEvaluation{
		Score:                 clampScore(assessment.Score),
		Quality:               domain.QualityTier(assessment.Quality),
		Strengths:             assessment.Strengths,
		Weaknesses:            assessment.Weaknesses,
		Metrics:               local.Metrics,
		SkillDeltas:           assessment.SkillDeltas,
		RecommendedDifficulty: assessment.RecommendedDifficulty,
		Provenance:            domain.ProvenanceExternal,
	}
	return merged
}

func (t *TurnEvaluator) wantExternal(turnIndex, wordCount int) bool {
	if wordCount < t.cfg.ShortAnswerWords {
		return false
	}
	if turnIndex == 0 {
		return true
	}
	return turnIndex%t.cfg.ExternalEvalInterval == 0
}
