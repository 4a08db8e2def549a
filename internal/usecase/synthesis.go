package usecase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

// DegradedDisclosure is appended to the summary whenever final synthesis ran
// without external refinement. Downstream consumers key off this text.
const DegradedDisclosure = "Note: this evaluation was produced with local heuristics only; LLM refinement was skipped due to quota limits."

// refineFailureNote is appended when the draft succeeded but refinement did not.
const refineFailureNote = "Note: the consistency review pass was unavailable; this is the unrefined draft evaluation."

// Synthesizer produces the final evaluation via the draft/refine chain with a
// fully local fallback.
type Synthesizer struct {
	cfg     config.Config
	counter *tokencount.Counter
}

// NewSynthesizer constructs the synthesizer.
func NewSynthesizer(cfg config.Config) *Synthesizer {
	return &Synthesizer{cfg: cfg, counter: tokencount.NewCounter()}
}

// Synthesize runs the two-pass chain once and merges the anti-cheat report
// into whatever result is produced. It never fails: every path ends in a
// complete FinalEvaluation.
func (s *Synthesizer) Synthesize(ctx domain.Context, gate domain.CallGate, role string, turns []domain.TurnRecord, profile *domain.SkillProfile, anticheat domain.AntiCheatReport, degraded bool) domain.FinalEvaluation {
	transcript := s.boundedTranscript(turns)

	draft, ok := s.draft(ctx, gate, role, transcript, profile, anticheat)
	if !ok {
		return s.localFallback(turns, profile, anticheat)
	}

	final := s.refine(ctx, gate, draft)
	final.AntiCheat = anticheat
	final.Degraded = degraded || anticheat.HeuristicOnly
	final.CreatedAt = time.Now().UTC()
	return final
}

func (s *Synthesizer) draft(ctx domain.Context, gate domain.CallGate, role, transcript string, profile *domain.SkillProfile, anticheat domain.AntiCheatReport) (domain.DraftEvaluation, bool) {
	res := gate.Call(ctx, domain.CallRequest{
		Kind:         domain.CallDraftEval,
		ModelID:      s.cfg.FastModel,
		SystemPrompt: SystemPrompt(domain.CallDraftEval),
		UserPrompt:   BuildDraftEvalPrompt(role, transcript, profile, anticheat),
	})
	if !res.OK {
		slog.Info("draft synthesis unavailable",
			slog.String("fallback_reason", string(res.FallbackReason)))
		return domain.DraftEvaluation{}, false
	}
	draft, ok := res.Payload.(domain.DraftEvaluation)
	if !ok {
		slog.Error("unexpected payload type for draft synthesis",
			slog.String("type", fmt.Sprintf("%T", res.Payload)))
		return domain.DraftEvaluation{}, false
	}
	return draft, true
}

func (s *Synthesizer) refine(ctx domain.Context, gate domain.CallGate, draft domain.DraftEvaluation) domain.FinalEvaluation {
	draftJSON, _ := json.Marshal(draft)

	res := gate.Call(ctx, domain.CallRequest{
		Kind:         domain.CallRefineEval,
		ModelID:      s.cfg.StrongModel,
		SystemPrompt: SystemPrompt(domain.CallRefineEval),
		UserPrompt:   BuildRefineEvalPrompt(string(draftJSON)),
	})
	if res.OK {
		if refined, ok := res.Payload.(domain.RefinedEvaluation); ok {
			return domain.FinalEvaluation{
				OverallScore:    refined.OverallScore,
				Verdict:         domain.HireVerdict(refined.Verdict),
				Strengths:       refined.Strengths,
				Weaknesses:      refined.Weaknesses,
				SkillScores:     refined.SkillScores,
				Summary:         refined.Summary,
				RefinementNotes: refined.RefinementNotes,
			}
		}
		slog.Error("unexpected payload type for refined evaluation",
			slog.String("type", fmt.Sprintf("%T", res.Payload)))
	} else {
		slog.Info("refine pass unavailable, keeping draft",
			slog.String("fallback_reason", string(res.FallbackReason)))
	}

	return domain.FinalEvaluation{
		OverallScore: draft.OverallScore,
		Verdict:      domain.HireVerdict(draft.Verdict),
		Strengths:    draft.Strengths,
		Weaknesses:   draft.Weaknesses,
		SkillScores:  draft.SkillScores,
		Summary:      strings.TrimSpace(draft.Summary + " " + refineFailureNote),
	}
}

// localFallback synthesizes the evaluation without any external call: overall
// score is the mean of per-turn scores, verdict from fixed bands, summary
// from a template with an explicit disclosure.
func (s *Synthesizer) localFallback(turns []domain.TurnRecord, profile *domain.SkillProfile, anticheat domain.AntiCheatReport) domain.FinalEvaluation {
	score := meanScore(turns)

	var verdict domain.HireVerdict
	switch {
	case score >= 70:
		verdict = domain.VerdictLeanHire
	case score >= 50:
		verdict = domain.VerdictBorderline
	default:
		verdict = domain.VerdictNoHire
	}

	skillScores := make(map[string]int, len(profile.Skills))
	for name, sk := range profile.Skills {
		skillScores[name] = sk.Level
	}

	strengths, weaknesses := collectTurnNotes(turns)

	summary := fmt.Sprintf(
		"Candidate answered %d questions with a mean score of %d. Integrity verdict: %s (risk %d). %s",
		len(turns), score, anticheat.Verdict, anticheat.RiskScore, DegradedDisclosure,
	)

	return domain.FinalEvaluation{
		OverallScore: score,
		Verdict:      verdict,
		Strengths:    strengths,
		Weaknesses:   weaknesses,
		SkillScores:  skillScores,
		AntiCheat:    anticheat,
		Summary:      summary,
		Degraded:     true,
		CreatedAt:    time.Now().UTC(),
	}
}

// boundedTranscript renders the turn sequence and trims it from the front to
// fit the synthesis token budget, keeping the most recent turns.
func (s *Synthesizer) boundedTranscript(turns []domain.TurnRecord) string {
	text := BuildTranscript(turns)
	bounded, truncated := s.counter.TruncateHead(s.cfg.FastModel, text, s.cfg.MaxTranscriptToken)
	if truncated {
		slog.Debug("transcript truncated for synthesis",
			slog.Int("turns", len(turns)),
			slog.Int("token_budget", s.cfg.MaxTranscriptToken))
	}
	return bounded
}

// BuildTranscript renders turns into the plain-text form shared by the
// synthesis and audit prompts.
func BuildTranscript(turns []domain.TurnRecord) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "Q%d [%s, difficulty %d]: %s\n", t.Index+1, t.Topic, t.Difficulty, t.Question)
		fmt.Fprintf(&b, "A%d (score %d, %s): %s\n", t.Index+1, t.Score, t.Quality, t.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

func meanScore(turns []domain.TurnRecord) int {
	if len(turns) == 0 {
		return 0
	}
	total := 0
	for _, t := range turns {
		total += t.Score
	}
	return total / len(turns)
}

// collectTurnNotes deduplicates per-turn strengths and weaknesses, keeping at
// most five of each with the most frequent first.
func collectTurnNotes(turns []domain.TurnRecord) (strengths, weaknesses []string) {
	count := func(pick func(domain.TurnRecord) []string) []string {
		freq := map[string]int{}
		for _, t := range turns {
			for _, note := range pick(t) {
				freq[note]++
			}
		}
		notes := make([]string, 0, len(freq))
		for note := range freq {
			notes = append(notes, note)
		}
		sort.Slice(notes, func(i, j int) bool {
			if freq[notes[i]] != freq[notes[j]] {
				return freq[notes[i]] > freq[notes[j]]
			}
			return notes[i] < notes[j]
		})
		if len(notes) > 5 {
			notes = notes[:5]
		}
		return notes
	}
	return count(func(t domain.TurnRecord) []string { return t.Strengths }),
		count(func(t domain.TurnRecord) []string { return t.Weaknesses })
}
