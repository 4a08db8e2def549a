package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

// Prompt builders for each governed call site. Every prompt ends with a strict
// JSON contract: any response that strays from it is rejected by the governor
// as a parse error.

const evaluateTurnSystem = `You are a senior technical interviewer scoring one candidate answer. Be strict and consistent: reward concrete, specific, correct answers; penalize vagueness, filler and factual errors. Never reward length for its own sake.`

// BuildEvaluateTurnPrompt produces the user prompt for scoring one turn.
func BuildEvaluateTurnPrompt(role string, q domain.BankQuestion, answer string, profile *domain.SkillProfile) string {
	return fmt.Sprintf(`Role under assessment: %s
Topic: %s
Question difficulty: %d of 5

Question:
%s

Candidate answer:
%s

Current skill profile:
%s

Score the answer on a 0-100 scale:
- 85-100 (excellent): correct, specific, well-structured, shows depth beyond the question
- 70-84 (good): correct and concrete with minor gaps
- 50-69 (average): partially correct or generic, lacks specifics
- 25-49 (weak): mostly vague, significant errors or misunderstanding
- 0-24 (unacceptable): wrong, off-topic, refused or hostile

Also report per-skill adjustments in [-20, 20] for only the skills this answer gives evidence about, and a recommended next difficulty in [1, 5] (or 0 to leave it unchanged).

CRITICAL: Respond with ONLY valid JSON following this structure:
{
  "score": 72,
  "quality": "good",
  "strengths": ["names a concrete replication strategy"],
  "weaknesses": ["did not mention failure modes"],
  "skill_deltas": {"Databases": 6},
  "recommended_difficulty": 4
}`, role, q.Topic, q.Difficulty, q.Text, answer, formatSkillProfile(profile))
}

const planQuestionSystem = `You are a senior technical interviewer planning the next question of a live interview. Ask exactly one question. It must be answerable verbally in two to three minutes, fit the requested stage and difficulty, and must not repeat any topic already covered.`

// BuildPlanQuestionPrompt produces the user prompt for adaptive question planning.
func BuildPlanQuestionPrompt(role string, stage domain.Stage, difficulty int, covered []string, weakSkills []string, lastAnswer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role under assessment: %s\n", role)
	fmt.Fprintf(&b, "Interview stage: %s\n", stage)
	fmt.Fprintf(&b, "Target difficulty: %d of 5\n", difficulty)
	if len(covered) > 0 {
		fmt.Fprintf(&b, "Topics already covered (do not repeat): %s\n", strings.Join(covered, ", "))
	}
	if len(weakSkills) > 0 {
		fmt.Fprintf(&b, "Skills needing more evidence: %s\n", strings.Join(weakSkills, ", "))
	}
	if lastAnswer != "" {
		fmt.Fprintf(&b, "\nCandidate's previous answer, for context:\n%s\n", lastAnswer)
	}
	b.WriteString(`
CRITICAL: Respond with ONLY valid JSON following this structure:
{
  "question": "How would you diagnose a slow query in production?",
  "topic": "Databases"
}`)
	return b.String()
}

const antiCheatSystem = `You are an interview integrity auditor. You review the full transcript of a completed technical interview together with automated per-turn signals, and judge whether the candidate answered honestly or relied on external assistance. Judge only the evidence given; do not invent signals.`

// BuildAntiCheatPrompt produces the user prompt for the final integrity audit.
func BuildAntiCheatPrompt(transcript string, signals []domain.AntiCheatSignal) string {
	var b strings.Builder
	b.WriteString("Automated per-turn signals:\n")
	if len(signals) == 0 {
		b.WriteString("(none)\n")
	}
	for _, s := range signals {
		fmt.Fprintf(&b, "- turn %d: %s (severity %s): %s\n", s.TurnIndex, s.Code, s.Severity, s.Message)
	}
	fmt.Fprintf(&b, "\nTranscript:\n%s\n", transcript)
	b.WriteString(`
Assess integrity risk on a 0-100 scale, where 0 means clearly honest and 100 means clearly assisted. A verdict of "cheating" requires strong, repeated evidence; isolated anomalies are at most "suspicious".

CRITICAL: Respond with ONLY valid JSON following this structure:
{
  "risk_score": 15,
  "flags": ["answer pacing inconsistent with typing speed"],
  "verdict": "clean"
}`)
	return b.String()
}

const draftEvalSystem = `You are a senior hiring committee member writing the evaluation of a completed technical interview. Ground every claim in the transcript; never speculate about skills that were not probed.`

// BuildDraftEvalPrompt produces the user prompt for the first synthesis pass.
func BuildDraftEvalPrompt(role, transcript string, profile *domain.SkillProfile, integrity domain.AntiCheatReport) string {
	return fmt.Sprintf(`Role under assessment: %s

Skill profile accumulated during the interview:
%s

Integrity audit: verdict=%s risk_score=%d

Transcript:
%s

Write the hiring evaluation. Verdict scale:
- hire: strong evidence across core skills, would pass a follow-up round
- lean_hire: mostly positive evidence with specific reservations
- borderline: mixed evidence, needs another round to decide
- no_hire: evidence clearly below the bar for the role

CRITICAL: Respond with ONLY valid JSON following this structure:
{
  "overall_score": 68,
  "verdict": "lean_hire",
  "strengths": ["solid SQL depth", "clear incident walkthrough"],
  "weaknesses": ["shaky on concurrency primitives"],
  "skill_scores": {"Databases": 80, "Go": 55},
  "summary": "Competent mid-level engineer with strong data skills."
}`, role, formatSkillProfile(profile), integrity.Verdict, integrity.RiskScore, transcript)
}

const refineEvalSystem = `You are a senior hiring committee reviewer checking a draft evaluation for internal consistency. Fix contradictions between the score, the verdict and the cited evidence. Keep every change grounded in the draft; do not introduce new claims about the candidate.`

// BuildRefineEvalPrompt produces the user prompt for the second synthesis pass.
func BuildRefineEvalPrompt(draftJSON string) string {
	return fmt.Sprintf(`Draft evaluation:
%s

Review it for consistency:
- the overall_score must match the verdict band (hire >= 75, lean_hire 60-74, borderline 45-59, no_hire < 45)
- strengths and weaknesses must not contradict each other or the summary
- skill_scores must be consistent with the cited evidence

Return the corrected evaluation. If the draft is already consistent, return it unchanged with a short note saying so.

CRITICAL: Respond with ONLY valid JSON following this structure:
{
  "overall_score": 68,
  "verdict": "lean_hire",
  "strengths": ["solid SQL depth"],
  "weaknesses": ["shaky on concurrency primitives"],
  "skill_scores": {"Databases": 80},
  "summary": "Competent mid-level engineer with strong data skills.",
  "refinement_notes": "lowered Go score to match the weak concurrency answer"
}`, draftJSON)
}

// SystemPrompt returns the fixed system prompt for a call kind.
func SystemPrompt(kind domain.CallKind) string {
	switch kind {
	case domain.CallEvaluateTurn:
		return evaluateTurnSystem
	case domain.CallPlanQuestion:
		return planQuestionSystem
	case domain.CallAntiCheatAudit:
		return antiCheatSystem
	case domain.CallDraftEval:
		return draftEvalSystem
	case domain.CallRefineEval:
		return refineEvalSystem
	default:
		return ""
	}
}

func formatSkillProfile(profile *domain.SkillProfile) string {
	if profile == nil || len(profile.Skills) == 0 {
		return "(no evidence yet)"
	}
	var b strings.Builder
	for _, name := range profile.Names() {
		s := profile.Skills[name]
		fmt.Fprintf(&b, "- %s: %d (evidence from %d answers)\n", name, s.Level, len(s.Evidence))
	}
	return strings.TrimRight(b.String(), "\n")
}
