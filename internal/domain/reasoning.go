package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// CallKind names a governed call site. Each kind has its own prompt template
// and payload schema.
type CallKind string

// Governed call kinds.
const (
	CallEvaluateTurn   CallKind = "evaluate_turn"
	CallPlanQuestion   CallKind = "plan_question"
	CallAntiCheatAudit CallKind = "anticheat_audit"
	CallDraftEval      CallKind = "draft_eval"
	CallRefineEval     CallKind = "refine_eval"
)

// FallbackReason categorizes why a governed call did not produce an external
// result.
type FallbackReason string

// Fallback reasons.
const (
	FallbackNone         FallbackReason = ""
	FallbackQuotaReached FallbackReason = "quota_reached"
	FallbackTooFrequent  FallbackReason = "too_frequent"
	FallbackTimeout      FallbackReason = "timeout"
	FallbackServiceError FallbackReason = "service_error"
	FallbackParseError   FallbackReason = "parse_error"
)

// CallRequest describes one governed reasoning call.
type CallRequest struct {
	Kind         CallKind
	ModelID      string
	SystemPrompt string
	UserPrompt   string
}

// CallResult is the typed outcome of a governed call. Exactly one of the
// success fields (OK + Payload) or FallbackReason is meaningful.
type CallResult struct {
	OK             bool
	FromExternal   bool
	Payload        any
	Raw            json.RawMessage
	FallbackReason FallbackReason
	Err            error
}

// CallGate is the sole gateway to the external reasoning service. It enforces
// the session call budget, minimum inter-call spacing and a hard timeout, and
// validates payloads per call site. It has no retry logic; callers decide
// whether to fall back to heuristics or skip.
type CallGate interface {
	Call(ctx Context, req CallRequest) CallResult
	Budget() BudgetSnapshot
}

// BudgetSnapshot is a read-only view of a CallBudget.
type BudgetSnapshot struct {
	CallsUsed        int       `json:"calls_used"`
	MaxCalls         int       `json:"max_calls"`
	LastCall         time.Time `json:"last_call"`
	Degraded         bool      `json:"degraded"`
	TooFrequentSkips int       `json:"too_frequent_skips"`
}

// CallBudget is the owned, per-session mutable call accounting. It is passed
// by reference into the governor rather than living as a process singleton so
// isolated tests and concurrent sessions each get their own instance.
type CallBudget struct {
	mu               sync.Mutex
	callsUsed        int
	maxCalls         int
	minSpacing       time.Duration
	lastCall         time.Time
	degraded         bool
	tooFrequentSkips int
}

// NewCallBudget constructs a budget with the given ceiling and spacing.
func NewCallBudget(maxCalls int, minSpacing time.Duration) *CallBudget {
	return &CallBudget{maxCalls: maxCalls, minSpacing: minSpacing}
}

// Reserve checks preconditions in order (quota, then spacing) and on success
// consumes one call slot. Precondition failures return the matching fallback
// reason without consuming budget.
func (b *CallBudget) Reserve(now time.Time) FallbackReason {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.callsUsed >= b.maxCalls {
		b.degraded = true
		return FallbackQuotaReached
	}
	if !b.lastCall.IsZero() && now.Sub(b.lastCall) < b.minSpacing {
		b.tooFrequentSkips++
		// A single spacing skip is transient; only repeated occurrences make
		// the session degraded.
		if b.tooFrequentSkips > 1 {
			b.degraded = true
		}
		return FallbackTooFrequent
	}
	b.callsUsed++
	b.lastCall = now
	return FallbackNone
}

// MarkDegraded permanently flags the session as degraded.
func (b *CallBudget) MarkDegraded() {
	b.mu.Lock()
	b.degraded = true
	b.mu.Unlock()
}

// Snapshot returns a copy of the budget counters.
func (b *CallBudget) Snapshot() BudgetSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BudgetSnapshot{
		CallsUsed:        b.callsUsed,
		MaxCalls:         b.maxCalls,
		LastCall:         b.lastCall,
		Degraded:         b.degraded,
		TooFrequentSkips: b.tooFrequentSkips,
	}
}

// Degraded reports the sticky degradation flag.
func (b *CallBudget) Degraded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.degraded
}

// Per-call-site payload schemas. Any external payload failing validation is a
// parse_error; partially typed payloads are never passed through.

// TurnAssessment is the evaluate_turn payload.
type TurnAssessment struct {
	Score                 int            `json:"score"`
	Quality               string         `json:"quality"`
	Strengths             []string       `json:"strengths"`
	Weaknesses            []string       `json:"weaknesses"`
	SkillDeltas           map[string]int `json:"skill_deltas"`
	RecommendedDifficulty int            `json:"recommended_difficulty"`
}

// Validate checks field ranges for TurnAssessment.
func (a TurnAssessment) Validate() error {
	if a.Score < 0 || a.Score > 100 {
		return fmt.Errorf("%w: score %d out of [0,100]", ErrSchemaInvalid, a.Score)
	}
	switch QualityTier(a.Quality) {
	case TierExcellent, TierGood, TierAverage, TierWeak, TierUnacceptable:
	default:
		return fmt.Errorf("%w: unknown quality %q", ErrSchemaInvalid, a.Quality)
	}
	if a.RecommendedDifficulty != 0 && (a.RecommendedDifficulty < DifficultyMin || a.RecommendedDifficulty > DifficultyMax) {
		return fmt.Errorf("%w: recommended_difficulty %d out of [1,5]", ErrSchemaInvalid, a.RecommendedDifficulty)
	}
	for name, d := range a.SkillDeltas {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty skill name", ErrSchemaInvalid)
		}
		if d < -20 || d > 20 {
			return fmt.Errorf("%w: skill delta %d for %q out of [-20,20]", ErrSchemaInvalid, d, name)
		}
	}
	return nil
}

// PlannedQuestion is the plan_question payload.
type PlannedQuestion struct {
	Question string `json:"question"`
	Topic    string `json:"topic"`
}

// Validate checks the planned question is usable.
func (p PlannedQuestion) Validate() error {
	if strings.TrimSpace(p.Question) == "" {
		return fmt.Errorf("%w: empty question", ErrSchemaInvalid)
	}
	if len(p.Question) > 2000 {
		return fmt.Errorf("%w: question too long (%d chars)", ErrSchemaInvalid, len(p.Question))
	}
	return nil
}

// AuditFinding is the anticheat_audit payload.
type AuditFinding struct {
	RiskScore int      `json:"risk_score"`
	Flags     []string `json:"flags"`
	Verdict   string   `json:"verdict"`
}

// Validate checks the audit fields.
func (f AuditFinding) Validate() error {
	if f.RiskScore < 0 || f.RiskScore > 100 {
		return fmt.Errorf("%w: risk_score %d out of [0,100]", ErrSchemaInvalid, f.RiskScore)
	}
	switch CheatVerdict(f.Verdict) {
	case VerdictClean, VerdictSuspicious, VerdictCheating:
		return nil
	default:
		return fmt.Errorf("%w: unknown verdict %q", ErrSchemaInvalid, f.Verdict)
	}
}

// DraftEvaluation is the draft_eval payload; RefinedEvaluation extends it with
// refinement notes for the refine_eval call site.
type DraftEvaluation struct {
	OverallScore int            `json:"overall_score"`
	Verdict      string         `json:"verdict"`
	Strengths    []string       `json:"strengths"`
	Weaknesses   []string       `json:"weaknesses"`
	SkillScores  map[string]int `json:"skill_scores"`
	Summary      string         `json:"summary"`
}

// Validate checks the draft fields.
func (d DraftEvaluation) Validate() error {
	if d.OverallScore < 0 || d.OverallScore > 100 {
		return fmt.Errorf("%w: overall_score %d out of [0,100]", ErrSchemaInvalid, d.OverallScore)
	}
	switch HireVerdict(d.Verdict) {
	case VerdictHire, VerdictLeanHire, VerdictBorderline, VerdictNoHire:
	default:
		return fmt.Errorf("%w: unknown verdict %q", ErrSchemaInvalid, d.Verdict)
	}
	if strings.TrimSpace(d.Summary) == "" {
		return fmt.Errorf("%w: empty summary", ErrSchemaInvalid)
	}
	for name, s := range d.SkillScores {
		if s < 0 || s > 100 {
			return fmt.Errorf("%w: skill score %d for %q out of [0,100]", ErrSchemaInvalid, s, name)
		}
	}
	return nil
}

// RefinedEvaluation is the refine_eval payload.
type RefinedEvaluation struct {
	DraftEvaluation
	RefinementNotes string `json:"refinement_notes"`
}

// Validate checks the refined fields.
func (r RefinedEvaluation) Validate() error {
	return r.DraftEvaluation.Validate()
}
