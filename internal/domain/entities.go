// Package domain defines the interview pipeline's entities, ports and error taxonomy.
package domain

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrQuotaExhausted    = errors.New("call quota exhausted")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrSessionFinished   = errors.New("interview session finished")
	ErrInternal          = errors.New("internal error")
)

// Context is an alias to context.Context so adapters and usecases share one
// signature without the domain package growing its own context abstraction.
type Context = context.Context

// Stage is a coarse phase of interview content, monotonically advancing with
// question count. It never regresses.
type Stage string

// Interview stages in ascending order.
const (
	StageBackground Stage = "background"
	StageCore       Stage = "core"
	StageDeepDive   Stage = "deep_dive"
	StageCase       Stage = "case"
	StageDebug      Stage = "debug"
	StageWrapUp     Stage = "wrap_up"
)

// Stages lists all stages in progression order.
var Stages = []Stage{StageBackground, StageCore, StageDeepDive, StageCase, StageDebug, StageWrapUp}

// Phase is the coarse-grained progress bucket derived from questions asked.
type Phase string

// Interview phases.
const (
	PhaseIntro    Phase = "intro"
	PhaseCore     Phase = "core"
	PhaseDeepDive Phase = "deep-dive"
	PhaseWrapUp   Phase = "wrap-up"
)

// Difficulty bounds.
const (
	DifficultyMin = 1
	DifficultyMax = 5
)

// InterviewState is the orchestrator-owned control state of one session.
// It is mutated only through the orchestrator's transition methods.
type InterviewState struct {
	Role           string
	Stage          Stage
	Difficulty     int
	Phase          Phase
	QuestionsAsked int
	QuestionBudget int
	Terminal       bool
}

// QualityTier buckets a turn score into fixed bands.
type QualityTier string

// Quality tiers from fixed score bands.
const (
	TierExcellent    QualityTier = "excellent"
	TierGood         QualityTier = "good"
	TierAverage      QualityTier = "average"
	TierWeak         QualityTier = "weak"
	TierUnacceptable QualityTier = "unacceptable"
)

// Provenance records whether a turn evaluation came from the local heuristic
// or the external reasoning service.
type Provenance string

// Evaluation provenance values.
const (
	ProvenanceHeuristic Provenance = "heuristic"
	ProvenanceExternal  Provenance = "external"
)

// LexicalMetrics are the derived per-answer lexical features.
type LexicalMetrics struct {
	WordCount       int     `json:"word_count"`
	UniqueWordRatio float64 `json:"unique_word_ratio"`
	FillerWordCount int     `json:"filler_word_count"`
	AvgSentenceLen  float64 `json:"avg_sentence_len"`
}

// TurnRecord is one question/answer exchange with its evaluation. Records are
// immutable once appended; the ordered sequence is the authoritative
// transcript used for final synthesis.
type TurnRecord struct {
	Index           int            `json:"index"`
	Question        string         `json:"question"`
	Answer          string         `json:"answer"`
	Topic           string         `json:"topic"`
	Stage           Stage          `json:"stage"`
	Difficulty      int            `json:"difficulty"`
	ResponseLatency time.Duration  `json:"response_latency"`
	AnswerDuration  time.Duration  `json:"answer_duration"`
	Metrics         LexicalMetrics `json:"metrics"`
	Score           int            `json:"score"`
	Quality         QualityTier    `json:"quality"`
	Strengths       []string       `json:"strengths,omitempty"`
	Weaknesses      []string       `json:"weaknesses,omitempty"`
	SuspiciousTags  []string       `json:"suspicious_tags,omitempty"`
	Provenance      Provenance     `json:"provenance"`
	AskedAt         time.Time      `json:"asked_at"`
}

// TurnEvaluation is the scoring outcome for a single answer before it is
// frozen into a TurnRecord.
type TurnEvaluation struct {
	Score                 int
	Quality               QualityTier
	Strengths             []string
	Weaknesses            []string
	Metrics               LexicalMetrics
	SkillDeltas           map[string]int
	RecommendedDifficulty int // 0 when no recommendation
	Provenance            Provenance
}

// Skill is a named skill with a bounded evidence list.
type Skill struct {
	Name     string   `json:"name"`
	Level    int      `json:"level"` // 0..100
	Evidence []string `json:"evidence,omitempty"`
}

// SkillProfile accumulates per-skill signal across turns. Skills are created
// lazily on first mention and never deleted.
type SkillProfile struct {
	Skills map[string]*Skill `json:"skills"`
}

// NewSkillProfile returns an empty profile.
func NewSkillProfile() *SkillProfile {
	return &SkillProfile{Skills: make(map[string]*Skill)}
}

// Names returns the skill names in sorted order for deterministic output.
func (p *SkillProfile) Names() []string {
	names := make([]string, 0, len(p.Skills))
	for name := range p.Skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TopicStatus tracks a topic through the interview.
type TopicStatus string

// Topic ledger states.
const (
	TopicActive    TopicStatus = "active"
	TopicCompleted TopicStatus = "completed"
	TopicSkipped   TopicStatus = "skipped"
)

// TopicEntry is one topic's ledger row.
type TopicEntry struct {
	Status    TopicStatus `json:"status"`
	FollowUps int         `json:"follow_ups"`
	LastScore int         `json:"last_score"`
}

// TopicLedger maps topic names to their completion state.
type TopicLedger struct {
	Topics map[string]*TopicEntry `json:"topics"`
}

// NewTopicLedger returns an empty ledger.
func NewTopicLedger() *TopicLedger {
	return &TopicLedger{Topics: make(map[string]*TopicEntry)}
}

// Entry returns the ledger row for the topic, creating an active one if absent.
func (l *TopicLedger) Entry(topic string) *TopicEntry {
	e, ok := l.Topics[topic]
	if !ok {
		e = &TopicEntry{Status: TopicActive}
		l.Topics[topic] = e
	}
	return e
}

// Severity grades an anti-cheat signal.
type Severity string

// Anti-cheat severities.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anti-cheat signal codes.
const (
	SignalTooFastLongAnswer = "TOO_FAST_LONG_ANSWER"
	SignalLowEffort         = "LOW_EFFORT"
	SignalRepetitive        = "REPETITIVE"
	SignalToxicContent      = "TOXIC_CONTENT"
)

// AntiCheatSignal is a discrete, evidence-backed flag. The list of signals is
// append-only; signals are never retracted.
type AntiCheatSignal struct {
	Code      string   `json:"code"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	TurnIndex int      `json:"turn_index"`
}

// CheatVerdict is the outcome of the anti-cheat audit.
type CheatVerdict string

// Anti-cheat verdicts.
const (
	VerdictClean      CheatVerdict = "clean"
	VerdictSuspicious CheatVerdict = "suspicious"
	VerdictCheating   CheatVerdict = "cheating"
)

// AntiCheatReport is the merged heuristic + audit result.
type AntiCheatReport struct {
	RiskScore     int               `json:"risk_score"` // 0..100
	Verdict       CheatVerdict      `json:"verdict"`
	Flags         []string          `json:"flags,omitempty"`
	Signals       []AntiCheatSignal `json:"signals,omitempty"`
	HeuristicOnly bool              `json:"heuristic_only"`
}

// HireVerdict is the final recommendation.
type HireVerdict string

// Hire verdicts.
const (
	VerdictHire       HireVerdict = "hire"
	VerdictLeanHire   HireVerdict = "lean_hire"
	VerdictBorderline HireVerdict = "borderline"
	VerdictNoHire     HireVerdict = "no_hire"
)

// FinalEvaluation is the synthesized recommendation handed to persistence.
type FinalEvaluation struct {
	OverallScore    int             `json:"overall_score"` // 0..100
	Verdict         HireVerdict     `json:"verdict"`
	Strengths       []string        `json:"strengths,omitempty"`
	Weaknesses      []string        `json:"weaknesses,omitempty"`
	SkillScores     map[string]int  `json:"skill_scores,omitempty"`
	AntiCheat       AntiCheatReport `json:"anti_cheat"`
	Summary         string          `json:"summary"`
	RefinementNotes string          `json:"refinement_notes,omitempty"`
	Degraded        bool            `json:"degraded"`
	CreatedAt       time.Time       `json:"created_at"`
}

// InterviewBundle is the full artifact handed off at finalize time. It is
// never mutated after finalize.
type InterviewBundle struct {
	SessionID    string            `json:"session_id"`
	Role         string            `json:"role"`
	Turns        []TurnRecord      `json:"turns"`
	Skills       *SkillProfile     `json:"skills"`
	AntiCheat    AntiCheatReport   `json:"anti_cheat"`
	Final        FinalEvaluation   `json:"final"`
	Signals      []AntiCheatSignal `json:"signals,omitempty"`
	CallsUsed    int               `json:"calls_used"`
	Degraded     bool              `json:"degraded"`
	FinalizedAt  time.Time         `json:"finalized_at"`
	QuestionsCap int               `json:"questions_cap"`
}

// ReasoningClient is the sole network dependency: a raw text-in/text-out call
// to the external reasoning service. Responses may wrap a structured payload
// in extra prose; extraction and validation happen above this port.
type ReasoningClient interface {
	Invoke(ctx Context, modelID, systemPrompt, userPrompt string) (string, error)
}

// QuestionBank is the static, read-only question dataset keyed by role category.
type QuestionBank interface {
	// Lookup returns a question for (roleKey, stage, difficulty within +-1)
	// excluding already-used texts, or ErrNotFound when the bank has no match.
	Lookup(roleKey string, stage Stage, difficulty int, exclude map[string]struct{}) (BankQuestion, error)
	// FollowUp returns the n-th scripted follow-up for a topic, or ErrNotFound.
	FollowUp(topic string, n int) (string, error)
}

// BankQuestion is one entry from the static question bank.
type BankQuestion struct {
	Text             string
	Topic            string
	Difficulty       int
	ExpectedKeywords []string
}

// ResultSink persists the finalized bundle.
type ResultSink interface {
	Store(ctx Context, b InterviewBundle) error
}

// BundlePublisher fans the finalized bundle out to downstream consumers.
type BundlePublisher interface {
	Publish(ctx Context, b InterviewBundle) (string, error)
}
