package usecase

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

// GateFactory builds one call gate per interview session, so each session
// owns its budget and degradation state.
type GateFactory func() domain.CallGate

// Session is one live interview. All fields behind mu; the condition variable
// lets Finalize wait for an in-flight evaluation instead of dropping it.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu   sync.Mutex
	cond *sync.Cond

	state   domain.InterviewState
	gate    domain.CallGate
	turns   []domain.TurnRecord
	profile *domain.SkillProfile
	ledger  *domain.TopicLedger
	signals []domain.AntiCheatSignal
	used    map[string]struct{}

	pending *pendingQuestion
	prev    *lastTurn

	evaluating  bool
	generating  bool
	finalized   bool
	finalizedAt time.Time
	bundle      *domain.InterviewBundle
}

type pendingQuestion struct {
	q       domain.BankQuestion
	source  SelectionSource
	askedAt time.Time
}

// AskedQuestion is the orchestrator's answer to a next-question request.
type AskedQuestion struct {
	Text       string
	Topic      string
	Stage      domain.Stage
	Phase      domain.Phase
	Difficulty int
	Number     int // 1-based position in the interview
	Total      int
	Source     SelectionSource
}

// SessionView is a read-only snapshot for the transport layer.
type SessionView struct {
	ID             string
	Role           string
	Stage          domain.Stage
	Phase          domain.Phase
	Difficulty     int
	QuestionsAsked int
	QuestionBudget int
	Terminal       bool
	Finalized      bool
	Budget         domain.BudgetSnapshot
	Turns          []domain.TurnRecord
}

// Orchestrator binds selection, evaluation, tracking, anti-cheat and
// synthesis into the per-session control loop, and keeps the in-memory
// session registry.
type Orchestrator struct {
	cfg        config.Config
	newGate    GateFactory
	selector   *QuestionSelector
	evaluator  *TurnEvaluator
	tracker    *Tracker
	difficulty *DifficultyController
	anticheat  *AntiCheatDetector
	synth      *Synthesizer
	sink       domain.ResultSink      // optional
	publisher  domain.BundlePublisher // optional

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewOrchestrator wires the pipeline components around a per-session gate
// factory. sink and publisher may be nil; finalize then keeps the bundle
// in memory only.
func NewOrchestrator(cfg config.Config, bank domain.QuestionBank, newGate GateFactory, roleKey func(string) string, sink domain.ResultSink, publisher domain.BundlePublisher) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		newGate:    newGate,
		selector:   NewQuestionSelector(cfg, bank, roleKey),
		evaluator:  NewTurnEvaluator(cfg, NewHeuristicEvaluator(cfg)),
		tracker:    NewTracker(cfg),
		difficulty: NewDifficultyController(cfg),
		anticheat:  NewAntiCheatDetector(cfg),
		synth:      NewSynthesizer(cfg),
		sink:       sink,
		publisher:  publisher,
		sessions:   make(map[string]*Session),
	}
}

// Start creates a new interview session for the role.
func (o *Orchestrator) Start(_ domain.Context, role string) (*SessionView, error) {
	if role == "" {
		return nil, fmt.Errorf("%w: role is required", domain.ErrInvalidArgument)
	}

	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		state: domain.InterviewState{
			Role:           role,
			Stage:          domain.StageBackground,
			Phase:          domain.PhaseIntro,
			Difficulty:     2,
			QuestionBudget: o.cfg.TotalQuestions,
		},
		gate:    o.newGate(),
		profile: domain.NewSkillProfile(),
		ledger:  domain.NewTopicLedger(),
		used:    make(map[string]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	o.mu.Lock()
	o.sessions[s.ID] = s
	o.mu.Unlock()

	observability.InterviewsStartedTotal.Inc()
	slog.Info("interview started",
		slog.String("session_id", s.ID),
		slog.String("role", role),
		slog.Int("question_budget", s.state.QuestionBudget))
	return snapshot(s), nil
}

// NextQuestion advances the interview by one question. Calling it again
// before the pending question is answered returns the same question. A call
// arriving while another is generating, or while an answer is still being
// evaluated, is dropped with ErrConflict.
func (o *Orchestrator) NextQuestion(ctx domain.Context, sessionID string) (*AskedQuestion, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.finalized || s.state.Terminal {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", domain.ErrSessionFinished, sessionID)
	}
	if s.pending != nil {
		q := askedFrom(s, s.pending)
		s.mu.Unlock()
		return q, nil
	}
	if s.generating {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: question generation in progress", domain.ErrConflict)
	}
	// An in-flight evaluation mutates the ledger and skill profile that
	// selection reads, so the event is dropped, not queued.
	if s.evaluating {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: evaluation in progress", domain.ErrConflict)
	}
	if s.state.QuestionsAsked >= s.state.QuestionBudget {
		s.state.Terminal = true
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: question budget exhausted", domain.ErrSessionFinished)
	}

	s.generating = true
	s.advance()
	state := s.state
	prev := s.prev
	used := s.used
	ledger := s.ledger
	profile := s.profile
	gate := s.gate
	s.mu.Unlock()

	sel := o.selector.Select(ctx, gate, state, ledger, profile, prev, used)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
	s.cond.Broadcast()

	s.used[sel.Question.Text] = struct{}{}
	if sel.Question.Difficulty == 0 {
		sel.Question.Difficulty = s.state.Difficulty
	}
	s.pending = &pendingQuestion{q: sel.Question, source: sel.Source, askedAt: time.Now().UTC()}
	s.state.QuestionsAsked++

	slog.Info("question selected",
		slog.String("session_id", s.ID),
		slog.Int("number", s.state.QuestionsAsked),
		slog.String("stage", string(s.state.Stage)),
		slog.String("topic", sel.Question.Topic),
		slog.String("source", string(sel.Source)))
	return askedFrom(s, s.pending), nil
}

// SubmitAnswer evaluates the answer to the pending question and folds the
// result into session state. A duplicate event for the same turn arriving
// while evaluation is in flight is dropped with ErrConflict, never queued.
func (o *Orchestrator) SubmitAnswer(ctx domain.Context, sessionID, answer string, responseLatency, answerDuration time.Duration) (*domain.TurnRecord, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", domain.ErrSessionFinished, sessionID)
	}
	if s.evaluating {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: evaluation in progress", domain.ErrConflict)
	}
	if s.pending == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no question awaiting an answer", domain.ErrConflict)
	}

	s.evaluating = true
	pending := s.pending
	s.pending = nil
	turnIndex := len(s.turns)
	role := s.state.Role
	profile := s.profile
	gate := s.gate
	s.mu.Unlock()

	// Network round trip happens outside the lock; the evaluating guard keeps
	// the session single-flight.
	eval := o.evaluator.Evaluate(ctx, gate, turnIndex, role, pending.q, answer, profile)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		s.evaluating = false
		s.cond.Broadcast()
	}()

	topic := o.tracker.InferTopic(pending.q.Topic, pending.q.Text, answer)
	turn := domain.TurnRecord{
		Index:           turnIndex,
		Question:        pending.q.Text,
		Answer:          answer,
		Topic:           topic,
		Stage:           s.state.Stage,
		Difficulty:      pending.q.Difficulty,
		ResponseLatency: responseLatency,
		AnswerDuration:  answerDuration,
		Metrics:         eval.Metrics,
		Score:           eval.Score,
		Quality:         eval.Quality,
		Strengths:       eval.Strengths,
		Weaknesses:      eval.Weaknesses,
		Provenance:      eval.Provenance,
		AskedAt:         pending.askedAt,
	}

	signals := o.anticheat.InspectTurn(turn)
	for _, sig := range signals {
		turn.SuspiciousTags = append(turn.SuspiciousTags, sig.Code)
	}
	s.signals = append(s.signals, signals...)

	s.turns = append(s.turns, turn)
	o.tracker.UpdateTopic(s.ledger, topic, answer, eval.Score)
	o.tracker.UpdateSkills(s.profile, answer, eval)
	s.state.Difficulty = o.difficulty.Next(s.state.Difficulty, eval.Score, eval.RecommendedDifficulty)
	s.prev = &lastTurn{Topic: topic, Answer: answer, Score: eval.Score}

	observability.TurnScoreHistogram.Observe(float64(eval.Score))
	slog.Info("turn evaluated",
		slog.String("session_id", s.ID),
		slog.Int("turn", turnIndex),
		slog.Int("score", eval.Score),
		slog.String("provenance", string(eval.Provenance)),
		slog.Int("next_difficulty", s.state.Difficulty))
	return &turn, nil
}

// Finalize runs the integrity audit and synthesis, persists the bundle and
// fans it out. It waits for an in-flight evaluation to land first, so an
// early end never drops the last turn. Finalize is idempotent: repeat calls
// return the stored bundle.
func (o *Orchestrator) Finalize(ctx domain.Context, sessionID string) (*domain.InterviewBundle, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for s.evaluating || s.generating {
		s.cond.Wait()
	}
	if s.finalized {
		b := s.bundle
		s.mu.Unlock()
		return b, nil
	}
	s.finalized = true
	s.state.Terminal = true
	turns := append([]domain.TurnRecord(nil), s.turns...)
	signals := append([]domain.AntiCheatSignal(nil), s.signals...)
	profile := s.profile
	role := s.state.Role
	budget := s.state.QuestionBudget
	gate := s.gate
	s.mu.Unlock()

	transcript := BuildTranscript(turns)
	report := o.anticheat.Audit(ctx, gate, transcript, turns, signals)
	snap := gate.Budget()
	final := o.synth.Synthesize(ctx, gate, role, turns, profile, report, snap.Degraded)

	snap = gate.Budget()
	bundle := &domain.InterviewBundle{
		SessionID:    sessionID,
		Role:         role,
		Turns:        turns,
		Skills:       profile,
		AntiCheat:    report,
		Final:        final,
		Signals:      signals,
		CallsUsed:    snap.CallsUsed,
		Degraded:     snap.Degraded || final.Degraded,
		FinalizedAt:  time.Now().UTC(),
		QuestionsCap: budget,
	}

	if o.sink != nil {
		if err := o.sink.Store(ctx, *bundle); err != nil {
			// The interview result must survive in memory even if storage is down.
			slog.Error("bundle store failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
	}
	if o.publisher != nil {
		if coord, err := o.publisher.Publish(ctx, *bundle); err != nil {
			slog.Error("bundle publish failed", slog.String("session_id", sessionID), slog.Any("error", err))
		} else {
			slog.Info("bundle published", slog.String("session_id", sessionID), slog.String("record", coord))
		}
	}

	s.mu.Lock()
	s.bundle = bundle
	s.finalizedAt = bundle.FinalizedAt
	s.mu.Unlock()

	observability.InterviewsFinalizedTotal.WithLabelValues(string(final.Verdict)).Inc()
	slog.Info("interview finalized",
		slog.String("session_id", sessionID),
		slog.Int("overall_score", final.OverallScore),
		slog.String("verdict", string(final.Verdict)),
		slog.Bool("degraded", bundle.Degraded),
		slog.Int("calls_used", bundle.CallsUsed))
	return bundle, nil
}

// View returns a read-only snapshot of the session.
func (o *Orchestrator) View(sessionID string) (*SessionView, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s), nil
}

// Bundle returns the finalized bundle for a session, or ErrConflict if the
// session has not been finalized yet.
func (o *Orchestrator) Bundle(sessionID string) (*domain.InterviewBundle, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bundle == nil {
		return nil, fmt.Errorf("%w: session %s not finalized", domain.ErrConflict, sessionID)
	}
	return s.bundle, nil
}

// EvictFinalized drops finalized sessions older than the retention window
// from the registry and reports how many were removed. The bundle is durable
// downstream by then; result reads fall through to the cache and store.
func (o *Orchestrator) EvictFinalized(olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)

	o.mu.Lock()
	defer o.mu.Unlock()
	evicted := 0
	for id, s := range o.sessions {
		s.mu.Lock()
		expired := s.finalized && !s.finalizedAt.IsZero() && s.finalizedAt.Before(cutoff)
		s.mu.Unlock()
		if expired {
			delete(o.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (o *Orchestrator) session(id string) (*Session, error) {
	o.mu.RLock()
	s, ok := o.sessions[id]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return s, nil
}

// advance recomputes stage and phase from the question count. Stages only
// move forward: a derived earlier stage never overwrites a later one.
func (s *Session) advance() {
	stage := StageForQuestion(s.state.QuestionsAsked, s.state.QuestionBudget)
	if stageRank(stage) > stageRank(s.state.Stage) {
		s.state.Stage = stage
	}
	s.state.Phase = PhaseForQuestion(s.state.QuestionsAsked, s.state.QuestionBudget)
}

func stageRank(stage domain.Stage) int {
	for i, st := range domain.Stages {
		if st == stage {
			return i
		}
	}
	return -1
}

func askedFrom(s *Session, p *pendingQuestion) *AskedQuestion {
	return &AskedQuestion{
		Text:       p.q.Text,
		Topic:      p.q.Topic,
		Stage:      s.state.Stage,
		Phase:      s.state.Phase,
		Difficulty: p.q.Difficulty,
		Number:     s.state.QuestionsAsked,
		Total:      s.state.QuestionBudget,
		Source:     p.source,
	}
}

func snapshot(s *Session) *SessionView {
	return &SessionView{
		ID:             s.ID,
		Role:           s.state.Role,
		Stage:          s.state.Stage,
		Phase:          s.state.Phase,
		Difficulty:     s.state.Difficulty,
		QuestionsAsked: s.state.QuestionsAsked,
		QuestionBudget: s.state.QuestionBudget,
		Terminal:       s.state.Terminal,
		Finalized:      s.finalized,
		Budget:         s.gate.Budget(),
		Turns:          append([]domain.TurnRecord(nil), s.turns...),
	}
}
