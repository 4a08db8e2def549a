package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
	"github.com/fairyhunter13/ai-interview-pipeline/pkg/lexical"
)

// SelectionSource records which tier of the selection ladder produced a
// question, surfaced for logging and tests.
type SelectionSource string

// Question selection sources, in ladder order.
const (
	SourceFollowUp   SelectionSource = "follow_up"
	SourceBank       SelectionSource = "bank"
	SourceContextual SelectionSource = "contextual"
	SourceExternal   SelectionSource = "external"
	SourceGeneric    SelectionSource = "generic"
)

// Selection is a chosen question plus its provenance.
type Selection struct {
	Question domain.BankQuestion
	Source   SelectionSource
}

// lastTurn is the context the selector needs from the previous exchange.
type lastTurn struct {
	Topic  string
	Answer string
	Score  int
}

// QuestionSelector implements the four-tier selection ladder: scripted
// follow-up, bank lookup, local contextual generation, external planning.
type QuestionSelector struct {
	cfg     config.Config
	bank    domain.QuestionBank
	roleKey func(string) string
}

// NewQuestionSelector constructs the selector. roleKey maps a free-form role
// string to a bank category.
func NewQuestionSelector(cfg config.Config, bank domain.QuestionBank, roleKey func(string) string) *QuestionSelector {
	return &QuestionSelector{cfg: cfg, bank: bank, roleKey: roleKey}
}

// Select picks the next question. used holds already-asked question texts and
// is the caller's; the selector only reads it. The ledger's follow-up counter
// is incremented here when the follow-up tier fires.
func (s *QuestionSelector) Select(ctx domain.Context, gate domain.CallGate, state domain.InterviewState, ledger *domain.TopicLedger, profile *domain.SkillProfile, prev *lastTurn, used map[string]struct{}) Selection {
	// Wrap-up always advances: no follow-up loops at the end of the interview.
	if prev != nil && state.Stage != domain.StageWrapUp {
		if sel, ok := s.followUp(ledger, prev); ok {
			return sel
		}
	}

	q, err := s.bank.Lookup(s.roleKey(state.Role), state.Stage, state.Difficulty, used)
	if err == nil {
		return Selection{Question: q, Source: SourceBank}
	}
	if !errors.Is(err, domain.ErrNotFound) {
		slog.Error("bank lookup failed", slog.Any("error", err))
	}

	if sel, ok := s.contextual(state, prev); ok {
		return sel
	}

	return s.plan(ctx, gate, state, ledger, profile, prev)
}

func (s *QuestionSelector) followUp(ledger *domain.TopicLedger, prev *lastTurn) (Selection, bool) {
	entry := ledger.Entry(prev.Topic)
	if entry.Status != domain.TopicActive || entry.FollowUps >= s.cfg.FollowUpCap {
		return Selection{}, false
	}
	text, err := s.bank.FollowUp(prev.Topic, entry.FollowUps)
	if err != nil {
		return Selection{}, false
	}
	entry.FollowUps++
	return Selection{
		Question: domain.BankQuestion{Text: text, Topic: prev.Topic},
		Source:   SourceFollowUp,
	}, true
}

// contextual synthesizes a question locally from the previous answer: probe a
// mentioned technology, ask for clarification on weak answers, or push deeper
// on strong ones.
func (s *QuestionSelector) contextual(state domain.InterviewState, prev *lastTurn) (Selection, bool) {
	if prev == nil || strings.TrimSpace(prev.Answer) == "" {
		return Selection{}, false
	}

	if tech, ok := mentionedTechnology(prev.Answer); ok {
		return Selection{
			Question: domain.BankQuestion{
				Text:  fmt.Sprintf("You mentioned %s earlier. What tradeoffs did you run into with it, and how did you handle them?", tech),
				Topic: prev.Topic,
			},
			Source: SourceContextual,
		}, true
	}

	if prev.Score < s.cfg.LowScoreThreshold {
		return Selection{
			Question: domain.BankQuestion{
				Text:  "Your last answer was quite brief. Could you pick one part of it and walk me through it in concrete detail?",
				Topic: prev.Topic,
			},
			Source: SourceContextual,
		}, true
	}

	if prev.Score > s.cfg.HighScoreThreshold {
		return Selection{
			Question: domain.BankQuestion{
				Text:  "That was solid. Now push it further: what breaks in your approach at ten times the scale, and what would you change first?",
				Topic: prev.Topic,
			},
			Source: SourceContextual,
		}, true
	}

	return Selection{}, false
}

func (s *QuestionSelector) plan(ctx domain.Context, gate domain.CallGate, state domain.InterviewState, ledger *domain.TopicLedger, profile *domain.SkillProfile, prev *lastTurn) Selection {
	covered := make([]string, 0, len(ledger.Topics))
	for topic := range ledger.Topics {
		covered = append(covered, topic)
	}
	lastAnswer := ""
	if prev != nil {
		lastAnswer = prev.Answer
	}

	res := gate.Call(ctx, domain.CallRequest{
		Kind:         domain.CallPlanQuestion,
		ModelID:      s.cfg.PlannerModel,
		SystemPrompt: SystemPrompt(domain.CallPlanQuestion),
		UserPrompt:   BuildPlanQuestionPrompt(state.Role, state.Stage, state.Difficulty, covered, WeakSkills(profile), lastAnswer),
	})
	if res.OK {
		if planned, ok := res.Payload.(domain.PlannedQuestion); ok {
			topic := planned.Topic
			if topic == "" {
				topic = GeneralTopic
			}
			return Selection{
				Question: domain.BankQuestion{Text: planned.Question, Topic: topic, Difficulty: state.Difficulty},
				Source:   SourceExternal,
			}
		}
		slog.Error("unexpected payload type for planned question",
			slog.String("type", fmt.Sprintf("%T", res.Payload)))
	}

	slog.Debug("external planning unavailable, using generic question",
		slog.String("fallback_reason", string(res.FallbackReason)))
	return Selection{
		Question: domain.BankQuestion{
			Text:  fmt.Sprintf("Tell me about a challenging problem you solved recently as a %s, and what made it hard.", strings.ToLower(state.Role)),
			Topic: GeneralTopic,
		},
		Source: SourceGeneric,
	}
}

// technologies the contextual tier knows how to probe.
var probeTechnologies = []string{
	"kafka", "redis", "postgres", "mysql", "kubernetes", "docker", "terraform",
	"graphql", "grpc", "elasticsearch", "rabbitmq", "mongodb", "cassandra", "spark",
}

func mentionedTechnology(answer string) (string, bool) {
	text := strings.ToLower(answer)
	for _, tech := range probeTechnologies {
		if lexical.ContainsAny(text, []string{tech}) {
			return tech, true
		}
	}
	return "", false
}

// StageForQuestion derives the stage from the zero-based question index.
// Progression is monotonic; boundaries scale with the total budget.
func StageForQuestion(index, total int) domain.Stage {
	if total < 1 {
		total = 1
	}
	switch {
	case index == 0:
		return domain.StageBackground
	case index >= total-1:
		return domain.StageWrapUp
	}
	// Remaining stages split the middle proportionally.
	frac := float64(index) / float64(total)
	switch {
	case frac < 0.40:
		return domain.StageCore
	case frac < 0.60:
		return domain.StageDeepDive
	case frac < 0.75:
		return domain.StageCase
	default:
		return domain.StageDebug
	}
}

// PhaseForQuestion derives the coarse progress bucket from the question index.
func PhaseForQuestion(index, total int) domain.Phase {
	if total < 1 {
		total = 1
	}
	switch {
	case index == 0:
		return domain.PhaseIntro
	case index >= total-1:
		return domain.PhaseWrapUp
	}
	if float64(index)/float64(total) < 0.60 {
		return domain.PhaseCore
	}
	return domain.PhaseDeepDive
}
