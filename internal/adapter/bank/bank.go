// Package bank serves interview questions from a static dataset embedded at
// build time. The dataset is read-only: lookups never mutate it, so one Bank
// instance is safe for concurrent sessions.
package bank

import (
	_ "embed"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

//go:embed questions.yaml
var bankYAML []byte

// GenericRole is the fallback role category used when a role string maps to
// no specific category or the category has no question for the request.
const GenericRole = "generic"

type yamlQuestion struct {
	Text       string   `yaml:"text"`
	Topic      string   `yaml:"topic"`
	Difficulty int      `yaml:"difficulty"`
	Keywords   []string `yaml:"keywords"`
}

type yamlDataset struct {
	Roles     map[string]map[string][]yamlQuestion `yaml:"roles"`
	FollowUps map[string][]string                  `yaml:"follow_ups"`
}

// Bank implements domain.QuestionBank over the embedded dataset.
type Bank struct {
	roles     map[string]map[domain.Stage][]domain.BankQuestion
	followUps map[string][]string

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Bank.
type Option func(*Bank)

// WithRand sets the random source, used by tests for determinism.
func WithRand(rng *rand.Rand) Option {
	return func(b *Bank) { b.rng = rng }
}

// New parses the embedded dataset. It fails only on a malformed dataset,
// which is a build defect rather than a runtime condition.
func New(opts ...Option) (*Bank, error) {
	var ds yamlDataset
	if err := yaml.Unmarshal(bankYAML, &ds); err != nil {
		return nil, fmt.Errorf("parse question dataset: %w", err)
	}
	if len(ds.Roles[GenericRole]) == 0 {
		return nil, fmt.Errorf("question dataset missing %q role", GenericRole)
	}

	b := &Bank{
		roles:     make(map[string]map[domain.Stage][]domain.BankQuestion, len(ds.Roles)),
		followUps: ds.FollowUps,
		rng:       rand.New(rand.NewSource(rand.Int63())), //nolint:gosec // question shuffling, not crypto
	}
	for role, stages := range ds.Roles {
		byStage := make(map[domain.Stage][]domain.BankQuestion, len(stages))
		for stage, questions := range stages {
			qs := make([]domain.BankQuestion, 0, len(questions))
			for _, q := range questions {
				if q.Text == "" || q.Topic == "" {
					return nil, fmt.Errorf("question dataset: empty text or topic under %s/%s", role, stage)
				}
				if q.Difficulty < domain.DifficultyMin || q.Difficulty > domain.DifficultyMax {
					return nil, fmt.Errorf("question dataset: difficulty %d out of range under %s/%s", q.Difficulty, role, stage)
				}
				qs = append(qs, domain.BankQuestion{
					Text:             q.Text,
					Topic:            q.Topic,
					Difficulty:       q.Difficulty,
					ExpectedKeywords: q.Keywords,
				})
			}
			byStage[domain.Stage(stage)] = qs
		}
		b.roles[role] = byStage
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// MustNew is New for wiring paths where a malformed embedded dataset should
// stop the process.
func MustNew(opts ...Option) *Bank {
	b, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// RoleKey maps a free-form role string to a dataset category.
func RoleKey(role string) string {
	r := strings.ToLower(role)
	switch {
	case strings.Contains(r, "backend"), strings.Contains(r, "back-end"), strings.Contains(r, "server"):
		return "backend"
	case strings.Contains(r, "frontend"), strings.Contains(r, "front-end"), strings.Contains(r, "web"):
		return "frontend"
	case strings.Contains(r, "data"), strings.Contains(r, "analytics"), strings.Contains(r, "ml"):
		return "data"
	case strings.Contains(r, "devops"), strings.Contains(r, "sre"), strings.Contains(r, "platform"), strings.Contains(r, "infra"):
		return "platform"
	default:
		return GenericRole
	}
}

// Lookup returns a question for the stage at the requested difficulty,
// widening to +-1 difficulty and then to the generic role before giving up
// with ErrNotFound. Questions whose text appears in exclude are skipped.
func (b *Bank) Lookup(roleKey string, stage domain.Stage, difficulty int, exclude map[string]struct{}) (domain.BankQuestion, error) {
	for _, role := range rolePath(roleKey) {
		stages, ok := b.roles[role]
		if !ok {
			continue
		}
		// Exact difficulty first, then one step out in either direction.
		for _, d := range []int{difficulty, difficulty - 1, difficulty + 1} {
			if d < domain.DifficultyMin || d > domain.DifficultyMax {
				continue
			}
			if q, ok := b.pick(stages[stage], d, exclude); ok {
				return q, nil
			}
		}
	}
	return domain.BankQuestion{}, fmt.Errorf("%w: no question for stage=%s difficulty=%d", domain.ErrNotFound, stage, difficulty)
}

// FollowUp returns the n-th scripted follow-up (0-based) for a topic.
func (b *Bank) FollowUp(topic string, n int) (string, error) {
	scripted, ok := b.followUps[topic]
	if !ok || n < 0 || n >= len(scripted) {
		return "", fmt.Errorf("%w: no follow-up %d for topic %q", domain.ErrNotFound, n, topic)
	}
	return scripted[n], nil
}

func rolePath(roleKey string) []string {
	if roleKey == GenericRole {
		return []string{GenericRole}
	}
	return []string{roleKey, GenericRole}
}

func (b *Bank) pick(pool []domain.BankQuestion, difficulty int, exclude map[string]struct{}) (domain.BankQuestion, bool) {
	candidates := make([]domain.BankQuestion, 0, len(pool))
	for _, q := range pool {
		if q.Difficulty != difficulty {
			continue
		}
		if _, used := exclude[q.Text]; used {
			continue
		}
		candidates = append(candidates, q)
	}
	if len(candidates) == 0 {
		return domain.BankQuestion{}, false
	}
	b.mu.Lock()
	idx := b.rng.Intn(len(candidates))
	b.mu.Unlock()
	return candidates[idx], true
}
