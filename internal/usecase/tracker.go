package usecase

import (
	"strings"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
	"github.com/fairyhunter13/ai-interview-pipeline/pkg/lexical"
)

// GeneralTopic is the fallback when no lexicon entry matches the exchange.
const GeneralTopic = "General Technical"

// topicLexicon maps topic names to the keywords that imply them. Matching is
// case-insensitive substring search over question and answer text.
var topicLexicon = map[string][]string{
	"Databases":           {"sql", "database", "postgres", "mysql", "index", "query", "transaction", "schema"},
	"Caching":             {"cache", "redis", "memcached", "ttl", "invalidation"},
	"Distributed Systems": {"distributed", "consensus", "raft", "kafka", "queue", "replication", "partition"},
	"Networking":          {"http", "tcp", "dns", "tls", "network", "socket", "grpc"},
	"Concurrency":         {"thread", "goroutine", "mutex", "lock", "race", "concurrent", "async"},
	"API Design":          {"api", "rest", "endpoint", "versioning", "idempoten"},
	"System Design":       {"design", "architecture", "scalab", "shard", "load balanc"},
	"Debugging":           {"debug", "latency", "profil", "incident", "outage", "investigat"},
	"Observability":       {"metric", "logging", "tracing", "alert", "dashboard", "slo"},
	"Kubernetes":          {"kubernetes", "k8s", "pod", "container", "docker", "deployment"},
	"Data Engineering":    {"etl", "pipeline", "warehouse", "spark", "batch", "stream"},
	"Security":            {"security", "auth", "encryption", "vulnerab", "xss", "injection"},
	"Testing":             {"test", "mock", "coverage", "integration test", "unit test"},
	"Experience":          {"role", "team", "project", "responsib", "career"},
}

// skillLexicon maps skill names to technology keywords found in answers.
var skillLexicon = map[string][]string{
	"Go":         {"golang", " go ", "goroutine"},
	"Python":     {"python", "django", "flask", "pandas"},
	"JavaScript": {"javascript", "typescript", "node", "react"},
	"Java":       {"java ", "spring", "jvm"},
	"SQL":        {"sql", "postgres", "mysql", "query plan"},
	"Kafka":      {"kafka", "redpanda"},
	"Redis":      {"redis", "memcached"},
	"Kubernetes": {"kubernetes", "k8s", "helm"},
	"Docker":     {"docker", "container image"},
	"AWS":        {"aws", "s3", "ec2", "lambda", "dynamodb"},
	"Terraform":  {"terraform", "infrastructure as code"},
}

// Tracker maintains the topic ledger and skill profile across turns. It holds
// no locks of its own: the orchestrator serializes turn processing.
type Tracker struct {
	cfg config.Config
}

// NewTracker constructs a Tracker.
func NewTracker(cfg config.Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// InferTopic finds a topic for the exchange, preferring the question's bank
// topic when present.
func (t *Tracker) InferTopic(bankTopic, question, answer string) string {
	if bankTopic != "" {
		return bankTopic
	}
	text := strings.ToLower(question + " " + answer)
	best, bestHits := GeneralTopic, 0
	for topic, keywords := range topicLexicon {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = topic, hits
		}
	}
	return best
}

// UpdateTopic transitions the ledger entry for the turn's topic: skipped on a
// no-experience admission, completed when the score clears the completion
// threshold, otherwise it stays active.
func (t *Tracker) UpdateTopic(ledger *domain.TopicLedger, topic, answer string, score int) {
	entry := ledger.Entry(topic)
	entry.LastScore = score
	switch {
	case lexical.ContainsAny(strings.ToLower(answer), noExperiencePhrases):
		entry.Status = domain.TopicSkipped
	case score >= t.cfg.CompletionScore:
		entry.Status = domain.TopicCompleted
	default:
		entry.Status = domain.TopicActive
	}
}

// UpdateSkills nudges skill levels from the answer. External per-skill deltas
// take precedence; otherwise matched technology keywords earn a bump scaled
// by answer quality. Levels only move up from keyword evidence; external
// deltas may move them down.
func (t *Tracker) UpdateSkills(profile *domain.SkillProfile, answer string, eval domain.TurnEvaluation) {
	if len(eval.SkillDeltas) > 0 {
		for name, delta := range eval.SkillDeltas {
			t.nudge(profile, name, delta, answer)
		}
		return
	}

	text := strings.ToLower(answer)
	bump := bumpForQuality(eval.Quality)
	if bump == 0 {
		return
	}
	for skill, keywords := range skillLexicon {
		if lexical.ContainsAny(text, keywords) {
			t.nudge(profile, skill, bump, answer)
		}
	}
}

func (t *Tracker) nudge(profile *domain.SkillProfile, name string, delta int, answer string) {
	s, ok := profile.Skills[name]
	if !ok {
		s = &domain.Skill{Name: name}
		profile.Skills[name] = s
	}
	s.Level += delta
	if s.Level < 0 {
		s.Level = 0
	}
	if s.Level > 100 {
		s.Level = 100
	}
	s.Evidence = append(s.Evidence, snippet(answer, 120))
	if limit := t.cfg.MaxEvidencePerSkill; limit > 0 && len(s.Evidence) > limit {
		s.Evidence = s.Evidence[len(s.Evidence)-limit:]
	}
}

func bumpForQuality(q domain.QualityTier) int {
	switch q {
	case domain.TierExcellent:
		return 10
	case domain.TierGood:
		return 7
	case domain.TierAverage:
		return 4
	case domain.TierWeak:
		return 1
	default:
		return 0
	}
}

// WeakSkills lists skills below the average level, used to steer planning.
func WeakSkills(profile *domain.SkillProfile) []string {
	if len(profile.Skills) == 0 {
		return nil
	}
	total := 0
	for _, s := range profile.Skills {
		total += s.Level
	}
	avg := total / len(profile.Skills)
	var weak []string
	for _, name := range profile.Names() {
		if profile.Skills[name].Level < avg {
			weak = append(weak, name)
		}
	}
	return weak
}

func snippet(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if i := strings.LastIndex(cut, " "); i > maxLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
