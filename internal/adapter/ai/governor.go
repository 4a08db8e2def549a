package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

// Governor is the sole gateway to the external reasoning service for one
// interview session. It enforces the call budget, minimum inter-call spacing
// and a hard per-call timeout, and validates every payload against the schema
// of its call site. It carries no retry logic: callers decide whether to fall
// back to heuristics or skip.
type Governor struct {
	client  domain.ReasoningClient
	budget  *domain.CallBudget
	timeout time.Duration
	now     func() time.Time
}

// NewGovernor constructs a Governor around the given client and owned budget.
func NewGovernor(client domain.ReasoningClient, budget *domain.CallBudget, timeout time.Duration) *Governor {
	return &Governor{client: client, budget: budget, timeout: timeout, now: time.Now}
}

// Budget returns a snapshot of the session call accounting.
func (g *Governor) Budget() domain.BudgetSnapshot { return g.budget.Snapshot() }

// Call runs one governed reasoning call. Precondition order is fixed: quota
// first, spacing second; neither consumes budget. Only a fully validated,
// well-typed payload yields OK=true.
func (g *Governor) Call(ctx domain.Context, req domain.CallRequest) domain.CallResult {
	lg := slog.Default().With(slog.String("kind", string(req.Kind)), slog.String("model", req.ModelID))

	if reason := g.budget.Reserve(g.now()); reason != domain.FallbackNone {
		observability.ReasoningCallsTotal.WithLabelValues(string(req.Kind), string(reason)).Inc()
		lg.Debug("reasoning call gated", slog.String("fallback_reason", string(reason)))
		return fallback(reason, nil)
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := g.now()
	raw, err := g.client.Invoke(cctx, req.ModelID, req.SystemPrompt, req.UserPrompt)
	observability.ReasoningCallDuration.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		g.budget.MarkDegraded()
		reason := domain.FallbackServiceError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrUpstreamTimeout) {
			reason = domain.FallbackTimeout
		}
		observability.ReasoningCallsTotal.WithLabelValues(string(req.Kind), string(reason)).Inc()
		lg.Warn("reasoning call failed", slog.String("fallback_reason", string(reason)), slog.Any("error", err))
		return fallback(reason, err)
	}

	payload, cleaned, err := decodePayload(req.Kind, raw)
	if err != nil {
		g.budget.MarkDegraded()
		observability.ReasoningCallsTotal.WithLabelValues(string(req.Kind), string(domain.FallbackParseError)).Inc()
		// Parse errors are logged distinctly: they indicate schema drift in the
		// provider output, not an outage.
		lg.Error("reasoning payload rejected",
			slog.Int("response_length", len(raw)),
			slog.Any("error", err))
		return fallback(domain.FallbackParseError, err)
	}

	observability.ReasoningCallsTotal.WithLabelValues(string(req.Kind), "external").Inc()
	lg.Debug("reasoning call succeeded", slog.Int("payload_length", len(cleaned)))
	return domain.CallResult{OK: true, FromExternal: true, Payload: payload, Raw: json.RawMessage(cleaned)}
}

func fallback(reason domain.FallbackReason, err error) domain.CallResult {
	return domain.CallResult{FallbackReason: reason, Err: err}
}

// decodePayload extracts the first balanced JSON object from the raw response
// and validates it against the call site's schema.
func decodePayload(kind domain.CallKind, raw string) (any, string, error) {
	fragment := ExtractJSONObject(raw)
	if fragment == "" {
		return nil, "", fmt.Errorf("%w: no JSON object in response", domain.ErrSchemaInvalid)
	}
	fragment = RepairJSON(fragment)

	unmarshal := func(v any) error {
		if err := json.Unmarshal([]byte(fragment), v); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
		}
		return nil
	}

	switch kind {
	case domain.CallEvaluateTurn:
		var p domain.TurnAssessment
		if err := unmarshal(&p); err != nil {
			return nil, "", err
		}
		if err := p.Validate(); err != nil {
			return nil, "", err
		}
		return p, fragment, nil
	case domain.CallPlanQuestion:
		var p domain.PlannedQuestion
		if err := unmarshal(&p); err != nil {
			return nil, "", err
		}
		if err := p.Validate(); err != nil {
			return nil, "", err
		}
		return p, fragment, nil
	case domain.CallAntiCheatAudit:
		var p domain.AuditFinding
		if err := unmarshal(&p); err != nil {
			return nil, "", err
		}
		if err := p.Validate(); err != nil {
			return nil, "", err
		}
		return p, fragment, nil
	case domain.CallDraftEval:
		var p domain.DraftEvaluation
		if err := unmarshal(&p); err != nil {
			return nil, "", err
		}
		if err := p.Validate(); err != nil {
			return nil, "", err
		}
		return p, fragment, nil
	case domain.CallRefineEval:
		var p domain.RefinedEvaluation
		if err := unmarshal(&p); err != nil {
			return nil, "", err
		}
		if err := p.Validate(); err != nil {
			return nil, "", err
		}
		return p, fragment, nil
	default:
		return nil, "", fmt.Errorf("%w: unknown call kind %q", domain.ErrInvalidArgument, kind)
	}
}
