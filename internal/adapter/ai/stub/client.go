// Package stub provides a fast, deterministic reasoning client for local
// development when no provider API key is configured.
package stub

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

// Client answers every call kind with a fixed, schema-valid payload. The call
// kind is inferred from the prompt contract so one Invoke covers all sites.
type Client struct{}

// New constructs a stub client.
func New() *Client { return &Client{} }

// Invoke returns a canned JSON payload matching the schema the prompt asks for.
func (c *Client) Invoke(_ domain.Context, _ string, _ string, userPrompt string) (string, error) {
	// Simulate a tiny bit of processing latency to resemble real work
	time.Sleep(20 * time.Millisecond)

	var payload map[string]any
	switch {
	case strings.Contains(userPrompt, `"refinement_notes"`):
		payload = map[string]any{
			"overall_score":    70,
			"verdict":          "lean_hire",
			"strengths":        []string{"consistent, concrete answers"},
			"weaknesses":       []string{"limited depth on advanced topics"},
			"skill_scores":     map[string]int{"General Technical": 70},
			"summary":          "Draft confirmed after consistency review.",
			"refinement_notes": "no contradictions found",
		}
	case strings.Contains(userPrompt, `"overall_score"`):
		payload = map[string]any{
			"overall_score": 68,
			"verdict":       "lean_hire",
			"strengths":     []string{"clear communication"},
			"weaknesses":    []string{"few quantified outcomes"},
			"skill_scores":  map[string]int{"General Technical": 68},
			"summary":       "Competent candidate with steady performance across stages.",
		}
	case strings.Contains(userPrompt, `"risk_score"`):
		payload = map[string]any{
			"risk_score": 10,
			"flags":      []string{},
			"verdict":    "clean",
		}
	case strings.Contains(userPrompt, `"question"`):
		payload = map[string]any{
			"question": "Tell me about a production incident you handled end to end.",
			"topic":    "Operations",
		}
	default:
		payload = map[string]any{
			"score":                  65,
			"quality":                "average",
			"strengths":              []string{"answers the question directly"},
			"weaknesses":             []string{"light on specifics"},
			"skill_deltas":           map[string]int{},
			"recommended_difficulty": 0,
		}
	}
	b, _ := json.Marshal(payload)
	return string(b), nil
}
