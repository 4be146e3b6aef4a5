package matchmaking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/ai"
)

const comparatorSystemPrompt = "You're an expert matchmaker. You'll be given attributes from 2 different people's " +
	"matchmaking profiles in JSON format, compare them and output a compatibility score (on a scale of 1 to 10)."

const (
	minSubScore = 1
	maxSubScore = 10
)

// Comparator produces an integer compatibility sub-score in [1, 10] for a
// single attribute of two profiles. An error means the attribute must be
// skipped for that candidate, not defaulted or clamped.
type Comparator interface {
	Compare(ctx context.Context, attribute string, requester, candidate any) (int, error)
}

// AIComparator implements Comparator with one AI call per (candidate, attribute)
// pair, constrained by a strict single-integer schema.
type AIComparator struct {
	completer ai.StructuredCompleter
	logger    *zap.Logger
}

func NewAIComparator(completer ai.StructuredCompleter, logger *zap.Logger) *AIComparator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIComparator{completer: completer, logger: logger}
}

func (c *AIComparator) Compare(ctx context.Context, attribute string, requester, candidate any) (int, error) {
	payload, err := json.Marshal(map[string]any{
		"attribute": attribute,
		"Person 1":  requester,
		"Person 2":  candidate,
	})
	if err != nil {
		return 0, fmt.Errorf("encode attribute %s: %w", attribute, err)
	}

	raw, err := c.completer.Complete(ctx, ai.StructuredRequest{
		System:   comparatorSystemPrompt,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: string(payload)}},
		Schema: ai.Object(map[string]*ai.Schema{
			"compatibility_score": {Type: ai.TypeInteger},
		}),
	})
	if err != nil {
		return 0, fmt.Errorf("compare attribute %s: %w", attribute, err)
	}

	score, err := parseSubScore(raw)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", attribute, err)
	}

	c.logger.Debug("attribute compared",
		zap.String("attribute", attribute),
		zap.Int("sub_score", score),
	)

	return score, nil
}

// parseSubScore enforces the [1, 10] integer contract. Out-of-range or
// non-integer responses are rejected so the caller skips the attribute instead
// of silently clamping it.
func parseSubScore(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var response struct {
		CompatibilityScore json.Number `json:"compatibility_score"`
	}
	if err := dec.Decode(&response); err != nil {
		return 0, fmt.Errorf("decode compatibility score: %w", err)
	}

	score, err := response.CompatibilityScore.Int64()
	if err != nil {
		return 0, fmt.Errorf("compatibility score %q is not an integer", response.CompatibilityScore)
	}

	if score < minSubScore || score > maxSubScore {
		return 0, fmt.Errorf("compatibility score %d is outside [%d, %d]", score, minSubScore, maxSubScore)
	}

	return int(score), nil
}
