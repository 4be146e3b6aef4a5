package matchmaking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/ai"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/profile"
)

// WeightVector maps attribute names to non-negative importance multipliers.
// Values usually fall in [0, 1] but no upper bound is enforced; they are used
// as raw multipliers without normalization. A missing entry contributes zero.
type WeightVector map[string]float64

// IsEmpty reports whether the vector carries no usable weight at all, which
// callers must read as "weighting unavailable" rather than as a verdict that
// nothing matters to the user.
func (w WeightVector) IsEmpty() bool {
	for _, v := range w {
		if v > 0 {
			return false
		}
	}
	return true
}

// Deriver turns one user's profile into a per-attribute weighting.
type Deriver interface {
	Derive(ctx context.Context, p *profile.Profile) WeightVector
}

// defaultStaticWeights is the attribute-general reference table used when no
// override is configured and as the fallback when adaptive derivation fails.
var defaultStaticWeights = WeightVector{
	profile.AttrRelationshipGoals:   1.0,
	profile.AttrAppearance:          0.7,
	profile.AttrLocation:            0.8,
	profile.AttrSpirituality:        0.6,
	profile.AttrPersonality:         0.9,
	profile.AttrAge:                 0.8,
	profile.AttrInterests:           0.7,
	profile.AttrIdentity:            1.0,
	profile.AttrKids:                0.9,
	profile.AttrSmoking:             0.5,
	profile.AttrPets:                0.4,
	profile.AttrCareerGoals:         0.5,
	profile.AttrAnnualIncome:        0.3,
	profile.AttrWillingnessToTravel: 0.5,
	profile.AttrSpecialRequests:     0.6,
}

// StaticDeriver returns a fixed table regardless of the profile. It is fully
// deterministic and serves as the reference strategy the adaptive one degrades
// to.
type StaticDeriver struct {
	table WeightVector
}

// NewStaticDeriver builds a static deriver. Overrides replace individual table
// entries; unknown attribute names and negative values are ignored.
func NewStaticDeriver(overrides map[string]float64) *StaticDeriver {
	table := make(WeightVector, len(defaultStaticWeights))
	for name, weight := range defaultStaticWeights {
		table[name] = weight
	}
	for name, weight := range overrides {
		if !profile.IsAttribute(name) || weight < 0 {
			continue
		}
		table[name] = weight
	}
	return &StaticDeriver{table: table}
}

func (d *StaticDeriver) Derive(_ context.Context, _ *profile.Profile) WeightVector {
	out := make(WeightVector, len(d.table))
	for name, weight := range d.table {
		out[name] = weight
	}
	return out
}

const weightsSystemPrompt = "You are an expert in matchmaking. Generate weights based on user profile attributes."

// AdaptiveDeriver asks the AI capability for a per-user weighting based on a
// natural-language description of the profile. The response is constrained to
// one numeric field per attribute, each expected in [0, 1].
type AdaptiveDeriver struct {
	completer ai.StructuredCompleter
	logger    *zap.Logger
}

func NewAdaptiveDeriver(completer ai.StructuredCompleter, logger *zap.Logger) *AdaptiveDeriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdaptiveDeriver{completer: completer, logger: logger}
}

// Derive returns the AI-generated weighting. On call failure or malformed
// output it returns an empty vector: weighting unavailable, never a
// zero-compatibility verdict. The fault is logged, not raised.
func (d *AdaptiveDeriver) Derive(ctx context.Context, p *profile.Profile) WeightVector {
	raw, err := d.completer.Complete(ctx, ai.StructuredRequest{
		System:   weightsSystemPrompt,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: weightsPrompt(p)}},
		Schema:   weightsSchema(),
	})
	if err != nil {
		d.logger.Warn("adaptive weight derivation failed", zap.Error(err))
		return WeightVector{}
	}

	weights, err := parseWeights(raw)
	if err != nil {
		d.logger.Warn("adaptive weights response rejected", zap.Error(err))
		return WeightVector{}
	}

	return weights
}

func weightsPrompt(p *profile.Profile) string {
	var b strings.Builder
	b.WriteString("Generate weights for the following user attributes based on user preferences:\n")
	for _, name := range profile.Attributes() {
		value, _ := p.Attribute(name)
		encoded, err := json.Marshal(value)
		if err != nil {
			encoded = []byte(`""`)
		}
		fmt.Fprintf(&b, "%s: %s\n", name, encoded)
	}
	b.WriteString("Please output a JSON object with weights for each attribute, scaled between 0 and 1.")
	return b.String()
}

func weightsSchema() *ai.Schema {
	properties := make(map[string]*ai.Schema)
	for _, name := range profile.Attributes() {
		properties[name] = &ai.Schema{Type: ai.TypeNumber}
	}
	return &ai.Schema{
		Type:       ai.TypeObject,
		Properties: properties,
		Required:   profile.Attributes(),
	}
}

// parseWeights decodes the response, drops unknown attribute names so the
// fixed set cannot grow, and drops negative values.
func parseWeights(raw json.RawMessage) (WeightVector, error) {
	var decoded map[string]float64
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}

	weights := make(WeightVector, len(decoded))
	for name, value := range decoded {
		if !profile.IsAttribute(name) {
			continue
		}
		if value < 0 {
			continue
		}
		weights[name] = value
	}

	return weights, nil
}
