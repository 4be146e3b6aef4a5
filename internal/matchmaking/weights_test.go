package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/ai"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/profile"
)

type stubCompleter struct {
	response json.RawMessage
	err      error
	requests []ai.StructuredRequest
}

func (s *stubCompleter) Complete(_ context.Context, req ai.StructuredRequest) (json.RawMessage, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func TestStaticDeriverIsDeterministic(t *testing.T) {
	deriver := NewStaticDeriver(nil)

	first := deriver.Derive(context.Background(), &profile.Profile{Smoking: "never"})
	second := deriver.Derive(context.Background(), &profile.Profile{Pets: "a dog"})

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical vectors regardless of profile")
	}
	if len(first) != len(profile.Attributes()) {
		t.Fatalf("expected a weight for every attribute, got %d", len(first))
	}
}

func TestStaticDeriverOverrides(t *testing.T) {
	deriver := NewStaticDeriver(map[string]float64{
		profile.AttrPets: 1.0,
		"favorite_color": 0.9,
		profile.AttrKids: -0.5,
		profile.AttrAge:  0,
	})

	weights := deriver.Derive(context.Background(), &profile.Profile{})

	if weights[profile.AttrPets] != 1.0 {
		t.Fatalf("expected override to apply, got %v", weights[profile.AttrPets])
	}
	if _, ok := weights["favorite_color"]; ok {
		t.Fatalf("expected unknown attribute override to be ignored")
	}
	if weights[profile.AttrKids] != defaultStaticWeights[profile.AttrKids] {
		t.Fatalf("expected negative override to be ignored, got %v", weights[profile.AttrKids])
	}
	if weights[profile.AttrAge] != 0 {
		t.Fatalf("expected zero override to apply, got %v", weights[profile.AttrAge])
	}
}

func TestStaticDeriverReturnsCopy(t *testing.T) {
	deriver := NewStaticDeriver(nil)

	weights := deriver.Derive(context.Background(), &profile.Profile{})
	weights[profile.AttrAge] = 42

	if deriver.Derive(context.Background(), &profile.Profile{})[profile.AttrAge] == 42 {
		t.Fatalf("expected caller mutation to not leak into the table")
	}
}

func TestAdaptiveDeriver(t *testing.T) {
	stub := &stubCompleter{response: json.RawMessage(`{
		"relationship_goals": 1.0,
		"pets": 0.2,
		"smoking": -0.4,
		"favorite_color": 0.9
	}`)}

	deriver := NewAdaptiveDeriver(stub, zap.NewNop())
	weights := deriver.Derive(context.Background(), &profile.Profile{Pets: "a dog"})

	if weights[profile.AttrRelationshipGoals] != 1.0 {
		t.Fatalf("expected relationship goals weight 1.0, got %v", weights[profile.AttrRelationshipGoals])
	}
	if weights[profile.AttrPets] != 0.2 {
		t.Fatalf("expected pets weight 0.2, got %v", weights[profile.AttrPets])
	}
	if _, ok := weights[profile.AttrSmoking]; ok {
		t.Fatalf("expected negative weight to be dropped")
	}
	if _, ok := weights["favorite_color"]; ok {
		t.Fatalf("expected unknown attribute to be dropped")
	}

	if len(stub.requests) != 1 {
		t.Fatalf("expected 1 completion request, got %d", len(stub.requests))
	}
	req := stub.requests[0]
	if req.System != weightsSystemPrompt {
		t.Fatalf("unexpected system prompt: %q", req.System)
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, `"a dog"`) {
		t.Fatalf("expected prompt to carry profile values, got %+v", req.Messages)
	}
	if len(req.Schema.Properties) != len(profile.Attributes()) {
		t.Fatalf("expected one schema property per attribute")
	}
}

func TestAdaptiveDeriverDegradesToEmptyVector(t *testing.T) {
	tests := []struct {
		name string
		stub *stubCompleter
	}{
		{
			name: "call failure",
			stub: &stubCompleter{err: errors.New("backend unavailable")},
		},
		{
			name: "malformed response",
			stub: &stubCompleter{response: json.RawMessage(`not json`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deriver := NewAdaptiveDeriver(tt.stub, zap.NewNop())
			weights := deriver.Derive(context.Background(), &profile.Profile{})

			if !weights.IsEmpty() {
				t.Fatalf("expected empty vector, got %v", weights)
			}
		})
	}
}

func TestWeightVectorIsEmpty(t *testing.T) {
	if !(WeightVector{}).IsEmpty() {
		t.Fatalf("expected empty map to be empty")
	}
	if !(WeightVector{"age": 0}).IsEmpty() {
		t.Fatalf("expected all-zero vector to count as empty")
	}
	if (WeightVector{"age": 0.1}).IsEmpty() {
		t.Fatalf("expected positive weight to count as usable")
	}
}
