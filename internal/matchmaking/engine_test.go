package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/profile"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/store"
)

type stubProfiles struct {
	profiles map[string]*profile.Profile
	order    []string
	scanErr  error
}

func (s *stubProfiles) GetProfile(_ context.Context, userID string) (*profile.Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *stubProfiles) ScanProfiles(_ context.Context) ([]store.StoredProfile, error) {
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	all := make([]store.StoredProfile, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, store.StoredProfile{UserID: id, Profile: s.profiles[id]})
	}
	return all, nil
}

// tableComparator returns a fixed sub-score per candidate age, keyed off the
// candidate value, so aggregate scores are fully deterministic.
type tableComparator struct {
	mu     sync.Mutex
	scores map[int]int
	errFor map[string]error
	calls  int
}

func (c *tableComparator) Compare(_ context.Context, attribute string, _, candidate any) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	if err, ok := c.errFor[attribute]; ok {
		return 0, err
	}

	age, ok := candidate.(profile.Age)
	if !ok {
		return 0, fmt.Errorf("unexpected candidate value %v", candidate)
	}
	score, ok := c.scores[age.Years]
	if !ok {
		return 0, fmt.Errorf("no score for age %d", age.Years)
	}
	return score, nil
}

func ageOnlyDeriver() Deriver {
	overrides := map[string]float64{}
	for _, name := range profile.Attributes() {
		overrides[name] = 0
	}
	overrides[profile.AttrAge] = 0.5
	return NewStaticDeriver(overrides)
}

func population(ids ...string) *stubProfiles {
	profiles := make(map[string]*profile.Profile, len(ids))
	for i, id := range ids {
		profiles[id] = &profile.Profile{Age: profile.Age{Years: 20 + i}}
	}
	return &stubProfiles{profiles: profiles, order: ids}
}

func TestEngineRunSelectsHighestScore(t *testing.T) {
	profiles := population("requester", "low", "high", "mid")
	comparator := &tableComparator{scores: map[int]int{21: 2, 22: 9, 23: 5}}

	engine := New(profiles, ageOnlyDeriver(), comparator, nil, Config{}, zap.NewNop())

	result, err := engine.Run(context.Background(), "requester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TopMatch == nil {
		t.Fatalf("expected a top match")
	}
	if result.TopMatch.UserID != "high" {
		t.Fatalf("expected high to win, got %s", result.TopMatch.UserID)
	}
	if result.TopMatch.Score != 4.5 {
		t.Fatalf("expected score 9*0.5=4.5, got %v", result.TopMatch.Score)
	}

	if len(result.Scores) != 3 {
		t.Fatalf("expected 3 scored candidates, got %d", len(result.Scores))
	}
	if _, ok := result.Scores["requester"]; ok {
		t.Fatalf("expected requester to be excluded from its own candidate set")
	}
}

func TestEngineRunTieBreaksOnScanOrder(t *testing.T) {
	comparator := &tableComparator{scores: map[int]int{21: 8, 22: 8, 23: 8}}

	profiles := population("requester", "first", "second", "third")
	engine := New(profiles, ageOnlyDeriver(), comparator, nil, Config{}, zap.NewNop())

	result, err := engine.Run(context.Background(), "requester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TopMatch == nil || result.TopMatch.UserID != "first" {
		t.Fatalf("expected tie to go to the first-scanned candidate, got %+v", result.TopMatch)
	}
}

func TestEngineRunProfileNotFound(t *testing.T) {
	engine := New(population("other"), ageOnlyDeriver(), &tableComparator{}, nil, Config{}, zap.NewNop())

	_, err := engine.Run(context.Background(), "missing")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestEngineRunEmptyPopulation(t *testing.T) {
	engine := New(population("requester"), ageOnlyDeriver(), &tableComparator{}, nil, Config{}, zap.NewNop())

	result, err := engine.Run(context.Background(), "requester")
	if !errors.Is(err, ErrEmptyPopulation) {
		t.Fatalf("expected ErrEmptyPopulation, got %v", err)
	}
	if result == nil {
		t.Fatalf("expected a result alongside the sentinel")
	}
	if result.TopMatch != nil {
		t.Fatalf("expected no top match, got %+v", result.TopMatch)
	}
	if len(result.Scores) != 0 {
		t.Fatalf("expected empty scores, got %v", result.Scores)
	}
}

func TestEngineRunSkipsFailedAttributes(t *testing.T) {
	profiles := &stubProfiles{
		profiles: map[string]*profile.Profile{
			"requester": {Age: profile.Age{Years: 30}, Smoking: "never"},
			"candidate": {Age: profile.Age{Years: 22}, Smoking: "socially"},
		},
		order: []string{"requester", "candidate"},
	}

	overrides := map[string]float64{}
	for _, name := range profile.Attributes() {
		overrides[name] = 0
	}
	overrides[profile.AttrAge] = 0.5
	overrides[profile.AttrSmoking] = 1.0

	comparator := &tableComparator{
		scores: map[int]int{22: 6},
		errFor: map[string]error{profile.AttrSmoking: errors.New("backend unavailable")},
	}

	engine := New(profiles, NewStaticDeriver(overrides), comparator, nil, Config{}, zap.NewNop())

	result, err := engine.Run(context.Background(), "requester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The smoking comparison failed, so only age contributes.
	if got := result.Scores["candidate"]; got != 3.0 {
		t.Fatalf("expected score 6*0.5=3.0, got %v", got)
	}
}

func TestEngineRunFallsBackToStaticWeights(t *testing.T) {
	// An adaptive deriver that always fails yields an empty vector; the run
	// must still score candidates using the static table.
	failing := NewAdaptiveDeriver(&stubCompleter{err: errors.New("backend unavailable")}, zap.NewNop())

	profiles := population("requester", "candidate")
	comparator := &tableComparator{scores: map[int]int{21: 5}}
	// The static table weights every attribute, so comparisons happen for all
	// of them; only age resolves, the rest error out and are skipped.
	engine := New(profiles, failing, comparator, nil, Config{}, zap.NewNop())

	result, err := engine.Run(context.Background(), "requester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TopMatch == nil || result.TopMatch.UserID != "candidate" {
		t.Fatalf("expected candidate to be selected, got %+v", result.TopMatch)
	}
	if result.TopMatch.Score != 5*defaultStaticWeights[profile.AttrAge] {
		t.Fatalf("unexpected score %v", result.TopMatch.Score)
	}
}

func TestEngineExplain(t *testing.T) {
	completer := &stubCompleter{response: json.RawMessage(`{"explanation": "You both value honesty."}`)}
	profiles := population("requester", "match")

	engine := New(profiles, ageOnlyDeriver(), &tableComparator{}, completer, Config{}, zap.NewNop())

	explanation, err := engine.Explain(context.Background(), "requester", "match")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if explanation != "You both value honesty." {
		t.Fatalf("unexpected explanation: %q", explanation)
	}
}

func TestEngineExplainWithoutCompleter(t *testing.T) {
	engine := New(population("requester", "match"), ageOnlyDeriver(), &tableComparator{}, nil, Config{}, zap.NewNop())

	if _, err := engine.Explain(context.Background(), "requester", "match"); err == nil {
		t.Fatalf("expected error when no completer is configured")
	}
}
