// Package matchmaking contains the scoring engine: it derives a per-user
// attribute weighting, fans out AI-backed attribute comparisons across the
// candidate population and selects the top match.
package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/ai"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/logger"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/profile"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/store"
)

var (
	// ErrProfileNotFound means the requester has no stored profile yet.
	ErrProfileNotFound = errors.New("requester profile not found")
	// ErrEmptyPopulation means there is no candidate besides the requester.
	ErrEmptyPopulation = errors.New("candidate population is empty")
)

const defaultMaxConcurrency = 4

// ProfileSource is the read side of the profile store the engine depends on.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)
	ScanProfiles(ctx context.Context) ([]store.StoredProfile, error)
}

// Match is the selected top candidate.
type Match struct {
	UserID string
	Score  float64
}

// Result is the outcome of one matchmaking run.
type Result struct {
	Requester store.StoredProfile
	// Scores holds the aggregate compatibility score per candidate id.
	Scores map[string]float64
	// TopMatch is nil when no candidate could be selected.
	TopMatch *Match
}

// Engine orchestrates a full matchmaking pass for one requester.
type Engine struct {
	profiles       ProfileSource
	deriver        Deriver
	fallback       Deriver
	comparator     Comparator
	completer      ai.StructuredCompleter
	maxConcurrency int
	logger         *zap.Logger
}

// Config tunes the engine.
type Config struct {
	// MaxConcurrency bounds how many candidates are scored at once. Every
	// scored attribute is one outbound AI call, so this is the primary cost
	// and rate-limit knob.
	MaxConcurrency int
}

// New builds an Engine. The deriver may be adaptive; the engine always keeps a
// static deriver as the fallback for when adaptive weighting is unavailable.
// The completer is used only for match explanations and may be nil.
func New(profiles ProfileSource, deriver Deriver, comparator Comparator, completer ai.StructuredCompleter, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	if deriver == nil {
		deriver = NewStaticDeriver(nil)
	}

	return &Engine{
		profiles:       profiles,
		deriver:        deriver,
		fallback:       NewStaticDeriver(nil),
		comparator:     comparator,
		completer:      completer,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// Run scores the requester against the whole population and selects the top
// match. It returns ErrProfileNotFound or ErrEmptyPopulation for the expected
// empty-result conditions; the dialogue layer turns both into a plain
// no-match message.
func (e *Engine) Run(ctx context.Context, userID string) (*Result, error) {
	requester, err := e.profiles.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch requester profile: %w", err)
	}

	population, err := e.profiles.ScanProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan population: %w", err)
	}

	candidates := make([]store.StoredProfile, 0, len(population))
	for _, candidate := range population {
		if candidate.UserID == userID {
			continue
		}
		candidates = append(candidates, candidate)
	}

	result := &Result{
		Requester: store.StoredProfile{UserID: userID, Profile: requester},
		Scores:    make(map[string]float64, len(candidates)),
	}

	if len(candidates) == 0 {
		return result, ErrEmptyPopulation
	}

	// Weights are derived exactly once, before any candidate scoring starts:
	// every candidate must be ranked against the same vector.
	weights := e.deriver.Derive(ctx, requester)
	if weights.IsEmpty() {
		e.logger.Warn("weighting unavailable, falling back to static table",
			zap.String(logger.FieldRequester, userID))
		weights = e.fallback.Derive(ctx, requester)
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.maxConcurrency)

	for _, candidate := range candidates {
		group.Go(func() error {
			score := e.scoreCandidate(groupCtx, requester, candidate, weights)
			mu.Lock()
			result.Scores[candidate.UserID] = score
			mu.Unlock()
			return nil
		})
	}

	// Workers never fail: a broken attribute is skipped, not fatal.
	_ = group.Wait()

	result.TopMatch = pickTop(candidates, result.Scores)

	e.logger.Info("matchmaking run completed",
		zap.String(logger.FieldRequester, userID),
		zap.Int("candidates", len(candidates)),
		zap.Any("top_match", result.TopMatch),
	)

	return result, nil
}

// scoreCandidate accumulates weight * sub-score over every attribute with a
// non-zero weight. Attributes whose comparison fails are excluded from the sum
// rather than defaulted, so one bad attribute never sinks a candidate.
func (e *Engine) scoreCandidate(ctx context.Context, requester *profile.Profile, candidate store.StoredProfile, weights WeightVector) float64 {
	var score float64

	for _, attribute := range profile.Attributes() {
		weight := weights[attribute]
		if weight == 0 {
			continue
		}

		requesterValue, _ := requester.Attribute(attribute)
		candidateValue, _ := candidate.Profile.Attribute(attribute)

		subScore, err := e.comparator.Compare(ctx, attribute, requesterValue, candidateValue)
		if err != nil {
			e.logger.Warn("attribute comparison skipped",
				zap.String("candidate_id", candidate.UserID),
				zap.String("attribute", attribute),
				zap.Error(err),
			)
			continue
		}

		score += float64(subScore) * weight
	}

	return score
}

// pickTop selects the maximum aggregate score. Ties go to the candidate seen
// first in population scan order.
func pickTop(candidates []store.StoredProfile, scores map[string]float64) *Match {
	var top *Match
	for _, candidate := range candidates {
		score, ok := scores[candidate.UserID]
		if !ok {
			continue
		}
		if top == nil || score > top.Score {
			top = &Match{UserID: candidate.UserID, Score: score}
		}
	}
	return top
}

const explanationSystemPrompt = "You are an expert matchmaker. Explain why two users are compatible."

// Explain asks the AI capability for a brief human-readable justification of a
// selected match. Callers degrade to a canned sentence when it fails.
func (e *Engine) Explain(ctx context.Context, requesterID, matchedID string) (string, error) {
	if e.completer == nil {
		return "", errors.New("explanation capability is not configured")
	}

	requester, err := e.profiles.GetProfile(ctx, requesterID)
	if err != nil {
		return "", fmt.Errorf("fetch requester profile: %w", err)
	}
	matched, err := e.profiles.GetProfile(ctx, matchedID)
	if err != nil {
		return "", fmt.Errorf("fetch matched profile: %w", err)
	}

	requesterJSON, err := json.Marshal(requester)
	if err != nil {
		return "", fmt.Errorf("encode requester profile: %w", err)
	}
	matchedJSON, err := json.Marshal(matched)
	if err != nil {
		return "", fmt.Errorf("encode matched profile: %w", err)
	}

	prompt := fmt.Sprintf(
		"Provide a brief explanation of why the following two users were matched:\nProfile 1: %s\nProfile 2: %s\n"+
			"Explain the compatibility factors that led to their match. Only give a brief explanation of the key factors that make them compatible.",
		requesterJSON, matchedJSON,
	)

	raw, err := e.completer.Complete(ctx, ai.StructuredRequest{
		System:   explanationSystemPrompt,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: prompt}},
		Schema: ai.Object(map[string]*ai.Schema{
			"explanation": {Type: ai.TypeString},
		}),
	})
	if err != nil {
		return "", fmt.Errorf("explain match: %w", err)
	}

	var response struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return "", fmt.Errorf("decode explanation: %w", err)
	}

	return response.Explanation, nil
}
