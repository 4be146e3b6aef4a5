package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/ai"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/ai/gemini"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/dialogue"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/heartbeat"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/matchmaking"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/secrets"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/store"
)

const defaultDataDir = "data"

// appComponents aggregates everything the serve and match commands wire up.
type appComponents struct {
	store     *store.Store
	heartbeat *heartbeat.Client
	completer ai.StructuredCompleter
	engine    *matchmaking.Engine
	machine   *dialogue.Machine
}

// buildApp assembles the full dependency graph from the configuration.
func buildApp(ctx context.Context, config *Config, logger *zap.Logger) (*appComponents, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Heartbeat == nil || strings.TrimSpace(config.Heartbeat.AssistantUserID) == "" {
		return nil, errors.New("heartbeat.assistant-user-id is required: it is the identity the assistant speaks as")
	}

	token, err := secrets.Load(secrets.Source{
		Name: "heartbeat token",
		File: config.Heartbeat.TokenFile,
		Env:  "HEARTBEAT_TOKEN_FILE",
	})
	if err != nil {
		return nil, fmt.Errorf("loading heartbeat token: %w", err)
	}

	hb := heartbeat.New(token, logger)
	if config.Heartbeat.APIURL != "" {
		hb.APIURL = config.Heartbeat.APIURL
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = defaultDataDir
	}

	st, err := store.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}

	completer, err := newCompleter(ctx, config.AI, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine, err := newEngine(config.Matchmaking, st, completer, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	machine := dialogue.NewMachine(
		hb,
		st,
		completer,
		engine,
		dialogue.NewSessions(),
		config.Heartbeat.AssistantUserID,
		logger,
	)

	return &appComponents{
		store:     st,
		heartbeat: hb,
		completer: completer,
		engine:    engine,
		machine:   machine,
	}, nil
}

func newCompleter(ctx context.Context, config *AIConfig, logger *zap.Logger) (ai.StructuredCompleter, error) {
	if config == nil {
		return nil, errors.New("ai configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(config.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}

	if config.Gemini == nil {
		return nil, errors.New("gemini configuration is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY_FILE",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	client, err := gemini.New(ctx, apiKey, config.Gemini.Model, logger)
	if err != nil {
		return nil, err
	}

	return ai.WithTimeout(client, config.Timeout), nil
}

func newEngine(config *MatchmakingConfig, st *store.Store, completer ai.StructuredCompleter, logger *zap.Logger) (*matchmaking.Engine, error) {
	if config == nil {
		config = &MatchmakingConfig{}
	}

	var overrides map[string]float64
	if len(config.StaticWeights) > 0 {
		if err := mapstructure.Decode(config.StaticWeights, &overrides); err != nil {
			return nil, fmt.Errorf("decoding matchmaking.static-weights: %w", err)
		}
	}

	var deriver matchmaking.Deriver
	switch strings.TrimSpace(strings.ToLower(config.Weights)) {
	case "", "static":
		deriver = matchmaking.NewStaticDeriver(overrides)
	case "adaptive":
		deriver = matchmaking.NewAdaptiveDeriver(completer, logger)
	default:
		return nil, fmt.Errorf("unsupported weights strategy: %s", config.Weights)
	}

	comparator := matchmaking.NewAIComparator(completer, logger)

	engine := matchmaking.New(st, deriver, comparator, completer, matchmaking.Config{
		MaxConcurrency: config.MaxConcurrency,
	}, logger)

	return engine, nil
}
