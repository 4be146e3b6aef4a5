package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/ai"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/logger"
)

const (
	defaultModel = "gemini-2.5-flash"

	defaultMaxLogLength = 200
)

// models is the narrow slice of the genai client the Client depends on,
// extracted so tests can substitute a fake.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements ai.StructuredCompleter on top of the Gemini API. Every call
// is constrained by a response schema, so the returned payload is always a
// single JSON object. No automatic retries: failed calls degrade at the caller.
type Client struct {
	models    models
	model     string
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.StructuredCompleter = (*Client)(nil)

// New creates a Client configured for the Gemini API backend.
func New(ctx context.Context, apiKey, model string, log *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Client{
		models:    client.Models,
		model:     model,
		logger:    logger.WithCommonFields(log, "gemini", model),
		maxLogLen: defaultMaxLogLength,
	}, nil
}

// Complete sends the request to Gemini and returns the raw JSON object text.
func (c *Client) Complete(ctx context.Context, req ai.StructuredRequest) (json.RawMessage, error) {
	if c == nil || c.models == nil {
		return nil, errors.New("gemini client is not initialized")
	}
	if req.Schema == nil {
		return nil, errors.New("output schema is required")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(req.Schema),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := genai.RoleUser
		if msg.Role == ai.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	c.logger.Debug("gemini structured request",
		zap.Int("messages", len(req.Messages)),
		zap.String("last_message_preview", logger.TruncateForLog(req.Messages[len(req.Messages)-1].Content, c.maxLogLen)),
	)

	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	output := collectText(resp)
	if output == "" {
		return nil, errors.New("gemini api returned empty response")
	}

	c.logger.Debug("gemini structured response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", logger.TruncateForLog(output, c.maxLogLen)),
	)

	return json.RawMessage(extractJSON(output)), nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

// extractJSON strips markdown fences some models wrap around JSON output even
// in structured mode.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func toGenaiSchema(s *ai.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Type:     toGenaiType(s.Type),
		Required: s.Required,
	}

	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}

	return out
}

func toGenaiType(t ai.Type) genai.Type {
	switch t {
	case ai.TypeObject:
		return genai.TypeObject
	case ai.TypeString:
		return genai.TypeString
	case ai.TypeInteger:
		return genai.TypeInteger
	case ai.TypeNumber:
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}
