// Package ai declares the schema-constrained inference capability the rest of
// the application depends on. Providers live in subpackages; consumers only see
// the StructuredCompleter interface so they can be tested with stubs.
package ai

import (
	"context"
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversational context passed to the model.
type Message struct {
	Role    Role
	Content string
}

// Type enumerates the JSON value types usable in an output Schema.
type Type string

const (
	TypeObject  Type = "object"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
)

// Schema is a provider-neutral strict output schema. Providers translate it to
// their native structured-output representation.
type Schema struct {
	Type       Type
	Properties map[string]*Schema
	Required   []string
}

// Object builds an object schema requiring every listed property.
func Object(properties map[string]*Schema) *Schema {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	return &Schema{Type: TypeObject, Properties: properties, Required: required}
}

// StructuredRequest describes one schema-constrained completion.
type StructuredRequest struct {
	// System is the system instruction for the call.
	System string
	// Messages is the ordered conversational context, last message being the
	// one to respond to.
	Messages []Message
	// Schema constrains the model output. Required.
	Schema *Schema
}

// StructuredCompleter performs one blocking inference call and returns the raw
// schema-conformant JSON object, or an error when the call fails or the
// provider returns unusable output.
type StructuredCompleter interface {
	Complete(ctx context.Context, req StructuredRequest) (json.RawMessage, error)
}

type timeoutCompleter struct {
	next    StructuredCompleter
	timeout time.Duration
}

// WithTimeout bounds every completion with an overall deadline. A non-positive
// timeout returns the completer unchanged.
func WithTimeout(next StructuredCompleter, timeout time.Duration) StructuredCompleter {
	if timeout <= 0 {
		return next
	}
	return &timeoutCompleter{next: next, timeout: timeout}
}

func (t *timeoutCompleter) Complete(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, req)
}
