// Package provider wraps the external reasoning API behind a small
// tagged-variant interface.
//
// The orchestrator depends only on Provider and Reply; everything specific
// to the upstream wire schema (currently Groq's OpenAI-compatible API) stays
// inside this package. Throttling is retried here with bounded exponential
// backoff; malformed responses are surfaced immediately so the caller can
// run its history-corruption recovery.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Checked with errors.Is.
var (
	// ErrThrottled is returned after retries against a rate-limited
	// upstream are exhausted.
	ErrThrottled = errors.New("upstream throttled")

	// ErrMalformed is returned when the upstream response cannot be
	// interpreted as a tool call or an answer. Never retried here.
	ErrMalformed = errors.New("upstream response malformed")
)

// ErrHistoryConflict is the malformed-response case where the upstream
// rejected the conversation history because a recorded tool call could not
// be reconciled with its result. errors.Is(err, ErrMalformed) also holds.
var ErrHistoryConflict = fmt.Errorf("%w: tool call could not be reconciled", ErrMalformed)

// Message roles as stored in history and sent upstream.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a reasoning-model request to run one retrieval tool.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Query string `json:"query"`
}

// Message is one conversation record in provider-neutral form.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages invoking tools
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool result messages
}

// ToolSpec describes one retrieval tool offered to the model. All tools
// take a single free-text query parameter.
type ToolSpec struct {
	Name        string
	Description string
}

// Request is one completion call.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// ReplyKind discriminates Reply variants.
type ReplyKind int

const (
	// ReplyAnswer carries terminal text for the user.
	ReplyAnswer ReplyKind = iota
	// ReplyToolCall asks the caller to execute one retrieval tool.
	ReplyToolCall
)

// Reply is the tagged result of a completion call.
type Reply struct {
	Kind         ReplyKind
	Answer       string    // ReplyAnswer only
	ToolCall     *ToolCall // ReplyToolCall only
	InputTokens  int
	OutputTokens int
}

// Provider is the reasoning interface the orchestrator depends on.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Reply, error)
}
