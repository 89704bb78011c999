package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/uemahub/sabia/internal/router"
)

// ToolResult records one executed tool invocation within an answer.
type ToolResult struct {
	Name   string
	Query  string
	Result string
}

// State is the working record of one orchestrator invocation. It is owned
// by exactly one Answer call and discarded afterwards, never persisted.
type State struct {
	// ID correlates the log lines of one invocation.
	ID        string
	SessionID string
	ChatID    string
	Topic     router.Topic

	// Body is the user's message as typed; Prompt is the enriched form
	// actually sent to the model.
	Body   string
	Prompt string

	Iterations   int
	ToolResults  []ToolResult
	InputTokens  int
	OutputTokens int
	Start        time.Time
}

// NewState starts the working record for one inbound message.
func NewState(sessionID, chatID string, topic router.Topic, body, prompt string) *State {
	return &State{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		ChatID:    chatID,
		Topic:     topic,
		Body:      body,
		Prompt:    prompt,
		Start:     time.Now(),
	}
}

// Elapsed reports how long this invocation has been running.
func (s *State) Elapsed() time.Duration {
	return time.Since(s.Start)
}
