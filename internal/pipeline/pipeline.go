// Package pipeline ties menu, router, memory and agent together into the
// per-message handling flow.
package pipeline

import (
	"context"
	"strings"

	"github.com/uemahub/sabia/internal/agent"
	"github.com/uemahub/sabia/internal/log"
	"github.com/uemahub/sabia/internal/memory"
	"github.com/uemahub/sabia/internal/menu"
	"github.com/uemahub/sabia/internal/router"
)

// Inbound is one guarded text message. The webhook layer has already
// filtered non-text events and the bot's own messages.
type Inbound struct {
	SessionID string
	ChatID    string
	Body      string
}

// Sender delivers outbound text. Failures are reported by the pipeline,
// never retried.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// sessionStore is the slice of the memory store the pipeline needs.
type sessionStore interface {
	NavState(sessionID string) menu.State
	SetNavState(sessionID string, state menu.State) error
	Context(sessionID string) memory.Context
	SetContext(sessionID string, update memory.Context) error
}

// answerer runs the agent loop for a routed message.
type answerer interface {
	Answer(ctx context.Context, st *agent.State) agent.ValidationResult
}

// Pipeline handles inbound messages. Safe for concurrent use; messages of
// the same session are serialized, distinct sessions run in parallel.
type Pipeline struct {
	store  sessionStore
	agent  answerer
	sender Sender
	locks  *sessionLocks
	logger log.Logger
}

// New creates a Pipeline.
func New(store sessionStore, agent answerer, sender Sender, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		store:  store,
		agent:  agent,
		sender: sender,
		locks:  newSessionLocks(),
		logger: logger,
	}
}

// Handle processes one inbound message end to end: menu decision, topic
// routing, agent answer, reply. Every path that produces output ends in a
// send; empty input produces none.
func (p *Pipeline) Handle(ctx context.Context, in Inbound) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return
	}

	unlock := p.locks.Lock(in.SessionID)
	defer unlock()

	state := p.store.NavState(in.SessionID)
	decision := menu.Decide(body, state)

	if decision.Kind == menu.Direct {
		p.setNavState(in.SessionID, decision.NewState)
		p.send(ctx, in.ChatID, decision.Reply)
		return
	}

	// Classify against the pre-transition state so a submenu keeps forcing
	// its topic even when the decision moves the user back to the main menu.
	topic := router.Classify(decision.Prompt, state)
	if decision.NewState != state {
		p.setNavState(in.SessionID, decision.NewState)
	}

	userCtx := p.store.Context(in.SessionID)
	st := agent.NewState(in.SessionID, in.ChatID, topic, decision.Prompt,
		agent.Enrich(decision.Prompt, topic, userCtx))

	res := p.agent.Answer(ctx, st)

	p.logger.Info("message handled",
		"invocation_id", st.ID,
		"session_id", in.SessionID,
		"topic", topic,
		"valid", res.Valid,
		"reason", res.Reason,
		"iterations", st.Iterations,
		"input_tokens", st.InputTokens,
		"output_tokens", st.OutputTokens,
		"elapsed", st.Elapsed())

	if res.Valid {
		if err := p.store.SetContext(in.SessionID, memory.Context{LastTopic: string(topic)}); err != nil {
			p.logger.Error("failed to update context", "session_id", in.SessionID, "error", err)
		}
	}

	p.send(ctx, in.ChatID, res.Output)
}

func (p *Pipeline) setNavState(sessionID string, state menu.State) {
	if err := p.store.SetNavState(sessionID, state); err != nil {
		p.logger.Error("failed to update nav state", "session_id", sessionID, "error", err)
	}
}

func (p *Pipeline) send(ctx context.Context, chatID, text string) {
	if err := p.sender.Send(ctx, chatID, text); err != nil {
		p.logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}
