// Package agent runs the bounded tool-calling loop that turns a routed
// user message into a deliverable answer.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/uemahub/sabia/internal/log"
	"github.com/uemahub/sabia/internal/provider"
	"github.com/uemahub/sabia/internal/router"
)

const (
	// DefaultMaxIterations bounds provider round-trips per invocation.
	DefaultMaxIterations = 3

	// DefaultBudget bounds wall-clock time per invocation.
	DefaultBudget = 45 * time.Second
)

// historyStore is the slice of the session memory store the orchestrator
// needs.
type historyStore interface {
	History(sessionID string) ([]provider.Message, error)
	AppendTurn(sessionID string, turn []provider.Message) error
	ClearHistory(sessionID string) error
}

// toolset executes retrieval tools and describes them to the model.
type toolset interface {
	ForTopic(topic router.Topic) []provider.ToolSpec
	Execute(ctx context.Context, call provider.ToolCall) string
}

// Config configures an Orchestrator.
type Config struct {
	Provider      provider.Provider
	Tools         toolset
	History       historyStore
	MaxIterations int
	Budget        time.Duration
	MinAnswerLen  int
	Logger        log.Logger
}

// Orchestrator drives the think/act loop for one message at a time. It is
// stateless across invocations and safe for concurrent use.
type Orchestrator struct {
	provider      provider.Provider
	tools         toolset
	history       historyStore
	maxIterations int
	budget        time.Duration
	minAnswerLen  int
	logger        log.Logger
}

// New creates an Orchestrator. Zero limits fall back to defaults.
func New(cfg Config) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.MinAnswerLen <= 0 {
		cfg.MinAnswerLen = DefaultMinAnswerLen
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Orchestrator{
		provider:      cfg.Provider,
		tools:         cfg.Tools,
		history:       cfg.History,
		maxIterations: cfg.MaxIterations,
		budget:        cfg.Budget,
		minAnswerLen:  cfg.MinAnswerLen,
		logger:        cfg.Logger,
	}
}

// Answer runs the loop for st and always returns deliverable text.
//
// A history-conflict error means the persisted history no longer
// reconciles with the model's tool-call bookkeeping: the history is
// discarded and the whole loop retried exactly once from a clean slate. A
// second conflict is reported to the user as a reset notice.
func (o *Orchestrator) Answer(ctx context.Context, st *State) ValidationResult {
	res, conflict := o.run(ctx, st, false)
	if !conflict {
		return res
	}

	o.logger.Warn("conversation history conflict, clearing and retrying",
		"invocation_id", st.ID, "session_id", st.SessionID)
	if err := o.history.ClearHistory(st.SessionID); err != nil {
		o.logger.Error("failed to clear history", "invocation_id", st.ID, "session_id", st.SessionID, "error", err)
	}

	res, conflict = o.run(ctx, st, true)
	if conflict {
		return ValidationResult{Output: MsgHistoryReset, Reason: "history conflict persisted after reset"}
	}
	return res
}

// run executes the bounded loop once. The second return reports a history
// conflict the caller may recover from.
func (o *Orchestrator) run(ctx context.Context, st *State, freshHistory bool) (ValidationResult, bool) {
	var history []provider.Message
	if !freshHistory {
		var err error
		history, err = o.history.History(st.SessionID)
		if err != nil {
			// A lost history degrades the answer, it does not block it.
			o.logger.Error("failed to load history", "invocation_id", st.ID, "session_id", st.SessionID, "error", err)
			history = nil
		}
	}

	specs := o.tools.ForTopic(st.Topic)
	turn := []provider.Message{{Role: provider.RoleUser, Content: st.Prompt}}
	deadline := st.Start.Add(o.budget)

	for i := 0; i < o.maxIterations && time.Now().Before(deadline); i++ {
		st.Iterations++

		messages := make([]provider.Message, 0, len(history)+len(turn))
		messages = append(messages, history...)
		messages = append(messages, turn...)

		reply, err := o.provider.Complete(ctx, provider.Request{
			System:   systemPrompt,
			Messages: messages,
			Tools:    specs,
		})
		if err != nil {
			switch {
			case errors.Is(err, provider.ErrHistoryConflict):
				return ValidationResult{}, true
			case errors.Is(err, provider.ErrThrottled):
				o.logger.Warn("upstream throttled", "invocation_id", st.ID, "session_id", st.SessionID, "error", err)
				return ValidationResult{Output: MsgRateLimit, Reason: "upstream throttled"}, false
			default:
				o.logger.Error("completion failed", "invocation_id", st.ID, "session_id", st.SessionID, "error", err)
				return ValidationResult{Output: MsgTechError, Reason: "completion failed"}, false
			}
		}

		st.InputTokens += reply.InputTokens
		st.OutputTokens += reply.OutputTokens

		if reply.Kind == provider.ReplyToolCall {
			call := *reply.ToolCall
			result := o.tools.Execute(ctx, call)
			st.ToolResults = append(st.ToolResults, ToolResult{Name: call.Name, Query: call.Query, Result: result})
			turn = append(turn,
				provider.Message{Role: provider.RoleAssistant, ToolCalls: []provider.ToolCall{call}},
				provider.Message{Role: provider.RoleTool, ToolCallID: call.ID, Content: result},
			)
			continue
		}

		res := Validate(reply.Answer, o.minAnswerLen)
		if res.Valid {
			o.persistTurn(st, turn, res.Output)
		} else {
			o.logger.Warn("candidate answer rejected",
				"invocation_id", st.ID, "session_id", st.SessionID, "reason", res.Reason)
		}
		return res, false
	}

	o.logger.Warn("iteration or time budget exhausted",
		"invocation_id", st.ID, "session_id", st.SessionID, "iterations", st.Iterations, "elapsed", st.Elapsed())
	return ValidationResult{Output: MsgNotFound, Reason: "iteration or time budget exhausted"}, false
}

// persistTurn appends the completed turn to the session history. The user
// message is stored as typed, without the routing context wrapper, so
// windows of history stay readable to the model. Persistence failures are
// logged and swallowed: the answer is already committed to the user.
func (o *Orchestrator) persistTurn(st *State, turn []provider.Message, answer string) {
	persisted := make([]provider.Message, 0, len(turn)+1)
	persisted = append(persisted, provider.Message{Role: provider.RoleUser, Content: st.Body})
	persisted = append(persisted, turn[1:]...)
	persisted = append(persisted, provider.Message{Role: provider.RoleAssistant, Content: answer})

	if err := o.history.AppendTurn(st.SessionID, persisted); err != nil {
		o.logger.Error("failed to persist turn", "invocation_id", st.ID, "session_id", st.SessionID, "error", err)
	}
}
