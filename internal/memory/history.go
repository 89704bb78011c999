package memory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/uemahub/sabia/internal/provider"
)

// History returns the session's conversation history, sanitized.
//
// Sanitization strips orphaned tool invocations: an assistant message
// carrying tool calls whose results never arrived (the upstream call that
// should have produced them failed mid-turn). Handing such a history back
// to the reasoning API makes it reject the whole request, so orphans are
// pruned as a pair: the invocation message and any partial results after
// it go together. When pruning changed anything the cleaned history is
// persisted, otherwise the same corruption would resurface on every read.
//
// Reads are idempotent: without an intervening write, two calls return
// identical sequences.
func (s *Store) History(sessionID string) ([]provider.Message, error) {
	msgs, err := s.loadHistory(sessionID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	clean, removed := sanitize(msgs)
	if removed > 0 {
		s.logger.Info("pruned corrupt history records",
			"session_id", sessionID, "removed", removed)
		if err := s.saveHistory(sessionID, clean); err != nil {
			return nil, fmt.Errorf("persisting sanitized history: %w", err)
		}
	}
	return clean, nil
}

// AppendTurn appends one completed turn (user message, tool exchanges,
// assistant answer) and trims the history to the configured window. The
// append, the trim and the TTL refresh are one atomic badger transaction.
func (s *Store) AppendTurn(sessionID string, turn []provider.Message) error {
	if len(turn) == 0 {
		return nil
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixHistory + sessionID)

		var msgs []provider.Message
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// First turn of a fresh (or expired) conversation.
		case err != nil:
			return err
		default:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &msgs); err != nil {
				// Unreadable history is worthless; start over rather than fail.
				s.logger.Warn("corrupt history entry dropped", "session_id", sessionID, "error", err)
				msgs = nil
			}
		}

		msgs = trimToWindow(append(msgs, turn...), s.window)

		raw, err := json.Marshal(msgs)
		if err != nil {
			return fmt.Errorf("marshaling history: %w", err)
		}
		return txn.SetEntry(badger.NewEntry(key, raw).WithTTL(s.historyTTL))
	})
}

// ClearHistory drops the session's conversation history, keeping
// navigation state and context. Used by the history-corruption recovery.
func (s *Store) ClearHistory(sessionID string) error {
	return s.delete(prefixHistory + sessionID)
}

// loadHistory reads and unmarshals the raw history entry.
func (s *Store) loadHistory(sessionID string) ([]provider.Message, error) {
	raw, err := s.get(prefixHistory + sessionID)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	var msgs []provider.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		s.logger.Warn("corrupt history entry dropped", "session_id", sessionID, "error", err)
		return nil, nil
	}
	return msgs, nil
}

// saveHistory writes the history entry with a refreshed TTL.
func (s *Store) saveHistory(sessionID string, msgs []provider.Message) error {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	return s.set(prefixHistory+sessionID, raw, s.historyTTL)
}

// sanitize removes orphaned tool exchanges. Returns the cleaned slice and
// the number of messages removed.
//
// Two orphan shapes exist:
//   - an assistant message with tool calls not all matched by the tool
//     results immediately following it (dropped with its partial results);
//   - tool result messages with no invocation before them, which can only
//     be left by a trim bug or an older writer.
func sanitize(msgs []provider.Message) ([]provider.Message, int) {
	clean := make([]provider.Message, 0, len(msgs))
	removed := 0

	for i := 0; i < len(msgs); {
		msg := msgs[i]

		// Stray tool result: its invocation would have consumed it below.
		if msg.Role == provider.RoleTool {
			removed++
			i++
			continue
		}

		if msg.Role == provider.RoleAssistant && len(msg.ToolCalls) > 0 {
			expected := make(map[string]bool, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				expected[tc.ID] = true
			}

			// Consume the consecutive tool results that follow.
			j := i + 1
			answered := 0
			for j < len(msgs) && msgs[j].Role == provider.RoleTool {
				if expected[msgs[j].ToolCallID] {
					answered++
				}
				j++
			}

			if answered < len(expected) {
				// Orphaned invocation: drop the pair atomically.
				removed += j - i
				i = j
				continue
			}

			clean = append(clean, msgs[i:j]...)
			i = j
			continue
		}

		clean = append(clean, msg)
		i++
	}

	return clean, removed
}

// trimToWindow keeps the most recent window user-initiated turns. The cut
// boundary is always a user message, a turn start, so a trim can never
// leave a dangling tool exchange at the front.
func trimToWindow(msgs []provider.Message, window int) []provider.Message {
	users := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == provider.RoleUser {
			users++
			if users == window {
				if i == 0 {
					return msgs
				}
				return append([]provider.Message(nil), msgs[i:]...)
			}
		}
	}
	return msgs
}
