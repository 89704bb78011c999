// Package memory is the durable, expiring per-session state store: menu
// navigation state, conversation history and short-term user context.
//
// Backed by BadgerDB with per-entry TTLs. Every write refreshes the entry's
// expiry, giving the sliding-inactivity semantics: 30 minutes of silence
// resets navigation and history, 60 minutes resets the user context.
//
// The store itself is safe for concurrent use; ordering guarantees between
// reads and writes of the same session are the pipeline's job (per-session
// serialization), not this package's.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/uemahub/sabia/internal/log"
	"github.com/uemahub/sabia/internal/menu"
)

// Default TTLs, matching the conversation-expiry contract.
const (
	DefaultHistoryTTL = 30 * time.Minute
	DefaultContextTTL = 60 * time.Minute

	// DefaultHistoryWindow is the number of user-initiated turns kept.
	DefaultHistoryWindow = 20
)

// Key prefixes. One keyspace per concern, all scoped by session ID.
const (
	prefixHistory = "hist:"
	prefixNav     = "nav:"
	prefixContext = "ctx:"
)

// gcInterval is how often value-log garbage collection runs.
const gcInterval = 5 * time.Minute

// Config holds store settings.
type Config struct {
	// Dir is the BadgerDB directory. Ignored when InMemory is set.
	Dir string

	// InMemory disables disk persistence. Test use.
	InMemory bool

	// HistoryWindow caps history at the most recent N user-initiated
	// turns. Zero uses DefaultHistoryWindow.
	HistoryWindow int

	// HistoryTTL and ContextTTL override the default expiries.
	HistoryTTL time.Duration
	ContextTTL time.Duration

	Logger log.Logger
}

// Context is the short-term per-user context injected into agent prompts.
type Context struct {
	Name      string `json:"name,omitempty"`
	Course    string `json:"course,omitempty"`
	LastTopic string `json:"last_topic,omitempty"`
}

// merge overlays non-empty fields of other onto c.
func (c *Context) merge(other Context) {
	if other.Name != "" {
		c.Name = other.Name
	}
	if other.Course != "" {
		c.Course = other.Course
	}
	if other.LastTopic != "" {
		c.LastTopic = other.LastTopic
	}
}

// Store is the badger-backed session state store.
type Store struct {
	db         *badger.DB
	window     int
	historyTTL time.Duration
	contextTTL time.Duration
	logger     log.Logger
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("dir is required for a persistent store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	// Badger's own logging is too chatty for this workload.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", cfg.Dir, err)
	}

	window := cfg.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	historyTTL := cfg.HistoryTTL
	if historyTTL <= 0 {
		historyTTL = DefaultHistoryTTL
	}
	contextTTL := cfg.ContextTTL
	if contextTTL <= 0 {
		contextTTL = DefaultContextTTL
	}

	return &Store{
		db:         db,
		window:     window,
		historyTTL: historyTTL,
		contextTTL: contextTTL,
		logger:     logger,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs badger value-log garbage collection until done is closed.
// Intended to run on its own goroutine for the process lifetime.
func (s *Store) RunGC(done <-chan struct{}) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// One GC pass per tick; ErrNoRewrite just means nothing to do.
			if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger GC pass failed", "error", err)
			}
		}
	}
}

// NavState returns the session's menu position. A missing or expired key
// is the main menu.
func (s *Store) NavState(sessionID string) menu.State {
	raw, err := s.get(prefixNav + sessionID)
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("reading nav state", "session_id", sessionID, "error", err)
		}
		return menu.StateMain
	}

	state := menu.State(raw)
	if !state.Valid() {
		return menu.StateMain
	}
	return state
}

// SetNavState persists the menu position with a refreshed TTL. Setting
// StateMain deletes the key: absent and MAIN are the same state, and
// dropping the key lets expiry do the rest.
func (s *Store) SetNavState(sessionID string, state menu.State) error {
	key := prefixNav + sessionID
	if state == menu.StateMain || !state.Valid() {
		return s.delete(key)
	}
	return s.set(key, []byte(state), s.historyTTL)
}

// Context returns the session's short-term context. Missing or expired
// yields the zero value.
func (s *Store) Context(sessionID string) Context {
	raw, err := s.get(prefixContext + sessionID)
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("reading context", "session_id", sessionID, "error", err)
		}
		return Context{}
	}

	var ctx Context
	if err := json.Unmarshal(raw, &ctx); err != nil {
		s.logger.Warn("corrupt context entry dropped", "session_id", sessionID, "error", err)
		return Context{}
	}
	return ctx
}

// SetContext merges update into the stored context and refreshes its TTL.
func (s *Store) SetContext(sessionID string, update Context) error {
	current := s.Context(sessionID)
	current.merge(update)

	raw, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshaling context: %w", err)
	}
	return s.set(prefixContext+sessionID, raw, s.contextTTL)
}

// Clear removes all state for a session: history, navigation and context.
func (s *Store) Clear(sessionID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, prefix := range []string{prefixHistory, prefixNav, prefixContext} {
			if err := txn.Delete([]byte(prefix + sessionID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

// get reads one key's value.
func (s *Store) get(key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

// set writes one key with a TTL.
func (s *Store) set(key string, val []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), val).WithTTL(ttl))
	})
}

// delete removes one key, tolerating absence.
func (s *Store) delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}
