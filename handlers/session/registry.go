package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"chatspeak/core"
)

// Session is one client conversation. The registry hands out the same
// *Session for every lookup of its id.
type Session struct {
	ID           string
	Conversation core.Conversation
	CreatedAt    time.Time
	Logger       *core.Logger

	turnLock chan struct{} // capacity 1; holding the token means owning the conversation
	turns    atomic.Int64
	writer   core.LogWriter
}

// AcquireTurn blocks until the caller owns the conversation or ctx is done.
// The returned release func must be called exactly once.
func (s *Session) AcquireTurn(ctx context.Context) (release func(), err error) {
	select {
	case s.turnLock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-s.turnLock })
	}, nil
}

// RecordTurn increments the completed-turn counter and returns the new value.
func (s *Session) RecordTurn() int64 {
	return s.turns.Add(1)
}

// Turns returns the number of completed turns.
func (s *Session) Turns() int64 {
	return s.turns.Load()
}

// entry guards the one-time construction of a session.
type entry struct {
	once    sync.Once
	session *Session
	err     error
}

// Registry maps session ids to conversations. Sessions live until Close; there
// is no expiry, so memory grows with the number of distinct ids seen.
type Registry struct {
	provider core.ChatProvider
	config   SessionConfig
	logger   *core.Logger

	entries sync.Map // map[string]*entry
	created atomic.Int64
	closed  atomic.Bool
}

// NewRegistry creates an empty registry bound to a chat provider.
func NewRegistry(provider core.ChatProvider, config SessionConfig, logger *core.Logger) *Registry {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Registry{
		provider: provider,
		config:   config,
		logger:   logger.With(map[string]interface{}{"component": "session_registry"}),
	}
}

// GetOrCreate returns the session for id, creating its conversation on first
// use. Concurrent callers with the same unseen id all receive the single
// session built by whichever caller won the insert.
func (r *Registry) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}
	if r.closed.Load() {
		return nil, errors.New("session registry is closed")
	}

	v, _ := r.entries.LoadOrStore(id, &entry{})
	e := v.(*entry)
	e.once.Do(func() {
		e.session, e.err = r.create(id)
	})
	if e.err != nil {
		// Forget the failed entry so the next request can retry the creation.
		r.entries.CompareAndDelete(id, e)
		return nil, e.err
	}
	return e.session, nil
}

// Len returns the number of live sessions. Successful entries are never
// removed, so this equals the number of conversations created.
func (r *Registry) Len() int {
	return int(r.created.Load())
}

// Close releases per-session transcript writers. Lookups fail afterwards.
func (r *Registry) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.once.Do(func() { e.err = errors.New("session registry is closed") })
		if e.session != nil && e.session.writer != nil {
			e.session.writer.Close()
		}
		return true
	})
	r.logger.Info("session registry closed", "sessions", r.Len())
}

func (r *Registry) create(id string) (*Session, error) {
	conv, err := r.provider.NewConversation(id)
	if err != nil {
		r.logger.Error("failed to create conversation", "session_id", id, "error", err)
		return nil, core.ProviderErrorf(err, "create conversation for session %q", id)
	}
	if conv == nil {
		return nil, core.ProviderErrorf(nil, "provider returned no conversation for session %q", id)
	}

	s := &Session{
		ID:           id,
		Conversation: conv,
		CreatedAt:    time.Now(),
		turnLock:     make(chan struct{}, 1),
	}

	s.Logger = r.logger.With(map[string]interface{}{"session_id": id})
	if r.config.TranscriptDir != "" {
		writer, err := core.NewSessionLogWriter(r.config.TranscriptDir, id)
		if err != nil {
			s.Logger.Warn("transcript disabled for session", "error", err)
		} else {
			s.writer = writer
			s.Logger = core.NewSessionLogger(r.logger, writer).With(map[string]interface{}{"session_id": id})
		}
	}

	total := r.created.Add(1)
	s.Logger.Info(fmt.Sprintf("created conversation for session %s", id), "sessions_created", total)
	return s, nil
}
