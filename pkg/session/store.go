package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when an operation addresses a session that does
// not exist. GetOrCreate semantics make this unexpected in the pipeline, but
// it stays a distinct error kind.
var ErrNotFound = errors.New("session not found")

// Store is the only mutation path for session state. Implementations must
// make every operation an atomic read-modify-write that is linearizable with
// respect to a single session ID; operations on different sessions must not
// block each other.
type Store interface {
	// GetOrCreate returns the session, creating it with defaults if absent.
	GetOrCreate(ctx context.Context, sessionID string) (*State, error)
	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*State, error)
	// Update applies mutate atomically and returns the resulting state.
	// One-way flags and UpdatedAt are enforced by the store, not the mutator.
	Update(ctx context.Context, sessionID string, mutate func(*State)) (*State, error)
	// Close releases any backend resources.
	Close()
}

// finalize re-asserts store-level invariants after a mutator ran: flags never
// revert, AgentActivated tracks ScamDetected, UpdatedAt is refreshed.
func finalize(prev, next *State) {
	next.ScamDetected = next.ScamDetected || prev.ScamDetected
	next.AgentActivated = next.AgentActivated || prev.AgentActivated
	next.ConversationComplete = next.ConversationComplete || prev.ConversationComplete
	next.CallbackSent = next.CallbackSent || prev.CallbackSent
	next.SessionID = prev.SessionID
	next.CreatedAt = prev.CreatedAt
	next.UpdatedAt = time.Now().UTC()
}

// Convenience operations, each a single atomic update.

// MarkScamDetected flips ScamDetected and activates the victim persona.
func MarkScamDetected(ctx context.Context, st Store, sessionID string) (*State, error) {
	return st.Update(ctx, sessionID, func(s *State) {
		s.ScamDetected = true
		s.AgentActivated = true
	})
}

// AppendTurn appends one immutable conversation turn.
func AppendTurn(ctx context.Context, st Store, sessionID string, turn ConversationTurn) (*State, error) {
	return st.Update(ctx, sessionID, func(s *State) {
		s.ConversationHistory = append(s.ConversationHistory, turn)
	})
}

// IncrementMessageCount counts one processed scammer turn.
func IncrementMessageCount(ctx context.Context, st Store, sessionID string) (*State, error) {
	return st.Update(ctx, sessionID, func(s *State) {
		s.TotalMessages++
	})
}

// MergeIntelligence unions newly extracted intelligence into the session.
func MergeIntelligence(ctx context.Context, st Store, sessionID string, intel Intelligence) (*State, error) {
	return st.Update(ctx, sessionID, func(s *State) {
		s.Intelligence = s.Intelligence.Merge(intel)
	})
}

// MarkComplete finalizes the conversation and records the agent notes.
func MarkComplete(ctx context.Context, st Store, sessionID, notes string) (*State, error) {
	return st.Update(ctx, sessionID, func(s *State) {
		s.ConversationComplete = true
		s.AgentNotes = notes
	})
}

// MarkCallbackSent records a confirmed successful intelligence delivery.
func MarkCallbackSent(ctx context.Context, st Store, sessionID string) (*State, error) {
	return st.Update(ctx, sessionID, func(s *State) {
		s.CallbackSent = true
	})
}

// KeyedMutex provides one mutex per session ID. The pipeline holds it for a
// whole message pass; the Redis store holds it across its read-modify-write.
type KeyedMutex struct {
	locks sync.Map // sessionID -> *sync.Mutex
}

// Lock acquires the mutex for key, creating it on first use. Mutexes are
// never evicted; session lifetime is process lifetime.
func (k *KeyedMutex) Lock(key string) {
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
}

// Unlock releases the mutex for key.
func (k *KeyedMutex) Unlock(key string) {
	if mu, ok := k.locks.Load(key); ok {
		mu.(*sync.Mutex).Unlock()
	}
}
