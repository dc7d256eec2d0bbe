// Package session owns all per-conversation state for the decoyd honeypot.
// A State is only ever mutated through a Store; every flag is one-way and the
// intelligence sets only grow for the life of a session.
package session

import (
	"slices"
	"time"
)

// Conversation roles.
const (
	RoleScammer = "scammer"
	RoleVictim  = "victim"
)

// Intelligence is the record of extracted scam intelligence. Each field is a
// duplicate-free set in insertion order; merging never removes values.
type Intelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	PhishingLinks      []string `json:"phishingLinks"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// Merge unions other into a copy of i. Existing values keep their order; new
// values are appended in the order given.
func (i Intelligence) Merge(other Intelligence) Intelligence {
	return Intelligence{
		BankAccounts:       union(i.BankAccounts, other.BankAccounts),
		UPIIDs:             union(i.UPIIDs, other.UPIIDs),
		PhoneNumbers:       union(i.PhoneNumbers, other.PhoneNumbers),
		PhishingLinks:      union(i.PhishingLinks, other.PhishingLinks),
		SuspiciousKeywords: union(i.SuspiciousKeywords, other.SuspiciousKeywords),
	}
}

// Total returns the number of extracted values across all sets.
func (i Intelligence) Total() int {
	return len(i.BankAccounts) + len(i.UPIIDs) + len(i.PhoneNumbers) +
		len(i.PhishingLinks) + len(i.SuspiciousKeywords)
}

func union(existing, incoming []string) []string {
	out := slices.Clone(existing)
	for _, v := range incoming {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// ConversationTurn is one message in a session's history, immutable once
// appended. Timestamps are the caller-supplied opaque strings when present.
type ConversationTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// State is the complete per-session record. Invariants: ScamDetected,
// ConversationComplete and CallbackSent never revert to false;
// AgentActivated implies ScamDetected; TotalMessages counts processed
// scammer turns only.
type State struct {
	SessionID            string             `json:"sessionId"`
	ScamDetected         bool               `json:"scamDetected"`
	AgentActivated       bool               `json:"agentActivated"`
	TotalMessages        int                `json:"totalMessages"`
	Intelligence         Intelligence       `json:"intelligence"`
	ConversationHistory  []ConversationTurn `json:"conversationHistory"`
	AgentNotes           string             `json:"agentNotes"`
	ConversationComplete bool               `json:"conversationComplete"`
	CallbackSent         bool               `json:"callbackSent"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

// NewState returns a fresh session with all-false/empty defaults.
func NewState(sessionID string) *State {
	now := time.Now().UTC()
	return &State{
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can never mutate stored state outside
// a Store operation.
func (s *State) Clone() *State {
	cp := *s
	cp.ConversationHistory = slices.Clone(s.ConversationHistory)
	cp.Intelligence = Intelligence{
		BankAccounts:       slices.Clone(s.Intelligence.BankAccounts),
		UPIIDs:             slices.Clone(s.Intelligence.UPIIDs),
		PhoneNumbers:       slices.Clone(s.Intelligence.PhoneNumbers),
		PhishingLinks:      slices.Clone(s.Intelligence.PhishingLinks),
		SuspiciousKeywords: slices.Clone(s.Intelligence.SuspiciousKeywords),
	}
	return &cp
}
