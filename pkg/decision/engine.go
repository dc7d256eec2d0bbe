// Package decision determines when a honeypot conversation has served its
// purpose and should be finalized.
package decision

import (
	"fmt"

	"github.com/decoy-ai/decoyd/pkg/session"
)

// urgencyKeywords is the suspicious-keyword subset that, combined with an
// extracted phone number, is enough to finalize a session.
var urgencyKeywords = map[string]bool{
	"urgent":      true,
	"immediately": true,
	"asap":        true,
	"now":         true,
	"expire":      true,
	"blocked":     true,
}

// Engine evaluates completion criteria against a session snapshot.
// Stateless; safe for concurrent use.
type Engine struct {
	messageBudget int
}

// NewEngine creates an engine with the given message budget (forced
// completion after that many scammer turns).
func NewEngine(messageBudget int) *Engine {
	if messageBudget < 1 {
		messageBudget = 15
	}
	return &Engine{messageBudget: messageBudget}
}

// ShouldComplete reports whether the conversation should be finalized and
// why. Any single criterion is sufficient:
//   - at least one UPI ID extracted
//   - at least one phishing link extracted
//   - at least one phone number together with an urgency keyword
//   - the message budget is exhausted
func (e *Engine) ShouldComplete(s *session.State) (bool, string) {
	intel := s.Intelligence

	if n := len(intel.UPIIDs); n >= 1 {
		return true, fmt.Sprintf("Extracted %d UPI ID(s)", n)
	}
	if n := len(intel.PhishingLinks); n >= 1 {
		return true, fmt.Sprintf("Extracted %d phishing link(s)", n)
	}

	if len(intel.PhoneNumbers) >= 1 && hasUrgency(intel.SuspiciousKeywords) {
		return true, "Extracted phone number(s) with urgency keywords"
	}

	if s.TotalMessages >= e.messageBudget {
		return true, fmt.Sprintf("Reached message limit (%d)", s.TotalMessages)
	}

	return false, "Conversation ongoing"
}

// CompletionScore is a diagnostic 0-100 readiness score. It never drives
// control flow; ShouldComplete does.
func (e *Engine) CompletionScore(s *session.State) int {
	intel := s.Intelligence

	score := len(intel.UPIIDs) * 30
	score += len(intel.PhishingLinks) * 30
	score += len(intel.PhoneNumbers) * 20
	score += len(intel.BankAccounts) * 20
	score += min(len(intel.SuspiciousKeywords)*2, 20)

	score += int(float64(s.TotalMessages) / float64(e.messageBudget) * 20)

	return min(score, 100)
}

func hasUrgency(keywords []string) bool {
	for _, kw := range keywords {
		if urgencyKeywords[kw] {
			return true
		}
	}
	return false
}
