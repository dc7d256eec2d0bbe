// Package callback delivers the final intelligence report for a finished
// session to the configured external endpoint, at most once per session.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/decoy-ai/decoyd/pkg/httputil"
	"github.com/decoy-ai/decoyd/pkg/session"
)

const maxAttempts = 3

// Payload is the report body posted to the callback endpoint.
type Payload struct {
	SessionID              string       `json:"sessionId"`
	ScamDetected           bool         `json:"scamDetected"`
	TotalMessagesExchanged int          `json:"totalMessagesExchanged"`
	ExtractedIntelligence  Intelligence `json:"extractedIntelligence"`
	AgentNotes             string       `json:"agentNotes"`
}

// Intelligence mirrors session.Intelligence with the report's field order.
type Intelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// BuildPayload assembles the report body for a session snapshot.
func BuildPayload(st *session.State) Payload {
	return Payload{
		SessionID:              st.SessionID,
		ScamDetected:           st.ScamDetected,
		TotalMessagesExchanged: st.TotalMessages,
		ExtractedIntelligence: Intelligence{
			BankAccounts:       emptyIfNil(st.Intelligence.BankAccounts),
			UPIIDs:             emptyIfNil(st.Intelligence.UPIIDs),
			PhishingLinks:      emptyIfNil(st.Intelligence.PhishingLinks),
			PhoneNumbers:       emptyIfNil(st.Intelligence.PhoneNumbers),
			SuspiciousKeywords: emptyIfNil(st.Intelligence.SuspiciousKeywords),
		},
		AgentNotes: st.AgentNotes,
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Dispatcher posts finished-session reports with bounded retries.
type Dispatcher struct {
	url     string
	client  *http.Client
	backoff func(attempt int) time.Duration
}

// New builds a Dispatcher for the given endpoint. timeout bounds each
// individual attempt.
func New(url string, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		url:    url,
		client: httputil.Client(timeout),
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<(attempt-1)) * time.Second
		},
	}
}

// Send posts the session's report. The session must be a detected scam with
// a completed conversation and no prior delivery; otherwise Send returns a
// descriptive error without touching the network. Network failures and
// non-2xx statuses are retried with exponential backoff (1s, 2s, 4s).
func (d *Dispatcher) Send(ctx context.Context, st *session.State) error {
	if !st.ScamDetected {
		return fmt.Errorf("scam not detected, skipping callback")
	}
	if !st.ConversationComplete {
		return fmt.Errorf("conversation not complete, skipping callback")
	}
	if st.CallbackSent {
		return fmt.Errorf("callback already sent for this session")
	}

	body, err := json.Marshal(BuildPayload(st))
	if err != nil {
		return fmt.Errorf("encode callback payload: %w", err)
	}

	log.Printf("[%s] sending intelligence callback (%d bytes)", st.SessionID, len(body))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = d.post(ctx, body)
		if lastErr == nil {
			log.Printf("[%s] callback delivered on attempt %d", st.SessionID, attempt)
			return nil
		}
		log.Printf("[WARN] [%s] callback attempt %d failed: %v", st.SessionID, attempt, lastErr)

		if attempt < maxAttempts {
			select {
			case <-time.After(d.backoff(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("callback aborted: %w", ctx.Err())
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer httputil.DrainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 100))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
	}
}
