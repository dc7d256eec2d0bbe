package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/decoy-ai/decoyd/pkg/session"
)

func finishedSession() *session.State {
	st := session.NewState("sess-1")
	st.ScamDetected = true
	st.AgentActivated = true
	st.ConversationComplete = true
	st.TotalMessages = 7
	st.AgentNotes = "Fake KYC pretext with urgency."
	st.Intelligence.UPIIDs = []string{"fraud@upi"}
	st.Intelligence.PhoneNumbers = []string{"9876543210"}
	return st
}

func noBackoff(d *Dispatcher) { d.backoff = func(int) time.Duration { return 0 } }

func TestSendDeliversPayload(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := New(srv.URL, 2*time.Second)
	noBackoff(d)

	if err := d.Send(context.Background(), finishedSession()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.SessionID != "sess-1" || !got.ScamDetected || got.TotalMessagesExchanged != 7 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if len(got.ExtractedIntelligence.UPIIDs) != 1 || got.ExtractedIntelligence.UPIIDs[0] != "fraud@upi" {
		t.Fatalf("upiIds = %v", got.ExtractedIntelligence.UPIIDs)
	}
	// Empty slices must marshal as [], not null.
	if got.ExtractedIntelligence.BankAccounts == nil {
		t.Fatal("bankAccounts should decode as empty slice")
	}
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(srv.URL, 2*time.Second)
	noBackoff(d)

	if err := d.Send(context.Background(), finishedSession()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestSendExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := New(srv.URL, 2*time.Second)
	noBackoff(d)

	err := d.Send(context.Background(), finishedSession())
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestSendPreconditions(t *testing.T) {
	d := New("http://127.0.0.1:0", time.Second)
	noBackoff(d)

	cases := []struct {
		name   string
		mutate func(*session.State)
		want   string
	}{
		{"not detected", func(st *session.State) { st.ScamDetected = false }, "scam not detected"},
		{"not complete", func(st *session.State) { st.ConversationComplete = false }, "not complete"},
		{"already sent", func(st *session.State) { st.CallbackSent = true }, "already sent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := finishedSession()
			tc.mutate(st)
			err := d.Send(context.Background(), st)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestSendHonorsContextDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(srv.URL, 2*time.Second)
	d.backoff = func(int) time.Duration { return 10 * time.Second }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := d.Send(ctx, finishedSession())
	if err == nil || !strings.Contains(err.Error(), "aborted") {
		t.Fatalf("err = %v, want aborted", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("Send did not abort promptly on context cancellation")
	}
}
