package decision

import (
	"strings"
	"testing"

	"github.com/decoy-ai/decoyd/pkg/session"
)

func TestShouldComplete(t *testing.T) {
	e := NewEngine(15)

	testCases := []struct {
		name       string
		state      session.State
		want       bool
		wantReason string
	}{
		{
			name:       "upi on first message",
			state:      session.State{TotalMessages: 1, Intelligence: session.Intelligence{UPIIDs: []string{"rahul@upi"}}},
			want:       true,
			wantReason: "UPI",
		},
		{
			name:       "phishing link",
			state:      session.State{Intelligence: session.Intelligence{PhishingLinks: []string{"https://x.example"}}},
			want:       true,
			wantReason: "phishing link",
		},
		{
			name: "phone with urgency keyword",
			state: session.State{Intelligence: session.Intelligence{
				PhoneNumbers:       []string{"9876543210"},
				SuspiciousKeywords: []string{"blocked"},
			}},
			want:       true,
			wantReason: "urgency",
		},
		{
			name: "phone without urgency keyword",
			state: session.State{Intelligence: session.Intelligence{
				PhoneNumbers:       []string{"9876543210"},
				SuspiciousKeywords: []string{"bank"},
			}},
			want:       false,
			wantReason: "ongoing",
		},
		{
			name:       "message budget reached",
			state:      session.State{TotalMessages: 15},
			want:       true,
			wantReason: "message limit",
		},
		{
			name:       "nothing yet",
			state:      session.State{TotalMessages: 3},
			want:       false,
			wantReason: "ongoing",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := e.ShouldComplete(&tc.state)
			if got != tc.want {
				t.Fatalf("ShouldComplete = %v, want %v (reason %q)", got, tc.want, reason)
			}
			if !strings.Contains(strings.ToLower(reason), strings.ToLower(tc.wantReason)) {
				t.Errorf("reason %q does not mention %q", reason, tc.wantReason)
			}
		})
	}
}

func TestShouldCompleteBudgetOverrun(t *testing.T) {
	e := NewEngine(15)
	s := session.State{TotalMessages: 16}
	got, reason := e.ShouldComplete(&s)
	if !got || !strings.Contains(reason, "message limit") {
		t.Fatalf("expected budget completion on overrun, got %v %q", got, reason)
	}
}

func TestCompletionScore(t *testing.T) {
	e := NewEngine(15)

	testCases := []struct {
		name  string
		state session.State
		want  int
	}{
		{"empty", session.State{}, 0},
		{
			"single upi",
			session.State{Intelligence: session.Intelligence{UPIIDs: []string{"a@upi"}}},
			30,
		},
		{
			"keywords capped at 20",
			session.State{Intelligence: session.Intelligence{SuspiciousKeywords: make([]string, 15)}},
			20,
		},
		{
			"capped at 100",
			session.State{
				TotalMessages: 15,
				Intelligence: session.Intelligence{
					UPIIDs:        []string{"a@upi", "b@upi"},
					PhishingLinks: []string{"https://x"},
					PhoneNumbers:  []string{"9876543210"},
				},
			},
			100,
		},
		{
			"budget ratio contributes",
			session.State{TotalMessages: 15},
			20,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.CompletionScore(&tc.state); got != tc.want {
				t.Errorf("CompletionScore = %d, want %d", got, tc.want)
			}
		})
	}
}
