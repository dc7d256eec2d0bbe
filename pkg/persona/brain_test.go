package persona

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/decoy-ai/decoyd/pkg/llm"
	"github.com/decoy-ai/decoyd/pkg/session"
)

// chatStub returns a fixed completion and records the last user prompt.
func chatStub(t *testing.T, reply string, lastPrompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if lastPrompt != nil && len(req.Messages) > 0 {
			*lastPrompt = req.Messages[len(req.Messages)-1].Content
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestGenerateReplyStripsQuotes(t *testing.T) {
	srv := chatStub(t, `"Accha, which UPI should I send to?"`, nil)
	defer srv.Close()

	brain := NewBrain(llm.NewClientAt(srv.URL, "", "test-model", 5*time.Second))
	reply := brain.GenerateReply(context.Background(), "Pay now or your account is blocked", nil)
	if reply != "Accha, which UPI should I send to?" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestGenerateReplyIncludesHistoryWindow(t *testing.T) {
	var prompt string
	srv := chatStub(t, "Haan ji, tell me more.", &prompt)
	defer srv.Close()

	history := make([]session.ConversationTurn, 0, 12)
	for i := 0; i < 12; i++ {
		role := session.RoleScammer
		if i%2 == 1 {
			role = session.RoleVictim
		}
		history = append(history, session.ConversationTurn{Role: role, Content: "filler-turn"})
	}
	history[0].Content = "very-first-turn"
	history[11].Content = "most-recent-turn"

	brain := NewBrain(llm.NewClientAt(srv.URL, "", "test-model", 5*time.Second))
	brain.GenerateReply(context.Background(), "hello", history)

	if strings.Contains(prompt, "very-first-turn") {
		t.Fatal("prompt should not include turns beyond the history window")
	}
	if !strings.Contains(prompt, "most-recent-turn") {
		t.Fatal("prompt missing the most recent turn")
	}
	if !strings.Contains(prompt, "Scammer:") || !strings.Contains(prompt, "You (victim):") {
		t.Fatalf("prompt missing role labels: %q", prompt)
	}
}

func TestGenerateReplyFallbacks(t *testing.T) {
	// Nil client.
	if got := NewBrain(nil).GenerateReply(context.Background(), "hi", nil); got != FallbackReply {
		t.Fatalf("nil client: got %q", got)
	}

	// Failing endpoint.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	brain := NewBrain(llm.NewClientAt(srv.URL, "", "test-model", 5*time.Second))
	if got := brain.GenerateReply(context.Background(), "hi", nil); got != FallbackReply {
		t.Fatalf("failing endpoint: got %q", got)
	}
}

func TestGenerateNotes(t *testing.T) {
	srv := chatStub(t, "Scammer used urgency and a fake KYC pretext to solicit UPI payment.", nil)
	defer srv.Close()

	brain := NewBrain(llm.NewClientAt(srv.URL, "", "test-model", 5*time.Second))
	history := []session.ConversationTurn{
		{Role: session.RoleScammer, Content: "Your KYC expires today, pay to verify@upi"},
		{Role: session.RoleVictim, Content: "Which UPI should I send to?"},
	}

	notes := brain.GenerateNotes(context.Background(), history)
	if !strings.Contains(notes, "urgency") {
		t.Fatalf("unexpected notes: %q", notes)
	}

	// Empty history short-circuits to the fallback.
	if got := brain.GenerateNotes(context.Background(), nil); got != FallbackNotes {
		t.Fatalf("empty history: got %q", got)
	}
	if got := NewBrain(nil).GenerateNotes(context.Background(), history); got != FallbackNotes {
		t.Fatalf("nil client: got %q", got)
	}
}
