package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/decoy-ai/decoyd/pkg/config"
	"github.com/decoy-ai/decoyd/pkg/decision"
	"github.com/decoy-ai/decoyd/pkg/detect"
	"github.com/decoy-ai/decoyd/pkg/intel"
	"github.com/decoy-ai/decoyd/pkg/persona"
	"github.com/decoy-ai/decoyd/pkg/pipeline"
	"github.com/decoy-ai/decoyd/pkg/session"
)

const testKey = "test-api-key"

func newTestServer(t *testing.T) (*Server, *session.MemoryStore) {
	t.Helper()
	cfg := &config.Config{
		APIKey:             testKey,
		HeuristicThreshold: 3,
		MessageBudget:      15,
	}
	store := session.NewMemoryStore()
	t.Cleanup(store.Close)

	engine := decision.NewEngine(cfg.MessageBudget)
	orch := pipeline.New(pipeline.Config{
		Store:     store,
		Detector:  detect.NewDetector(nil, cfg.HeuristicThreshold),
		Extractor: intel.NewExtractor(),
		Engine:    engine,
		Brain:     persona.NewBrain(nil),
	})
	return NewServer(cfg, orch, store, engine), store
}

func doJSON(t *testing.T, s *Server, method, path, apiKey, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}

	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	resp.Body.Close()
	return resp, decoded
}

func TestHealthNoAuth(t *testing.T) {
	s, _ := newTestServer(t)
	resp, body := doJSON(t, s, http.MethodGet, "/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "healthy" {
		t.Fatalf("body = %v", body)
	}
}

func TestChatAuth(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/chat", "", `{"text":"hi"}`)
	if resp.StatusCode != http.StatusUnauthorized || body["detail"] != "Missing x-api-key header" {
		t.Fatalf("missing key: %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, s, http.MethodPost, "/chat", "wrong", `{"text":"hi"}`)
	if resp.StatusCode != http.StatusUnauthorized || body["detail"] != "Invalid API key" {
		t.Fatalf("invalid key: %d %v", resp.StatusCode, body)
	}
}

func TestChatNestedEnvelope(t *testing.T) {
	s, store := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/chat", testKey,
		`{"sessionId":"abc","message":{"sender":"scammer","text":"hello there","timestamp":"2026-01-01T00:00:00Z"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	if body["status"] != "success" || body["reply"] != persona.AckReply {
		t.Fatalf("body = %v", body)
	}

	st, err := store.Get(t.Context(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalMessages != 1 {
		t.Fatalf("totalMessages = %d", st.TotalMessages)
	}
	if st.ConversationHistory[0].Timestamp != "2026-01-01T00:00:00Z" {
		t.Fatalf("timestamp not preserved: %q", st.ConversationHistory[0].Timestamp)
	}
}

func TestChatFlatEnvelopeAndDefaultSession(t *testing.T) {
	s, store := newTestServer(t)

	resp, _ := doJSON(t, s, http.MethodPost, "/chat", testKey, `{"text":"flat hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, err := store.Get(t.Context(), DefaultSessionID); err != nil {
		t.Fatalf("default session not created: %v", err)
	}
}

func TestChatEmptyText(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/chat", testKey, `{"sessionId":"abc"}`)
	if resp.StatusCode != http.StatusBadRequest || body["detail"] != "Empty message text" {
		t.Fatalf("%d %v", resp.StatusCode, body)
	}
}

func TestGetSession(t *testing.T) {
	s, _ := newTestServer(t)

	// Unknown session is a 404.
	resp, body := doJSON(t, s, http.MethodGet, "/session/nope", testKey, "")
	if resp.StatusCode != http.StatusNotFound || body["detail"] != "Session not found" {
		t.Fatalf("%d %v", resp.StatusCode, body)
	}

	// Drive one scam message through, then inspect.
	doJSON(t, s, http.MethodPost, "/chat", testKey,
		`{"sessionId":"s1","text":"Your account is blocked, pay immediately to fraud@upi"}`)

	resp, body = doJSON(t, s, http.MethodGet, "/session/s1", testKey, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	sess, ok := body["session"].(map[string]any)
	if !ok {
		t.Fatalf("body = %v", body)
	}
	if sess["scamDetected"] != true || sess["agentActivated"] != true {
		t.Fatalf("session = %v", sess)
	}
	if score, ok := sess["completionScore"].(float64); !ok || score <= 0 {
		t.Fatalf("completionScore = %v", sess["completionScore"])
	}
	intelMap, ok := sess["intelligence"].(map[string]any)
	if !ok {
		t.Fatalf("intelligence = %v", sess["intelligence"])
	}
	upis, _ := intelMap["upiIds"].([]any)
	if len(upis) != 1 || upis[0] != "fraud@upi" {
		t.Fatalf("upiIds = %v", intelMap["upiIds"])
	}
}
