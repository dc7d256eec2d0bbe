// Package api exposes the honeypot over HTTP: the authenticated chat
// endpoint scammers are pointed at, plus health and session inspection.
package api

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/decoy-ai/decoyd/pkg/config"
	"github.com/decoy-ai/decoyd/pkg/decision"
	"github.com/decoy-ai/decoyd/pkg/pipeline"
	"github.com/decoy-ai/decoyd/pkg/session"
)

const Version = "1.0.0"

// DefaultSessionID is used when a request carries no session identifier.
const DefaultSessionID = "default_session"

// chatMessage is the nested message shape. Unknown fields are ignored.
type chatMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// chatRequest accepts both the nested and the flat envelope. Flat fields are
// only consulted when no nested message is present.
type chatRequest struct {
	SessionID    string       `json:"sessionId"`
	SessionIDAlt string       `json:"session_id"`
	Message      *chatMessage `json:"message"`

	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

func (r *chatRequest) sessionID() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	if r.SessionIDAlt != "" {
		return r.SessionIDAlt
	}
	return DefaultSessionID
}

func (r *chatRequest) message() chatMessage {
	if r.Message != nil {
		return *r.Message
	}
	sender := r.Sender
	if sender == "" {
		sender = "unknown"
	}
	return chatMessage{Sender: sender, Text: r.Text, Timestamp: r.Timestamp}
}

// Server is the HTTP front of the honeypot.
type Server struct {
	app    *fiber.App
	cfg    *config.Config
	orch   *pipeline.Orchestrator
	store  session.Store
	engine *decision.Engine
}

// NewServer wires the routes. The orchestrator does the real work; the
// server only normalizes envelopes and enforces auth.
func NewServer(cfg *config.Config, orch *pipeline.Orchestrator, store session.Store, engine *decision.Engine) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName: "decoyd",
		}),
		cfg:    cfg,
		orch:   orch,
		store:  store,
		engine: engine,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(requestID)

	s.app.Get("/", s.handleRoot)
	s.app.Get("/health", s.handleHealth)

	s.app.Post("/chat", s.requireAPIKey(s.handleChat))
	s.app.Get("/session/:id", s.requireAPIKey(s.handleGetSession))
}

// requestID tags every request so log lines from concurrent sessions can be
// correlated.
func requestID(c fiber.Ctx) error {
	id := c.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("X-Request-ID", id)
	return c.Next()
}

func (s *Server) requireAPIKey(next fiber.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		key := c.Get("x-api-key")
		if key == "" {
			return errorJSON(c, fiber.StatusUnauthorized, "Missing x-api-key header")
		}
		if key != s.cfg.APIKey {
			return errorJSON(c, fiber.StatusUnauthorized, "Invalid API key")
		}
		return next(c)
	}
}

func errorJSON(c fiber.Ctx, status int, detail string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "detail": detail})
}

func (s *Server) handleRoot(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":    "Scam Detection Honeypot API",
		"version": Version,
		"endpoints": fiber.Map{
			"health":  "/health",
			"chat":    "/chat (POST, requires x-api-key)",
			"session": "/session/{id} (GET, requires x-api-key)",
		},
	})
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

func (s *Server) handleChat(c fiber.Ctx) error {
	var req chatRequest
	if err := c.Bind().Body(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	msg := req.message()
	if msg.Text == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Empty message text")
	}

	sessionID := req.sessionID()
	log.Printf("[%s] message from %s: %s", sessionID, msg.Sender, truncate(msg.Text, 50))

	out, err := s.orch.ProcessMessage(c.Context(), pipeline.Message{
		SessionID: sessionID,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		log.Printf("[%s] pipeline error: %v", sessionID, err)
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(fiber.Map{"status": "success", "reply": out.Reply})
}

func (s *Server) handleGetSession(c fiber.Ctx) error {
	st, err := s.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Session not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"session": fiber.Map{
			"sessionId":            st.SessionID,
			"scamDetected":         st.ScamDetected,
			"agentActivated":       st.AgentActivated,
			"totalMessages":        st.TotalMessages,
			"conversationComplete": st.ConversationComplete,
			"callbackSent":         st.CallbackSent,
			"intelligence":         st.Intelligence,
			"completionScore":      s.engine.CompletionScore(st),
		},
	})
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts serving on the given port.
func (s *Server) Listen(port string) error {
	return s.app.Listen(":" + port)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
