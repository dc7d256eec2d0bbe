// Package events publishes session lifecycle notifications over NATS so
// downstream consumers (dashboards, case pipelines) can react to scam
// engagements in real time. Publishing is optional and best-effort; the
// gateway runs fine without a broker.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Lifecycle subjects.
const (
	SubjectScamDetected      = "decoy.scam.detected"
	SubjectSessionCompleted  = "decoy.session.completed"
	SubjectCallbackDelivered = "decoy.callback.delivered"
)

// SessionEvent is the body published on every lifecycle subject.
type SessionEvent struct {
	SessionID     string `json:"sessionId"`
	TotalMessages int    `json:"totalMessages"`
	IntelCount    int    `json:"intelCount"`
	Reason        string `json:"reason,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// Publisher is a thin wrapper over a NATS connection. A nil *Publisher is
// valid and drops every event, so callers never need to branch on whether
// eventing is configured.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials the broker. The connection retries in the background, so a
// broker that is briefly down at startup does not fail the gateway.
func Connect(url, token string) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[WARN] nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: nc}, nil
}

// Publish sends an event on the given subject. Failures are logged, not
// returned; lifecycle events never block or fail the chat pipeline.
func (p *Publisher) Publish(subject string, ev SessionEvent) {
	if p == nil || p.conn == nil {
		return
	}
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[WARN] [%s] marshal event: %v", ev.SessionID, err)
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		log.Printf("[WARN] [%s] publish %s: %v", ev.SessionID, subject, err)
	}
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
