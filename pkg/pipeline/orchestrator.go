// Package pipeline runs the full per-message engagement pass: detection,
// history, extraction, persona reply, completion, and report dispatch.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/decoy-ai/decoyd/pkg/archive"
	"github.com/decoy-ai/decoyd/pkg/callback"
	"github.com/decoy-ai/decoyd/pkg/decision"
	"github.com/decoy-ai/decoyd/pkg/detect"
	"github.com/decoy-ai/decoyd/pkg/events"
	"github.com/decoy-ai/decoyd/pkg/httputil"
	"github.com/decoy-ai/decoyd/pkg/intel"
	"github.com/decoy-ai/decoyd/pkg/persona"
	"github.com/decoy-ai/decoyd/pkg/session"
)

// dispatchTimeout bounds one full callback cycle: three 5s attempts plus
// 1s+2s backoff, with headroom.
const dispatchTimeout = 30 * time.Second

// maxConcurrentDispatches caps in-flight callback deliveries across sessions.
const maxConcurrentDispatches = 16

// Message is one inbound scammer turn.
type Message struct {
	SessionID string
	Text      string
	Timestamp string
}

// Outcome is the result of one pipeline pass.
type Outcome struct {
	Reply string
	State *session.State
}

// Orchestrator wires the engagement stages together. Config fields other
// than Store, Detector, Extractor, Engine and Brain are optional.
type Orchestrator struct {
	store      session.Store
	detector   *detect.Detector
	extractor  *intel.Extractor
	engine     *decision.Engine
	brain      *persona.Brain
	dispatcher *callback.Dispatcher
	events     *events.Publisher
	archive    *archive.Archive

	locks    session.KeyedMutex
	sem      *httputil.Semaphore
	inflight sync.Map // sessionID -> struct{}, callback dispatch in flight
}

// Config collects the orchestrator's dependencies.
type Config struct {
	Store      session.Store
	Detector   *detect.Detector
	Extractor  *intel.Extractor
	Engine     *decision.Engine
	Brain      *persona.Brain
	Dispatcher *callback.Dispatcher
	Events     *events.Publisher
	Archive    *archive.Archive
}

// New builds an Orchestrator from its dependencies.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		store:      cfg.Store,
		detector:   cfg.Detector,
		extractor:  cfg.Extractor,
		engine:     cfg.Engine,
		brain:      cfg.Brain,
		dispatcher: cfg.Dispatcher,
		events:     cfg.Events,
		archive:    cfg.Archive,
		sem:        httputil.NewSemaphore(maxConcurrentDispatches),
	}
}

// ProcessMessage runs one scammer turn through the pipeline and returns the
// decoy's reply. Passes for the same session are serialized; passes for
// different sessions run concurrently. The pass never fails on degraded
// externals: a dead LLM or callback endpoint still yields a reply.
func (o *Orchestrator) ProcessMessage(ctx context.Context, msg Message) (Outcome, error) {
	o.locks.Lock(msg.SessionID)
	defer o.locks.Unlock(msg.SessionID)

	st, err := o.store.GetOrCreate(ctx, msg.SessionID)
	if err != nil {
		return Outcome{}, err
	}

	// Detection is sticky: once a session is flagged, later turns skip it.
	if !st.ScamDetected {
		res := o.detector.Detect(ctx, msg.Text)
		if res.IsScam {
			log.Printf("[%s] scam detected: %s", msg.SessionID, res.Reason)
			if st, err = session.MarkScamDetected(ctx, o.store, msg.SessionID); err != nil {
				return Outcome{}, err
			}
			o.events.Publish(events.SubjectScamDetected, events.SessionEvent{
				SessionID:     st.SessionID,
				TotalMessages: st.TotalMessages,
				IntelCount:    st.Intelligence.Total(),
				Reason:        res.Reason,
			})
		}
	}

	ts := msg.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}
	if st, err = session.AppendTurn(ctx, o.store, msg.SessionID, session.ConversationTurn{
		Role: session.RoleScammer, Content: msg.Text, Timestamp: ts,
	}); err != nil {
		return Outcome{}, err
	}
	if st, err = session.IncrementMessageCount(ctx, o.store, msg.SessionID); err != nil {
		return Outcome{}, err
	}

	found := o.extractor.ExtractAll(msg.Text, st.Intelligence)
	if st, err = session.MergeIntelligence(ctx, o.store, msg.SessionID, found); err != nil {
		return Outcome{}, err
	}

	reply := persona.AckReply
	if st.AgentActivated {
		reply = o.brain.GenerateReply(ctx, msg.Text, st.ConversationHistory)
	}
	if st, err = session.AppendTurn(ctx, o.store, msg.SessionID, session.ConversationTurn{
		Role: session.RoleVictim, Content: reply,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return Outcome{}, err
	}

	if !st.ConversationComplete {
		if done, reason := o.engine.ShouldComplete(st); done {
			log.Printf("[%s] conversation complete: %s", msg.SessionID, reason)
			notes := o.brain.GenerateNotes(ctx, st.ConversationHistory)
			if st, err = session.MarkComplete(ctx, o.store, msg.SessionID, notes); err != nil {
				return Outcome{}, err
			}
			o.events.Publish(events.SubjectSessionCompleted, events.SessionEvent{
				SessionID:     st.SessionID,
				TotalMessages: st.TotalMessages,
				IntelCount:    st.Intelligence.Total(),
				Reason:        reason,
			})
		}
	}

	if st.ScamDetected && st.ConversationComplete && !st.CallbackSent {
		o.dispatchReport(st)
	}

	return Outcome{Reply: reply, State: st}, nil
}

// dispatchReport sends the final report off the request path. At most one
// dispatch per session is in flight; CallbackSent is only set after the
// endpoint confirmed receipt, so a failed cycle is retried on the next turn.
func (o *Orchestrator) dispatchReport(st *session.State) {
	if o.dispatcher == nil {
		return
	}
	if _, loaded := o.inflight.LoadOrStore(st.SessionID, struct{}{}); loaded {
		return
	}

	snapshot := st.Clone()
	go func() {
		defer o.inflight.Delete(snapshot.SessionID)

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if err := o.sem.Acquire(ctx); err != nil {
			log.Printf("[WARN] [%s] callback dispatch queue full: %v", snapshot.SessionID, err)
			return
		}
		defer o.sem.Release()

		err := o.dispatcher.Send(ctx, snapshot)
		if err != nil {
			log.Printf("[WARN] [%s] callback not delivered: %v", snapshot.SessionID, err)
		} else {
			if _, uerr := session.MarkCallbackSent(ctx, o.store, snapshot.SessionID); uerr != nil {
				log.Printf("[WARN] [%s] record callback delivery: %v", snapshot.SessionID, uerr)
			}
			o.events.Publish(events.SubjectCallbackDelivered, events.SessionEvent{
				SessionID:     snapshot.SessionID,
				TotalMessages: snapshot.TotalMessages,
				IntelCount:    snapshot.Intelligence.Total(),
			})
		}

		if aerr := o.archive.SaveReport(ctx, snapshot, err == nil); aerr != nil {
			log.Printf("[WARN] [%s] archive report: %v", snapshot.SessionID, aerr)
		}
	}()
}

// WaitForDispatches blocks until no callback dispatch is in flight or the
// context expires. Used by tests and graceful shutdown.
func (o *Orchestrator) WaitForDispatches(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		busy := false
		o.inflight.Range(func(_, _ any) bool {
			busy = true
			return false
		})
		if !busy {
			return nil
		}
		select {
		case <-tick.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
