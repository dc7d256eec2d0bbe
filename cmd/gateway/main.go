package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/decoy-ai/decoyd/pkg/api"
	"github.com/decoy-ai/decoyd/pkg/archive"
	"github.com/decoy-ai/decoyd/pkg/callback"
	"github.com/decoy-ai/decoyd/pkg/config"
	"github.com/decoy-ai/decoyd/pkg/decision"
	"github.com/decoy-ai/decoyd/pkg/detect"
	"github.com/decoy-ai/decoyd/pkg/events"
	"github.com/decoy-ai/decoyd/pkg/intel"
	"github.com/decoy-ai/decoyd/pkg/llm"
	"github.com/decoy-ai/decoyd/pkg/persona"
	"github.com/decoy-ai/decoyd/pkg/pipeline"
	"github.com/decoy-ai/decoyd/pkg/session"
)

// Honeypot holds the engagement components. Everything beyond the heuristic
// detector is optional and degrades gracefully when unconfigured.
type Honeypot struct {
	cfg      *config.Config
	store    session.Store
	detector *detect.Detector
	engine   *decision.Engine
	orch     *pipeline.Orchestrator
	events   *events.Publisher
	archive  *archive.Archive
}

func NewHoneypot(cfg *config.Config) *Honeypot {
	h := &Honeypot{
		cfg:      cfg,
		engine:   decision.NewEngine(cfg.MessageBudget),
		detector: detect.NewDetector(nil, cfg.HeuristicThreshold),
	}

	// LLM client backs both the classifier and the victim persona - optional
	client := llm.NewClient(cfg)
	if client != nil {
		h.detector = detect.NewDetector(detect.NewLLMClassifier(client), cfg.HeuristicThreshold)
		log.Printf("✓ LLM classifier enabled (provider: %s, model: %s)", cfg.LLMProvider, cfg.LLMModel)
		log.Println("✓ Victim persona enabled")
	} else {
		log.Println("○ LLM classifier disabled (no API key) - heuristics only")
		log.Println("○ Victim persona disabled (fallback replies)")
	}

	// Session store: Redis when configured, in-memory otherwise
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := session.NewRedisStore(ctx, cfg.RedisAddr, 24*time.Hour)
		cancel()
		if err != nil {
			log.Printf("[WARN] redis unavailable (%v), falling back to in-memory sessions", err)
			h.store = session.NewMemoryStore()
		} else {
			h.store = store
			log.Printf("✓ Redis session store enabled (%s)", cfg.RedisAddr)
		}
	} else {
		h.store = session.NewMemoryStore()
		log.Println("○ Redis disabled - in-memory session store")
	}

	// Lifecycle event publishing - optional
	if cfg.NATSURL != "" {
		pub, err := events.Connect(cfg.NATSURL, cfg.NATSToken)
		if err != nil {
			log.Printf("○ Event publishing disabled (connect failed: %v)", err)
		} else {
			h.events = pub
			log.Printf("✓ Event publishing enabled (%s)", cfg.NATSURL)
		}
	} else {
		log.Println("○ Event publishing disabled (no NATS URL)")
	}

	// Report archive - optional
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		arc, err := archive.New(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Printf("○ Report archive disabled (connect failed: %v)", err)
		} else {
			h.archive = arc
			log.Println("✓ Report archive enabled (postgres)")
		}
	} else {
		log.Println("○ Report archive disabled (no database URL)")
	}

	h.orch = pipeline.New(pipeline.Config{
		Store:      h.store,
		Detector:   h.detector,
		Extractor:  intel.NewExtractor(),
		Engine:     h.engine,
		Brain:      persona.NewBrain(client),
		Dispatcher: callback.New(cfg.CallbackURL, cfg.CallbackTimeout),
		Events:     h.events,
		Archive:    h.archive,
	})
	return h
}

func (h *Honeypot) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.orch.WaitForDispatches(ctx); err != nil {
		log.Printf("[WARN] shutdown with callback dispatches still in flight")
	}
	h.events.Close()
	h.archive.Close()
	h.store.Close()
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			log.Fatalf("[STARTUP] %v", err)
		}
		if len(os.Args) > 2 {
			port, err := strconv.Atoi(os.Args[2])
			if err != nil {
				log.Fatalf("[STARTUP] invalid port %q", os.Args[2])
			}
			cfg.Port = port
		}
		runServer(cfg)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: decoyd scan <text>")
			os.Exit(1)
		}
		runCLIScan(config.Load(), strings.Join(os.Args[2:], " "))
	case "version":
		fmt.Printf("decoyd v%s\n", api.Version)
		fmt.Println("Scam Detection Honeypot - conversational agent edition")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("decoyd v%s - Scam Detection Honeypot\n\n", api.Version)
	fmt.Println("Usage:")
	fmt.Println("  decoyd serve [port]   Start the honeypot API (default: 8080)")
	fmt.Println("  decoyd scan <text>    Run detection + extraction over a message")
	fmt.Println("  decoyd version        Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  decoyd serve 8080")
	fmt.Println("  decoyd scan \"Your account is blocked, verify KYC immediately\"")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  API_KEY               x-api-key required on /chat and /session")
	fmt.Println("  CALLBACK_URL          Intelligence report endpoint")
	fmt.Println("  GROQ_API_KEY          Enables LLM classification and the victim persona")
	fmt.Println("  REDIS_ADDR            Enables Redis-backed sessions")
	fmt.Println("  DATABASE_URL          Enables the Postgres report archive")
	fmt.Println("  NATS_URL              Enables lifecycle event publishing")
	fmt.Println("  DECOYD_CONFIG         Optional YAML config file (env wins)")
}

func runServer(cfg *config.Config) {
	h := NewHoneypot(cfg)
	defer h.Close()

	srv := api.NewServer(cfg, h.orch, h.store, h.engine)

	log.Printf("decoyd starting on :%d", cfg.Port)
	log.Printf("Endpoints:")
	log.Printf("  GET  /health       - Health check")
	log.Printf("  POST /chat         - Scammer interaction (x-api-key)")
	log.Printf("  GET  /session/:id  - Session inspection (x-api-key)")

	if err := srv.Listen(strconv.Itoa(cfg.Port)); err != nil {
		log.Fatal(err)
	}
}

// runCLIScan runs detection and extraction over a single message and prints
// the result, without touching session state or the callback endpoint.
func runCLIScan(cfg *config.Config, text string) {
	detector := detect.NewDetector(detect.NewLLMClassifier(llm.NewClient(cfg)), cfg.HeuristicThreshold)
	extractor := intel.NewExtractor()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout+5*time.Second)
	defer cancel()

	res := detector.Detect(ctx, text)
	found := extractor.ExtractAll(text, session.Intelligence{})

	out, _ := json.MarshalIndent(map[string]any{
		"isScam":         res.IsScam,
		"reason":         res.Reason,
		"heuristicScore": res.HeuristicScore,
		"externalLabel":  res.ExternalLabel,
		"matchedSignals": res.MatchedSignals,
		"intelligence":   found,
	}, "", "  ")
	fmt.Println(string(out))
}
