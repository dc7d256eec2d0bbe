package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/decoy-ai/decoyd/pkg/llm"
)

// Verdict is the external classifier's answer for a message.
type Verdict string

const (
	VerdictScam      Verdict = "SCAM"
	VerdictNotScam   Verdict = "NOT_SCAM"
	VerdictUncertain Verdict = "UNCERTAIN"
)

// Classification carries a verdict together with a degradation marker.
// Degraded verdicts are always UNCERTAIN and mean the external service was
// unavailable, timed out or unparseable - call sites must never treat them
// as a confident NOT_SCAM.
type Classification struct {
	Verdict  Verdict
	Degraded bool
	Err      error // cause when Degraded, for logging only
}

// Uncertain returns a degraded classification with the given cause.
func Uncertain(err error) Classification {
	return Classification{Verdict: VerdictUncertain, Degraded: true, Err: err}
}

// Classifier classifies message text as a scam attempt. Implementations
// must not return an error: failures degrade to an UNCERTAIN classification.
type Classifier interface {
	Classify(ctx context.Context, text string) Classification
}

// classifierPrompt instructs the model to answer with exactly one label.
const classifierPrompt = `You are a scam intent classifier.

Classify the following message as:
- "SCAM"
- "NOT_SCAM"
- "UNCERTAIN"

Message:
%q

Return ONLY one word.`

// LLMClassifier performs one external classification call per message over
// an OpenAI-compatible chat endpoint.
type LLMClassifier struct {
	client *llm.Client
}

// NewLLMClassifier wraps an llm.Client. Returns nil for a nil client;
// callers treat a nil classifier as always-UNCERTAIN.
func NewLLMClassifier(client *llm.Client) *LLMClassifier {
	if client == nil {
		return nil
	}
	return &LLMClassifier{client: client}
}

// Classify asks the model for a single-word verdict. Any failure degrades
// to UNCERTAIN; the pipeline keeps engaging rather than failing closed.
func (c *LLMClassifier) Classify(ctx context.Context, text string) Classification {
	if c == nil || c.client == nil {
		return Uncertain(nil)
	}
	content, err := c.client.Chat(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(classifierPrompt, text)},
	}, 0, 10)
	if err != nil {
		return Uncertain(err)
	}
	return Classification{Verdict: normalizeVerdict(content)}
}

// normalizeVerdict maps free-form model output onto the three verdicts.
func normalizeVerdict(content string) Verdict {
	upper := strings.ToUpper(strings.TrimSpace(content))
	switch {
	case strings.Contains(upper, "SCAM") && !strings.Contains(upper, "NOT"):
		return VerdictScam
	case strings.Contains(upper, "NOT_SCAM"), strings.Contains(upper, "NOT SCAM"):
		return VerdictNotScam
	default:
		return VerdictUncertain
	}
}
