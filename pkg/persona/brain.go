// Package persona generates the human-victim replies that keep a scammer
// engaged, and the closing summary note for a finalized session. Both are
// single external LLM calls with fixed fallbacks; the pipeline never depends
// on them succeeding.
package persona

import (
	"context"
	"fmt"
	"strings"

	"github.com/decoy-ai/decoyd/pkg/llm"
	"github.com/decoy-ai/decoyd/pkg/session"
)

// Fixed fallback strings used whenever the LLM is absent or fails.
const (
	FallbackReply = "Ji, what do you mean? I don't understand."
	FallbackNotes = "Scam engagement completed."

	// AckReply is returned for sessions where the persona is not activated.
	AckReply = "Thank you for your message."
)

// historyWindow is how many trailing turns are given to the model as context.
const historyWindow = 10

// victimPersona is the locked system prompt for the decoy victim.
const victimPersona = `You are an autonomous AI agent acting as a real human victim.

GOAL:
Engage a scammer in a believable conversation to extract scam intelligence.

YOUR PERSONA:
- You are a normal Indian citizen named "Ravi" (but don't mention your name unless asked)
- You are not tech savvy
- You are cautious but slightly worried
- You do NOT trust easily
- You speak simple English with occasional Hindi words like "ji", "haan", "accha"

RULES:
- NEVER reveal scam detection
- NEVER mention AI, policy, security, or law enforcement
- NEVER accuse the sender
- Act confused, worried, and cautious
- Ask short, natural questions
- Do not over-cooperate
- Keep the scammer talking
- If scammer asks for sensitive info, delay or deflect

YOU MUST:
- Extract UPI IDs, phone numbers, bank accounts, phishing links
- Encourage the scammer to provide details by asking innocent questions
- Keep responses under 2 sentences
- Sound like a real human
- Use casual language, not formal

TIPS FOR INTELLIGENCE EXTRACTION:
- If they mention payment: "Which UPI should I send to?"
- If they mention call: "What number should I call you on?"
- If they mention bank: "Which bank account details do you need?"
- If they mention link: "Can you send me the correct link please?"

SELF-CORRECT if you sound robotic.

END CONDITION:
If you have gathered enough intelligence OR scammer stops providing info,
you may wrap up the conversation naturally.`

// Brain produces persona replies and session summaries.
type Brain struct {
	client *llm.Client
}

// NewBrain wraps an llm.Client; client may be nil, in which case every
// generation returns its fallback.
func NewBrain(client *llm.Client) *Brain {
	return &Brain{client: client}
}

// GenerateReply produces a short victim-style response to the latest
// scammer message. Returns FallbackReply when the LLM is absent or fails.
func (b *Brain) GenerateReply(ctx context.Context, incoming string, history []session.ConversationTurn) string {
	if b.client == nil {
		return FallbackReply
	}

	userPrompt := fmt.Sprintf(`Conversation so far:
%s

Latest message from scammer:
"%s"

Respond as the human victim. Keep it short (1-2 sentences), natural, and slightly worried.`,
		formatHistory(history), incoming)

	reply, err := b.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: victimPersona},
		{Role: "user", Content: userPrompt},
	}, 0.8, 100)
	if err != nil || reply == "" {
		return FallbackReply
	}

	// Models sometimes quote the whole utterance.
	if len(reply) >= 2 && strings.HasPrefix(reply, `"`) && strings.HasSuffix(reply, `"`) {
		reply = reply[1 : len(reply)-1]
	}
	return reply
}

// GenerateNotes summarizes the scammer's tactics for the final report.
// Returns FallbackNotes when the LLM is absent, fails, or there is nothing
// to summarize.
func (b *Brain) GenerateNotes(ctx context.Context, history []session.ConversationTurn) string {
	if b.client == nil || len(history) == 0 {
		return FallbackNotes
	}

	prompt := fmt.Sprintf(`Analyze this scam conversation and provide a brief 1-2 sentence summary of the scammer's tactics.

Conversation:
%s

Summary:`, formatHistory(history))

	notes, err := b.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, 0, 100)
	if err != nil || notes == "" {
		return FallbackNotes
	}
	return notes
}

func formatHistory(history []session.ConversationTurn) string {
	if len(history) == 0 {
		return "No previous conversation."
	}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	lines := make([]string, 0, len(history))
	for _, turn := range history {
		label := "You (victim)"
		if turn.Role == session.RoleScammer {
			label = "Scammer"
		}
		lines = append(lines, label+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}
