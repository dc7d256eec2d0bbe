// Package detect decides whether a message is a scam attempt. Two
// independent signals combine: a local heuristic score over keyword and
// urgency patterns, and one call to an external classification service that
// fails open to UNCERTAIN.
package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/decoy-ai/decoyd/pkg/patterns"
)

// moderateScore is the heuristic level at which an UNCERTAIN external
// verdict still tips the decision to scam. It deliberately sits below the
// configured threshold; see the decision-rule ordering in Detect.
const moderateScore = 2

// Result is the outcome of one detection pass.
type Result struct {
	IsScam         bool            `json:"is_scam"`
	Reason         string          `json:"reason"`
	MatchedSignals []string        `json:"matched_signals"`
	HeuristicScore int             `json:"heuristic_score"`
	External       Classification  `json:"-"`
	ExternalLabel  Verdict         `json:"external_verdict"`
}

// Detector combines heuristic scoring with the external classifier.
// Stateless and safe for concurrent use.
type Detector struct {
	reg        *patterns.Registry
	classifier Classifier
	threshold  int
}

// NewDetector builds a detector. classifier may be nil, in which case the
// external signal is a permanent degraded UNCERTAIN.
func NewDetector(classifier Classifier, threshold int) *Detector {
	if threshold < 1 {
		threshold = 3
	}
	return &Detector{
		reg:        patterns.Get(),
		classifier: classifier,
		threshold:  threshold,
	}
}

// HeuristicScore tallies the local signals: +1 per vocabulary keyword,
// +2 per urgency pattern, +3 when a threat word and an urgency word co-occur.
func (d *Detector) HeuristicScore(message string) (int, []string) {
	lower := strings.ToLower(message)
	var matched []string
	score := 0

	for _, kw := range patterns.ScamKeywords {
		if strings.Contains(lower, kw) {
			score++
			matched = append(matched, kw)
		}
	}

	for _, p := range d.reg.MatchAll(lower, patterns.CategoryUrgency) {
		score += p.Severity
		matched = append(matched, "urgency:"+p.Name)
	}

	if containsAny(lower, patterns.ThreatWords) && containsAny(lower, patterns.UrgencyWords) {
		score += 3
		matched = append(matched, "threat+urgency_combo")
	}

	return score, matched
}

// Detect runs both signals and applies the combined decision rule. The
// conditions are evaluated in precedence order; the first applicable one
// supplies the justification, later true conditions only confirm isScam.
func (d *Detector) Detect(ctx context.Context, message string) Result {
	score, matched := d.HeuristicScore(message)

	external := Uncertain(nil)
	if d.classifier != nil {
		external = d.classifier.Classify(ctx, message)
	}

	r := Result{
		MatchedSignals: matched,
		HeuristicScore: score,
		External:       external,
		ExternalLabel:  external.Verdict,
	}

	if score >= d.threshold {
		r.IsScam = true
		r.Reason = fmt.Sprintf("Heuristic score %d >= threshold (%d)", score, d.threshold)
	}
	if external.Verdict == VerdictScam {
		r.IsScam = true
		if r.Reason == "" {
			r.Reason = "External classifier flagged SCAM"
		}
	}
	if score >= moderateScore && external.Verdict == VerdictUncertain {
		r.IsScam = true
		if r.Reason == "" {
			r.Reason = fmt.Sprintf("Moderate heuristics (%d) with uncertain classification", score)
		}
	}

	if !r.IsScam {
		r.Reason = fmt.Sprintf("No scam indicators (heuristic: %d, external: %s)", score, external.Verdict)
	}
	return r
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
