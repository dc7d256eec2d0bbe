// Package intel extracts actionable scam intelligence (payment handles,
// phone numbers, account numbers, links, suspicious phrasing) from message
// text. Extraction is pure: given the same text and prior intelligence it
// always produces the same result, and re-processing a text adds nothing.
package intel

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/decoy-ai/decoyd/pkg/patterns"
	"github.com/decoy-ai/decoyd/pkg/session"
)

// maxUPIProviderLen separates UPI handles (short provider suffixes such as
// @upi, @ybl, @paytm) from email-like addresses with full domains.
const maxUPIProviderLen = 10

// Extractor applies the registered extraction patterns over message text.
// Safe for concurrent use; it holds no per-call state.
type Extractor struct {
	reg *patterns.Registry
}

// NewExtractor returns an extractor backed by the global pattern registry.
func NewExtractor() *Extractor {
	return &Extractor{reg: patterns.Get()}
}

// ExtractAll runs every extraction over text and unions the findings with
// existing. The result is never smaller than existing and never contains
// duplicates.
func (e *Extractor) ExtractAll(text string, existing session.Intelligence) session.Intelligence {
	// NFKC folding maps fullwidth digits and compatibility forms to their
	// canonical shapes so trivially obfuscated numbers still extract.
	text = norm.NFKC.String(text)

	found := session.Intelligence{
		UPIIDs:             e.UPIIDs(text),
		PhoneNumbers:       e.PhoneNumbers(text),
		BankAccounts:       e.BankAccounts(text),
		PhishingLinks:      e.URLs(text),
		SuspiciousKeywords: e.Keywords(text),
	}
	return existing.Merge(found)
}

// UPIIDs extracts token@provider handles, case-folded. Matches whose
// provider part is longer than maxUPIProviderLen are treated as email
// addresses and skipped.
func (e *Extractor) UPIIDs(text string) []string {
	p := e.reg.First(patterns.CategoryUPI)
	var out []string
	for _, m := range p.Regex.FindAllString(text, -1) {
		parts := strings.Split(m, "@")
		if len(parts) == 2 && len(parts[1]) <= maxUPIProviderLen {
			out = appendUnique(out, strings.ToLower(m))
		}
	}
	return out
}

// PhoneNumbers extracts Indian mobile numbers normalized to bare 10 digits.
// Spaces, dashes and plus signs are stripped and a leading 91 country code
// removed before the 10-digit/leading-6-9 validation.
func (e *Extractor) PhoneNumbers(text string) []string {
	p := e.reg.First(patterns.CategoryPhone)
	var out []string
	for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
		// A match that abuts more digits is a fragment of a longer run
		// (bank accounts pick those up), not a phone number.
		if loc[1] < len(text) && text[loc[1]] >= '0' && text[loc[1]] <= '9' {
			continue
		}
		m := text[loc[0]:loc[1]]
		normalized := strings.Map(func(r rune) rune {
			switch r {
			case ' ', '-', '+':
				return -1
			}
			return r
		}, m)
		if strings.HasPrefix(normalized, "91") && len(normalized) > 10 {
			normalized = normalized[2:]
		}
		if len(normalized) == 10 && normalized[0] >= '6' && normalized[0] <= '9' {
			out = appendUnique(out, normalized)
		}
	}
	return out
}

// BankAccounts extracts 9-18 digit runs, excluding any run that has the
// phone-number shape (10 digits starting 6-9) to avoid double-classification.
func (e *Extractor) BankAccounts(text string) []string {
	p := e.reg.First(patterns.CategoryBankAccount)
	var out []string
	for _, m := range p.Regex.FindAllString(text, -1) {
		if len(m) < 9 || len(m) > 18 {
			continue
		}
		if len(m) == 10 && m[0] >= '6' && m[0] <= '9' {
			continue
		}
		out = appendUnique(out, m)
	}
	return out
}

// URLs extracts http(s):// and www.-prefixed links up to the next
// whitespace, quote or angle bracket.
func (e *Extractor) URLs(text string) []string {
	p := e.reg.First(patterns.CategoryURL)
	var out []string
	for _, m := range p.Regex.FindAllString(text, -1) {
		out = appendUnique(out, m)
	}
	return out
}

// Keywords returns every suspicious vocabulary term present in text,
// matched case-insensitively as substrings.
func (e *Extractor) Keywords(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, kw := range patterns.SuspiciousKeywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}
