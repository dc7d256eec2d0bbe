// Package patterns provides a centralized pattern registry for scam
// detection and intelligence extraction. All regex patterns are compiled once
// at package init and shared across the detector and extractor.
//
// Design principles:
// - COMPILE ONCE: All patterns compiled at init, not per-request
// - DRY: Single source of truth for scam vocabularies and extraction regexes
// - CATEGORIZED: Patterns organized by category for targeted scans
package patterns

import (
	"regexp"
	"sync"
)

// Category represents a pattern category
type Category string

const (
	// Detection-side categories (scam classifier)
	CategoryUrgency Category = "urgency"

	// Extraction-side categories (intelligence extractor)
	CategoryUPI         Category = "upi"
	CategoryPhone       Category = "phone"
	CategoryBankAccount Category = "bank_account"
	CategoryURL         Category = "url"
)

// Pattern holds a compiled regex with metadata
type Pattern struct {
	Name        string         // Human-readable name for logging
	Regex       *regexp.Regexp // Compiled regex (never nil after init)
	Category    Category       // Pattern category
	Severity    int            // Heuristic score contribution
	Description string         // What this pattern detects
}

// Registry holds all compiled patterns, organized by category
type Registry struct {
	mu         sync.RWMutex
	byCategory map[Category][]*Pattern
	all        []*Pattern
}

var (
	globalRegistry *Registry
	initOnce       sync.Once
)

// Get returns the global pattern registry (singleton).
// Thread-safe and guaranteed to be initialized.
func Get() *Registry {
	initOnce.Do(func() {
		globalRegistry = newRegistry()
	})
	return globalRegistry
}

func newRegistry() *Registry {
	r := &Registry{
		byCategory: make(map[Category][]*Pattern),
		all:        make([]*Pattern, 0, 16),
	}

	r.registerUrgencyPatterns()
	r.registerExtractionPatterns()

	return r
}

func (r *Registry) register(name string, pattern string, category Category, severity int, description string) {
	compiled := regexp.MustCompile(pattern)
	p := &Pattern{
		Name:        name,
		Regex:       compiled,
		Category:    category,
		Severity:    severity,
		Description: description,
	}

	r.byCategory[category] = append(r.byCategory[category], p)
	r.all = append(r.all, p)
}

// GetByCategory returns all patterns for a category.
// Returns an empty slice if the category is unknown (never nil).
func (r *Registry) GetByCategory(cat Category) []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if patterns, ok := r.byCategory[cat]; ok {
		return patterns
	}
	return []*Pattern{}
}

// MatchAll returns every pattern in the given categories that matches text.
func (r *Registry) MatchAll(text string, cats ...Category) []*Pattern {
	var matches []*Pattern
	for _, cat := range cats {
		for _, p := range r.GetByCategory(cat) {
			if p.Regex.MatchString(text) {
				matches = append(matches, p)
			}
		}
	}
	return matches
}

// First returns the single pattern of a category, for categories that hold
// exactly one extraction regex.
func (r *Registry) First(cat Category) *Pattern {
	ps := r.GetByCategory(cat)
	if len(ps) == 0 {
		return nil
	}
	return ps[0]
}

// TotalPatterns returns the total count of registered patterns
func (r *Registry) TotalPatterns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// CategoryCount returns the number of patterns in a category
func (r *Registry) CategoryCount(cat Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCategory[cat])
}
