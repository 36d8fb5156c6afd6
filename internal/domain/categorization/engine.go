// Package categorization assigns categories to imported transactions by
// matching user-defined text patterns against merchant names and
// descriptions.
package categorization

import (
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/google/uuid"

	"github.com/libroazul/libroazul/internal/domain/statement/normalizer"
)

// Match is the winning rule for one transaction
type Match struct {
	RuleID     uuid.UUID
	CategoryID uuid.UUID
	Pattern    string
	Priority   int

	// order is the rule's position in the Build input, which arrives
	// sorted by priority then recency; it breaks priority ties.
	order int
}

// Engine matches all of an owner's rule patterns against a transaction in a
// single pass using the Aho-Corasick algorithm, so matching cost is
// independent of the rule count.
type Engine struct {
	matcher  *ahocorasick.Matcher
	patterns []string
	metadata [][]Match // per pattern; duplicate patterns share an index
	mu       sync.RWMutex
}

// NewEngine builds an engine over the given rules. Rules arrive pre-filtered
// to active only; inactive ones are dropped defensively anyway.
func NewEngine(rules []CategoryRule) *Engine {
	e := &Engine{}
	e.Build(rules)
	return e
}

// Build rebuilds the matcher; call again when the owner's rules change
func (e *Engine) Build(rules []CategoryRule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	patternToIndex := make(map[string]int, len(rules))
	patterns := make([]string, 0, len(rules))
	metadata := make([][]Match, 0, len(rules))

	for order, rule := range rules {
		if !rule.IsActive {
			continue
		}
		folded := normalizer.FoldForMatch(rule.MatchPattern)
		if folded == "" {
			continue
		}

		m := Match{
			RuleID:     rule.ID,
			CategoryID: rule.CategoryID,
			Pattern:    rule.MatchPattern,
			Priority:   rule.Priority,
			order:      order,
		}

		if idx, exists := patternToIndex[folded]; exists {
			metadata[idx] = append(metadata[idx], m)
			continue
		}
		patternToIndex[folded] = len(patterns)
		patterns = append(patterns, folded)
		metadata = append(metadata, []Match{m})
	}

	e.patterns = patterns
	e.metadata = metadata
	e.matcher = nil

	if len(patterns) > 0 {
		bytePatterns := make([][]byte, len(patterns))
		for i, p := range patterns {
			bytePatterns[i] = []byte(p)
		}
		e.matcher = ahocorasick.NewMatcher(bytePatterns)
	}
}

// Match returns the best rule for a transaction, or nil. The merchant name
// is the preferred match target; the description is the fallback. Containment
// is case- and diacritic-insensitive. Ties on priority go to the rule that
// arrived first in the Build input.
func (e *Engine) Match(merchantName, description string) *Match {
	if m := e.matchText(merchantName); m != nil {
		return m
	}
	return e.matchText(description)
}

func (e *Engine) matchText(text string) *Match {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matcher == nil || text == "" {
		return nil
	}

	hits := e.matcher.Match([]byte(normalizer.FoldForMatch(text)))
	if len(hits) == 0 {
		return nil
	}

	var best *Match
	for _, idx := range hits {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		for i := range e.metadata[idx] {
			m := &e.metadata[idx][i]
			if best == nil || m.Priority > best.Priority || (m.Priority == best.Priority && m.order < best.order) {
				clone := *m
				best = &clone
			}
		}
	}
	return best
}

// PatternCount reports the number of distinct patterns loaded
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

// IsEmpty reports whether the engine has no patterns loaded
func (e *Engine) IsEmpty() bool {
	return e.PatternCount() == 0
}
