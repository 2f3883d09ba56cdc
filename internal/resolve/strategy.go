package resolve

import (
	"sort"
	"strings"
	"sync"
)

// Strategy is one complete alternative way to drive the widget towards a
// selection for a query. Strategies produce the text variants the engine
// types; the surrounding state machine (await, score, select, verify) is
// shared. New site quirks are handled by registering a strategy, not by
// editing engine conditionals.
type Strategy interface {
	// Name identifies the strategy in results and logs.
	Name() string

	// Priority orders strategies; lower runs first.
	Priority() int

	// Applies reports whether this strategy has anything to offer for the
	// query. Non-applicable strategies are skipped without spending attempts.
	Applies(q Query) bool

	// Variants returns the text(s) to type, each attempted as its own
	// typing phase.
	Variants(q Query) []string
}

var (
	strategyMu sync.Mutex
	strategies []Strategy
)

// RegisterStrategy adds a strategy to the shared ordered set.
func RegisterStrategy(s Strategy) {
	strategyMu.Lock()
	defer strategyMu.Unlock()
	strategies = append(strategies, s)
	sort.SliceStable(strategies, func(i, j int) bool {
		return strategies[i].Priority() < strategies[j].Priority()
	})
}

// Strategies returns the registered strategies in priority order.
func Strategies() []Strategy {
	strategyMu.Lock()
	defer strategyMu.Unlock()
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}

func init() {
	RegisterStrategy(fullName{})
	RegisterStrategy(shortPrefix{})
	RegisterStrategy(knownVariants{})
}

// fullName types the query name as given.
type fullName struct{}

func (fullName) Name() string  { return "full-name" }
func (fullName) Priority() int { return 10 }

func (fullName) Applies(q Query) bool {
	return strings.TrimSpace(q.RawName) != ""
}

func (fullName) Variants(q Query) []string {
	return []string{strings.TrimSpace(q.RawName)}
}

// shortPrefix types a shortened prefix, for layouts where the full name
// yields zero suggestions (over-filtering widgets, trailing-space quirks).
type shortPrefix struct{}

func (shortPrefix) Name() string  { return "short-prefix" }
func (shortPrefix) Priority() int { return 20 }

func (shortPrefix) Applies(q Query) bool {
	return len([]rune(strings.TrimSpace(q.RawName))) > 3
}

func (shortPrefix) Variants(q Query) []string {
	runes := []rune(strings.TrimSpace(q.RawName))
	n := len(runes)/2 + 1
	if n < 3 {
		n = 3
	}
	if n > len(runes) {
		n = len(runes)
	}
	return []string{string(runes[:n])}
}

// knownVariants covers names the site renders under a different label.
// Delhi is listed as "New Delhi" and short names like Goa sometimes only
// respond to the exact cased form.
type knownVariants struct{}

var cityVariants = map[string][]string{
	"delhi":     {"New Delhi"},
	"bombay":    {"Mumbai"},
	"madras":    {"Chennai"},
	"calcutta":  {"Kolkata"},
	"bangalore": {"Bengaluru"},
	"goa":       {"Goa"},
}

func (knownVariants) Name() string  { return "known-variants" }
func (knownVariants) Priority() int { return 30 }

func (knownVariants) Applies(q Query) bool {
	_, ok := cityVariants[q.Normalized()]
	return ok
}

func (knownVariants) Variants(q Query) []string {
	return cityVariants[q.Normalized()]
}
