// Package score ranks parsed autocomplete suggestions against the city name
// the caller asked for.
package score

import (
	"sort"
	"strings"

	"fareprobe/internal/suggest"
)

// Candidate is a parsed suggestion with its similarity score in [0,1].
type Candidate struct {
	Parsed   suggest.Parsed
	Position int // DOM position from the widget, lowest is first-listed
	Score    float64
}

// Scorer holds the tunables. The defaults are starting points meant to be
// adjusted against live suggestion data, not fixed constants.
type Scorer struct {
	// AcceptThreshold is the minimum top score PickBest will accept.
	AcceptThreshold float64
	// TieEpsilon is the score distance within which two candidates are
	// considered tied for ambiguity handling.
	TieEpsilon float64
	// PrefixFloor is the minimum score granted to prefix matches, so
	// progressive typing ("Del" against "Delhi") stays competitive.
	PrefixFloor float64
}

// NewScorer returns a Scorer with the default tuning.
func NewScorer() *Scorer {
	return &Scorer{
		AcceptThreshold: 0.55,
		TieEpsilon:      0.02,
		PrefixFloor:     0.90,
	}
}

// hubCities lists names served by more than one airport, where a name-only
// match is inherently ambiguous and the tie-break rules below apply.
var hubCities = map[string]bool{
	"delhi":    true,
	"mumbai":   true,
	"goa":      true,
	"london":   true,
	"new york": true,
	"chicago":  true,
	"tokyo":    true,
	"paris":    true,
	"moscow":   true,
	"dubai":    true,
}

// IsHubCity reports whether the name belongs to the known multi-airport set.
func IsHubCity(name string) bool {
	return hubCities[normalize(name)]
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// Score computes similarity between the query name and every candidate's
// city name. Position follows each candidate's DOM position so downstream
// tie-breaks can honour the widget's own ranking.
func (s *Scorer) Score(query string, cands []suggest.Parsed, positions []int) []Candidate {
	q := normalize(query)
	out := make([]Candidate, 0, len(cands))
	for i, p := range cands {
		pos := i
		if positions != nil && i < len(positions) {
			pos = positions[i]
		}
		out = append(out, Candidate{
			Parsed:   p,
			Position: pos,
			Score:    s.similarity(q, normalize(p.CityName)),
		})
	}
	return out
}

// similarity is a normalized edit-distance score, boosted to 1.0 on exact
// equality and floor-boosted for prefix relations in either direction.
func (s *Scorer) similarity(query, name string) float64 {
	if query == "" || name == "" {
		return 0
	}
	if query == name {
		return 1.0
	}

	maxLen := len(query)
	if len(name) > maxLen {
		maxLen = len(name)
	}
	sim := 1.0 - float64(levenshtein(query, name))/float64(maxLen)

	if strings.HasPrefix(name, query) || strings.HasPrefix(query, name) {
		if sim < s.PrefixFloor {
			sim = s.PrefixFloor
		}
	}
	return sim
}

// PickBest selects the top candidate. ok is false when nothing clears the
// acceptance threshold, i.e. there is no credible match and the caller
// should retry rather than force a weak selection.
//
// For hub cities, candidates tied within TieEpsilon are re-ranked: an exact
// name equality (city or airport name equals the query) beats a mere
// substring containment; remaining ties go to the first-listed candidate.
// Suggestion order from the widget is treated as the site's own relevance
// ranking, so the result is deterministic for identical input ordering.
func (s *Scorer) PickBest(query string, scored []Candidate) (Candidate, bool) {
	if len(scored) == 0 {
		return Candidate{}, false
	}

	ranked := make([]Candidate, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Position < ranked[j].Position
	})

	best := ranked[0]
	if best.Score < s.AcceptThreshold {
		return Candidate{}, false
	}

	if IsHubCity(query) {
		tied := []Candidate{best}
		for _, c := range ranked[1:] {
			if best.Score-c.Score <= s.TieEpsilon {
				tied = append(tied, c)
			}
		}
		if len(tied) > 1 {
			best = breakTie(query, tied)
		}
	}

	return best, true
}

// breakTie applies the hub-city ambiguity rules over candidates already
// sorted by score then position.
func breakTie(query string, tied []Candidate) Candidate {
	q := normalize(query)

	for _, c := range tied {
		if normalize(c.Parsed.CityName) == q || normalize(c.Parsed.AirportName) == q {
			return c
		}
	}
	// No exact equality among the tied set; first-listed wins.
	best := tied[0]
	for _, c := range tied[1:] {
		if c.Position < best.Position {
			best = c
		}
	}
	return best
}

// levenshtein computes edit distance with a two-row table.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
