// Package suggest parses autocomplete suggestion text into structured
// city/airport records.
package suggest

import (
	"fmt"
	"regexp"
	"strings"
)

// Entry is one on-screen suggestion as read from the widget. Entries are
// produced fresh on every poll and never persisted.
type Entry struct {
	DisplayText string `json:"display_text"`
	DOMPosition int    `json:"dom_position"`
}

// Parsed is a suggestion decomposed into its city and airport parts.
type Parsed struct {
	CityName    string `json:"city_name"`
	AirportCode string `json:"airport_code"` // three uppercase letters
	AirportName string `json:"airport_name,omitempty"`
	Country     string `json:"country,omitempty"`
	SourceText  string `json:"source_text"`

	layout int // which layout matched, for Render
}

// The widget renders suggestions in a handful of layouts. Each layout gets a
// pattern; the first structural match wins. The airport code is always exactly
// three uppercase letters in parentheses.
var (
	// "Mumbai, India - Chhatrapati Shivaji Maharaj International Airport (BOM)"
	cityCountryAirportRe = regexp.MustCompile(`^\s*([^,(]+?)\s*,\s*([^(]+?)\s*[-\x{2013}\x{2014}]\s*([^(]+?)\s*\(([A-Z]{3})\)\s*$`)

	// "Bengaluru(BLR)Kempegowda International Airport" - no spacing around the code.
	cityCodeAirportRe = regexp.MustCompile(`^\s*([^(]+?)\(([A-Z]{3})\)\s*(.*?)\s*$`)

	// "New Delhi (DEL)"
	cityCodeRe = regexp.MustCompile(`^\s*([^(]+?)\s*\(([A-Z]{3})\)\s*$`)
)

const (
	layoutCityCode = iota + 1
	layoutCityCountryAirport
	layoutCityCodeAirport
)

// Extract parses a suggestion's display text. ok is false when no known
// layout matches or no 3-letter code token is present; callers drop the
// entry and move on.
func Extract(displayText string) (Parsed, bool) {
	text := strings.TrimSpace(displayText)
	if text == "" {
		return Parsed{}, false
	}

	if m := cityCountryAirportRe.FindStringSubmatch(text); m != nil {
		return Parsed{
			CityName:    strings.TrimSpace(m[1]),
			AirportCode: m[4],
			AirportName: strings.TrimSpace(m[3]),
			Country:     strings.TrimSpace(m[2]),
			SourceText:  displayText,
			layout:      layoutCityCountryAirport,
		}, true
	}

	if m := cityCodeRe.FindStringSubmatch(text); m != nil {
		return Parsed{
			CityName:    strings.TrimSpace(m[1]),
			AirportCode: m[2],
			SourceText:  displayText,
			layout:      layoutCityCode,
		}, true
	}

	if m := cityCodeAirportRe.FindStringSubmatch(text); m != nil {
		p := Parsed{
			CityName:    strings.TrimSpace(m[1]),
			AirportCode: m[2],
			AirportName: strings.TrimSpace(m[3]),
			SourceText:  displayText,
			layout:      layoutCityCodeAirport,
		}
		if p.AirportName == "" {
			p.layout = layoutCityCode
		}
		return p, true
	}

	return Parsed{}, false
}

// ExtractAll parses every entry, dropping the ones no layout matches.
// Positions are carried through so scoring can honour the widget's own
// ordering.
func ExtractAll(entries []Entry) ([]Parsed, []int) {
	parsed := make([]Parsed, 0, len(entries))
	positions := make([]int, 0, len(entries))
	for _, e := range entries {
		if p, ok := Extract(e.DisplayText); ok {
			parsed = append(parsed, p)
			positions = append(positions, e.DOMPosition)
		}
	}
	return parsed, positions
}

// Render rebuilds the display text for a parsed record in the layout it was
// extracted from. Used to verify extraction round-trips.
func (p Parsed) Render() string {
	switch p.layout {
	case layoutCityCountryAirport:
		return fmt.Sprintf("%s, %s - %s (%s)", p.CityName, p.Country, p.AirportName, p.AirportCode)
	case layoutCityCodeAirport:
		return fmt.Sprintf("%s(%s)%s", p.CityName, p.AirportCode, p.AirportName)
	default:
		return fmt.Sprintf("%s (%s)", p.CityName, p.AirportCode)
	}
}

// codeRe matches a bare 3-letter code in parentheses anywhere in the text.
var codeRe = regexp.MustCompile(`\(([A-Z]{3})\)`)

// Code pulls the first 3-letter airport code out of arbitrary field text.
// Returns "" when none is present. Used to verify a committed selection,
// where the field may render the city in yet another format.
func Code(text string) string {
	if m := codeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
