// Package filter validates scraped flight offers against stop-count and
// price criteria.
package filter

import (
	"fmt"
	"strings"
)

// Offer is one scraped flight listing. Consumed, not owned: the scrape
// itself lives with the page driver.
type Offer struct {
	Airline      string  `json:"airline,omitempty"`
	FlightNumber string  `json:"flight_number,omitempty"`
	Stops        int     `json:"stops"`
	Price        float64 `json:"price"`
	Origin       string  `json:"origin,omitempty"`      // 3-letter code
	Destination  string  `json:"destination,omitempty"` // 3-letter code
}

// StopCategory is the filter bucket a stop count falls into.
type StopCategory int

const (
	NonStop StopCategory = iota
	OneStop
	TwoPlusStops
)

func (c StopCategory) String() string {
	switch c {
	case NonStop:
		return "Non-stop"
	case OneStop:
		return "1 Stop"
	default:
		return "2+ Stop"
	}
}

// Matches reports whether a stop count belongs to the category.
// Non-stop means 0, 1 Stop means exactly 1, 2+ Stop means two or more.
func (c StopCategory) Matches(stops int) bool {
	switch c {
	case NonStop:
		return stops == 0
	case OneStop:
		return stops == 1
	default:
		return stops >= 2
	}
}

// ParseStopCategory accepts the label spellings seen in test-case data.
func ParseStopCategory(s string) (StopCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "non-stop", "nonstop", "non stop", "0 stop":
		return NonStop, nil
	case "1 stop", "1-stop", "one stop":
		return OneStop, nil
	case "2+ stop", "2 stop", "2 stops", "two stop", "2+ stops":
		return TwoPlusStops, nil
	}
	return NonStop, fmt.Errorf("unknown stops filter %q", s)
}

// Criteria is what an offer must satisfy. Price bounds are inclusive on
// both ends. Origin/Destination codes, when set, pin the offer's route to
// the resolved airports; they are never re-derived here.
type Criteria struct {
	Stops           StopCategory `json:"stops"`
	PriceMin        float64      `json:"price_min"`
	PriceMax        float64      `json:"price_max"`
	OriginCode      string       `json:"origin_code,omitempty"`
	DestinationCode string       `json:"destination_code,omitempty"`
}

// Outcome buckets offers by whether they satisfied the criteria. A filter
// mismatch is ordinary data, not an error.
type Outcome struct {
	Pass []Offer `json:"pass"`
	Fail []Offer `json:"fail"`
}

// Validate checks every offer against the criteria. An offer must pass the
// stop filter, the price window, and (when criteria codes are set) the
// route check to land in Pass; everything else goes to Fail.
func Validate(offers []Offer, c Criteria) Outcome {
	var out Outcome
	for _, o := range offers {
		if passes(o, c) {
			out.Pass = append(out.Pass, o)
		} else {
			out.Fail = append(out.Fail, o)
		}
	}
	return out
}

func passes(o Offer, c Criteria) bool {
	if !c.Stops.Matches(o.Stops) {
		return false
	}
	if o.Price < c.PriceMin || o.Price > c.PriceMax {
		return false
	}
	if c.OriginCode != "" && o.Origin != "" && !strings.EqualFold(o.Origin, c.OriginCode) {
		return false
	}
	if c.DestinationCode != "" && o.Destination != "" && !strings.EqualFold(o.Destination, c.DestinationCode) {
		return false
	}
	return true
}
