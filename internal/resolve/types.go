// Package resolve turns a human city name into a verified airport code by
// driving a typeahead widget through an unreliable, timing-sensitive UI.
package resolve

import (
	"context"
	"strings"

	"fareprobe/internal/suggest"
)

// Role says which end of the route a query is for.
type Role string

const (
	Origin      Role = "origin"
	Destination Role = "destination"
)

// Query is the immutable input to a resolution.
type Query struct {
	RawName string `json:"raw_name"`
	Role    Role   `json:"role"`
}

// Normalized returns the cache key form of the query name.
func (q Query) Normalized() string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(q.RawName))), " ")
}

// Reason classifies why a resolution attempt or the whole resolution failed.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNoSuggestions  Reason = "no-suggestions"
	ReasonNoMatch        Reason = "no-match"
	ReasonVerifyMismatch Reason = "verify-mismatch"
)

// Result is the terminal artifact of a resolution. On success AirportCode is
// a non-empty 3-letter code; on failure it is empty and FailureReason names
// the last failure class seen before the attempt budget ran out.
type Result struct {
	Query         Query  `json:"query"`
	AirportCode   string `json:"airport_code,omitempty"`
	AirportName   string `json:"airport_name,omitempty"`
	SelectedText  string `json:"selected_text,omitempty"`
	Strategy      string `json:"strategy,omitempty"`
	Attempts      int    `json:"attempts"`
	FromCache     bool   `json:"from_cache,omitempty"`
	FailureReason Reason `json:"failure_reason,omitempty"`
}

// OK reports whether the resolution succeeded.
func (r Result) OK() bool {
	return r.AirportCode != ""
}

// Driver is the capability boundary to the UI. These four primitives are all
// the engine needs; everything else (navigation, field focus, scraping) lives
// with the driver's owner. Field clearing is expressed through SendKey with
// backspace, one per previously typed rune, so no extra primitive is needed.
type Driver interface {
	// SendKey dispatches a single keystroke to the active input field.
	SendKey(ctx context.Context, r rune) error

	// Suggestions returns the currently rendered suggestion list in display
	// order. An empty slice is normal while the widget is still populating.
	Suggestions(ctx context.Context) ([]suggest.Entry, error)

	// SelectSuggestion commits the suggestion at the given DOM position.
	// This is the only primitive that mutates external UI state.
	SelectSuggestion(ctx context.Context, pos int) error

	// FieldValue reads the input field's current displayed value.
	FieldValue(ctx context.Context) (string, error)
}
