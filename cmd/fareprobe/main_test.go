package main

import (
	"strings"
	"testing"

	"fareprobe/internal/filter"
)

func TestEncodeJSON(t *testing.T) {
	outcome := filter.Outcome{
		Pass: []filter.Offer{{Airline: "Air India", FlightNumber: "AI805", Stops: 1, Price: 6500}},
	}

	var compact strings.Builder
	if err := encodeJSON(&compact, outcome, false); err != nil {
		t.Fatalf("encodeJSON(compact) error: %v", err)
	}
	if strings.Count(strings.TrimSpace(compact.String()), "\n") != 0 {
		t.Errorf("compact output spans multiple lines: %q", compact.String())
	}

	var pretty strings.Builder
	if err := encodeJSON(&pretty, outcome, true); err != nil {
		t.Fatalf("encodeJSON(pretty) error: %v", err)
	}
	if !strings.Contains(pretty.String(), "\n  ") {
		t.Errorf("pretty output not indented: %q", pretty.String())
	}
	if !strings.Contains(pretty.String(), `"AI805"`) {
		t.Errorf("output missing flight number: %q", pretty.String())
	}
}
