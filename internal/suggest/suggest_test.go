package suggest

import "testing"

func TestExtract_CityCountryAirport(t *testing.T) {
	text := "Mumbai, India - Chhatrapati Shivaji Maharaj International Airport (BOM)"

	p, ok := Extract(text)
	if !ok {
		t.Fatal("expected parse, got none")
	}

	if p.CityName != "Mumbai" {
		t.Errorf("CityName = %q, want %q", p.CityName, "Mumbai")
	}
	if p.AirportCode != "BOM" {
		t.Errorf("AirportCode = %q, want %q", p.AirportCode, "BOM")
	}
	if p.AirportName != "Chhatrapati Shivaji Maharaj International Airport" {
		t.Errorf("AirportName = %q", p.AirportName)
	}
	if p.Country != "India" {
		t.Errorf("Country = %q, want %q", p.Country, "India")
	}
	if p.SourceText != text {
		t.Errorf("SourceText = %q, want original text", p.SourceText)
	}
}

func TestExtract_CityCode(t *testing.T) {
	p, ok := Extract("New Delhi (DEL)")
	if !ok {
		t.Fatal("expected parse, got none")
	}

	if p.CityName != "New Delhi" {
		t.Errorf("CityName = %q, want %q", p.CityName, "New Delhi")
	}
	if p.AirportCode != "DEL" {
		t.Errorf("AirportCode = %q, want %q", p.AirportCode, "DEL")
	}
	if p.AirportName != "" {
		t.Errorf("AirportName = %q, want empty", p.AirportName)
	}
}

func TestExtract_CityCodeAirport(t *testing.T) {
	p, ok := Extract("Bengaluru(BLR)Kempegowda International Airport")
	if !ok {
		t.Fatal("expected parse, got none")
	}

	if p.CityName != "Bengaluru" {
		t.Errorf("CityName = %q, want %q", p.CityName, "Bengaluru")
	}
	if p.AirportCode != "BLR" {
		t.Errorf("AirportCode = %q, want %q", p.AirportCode, "BLR")
	}
	if p.AirportName != "Kempegowda International Airport" {
		t.Errorf("AirportName = %q", p.AirportName)
	}
}

func TestExtract_DashVariants(t *testing.T) {
	tests := []struct {
		text string
		code string
	}{
		{"Goa, India - Dabolim Airport (GOI)", "GOI"},
		{"Goa, India – Dabolim Airport (GOI)", "GOI"},
		{"Goa, India — Dabolim Airport (GOI)", "GOI"},
	}

	for _, tt := range tests {
		p, ok := Extract(tt.text)
		if !ok {
			t.Errorf("Extract(%q): no parse", tt.text)
			continue
		}
		if p.AirportCode != tt.code {
			t.Errorf("Extract(%q): AirportCode = %q, want %q", tt.text, p.AirportCode, tt.code)
		}
		if p.CityName != "Goa" {
			t.Errorf("Extract(%q): CityName = %q, want %q", tt.text, p.CityName, "Goa")
		}
	}
}

func TestExtract_Rejects(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"Popular cities",
		"Delhi (del)",
		"Delhi (DELH)",
		"Delhi (DE)",
	}

	for _, text := range tests {
		if _, ok := Extract(text); ok {
			t.Errorf("Extract(%q): expected no parse", text)
		}
	}
}

func TestExtract_RoundTrip(t *testing.T) {
	tests := []string{
		"Mumbai, India - Chhatrapati Shivaji Maharaj International Airport (BOM)",
		"New Delhi (DEL)",
		"Bengaluru(BLR)Kempegowda International Airport",
	}

	for _, text := range tests {
		p, ok := Extract(text)
		if !ok {
			t.Fatalf("Extract(%q): no parse", text)
		}
		if got := p.Render(); got != text {
			t.Errorf("Render() = %q, want %q", got, text)
		}
	}
}

func TestExtractAll(t *testing.T) {
	entries := []Entry{
		{DisplayText: "New Delhi (DEL)", DOMPosition: 0},
		{DisplayText: "Popular cities", DOMPosition: 1},
		{DisplayText: "Delhi, India - Indira Gandhi International Airport (DEL)", DOMPosition: 2},
	}

	parsed, positions := ExtractAll(entries)
	if len(parsed) != 2 {
		t.Fatalf("got %d parsed entries, want 2", len(parsed))
	}
	if parsed[0].CityName != "New Delhi" {
		t.Errorf("parsed[0].CityName = %q, want %q", parsed[0].CityName, "New Delhi")
	}
	if parsed[1].AirportName != "Indira Gandhi International Airport" {
		t.Errorf("parsed[1].AirportName = %q", parsed[1].AirportName)
	}
	if len(positions) != 2 || positions[0] != 0 || positions[1] != 2 {
		t.Errorf("positions = %v, want [0 2]", positions)
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"New Delhi (DEL)", "DEL"},
		{"Mumbai, India - Chhatrapati Shivaji Maharaj International Airport (BOM)", "BOM"},
		{"DEL", ""},
		{"", ""},
		{"Delhi (del)", ""},
		{"Goa (GOI) and more (BOM)", "GOI"},
	}

	for _, tt := range tests {
		if got := Code(tt.text); got != tt.want {
			t.Errorf("Code(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
