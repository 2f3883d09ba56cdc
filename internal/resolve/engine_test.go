package resolve

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"fareprobe/internal/suggest"
)

// fakeDriver simulates the typeahead widget: a field of runes and a
// prefix-driven suggestion list.
type fakeDriver struct {
	field      []rune
	keys       int
	selections int

	// suggestFor maps the current field text to rendered suggestions.
	suggestFor func(typed string) []suggest.Entry
	// selectedText is what the site rewrites the field to on selection.
	selectedText func(pos int) string
}

func (d *fakeDriver) SendKey(ctx context.Context, r rune) error {
	d.keys++
	if r == '\b' {
		if len(d.field) > 0 {
			d.field = d.field[:len(d.field)-1]
		}
		return nil
	}
	d.field = append(d.field, r)
	return nil
}

func (d *fakeDriver) Suggestions(ctx context.Context) ([]suggest.Entry, error) {
	if d.suggestFor == nil {
		return nil, nil
	}
	return d.suggestFor(string(d.field)), nil
}

func (d *fakeDriver) SelectSuggestion(ctx context.Context, pos int) error {
	d.selections++
	if d.selectedText != nil {
		d.field = []rune(d.selectedText(pos))
	}
	return nil
}

func (d *fakeDriver) FieldValue(ctx context.Context) (string, error) {
	return string(d.field), nil
}

func testConfig() Config {
	return Config{
		KeystrokeDelay:      0,
		PollInitial:         time.Millisecond,
		PollMax:             2 * time.Millisecond,
		MaxWait:             10 * time.Millisecond,
		MinPrefixLen:        3,
		PerStrategyAttempts: 2,
		MaxAttempts:         6,
	}
}

func quiet(e *Engine) *Engine {
	e.SetLogger(log.New(io.Discard, "", 0))
	return e
}

// prefixSuggestions serves entries once the typed text reaches a prefix of
// the listed city, the way the live widget narrows as you type.
func prefixSuggestions(rows ...string) func(string) []suggest.Entry {
	return func(typed string) []suggest.Entry {
		t := strings.ToLower(strings.TrimSpace(typed))
		if len(t) < 3 {
			return nil
		}
		var out []suggest.Entry
		for i, row := range rows {
			if strings.HasPrefix(strings.ToLower(row), t) {
				out = append(out, suggest.Entry{DisplayText: row, DOMPosition: i})
			}
		}
		return out
	}
}

func TestResolve_DelhiDuplicatedRows(t *testing.T) {
	// The widget lists Delhi twice, as the live site does. The engine must
	// deterministically take the first-listed row and verify DEL.
	d := &fakeDriver{
		suggestFor: prefixSuggestions(
			"Delhi, India - Indira Gandhi International Airport (DEL)",
			"Delhi, India - Indira Gandhi International Airport (DEL)",
		),
		selectedText: func(pos int) string { return "Delhi (DEL)" },
	}

	e := quiet(NewEngine(d, nil, NewCache(), testConfig()))
	res, err := e.Resolve(context.Background(), Query{RawName: "Delhi", Role: Origin})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !res.OK() {
		t.Fatalf("expected success, got failure reason %q", res.FailureReason)
	}
	if res.AirportCode != "DEL" {
		t.Errorf("AirportCode = %q, want %q", res.AirportCode, "DEL")
	}
	if res.AirportName != "Indira Gandhi International Airport" {
		t.Errorf("AirportName = %q", res.AirportName)
	}
	if res.Strategy != "full-name" {
		t.Errorf("Strategy = %q, want %q", res.Strategy, "full-name")
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if res.FromCache {
		t.Error("FromCache = true on a fresh resolution")
	}
	if d.selections != 1 {
		t.Errorf("selections = %d, want 1", d.selections)
	}
}

func TestResolve_NonsenseNameFailsWithoutError(t *testing.T) {
	// No prefix of "Zzqx" ever yields suggestions. The engine must exhaust
	// its budget and report the failure as data, not as an error.
	d := &fakeDriver{}

	e := quiet(NewEngine(d, nil, NewCache(), testConfig()))
	res, err := e.Resolve(context.Background(), Query{RawName: "Zzqx", Role: Destination})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if res.OK() {
		t.Fatal("expected failure for nonsense name")
	}
	if res.FailureReason != ReasonNoSuggestions {
		t.Errorf("FailureReason = %q, want %q", res.FailureReason, ReasonNoSuggestions)
	}
	// full-name and short-prefix each get PerStrategyAttempts passes.
	if res.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", res.Attempts)
	}
	if d.selections != 0 {
		t.Errorf("selections = %d, want 0", d.selections)
	}
}

func TestResolve_BoundedByMaxAttempts(t *testing.T) {
	d := &fakeDriver{}

	cfg := testConfig()
	cfg.MaxAttempts = 2

	e := quiet(NewEngine(d, nil, nil, cfg))
	res, err := e.Resolve(context.Background(), Query{RawName: "Nowhere", Role: Origin})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Attempts != cfg.MaxAttempts {
		t.Errorf("Attempts = %d, want %d", res.Attempts, cfg.MaxAttempts)
	}
}

func TestResolve_VerifyMismatchRetries(t *testing.T) {
	// The site commits a different city than the one picked. Every attempt
	// must fail verification and the engine must keep retrying, then report
	// the mismatch.
	d := &fakeDriver{
		suggestFor: prefixSuggestions(
			"Delhi, India - Indira Gandhi International Airport (DEL)",
			"New Delhi (DEL)",
		),
		selectedText: func(pos int) string { return "Mumbai (BOM)" },
	}

	e := quiet(NewEngine(d, nil, NewCache(), testConfig()))
	res, err := e.Resolve(context.Background(), Query{RawName: "Delhi", Role: Origin})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.FailureReason != ReasonVerifyMismatch {
		t.Errorf("FailureReason = %q, want %q", res.FailureReason, ReasonVerifyMismatch)
	}
	if res.Attempts == 0 {
		t.Error("expected at least one attempt")
	}
	if res.Attempts > testConfig().MaxAttempts {
		t.Errorf("Attempts = %d exceeds budget %d", res.Attempts, testConfig().MaxAttempts)
	}
}

func TestResolve_NoMatchWhenNothingCredible(t *testing.T) {
	// Suggestions render fine but none resembles the query, so scoring
	// rejects them all.
	d := &fakeDriver{
		suggestFor: func(typed string) []suggest.Entry {
			if len(typed) < 3 {
				return nil
			}
			return []suggest.Entry{
				{DisplayText: "Reykjavik (KEF)", DOMPosition: 0},
			}
		},
	}

	e := quiet(NewEngine(d, nil, nil, testConfig()))
	res, err := e.Resolve(context.Background(), Query{RawName: "Lucknow", Role: Origin})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.FailureReason != ReasonNoMatch {
		t.Errorf("FailureReason = %q, want %q", res.FailureReason, ReasonNoMatch)
	}
	if d.selections != 0 {
		t.Errorf("selections = %d, want 0", d.selections)
	}
}

func TestResolve_CacheHitSkipsUI(t *testing.T) {
	d := &fakeDriver{
		suggestFor: prefixSuggestions(
			"Delhi, India - Indira Gandhi International Airport (DEL)",
		),
		selectedText: func(pos int) string { return "Delhi (DEL)" },
	}

	cache := NewCache()
	e := quiet(NewEngine(d, nil, cache, testConfig()))

	first, err := e.Resolve(context.Background(), Query{RawName: "Delhi", Role: Origin})
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if !first.OK() {
		t.Fatalf("first resolution failed: %s", first.FailureReason)
	}

	keysAfterFirst := d.keys
	selectionsAfterFirst := d.selections

	// Same city, different role and casing: still one cache entry, and no
	// further UI interaction.
	second, err := e.Resolve(context.Background(), Query{RawName: "  DELHI ", Role: Destination})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if !second.FromCache {
		t.Error("second resolution should come from cache")
	}
	if second.AirportCode != first.AirportCode {
		t.Errorf("cached AirportCode = %q, want %q", second.AirportCode, first.AirportCode)
	}
	if second.Query.Role != Destination {
		t.Errorf("cached result Role = %q, want %q", second.Query.Role, Destination)
	}
	if d.keys != keysAfterFirst || d.selections != selectionsAfterFirst {
		t.Error("cache hit touched the UI")
	}
	if cache.Len() != 1 {
		t.Errorf("cache size = %d, want 1", cache.Len())
	}
}

func TestResolve_FailuresNotCached(t *testing.T) {
	d := &fakeDriver{}
	cache := NewCache()

	e := quiet(NewEngine(d, nil, cache, testConfig()))
	res, err := e.Resolve(context.Background(), Query{RawName: "Zzqx", Role: Origin})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.OK() {
		t.Fatal("expected failure")
	}
	if cache.Len() != 0 {
		t.Errorf("cache size = %d after failure, want 0", cache.Len())
	}
}

func TestResolve_InputErrors(t *testing.T) {
	e := quiet(NewEngine(&fakeDriver{}, nil, nil, testConfig()))
	if _, err := e.Resolve(context.Background(), Query{RawName: "   "}); err == nil {
		t.Error("expected error for empty city name")
	}

	e = quiet(NewEngine(nil, nil, nil, testConfig()))
	if _, err := e.Resolve(context.Background(), Query{RawName: "Delhi"}); err == nil {
		t.Error("expected error for nil driver")
	}
}

func TestResolve_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := quiet(NewEngine(&fakeDriver{}, nil, nil, testConfig()))
	if _, err := e.Resolve(ctx, Query{RawName: "Delhi"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestResolve_KnownVariantRecovers(t *testing.T) {
	// The widget only knows "New Delhi"; typing "Delhi" or "Del" yields
	// nothing. The known-variants strategy must land it.
	d := &fakeDriver{
		suggestFor: prefixSuggestions(
			"New Delhi (DEL)",
		),
		selectedText: func(pos int) string { return "New Delhi (DEL)" },
	}

	e := quiet(NewEngine(d, nil, NewCache(), testConfig()))
	res, err := e.Resolve(context.Background(), Query{RawName: "Delhi", Role: Origin})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !res.OK() {
		t.Fatalf("expected success, got %s after %d attempts", res.FailureReason, res.Attempts)
	}
	if res.AirportCode != "DEL" {
		t.Errorf("AirportCode = %q, want %q", res.AirportCode, "DEL")
	}
	if res.Strategy != "known-variants" {
		t.Errorf("Strategy = %q, want %q", res.Strategy, "known-variants")
	}
}

func TestClearFieldBackspaces(t *testing.T) {
	// After a failed attempt the next attempt must start from an empty
	// field, using only backspace keystrokes.
	d := &fakeDriver{
		suggestFor: prefixSuggestions(
			"Delhi, India - Indira Gandhi International Airport (DEL)",
			"New Delhi (DEL)",
		),
		selectedText: func(pos int) string { return "Mumbai (BOM)" },
	}

	e := quiet(NewEngine(d, nil, nil, testConfig()))
	res, err := e.Resolve(context.Background(), Query{RawName: "Delhi", Role: Origin})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.OK() {
		t.Fatal("expected verify mismatch")
	}

	// One trailing selection's text may remain; everything typed before the
	// final attempt must have been cleared via the tracked rune count.
	if got := string(d.field); got != "Mumbai (BOM)" {
		t.Errorf("field = %q, want the last committed text only", got)
	}
}
