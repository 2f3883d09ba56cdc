package resolve

import "testing"

func TestCache_PutGet(t *testing.T) {
	c := NewCache()

	r := Result{Query: Query{RawName: "Delhi"}, AirportCode: "DEL"}
	c.Put("delhi", r)

	got, ok := c.Get("delhi")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.AirportCode != "DEL" {
		t.Errorf("AirportCode = %q, want %q", got.AirportCode, "DEL")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCache_RejectsFailures(t *testing.T) {
	c := NewCache()

	c.Put("zzqx", Result{Query: Query{RawName: "Zzqx"}, FailureReason: ReasonNoSuggestions})
	if c.Len() != 0 {
		t.Errorf("Len = %d after failed result, want 0", c.Len())
	}
	if _, ok := c.Get("zzqx"); ok {
		t.Error("failed result should not be retrievable")
	}
}

func TestCache_AppendOnly(t *testing.T) {
	c := NewCache()

	c.Put("goa", Result{AirportCode: "GOI"})
	c.Put("goa", Result{AirportCode: "GOX"})

	got, ok := c.Get("goa")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.AirportCode != "GOI" {
		t.Errorf("AirportCode = %q, want first write %q", got.AirportCode, "GOI")
	}
}

func TestCache_Miss(t *testing.T) {
	c := NewCache()
	if _, ok := c.Get("nope"); ok {
		t.Error("expected miss on empty cache")
	}
}
