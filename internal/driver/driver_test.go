package driver

import (
	"strings"
	"testing"
)

func TestDefaultSelectors(t *testing.T) {
	s := DefaultSelectors()

	if s.URL == "" {
		t.Error("URL is empty")
	}
	if s.FromInput == "" || s.ToInput == "" {
		t.Error("input selectors are empty")
	}
	if s.FromList == "" || s.ToList == "" {
		t.Error("suggestion list selectors are empty")
	}
	if s.SuggestionItems == "" {
		t.Error("suggestion item selector is empty")
	}
}

func TestJSBuilders_QuoteSelectors(t *testing.T) {
	// Selectors land inside generated JS as quoted strings; a selector with
	// quotes must not break out of the literal.
	sel := `[value="Search"]`

	js := clickJS(sel)
	if !strings.Contains(js, `"[value=\"Search\"]"`) {
		t.Errorf("clickJS did not escape the selector: %s", js)
	}

	js = countVisibleJS(sel)
	if !strings.Contains(js, `\"Search\"`) {
		t.Errorf("countVisibleJS did not escape the selector: %s", js)
	}
}

func TestSetDateJS(t *testing.T) {
	js := setDateJS("#ddate", "15/09/2026")
	if !strings.Contains(js, `"#ddate"`) {
		t.Errorf("setDateJS missing selector: %s", js)
	}
	if !strings.Contains(js, "15/09/2026") {
		t.Errorf("setDateJS missing date: %s", js)
	}
}

func TestApplyPriceJS_EmbedsBounds(t *testing.T) {
	js := applyPriceJS("#slider-range", "#amount", ".fltResult", 6000, 7000)
	if !strings.Contains(js, "6000") || !strings.Contains(js, "7000") {
		t.Errorf("applyPriceJS missing bounds: %s", js)
	}
}

func TestSetCheckboxJS(t *testing.T) {
	on := setCheckboxJS("#chkOneStop", true)
	off := setCheckboxJS("#chkOneStop", false)
	if on == off {
		t.Error("checkbox JS identical for both states")
	}
	if !strings.Contains(on, "#chkOneStop") {
		t.Errorf("setCheckboxJS missing selector: %s", on)
	}
}

func TestSuggestionJS_EmbedsPosition(t *testing.T) {
	js := selectSuggestionJS("#fromautoFill", "li", 2)
	if !strings.Contains(js, "2") {
		t.Errorf("selectSuggestionJS missing position: %s", js)
	}
	js = suggestionCenterJS("#fromautoFill", "li", 1)
	if !strings.Contains(js, "#fromautoFill") {
		t.Errorf("suggestionCenterJS missing selector: %s", js)
	}
}
