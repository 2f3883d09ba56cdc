package driver

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"

	"fareprobe/internal/suggest"
)

// fieldDriver binds the four typeahead primitives to one input field and
// its suggestion container.
type fieldDriver struct {
	page    *Page
	input   string
	list    string
	items   string
	focused bool
}

// suggestionRow mirrors the object shape assembled by suggestionsJS.
type suggestionRow struct {
	Text string `json:"text"`
	Pos  int    `json:"pos"`
}

// SendKey dispatches one keystroke to the field, focusing it first if this
// is the first key. Keystrokes go through the CDP input domain so the
// widget's key handlers fire exactly as they would for a human; timing
// jitter keeps the site's bot heuristics quiet.
func (d *fieldDriver) SendKey(ctx context.Context, r rune) error {
	runCtx, cancel := d.page.bound(ctx, 10*time.Second)
	defer cancel()

	if !d.focused {
		if err := chromedp.Run(runCtx, chromedp.Click(d.input, chromedp.ByQuery)); err != nil {
			// Some skins render the field behind a facade element.
			if jsErr := chromedp.Run(runCtx, chromedp.Evaluate(clickJS(d.input), nil)); jsErr != nil {
				return fmt.Errorf("focus %s: %w", d.input, err)
			}
		}
		d.focused = true
	}

	// KeyEvent dispatches full keydown/keypress/keyup sequences, which the
	// widget's suggestion engine requires; InsertText would skip them.
	if err := chromedp.Run(runCtx, chromedp.KeyEvent(string(r))); err != nil {
		return fmt.Errorf("send key: %w", err)
	}

	jitter := time.Duration(rand.Intn(40)) * time.Millisecond
	return sleepCtx(runCtx, jitter)
}

// Suggestions reads the currently visible entries from the widget's
// container. Hidden or empty items are skipped; positions index into the
// container's full child list so a later SelectSuggestion lands on the
// same node.
func (d *fieldDriver) Suggestions(ctx context.Context) ([]suggest.Entry, error) {
	runCtx, cancel := d.page.bound(ctx, 10*time.Second)
	defer cancel()

	var rows []suggestionRow
	if err := chromedp.Run(runCtx, chromedp.Evaluate(suggestionsJS(d.list, d.items), &rows)); err != nil {
		return nil, fmt.Errorf("read suggestions: %w", err)
	}

	entries := make([]suggest.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, suggest.Entry{DisplayText: r.Text, DOMPosition: r.Pos})
	}
	return entries, nil
}

// SelectSuggestion clicks the entry at the given position: a dispatched
// mouse click on the entry's center when its box is available, otherwise a
// scripted click.
func (d *fieldDriver) SelectSuggestion(ctx context.Context, pos int) error {
	runCtx, cancel := d.page.bound(ctx, 15*time.Second)
	defer cancel()

	var center []float64
	if err := chromedp.Run(runCtx, chromedp.Evaluate(suggestionCenterJS(d.list, d.items, pos), &center)); err == nil && len(center) == 2 {
		if err := humanClick(runCtx, center[0], center[1]); err == nil {
			d.focused = false
			return sleepCtx(runCtx, 400*time.Millisecond)
		}
	}

	var ok bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(selectSuggestionJS(d.list, d.items, pos), &ok)); err != nil {
		return fmt.Errorf("select suggestion %d: %w", pos, err)
	}
	if !ok {
		return fmt.Errorf("select suggestion %d: no such entry", pos)
	}

	// Selection hands focus back to the page and collapses the list.
	d.focused = false
	return sleepCtx(runCtx, 400*time.Millisecond)
}

// FieldValue reads the input's displayed value.
func (d *fieldDriver) FieldValue(ctx context.Context) (string, error) {
	runCtx, cancel := d.page.bound(ctx, 10*time.Second)
	defer cancel()

	var value string
	if err := chromedp.Run(runCtx, chromedp.Value(d.input, &value, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read field value: %w", err)
	}
	return value, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
