// Package driver implements the browser side of the harness over
// chromedp: the typeahead field drivers the resolve engine needs, plus the
// outer search-form flow (date, submit, filters, scrape).
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"fareprobe/internal/resolve"
)

// Selectors locates the pieces of the search form. The defaults target the
// booking site the harness was built against; other sites with the same
// single-field typeahead pattern only need a different selector set.
type Selectors struct {
	URL string

	FromInput string
	FromList  string
	ToInput   string
	ToList    string

	DateInput    string
	SearchButton string
	OfferRow     string
	Overlays     string

	NonStopBox  string
	OneStopBox  string
	TwoStopBox  string
	PriceSlider string
	PriceLabel  string

	// SuggestionItems is the query for entries inside a suggestion list.
	SuggestionItems string
}

// DefaultSelectors returns the production selector set.
func DefaultSelectors() Selectors {
	return Selectors{
		URL:             "https://www.easemytrip.com/",
		FromInput:       "#FromSector_show",
		FromList:        "#fromautoFill",
		ToInput:         "#Editbox13_show",
		ToList:          "#toautoFill",
		DateInput:       "#ddate",
		SearchButton:    `[value="Search"]`,
		OfferRow:        ".fltResult",
		Overlays:        `[id*="overlay"], [class*="overlay"], .overlaybg1, #overlaybg1, #overlaybgg1`,
		NonStopBox:      "#chkNonStop",
		OneStopBox:      "#chkOneStop",
		TwoStopBox:      "#chkTwoStop",
		PriceSlider:     "#slider-range",
		PriceLabel:      "#amount",
		SuggestionItems: "li, .city-option, .suggestion, a",
	}
}

// Options configures a Page.
type Options struct {
	Selectors Selectors
	Headless  bool
	// NavTimeout bounds navigation and the wait for the results page.
	NavTimeout time.Duration
	// SettleDelay is the pause after actions that trigger site-side
	// refiltering; the results list is Angular-driven and settles slowly.
	SettleDelay time.Duration
}

// DefaultOptions returns options suited to a live run.
func DefaultOptions() Options {
	return Options{
		Selectors:   DefaultSelectors(),
		Headless:    true,
		NavTimeout:  60 * time.Second,
		SettleDelay: 4 * time.Second,
	}
}

// Page is one browser tab on the search site. It satisfies runner.Page.
// A Page is not safe for concurrent use; run one scenario per Page.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
}

// NewPage launches a browser tab. Close releases it.
func NewPage(parent context.Context, opts Options) (*Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// Start the browser now so failures surface here, not mid-scenario.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Page{ctx: tabCtx, cancel: cancel, opts: opts}, nil
}

// Close shuts the tab and browser down.
func (p *Page) Close() {
	p.cancel()
}

// Navigate opens the search form and waits for the origin field.
func (p *Page) Navigate(ctx context.Context) error {
	runCtx, cancel := p.bound(ctx, p.opts.NavTimeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(p.opts.Selectors.URL),
		chromedp.WaitVisible(p.opts.Selectors.FromInput, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", p.opts.Selectors.URL, err)
	}
	return nil
}

// FieldDriver returns the typeahead driver for one of the two city fields.
func (p *Page) FieldDriver(role resolve.Role) resolve.Driver {
	s := p.opts.Selectors
	if role == resolve.Destination {
		return &fieldDriver{page: p, input: s.ToInput, list: s.ToList, items: s.SuggestionItems}
	}
	return &fieldDriver{page: p, input: s.FromInput, list: s.FromList, items: s.SuggestionItems}
}

// SetDepartureDate clears blocking overlays and writes the date directly,
// firing the input events the page's own handlers listen for. The calendar
// popup is deliberately bypassed.
func (p *Page) SetDepartureDate(ctx context.Context, date string) error {
	runCtx, cancel := p.bound(ctx, p.opts.NavTimeout)
	defer cancel()

	s := p.opts.Selectors
	err := chromedp.Run(runCtx,
		chromedp.Evaluate(removeOverlaysJS(s.Overlays, s.DateInput), nil),
		chromedp.Evaluate(setDateJS(s.DateInput, date), nil),
	)
	if err != nil {
		return fmt.Errorf("set date: %w", err)
	}

	var got string
	if err := chromedp.Run(runCtx, chromedp.Value(s.DateInput, &got, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("read back date: %w", err)
	}
	if got == "" {
		return fmt.Errorf("date field still empty after set")
	}
	return nil
}

// SubmitSearch clicks the search button (falling back to a scripted click)
// and waits for the results list to appear.
func (p *Page) SubmitSearch(ctx context.Context) error {
	runCtx, cancel := p.bound(ctx, p.opts.NavTimeout)
	defer cancel()

	s := p.opts.Selectors
	if err := chromedp.Run(runCtx, chromedp.Evaluate(removeOverlaysJS(s.Overlays, s.DateInput), nil)); err != nil {
		return fmt.Errorf("clear overlays: %w", err)
	}

	if err := chromedp.Run(runCtx, chromedp.Click(s.SearchButton, chromedp.ByQuery)); err != nil {
		// Some layouts cover the button; a scripted click still works.
		jsErr := chromedp.Run(runCtx, chromedp.Evaluate(clickJS(s.SearchButton), nil))
		if jsErr != nil {
			return fmt.Errorf("submit search: %w", err)
		}
	}

	if err := chromedp.Run(runCtx, chromedp.WaitVisible(s.OfferRow, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("results page: %w", err)
	}
	return p.settle(ctx)
}

// bound derives a chromedp-usable context that also dies with the caller's.
func (p *Page) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// settle waits out site-side refiltering.
func (p *Page) settle(ctx context.Context) error {
	t := time.NewTimer(p.opts.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	case <-t.C:
		return nil
	}
}
