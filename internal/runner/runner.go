// Package runner drives one scenario end to end: resolve both cities, run
// the search, apply the UI filters, and validate what the page shows.
package runner

import (
	"context"
	"fmt"
	"log"

	"fareprobe/internal/filter"
	"fareprobe/internal/resolve"
	"fareprobe/internal/scenario"
	"fareprobe/internal/score"
)

// Page is the runner's view of one open search page. The resolve engine only
// sees the four-primitive field drivers; everything else on this interface is
// the outer form flow.
type Page interface {
	// Navigate opens the search form.
	Navigate(ctx context.Context) error

	// FieldDriver returns the typeahead driver bound to the origin or
	// destination input.
	FieldDriver(role resolve.Role) resolve.Driver

	// SetDepartureDate fills the date field (DD/MM/YYYY).
	SetDepartureDate(ctx context.Context, date string) error

	// SubmitSearch triggers the search and waits for the results page.
	SubmitSearch(ctx context.Context) error

	// CountVisibleOffers counts listings currently visible.
	CountVisibleOffers(ctx context.Context) (int, error)

	// ApplyStopsFilter drives the stop-count checkboxes.
	ApplyStopsFilter(ctx context.Context, c filter.StopCategory) error

	// ApplyPriceFilter drives the price slider to [min, max].
	ApplyPriceFilter(ctx context.Context, min, max float64) error

	// VisibleOffers scrapes the listings still visible after filtering.
	VisibleOffers(ctx context.Context) ([]filter.Offer, error)
}

// Runner executes scenarios. One Runner may be shared across concurrent
// scenarios as long as each call gets its own Page; the only shared mutable
// state is the resolution cache, which guards itself.
type Runner struct {
	cache  *resolve.Cache
	scorer *score.Scorer
	cfg    resolve.Config
	logger *log.Logger
}

// New builds a Runner. cache may be nil to disable cross-scenario reuse.
func New(cache *resolve.Cache, scorer *score.Scorer, cfg resolve.Config) *Runner {
	return &Runner{cache: cache, scorer: scorer, cfg: cfg, logger: log.Default()}
}

// SetLogger redirects runner logging.
func (r *Runner) SetLogger(l *log.Logger) { r.logger = l }

// Run executes one scenario on the given page. The returned offers are the
// listings scraped after UI filtering, for archival alongside the report.
// A non-nil error means the flow itself broke (navigation, cancelled
// context); filter mismatches and failed resolutions are reported, not
// returned as errors.
func (r *Runner) Run(ctx context.Context, page Page, c scenario.Case) (scenario.Report, []filter.Offer, error) {
	rep := scenario.Report{TestID: c.TestID, Description: c.Description}

	if err := c.Validate(); err != nil {
		return rep, nil, fmt.Errorf("case %s: %w", c.TestID, err)
	}
	stops, err := filter.ParseStopCategory(c.StopsFilter)
	if err != nil {
		return rep, nil, fmt.Errorf("case %s: %w", c.TestID, err)
	}

	if err := page.Navigate(ctx); err != nil {
		return rep, nil, fmt.Errorf("case %s: navigate: %w", c.TestID, err)
	}

	r.logger.Printf("%s: resolving %s -> %s", c.TestID, c.FromCity, c.ToCity)

	origin := resolve.NewEngine(page.FieldDriver(resolve.Origin), r.scorer, r.cache, r.cfg)
	rep.Origin, err = origin.Resolve(ctx, resolve.Query{RawName: c.FromCity, Role: resolve.Origin})
	if err != nil {
		return rep, nil, fmt.Errorf("case %s: %w", c.TestID, err)
	}
	if !rep.Origin.OK() {
		rep.Status = "FAIL"
		rep.Reason = fmt.Sprintf("origin unresolved: %s", rep.Origin.FailureReason)
		return rep, nil, nil
	}

	dest := resolve.NewEngine(page.FieldDriver(resolve.Destination), r.scorer, r.cache, r.cfg)
	rep.Destination, err = dest.Resolve(ctx, resolve.Query{RawName: c.ToCity, Role: resolve.Destination})
	if err != nil {
		return rep, nil, fmt.Errorf("case %s: %w", c.TestID, err)
	}
	if !rep.Destination.OK() {
		rep.Status = "FAIL"
		rep.Reason = fmt.Sprintf("destination unresolved: %s", rep.Destination.FailureReason)
		return rep, nil, nil
	}

	formDate, _ := c.FormDate() // validated above
	if err := page.SetDepartureDate(ctx, formDate); err != nil {
		return rep, nil, fmt.Errorf("case %s: set date: %w", c.TestID, err)
	}
	if err := page.SubmitSearch(ctx); err != nil {
		return rep, nil, fmt.Errorf("case %s: search: %w", c.TestID, err)
	}

	if rep.BeforeCount, err = page.CountVisibleOffers(ctx); err != nil {
		return rep, nil, fmt.Errorf("case %s: count before: %w", c.TestID, err)
	}

	if err := page.ApplyStopsFilter(ctx, stops); err != nil {
		return rep, nil, fmt.Errorf("case %s: stops filter: %w", c.TestID, err)
	}
	if err := page.ApplyPriceFilter(ctx, c.PriceMin, c.PriceMax); err != nil {
		return rep, nil, fmt.Errorf("case %s: price filter: %w", c.TestID, err)
	}

	if rep.AfterCount, err = page.CountVisibleOffers(ctx); err != nil {
		return rep, nil, fmt.Errorf("case %s: count after: %w", c.TestID, err)
	}

	offers, err := page.VisibleOffers(ctx)
	if err != nil {
		return rep, nil, fmt.Errorf("case %s: scrape offers: %w", c.TestID, err)
	}

	outcome := filter.Validate(offers, filter.Criteria{
		Stops:           stops,
		PriceMin:        c.PriceMin,
		PriceMax:        c.PriceMax,
		OriginCode:      rep.Origin.AirportCode,
		DestinationCode: rep.Destination.AirportCode,
	})

	rep.OffersChecked = len(offers)
	rep.OffersPassed = len(outcome.Pass)
	rep.OffersFailed = len(outcome.Fail)

	// The UI already filtered; anything still visible that fails the
	// criteria is a site-side filtering defect.
	if rep.OffersFailed == 0 {
		rep.Status = "PASS"
	} else {
		rep.Status = "FAIL"
		rep.Reason = fmt.Sprintf("%d visible offers violate the applied filters", rep.OffersFailed)
	}

	r.logger.Printf("%s: %s (%s->%s, checked=%d passed=%d failed=%d)",
		c.TestID, rep.Status, rep.Origin.AirportCode, rep.Destination.AirportCode,
		rep.OffersChecked, rep.OffersPassed, rep.OffersFailed)

	return rep, offers, nil
}
