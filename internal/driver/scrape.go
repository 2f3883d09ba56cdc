package driver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chromedp/chromedp"

	"fareprobe/internal/filter"
)

// offerRow mirrors the object shape assembled by offersJS.
type offerRow struct {
	Airline      string  `json:"airline"`
	FlightNumber string  `json:"flight_number"`
	Price        float64 `json:"price"`
	Stops        int     `json:"stops"`
}

// CountVisibleOffers counts listings that are actually rendered, not just
// present in the DOM.
func (p *Page) CountVisibleOffers(ctx context.Context) (int, error) {
	runCtx, cancel := p.bound(ctx, p.opts.NavTimeout)
	defer cancel()

	var n int
	if err := chromedp.Run(runCtx, chromedp.Evaluate(countVisibleJS(p.opts.Selectors.OfferRow), &n)); err != nil {
		return 0, fmt.Errorf("count offers: %w", err)
	}
	return n, nil
}

// ApplyStopsFilter leaves exactly the target stop checkbox checked. The
// page refilters on every click, so each toggle is followed by a settle.
func (p *Page) ApplyStopsFilter(ctx context.Context, c filter.StopCategory) error {
	s := p.opts.Selectors
	boxes := map[filter.StopCategory]string{
		filter.NonStop:      s.NonStopBox,
		filter.OneStop:      s.OneStopBox,
		filter.TwoPlusStops: s.TwoStopBox,
	}
	target := boxes[c]

	runCtx, cancel := p.bound(ctx, p.opts.NavTimeout)
	defer cancel()

	// Uncheck the other categories first, then make sure the target is on;
	// the site refilters after every toggle.
	for _, cat := range []filter.StopCategory{filter.NonStop, filter.OneStop, filter.TwoPlusStops} {
		want := cat == c
		var changed bool
		if err := chromedp.Run(runCtx, chromedp.Evaluate(setCheckboxJS(boxes[cat], want), &changed)); err != nil {
			return fmt.Errorf("stops checkbox %s: %w", boxes[cat], err)
		}
		if changed {
			if err := p.settle(ctx); err != nil {
				return err
			}
		}
	}

	var checked bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(isCheckedJS(target), &checked)); err != nil {
		return fmt.Errorf("verify stops filter: %w", err)
	}
	if !checked {
		return fmt.Errorf("stops filter %s did not stick", c)
	}
	return nil
}

// ApplyPriceFilter drives the price slider to [min, max] and hides rows
// outside the window by their price attribute, matching what the site's own
// filter directive does once its digest settles.
func (p *Page) ApplyPriceFilter(ctx context.Context, min, max float64) error {
	runCtx, cancel := p.bound(ctx, p.opts.NavTimeout)
	defer cancel()

	s := p.opts.Selectors
	var applied bool
	err := chromedp.Run(runCtx, chromedp.Evaluate(
		applyPriceJS(s.PriceSlider, s.PriceLabel, s.OfferRow, min, max), &applied))
	if err != nil {
		return fmt.Errorf("price filter: %w", err)
	}
	if !applied {
		return fmt.Errorf("price slider %s not found", s.PriceSlider)
	}
	return p.settle(ctx)
}

// VisibleOffers scrapes every listing still visible after filtering. Price
// and stop count come from row attributes when present, with text-pattern
// fallbacks for skins that omit them.
func (p *Page) VisibleOffers(ctx context.Context) ([]filter.Offer, error) {
	runCtx, cancel := p.bound(ctx, p.opts.NavTimeout)
	defer cancel()

	var rows []offerRow
	if err := chromedp.Run(runCtx, chromedp.Evaluate(offersJS(p.opts.Selectors.OfferRow), &rows)); err != nil {
		return nil, fmt.Errorf("scrape offers: %w", err)
	}

	offers := make([]filter.Offer, 0, len(rows))
	for _, r := range rows {
		offers = append(offers, filter.Offer{
			Airline:      r.Airline,
			FlightNumber: r.FlightNumber,
			Price:        r.Price,
			Stops:        r.Stops,
		})
	}
	return offers, nil
}

// The snippets below run inside the page. Selector strings are embedded via
// %q so quoting survives the round trip into JS.

func clickJS(sel string) string {
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, sel)
}

func removeOverlaysJS(overlaySel, dateSel string) string {
	return fmt.Sprintf(`(() => {
		document.querySelectorAll(%q).forEach(o => {
			o.style.display = 'none';
			o.style.visibility = 'hidden';
			o.style.zIndex = '-1000';
		});
		const d = document.querySelector(%q);
		if (d) {
			d.style.pointerEvents = 'auto';
			d.removeAttribute('readonly');
		}
		return true;
	})()`, overlaySel, dateSel)
}

func setDateJS(sel, date string) string {
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		el.dispatchEvent(new Event('blur', { bubbles: true }));
		return true;
	})()`, sel, date)
}

func suggestionsJS(listSel, itemSel string) string {
	return fmt.Sprintf(`(() => {
		const c = document.querySelector(%q);
		if (!c || c.style.display === 'none') return [];
		const out = [];
		const items = c.querySelectorAll(%q);
		for (let i = 0; i < items.length; i++) {
			const s = items[i];
			if (s.offsetHeight > 0 && s.textContent.trim().length > 0 && !s.getAttribute('aria-hidden')) {
				out.push({ text: s.textContent.trim(), pos: i });
			}
		}
		return out;
	})()`, listSel, itemSel)
}

func suggestionCenterJS(listSel, itemSel string, pos int) string {
	return fmt.Sprintf(`(() => {
		const c = document.querySelector(%q);
		if (!c) return [];
		const items = c.querySelectorAll(%q);
		if (%d >= items.length) return [];
		const r = items[%d].getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return [];
		return [r.left + r.width / 2, r.top + r.height / 2];
	})()`, listSel, itemSel, pos, pos)
}

func selectSuggestionJS(listSel, itemSel string, pos int) string {
	return fmt.Sprintf(`(() => {
		const c = document.querySelector(%q);
		if (!c) return false;
		const items = c.querySelectorAll(%q);
		if (%d >= items.length) return false;
		items[%d].click();
		return true;
	})()`, listSel, itemSel, pos, pos)
}

func countVisibleJS(rowSel string) string {
	return fmt.Sprintf(`(() => {
		let n = 0;
		document.querySelectorAll(%q).forEach(f => {
			const r = f.getBoundingClientRect();
			const cs = window.getComputedStyle(f);
			if (f.offsetParent !== null && cs.display !== 'none' && cs.visibility !== 'hidden' &&
				!f.hidden && r.height > 0 && r.width > 0) {
				n++;
			}
		});
		return n;
	})()`, rowSel)
}

func setCheckboxJS(sel string, want bool) string {
	return fmt.Sprintf(`(() => {
		const cb = document.querySelector(%q);
		if (!cb) return false;
		if (cb.checked === %s) return false;
		cb.click();
		return true;
	})()`, sel, strconv.FormatBool(want))
}

func isCheckedJS(sel string) string {
	return fmt.Sprintf(`(() => {
		const cb = document.querySelector(%q);
		return cb ? cb.checked : false;
	})()`, sel)
}

func applyPriceJS(sliderSel, labelSel, rowSel string, min, max float64) string {
	minS := strconv.FormatFloat(min, 'f', -1, 64)
	maxS := strconv.FormatFloat(max, 'f', -1, 64)
	return fmt.Sprintf(`(() => {
		let applied = false;
		if (typeof $ !== 'undefined') {
			const slider = $(%q);
			if (slider.length && slider.slider) {
				const lo = Math.max(%s, slider.slider('option', 'min') || 0);
				const hi = Math.min(%s, slider.slider('option', 'max') || 1000000);
				slider.slider('values', [lo, hi]);
				const label = $(%q);
				if (label.length) label.val(lo + ' - ' + hi);
				applied = true;
			}
		}
		document.querySelectorAll(%q).forEach(f => {
			const price = parseInt(f.getAttribute('price'));
			if (isNaN(price)) return;
			if (price < %s || price > %s) {
				f.style.display = 'none';
			} else {
				f.style.display = '';
			}
			applied = true;
		});
		return applied;
	})()`, sliderSel, minS, maxS, labelSel, rowSel, minS, maxS)
}

func offersJS(rowSel string) string {
	return fmt.Sprintf(`(() => {
		const out = [];
		document.querySelectorAll(%q).forEach(f => {
			const r = f.getBoundingClientRect();
			const cs = window.getComputedStyle(f);
			const visible = f.offsetParent !== null && cs.display !== 'none' &&
				cs.visibility !== 'hidden' && !f.hidden && r.height > 0 && r.width > 0;
			if (!visible) return;

			const text = f.textContent || '';

			let price = parseInt(f.getAttribute('price')) || 0;
			if (price === 0) {
				const m = text.match(/[₹]\s*([0-9,]+)/);
				if (m) price = parseInt(m[1].replace(/,/g, ''));
			}

			let stop = f.getAttribute('stop');
			if (stop === null || stop === '') {
				if (/non[- ]?stop/i.test(text)) stop = '0';
				else if (/1 stop/i.test(text)) stop = '1';
				else if (/2\+? stops?/i.test(text)) stop = '2';
			}

			let airline = '';
			for (const sel of ['.txt-r4', '.airline-name', '[class*="airline"]', '.airlineName']) {
				const el = f.querySelector(sel);
				if (el && el.textContent.trim()) { airline = el.textContent.trim(); break; }
			}

			let flightNumber = '';
			const fm = text.match(/([A-Z0-9]{2})[\s-]*(\d{3,4})\b/);
			if (fm) flightNumber = fm[1] + fm[2];

			out.push({
				airline: airline,
				flight_number: flightNumber,
				price: price,
				stops: parseInt(stop) || 0,
			});
		});
		return out;
	})()`, rowSel)
}
