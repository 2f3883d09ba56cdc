package resolve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fareprobe/internal/score"
	"fareprobe/internal/suggest"
)

// Config holds the engine's timing and budget tunables.
type Config struct {
	// KeystrokeDelay is the pause between individual keystrokes. The
	// widget's suggestion engine is keystroke-driven, so characters are
	// never pasted in bulk.
	KeystrokeDelay time.Duration

	// PollInitial and PollMax bound the exponential backoff while waiting
	// for suggestions; MaxWait caps the total wait per attempt.
	PollInitial time.Duration
	PollMax     time.Duration
	MaxWait     time.Duration

	// MinPrefixLen is how many characters are typed before the engine
	// starts checking for suggestions mid-typing.
	MinPrefixLen int

	// PerStrategyAttempts caps retries within one strategy; MaxAttempts is
	// the aggregate ceiling across all strategies.
	PerStrategyAttempts int
	MaxAttempts         int
}

// DefaultConfig returns timings suited to a live page.
func DefaultConfig() Config {
	return Config{
		KeystrokeDelay:      120 * time.Millisecond,
		PollInitial:         150 * time.Millisecond,
		PollMax:             1200 * time.Millisecond,
		MaxWait:             3 * time.Second,
		MinPrefixLen:        3,
		PerStrategyAttempts: 2,
		MaxAttempts:         6,
	}
}

// Engine resolves city names to airport codes through a Driver. All steps
// within one Resolve are strictly sequential; an Engine drives one input
// field at a time and holds no locks of its own. Run one Engine per page.
type Engine struct {
	driver     Driver
	scorer     *score.Scorer
	cache      *Cache
	cfg        Config
	strategies []Strategy
	logger     *log.Logger

	typed int // runes currently sitting in the field, tracked explicitly
}

// NewEngine builds an Engine. The cache is an injected dependency so callers
// decide between shared and isolated caches; nil disables caching. A nil
// scorer gets the default tuning, and strategies come from the registry.
func NewEngine(d Driver, sc *score.Scorer, cache *Cache, cfg Config) *Engine {
	if sc == nil {
		sc = score.NewScorer()
	}
	return &Engine{
		driver:     d,
		scorer:     sc,
		cache:      cache,
		cfg:        cfg,
		strategies: Strategies(),
		logger:     log.Default(),
	}
}

// SetStrategies overrides the registered strategy set, mainly for tests.
func (e *Engine) SetStrategies(s []Strategy) { e.strategies = s }

// SetLogger redirects engine logging.
func (e *Engine) SetLogger(l *log.Logger) { e.logger = l }

// Resolve drives the widget until the query's city is selected and verified,
// or the attempt budget is exhausted. Exhaustion is not an error: it returns
// a failure-shaped Result whose FailureReason names the last failure class.
// A non-nil error means the input was unusable or the capability boundary
// broke down (including context cancellation); nothing is cached in that
// case.
func (e *Engine) Resolve(ctx context.Context, q Query) (Result, error) {
	if q.Normalized() == "" {
		return Result{}, errors.New("resolve: empty city name")
	}
	if e.driver == nil {
		return Result{}, errors.New("resolve: no driver")
	}

	if e.cache != nil {
		if r, ok := e.cache.Get(q.Normalized()); ok {
			r.Query = q
			r.FromCache = true
			return r, nil
		}
	}

	attempts := 0
	lastReason := ReasonNoSuggestions

	for _, st := range e.strategies {
		if !st.Applies(q) {
			continue
		}
		for pass := 0; pass < e.cfg.PerStrategyAttempts; pass++ {
			for _, variant := range st.Variants(q) {
				if attempts >= e.cfg.MaxAttempts {
					return e.failed(q, attempts, lastReason), nil
				}
				if err := ctx.Err(); err != nil {
					return Result{}, fmt.Errorf("resolve %q: %w", q.RawName, err)
				}

				attempts++
				res, reason, err := e.attempt(ctx, variant)
				if err != nil {
					return Result{}, fmt.Errorf("resolve %q: %w", q.RawName, err)
				}
				if reason == ReasonNone {
					res.Query = q
					res.Strategy = st.Name()
					res.Attempts = attempts
					if e.cache != nil {
						e.cache.Put(q.Normalized(), res)
					}
					return res, nil
				}

				lastReason = reason
				e.logger.Printf("resolve %q: attempt %d (%s, typed %q) failed: %s",
					q.RawName, attempts, st.Name(), variant, reason)
			}
		}
	}

	return e.failed(q, attempts, lastReason), nil
}

func (e *Engine) failed(q Query, attempts int, reason Reason) Result {
	return Result{Query: q, Attempts: attempts, FailureReason: reason}
}

// attempt runs one pass of the per-attempt state machine:
// Typing -> AwaitingSuggestions -> Scoring -> Selecting -> Verifying.
// A ReasonNone return means the attempt resolved; a non-empty Reason is a
// retryable failure. The error return is reserved for context cancellation.
func (e *Engine) attempt(ctx context.Context, variant string) (Result, Reason, error) {
	// Clear whatever the previous attempt left behind. The typed count is
	// tracked explicitly rather than read back from the widget.
	if err := e.clearField(ctx); err != nil {
		return Result{}, e.transient(err), ctxErr(ctx, err)
	}

	// Typing: one rune at a time, checking for usable suggestions once the
	// prefix is long enough. Early suggestion arrival stops typing so short
	// prefixes get matched the way a human would stop.
	if reason, err := e.typePhase(ctx, variant); err != nil || reason != ReasonNone {
		return Result{}, reason, err
	}

	// AwaitingSuggestions: bounded exponential backoff.
	entries, reason, err := e.awaitSuggestions(ctx)
	if err != nil || reason != ReasonNone {
		return Result{}, reason, err
	}

	// Scoring.
	parsed, positions := suggest.ExtractAll(entries)
	if len(parsed) == 0 {
		return Result{}, ReasonNoMatch, nil
	}
	best, ok := e.scorer.PickBest(variant, e.scorer.Score(variant, parsed, positions))
	if !ok {
		return Result{}, ReasonNoMatch, nil
	}

	// Selecting: the only step that mutates external UI state.
	if err := e.driver.SelectSuggestion(ctx, best.Position); err != nil {
		return Result{}, e.transient(err), ctxErr(ctx, err)
	}

	// Verifying: re-read the field and re-extract. Accept only when the
	// displayed code matches the candidate we chose; anything else means
	// the site substituted a different city or we raced the UI.
	value, err := e.driver.FieldValue(ctx)
	if err != nil {
		return Result{}, e.transient(err), ctxErr(ctx, err)
	}
	e.typed = len([]rune(value)) // the site rewrote the field on selection

	if code := suggest.Code(value); code != best.Parsed.AirportCode {
		return Result{}, ReasonVerifyMismatch, nil
	}

	return Result{
		AirportCode:  best.Parsed.AirportCode,
		AirportName:  best.Parsed.AirportName,
		SelectedText: best.Parsed.SourceText,
	}, ReasonNone, nil
}

// typePhase sends the variant's runes with the configured delay, probing for
// suggestions once MinPrefixLen characters are in.
func (e *Engine) typePhase(ctx context.Context, variant string) (Reason, error) {
	runes := []rune(variant)
	for i, r := range runes {
		if err := e.driver.SendKey(ctx, r); err != nil {
			return e.transient(err), ctxErr(ctx, err)
		}
		e.typed++
		if err := sleep(ctx, e.cfg.KeystrokeDelay); err != nil {
			return ReasonNoSuggestions, err
		}

		if i+1 >= e.cfg.MinPrefixLen && i+1 < len(runes) {
			entries, err := e.driver.Suggestions(ctx)
			if err != nil {
				continue // transient read failure mid-typing, keep typing
			}
			if hasParseable(entries) {
				return ReasonNone, nil
			}
		}
	}
	return ReasonNone, nil
}

// awaitSuggestions polls until at least one parseable suggestion shows up or
// MaxWait elapses. All waits are timeout-bounded, never infinite.
func (e *Engine) awaitSuggestions(ctx context.Context) ([]suggest.Entry, Reason, error) {
	deadline := time.Now().Add(e.cfg.MaxWait)
	backoff := e.cfg.PollInitial

	for {
		entries, err := e.driver.Suggestions(ctx)
		if err == nil && hasParseable(entries) {
			return entries, ReasonNone, nil
		}
		if err != nil && ctx.Err() != nil {
			return nil, ReasonNoSuggestions, ctx.Err()
		}

		if !time.Now().Add(backoff).Before(deadline) {
			return nil, ReasonNoSuggestions, nil
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, ReasonNoSuggestions, err
		}
		backoff *= 2
		if backoff > e.cfg.PollMax {
			backoff = e.cfg.PollMax
		}
	}
}

// clearField backspaces over everything this engine has typed or accepted
// into the field.
func (e *Engine) clearField(ctx context.Context) error {
	for e.typed > 0 {
		if err := e.driver.SendKey(ctx, '\b'); err != nil {
			return err
		}
		e.typed--
	}
	return nil
}

// transient classifies a driver error as a retryable failure. Stale element
// references and missed reads all land here; the attempt budget decides when
// they stop being transient.
func (e *Engine) transient(err error) Reason {
	_ = err
	return ReasonNoSuggestions
}

func hasParseable(entries []suggest.Entry) bool {
	for _, en := range entries {
		if _, ok := suggest.Extract(en.DisplayText); ok {
			return true
		}
	}
	return false
}

// ctxErr promotes a driver error to a hard failure only when the context is
// already cancelled; otherwise the error stays retryable.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_ = err
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
