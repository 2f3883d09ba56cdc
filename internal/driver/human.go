package driver

import (
	"context"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// humanClick presses and releases the left button at (x, y) with a short
// approach movement and natural pauses, via the raw CDP input domain.
// Scripted element.click() is detectable by the site's telemetry; dispatched
// mouse events are not.
func humanClick(ctx context.Context, x, y float64) error {
	startX := x + (rand.Float64()-0.5)*120
	startY := y + (rand.Float64()-0.5)*120

	steps := 6 + rand.Intn(6)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		mx := startX + (x-startX)*t + (rand.Float64()-0.5)*2
		my := startY + (y-startY)*t + (rand.Float64()-0.5)*2
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseMoved, mx, my).Do(ctx)
		}))
		if err != nil {
			return err
		}
		if err := sleepCtx(ctx, time.Duration(12+rand.Intn(10))*time.Millisecond); err != nil {
			return err
		}
	}

	if err := sleepCtx(ctx, time.Duration(40+rand.Intn(120))*time.Millisecond); err != nil {
		return err
	}

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).
			WithClickCount(1).
			Do(ctx)
	}))
	if err != nil {
		return err
	}
	if err := sleepCtx(ctx, time.Duration(30+rand.Intn(80))*time.Millisecond); err != nil {
		return err
	}

	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).
			WithClickCount(1).
			Do(ctx)
	}))
}
