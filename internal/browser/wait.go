package browser

import (
	"context"
	"time"

	"github.com/kestrelops/rewardsbot/internal/rng"
)

// SmartWait polls for selector with a short initial wait, escalating to
// a longer wait only if the element has not yet appeared. Short
// single-window presence probes call Page.WaitForSelector directly
// instead.
func SmartWait(ctx context.Context, page Page, selector string, r *rng.Source) (bool, error) {
	shortTimeout := time.Duration(r.FloatIn(300, 2000)) * time.Millisecond
	found, err := page.WaitForSelector(ctx, selector, shortTimeout)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}
	longTimeout := time.Duration(r.FloatIn(3000, 5000)) * time.Millisecond
	return page.WaitForSelector(ctx, selector, longTimeout)
}
