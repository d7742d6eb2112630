package antidetect

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/rng"
)

// Installer implements browser.AntiDetectInstaller: it installs the
// in-page init script and the network interceptor together, so the
// two surfaces of spec.md §4.6 are always applied as a unit.
type Installer struct {
	rng *rng.Source
}

// New returns an Installer.
func New(r *rng.Source) *Installer {
	return &Installer{rng: r}
}

// Install renders the init script for fp/vp/medium and wires a
// combined header-rewrite-and-throttle interceptor onto sess, both
// before any navigation (the caller - browser.Factory - guarantees
// ordering; Install itself has no navigation-ordering logic of its
// own).
func (i *Installer) Install(ctx context.Context, sess browser.Session, fp browser.Fingerprint, vp browser.Viewport, medium bool) error {
	script := Render(fp, vp, medium, i.rng)
	if err := sess.AddInitScript(ctx, script); err != nil {
		return fmt.Errorf("antidetect: install init script: %w", err)
	}

	policy := NewHeaderPolicy(fp, i.rng)
	throttle := NewThrottle(i.rng)
	interceptor := func(_ context.Context, req browser.Request) ([]browser.Header, time.Duration, error) {
		headers := policy.Rewrite(req.Type, req.Accept, req.Referer)
		delay := throttle.Delay(req.Type)
		return headers, delay, nil
	}
	if err := sess.SetRequestInterceptor(ctx, interceptor); err != nil {
		return fmt.Errorf("antidetect: install request interceptor: %w", err)
	}
	return nil
}
