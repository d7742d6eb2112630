// Package browser models the Browser Session Factory (spec.md §4.5) as
// a set of interfaces. The underlying browser driver - the thing that
// actually drives Edge/Chromium - is an external collaborator out of
// scope per spec.md §1; this package owns only the contract a driver
// must satisfy, the fingerprint/viewport synthesis that must be
// internally consistent, and the acquire/retry/release lifecycle
// around it.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kestrelops/rewardsbot/internal/rng"
)

// Header is one HTTP header in emission order.
type Header struct {
	Name, Value string
}

// Request describes one outgoing network request for interception
// purposes: the Chrome resource-type string (document, xhr, fetch,
// script, stylesheet, image, media, font, ...), its current Accept
// header if any, and the referring URL if any.
type Request struct {
	Type, Accept, Referer string
}

// RequestInterceptor rewrites a request's headers and reports how long
// the driver should wait before sending it, implementing the network
// surface of spec.md §4.6. A nil Header slice means "pass through
// untouched".
type RequestInterceptor func(ctx context.Context, req Request) ([]Header, time.Duration, error)

// Page is the minimal page handle the pipeline needs: navigation,
// element interaction, and script evaluation. A real implementation
// wraps whatever browser-automation library is wired in; this package
// never imports one.
type Page interface {
	Goto(ctx context.Context, url string) error
	URL() string
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector string, text string, perChar func() time.Duration) error
	Evaluate(ctx context.Context, script string) (any, error)
	Content(ctx context.Context) (string, error)
	Closed() bool
	Close() error
}

// Session is one browser context: a persistent per-account profile
// plus zero or more pages. AntiDetect installs the in-page init script
// and network interceptor described in spec.md §4.6; a Session is not
// usable until AntiDetect has been applied.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	AddInitScript(ctx context.Context, script string) error
	SetRequestInterceptor(ctx context.Context, interceptor RequestInterceptor) error
	Closed() bool
	Close() error
}

// Cookie is a persisted browser cookie, used to carry a mobile login
// across the desktop-then-mobile handoff in the Per-Account Pipeline.
type Cookie struct {
	Name, Value, Domain, Path string
	Expires                   time.Time
	HTTPOnly, Secure          bool
}

// Driver is the narrow seam a real browser-automation library plugs
// into: given a fully-resolved spec, produce a live Session. Everything
// above this interface - viewport/fingerprint synthesis, retry-on-dead-
// context, anti-detection script installation order - is owned by this
// package and is exercised the same way regardless of which driver is
// wired in.
type Driver interface {
	Launch(ctx context.Context, spec SessionSpec) (Session, error)
}

// SessionSpec is everything a Driver needs to build one context.
type SessionSpec struct {
	Account     string
	ProfileDir  string
	Persona     Persona
	Viewport    Viewport
	Fingerprint Fingerprint
	Proxy       string
	InitScript  string
	MediumInitScript bool
}

// AntiDetectInstaller installs the init script and network interceptor
// on a session before any navigation happens. Implementations live in
// internal/antidetect; the factory depends only on this interface to
// keep the ordering guarantee ("installed before any navigation",
// spec.md §4.5 guarantee (c)) independent of any one driver.
type AntiDetectInstaller interface {
	Install(ctx context.Context, sess Session, fp Fingerprint, vp Viewport, medium bool) error
}

// Factory builds Sessions per spec.md §4.5: realistic viewport and
// fingerprint, anti-detection installed first, a single home page
// opened, and guaranteed release on every exit path.
type Factory struct {
	driver      Driver
	antidetect  AntiDetectInstaller
	edgeVersion *EdgeVersionCache
	rng         *rng.Source
	log         *logrus.Entry

	locale, timezone         string
	hardwareConcurrency, deviceMemory int
	homeURL                  string
	mediumAntiDetect         func(url string) bool
}

// NewFactory constructs a Factory. mediumAntiDetect, if non-nil, is
// consulted with the home URL at build time to decide whether the
// lighter anti-debugger additions (spec.md §4.6) are appended to the
// full init script.
func NewFactory(driver Driver, antidetect AntiDetectInstaller, edgeVersion *EdgeVersionCache, r *rng.Source, log *logrus.Entry, locale, timezone, homeURL string, hwConcurrency, deviceMemory int, mediumAntiDetect func(string) bool) *Factory {
	return &Factory{
		driver: driver, antidetect: antidetect, edgeVersion: edgeVersion, rng: r, log: log,
		locale: locale, timezone: timezone, homeURL: homeURL,
		hardwareConcurrency: hwConcurrency, deviceMemory: deviceMemory,
		mediumAntiDetect: mediumAntiDetect,
	}
}

// Built is a freshly constructed session plus the home page opened on
// it and the fingerprint it was given, returned together so callers
// never have to re-derive the fingerprint for later consistency checks.
type Built struct {
	Session     Session
	Page        Page
	Fingerprint Fingerprint
	Viewport    Viewport
}

// Build acquires a Session for account/persona behind proxy, rooted at
// profileDir. On a reported-closed context mid-build, it retries the
// build exactly once before returning a fatal error, matching the
// factory contract in spec.md §4.5's Lifetime clause.
func (f *Factory) Build(ctx context.Context, account, profileDir string, persona Persona, proxy string) (*Built, error) {
	built, err := f.buildOnce(ctx, account, profileDir, persona, proxy)
	if err == nil {
		return built, nil
	}
	if !isClosedContextErr(err) {
		return nil, err
	}
	f.log.WithField("account", account).Warn("browser context reported closed during build, retrying once")
	built, err2 := f.buildOnce(ctx, account, profileDir, persona, proxy)
	if err2 != nil {
		return nil, fmt.Errorf("browser: build failed after retry: %w", err2)
	}
	return built, nil
}

func (f *Factory) buildOnce(ctx context.Context, account, profileDir string, persona Persona, proxy string) (built *Built, retErr error) {
	viewport := ChooseViewport(f.rng, persona)
	fp := BuildFingerprint(persona, f.edgeVersion.Version(), f.locale, f.timezone, f.hardwareConcurrency, f.deviceMemory)

	medium := false
	if f.mediumAntiDetect != nil {
		medium = f.mediumAntiDetect(f.homeURL)
	}

	spec := SessionSpec{
		Account: account, ProfileDir: profileDir, Persona: persona,
		Viewport: viewport, Fingerprint: fp, Proxy: proxy, MediumInitScript: medium,
	}

	sess, err := f.driver.Launch(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("browser: launch session: %w", err)
	}
	defer func() {
		if retErr != nil {
			sess.Close()
		}
	}()

	if err := f.antidetect.Install(ctx, sess, fp, viewport, medium); err != nil {
		return nil, fmt.Errorf("browser: install anti-detection: %w", err)
	}

	page, err := sess.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser: open page: %w", err)
	}
	if err := page.Goto(ctx, f.homeURL); err != nil {
		return nil, fmt.Errorf("browser: navigate home: %w", err)
	}

	return &Built{Session: sess, Page: page, Fingerprint: fp, Viewport: viewport}, nil
}

// Release closes a built session's page and context, tolerating an
// already-closed state - release must succeed on every exit path
// including a failing login.
func Release(b *Built) {
	if b == nil {
		return
	}
	if b.Page != nil && !b.Page.Closed() {
		_ = b.Page.Close()
	}
	if b.Session != nil && !b.Session.Closed() {
		_ = b.Session.Close()
	}
}

func isClosedContextErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return contains(msg, "target closed") || contains(msg, "context closed") || contains(msg, "session closed")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
