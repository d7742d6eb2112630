package antidetect

import (
	"fmt"
	"strings"

	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/rng"
)

// fullVectors lists the Vector -> init-script snippet mapping for the
// "full" variant (spec.md §4.6 table). Each function renders a
// self-contained statement; they are concatenated in table order so
// the whole surface is applied atomically.
var fullVectors = []func(ctx renderCtx) string{
	webdriverSnippet,
	chromeObjectSnippet,
	canvasNoiseSnippet,
	webglSpoofSnippet,
	audioNoiseSnippet,
	hardwareConcurrencySnippet,
	deviceMemorySnippet,
	pluginsSnippet,
	rtcFilterSnippet,
	batterySnippet,
	localeTimezoneSnippet,
	languageSnippet,
	timingJitterSnippet,
	errorStackScrubSnippet,
	screenConsistencySnippet,
}

// mediumOnlyVectors are added on top of fullVectors for pages hosting
// anti-debugger scripts (spec.md §4.6 "medium" variant).
var mediumOnlyVectors = []func(ctx renderCtx) string{
	debuggerStripSnippet,
	functionToStringSnippet,
	selfTopSnippet,
	performanceTimingSnippet,
}

type renderCtx struct {
	fp       browser.Fingerprint
	vp       browser.Viewport
	canvasNoise, webglNoise, audioNoise float64
}

// Render produces the full init script text for fp/vp. When medium is
// true the lighter anti-debugger additions are appended. Noise seeds
// are drawn fresh per session from r so two sessions never share a
// canvas/WebGL/audio fingerprint even with identical hardware.
func Render(fp browser.Fingerprint, vp browser.Viewport, medium bool, r *rng.Source) string {
	ctx := renderCtx{
		fp: fp, vp: vp,
		canvasNoise: r.FloatIn(0.0002, 0.0009),
		webglNoise:  r.FloatIn(0.0005, 0.002),
		audioNoise:  r.FloatIn(0.00005, 0.0003),
	}

	var b strings.Builder
	b.WriteString("(() => {\n")
	for _, fn := range fullVectors {
		b.WriteString(fn(ctx))
		b.WriteString("\n")
	}
	if medium {
		for _, fn := range mediumOnlyVectors {
			b.WriteString(fn(ctx))
			b.WriteString("\n")
		}
	}
	b.WriteString("})();\n")
	return b.String()
}

func webdriverSnippet(renderCtx) string {
	return `Object.defineProperty(Navigator.prototype, 'webdriver', { get: () => undefined, configurable: true });
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;`
}

func chromeObjectSnippet(renderCtx) string {
	return `window.chrome = window.chrome || {};
window.chrome.runtime = window.chrome.runtime || { connect: () => ({}), sendMessage: () => {} };
window.chrome.csi = () => ({ onloadT: Date.now(), startE: Date.now(), pageT: 1, tran: 15 });
window.chrome.loadTimes = () => ({ requestTime: Date.now() / 1000, startLoadTime: Date.now() / 1000 });`
}

func canvasNoiseSnippet(ctx renderCtx) string {
	return fmt.Sprintf(`(() => {
  const noise = %g;
  const wrap = (proto, name) => {
    const orig = proto[name];
    proto[name] = function (...args) {
      const result = orig.apply(this, args);
      if (result && result.data) {
        for (let i = 0; i < result.data.length; i += 97) {
          result.data[i] = result.data[i] ^ (Math.random() < noise ? 1 : 0);
        }
      }
      return result;
    };
  };
  wrap(CanvasRenderingContext2D.prototype, 'getImageData');
  const origToDataURL = HTMLCanvasElement.prototype.toDataURL;
  HTMLCanvasElement.prototype.toDataURL = function (...args) {
    return origToDataURL.apply(this, args);
  };
})();`, ctx.canvasNoise)
}

func webglSpoofSnippet(ctx renderCtx) string {
	return fmt.Sprintf(`(() => {
  const noise = %g;
  const vendor = 'Google Inc. (Intel)';
  const renderer = 'ANGLE (Intel, Intel(R) UHD Graphics Direct3D11 vs_5_0 ps_5_0)';
  const patch = (proto) => {
    const orig = proto.getParameter;
    proto.getParameter = function (param) {
      if (param === 37445) return vendor;
      if (param === 37446) return renderer;
      const v = orig.call(this, param);
      return typeof v === 'number' ? v + (Math.random() - 0.5) * noise : v;
    };
  };
  if (window.WebGLRenderingContext) patch(WebGLRenderingContext.prototype);
  if (window.WebGL2RenderingContext) patch(WebGL2RenderingContext.prototype);
})();`, ctx.webglNoise)
}

func audioNoiseSnippet(ctx renderCtx) string {
	return fmt.Sprintf(`(() => {
  const noise = %g;
  const orig = AnalyserNode.prototype.getFloatFrequencyData;
  AnalyserNode.prototype.getFloatFrequencyData = function (array) {
    orig.call(this, array);
    for (let i = 0; i < array.length; i++) array[i] += (Math.random() - 0.5) * noise;
  };
})();`, ctx.audioNoise)
}

func hardwareConcurrencySnippet(ctx renderCtx) string {
	return fmt.Sprintf(`Object.defineProperty(Navigator.prototype, 'hardwareConcurrency', { get: () => %d, configurable: true });`, ctx.fp.HardwareConcurrency)
}

func deviceMemorySnippet(ctx renderCtx) string {
	return fmt.Sprintf(`Object.defineProperty(Navigator.prototype, 'deviceMemory', { get: () => %d, configurable: true });`, ctx.fp.DeviceMemory)
}

func pluginsSnippet(renderCtx) string {
	return `Object.defineProperty(Navigator.prototype, 'plugins', {
  get: () => [
    { name: 'PDF Viewer', filename: 'internal-pdf-viewer' },
    { name: 'Chrome PDF Viewer', filename: 'internal-pdf-viewer' },
    { name: 'Chromium PDF Viewer', filename: 'internal-pdf-viewer' },
  ],
  configurable: true,
});`
}

func rtcFilterSnippet(renderCtx) string {
	return `(() => {
  const OrigRTCPeerConnection = window.RTCPeerConnection;
  if (!OrigRTCPeerConnection) return;
  window.RTCPeerConnection = function (...args) {
    const pc = new OrigRTCPeerConnection(...args);
    const origAddIceCandidate = pc.addEventListener.bind(pc);
    pc.addEventListener = (type, listener, ...rest) => {
      if (type !== 'icecandidate') return origAddIceCandidate(type, listener, ...rest);
      return origAddIceCandidate(type, (event) => {
        if (event.candidate && /host|srflx/.test(event.candidate.type || '')) return;
        listener(event);
      }, ...rest);
    };
    return pc;
  };
})();`
}

func batterySnippet(renderCtx) string {
	return `navigator.getBattery = () => Promise.resolve({
  charging: true,
  level: 0.97 + Math.random() * 0.03,
  chargingTime: 0,
  dischargingTime: Infinity,
  addEventListener: () => {},
});`
}

func localeTimezoneSnippet(ctx renderCtx) string {
	return fmt.Sprintf(`(() => {
  const tz = %q;
  const OrigDTF = Intl.DateTimeFormat;
  Intl.DateTimeFormat = function (locales, options) {
    return new OrigDTF(locales, Object.assign({}, options, { timeZone: options && options.timeZone ? options.timeZone : tz }));
  };
  Intl.DateTimeFormat.prototype = OrigDTF.prototype;
  Date.prototype.getTimezoneOffset = function () { return %d; };
})();`, ctx.fp.Timezone, timezoneOffsetMinutes(ctx.fp.Timezone))
}

func languageSnippet(ctx renderCtx) string {
	return fmt.Sprintf(`Object.defineProperty(Navigator.prototype, 'language', { get: () => %q, configurable: true });
Object.defineProperty(Navigator.prototype, 'languages', { get: () => [%q], configurable: true });`, ctx.fp.Locale, ctx.fp.Locale)
}

func timingJitterSnippet(renderCtx) string {
	return `(() => {
  const origNow = Performance.prototype.now;
  Performance.prototype.now = function () { return origNow.call(this) + Math.random() * 0.1; };
  const origDateNow = Date.now;
  Date.now = () => origDateNow() + Math.floor(Math.random() * 2);
})();`
}

func errorStackScrubSnippet(renderCtx) string {
	return `(() => {
  const origToString = Error.prototype.toString;
  const markers = /webdriver|puppeteer|playwright|selenium|cdc_/i;
  Object.defineProperty(Error.prototype, 'stack', {
    get() { return (this.__stack || '').split('\n').filter((l) => !markers.test(l)).join('\n'); },
    set(v) { this.__stack = v; },
    configurable: true,
  });
})();`
}

func screenConsistencySnippet(ctx renderCtx) string {
	return fmt.Sprintf(`Object.defineProperty(window, 'devicePixelRatio', { get: () => %g, configurable: true });
Object.defineProperty(Screen.prototype, 'width', { get: () => %d, configurable: true });
Object.defineProperty(Screen.prototype, 'height', { get: () => %d, configurable: true });
Object.defineProperty(window, 'outerWidth', { get: () => %d, configurable: true });
Object.defineProperty(window, 'outerHeight', { get: () => %d, configurable: true });`,
		ctx.vp.DPR, ctx.vp.Width, ctx.vp.Height, ctx.vp.Width, ctx.vp.Height+88)
}

func debuggerStripSnippet(renderCtx) string {
	return `(() => {
  const OrigFunction = Function;
  window.Function = new Proxy(OrigFunction, {
    construct(target, args) {
      const body = args[args.length - 1];
      if (typeof body === 'string') args[args.length - 1] = body.replace(/debugger;?/g, '');
      return Reflect.construct(target, args);
    },
  });
})();`
}

func functionToStringSnippet(renderCtx) string {
	return `(() => {
  const origToString = Function.prototype.toString;
  Function.prototype.toString = function () {
    if (this.__nativeSource) return this.__nativeSource;
    return origToString.call(this);
  };
})();`
}

func selfTopSnippet(renderCtx) string {
	return `try { Object.defineProperty(window, 'top', { get: () => window.self }); } catch (e) {}`
}

func performanceTimingSnippet(renderCtx) string {
	return `(() => {
  const base = Date.now();
  window.performance.timing = Object.assign({}, window.performance.timing, {
    navigationStart: base, fetchStart: base + 1, responseStart: base + 20, domComplete: base + 400,
  });
})();`
}

// timezoneOffsetMinutes returns a coarse UTC offset in minutes for the
// handful of IANA zones the account configuration commonly names. This
// is intentionally approximate (no DST table): the init script only
// needs internal consistency with Intl.DateTimeFormat's timeZone, not
// calendar-perfect accuracy.
func timezoneOffsetMinutes(tz string) int {
	offsets := map[string]int{
		"America/New_York":    240,
		"America/Chicago":     300,
		"America/Denver":      360,
		"America/Los_Angeles": 420,
		"Europe/London":       0,
		"Europe/Berlin":       -60,
		"Asia/Tokyo":          -540,
		"Australia/Sydney":    -600,
	}
	if v, ok := offsets[tz]; ok {
		return v
	}
	return 0
}
