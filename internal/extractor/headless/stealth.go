package headless

import (
	"context"
	"math/rand"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// fingerprint is the identity one tab presents to the site. Rotating it after
// a challenge gives the next attempt a clean slate.
type fingerprint struct {
	userAgent           string
	platform            string
	hardwareConcurrency int
}

var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

var platformPool = []string{"Win32", "MacIntel", "Linux x86_64"}

var concurrencyPool = []int{4, 8, 12, 16}

func randomFingerprint() fingerprint {
	return fingerprint{
		userAgent:           userAgentPool[rand.Intn(len(userAgentPool))],
		platform:            platformPool[rand.Intn(len(platformPool))],
		hardwareConcurrency: concurrencyPool[rand.Intn(len(concurrencyPool))],
	}
}

// blockedURLPatterns trims page weight: nothing the extractor reads lives in
// images, fonts, stylesheets, or analytics beacons.
var blockedURLPatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg",
	"*.woff", "*.woff2", "*.ttf", "*.css",
	"*google-analytics.com*", "*googletagmanager.com*",
	"*doubleclick.net*", "*facebook.net*", "*hotjar.com*",
}

const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', {
  get: () => [{ name: 'Chrome PDF Viewer' }, { name: 'Native Client' }],
});
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => __HWC__ });
Object.defineProperty(navigator, 'platform', { get: () => '__PLATFORM__' });
const origGetParameter = WebGLRenderingContext.prototype.getParameter;
WebGLRenderingContext.prototype.getParameter = function (param) {
  if (param === 37445) return 'Intel Inc.';
  if (param === 37446) return 'Intel Iris OpenGL Engine';
  return origGetParameter.call(this, param);
};
window.chrome = window.chrome || { runtime: {} };
`

// stealthTasks returns the per-tab setup: network interception, resource
// blocking, UA override, and the new-document script that masks automation
// signals before any site code runs.
func stealthTasks(fp fingerprint) chromedp.Tasks {
	script := expandStealthScript(fp)
	return chromedp.Tasks{
		network.Enable(),
		network.SetBlockedURLs(blockedURLPatterns),
		emulation.SetUserAgentOverride(fp.userAgent),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
	}
}

func expandStealthScript(fp fingerprint) string {
	script := stealthScript
	script = strings.ReplaceAll(script, "__HWC__", strconv.Itoa(fp.hardwareConcurrency))
	script = strings.ReplaceAll(script, "__PLATFORM__", fp.platform)
	return script
}
