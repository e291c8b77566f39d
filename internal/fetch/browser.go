package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const defaultBrowserTimeout = 60 * time.Second

// BrowserOptions defines parameters for a headless-Chromium page fetch.
type BrowserOptions struct {
	// URL to load.
	URL string

	// CookieHeader is the raw session cookie header; its pairs are
	// injected into the browser before navigation.
	CookieHeader string

	// WaitSelector, when set, is waited on before the DOM is read.
	// Defaults to "body".
	WaitSelector string

	// Timeout bounds the entire operation.
	Timeout time.Duration
}

// FetchWithBrowser loads a page in headless Chromium and returns the
// rendered document HTML. Used when the plain HTTP client lands on a
// script-gated page; the session cookies still come from the caller.
func FetchWithBrowser(parentCtx context.Context, opts BrowserOptions) (Result, error) {
	if opts.URL == "" {
		return Result{}, fmt.Errorf("browser fetch: URL is required")
	}
	if strings.TrimSpace(opts.CookieHeader) == "" {
		return Result{}, fmt.Errorf("browser fetch: cookie header is required")
	}
	if opts.WaitSelector == "" {
		opts.WaitSelector = "body"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultBrowserTimeout
	}

	target, err := url.Parse(opts.URL)
	if err != nil {
		return Result{}, fmt.Errorf("browser fetch: invalid URL: %w", err)
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var pageHTML string
	tasks := chromedp.Tasks{
		network.Enable(),
		setCookies(opts.CookieHeader, target.Hostname()),
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady(opts.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &pageHTML, chromedp.ByQuery),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return Result{}, &Error{Kind: KindNetwork, FinalURL: opts.URL, Err: fmt.Errorf("browser fetch: %w", err)}
	}

	var finalURL string
	if err := chromedp.Run(ctx, chromedp.Location(&finalURL)); err != nil || finalURL == "" {
		finalURL = opts.URL
	}
	if looksLikeLogin(finalURL) {
		return Result{}, &Error{
			Kind:     KindSession,
			FinalURL: finalURL,
			Err:      fmt.Errorf("browser fetch ended on the login page; session cookie is invalid or expired"),
		}
	}

	return Result{Body: pageHTML, FinalURL: finalURL, ContentType: "text/html"}, nil
}

// setCookies injects every name=value pair of the cookie header into the
// browser for the target host.
func setCookies(cookieHeader, host string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, pair := range strings.Split(cookieHeader, ";") {
			name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || name == "" {
				continue
			}
			err := network.SetCookie(name, value).
				WithDomain(host).
				WithPath("/").
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %q: %w", name, err)
			}
		}
		return nil
	})
}
