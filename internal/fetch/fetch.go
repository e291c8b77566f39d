// Package fetch retrieves Lectio HTML pages over an existing authenticated
// session. It never performs a login itself; the caller supplies a valid
// cookie header. Failures are classified so the caller can tell an expired
// session from a structural change from a transient network problem.
package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	appLog "github.com/ktmouritzen-byte/Lectioskema/internal/log"
)

// Kind classifies a fetch failure.
type Kind string

const (
	// KindNetwork covers transport-level failures (DNS, refused,
	// timeout); usually transient.
	KindNetwork Kind = "network"
	// KindHTTP covers non-200 responses.
	KindHTTP Kind = "http"
	// KindSession covers responses that landed on the login page,
	// meaning the cookie is invalid or expired.
	KindSession Kind = "session"
)

// Error carries enough response metadata to act on a failed fetch.
type Error struct {
	Kind        Kind
	Status      int
	FinalURL    string
	ContentType string
	Err         error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch failed (%s)", e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Result is a successfully fetched page.
type Result struct {
	Body        string
	FinalURL    string
	Status      int
	ContentType string
}

// Client fetches pages with browser-like headers and a bounded timeout.
type Client struct {
	http *http.Client
}

// NewClient returns a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves one page. cookieHeader is the raw Cookie header of an
// authenticated browser session and is required.
func (c *Client) Fetch(ctx context.Context, pageURL, cookieHeader string) (Result, error) {
	if strings.TrimSpace(cookieHeader) == "" {
		return Result{}, errors.New("cookie header is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Result{}, err
	}

	// Look like a normal browser request.
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "da,en-US;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Cookie", strings.TrimSpace(cookieHeader))

	appLog.Info("fetching page", "url", RedactURL(pageURL))

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, &Error{Kind: KindNetwork, FinalURL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	contentType := resp.Header.Get("Content-Type")

	// An expired session redirects to the login page, typically with 200.
	if looksLikeLogin(finalURL) {
		return Result{}, &Error{
			Kind:        KindSession,
			Status:      resp.StatusCode,
			FinalURL:    finalURL,
			ContentType: contentType,
			Err:         errors.New("request ended on the login page; session cookie is invalid or expired"),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, &Error{
			Kind:        KindHTTP,
			Status:      resp.StatusCode,
			FinalURL:    finalURL,
			ContentType: contentType,
			Err:         errors.New(resp.Status),
		}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return Result{}, &Error{
			Kind:        KindHTTP,
			Status:      resp.StatusCode,
			FinalURL:    finalURL,
			ContentType: contentType,
			Err:         err,
		}
	}

	return Result{
		Body:        body,
		FinalURL:    finalURL,
		Status:      resp.StatusCode,
		ContentType: contentType,
	}, nil
}

// decodeBody handles gzip (we disable transparent decompression by setting
// Accept-Encoding ourselves) and charset conversion to UTF-8.
func decodeBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	decoded, err := charset.NewReader(reader, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("charset decode: %w", err)
	}

	raw, err := io.ReadAll(decoded)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func looksLikeLogin(finalURL string) bool {
	return strings.Contains(strings.ToLower(finalURL), "login")
}

// RedactURL hides path and query of a URL for logging; schedule URLs embed
// school and student identifiers.
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "https://...(redacted)"
	}

	j := i + 3
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
