package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRequiresCookieHeader(t *testing.T) {
	c := NewClient(time.Second)
	_, err := c.Fetch(context.Background(), "https://example.invalid/", "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cookie header")
}

func TestFetchDecompressesGzip(t *testing.T) {
	page := "<html><body><table id='m_Content_SkemaMedNavigation_skema_skematabel'></table></body></html>"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a=b", r.Header.Get("Cookie"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(page))
		_ = gz.Close()
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	res, err := c.Fetch(context.Background(), srv.URL, "a=b")
	require.NoError(t, err)
	assert.Contains(t, res.Body, "m_Content_SkemaMedNavigation_skema_skematabel")
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestFetchClassifiesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	_, err := c.Fetch(context.Background(), srv.URL, "a=b")
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindHTTP, fe.Kind)
	assert.Equal(t, http.StatusForbidden, fe.Status)
	assert.NotEmpty(t, fe.FinalURL)
}

func TestFetchClassifiesLoginRedirectAsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login.aspx", http.StatusFound)
	})
	mux.HandleFunc("/login.aspx", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>log ind</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(5 * time.Second)
	_, err := c.Fetch(context.Background(), srv.URL+"/schedule", "a=b")
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindSession, fe.Kind)
	assert.Contains(t, fe.FinalURL, "login.aspx")
}

func TestFetchClassifiesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(time.Second)
	_, err := c.Fetch(context.Background(), url, "a=b")
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindNetwork, fe.Kind)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://www.lectio.dk/...(redacted)",
		RedactURL("https://www.lectio.dk/lectio/681/SkemaAvanceret.aspx?elevid=123"))
	assert.Equal(t, "https://...(redacted)", RedactURL("not a url"))
}
