package fetcher

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// Page is a fetched document with its body decoded to UTF-8. FinalURL is
// the address after redirects.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       string
}

// HTTPFetcher retrieves pages with a single GET per URL. Retries are left
// to callers.
type HTTPFetcher struct {
	client *http.Client
	opts   Options
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "pagesift/1.0"
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 512 * 1024
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts: opts,
	}
}

// Fetch GETs the URL and returns the page. Transport failures and non-2xx
// statuses come back as *Error; the body of error-status responses is not
// read.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: create request for %s", rawURL)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: classify(err), URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind: KindNetwork,
			URL:  rawURL,
			Err:  eris.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	// Decode to UTF-8 using the Content-Type header and meta sniffing.
	limited := io.LimitReader(resp.Body, f.opts.MaxBodyBytes)
	decoded, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: eris.Wrap(err, "detect charset")}
	}
	body, err := io.ReadAll(decoded)
	if err != nil {
		return nil, &Error{Kind: classify(err), URL: rawURL, Err: err}
	}

	zap.L().Debug("fetched page",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	return &Page{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}, nil
}
