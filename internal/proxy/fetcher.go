package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Stable desktop User-Agent so upstream does not reject proxied traffic as
// non-browser.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const fetchTimeout = 30 * time.Second

// ErrUpstream marks network/timeout failures against the search engine.
// Fetches are never retried here; proxied requests are not generally safe to
// retry blindly.
var ErrUpstream = errors.New("upstream fetch failed")

// hop-by-hop headers never forwarded upstream. Accept-Encoding is dropped so
// the transport negotiates compression itself and hands back decoded bodies.
var skipRequestHeaders = map[string]bool{
	"Host":              true,
	"Connection":        true,
	"Transfer-Encoding": true,
	"Accept-Encoding":   true,
}

// Fetcher issues one upstream request per inbound request, forwarding method,
// query, body and a filtered header set. Redirects are surfaced to the
// caller, never followed.
type Fetcher struct {
	upstream *url.URL
	client   *http.Client
}

func NewFetcher(engineURL string) (*Fetcher, error) {
	u, err := url.Parse(engineURL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine URL: %w", err)
	}
	return &Fetcher{
		upstream: u,
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Forward proxies the inbound request to the upstream origin at the given
// path and query. The caller owns the response body.
func (f *Fetcher) Forward(r *http.Request, path string, query url.Values) (*http.Response, error) {
	target := *f.upstream
	target.Path = path
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}

	for key, values := range r.Header {
		if skipRequestHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Host = f.upstream.Host
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return resp, nil
}

var binarySuffixes = []string{".ico", ".png", ".jpg", ".jpeg", ".gif", ".svg"}

// IsBinary detects image/asset requests by path or Accept header so their
// payloads are transferred opaquely rather than decoded as text.
func IsBinary(path, accept string) bool {
	if strings.Contains(path, "/favicon") ||
		strings.Contains(path, "/banner/") ||
		strings.Contains(path, "/proxy") {
		return true
	}
	for _, suffix := range binarySuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return strings.Contains(accept, "image/")
}
