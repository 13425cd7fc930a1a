package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/searchwise/search-gateway/config"
)

var (
	secureFlagPattern = regexp.MustCompile(`(?i); ?Secure`)
	sameSitePattern   = regexp.MustCompile(`(?i); ?SameSite=(Strict|Lax)`)

	scriptSrcPattern  = regexp.MustCompile(`script-src[^;]*`)
	connectSrcPattern = regexp.MustCompile(`connect-src 'self'`)
	styleSrcPattern   = regexp.MustCompile(`style-src 'self'`)

	// 4get serves its search form and result links under /web; the gateway
	// exposes them as /search. SearXNG paths already line up with ours.
	fourgetActionPattern = regexp.MustCompile(`(?i)action=["']/web["']`)
	fourgetHrefPattern   = regexp.MustCompile(`(?i)href=["']/web\?s=`)
)

// skipped when copying upstream response headers. Content-Length is dropped
// because rewritten bodies change size.
var skipResponseHeaders = map[string]bool{
	"Transfer-Encoding": true,
	"Connection":        true,
	"Content-Length":    true,
}

// Rewriter translates upstream responses so every client-visible reference
// targets the gateway instead of the upstream origin.
type Rewriter struct {
	upstream      *url.URL
	engineName    string
	modifyCSP     bool
	trustProxy    bool
	domainPattern *regexp.Regexp
}

func NewRewriter(cfg *config.Config) (*Rewriter, error) {
	u, err := url.Parse(cfg.EngineURL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine URL: %w", err)
	}
	return &Rewriter{
		upstream:      u,
		engineName:    cfg.EngineName,
		modifyCSP:     cfg.ModifyCSP,
		trustProxy:    cfg.TrustProxy,
		domainPattern: regexp.MustCompile(`(?i)(domain=)` + regexp.QuoteMeta(u.Hostname())),
	}, nil
}

// ExternalBaseURL derives the gateway-visible base URL for this request.
// Recomputed per request; it depends on the caller's host header.
func (rw *Rewriter) ExternalBaseURL(r *http.Request) string {
	host := r.Host
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	if rw.trustProxy {
		if fwdHost := r.Header.Get("X-Forwarded-Host"); fwdHost != "" {
			host = fwdHost
		}
		if fwdProto := r.Header.Get("X-Forwarded-Proto"); fwdProto != "" {
			proto = fwdProto
		}
	}
	return proto + "://" + host
}

// CopyHeaders copies upstream response headers onto the client response,
// rewriting Set-Cookie and (optionally) Content-Security-Policy. Location is
// skipped; redirects substitute it separately after the copy so ordering is
// deterministic.
func (rw *Rewriter) CopyHeaders(dst http.Header, src http.Header, externalURL string) {
	for key, values := range src {
		canonical := http.CanonicalHeaderKey(key)
		if skipResponseHeaders[canonical] || canonical == "Location" {
			continue
		}

		switch canonical {
		case "Set-Cookie":
			for _, cookie := range values {
				dst.Add("Set-Cookie", rw.RewriteCookie(cookie, externalURL))
			}
		case "Content-Security-Policy":
			for _, v := range values {
				if rw.modifyCSP {
					v = rewriteCSP(v)
				}
				dst.Add(canonical, v)
			}
		default:
			for _, v := range values {
				dst.Add(canonical, v)
			}
		}
	}
}

// RewriteCookie points the cookie's domain at the gateway, strips Secure when
// the gateway is reached over plain HTTP (browsers drop Secure cookies on
// HTTP, breaking session continuity), and strips SameSite=Strict|Lax so the
// cookie survives the proxy boundary.
func (rw *Rewriter) RewriteCookie(cookie, externalURL string) string {
	external, err := url.Parse(externalURL)
	if err != nil {
		return cookie
	}

	out := rw.domainPattern.ReplaceAllString(cookie, "${1}"+external.Hostname())
	if external.Scheme != "https" {
		out = secureFlagPattern.ReplaceAllString(out, "")
	}
	return sameSitePattern.ReplaceAllString(out, "")
}

// RewriteLocation resolves a redirect target and points it back at the
// gateway when it references the upstream origin.
func (rw *Rewriter) RewriteLocation(location, externalURL string) string {
	if strings.HasPrefix(location, "/") {
		location = rw.upstream.String() + location
	}
	origin := rw.upstream.Scheme + "://" + rw.upstream.Host
	if strings.Contains(location, origin) {
		location = strings.Replace(location, origin, externalURL, 1)
	}
	return location
}

func rewriteCSP(csp string) string {
	csp = scriptSrcPattern.ReplaceAllString(csp, "script-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'")
	csp = connectSrcPattern.ReplaceAllString(csp, "connect-src 'self' https://cdn.jsdelivr.net")
	return styleSrcPattern.ReplaceAllString(csp, "style-src 'self' 'unsafe-inline'")
}

// RewriteBody textually rewrites in-document action/href attributes to the
// gateway's path and parameter names. Best-effort by design; it trades
// edge-case markup for not running a DOM pass on every response.
func (rw *Rewriter) RewriteBody(html string) string {
	if rw.engineName == config.Engine4get {
		html = fourgetActionPattern.ReplaceAllString(html, `action="/search"`)
		html = fourgetHrefPattern.ReplaceAllString(html, `href="/search?s=`)
	}
	return html
}
