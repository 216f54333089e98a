package simhost

import (
	"net/url"
	"strings"
	"sync"

	"github.com/liuxd6825/marionette/api"
)

// Cookie is a cookie stored by the application.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	Expiry   int64
}

func (c Cookie) value() map[string]interface{} {
	return map[string]interface{}{
		"name":     c.Name,
		"value":    c.Value,
		"path":     c.Path,
		"domain":   c.Domain,
		"secure":   c.Secure,
		"httpOnly": c.HTTPOnly,
		"expiry":   c.Expiry,
	}
}

// cookieJar is shared by every tab of the application.
type cookieJar struct {
	mu      sync.Mutex
	cookies []Cookie
}

func newCookieJar() *cookieJar {
	return &cookieJar{}
}

// set stores c, replacing the cookie of the same name, domain and path.
func (j *cookieJar) set(c Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i, o := range j.cookies {
		if o.Name == c.Name && o.Domain == c.Domain && o.Path == c.Path {
			j.cookies[i] = c
			return
		}
	}
	j.cookies = append(j.cookies, c)
}

// visible returns the cookies a document of host below path sees. The
// host matches a cookie domain, or a domain it is a subdomain of.
func (j *cookieJar) visible(host, path string) []Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []Cookie
	for _, c := range j.cookies {
		if domainMatch(host, c.Domain) && strings.HasPrefix(path, c.Path) {
			out = append(out, c)
		}
	}
	return out
}

// remove deletes the visible cookies accepted by match.
func (j *cookieJar) remove(host, path string, match func(c Cookie) bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	kept := j.cookies[:0]
	for _, c := range j.cookies {
		if domainMatch(host, c.Domain) && strings.HasPrefix(path, c.Path) && match(c) {
			continue
		}
		kept = append(kept, c)
	}
	j.cookies = kept
}

func domainMatch(host, domain string) bool {
	domain = strings.TrimPrefix(domain, ".")
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// cookieScope returns the host and path of the current document.
func (a *agent) cookieScope() (host, path string, err error) {
	u, err := url.Parse(a.top().URL())
	if err != nil || u.Hostname() == "" {
		return "", "", api.NewError(api.InvalidArgument, "You may only set cookies on html documents")
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return u.Hostname(), path, nil
}

func addCookie(a *agent, _ string, p api.Params) (interface{}, error) {
	host, _, err := a.cookieScope()
	if err != nil {
		return nil, err
	}
	cp := p.Map("cookie")
	if cp == nil {
		return nil, api.NewError(api.InvalidArgument, "Missing cookie")
	}
	c := Cookie{
		Name:     cp.StringOr("name", ""),
		Value:    cp.StringOr("value", ""),
		Path:     cp.StringOr("path", "/"),
		Domain:   cp.StringOr("domain", host),
		Secure:   cp.Bool("secure"),
		HTTPOnly: cp.Bool("httpOnly"),
	}
	if c.Name == "" {
		return nil, api.NewError(api.InvalidArgument, "Cookie name is required")
	}
	if expiry, err := api.ToInt(cp["expiry"]); err == nil {
		c.Expiry = expiry
	}
	if !domainMatch(host, c.Domain) {
		return nil, api.NewError(api.InvalidArgument, "You may only set cookies for the current domain")
	}
	a.host.cookies.set(c)
	return replyOK, nil
}

func getCookies(a *agent, _ string, _ api.Params) (interface{}, error) {
	host, path, err := a.cookieScope()
	if err != nil {
		return []interface{}{}, nil //nolint:nilerr
	}
	cookies := a.host.cookies.visible(host, path)
	out := make([]interface{}, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, c.value())
	}
	return out, nil
}

func deleteCookie(a *agent, _ string, p api.Params) (interface{}, error) {
	host, path, err := a.cookieScope()
	if err != nil {
		return nil, err
	}
	name := p.StringOr("name", "")
	a.host.cookies.remove(host, path, func(c Cookie) bool { return c.Name == name })
	return replyOK, nil
}

func deleteAllCookies(a *agent, _ string, _ api.Params) (interface{}, error) {
	host, path, err := a.cookieScope()
	if err != nil {
		return nil, err
	}
	a.host.cookies.remove(host, path, func(Cookie) bool { return true })
	return replyOK, nil
}
