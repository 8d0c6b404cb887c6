// Package urlpolicy decides which URLs the main window may load itself and
// which ones are handed to the operating system's browser.
package urlpolicy

import (
	"net/url"
	"strings"
)

// Action is the outcome of a navigation decision.
type Action int

const (
	// Allow loads the URL in the main window.
	Allow Action = iota
	// External denies in-window navigation and opens the URL with the OS handler.
	External
	// Deny drops the request entirely.
	Deny
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case External:
		return "external"
	case Deny:
		return "deny"
	}
	return "unknown"
}

// Policy matches hostnames against the application's domain suffixes.
type Policy struct {
	domains []string
}

func New(domains ...string) *Policy {
	p := &Policy{}
	for _, d := range domains {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d != "" {
			p.domains = append(p.domains, d)
		}
	}
	return p
}

// Domains returns the normalized suffix list.
func (p *Policy) Domains() []string {
	out := make([]string, len(p.domains))
	copy(out, p.domains)
	return out
}

// MatchHost reports whether host is one of the domains or a subdomain of one.
// "evilkosmi.io" does not match "kosmi.io".
func (p *Policy) MatchHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, d := range p.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsAppURL reports whether raw is an http(s) URL on an application domain.
func (p *Policy) IsAppURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	return p.MatchHost(u.Hostname())
}

// Decide applies the navigation policy to a URL the page (or the user) wants
// to open. Anything that is not an application URL goes to the OS handler,
// including URLs that fail to parse; only empty and script URLs are dropped.
func (p *Policy) Decide(raw string) Action {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Deny
	}
	if p.IsAppURL(raw) {
		return Allow
	}
	if u, err := url.Parse(raw); err == nil {
		switch strings.ToLower(u.Scheme) {
		case "javascript", "data", "file", "blob":
			return Deny
		}
	}
	return External
}
