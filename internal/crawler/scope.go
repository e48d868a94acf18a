package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Scope restricts a crawl to a set of registrable domains. By default only
// the seed's registrable domain is allowed, so a crawl of docs.example.com
// may reach www.example.com but never an unrelated host.
type Scope struct {
	domains map[string]struct{}
}

// NewScope builds a scope from the seed URL plus any extra domains.
func NewScope(seed string, extraDomains ...string) (*Scope, error) {
	s := &Scope{domains: make(map[string]struct{})}

	root, err := registrableDomain(seed)
	if err != nil {
		return nil, fmt.Errorf("resolving seed scope: %w", err)
	}
	s.domains[root] = struct{}{}

	for _, d := range extraDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if reg, err := publicsuffix.EffectiveTLDPlusOne(d); err == nil {
			d = reg
		}
		s.domains[d] = struct{}{}
	}
	return s, nil
}

// Check returns nil if the URL's registrable domain is allowed, and
// ErrOutOfScope otherwise.
func (s *Scope) Check(raw string) error {
	root, err := registrableDomain(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfScope, err)
	}
	if _, ok := s.domains[root]; !ok {
		return fmt.Errorf("%w: %s", ErrOutOfScope, root)
	}
	return nil
}

// Allows is Check as a predicate, for link filtering.
func (s *Scope) Allows(raw string) bool {
	return s.Check(raw) == nil
}

// normalizeURL canonicalizes a URL for the visited set: scheme and host
// are lowercased and the fragment dropped, so one page cannot be fetched
// twice under different spellings. Paths stay untouched, they are
// case-sensitive.
func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}

func registrableDomain(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	reg, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Hosts without a public suffix (localhost, bare IPs) scope to
		// themselves.
		return host, nil
	}
	return reg, nil
}
