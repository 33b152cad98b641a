// Package safety guards what the GraphQL server may reach and records what
// its tools were asked to do.
package safety

import (
	"fmt"
	"net/netip"
	"net/url"
	"path/filepath"
	"strings"
)

// HostFilter controls which hosts the server's request field may fetch,
// using an allowlist and a denylist of glob patterns (filepath.Match syntax)
// matched against the lowercased hostname without port. IP literals are
// matched in canonical form, so ::ffff:127.0.0.1 matches 127.0.0.1.
//
// Rules:
//   - If both lists are empty (or nil), every host name is allowed.
//   - Denylist always takes priority over the allowlist.
//   - If a non-empty allowlist is present, a host must match at least one
//     allowlist pattern.
//   - Loopback, private, link-local and unspecified addresses are refused
//     unless AllowPrivateNetworks is set or the address itself is
//     allowlisted. This applies to IP literals and to dialled addresses.
type HostFilter struct {
	allowlist    []string
	denylist     []string
	allowPrivate bool
}

// FilterOption configures a HostFilter.
type FilterOption func(*HostFilter)

// AllowPrivateNetworks lets the filter pass loopback and private addresses.
func AllowPrivateNetworks() FilterOption {
	return func(f *HostFilter) { f.allowPrivate = true }
}

// NewHostFilter constructs a HostFilter. Either list may be nil or empty.
func NewHostFilter(allowlist, denylist []string, opts ...FilterOption) *HostFilter {
	f := &HostFilter{
		allowlist: lowerAll(allowlist),
		denylist:  lowerAll(denylist),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsAllowed reports whether host is permitted by this filter. A nil filter
// allows everything.
func (f *HostFilter) IsAllowed(host string) bool {
	if f == nil {
		return true
	}
	host = normalizeHost(host)

	for _, pattern := range f.denylist {
		if matchGlob(pattern, host) {
			return false
		}
	}

	if len(f.allowlist) == 0 {
		return true
	}

	for _, pattern := range f.allowlist {
		if matchGlob(pattern, host) {
			return true
		}
	}

	return false
}

// CheckURL parses rawURL and returns an error unless it is an absolute
// http(s) URL whose host passes IsAllowed.
func (f *HostFilter) CheckURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("url %q has no host", rawURL)
	}
	if !f.IsAllowed(u.Hostname()) {
		return nil, fmt.Errorf("host %q is not allowed", u.Hostname())
	}
	if addr, err := netip.ParseAddr(u.Hostname()); err == nil {
		if err := f.CheckAddr(addr); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// CheckAddr returns an error unless addr, an address about to be dialled,
// passes the denylist and the private network rule. The allowlist is not
// consulted for host names here, only for addresses listed literally.
func (f *HostFilter) CheckAddr(addr netip.Addr) error {
	if f == nil {
		return nil
	}
	addr = addr.Unmap().WithZone("")
	s := addr.String()

	for _, pattern := range f.denylist {
		if matchGlob(pattern, s) {
			return fmt.Errorf("address %s is not allowed", s)
		}
	}
	if f.allowPrivate || !isPrivate(addr) {
		return nil
	}
	for _, pattern := range f.allowlist {
		if matchGlob(pattern, s) {
			return nil
		}
	}
	return fmt.Errorf("address %s is not allowed: private network", s)
}

func isPrivate(addr netip.Addr) bool {
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsUnspecified()
}

// normalizeHost lowercases host, drops a trailing root dot, and rewrites IP
// literals to their canonical form.
func normalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().WithZone("").String()
	}
	return host
}

// matchGlob returns true when name matches the given glob pattern.
// filepath.Match errors (malformed patterns) are treated as non-matching.
func matchGlob(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	if err != nil {
		return false
	}
	return matched
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
