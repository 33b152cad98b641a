package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"

	"github.com/jamesprial/gqlfetch/internal/safety"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultMaxBody      = 1 << 20
	maxRedirects        = 10
)

var errFetchDisabled = errors.New("request: fetching is disabled")

// Fetcher performs the GET behind the request field. Every URL, including
// redirect targets, must pass the host filter, and so must every address
// the transport dials after name resolution.
type Fetcher struct {
	client  *http.Client
	filter  *safety.HostFilter
	maxBody int64
}

// NewFetcher returns a Fetcher using filter. A nil filter allows all hosts.
func NewFetcher(filter *safety.HostFilter, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	f := &Fetcher{filter: filter, maxBody: defaultMaxBody}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control:   f.checkDial,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	f.client = &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			_, err := f.filter.CheckURL(req.URL.String())
			return err
		},
	}
	return f
}

// checkDial runs on the resolved address, so host names that resolve to a
// refused address are caught as well.
func (f *Fetcher) checkDial(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("request: dial %q: %w", address, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("request: dial %q: %w", address, err)
	}
	return f.filter.CheckAddr(addr)
}

// Fetch GETs rawURL and returns the body as text, truncated to the body
// limit. Non-2xx responses still return their body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := f.filter.CheckURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("request: create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", fmt.Errorf("request: read body: %w", err)
	}
	return string(body), nil
}
