package clientip

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
)

var trusted atomic.Pointer[[]netip.Prefix]

// SetTrustedProxies replaces the proxies whose X-Forwarded-For header is
// honoured. Entries are CIDRs or bare addresses. An empty list trusts nobody.
func SetTrustedProxies(entries []string) error {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			addr, err := netip.ParseAddr(e)
			if err != nil {
				return fmt.Errorf("invalid trusted proxy %q: %w", e, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(e)
		if err != nil {
			return fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		prefixes = append(prefixes, p.Masked())
	}
	trusted.Store(&prefixes)
	return nil
}

func isTrusted(ip string) bool {
	list := trusted.Load()
	if list == nil || len(*list) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range *list {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// RealClientIP returns the address rate limits and logs are keyed by. The
// socket peer is used unless it is a trusted proxy, in which case
// X-Forwarded-For is walked right to left to the first untrusted hop.
func RealClientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if !isTrusted(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !isTrusted(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return strings.TrimSpace(host)
}
