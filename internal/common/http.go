package common

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type clientIPKey struct{}

// ClientIP returns the caller address used for rate limiting, idempotency keys and audit
// entries. It is the address resolved by RealIP when that middleware ran, otherwise the
// peer address. Forwarding headers are never read here.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	if addr, ok := parseAddr(r.RemoteAddr); ok {
		return addr.String()
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// RealIP resolves the client address once per request. Forwarding headers are honoured only
// when the peer is a trusted proxy, and X-Forwarded-For is walked right to left so the
// first untrusted hop wins. With no trusted proxies the peer address is used as is.
type RealIP struct {
	Trusted []netip.Prefix
}

// ParseTrustedProxies reads CIDRs or bare addresses such as "10.0.0.0/8" or "127.0.0.1".
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (m RealIP) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := m.Resolve(r); ip != "" {
			r = r.WithContext(context.WithValue(r.Context(), clientIPKey{}, ip))
		}
		next.ServeHTTP(w, r)
	})
}

// Resolve returns the client address for r under the trusted proxy list.
func (m RealIP) Resolve(r *http.Request) string {
	peer, ok := parseAddr(r.RemoteAddr)
	if !ok {
		return ""
	}
	if !m.trusts(peer) {
		return peer.String()
	}
	client := peer
	if hops := r.Header.Values("X-Forwarded-For"); len(hops) > 0 {
		chain := strings.Split(strings.Join(hops, ","), ",")
		for i := len(chain) - 1; i >= 0; i-- {
			hop, ok := parseAddr(chain[i])
			if !ok {
				break
			}
			client = hop
			if !m.trusts(hop) {
				break
			}
		}
		return client.String()
	}
	if xr, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
		return xr.String()
	}
	return client.String()
}

func (m RealIP) trusts(addr netip.Addr) bool {
	for _, p := range m.Trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parseAddr accepts a bare address or host:port.
func parseAddr(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
