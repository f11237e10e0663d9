// Package fingerprint derives a pseudonymous client key from the request's
// IP address and user agent, optionally scoped to a user. It is used to
// bucket rate limits and to correlate abuse; it is not an identity.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

const delimiter = ":"

// Generate hashes ip, userAgent and (when non-empty) userID into a
// lower-case hex SHA-256 digest. Absent values are hashed as empty strings.
func Generate(ip, userAgent, userID string) string {
	parts := []string{ip, userAgent}
	if userID != "" {
		parts = append(parts, userID)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, delimiter)))
	return hex.EncodeToString(sum[:])
}

// FromRequest computes the fingerprint of r. Pass an empty userID for
// anonymous requests.
func FromRequest(r *http.Request, userID string) string {
	return Generate(ClientIP(r), r.UserAgent(), userID)
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// never read here; RealIP middleware rewrites RemoteAddr for requests that
// arrive through a trusted proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ProxyResolver finds the originating client address of requests relayed by
// trusted reverse proxies.
type ProxyResolver struct {
	trusted []netip.Prefix
}

// NewProxyResolver parses trusted proxy networks. Entries are CIDR prefixes
// or single addresses.
func NewProxyResolver(trusted []string) (*ProxyResolver, error) {
	p := &ProxyResolver{}
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("parsing trusted proxy %q: %w", entry, err)
			}
			p.trusted = append(p.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("parsing trusted proxy %q: %w", entry, err)
		}
		p.trusted = append(p.trusted, prefix.Masked())
	}
	return p, nil
}

// ClientIP returns the client address of r. Forwarding headers are honoured
// only when the direct peer is a trusted proxy: CF-Connecting-IP first, then
// the right-most untrusted X-Forwarded-For hop, then X-Real-IP. Any other
// request resolves to its peer address.
func (p *ProxyResolver) ClientIP(r *http.Request) string {
	peer := ClientIP(r)
	if !p.isTrusted(peer) {
		return peer
	}

	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); validIP(ip) {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if !validIP(hop) {
				break
			}
			if !p.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); validIP(ip) {
		return ip
	}
	return peer
}

func (p *ProxyResolver) isTrusted(ip string) bool {
	if p == nil || len(p.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func validIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}
