package http

import (
	"net"
	"net/http"
	"strings"
)

// AddrResolverConfig configures the client-address resolver.
type AddrResolverConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ResolveClientAddr extracts the originating client address from the
// request. X-Forwarded-For and X-Real-IP are honored only when the
// request arrives from a trusted proxy, so a direct client cannot spoof
// the address used to scope login rate limiting.
func ResolveClientAddr(r *http.Request, cfg *AddrResolverConfig) string {
	remoteIP := remoteAddr(r)

	if cfg != nil && isTrustedProxy(remoteIP, cfg.TrustedProxies) {
		// X-Forwarded-For may contain multiple hops; take the first
		// valid address.
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if net.ParseIP(ip) != nil {
					return ip
				}
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
		}
	}

	return remoteIP
}

// remoteAddr extracts the IP from RemoteAddr, dropping the port.
func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// isTrustedProxy checks if an address is within any trusted proxy CIDR range.
func isTrustedProxy(ip string, trustedProxies []string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // skip invalid ranges
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}
