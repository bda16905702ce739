package middleware

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// proxyHeaders are consulted after X-Forwarded-For, in order.
var proxyHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
}

// ClientIP returns the first public address found in proxy headers or the
// peer address. Without one it falls back to the raw peer address, which the
// geo lookup will then skip.
func ClientIP(c *fiber.Ctx) string {
	if ip := selectPreferredIP(strings.Split(c.Get(fiber.HeaderXForwardedFor), ",")); ip != "" {
		return ip
	}

	for _, header := range proxyHeaders {
		if value := c.Get(header); value != "" {
			if ip := selectPreferredIP([]string{value}); ip != "" {
				return ip
			}
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if ip := selectPreferredIP(parseForwardedHeader(forwarded)); ip != "" {
			return ip
		}
	}

	for _, raw := range []string{c.Context().RemoteAddr().String(), c.IP()} {
		if ip, parsed := normalizeIP(raw); parsed != nil && !parsed.IsUnspecified() {
			return ip
		}
	}
	return ""
}

// isPrivateIP covers RFC 1918, RFC 4193, link-local and loopback, including
// IPv4-mapped IPv6 forms.
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}

// selectPreferredIP returns the first public IPv4 in values, else the first
// public IPv6, else "".
func selectPreferredIP(values []string) string {
	var ipv6Fallback string

	for _, raw := range values {
		clean, parsed := normalizeIP(raw)
		if parsed == nil || isPrivateIP(parsed) {
			continue
		}
		if parsed.To4() != nil {
			return clean
		}
		if ipv6Fallback == "" {
			ipv6Fallback = clean
		}
	}

	return ipv6Fallback
}

// normalizeIP strips quotes, ports, brackets and zones, and unmaps
// IPv4-mapped addresses.
func normalizeIP(raw string) (string, net.IP) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"")
	if clean == "" {
		return "", nil
	}

	if percent := strings.IndexByte(clean, '%'); percent != -1 {
		clean = clean[:percent]
	}

	var addr netip.Addr
	if ap, err := netip.ParseAddrPort(clean); err == nil {
		addr = ap.Addr()
	} else if a, err := netip.ParseAddr(strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")); err == nil {
		addr = a
	} else if host, _, err := net.SplitHostPort(clean); err == nil {
		return normalizeIP(host)
	} else {
		return "", nil
	}

	addr = addr.Unmap()
	s := addr.String()
	return s, net.ParseIP(s)
}

// parseForwardedHeader extracts the for= values of an RFC 7239 header.
func parseForwardedHeader(header string) []string {
	var candidates []string
	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if len(part) > 4 && strings.EqualFold(part[:4], "for=") {
				candidates = append(candidates, part[4:])
			}
		}
	}
	return candidates
}
