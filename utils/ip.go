package utils

import (
	"net"
	"strings"
)

// clientIPHeaders are consulted in order before falling back to the connection address.
var clientIPHeaders = []string{
	"CF-Connecting-IP",
	"Client-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"X-Cluster-Client-IP",
	"Forwarded-For",
	"Forwarded",
}

// ResolveClientIP returns the first valid address found in the proxy headers, then remoteAddr.
// Only the first element of a comma separated header is considered. Returns "" when nothing parses.
func ResolveClientIP(header func(string) string, remoteAddr string) string {
	for _, name := range clientIPHeaders {
		value := header(name)
		if value == "" {
			continue
		}
		first := strings.TrimSpace(strings.Split(value, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return ""
}

// AnonymizeIP zeroes the last octet of an IPv4 address or the last 80 bits of an IPv6 address.
func AnonymizeIP(raw string) string {
	ip := net.ParseIP(raw)
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return ip.Mask(net.CIDRMask(48, 128)).String()
}
