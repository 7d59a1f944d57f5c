// Package ipfilter restricts HTTP endpoints to a configured set of
// source addresses.
package ipfilter

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Filter holds the allowed networks. An empty filter allows everything.
type Filter struct {
	allowed []netip.Prefix
	logger  *slog.Logger
}

// New builds a filter from a list of IPs and CIDRs. Malformed entries are
// logged and skipped rather than failing startup.
func New(allowedIPs []string, logger *slog.Logger) *Filter {
	f := &Filter{logger: logger}

	for _, entry := range allowedIPs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				logger.Warn("invalid CIDR in allowed_ips", "cidr", entry, "error", err)
				continue
			}
			f.allowed = append(f.allowed, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			logger.Warn("invalid IP in allowed_ips", "ip", entry)
			continue
		}
		f.allowed = append(f.allowed, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return f
}

// Enabled reports whether any networks are configured.
func (f *Filter) Enabled() bool {
	return len(f.allowed) > 0
}

// Count returns the number of allowed networks.
func (f *Filter) Count() int {
	return len(f.allowed)
}

// Allowed reports whether ip may access the endpoint. An empty filter
// allows all addresses.
func (f *Filter) Allowed(ip netip.Addr) bool {
	if len(f.allowed) == 0 {
		return true
	}
	ip = ip.Unmap()
	for _, prefix := range f.allowed {
		if prefix.Contains(ip) {
			return true
		}
	}
	return false
}

// AllowedAddr parses a "host:port" or bare address string and checks it.
func (f *Filter) AllowedAddr(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return f.Allowed(ip)
}

// Middleware rejects requests from addresses outside the allowed set.
// Proxy headers are ignored: the filter trusts only the TCP peer address.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		if !f.AllowedAddr(r.RemoteAddr) {
			f.logger.Warn("access denied by IP filter", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
