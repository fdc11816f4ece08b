// Package guard provides the API's perimeter checks: a shared-key header and
// a source-IP allowlist. Both are opt-in; an empty configuration passes
// every request through.
package guard

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// APIKeyHeader is the request header carrying the shared key.
const APIKeyHeader = "x-api-key"

// RequireAPIKey rejects requests whose key header does not match. An empty
// key disables the check.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(APIKeyHeader) != key {
				deny(w, http.StatusForbidden, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AllowIPs rejects requests whose source address matches none of the given
// IPs or CIDR blocks. An empty list disables the check. Run this behind
// middleware.RealIP so RemoteAddr reflects the real client.
func AllowIPs(entries []string) func(http.Handler) http.Handler {
	nets, ips := parseEntries(entries)

	return func(next http.Handler) http.Handler {
		if len(nets) == 0 && len(ips) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed(sourceIP(r), nets, ips) {
				deny(w, http.StatusForbidden, "source address not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseEntries(entries []string) ([]*net.IPNet, []net.IP) {
	var nets []*net.IPNet
	var ips []net.IP

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, block, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, block)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			ips = append(ips, ip)
		}
	}

	return nets, ips
}

func sourceIP(r *http.Request) net.IP {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

func allowed(ip net.IP, nets []*net.IPNet, ips []net.IP) bool {
	if ip == nil {
		return false
	}
	for _, candidate := range ips {
		if candidate.Equal(ip) {
			return true
		}
	}
	for _, block := range nets {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
