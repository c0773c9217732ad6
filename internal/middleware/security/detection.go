package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Detector flags request shapes no legitimate API client produces and
// resolves the real client IP behind trusted proxies.
type Detector struct {
	trustedProxies []*net.IPNet
}

func NewDetector() *Detector {
	return &Detector{
		trustedProxies: []*net.IPNet{
			mustCIDR("127.0.0.0/8"),
			mustCIDR("10.0.0.0/8"),
			mustCIDR("172.16.0.0/12"),
			mustCIDR("192.168.0.0/16"),
		},
	}
}

func mustCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// scannerFragments are path/query substrings that only show up in scanner
// traffic against a JSON API: filesystem traversal, credential file hunting
// and injection payloads.
var scannerFragments = []string{
	"../", "..\\", "etc/passwd",
	".env", ".git", ".ssh",
	"union select", "eval(", "<script", "javascript:",
}

// DetectSuspiciousRequest reports whether a request looks like scanner
// traffic rather than an API call. Detections are logged upstream, never
// blocked.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	// Percent-encoding must not hide a payload.
	if unescaped, err := url.QueryUnescape(query); err == nil {
		query = unescaped
	}
	for _, fragment := range scannerFragments {
		if strings.Contains(path, fragment) || strings.Contains(query, fragment) {
			return true
		}
	}

	switch r.Method {
	case "TRACE", "TRACK", "CONNECT":
		return true
	}

	// Oversized URLs point at fuzzing or an overflow attempt.
	if len(r.URL.String()) > 2048 {
		return true
	}

	// More forwarding hops than any sane proxy chain produces.
	if xff := r.Header.Get("X-Forwarded-For"); strings.Count(xff, ",") > 5 {
		return true
	}

	return false
}

// ExtractClientIP resolves the real client IP. Forwarded headers are only
// honored when the direct peer is a trusted proxy; otherwise they are
// attacker-controlled and ignored.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
