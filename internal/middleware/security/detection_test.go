package security

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name   string
		method string
		target string
		want   bool
	}{
		{"api grid read", "GET", "/api/grid?year=2026", false},
		{"api record write", "POST", "/api/expenses", false},
		{"cell edit", "POST", "/api/cells/edit", false},
		{"path traversal", "GET", "/api/../../etc/passwd", true},
		{"env file hunt", "GET", "/.env", true},
		{"git dir hunt", "GET", "/.git/config", true},
		{"sql injection in query", "GET", "/api/grid?year=2026%20union%20select", true},
		{"script payload in query", "GET", "/api/grid?note=<script>", true},
		{"trace method", "TRACE", "/api/grid", true},
		{"oversized url", "GET", "/api/grid?pad=" + strings.Repeat("x", 2100), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if got := d.DetectSuspiciousRequest(r); got != tt.want {
				t.Errorf("DetectSuspiciousRequest(%s %s) = %v, want %v", tt.method, tt.target, got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequestFlagsLongProxyChains(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest("GET", "/api/grid", nil)
	r.Header.Set("X-Forwarded-For", "1.1.1.1, 2.2.2.2, 3.3.3.3, 4.4.4.4, 5.5.5.5, 6.6.6.6, 7.7.7.7")
	if !d.DetectSuspiciousRequest(r) {
		t.Error("expected a 7-hop X-Forwarded-For chain to be flagged")
	}

	r.Header.Set("X-Forwarded-For", "1.1.1.1, 2.2.2.2")
	if d.DetectSuspiciousRequest(r) {
		t.Error("a short proxy chain must not be flagged")
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct connection", "203.0.113.7:1234", "", "", "203.0.113.7"},
		{"trusted proxy forwards", "127.0.0.1:1234", "203.0.113.7", "", "203.0.113.7"},
		{"trusted proxy chain takes first hop", "10.0.0.5:1234", "203.0.113.7, 10.0.0.5", "", "203.0.113.7"},
		{"trusted proxy real-ip fallback", "192.168.1.1:1234", "", "203.0.113.9", "203.0.113.9"},
		{"untrusted peer headers ignored", "203.0.113.7:1234", "198.51.100.1", "", "203.0.113.7"},
		{"garbage forwarded value ignored", "127.0.0.1:1234", "not-an-ip", "", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/grid", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
