package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ipv4", "192.168.1.47", "192.168.1.0"},
		{"ipv4 localhost", "127.0.0.1", "127.0.0.0"},
		{"ipv4 with port", "203.0.113.9:51234", "203.0.113.0"},
		{"ipv4 mapped ipv6", "::ffff:10.1.2.3", "10.1.2.0"},
		{"ipv6", "2001:db8:85a3:0000:0000:8a2e:0370:7334", "2001:db8:85a3::"},
		{"ipv6 with port", "[2001:db8:85a3::1]:443", "2001:db8:85a3::"},
		{"ipv6 with zone", "fe80::1%eth0", "fe80::"},
		{"ipv6 loopback", "::1", "::"},
		{"empty", "", "unknown"},
		{"already unknown", "unknown", "unknown"},
		{"garbage", "not-an-ip", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnonymizeIP(tt.input))
		})
	}
}
