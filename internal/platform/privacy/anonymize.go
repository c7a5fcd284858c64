// Package privacy keeps visitor addresses out of the session log at full
// precision.
package privacy

import (
	"net/netip"
)

const (
	v4Bits = 24
	v6Bits = 48
)

// AnonymizeIP reduces a client address to the network it came from, so the
// session log can tell visitors' networks apart without naming a host. An
// address with a port or a zone is accepted. Empty input is "unknown" and
// anything unparsable is "invalid".
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		ap, perr := netip.ParseAddrPort(ip)
		if perr != nil {
			return "invalid"
		}
		addr = ap.Addr()
	}
	addr = addr.Unmap().WithZone("")

	bits := v6Bits
	if addr.Is4() {
		bits = v4Bits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
