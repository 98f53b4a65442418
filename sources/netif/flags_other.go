//go:build !linux && !windows

package netif

import "net/netip"

// Address state is not exposed on this platform.
func addrFlags() map[netip.Addr]uint32 {
	return nil
}
