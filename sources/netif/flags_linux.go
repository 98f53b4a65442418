package netif

import (
	"bufio"
	"encoding/hex"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

const procIfInet6 = "/proc/net/if_inet6"

// addrFlags returns the raw IFA_F_* flags of every IPv6 address on the
// system. Errors yield an empty table: flags are advisory.
func addrFlags() map[netip.Addr]uint32 {
	f, err := os.Open(procIfInet6)
	if err != nil {
		return nil
	}
	defer f.Close()

	return parseIfInet6(f)
}

// parseIfInet6 reads lines of the form
//
//	20010db8000000000000000000000001 02 40 00 80     eth0
//
// i.e. address, ifindex, prefix length, scope, flags and device name.
func parseIfInet6(r io.Reader) map[netip.Addr]uint32 {
	table := map[netip.Addr]uint32{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 || len(fields[0]) != 32 {
			continue
		}

		raw, err := hex.DecodeString(fields[0])
		if err != nil {
			continue
		}

		flags, err := strconv.ParseUint(fields[4], 16, 32)
		if err != nil {
			continue
		}

		table[netip.AddrFrom16([16]byte(raw))] = uint32(flags)
	}

	return table
}
