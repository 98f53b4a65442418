package common

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// Family is the IP version of an address slot. The values match the
// version numbers used in config files.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

var Families = []Family{IPv4, IPv6}

func (f *Family) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "4", "v4", "ipv4":
		*f = IPv4
	case "6", "v6", "ipv6":
		*f = IPv6
	default:
		return errors.New("invalid IP family")
	}
	return nil
}

func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("unknown<%d>", int(f))
	}
}

func (f Family) Valid() bool {
	return f == IPv4 || f == IPv6
}

// Of reports the family of addr, treating IPv4-mapped IPv6 as IPv4.
func Of(addr netip.Addr) Family {
	if addr.Unmap().Is4() {
		return IPv4
	}
	return IPv6
}

// Normalize converts addr into the canonical form for family f. ok is false
// if addr cannot be represented in f.
func (f Family) Normalize(addr netip.Addr) (_ netip.Addr, ok bool) {
	if !addr.IsValid() {
		return netip.Addr{}, false
	}

	switch f {
	case IPv4:
		addr = addr.Unmap()
		return addr, addr.Is4()
	case IPv6:
		return addr, addr.Is6() && !addr.Is4In6()
	default:
		return netip.Addr{}, false
	}
}

// RecordType is the DNS record type carrying addresses of family f.
func (f Family) RecordType() string {
	if f == IPv6 {
		return "AAAA"
	}
	return "A"
}

type IPSelectMode int

const (
	SelectFirst IPSelectMode = iota
	SelectShortest
	SelectLast
)

func (m *IPSelectMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "first":
		*m = SelectFirst
	case "shortest":
		*m = SelectShortest
	case "last":
		*m = SelectLast
	default:
		return errors.New("invalid mode")
	}
	return nil
}

func (m IPSelectMode) String() string {
	switch m {
	case SelectFirst:
		return "first"
	case SelectShortest:
		return "shortest"
	case SelectLast:
		return "last"
	default:
		return fmt.Sprintf("unknown<%d>", int(m))
	}
}

// IPSkipFlag marks a class of interface addresses that is never selected.
type IPSkipFlag uint64

const (
	SkipNonGlobalUnicast IPSkipFlag = 1 << iota
	SkipPrivate
	SkipEUI64
	SkipTemporary
	SkipBadDad
	SkipDeprecated
)

// DefaultSkip is used when an interface source does not configure skip.
const DefaultSkip = SkipBadDad | SkipDeprecated

func (f *IPSkipFlag) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "nonglobalunicast", "non-global-unicast":
		*f = SkipNonGlobalUnicast
	case "private":
		*f = SkipPrivate
	case "eui64", "eui-64":
		*f = SkipEUI64
	case "temporary":
		*f = SkipTemporary
	case "baddad", "bad-dad":
		*f = SkipBadDad
	case "deprecated":
		*f = SkipDeprecated
	default:
		return errors.New("invalid skip flag")
	}
	return nil
}

func (f IPSkipFlag) String() string {
	flags := ""
	if f.Match(SkipNonGlobalUnicast) {
		flags += ",non-global-unicast"
	}
	if f.Match(SkipPrivate) {
		flags += ",private"
	}
	if f.Match(SkipEUI64) {
		flags += ",eui64"
	}
	if f.Match(SkipTemporary) {
		flags += ",temporary"
	}
	if f.Match(SkipBadDad) {
		flags += ",bad-dad"
	}
	if f.Match(SkipDeprecated) {
		flags += ",deprecated"
	}

	if flags == "" {
		return strconv.FormatUint(uint64(f), 16)
	} else {
		return fmt.Sprintf("%x(%s)", uint64(f), flags[1:])
	}
}

func (f IPSkipFlag) Match(l IPSkipFlag) bool {
	return (f & l) != 0
}
