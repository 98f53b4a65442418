// Package netmask matches addresses against a base address under an
// arbitrary bit mask. A CIDR prefix is the special case of a mask made of
// leading ones.
package netmask

import (
	"dynners/common"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

var (
	ErrMaskUnspecified = errors.New("mask unspecified")
	ErrInvalidAddress  = errors.New("invalid base address")
	ErrInvalidMask     = errors.New("invalid mask")
	ErrMaskTooLarge    = errors.New("prefix length too large")
	ErrFamilyMismatch  = errors.New("base and mask have mismatched IP family")
)

// Pattern is a (base, mask) pair of one IP family.
type Pattern struct {
	base netip.Addr
	mask netip.Addr
}

// Any returns the pattern matching every address of family f.
func Any(f common.Family) Pattern {
	if f == common.IPv6 {
		return Pattern{base: netip.IPv6Unspecified(), mask: netip.IPv6Unspecified()}
	}
	return Pattern{base: netip.IPv4Unspecified(), mask: netip.IPv4Unspecified()}
}

// New builds a pattern from a base and a mask of the same family.
func New(base, mask netip.Addr) (Pattern, error) {
	base, mask = base.Unmap(), mask.Unmap()
	if !base.IsValid() {
		return Pattern{}, ErrInvalidAddress
	}
	if !mask.IsValid() {
		return Pattern{}, ErrInvalidMask
	}
	if base.BitLen() != mask.BitLen() {
		return Pattern{}, ErrFamilyMismatch
	}

	return Pattern{base: and(base, mask), mask: mask}, nil
}

// Prefix returns the mask address with the leading bits ones set.
func Prefix(f common.Family, bits int) (netip.Addr, error) {
	width := 32
	if f == common.IPv6 {
		width = 128
	}
	if bits < 0 || bits > width {
		return netip.Addr{}, ErrMaskTooLarge
	}

	var b [16]byte
	for i := 0; i < bits; i++ {
		b[i/8] |= 0x80 >> (i % 8)
	}

	if f == common.IPv6 {
		return netip.AddrFrom16(b), nil
	}
	return netip.AddrFrom4([4]byte(b[:4])), nil
}

// Parse reads "addr/prefix" or "addr/mask", where mask is an address of the
// same family as addr.
func Parse(s string) (Pattern, error) {
	addrPart, maskPart, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found || maskPart == "" {
		return Pattern{}, ErrMaskUnspecified
	}

	base, err := netip.ParseAddr(addrPart)
	if err != nil || base.Zone() != "" {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addrPart)
	}
	base = base.Unmap()

	if bits, err := strconv.ParseUint(maskPart, 10, 8); err == nil {
		mask, err := Prefix(common.Of(base), int(bits))
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: %d", err, bits)
		}
		return New(base, mask)
	}

	mask, err := netip.ParseAddr(maskPart)
	if err != nil || mask.Zone() != "" {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidMask, maskPart)
	}

	return New(base, mask)
}

// Family reports the family of the pattern.
func (p Pattern) Family() common.Family {
	return common.Of(p.base)
}

// Matches reports whether addr & mask equals base & mask. Addresses of the
// other family never match.
func (p Pattern) Matches(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !p.base.IsValid() || addr.BitLen() != p.mask.BitLen() {
		return false
	}

	a, m, b := addr.AsSlice(), p.mask.AsSlice(), p.base.AsSlice()
	for i := range a {
		if a[i]&m[i] != b[i]&m[i] {
			return false
		}
	}
	return true
}

func (p Pattern) String() string {
	return p.base.String() + "/" + p.mask.String()
}

func (p *Pattern) UnmarshalText(b []byte) error {
	pp, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = pp
	return nil
}

func and(a, m netip.Addr) netip.Addr {
	as, ms := a.AsSlice(), m.AsSlice()
	for i := range as {
		as[i] &= ms[i]
	}
	r, _ := netip.AddrFromSlice(as)
	return r
}
