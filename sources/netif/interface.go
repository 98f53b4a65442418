// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package netif is a reduced copy of the interface part of package net that
// also reports per-address state such as IPv6 deprecation.
package netif

import (
	"errors"
	"net"
	"net/netip"
)

var (
	errInvalidInterface     = errors.New("invalid network interface")
	errInvalidInterfaceName = errors.New("invalid network interface name")
	errNoSuchInterface      = errors.New("no such network interface")
)

// Interface represents a mapping between network interface name
// and index.
type Interface struct {
	Index int    // positive integer that starts at one, zero is never used
	MTU   int    // maximum transmission unit
	Name  string // e.g., "en0", "lo0", "eth0.100"
}

type AddrFlags uint

const (
	FlagDadDuplicated AddrFlags = 1 << iota // address is found duplicated by DAD
	FlagDadTentative                        // address is running DAD
	FlagNoDad                               // address is not tested by DAD
	FlagDeprecated                          // address is deprecated
	FlagTemporary                           // address is temporary
)

var addrFlagNames = []string{
	"duplicated",
	"tentative",
	"no-dad",
	"deprecated",
	"temporary",
}

func (f AddrFlags) String() string {
	s := ""
	for i, name := range addrFlagNames {
		if f&(1<<uint(i)) != 0 {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	if s == "" {
		s = "0"
	}
	return s
}

type Addr struct {
	Addr     net.Addr
	Flags    AddrFlags
	RawFlags any
}

// IP returns the address without prefix or zone, unmapped. ok is false for
// address kinds other than *net.IPNet and *net.IPAddr.
func (a Addr) IP() (ip netip.Addr, ok bool) {
	switch addr := a.Addr.(type) {
	case *net.IPNet:
		ip, ok = netip.AddrFromSlice(addr.IP)
	case *net.IPAddr:
		ip, ok = netip.AddrFromSlice(addr.IP)
	}
	return ip.Unmap(), ok
}

// Addrs returns a list of unicast interface addresses for a specific
// interface.
func (ifi *Interface) Addrs() ([]Addr, error) {
	if ifi == nil {
		return nil, &net.OpError{Op: "route", Net: "ip+net", Source: nil, Addr: nil, Err: errInvalidInterface}
	}
	ifat, err := interfaceAddrTable(ifi)
	if err != nil {
		err = &net.OpError{Op: "route", Net: "ip+net", Source: nil, Addr: nil, Err: err}
	}
	return ifat, err
}

// Interfaces returns a list of the system's network interfaces.
func Interfaces() ([]Interface, error) {
	ift, err := interfaceTable(0)
	if err != nil {
		return nil, &net.OpError{Op: "route", Net: "ip+net", Source: nil, Addr: nil, Err: err}
	}
	return ift, nil
}

// InterfaceByName returns the interface specified by name.
func InterfaceByName(name string) (*Interface, error) {
	if name == "" {
		return nil, &net.OpError{Op: "route", Net: "ip+net", Source: nil, Addr: nil, Err: errInvalidInterfaceName}
	}
	ift, err := interfaceTable(0)
	if err != nil {
		return nil, &net.OpError{Op: "route", Net: "ip+net", Source: nil, Addr: nil, Err: err}
	}
	for _, ifi := range ift {
		if name == ifi.Name {
			return &ifi, nil
		}
	}
	return nil, &net.OpError{Op: "route", Net: "ip+net", Source: nil, Addr: nil, Err: errNoSuchInterface}
}
