// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package netif

import "net"

// If the ifindex is zero, interfaceTable returns mappings of all
// network interfaces. Otherwise it returns a mapping of a specific
// interface.
func interfaceTable(ifindex int) ([]Interface, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ift []Interface
	for _, i := range ifs {
		if ifindex == 0 || ifindex == i.Index {
			ift = append(ift, Interface{Index: i.Index, MTU: i.MTU, Name: i.Name})
		}
	}
	return ift, nil
}

// If the ifi is nil, interfaceAddrTable returns addresses for all
// network interfaces. Otherwise it returns addresses for a specific
// interface.
func interfaceAddrTable(ifi *Interface) ([]Addr, error) {
	var (
		addrs []net.Addr
		err   error
	)
	if ifi == nil {
		addrs, err = net.InterfaceAddrs()
	} else {
		var i *net.Interface
		if i, err = net.InterfaceByIndex(ifi.Index); err == nil {
			addrs, err = i.Addrs()
		}
	}
	if err != nil {
		return nil, err
	}

	flags := addrFlags()
	ifat := make([]Addr, 0, len(addrs))
	for _, a := range addrs {
		addr := Addr{Addr: a}
		if ip, ok := addr.IP(); ok && ip.Is6() {
			if raw, ok := flags[ip.WithZone("")]; ok {
				addr.RawFlags = raw
				addr.Flags = translateFlags(raw)
			}
		}
		ifat = append(ifat, addr)
	}
	return ifat, nil
}

// Linux IFA_F_* values, as exposed in /proc/net/if_inet6.
const (
	ifaTemporary  = 0x01
	ifaNoDad      = 0x02
	ifaDadFailed  = 0x08
	ifaDeprecated = 0x20
	ifaTentative  = 0x40
)

func translateFlags(raw uint32) (f AddrFlags) {
	if raw&ifaTemporary != 0 {
		f |= FlagTemporary
	}
	if raw&ifaNoDad != 0 {
		f |= FlagNoDad
	}
	if raw&ifaDadFailed != 0 {
		f |= FlagDadDuplicated
	}
	if raw&ifaDeprecated != 0 {
		f |= FlagDeprecated
	}
	if raw&ifaTentative != 0 {
		f |= FlagDadTentative
	}
	return
}
