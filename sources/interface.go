package sources

import (
	"context"
	"dynners/common"
	"dynners/config"
	"dynners/log"
	"dynners/netmask"
	"dynners/sources/netif"
	"errors"
	"fmt"
	"net/netip"
	"slices"

	"go.uber.org/zap"
)

var ErrNoEligibleIP = errors.New("no eligible IP found")

type networkInterface struct {
	config.IPSourceInterfaceConfig `mapstructure:",squash"`

	family  common.Family
	pattern netmask.Pattern
	skip    common.IPSkipFlag

	// addrs lists the addresses of an interface in platform order.
	addrs func(iface string) ([]netif.Addr, error)
}

func (s *networkInterface) Typename() string {
	return "interface"
}

func (s *networkInterface) Family() common.Family {
	return s.family
}

func interfaceAddrs(name string) ([]netif.Addr, error) {
	iface, err := netif.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf(`find interface failed: %w`, err)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf(`get address failed: %w`, err)
	}

	return addrs, nil
}

func (s *networkInterface) skipped(ip netip.Addr, flags netif.AddrFlags) string {
	switch {
	case s.skip.Match(common.SkipNonGlobalUnicast) && !ip.IsGlobalUnicast():
		return "non global unicast"
	case s.skip.Match(common.SkipPrivate) && ip.IsPrivate():
		return "private"
	case s.skip.Match(common.SkipEUI64) && ip.Is6() && ip.As16()[11] == 0xff && ip.As16()[12] == 0xfe:
		return "EUI-64"
	case s.skip.Match(common.SkipTemporary) && flags&netif.FlagTemporary != 0:
		return "temporary"
	case s.skip.Match(common.SkipBadDad) && flags&(netif.FlagDadDuplicated|netif.FlagDadTentative) != 0:
		return "bad DAD state"
	case s.skip.Match(common.SkipDeprecated) && flags&netif.FlagDeprecated != 0:
		return "deprecated"
	}
	return ""
}

func (s *networkInterface) Lookup(ctx context.Context) (result netip.Addr, err error) {
	ctx = log.SWith(ctx,
		"interface", s.Iface,
		"family", s.family,
		"matches", s.pattern,
		"select", s.Select,
		"skip", s.skip,
	)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.Addr(result))
		}
	}()

	addrs, err := s.addrs(s.Iface)
	if err != nil {
		log.S(ctx).Warnw("list interface addresses failed", zap.Error(err))
		return netip.Addr{}, err
	}

	var candidate []netip.Addr

	for _, addr := range addrs {
		ip, ok := addr.IP()
		if !ok {
			continue
		}

		ctx := log.SWith(ctx, log.Addr(ip), "flag", addr.Flags, "raw_flags", addr.RawFlags)

		if common.Of(ip) != s.family {
			log.S(ctx).Debugw("discard IP", "reason", "family mismatch")
			continue
		}

		if reason := s.skipped(ip, addr.Flags); reason != "" {
			log.S(ctx).Debugw("discard IP", "reason", reason)
			continue
		}

		if !s.pattern.Matches(ip) {
			log.S(ctx).Debugw("discard IP", "reason", "pattern mismatch")
			continue
		}

		log.S(ctx).Debugw("add IP to candidate")
		candidate = append(candidate, ip)
	}

	if len(candidate) == 0 {
		log.S(ctx).Warnw("no eligible IP found", "count", len(addrs))
		return netip.Addr{}, ErrNoEligibleIP
	}

	switch s.Select {
	case common.SelectShortest:
		slices.SortStableFunc(candidate, func(i, j netip.Addr) int {
			return len(i.String()) - len(j.String())
		})
		fallthrough
	case common.SelectFirst:
		return candidate[0], nil
	case common.SelectLast:
		return candidate[len(candidate)-1], nil
	default:
		log.S(ctx).Errorw("unexpected select mode", log.Internal)
		return netip.Addr{}, fmt.Errorf(`internal error: unexpected select mode`)
	}
}

func newInterface(ctx context.Context, conf config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "interface")

	s := &networkInterface{family: conf.Version, addrs: interfaceAddrs}
	if err := common.StrictDecodeMap(conf.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", conf.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.Iface == "" {
		log.S(ctx).Errorw("bad config: iface is empty")
		return nil, fmt.Errorf("bad config: iface is empty")
	}

	s.pattern = netmask.Any(s.family)
	if s.Matches != nil {
		if s.Matches.Family() != s.family {
			log.S(ctx).Errorw("bad config: matches has mismatched IP family", "matches", s.Matches, "family", s.family)
			return nil, fmt.Errorf("bad config: matches has mismatched IP family")
		}
		s.pattern = *s.Matches
	}

	if s.Skip == nil {
		s.skip = common.DefaultSkip
	}
	for _, f := range s.Skip {
		s.skip |= f
	}

	return s, nil
}
