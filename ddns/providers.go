package ddns

import (
	"context"
	"dynners/common"
	"errors"
	"fmt"
	"net/netip"
)

var (
	// ErrUnsupportedFamily is returned when an update carries an address
	// the provider cannot publish.
	ErrUnsupportedFamily = errors.New("unsupported IP family")

	// ErrSuspended is returned without contacting the provider while it is
	// backing off after a server side refusal.
	ErrSuspended = errors.New("provider suspended")
)

// Update is one logical update transaction: all domains get the same
// addresses. A zero address means the family is not updated.
type Update struct {
	Domains []string
	IPv4    netip.Addr
	IPv6    netip.Addr
}

func (u Update) Addr(f common.Family) netip.Addr {
	if f == common.IPv6 {
		return u.IPv6
	}
	return u.IPv4
}

// Families lists the families present in u, IPv4 first.
func (u Update) Families() []common.Family {
	var fs []common.Family
	for _, f := range common.Families {
		if u.Addr(f).IsValid() {
			fs = append(fs, f)
		}
	}
	return fs
}

// Interface publishes addresses to a DDNS provider. Update must be
// idempotent: re-applying what is already published succeeds.
type Interface interface {
	Update(ctx context.Context, u Update) error
	Typename() string
}

var Providers = map[string]func(ctx context.Context, options map[string]any) (Interface, error){
	"cloudflare": newCloudflare,
	"dnsomatic":  newDynDNSVariant("dnsomatic", "https://updates.dnsomatic.com/nic/update", false),
	"duckdns":    newDuckDNS,
	"dummy":      newDummy,
	"dynu":       newDynDNSVariant("dynu", "https://api.dynu.com/nic/update", true),
	"ipv64":      newDynDNSVariant("ipv64", "https://ipv64.net/nic/update", true),
	"linode":     newLinode,
	"noip":       newDynDNSVariant("noip", "https://dynupdate.no-ip.com/nic/update", true),
	"porkbun":    newPorkbun,
	"selfhost":   newDynDNSVariant("selfhost", "https://carol.selfhost.de/nic/update", true),
}

// New builds the provider registered as service.
func New(ctx context.Context, service string, options map[string]any) (Interface, error) {
	create, ok := Providers[service]
	if !ok {
		return nil, fmt.Errorf("unknown service %q", service)
	}

	return create(ctx, options)
}

// checkFamilies fails u when it carries an address of a family the
// provider does not support, or no address at all.
func checkFamilies(u Update, ipv4, ipv6 bool) error {
	switch {
	case !u.IPv4.IsValid() && !u.IPv6.IsValid():
		return errors.New("no address to update")
	case u.IPv4.IsValid() && !ipv4:
		return fmt.Errorf("%w: %s", ErrUnsupportedFamily, common.IPv4)
	case u.IPv6.IsValid() && !ipv6:
		return fmt.Errorf("%w: %s", ErrUnsupportedFamily, common.IPv6)
	}
	return nil
}
