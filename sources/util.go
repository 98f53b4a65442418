package sources

import (
	"context"
	"dynners/common"
	"dynners/log"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrMismatchedFamily = errors.New("mismatched IP family")
	ErrZone             = errors.New("unsupported: found zone in IP")
)

type transportDialer func(ctx context.Context, network, addr string) (net.Conn, error)

func wrapClientDialer(ctx context.Context, client *http.Client, wrapperBuilder func(upstream transportDialer) transportDialer) (*http.Client, error) {
	if client == nil {
		client = http.DefaultClient
	}

	transport := http.DefaultTransport.(*http.Transport)
	if client.Transport != nil {
		t, ok := client.Transport.(*http.Transport)
		if !ok {
			log.S(ctx).Errorw("found unknown custom http.Client.Transport",
				"transport_type", reflect.TypeOf(client.Transport).String())
			return nil, fmt.Errorf("unknown custom http.Client.Transport")
		}

		transport = t
	}

	transport = transport.Clone()
	transport.DialContext = wrapperBuilder(transport.DialContext)

	if transport.DialTLSContext != nil {
		transport.DialTLSContext = wrapperBuilder(transport.DialTLSContext)
	}

	clientCopy := *client
	clientCopy.Transport = transport
	return &clientCopy, nil
}

// familyDialer pins the dial network to family, so the remote end sees the
// address we are asking about.
func familyDialer(family common.Family) func(upstream transportDialer) transportDialer {
	return func(upstream transportDialer) transportDialer {
		if upstream == nil {
			upstream = (&net.Dialer{}).DialContext
		}

		return func(ctx context.Context, network, addr string) (net.Conn, error) {
			switch family {
			case common.IPv4:
				network += "4"
			case common.IPv6:
				network += "6"
			}

			return upstream(ctx, network, addr)
		}
	}
}

// parseAddr parses trimmed text as an address of family.
func parseAddr(ctx context.Context, family common.Family, text string) (netip.Addr, error) {
	text = strings.TrimSpace(text)

	addr, err := netip.ParseAddr(text)
	if err != nil {
		log.S(ctx).Warnw("found bad IP", "text", text, zap.Error(err))
		return netip.Addr{}, fmt.Errorf("bad IP %q: %w", text, err)
	}

	if addr.Zone() != "" {
		log.S(ctx).Warnw("found zone in IP", "ip", text, "zone", addr.Zone())
		return netip.Addr{}, ErrZone
	}

	norm, ok := family.Normalize(addr)
	if !ok {
		log.S(ctx).Warnw("mismatched IP family", "ip", text, "family", family)
		return netip.Addr{}, fmt.Errorf("%w: want %s, got %s", ErrMismatchedFamily, family, addr)
	}

	return norm, nil
}

func withTimeout(ctx context.Context, timeout *common.Duration) (context.Context, context.CancelFunc) {
	if timeout == nil || *timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(*timeout))
}
