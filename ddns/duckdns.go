package ddns

import (
	"context"
	"dynners/common"
	"dynners/log"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const duckDNSEndpoint = "https://www.duckdns.org/update"

type duckDNS struct {
	Token    string `mapstructure:"token"`
	Endpoint string `mapstructure:"endpoint"`

	client *resty.Client
}

func (d *duckDNS) Typename() string {
	return "duckdns"
}

func (d *duckDNS) Update(ctx context.Context, u Update) error {
	ctx = log.SWith(ctx, "type", "duckdns", "domains", u.Domains)

	if err := checkFamilies(u, true, true); err != nil {
		log.S(ctx).Warnw("cannot update", zap.Error(err))
		return err
	}

	// The API takes the sub names only.
	names := make([]string, 0, len(u.Domains))
	for _, domain := range u.Domains {
		names = append(names, strings.TrimSuffix(domain, ".duckdns.org"))
	}

	req := d.client.R().
		SetContext(ctx).
		SetQueryParam("domains", strings.Join(names, ",")).
		SetQueryParam("token", d.Token)

	if u.IPv4.IsValid() {
		req.SetQueryParam("ip", u.IPv4.String())
	}
	if u.IPv6.IsValid() {
		req.SetQueryParam("ipv6", u.IPv6.String())
	}

	resp, err := req.Get("")
	if err := checkResponse(ctx, resp, err); err != nil {
		return err
	}

	body := strings.TrimSpace(resp.String())
	if !strings.HasPrefix(body, "OK") {
		log.S(ctx).Warnw("update refused", "response", body)
		return fmt.Errorf("update refused: %q", body)
	}

	log.S(ctx).Infow("records updated", log.AddrKey("ipv4", u.IPv4), log.AddrKey("ipv6", u.IPv6))
	return nil
}

func newDuckDNS(ctx context.Context, options map[string]any) (Interface, error) {
	ctx = log.SWith(ctx, "type", "duckdns")

	d := &duckDNS{}
	if err := common.StrictDecodeMap(options, d); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err))
		return nil, fmt.Errorf("bad config: %w", err)
	}

	if d.Token == "" {
		log.S(ctx).Errorw("bad config: token is required")
		return nil, fmt.Errorf("bad config: token is required")
	}

	if d.Endpoint == "" {
		d.Endpoint = duckDNSEndpoint
	}

	d.client = newRestClient(ctx, d.Endpoint)
	return d, nil
}
