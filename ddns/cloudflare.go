package ddns

import (
	"context"
	"dynners/common"
	"dynners/log"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"

	cfapi "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

type cloudflareConfig struct {
	Token    string   `mapstructure:"token"`
	TTL      int      `mapstructure:"ttl"`
	Proxied  bool     `mapstructure:"proxied"`
	Zones    []string `mapstructure:"zones"`
	Comment  string   `mapstructure:"comment"`
	Endpoint string   `mapstructure:"endpoint"`
}

type cloudflare struct {
	cloudflareConfig `mapstructure:",squash"`

	// zone name to zone id, filled on first use
	mu    sync.Mutex
	zones map[string]string
}

func (d *cloudflare) Typename() string {
	return "cloudflare"
}

func (d *cloudflare) getAPI(ctx context.Context) (*cfapi.API, error) {
	opts := []cfapi.Option{
		cfapi.HTTPClient(common.HttpClient(ctx)),
		cfapi.UsingLogger(&logger{ctx: ctx}),
	}
	if ua := common.UserAgent(ctx); ua != "" {
		opts = append(opts, cfapi.UserAgent(ua))
	}
	if d.Endpoint != "" {
		opts = append(opts, cfapi.BaseURL(d.Endpoint))
	}

	api, err := cfapi.NewWithAPIToken(d.Token, opts...)
	if err != nil {
		log.S(ctx).Errorw("failed create cloudflare API", zap.Error(err))
		return nil, fmt.Errorf("failed create cloudflare API: %w", err)
	}

	return api, nil
}

// loadZones resolves the configured zone names, or every zone the token
// can see when none are configured. The lock is not held across requests.
func (d *cloudflare) loadZones(ctx context.Context, api *cfapi.API) (map[string]string, error) {
	d.mu.Lock()
	zones := d.zones
	d.mu.Unlock()

	if zones != nil {
		return zones, nil
	}

	list, err := api.ListZones(ctx, d.Zones...)
	if err != nil {
		log.S(ctx).Errorw("failed list zones", "zones", d.Zones, zap.Error(err))
		return nil, fmt.Errorf("failed list zones: %w", err)
	}

	zones = map[string]string{}
	for _, z := range list {
		zones[strings.ToLower(z.Name)] = z.ID
	}

	for _, name := range d.Zones {
		if _, ok := zones[strings.ToLower(strings.TrimSuffix(name, "."))]; !ok {
			log.S(ctx).Errorw("zone not found", "zone", name)
			return nil, fmt.Errorf("zone %s not found", name)
		}
	}

	log.S(ctx).Debugw("zones loaded", "zones", zones)

	d.mu.Lock()
	d.zones = zones
	d.mu.Unlock()

	return zones, nil
}

func (d *cloudflare) getZoneResource(ctx context.Context, zones map[string]string, domain string) (*cfapi.ResourceContainer, error) {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))

	zoneID, best := "", ""
	for zone, id := range zones {
		if domain != zone && !strings.HasSuffix(domain, "."+zone) {
			continue
		}
		if len(zone) > len(best) {
			zoneID, best = id, zone
		}
	}

	if zoneID == "" {
		log.S(ctx).Errorw("domain not belong to any zone", "domain", domain)
		return nil, fmt.Errorf("domain not belong to any zone")
	}

	return cfapi.ZoneIdentifier(zoneID), nil
}

func (d *cloudflare) writeRecord(ctx context.Context, api *cfapi.API, zoneRc *cfapi.ResourceContainer, domain string, addr netip.Addr) error {
	recordType := common.Of(addr).RecordType()
	ctx = log.SWith(ctx,
		"action", "write",
		"ns_type", recordType,
		"domain", domain,
		log.Addr(addr))

	records, _, err := api.ListDNSRecords(ctx, zoneRc, cfapi.ListDNSRecordsParams{
		Type: recordType,
		Name: domain,
	})
	if err != nil {
		log.S(ctx).Warnw("failed list records", zap.Error(err))
		return fmt.Errorf("failed list records: %w", err)
	}

	if len(records) == 0 {
		log.S(ctx).Debugw("creating record")

		_, err := api.CreateDNSRecord(ctx, zoneRc, cfapi.CreateDNSRecordParams{
			Type:    recordType,
			Name:    domain,
			Content: addr.String(),
			TTL:     d.TTL,
			Proxied: cfapi.BoolPtr(d.Proxied),
			Comment: d.Comment,
		})
		if err != nil {
			log.S(ctx).Warnw("failed create record", zap.Error(err))
			return fmt.Errorf("failed create record: %w", err)
		}

		log.S(ctx).Infow("record created")
		return nil
	}

	for _, record := range records {
		proxied := record.Proxied != nil && *record.Proxied
		if record.Content == addr.String() && proxied == d.Proxied {
			log.S(ctx).Infow("IP didn't change, skip update", "record", record.ID)
			continue
		}

		log.S(ctx).Debugw("updating record", "record", record.ID, "old_ip", record.Content)

		params := cfapi.UpdateDNSRecordParams{
			Type:    recordType,
			Name:    domain,
			Content: addr.String(),
			ID:      record.ID,
			TTL:     d.TTL,
			Proxied: cfapi.BoolPtr(d.Proxied),
		}
		if d.Comment != "" {
			params.Comment = &d.Comment
		}

		if _, err := api.UpdateDNSRecord(ctx, zoneRc, params); err != nil {
			log.S(ctx).Warnw("failed update record", "record", record.ID, zap.Error(err))
			return fmt.Errorf("failed update record: %w", err)
		}

		log.S(ctx).Infow("record updated", "record", record.ID, "old_ip", record.Content)
	}

	return nil
}

func (d *cloudflare) Update(ctx context.Context, u Update) error {
	ctx = log.SWith(ctx, "type", "cloudflare")

	if err := checkFamilies(u, true, true); err != nil {
		log.S(ctx).Warnw("cannot update", zap.Error(err))
		return err
	}

	api, err := d.getAPI(ctx)
	if err != nil {
		return err
	}

	zones, err := d.loadZones(ctx, api)
	if err != nil {
		return err
	}

	var errs []error
	for _, domain := range u.Domains {
		zoneRc, err := d.getZoneResource(ctx, zones, domain)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", domain, err))
			continue
		}

		for _, f := range u.Families() {
			if err := d.writeRecord(ctx, api, zoneRc, domain, u.Addr(f)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", domain, err))
			}
		}
	}

	return errors.Join(errs...)
}

func newCloudflare(ctx context.Context, options map[string]any) (Interface, error) {
	ctx = log.SWith(ctx, "type", "cloudflare")

	d := &cloudflare{cloudflareConfig: cloudflareConfig{TTL: 1}}
	if err := common.StrictDecodeMap(options, d); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err))
		return nil, fmt.Errorf("bad config: %w", err)
	}

	if d.Token == "" {
		log.S(ctx).Errorw("bad config: token is required")
		return nil, fmt.Errorf("bad config: token is required")
	}

	return d, nil
}
