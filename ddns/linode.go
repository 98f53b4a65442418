package ddns

import (
	"context"
	"dynners/common"
	"dynners/log"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const linodeEndpoint = "https://api.linode.com/v4"

type linode struct {
	Token    string `mapstructure:"token"`
	TTL      int    `mapstructure:"ttl"`
	Endpoint string `mapstructure:"endpoint"`

	client *resty.Client
}

type linodeDomain struct {
	ID     int    `json:"id"`
	Domain string `json:"domain"`
}

type linodeRecord struct {
	ID     int    `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Target string `json:"target"`
	TTLSec int    `json:"ttl_sec"`
}

type linodePage[T any] struct {
	Data  []T `json:"data"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

type linodeErrors struct {
	Errors []struct {
		Field  string `json:"field"`
		Reason string `json:"reason"`
	} `json:"errors"`
}

func (e *linodeErrors) err(status int) error {
	var reasons []string
	for _, item := range e.Errors {
		if item.Field != "" {
			reasons = append(reasons, fmt.Sprintf("%s (field = %s)", item.Reason, item.Field))
		} else {
			reasons = append(reasons, item.Reason)
		}
	}
	if len(reasons) == 0 {
		return fmt.Errorf("unexpected status %d", status)
	}
	return fmt.Errorf("status %d: %s", status, strings.Join(reasons, "; "))
}

func (d *linode) Typename() string {
	return "linode"
}

func (d *linode) do(ctx context.Context, method, path string, body any, result any) error {
	var apiErr linodeErrors

	req := d.client.R().
		SetContext(ctx).
		SetAuthToken(d.Token).
		SetError(&apiErr).
		ForceContentType("application/json")
	if result != nil {
		req.SetResult(result)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		log.S(ctx).Warnw("request failed", "path", path, zap.Error(err))
		return fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		err := apiErr.err(resp.StatusCode())
		log.S(ctx).Warnw("request refused", "path", path, zap.Error(err))
		return err
	}

	return nil
}

// list fetches every page of a Linode collection.
func list[T any](ctx context.Context, d *linode, path string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		var p linodePage[T]
		if err := d.do(ctx, resty.MethodGet, path+"?page="+strconv.Itoa(page), nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
		if p.Page >= p.Pages {
			return all, nil
		}
	}
}

// zoneOf picks the longest managed domain containing name and returns the
// record name relative to it.
func zoneOf(domains []linodeDomain, name string) (linodeDomain, string, bool) {
	var best linodeDomain
	found := false
	for _, z := range domains {
		zone := strings.ToLower(z.Domain)
		if name != zone && !strings.HasSuffix(name, "."+zone) {
			continue
		}
		if !found || len(zone) > len(best.Domain) {
			best, found = z, true
		}
	}
	if !found {
		return best, "", false
	}
	return best, strings.TrimSuffix(strings.TrimSuffix(name, strings.ToLower(best.Domain)), "."), true
}

func (d *linode) updateOne(ctx context.Context, domains []linodeDomain, name string, addr netip.Addr) error {
	recordType := common.Of(addr).RecordType()
	ctx = log.SWith(ctx, "domain", name, "ns_type", recordType, log.Addr(addr))

	zone, sub, ok := zoneOf(domains, strings.ToLower(strings.TrimSuffix(name, ".")))
	if !ok {
		log.S(ctx).Warnw("domain not belong to any zone")
		return fmt.Errorf("%s: domain not belong to any zone", name)
	}

	recordsPath := fmt.Sprintf("/domains/%d/records", zone.ID)
	records, err := list[linodeRecord](ctx, d, recordsPath)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	var errs []error
	matched := false
	for _, r := range records {
		if r.Type != recordType || !strings.EqualFold(r.Name, sub) {
			continue
		}
		matched = true

		if r.Target == addr.String() {
			log.S(ctx).Infow("IP didn't change, skip update", "record", r.ID)
			continue
		}

		body := map[string]any{"target": addr.String()}
		if d.TTL > 0 {
			body["ttl_sec"] = d.TTL
		}
		if err := d.do(ctx, resty.MethodPut, fmt.Sprintf("%s/%d", recordsPath, r.ID), body, nil); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		log.S(ctx).Infow("record updated", "record", r.ID, "old_ip", r.Target)
	}

	if !matched {
		body := map[string]any{"type": recordType, "name": sub, "target": addr.String()}
		if d.TTL > 0 {
			body["ttl_sec"] = d.TTL
		}
		if err := d.do(ctx, resty.MethodPost, recordsPath, body, nil); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		log.S(ctx).Infow("record created")
	}

	return errors.Join(errs...)
}

func (d *linode) Update(ctx context.Context, u Update) error {
	ctx = log.SWith(ctx, "type", "linode")

	if err := checkFamilies(u, true, true); err != nil {
		log.S(ctx).Warnw("cannot update", zap.Error(err))
		return err
	}

	domains, err := list[linodeDomain](ctx, d, "/domains")
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range u.Domains {
		for _, f := range u.Families() {
			if err := d.updateOne(ctx, domains, name, u.Addr(f)); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func newLinode(ctx context.Context, options map[string]any) (Interface, error) {
	ctx = log.SWith(ctx, "type", "linode")

	d := &linode{}
	if err := common.StrictDecodeMap(options, d); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err))
		return nil, fmt.Errorf("bad config: %w", err)
	}

	if d.Token == "" {
		log.S(ctx).Errorw("bad config: token is required")
		return nil, fmt.Errorf("bad config: token is required")
	}

	if d.Endpoint == "" {
		d.Endpoint = linodeEndpoint
	}

	d.client = newRestClient(ctx, d.Endpoint)
	return d, nil
}
