package ddns

import (
	"context"
	"dynners/common"
	"dynners/log"
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const porkbunEndpoint = "https://api.porkbun.com/api/json/v3"

type porkbun struct {
	APIKey       string `mapstructure:"api_key"`
	SecretAPIKey string `mapstructure:"secret_api_key"`
	TTL          int    `mapstructure:"ttl"`
	Endpoint     string `mapstructure:"endpoint"`

	client *resty.Client
}

type porkbunRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type porkbunResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Records []porkbunRecord `json:"records,omitempty"`
}

func (d *porkbun) Typename() string {
	return "porkbun"
}

// splitDomain splits a name into its registered domain and the sub name
// inside it: "a.b.example.co.uk" is ("example.co.uk", "a.b").
func splitDomain(domain string) (root, sub string, err error) {
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")

	root, err = publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return "", "", err
	}

	sub = strings.TrimSuffix(strings.TrimSuffix(domain, root), ".")
	return root, sub, nil
}

func porkbunPath(action, root, recordType, sub string) string {
	p := "/dns/" + action + "/" + url.PathEscape(root) + "/" + recordType
	if sub != "" {
		p += "/" + url.PathEscape(sub)
	}
	return p
}

func (d *porkbun) call(ctx context.Context, path string, body map[string]any) (*porkbunResponse, error) {
	body["apikey"] = d.APIKey
	body["secretapikey"] = d.SecretAPIKey

	var result porkbunResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		ForceContentType("application/json").
		Post(path)
	if err != nil {
		log.S(ctx).Warnw("request failed", "path", path, zap.Error(err))
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if result.Status != "SUCCESS" {
		log.S(ctx).Warnw("request refused",
			"path", path,
			"status", resp.StatusCode(),
			"message", result.Message)
		return nil, fmt.Errorf("request refused (status %d): %s", resp.StatusCode(), result.Message)
	}

	return &result, nil
}

func (d *porkbun) updateOne(ctx context.Context, domain string, addr netip.Addr) error {
	recordType := common.Of(addr).RecordType()
	ctx = log.SWith(ctx, "domain", domain, "ns_type", recordType, log.Addr(addr))

	root, sub, err := splitDomain(domain)
	if err != nil {
		log.S(ctx).Warnw("cannot split domain", zap.Error(err))
		return fmt.Errorf("%s: %w", domain, err)
	}

	found, err := d.call(ctx, porkbunPath("retrieveByNameType", root, recordType, sub), map[string]any{})
	if err != nil {
		return fmt.Errorf("%s: %w", domain, err)
	}

	content := addr.String()
	body := map[string]any{"content": content}
	if d.TTL > 0 {
		body["ttl"] = strconv.Itoa(d.TTL)
	}

	if len(found.Records) == 0 {
		body["name"] = sub
		body["type"] = recordType
		if _, err := d.call(ctx, "/dns/create/"+url.PathEscape(root), body); err != nil {
			return fmt.Errorf("%s: %w", domain, err)
		}
		log.S(ctx).Infow("record created")
		return nil
	}

	upToDate := true
	for _, r := range found.Records {
		if r.Content != content {
			upToDate = false
		}
	}
	if upToDate {
		log.S(ctx).Infow("IP didn't change, skip update")
		return nil
	}

	if _, err := d.call(ctx, porkbunPath("editByNameType", root, recordType, sub), body); err != nil {
		return fmt.Errorf("%s: %w", domain, err)
	}

	log.S(ctx).Infow("record updated")
	return nil
}

func (d *porkbun) Update(ctx context.Context, u Update) error {
	ctx = log.SWith(ctx, "type", "porkbun")

	if err := checkFamilies(u, true, true); err != nil {
		log.S(ctx).Warnw("cannot update", zap.Error(err))
		return err
	}

	var errs []error
	for _, domain := range u.Domains {
		for _, f := range u.Families() {
			if err := d.updateOne(ctx, domain, u.Addr(f)); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func newPorkbun(ctx context.Context, options map[string]any) (Interface, error) {
	ctx = log.SWith(ctx, "type", "porkbun")

	d := &porkbun{}
	if err := common.StrictDecodeMap(options, d); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err))
		return nil, fmt.Errorf("bad config: %w", err)
	}

	if d.APIKey == "" || d.SecretAPIKey == "" {
		log.S(ctx).Errorw("bad config: api_key and secret_api_key are required")
		return nil, fmt.Errorf("bad config: api_key and secret_api_key are required")
	}

	if d.Endpoint == "" {
		d.Endpoint = porkbunEndpoint
	}

	d.client = newRestClient(ctx, d.Endpoint)
	return d, nil
}
