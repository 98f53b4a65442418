package ddns

import (
	"context"
	"dynners/common"
	"dynners/log"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// serverErrorBackoff is how long a DynDNS v2 provider is left alone after
// it reported a server side problem (911, dnserr).
const serverErrorBackoff = 30 * time.Minute

// Return codes that mean our request will never succeed as configured.
var dynDNSFatalCodes = map[string]string{
	"badauth":  "bad authentication details were provided",
	"!donator": "only credited users are allowed",
	"notfqdn":  "domain must be fully qualified",
	"nohost":   "hostname does not exist in the user account",
	"abuse":    "domain is blocked because of abuse",
	"numhost":  "too many hosts are specified",
	"badagent": "bad user agent was provided, check general.user_agent",
}

type dynDNSConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Endpoint string `mapstructure:"endpoint"`
}

// dynDNS speaks the DynDNS v2 update protocol shared by many providers.
type dynDNS struct {
	dynDNSConfig `mapstructure:",squash"`

	name string
	ipv6 bool

	client *resty.Client
	now    func() time.Time

	mu             sync.Mutex
	suspendedUntil time.Time
	suspendedWhy   string
	forever        bool
}

func (d *dynDNS) Typename() string {
	return d.name
}

func (d *dynDNS) suspended() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.forever || d.now().Before(d.suspendedUntil) {
		return d.suspendedWhy, true
	}
	return "", false
}

// suspend stops updates for duration d, or until restart if forever.
func (d *dynDNS) suspend(why string, duration time.Duration, forever bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.suspendedWhy = why
	d.forever = forever
	d.suspendedUntil = d.now().Add(duration)
}

// classify maps one response line to an error, suspending the provider
// where the protocol asks clients to stop.
func (d *dynDNS) classify(ctx context.Context, line string) error {
	code, _, _ := strings.Cut(line, " ")

	switch code {
	case "good", "nochg":
		return nil
	case "911", "dnserr":
		d.suspend(line, serverErrorBackoff, false)
		log.S(ctx).Warnw("server reported an error, suspending", "response", line, "for", serverErrorBackoff, log.Suspended)
		return fmt.Errorf("server is down, suspended for %s: %s", serverErrorBackoff, line)
	}

	if why, ok := dynDNSFatalCodes[code]; ok {
		d.suspend(why, 0, true)
		log.S(ctx).Errorw("update refused, suspending until restart", "response", line, "reason", why, log.Suspended)
		return fmt.Errorf("update refused: %s", why)
	}

	// treated like a refusal
	d.suspend("unknown response", 0, true)
	log.S(ctx).Errorw("unknown response, suspending until restart", "response", line, log.Suspended)
	return fmt.Errorf("unknown response %q", line)
}

func (d *dynDNS) Update(ctx context.Context, u Update) error {
	ctx = log.SWith(ctx, "type", d.name, "domains", u.Domains)

	if why, ok := d.suspended(); ok {
		log.S(ctx).Warnw("skip update", "reason", why, log.Suspended)
		return fmt.Errorf("%w: %s", ErrSuspended, why)
	}

	if err := checkFamilies(u, true, d.ipv6); err != nil {
		log.S(ctx).Warnw("cannot update", zap.Error(err))
		return err
	}

	var myip []string
	for _, f := range u.Families() {
		myip = append(myip, u.Addr(f).String())
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetBasicAuth(d.Username, d.Password).
		SetQueryParam("hostname", strings.Join(u.Domains, ",")).
		SetQueryParam("myip", strings.Join(myip, ",")).
		Get("")
	if err != nil {
		log.S(ctx).Warnw("request failed", zap.Error(err))
		return fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() >= 500 {
		log.S(ctx).Warnw("server is down", "status", resp.StatusCode())
		return fmt.Errorf("server is down: status %d", resp.StatusCode())
	}

	var errs []error
	lines := 0
	for _, line := range strings.Split(resp.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines++
		if err := d.classify(ctx, line); err != nil {
			errs = append(errs, err)
		}
	}

	if lines == 0 {
		log.S(ctx).Warnw("empty response", "status", resp.StatusCode())
		return fmt.Errorf("empty response, status %d", resp.StatusCode())
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	log.S(ctx).Infow("records updated", "myip", myip, "response", strings.TrimSpace(resp.String()))
	return nil
}

func newDynDNSVariant(name, server string, ipv6 bool) func(ctx context.Context, options map[string]any) (Interface, error) {
	return func(ctx context.Context, options map[string]any) (Interface, error) {
		ctx = log.SWith(ctx, "type", name)

		d := &dynDNS{name: name, ipv6: ipv6, now: time.Now}
		if err := common.StrictDecodeMap(options, d); err != nil {
			log.S(ctx).Errorw("bad config", zap.Error(err))
			return nil, fmt.Errorf("bad config: %w", err)
		}

		if d.Username == "" || d.Password == "" {
			log.S(ctx).Errorw("bad config: username and password are required")
			return nil, fmt.Errorf("bad config: username and password are required")
		}

		if d.Endpoint == "" {
			d.Endpoint = server
		}

		d.client = newRestClient(ctx, d.Endpoint)
		return d, nil
	}
}
