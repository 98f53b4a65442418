package sources

import (
	"context"
	"dynners/common"
	"dynners/config"
	"dynners/log"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"sync"

	"go.uber.org/zap"
)

const maxReadHTTP = 4 * 1024

var ErrNoMatch = errors.New("capture pattern did not match")

// capturer extracts the address text from a response body.
type capturer interface {
	Capture(body []byte) ([]byte, bool)
	String() string
}

type httpSource struct {
	config.IPSourceHTTPConfig `mapstructure:",squash"`

	family  common.Family
	timeout *common.Duration
	capture capturer

	// family pinned client, built from the ctx client on first use
	mu     sync.Mutex
	base   *http.Client
	client *http.Client
}

func (s *httpSource) Typename() string {
	return "http"
}

func (s *httpSource) Family() common.Family {
	return s.family
}

func (s *httpSource) pinnedClient(ctx context.Context) (*http.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := common.HttpClient(ctx)
	if s.client != nil && s.base == base {
		return s.client, nil
	}

	client, err := wrapClientDialer(ctx, base, familyDialer(s.family))
	if err != nil {
		return nil, err
	}

	s.base, s.client = base, client
	return client, nil
}

func (s *httpSource) Lookup(ctx context.Context) (result netip.Addr, err error) {
	client, err := s.pinnedClient(ctx)
	if err != nil {
		return netip.Addr{}, err
	}

	ctx = log.SWith(ctx, "url", s.URL, "family", s.family, "timeout", s.timeout)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.Addr(result))
		}
	}()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		log.S(ctx).Errorw("new request failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf("new request failed: %w", err)
	}

	if ua := common.UserAgent(ctx); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.S(ctx).Warnw("connection failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`connection failed: %w`, err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.S(ctx).Warnw("close body failed", zap.Error(err))
		}
	}(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadHTTP))
	if err != nil {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`failed receiving response: %w`, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.S(ctx).Warnw("unexpected status", "status", resp.StatusCode, log.ByteField("body", data))
		return netip.Addr{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if s.capture != nil {
		captured, ok := s.capture.Capture(data)
		if !ok {
			log.S(ctx).Warnw("no IP found in response", "regex", s.capture, log.ByteField("body", data))
			return netip.Addr{}, ErrNoMatch
		}
		data = captured
	}

	return parseAddr(ctx, s.family, string(data))
}

func newHTTP(ctx context.Context, conf config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "http")

	s := &httpSource{family: conf.Version, timeout: conf.Timeout}
	if err := common.StrictDecodeMap(conf.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", conf.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.URL == "" {
		log.S(ctx).Errorw("bad config: url is empty")
		return nil, fmt.Errorf("bad config: url is empty")
	}

	if s.Regex != nil && *s.Regex != "" {
		c, err := newCapture(*s.Regex)
		if err != nil {
			log.S(ctx).Errorw("bad config: bad regex", "regex", *s.Regex, zap.Error(err))
			return nil, fmt.Errorf("bad config: bad regex: %w", err)
		}
		s.capture = c
	}

	return s, nil
}
