package ddns

import (
	"context"
	"dynners/common"
	"dynners/log"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type logger struct {
	ctx context.Context
}

// Printf serves cloudflare-go.
func (l *logger) Printf(format string, v ...interface{}) {
	log.S(l.ctx).Debugf(format, v...)
}

func (l *logger) Errorf(format string, v ...interface{}) {
	log.S(l.ctx).Warnf(format, v...)
}

func (l *logger) Warnf(format string, v ...interface{}) {
	log.S(l.ctx).Warnf(format, v...)
}

func (l *logger) Debugf(format string, v ...interface{}) {
	log.S(l.ctx).Debugf(format, v...)
}

// newRestClient returns a resty client on a copy of the http.Client carried
// by ctx, sending the process user agent.
func newRestClient(ctx context.Context, baseURL string) *resty.Client {
	hc := *common.HttpClient(ctx)

	c := resty.NewWithClient(&hc).
		SetBaseURL(baseURL).
		SetLogger(&logger{ctx: ctx})

	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal

	if ua := common.UserAgent(ctx); ua != "" {
		c.SetHeader("User-Agent", ua)
	}

	return c
}

// checkResponse turns transport errors and non-2xx responses into errors.
func checkResponse(ctx context.Context, resp *resty.Response, err error) error {
	if err != nil {
		log.S(ctx).Warnw("request failed", zap.Error(err))
		return fmt.Errorf("request failed: %w", err)
	}

	if !resp.IsSuccess() {
		log.S(ctx).Warnw("unexpected status",
			"status", resp.StatusCode(),
			log.ByteField("body", resp.Body()))
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	return nil
}
