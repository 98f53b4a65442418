package ddns

import (
	"context"
	"dynners/common"
	"dynners/log"
	"fmt"

	"go.uber.org/zap"
)

// dummy pretends to update and logs what it would have sent.
type dummy struct{}

func (d *dummy) Typename() string {
	return "dummy"
}

func (d *dummy) Update(ctx context.Context, u Update) error {
	log.S(ctx).Infow("simulate updating domains",
		"domains", u.Domains,
		log.AddrKey("ipv4", u.IPv4),
		log.AddrKey("ipv6", u.IPv6))
	return nil
}

func newDummy(ctx context.Context, options map[string]any) (Interface, error) {
	var none struct{}
	if err := common.StrictDecodeMap(options, &none); err != nil {
		log.S(ctx).Errorw("bad config", "type", "dummy", zap.Error(err))
		return nil, fmt.Errorf("bad config: %w", err)
	}

	return &dummy{}, nil
}
