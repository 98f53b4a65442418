package log

import (
	"net/netip"
	"unicode/utf8"

	"go.uber.org/zap"
)

func ByteField(key string, data []byte) zap.Field {
	if utf8.Valid(data) {
		return zap.ByteString(key, data)
	} else {
		return zap.Binary(key, data)
	}
}

// Addr logs addr under "ip", or "<none>" for the zero value.
func Addr(addr netip.Addr) zap.Field {
	return AddrKey("ip", addr)
}

func AddrKey(key string, addr netip.Addr) zap.Field {
	if !addr.IsValid() {
		return zap.String(key, "<none>")
	}
	return zap.Stringer(key, addr)
}

func Stage(stage string) zap.Field {
	return zap.String("stage", stage)
}
