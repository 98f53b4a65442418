package log

import "go.uber.org/zap"

var (
	// Internal mark the error severe, due to issues in code.
	Internal = zap.String("severe_error", "internal")

	// Suspended marks a provider refusing calls until its suspension ends.
	Suspended = zap.Bool("suspended", true)
)

// Target names the DDNS target a line belongs to.
func Target(name string) zap.Field {
	return zap.String("target", name)
}

// Service names the provider behind a target.
func Service(name string) zap.Field {
	return zap.String("service", name)
}

// Source names an IP source.
func Source(name string) zap.Field {
	return zap.String("source", name)
}
