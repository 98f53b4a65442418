package sources

import (
	"context"
	"dynners/common"
	"dynners/config"
	"fmt"
	"net/netip"
)

// Interface resolves one named address slot.
type Interface interface {
	Lookup(ctx context.Context) (netip.Addr, error)
	Typename() string
	Family() common.Family
}

var Sources = map[string]func(ctx context.Context, source config.IPSource) (Interface, error){
	"exec":      newExec,
	"interface": newInterface,
	"http":      newHTTP,
}

// ResolutionError is a failed Lookup of a named source. It is transient:
// the next tick tries again.
type ResolutionError struct {
	Source string
	Method string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("source %s (%s) failed: %v", e.Source, e.Method, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// New builds the source configured by conf.
func New(ctx context.Context, conf config.IPSource) (Interface, error) {
	create, ok := Sources[conf.Method]
	if !ok {
		return nil, fmt.Errorf("unknown method %q", conf.Method)
	}

	return create(ctx, conf)
}
