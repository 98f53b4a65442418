package sources

import (
	"context"
	"dynners/common"
	"dynners/config"
	"dynners/log"
	"errors"
	"fmt"
	"net/netip"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long a killed command may keep its output pipe open
// through orphaned children.
const waitDelay = 500 * time.Millisecond

type execSource struct {
	config.IPSourceExecConfig `mapstructure:",squash"`

	family  common.Family
	shell   string
	timeout *common.Duration
}

func (s *execSource) Typename() string {
	return "exec"
}

func (s *execSource) Family() common.Family {
	return s.family
}

func (s *execSource) Lookup(ctx context.Context) (result netip.Addr, err error) {
	ctx = log.SWith(ctx, "shell", s.shell, "command", s.Command, "family", s.family)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.Addr(result))
		}
	}()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.shell, "-c", s.Command)
	cmd.WaitDelay = waitDelay

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.S(ctx).Warnw("command failed",
				"exit_code", exitErr.ExitCode(),
				log.ByteField("stderr", exitErr.Stderr),
				zap.Error(err))
			return netip.Addr{}, fmt.Errorf("command failed: %w", err)
		}

		log.S(ctx).Warnw("spawn command failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf("spawn command failed: %w", err)
	}

	return parseAddr(ctx, s.family, string(out))
}

func newExec(ctx context.Context, conf config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "exec")

	s := &execSource{family: conf.Version, shell: conf.Shell, timeout: conf.Timeout}
	if err := common.StrictDecodeMap(conf.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", conf.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.Command == "" {
		log.S(ctx).Errorw("bad config: command is empty")
		return nil, fmt.Errorf("bad config: command is empty")
	}

	if s.shell == "" {
		s.shell = config.DefaultShell
	}

	return s, nil
}
