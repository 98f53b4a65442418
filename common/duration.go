package common

import (
	"fmt"
	"strconv"
	"time"
)

// Duration accepts Go duration strings ("30s", "1m30s") or a bare number of
// seconds.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	dd, err := time.ParseDuration(string(b))
	if err != nil {
		secs, serr := strconv.ParseUint(string(b), 10, 32)
		if serr != nil {
			return err
		}
		dd = time.Duration(secs) * time.Second
	}

	if dd < 0 {
		return fmt.Errorf("duration should be positive, but got %s", dd)
	}

	*d = Duration(dd)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
