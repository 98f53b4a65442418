//go:build !noregex

package sources

import "regexp"

type regexCapture struct {
	*regexp.Regexp
}

// Capture returns the first capture group, or the whole match when the
// pattern has no group.
func (c regexCapture) Capture(body []byte) ([]byte, bool) {
	m := c.FindSubmatch(body)
	if m == nil {
		return nil, false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}

func newCapture(pattern string) (capturer, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return regexCapture{re}, nil
}
