//go:build noregex

package sources

import "errors"

var errNoRegex = errors.New("built without regex support")

func newCapture(string) (capturer, error) {
	return nil, errNoRegex
}
