//go:build !noregex

package sources

import (
	"dynners/common"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestHTTPRegexCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>Current IP Address: 198.51.100.23</body></html>"))
	}))
	defer srv.Close()

	ctx := common.WithHTTP(testContext(t), srv.Client(), "")

	tests := []struct {
		regex   string
		want    string
		wantErr error
	}{
		{regex: `Address: ([0-9.]+)`, want: "198.51.100.23"},
		{regex: `[0-9]+\.[0-9]+\.[0-9]+\.[0-9]+`, want: "198.51.100.23"},
		{regex: `Address: ([0-9a-f:]+::)`, wantErr: ErrNoMatch},
	}

	for _, tt := range tests {
		got, err := newTestHTTP(t, common.IPv4, srv.URL, map[string]any{"regex": tt.regex}).Lookup(ctx)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("regex %q: error = %v, want %v", tt.regex, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("regex %q: %v", tt.regex, err)
			continue
		}
		if got != netip.MustParseAddr(tt.want) {
			t.Errorf("regex %q: got %s, want %s", tt.regex, got, tt.want)
		}
	}

	if _, err := newCapture("(unclosed"); err == nil {
		t.Error("bad regex must fail")
	}
}
