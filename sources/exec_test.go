package sources

import (
	"dynners/common"
	"dynners/config"
	"net/netip"
	"testing"
	"time"
)

func TestExecLookup(t *testing.T) {
	tests := []struct {
		name    string
		family  common.Family
		command string
		want    string
		wantErr bool
	}{
		{name: "ipv4", family: common.IPv4, command: "printf '  203.0.113.7\\n\\n'", want: "203.0.113.7"},
		{name: "ipv6", family: common.IPv6, command: "echo 2001:db8::1", want: "2001:db8::1"},
		{name: "mapped ipv4", family: common.IPv4, command: "echo ::ffff:192.0.2.10", want: "192.0.2.10"},
		{name: "wrong family", family: common.IPv4, command: "echo 2001:db8::1", wantErr: true},
		{name: "garbage", family: common.IPv4, command: "echo not-an-ip", wantErr: true},
		{name: "non-zero exit", family: common.IPv4, command: "echo 192.0.2.1; exit 3", wantErr: true},
		{name: "timeout", family: common.IPv4, command: "sleep 3; echo 192.0.2.1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			s, err := New(ctx, config.IPSource{
				Name:    tt.name,
				Version: tt.family,
				Method:  "exec",
				Timeout: timeout(300 * time.Millisecond),
				Config:  map[string]any{"command": tt.command},
			})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if s.Family() != tt.family {
				t.Errorf("Family() = %s, want %s", s.Family(), tt.family)
			}

			got, err := s.Lookup(ctx)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Lookup() = %s, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if want := netip.MustParseAddr(tt.want); got != want {
				t.Errorf("Lookup() = %s, want %s", got, want)
			}
		})
	}
}

func TestExecMissingShell(t *testing.T) {
	ctx := testContext(t)
	s, err := New(ctx, config.IPSource{
		Name:    "x",
		Version: common.IPv4,
		Method:  "exec",
		Shell:   "/nonexistent/shell",
		Config:  map[string]any{"command": "echo 192.0.2.1"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Lookup(ctx); err == nil {
		t.Fatal("spawn failure must be reported")
	}
}

func TestExecRequiresCommand(t *testing.T) {
	_, err := New(testContext(t), config.IPSource{Name: "x", Version: common.IPv4, Method: "exec"})
	if err == nil {
		t.Fatal("missing command must fail")
	}
}
