package ddns

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type dynDNSServer struct {
	*httptest.Server

	calls    atomic.Int32
	response atomic.Value
	status   atomic.Int32
	query    atomic.Value
}

func newDynDNSServer(t *testing.T, response string) *dynDNSServer {
	s := &dynDNSServer{}
	s.response.Store(response)
	s.status.Store(http.StatusOK)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.query.Store(r.URL.Query())

		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "pass" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "badauth")
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != testUserAgent {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "badagent")
			return
		}

		w.WriteHeader(int(s.status.Load()))
		fmt.Fprint(w, s.response.Load().(string))
	}))
	t.Cleanup(s.Close)

	return s
}

func (s *dynDNSServer) options() map[string]any {
	return map[string]any{
		"username": "user",
		"password": "pass",
		"endpoint": s.URL + "/nic/update",
	}
}

var (
	v4 = netip.MustParseAddr("203.0.113.7")
	v6 = netip.MustParseAddr("2001:db8::7")
)

func TestDynDNSUpdate(t *testing.T) {
	ctx := testContext(t)
	srv := newDynDNSServer(t, "good 203.0.113.7\nnochg 2001:db8::7\n")
	p := mustNew(t, ctx, "noip", srv.options())

	err := p.Update(ctx, Update{
		Domains: []string{"a.example.com", "b.example.com"},
		IPv4:    v4,
		IPv6:    v6,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	q := srv.query.Load().(url.Values)
	if got := q["hostname"]; len(got) != 1 || got[0] != "a.example.com,b.example.com" {
		t.Errorf("hostname = %v", got)
	}
	if got := q["myip"]; len(got) != 1 || got[0] != "203.0.113.7,2001:db8::7" {
		t.Errorf("myip = %v", got)
	}
}

func TestDynDNSPartialFailure(t *testing.T) {
	ctx := testContext(t)
	srv := newDynDNSServer(t, "good 203.0.113.7\nnohost\n")
	p := mustNew(t, ctx, "dynu", srv.options())

	u := Update{Domains: []string{"a.example.com", "b.example.com"}, IPv4: v4}
	if err := p.Update(ctx, u); err == nil {
		t.Fatal("Update reported success although one host failed")
	}

	// nohost is permanent: no more requests until restart.
	err := p.Update(ctx, u)
	if !errors.Is(err, ErrSuspended) {
		t.Fatalf("second Update = %v, want ErrSuspended", err)
	}
	if n := srv.calls.Load(); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestDynDNSServerErrorBackoff(t *testing.T) {
	ctx := testContext(t)
	srv := newDynDNSServer(t, "911")
	p := mustNew(t, ctx, "selfhost", srv.options())

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.(*dynDNS).now = func() time.Time { return now }

	u := Update{Domains: []string{"example.com"}, IPv4: v4}
	if err := p.Update(ctx, u); err == nil {
		t.Fatal("911 must fail the update")
	}

	now = now.Add(10 * time.Minute)
	if err := p.Update(ctx, u); !errors.Is(err, ErrSuspended) {
		t.Fatalf("Update during backoff = %v, want ErrSuspended", err)
	}

	srv.response.Store("good 203.0.113.7")
	now = now.Add(serverErrorBackoff)
	if err := p.Update(ctx, u); err != nil {
		t.Fatalf("Update after backoff: %v", err)
	}
	if n := srv.calls.Load(); n != 2 {
		t.Errorf("server called %d times, want 2", n)
	}
}

func TestDynDNSBadAuth(t *testing.T) {
	ctx := testContext(t)
	srv := newDynDNSServer(t, "good")

	opts := srv.options()
	opts["password"] = "wrong"
	p := mustNew(t, ctx, "ipv64", opts)

	u := Update{Domains: []string{"example.com"}, IPv4: v4}
	if err := p.Update(ctx, u); err == nil || !strings.Contains(err.Error(), "authentication") {
		t.Fatalf("Update = %v, want authentication failure", err)
	}
	if err := p.Update(ctx, u); !errors.Is(err, ErrSuspended) {
		t.Fatalf("Update after badauth = %v, want ErrSuspended", err)
	}
}

func TestDynDNSServerDown(t *testing.T) {
	ctx := testContext(t)
	srv := newDynDNSServer(t, "")
	srv.status.Store(http.StatusBadGateway)
	p := mustNew(t, ctx, "noip", srv.options())

	err := p.Update(ctx, Update{Domains: []string{"example.com"}, IPv4: v4})
	if err == nil || !strings.Contains(err.Error(), "server is down") {
		t.Fatalf("Update = %v, want server is down", err)
	}

	// 5xx is not a protocol answer, the provider is not suspended.
	srv.status.Store(http.StatusOK)
	srv.response.Store("good")
	if err := p.Update(ctx, Update{Domains: []string{"example.com"}, IPv4: v4}); err != nil {
		t.Fatalf("Update after recovery: %v", err)
	}
}

func TestDynDNSUnknownResponse(t *testing.T) {
	ctx := testContext(t)
	srv := newDynDNSServer(t, "whatever")
	p := mustNew(t, ctx, "noip", srv.options())

	if err := p.Update(ctx, Update{Domains: []string{"example.com"}, IPv4: v4}); err == nil {
		t.Fatal("unknown response must fail the update")
	}

	srv.response.Store("good")
	err := p.Update(ctx, Update{Domains: []string{"example.com"}, IPv4: v4})
	if !errors.Is(err, ErrSuspended) {
		t.Fatalf("Update after unknown response = %v, want ErrSuspended", err)
	}
	if n := srv.calls.Load(); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestDNSOMaticRejectsIPv6(t *testing.T) {
	ctx := testContext(t)
	srv := newDynDNSServer(t, "good")
	p := mustNew(t, ctx, "dnsomatic", srv.options())

	err := p.Update(ctx, Update{Domains: []string{"example.com"}, IPv4: v4, IPv6: v6})
	if !errors.Is(err, ErrUnsupportedFamily) {
		t.Fatalf("Update = %v, want ErrUnsupportedFamily", err)
	}
	if n := srv.calls.Load(); n != 0 {
		t.Errorf("server called %d times, want 0", n)
	}
}
