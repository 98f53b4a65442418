package ddns

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type cfRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

// fakeCloudflare serves the handful of v4 API endpoints used by the
// cloudflare provider, for a single zone "example.com".
type fakeCloudflare struct {
	t *testing.T

	mu      sync.Mutex
	records []cfRecord
	writes  []string
}

func cfReply(w http.ResponseWriter, result any) {
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   result,
		"result_info": map[string]int{
			"page":        1,
			"per_page":    100,
			"count":       1,
			"total_count": 1,
			"total_pages": 1,
		},
	})
}

func (f *fakeCloudflare) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"errors":  []map[string]any{{"code": 9109, "message": "Invalid access token"}},
		})
		return
	}
	if r.Header.Get("User-Agent") != testUserAgent {
		f.t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
	}

	const records = "/zones/zone-1/dns_records"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/zones":
		zones := []map[string]string{{"id": "zone-1", "name": "example.com"}}
		if name := r.URL.Query().Get("name"); name != "" && name != "example.com" {
			zones = zones[:0]
		}
		cfReply(w, zones)
	case r.Method == http.MethodGet && r.URL.Path == records:
		q := r.URL.Query()
		matched := []cfRecord{}
		for _, rec := range f.records {
			if rec.Name == q.Get("name") && rec.Type == q.Get("type") {
				matched = append(matched, rec)
			}
		}
		cfReply(w, matched)
	case r.Method == http.MethodPost && r.URL.Path == records:
		var rec cfRecord
		json.NewDecoder(r.Body).Decode(&rec)
		rec.ID = "rec-" + rec.Type
		f.records = append(f.records, rec)
		f.writes = append(f.writes, "create "+rec.Type)
		cfReply(w, rec)
	case (r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.HasPrefix(r.URL.Path, records+"/"):
		id := strings.TrimPrefix(r.URL.Path, records+"/")
		var rec cfRecord
		json.NewDecoder(r.Body).Decode(&rec)
		for i := range f.records {
			if f.records[i].ID == id {
				f.records[i].Content = rec.Content
				f.records[i].Proxied = rec.Proxied
				rec = f.records[i]
			}
		}
		f.writes = append(f.writes, "update "+rec.Type)
		cfReply(w, rec)
	default:
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"errors":  []map[string]any{{"code": 7003, "message": "no route for " + r.URL.Path}},
		})
	}
}

func (f *fakeCloudflare) takeWrites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	writes := f.writes
	f.writes = nil
	return writes
}

func TestCloudflare(t *testing.T) {
	fake := &fakeCloudflare{t: t, records: []cfRecord{
		{ID: "rec-old", Type: "AAAA", Name: "home.example.com", Content: "2001:db8::1", TTL: 1},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := testContext(t)
	p := mustNew(t, ctx, "cloudflare", map[string]any{"token": "tok", "endpoint": srv.URL})

	u := Update{Domains: []string{"home.example.com"}, IPv4: v4, IPv6: v6}
	if err := p.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if w := fake.takeWrites(); len(w) != 2 || w[0] != "create A" || w[1] != "update AAAA" {
		t.Errorf("writes = %v, want [create A, update AAAA]", w)
	}

	if err := p.Update(ctx, u); err != nil {
		t.Fatalf("Update unchanged: %v", err)
	}
	if w := fake.takeWrites(); len(w) != 0 {
		t.Errorf("unchanged addresses caused writes %v", w)
	}
}

func TestCloudflareUnknownZone(t *testing.T) {
	srv := httptest.NewServer(&fakeCloudflare{t: t})
	defer srv.Close()

	ctx := testContext(t)
	p := mustNew(t, ctx, "cloudflare", map[string]any{"token": "tok", "endpoint": srv.URL})

	err := p.Update(ctx, Update{Domains: []string{"home.example.org"}, IPv4: v4})
	if err == nil || !strings.Contains(err.Error(), "zone") {
		t.Fatalf("Update = %v, want zone error", err)
	}
}

func TestCloudflareConfiguredZones(t *testing.T) {
	srv := httptest.NewServer(&fakeCloudflare{t: t})
	defer srv.Close()

	ctx := testContext(t)
	p := mustNew(t, ctx, "cloudflare", map[string]any{"token": "tok", "endpoint": srv.URL, "zones": []string{"example.com"}})
	if err := p.Update(ctx, Update{Domains: []string{"home.example.com"}, IPv4: v4}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	p = mustNew(t, ctx, "cloudflare", map[string]any{"token": "tok", "endpoint": srv.URL, "zones": []string{"example.net"}})
	err := p.Update(ctx, Update{Domains: []string{"home.example.net"}, IPv4: v4})
	if err == nil || !strings.Contains(err.Error(), "example.net not found") {
		t.Fatalf("Update = %v, want zone not found", err)
	}
}

func TestCloudflareHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	for _, zones := range [][]string{nil, {"example.com"}} {
		ctx := testContext(t)
		p := mustNew(t, ctx, "cloudflare", map[string]any{"token": "tok", "endpoint": srv.URL, "zones": zones})

		ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		done := make(chan error, 1)
		go func() {
			done <- p.Update(ctx, Update{Domains: []string{"home.example.com"}, IPv4: v4})
		}()

		select {
		case err := <-done:
			if err == nil {
				t.Errorf("zones %v: Update succeeded against a hanging server", zones)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("zones %v: Update still blocked after its deadline", zones)
		}
		cancel()
	}
}
