package ddns

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakePorkbun keeps records per "root/type/sub" and counts edit calls.
type fakePorkbun struct {
	mu      sync.Mutex
	records map[string][]porkbunRecord
	calls   []string
}

func (f *fakePorkbun) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(porkbunResponse{Status: "ERROR", Message: err.Error()})
		return
	}
	if body["apikey"] != "pk" || body["secretapikey"] != "sk" {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(porkbunResponse{Status: "ERROR", Message: "Invalid API key."})
		return
	}

	f.calls = append(f.calls, r.URL.Path)

	switch r.URL.Path {
	case "/dns/retrieveByNameType/example.com/A/home":
		json.NewEncoder(w).Encode(porkbunResponse{Status: "SUCCESS", Records: f.records["A/home"]})
	case "/dns/create/example.com":
		f.records[body["type"]+"/"+body["name"]] = []porkbunRecord{
			{ID: "1", Name: body["name"] + ".example.com", Type: body["type"], Content: body["content"]},
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "SUCCESS", "id": 1})
	case "/dns/editByNameType/example.com/A/home":
		for i := range f.records["A/home"] {
			f.records["A/home"][i].Content = body["content"]
		}
		json.NewEncoder(w).Encode(porkbunResponse{Status: "SUCCESS"})
	default:
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(porkbunResponse{Status: "ERROR", Message: "unexpected path " + r.URL.Path})
	}
}

func (f *fakePorkbun) takeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	calls := f.calls
	f.calls = nil
	return calls
}

func TestPorkbun(t *testing.T) {
	fake := &fakePorkbun{records: map[string][]porkbunRecord{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := testContext(t)
	p := mustNew(t, ctx, "porkbun", map[string]any{
		"api_key":        "pk",
		"secret_api_key": "sk",
		"endpoint":       srv.URL,
	})

	u := Update{Domains: []string{"home.example.com"}, IPv4: v4}

	if err := p.Update(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if calls := fake.takeCalls(); len(calls) != 2 || calls[1] != "/dns/create/example.com" {
		t.Errorf("create calls = %v", calls)
	}

	if err := p.Update(ctx, u); err != nil {
		t.Fatalf("unchanged: %v", err)
	}
	if calls := fake.takeCalls(); len(calls) != 1 {
		t.Errorf("unchanged address must only be looked up, calls = %v", calls)
	}

	u.IPv4 = v4.Next()
	if err := p.Update(ctx, u); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if calls := fake.takeCalls(); len(calls) != 2 || calls[1] != "/dns/editByNameType/example.com/A/home" {
		t.Errorf("edit calls = %v", calls)
	}
	if got := fake.records["A/home"][0].Content; got != "203.0.113.8" {
		t.Errorf("record content = %q", got)
	}
}

func TestPorkbunRefused(t *testing.T) {
	srv := httptest.NewServer(&fakePorkbun{records: map[string][]porkbunRecord{}})
	defer srv.Close()

	ctx := testContext(t)
	p := mustNew(t, ctx, "porkbun", map[string]any{
		"api_key":        "pk",
		"secret_api_key": "wrong",
		"endpoint":       srv.URL,
	})

	if err := p.Update(ctx, Update{Domains: []string{"home.example.com"}, IPv4: v4}); err == nil {
		t.Fatal("Update succeeded with a wrong key")
	}
}

func TestSplitDomain(t *testing.T) {
	tests := []struct {
		in, root, sub string
	}{
		{"example.com", "example.com", ""},
		{"home.example.com", "example.com", "home"},
		{"a.b.example.co.uk.", "example.co.uk", "a.b"},
	}

	for _, tt := range tests {
		root, sub, err := splitDomain(tt.in)
		if err != nil || root != tt.root || sub != tt.sub {
			t.Errorf("splitDomain(%q) = %q, %q, %v", tt.in, root, sub, err)
		}
	}
}
