package enricher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DIVD-NL/ioc-hunt/pkg/ipinfo"
	"github.com/DIVD-NL/ioc-hunt/pkg/ripestat"
	"github.com/DIVD-NL/ioc-hunt/pkg/types"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// go-cache janitors live until their cache is garbage collected
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

type fakeRipeStat struct {
	abuse     []string
	abuseErr  error
	network   *ripestat.NetworkInfo
	holder    string
	geo       map[string]*ripestat.MaxmindGeoLite
	overviews atomic.Int32
}

func (f *fakeRipeStat) GetAbuseContacts(_ context.Context, _ string) ([]string, error) {
	return f.abuse, f.abuseErr
}

func (f *fakeRipeStat) GetNetworkInfo(_ context.Context, _ string) (*ripestat.NetworkInfo, error) {
	if f.network == nil {
		return nil, errors.New("no network info")
	}
	return f.network, nil
}

func (f *fakeRipeStat) GetASOverview(_ context.Context, asn int) (*ripestat.ASOverview, error) {
	f.overviews.Add(1)
	return &ripestat.ASOverview{Holder: f.holder, ASNumber: ripestat.ASN(asn)}, nil
}

func (f *fakeRipeStat) GetGeolocationData(_ context.Context, resource string) (*ripestat.MaxmindGeoLite, error) {
	if geo, ok := f.geo[resource]; ok {
		return geo, nil
	}
	return nil, errors.New("no geolocation data")
}

type fakeIPInfo struct {
	abuse    string
	location *ipinfo.Location
}

func (f *fakeIPInfo) GetAbuseContact(_ context.Context, _ string) (string, error) {
	if f.abuse == "" {
		return "", ipinfo.ErrNoAbuseEmail
	}
	return f.abuse, nil
}

func (f *fakeIPInfo) GetLocation(_ context.Context, _ string) (*ipinfo.Location, error) {
	if f.location == nil {
		return nil, errors.New("no location")
	}
	return f.location, nil
}

type fakeWhois struct {
	mu      sync.Mutex
	answers map[string]string
	calls   map[string]int
}

func newFakeWhois(answers map[string]string) *fakeWhois {
	return &fakeWhois{answers: answers, calls: map[string]int{}}
}

func (f *fakeWhois) lookup(query string, _ ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[query]++
	answer, ok := f.answers[query]
	if !ok {
		return "", errors.New("whois: no answer")
	}
	return answer, nil
}

func googleRipeStat() *fakeRipeStat {
	return &fakeRipeStat{
		abuse:   []string{"Network-Abuse@Google.com"},
		network: &ripestat.NetworkInfo{Prefix: "8.8.8.0/24", ASNs: []ripestat.ASN{15169}},
		holder:  "GOOGLE - Google LLC",
		geo: map[string]*ripestat.MaxmindGeoLite{
			"8.8.8.0/24": {City: "", CountryCode: "US"},
		},
	}
}

func TestEnrichIP(t *testing.T) {
	e := New(googleRipeStat(), nil, newFakeWhois(nil).lookup)

	got := e.EnrichIP(context.Background(), "8.8.8.8")
	want := types.EnrichInfo{
		Value:       "8.8.8.8",
		Lookup:      "8.8.8.8",
		AbuseSource: "RipeSTAT",
		Abuse:       "network-abuse@google.com",
		Prefix:      "8.8.8.0/24",
		Asn:         "15169",
		Holder:      "GOOGLE - Google LLC",
		Country:     "US",
		City:        "unknown",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EnrichIP mismatch (-want +got):\n%s", diff)
	}
}

func TestEnrichIPHolderIsCached(t *testing.T) {
	ripe := googleRipeStat()
	e := New(ripe, nil, newFakeWhois(nil).lookup)

	e.EnrichIP(context.Background(), "8.8.8.8")
	e.EnrichIP(context.Background(), "8.8.4.4")

	if got := ripe.overviews.Load(); got != 1 {
		t.Errorf("expected one AS overview lookup, got %d", got)
	}
}

func TestEnrichIPAbuseFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		whois      map[string]string
		ipinfo     IPInfo
		wantAbuse  string
		wantSource string
	}{
		{
			name: "whois prefers abuse addresses",
			whois: map[string]string{
				"8.8.8.8": "OrgTechEmail:  noc@isp.example\nOrgAbuseEmail:  Abuse@ISP.example\n",
			},
			wantAbuse:  "abuse@isp.example",
			wantSource: "whois",
		},
		{
			name:       "ipinfo when whois fails",
			ipinfo:     &fakeIPInfo{abuse: "abuse@ipinfo.example"},
			wantAbuse:  "abuse@ipinfo.example",
			wantSource: "ipinfo",
		},
		{
			name:       "nothing found",
			wantAbuse:  "unknown",
			wantSource: "RipeSTAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ripe := googleRipeStat()
			ripe.abuse = nil
			e := New(ripe, tt.ipinfo, newFakeWhois(tt.whois).lookup)

			got := e.EnrichIP(context.Background(), "8.8.8.8")
			if got.Abuse != tt.wantAbuse || got.AbuseSource != tt.wantSource {
				t.Errorf("got abuse %q from %q, want %q from %q", got.Abuse, got.AbuseSource, tt.wantAbuse, tt.wantSource)
			}
		})
	}
}

func TestEnrichIPRipeStatError(t *testing.T) {
	ripe := googleRipeStat()
	ripe.abuseErr = errors.New("unavailable")
	ripe.network = nil
	e := New(ripe, nil, newFakeWhois(nil).lookup)

	got := e.EnrichIP(context.Background(), "8.8.8.8")
	if got.Abuse != "unknown" || got.Prefix != "unknown" || got.Asn != "unknown" || got.Holder != "unknown" {
		t.Errorf("expected unknown fields, got %+v", got)
	}
	if ripe.overviews.Load() != 0 {
		t.Error("AS overview must not be requested without an ASN")
	}
}

func TestEnrichIPGeolocationFallback(t *testing.T) {
	ripe := googleRipeStat()
	ripe.geo = nil
	info := &fakeIPInfo{location: &ipinfo.Location{City: "Mountain View", Country: "US"}}
	e := New(ripe, info, newFakeWhois(nil).lookup)

	got := e.EnrichIP(context.Background(), "8.8.8.8")
	if got.City != "Mountain View" || got.Country != "US" {
		t.Errorf("got %s/%s, want Mountain View/US", got.City, got.Country)
	}

	e = New(ripe, nil, newFakeWhois(nil).lookup)
	got = e.EnrichIP(context.Background(), "8.8.8.8")
	if got.City != "unknown" || got.Country != "unknown" {
		t.Errorf("got %s/%s, want unknown/unknown", got.City, got.Country)
	}
}

func TestEnrichDomain(t *testing.T) {
	whoisAnswer := "Domain Name: EVIL.EXAMPLE\n" +
		"Registrar WHOIS Server: whois.registrar.example\n" +
		"Registrar: Example Registrar, LLC\n" +
		"Registrar Abuse Contact Email: abuse@registrar.example\n" +
		"Registrant Email: owner@evil.example\n"
	fake := newFakeWhois(map[string]string{"evil.example": whoisAnswer})
	e := New(googleRipeStat(), nil, fake.lookup)

	got := e.EnrichDomain(context.Background(), "evil.example")
	want := types.EnrichInfo{
		Value:       "evil.example",
		Lookup:      "evil.example",
		AbuseSource: "whois",
		Abuse:       "abuse@registrar.example",
		Registrar:   "Example Registrar, LLC",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EnrichDomain mismatch (-want +got):\n%s", diff)
	}

	e.EnrichDomain(context.Background(), "evil.example")
	if fake.calls["evil.example"] != 1 {
		t.Errorf("expected whois answer to be cached, got %d calls", fake.calls["evil.example"])
	}
}

func TestEnrichDomainWithoutWhois(t *testing.T) {
	e := New(googleRipeStat(), nil, newFakeWhois(nil).lookup)

	got := e.EnrichDomain(context.Background(), "missing.example")
	if got.Abuse != "unknown" || got.Registrar != "unknown" {
		t.Errorf("expected unknown abuse and registrar, got %+v", got)
	}
}

func TestEnrich(t *testing.T) {
	fake := newFakeWhois(map[string]string{
		"evil.example": "Registrar: Example Registrar\nabuse@registrar.example\n",
	})
	e := New(googleRipeStat(), nil, fake.lookup)

	tests := []struct {
		name       string
		indicator  types.Indicator
		wantOK     bool
		wantLookup string
	}{
		{"public ip", types.Indicator{Value: "8.8.8.8", Type: types.IPAddress}, true, "8.8.8.8"},
		{"private ip", types.Indicator{Value: "10.0.0.1", Type: types.IPAddress}, false, ""},
		{"loopback ip", types.Indicator{Value: "127.0.0.1", Type: types.IPAddress}, false, ""},
		{"domain", types.Indicator{Value: "Evil.Example", Type: types.Domain}, true, "evil.example"},
		{"url with ip host", types.Indicator{Value: "http://8.8.8.8/payload.exe", Type: types.URL}, true, "8.8.8.8"},
		{"url with domain host", types.Indicator{Value: "https://evil.example:8443/a", Type: types.URL}, true, "evil.example"},
		{"url without scheme", types.Indicator{Value: "evil.example/a/b", Type: types.URL}, true, "evil.example"},
		{"email", types.Indicator{Value: "bad@Evil.Example", Type: types.Email}, true, "evil.example"},
		{"hash", types.Indicator{Value: "d41d8cd98f00b204e9800998ecf8427e", Type: types.HashMD5}, false, ""},
		{"registry key", types.Indicator{Value: `HKLM\Software\Run`, Type: types.RegistryKey}, false, ""},
		{"unknown", types.Indicator{Value: "???", Type: types.Unknown}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := e.Enrich(context.Background(), tt.indicator)
			if ok != tt.wantOK {
				t.Fatalf("Enrich ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if info.Value != tt.indicator.Value {
				t.Errorf("Value = %q, want %q", info.Value, tt.indicator.Value)
			}
			if info.Lookup != tt.wantLookup {
				t.Errorf("Lookup = %q, want %q", info.Lookup, tt.wantLookup)
			}
		})
	}
}

func TestEnrichAll(t *testing.T) {
	e := New(googleRipeStat(), nil, newFakeWhois(nil).lookup)
	e.Concurrency = 2

	indicators := []types.Indicator{
		{Value: "8.8.8.8", Type: types.IPAddress},
		{Value: "d41d8cd98f00b204e9800998ecf8427e", Type: types.HashMD5},
		{Value: "192.168.1.1", Type: types.IPAddress},
		{Value: "8.8.4.4", Type: types.IPAddress},
		{Value: "evil.example", Type: types.Domain},
	}

	got := e.EnrichAll(context.Background(), indicators)
	values := make([]string, 0, len(got))
	for _, info := range got {
		values = append(values, info.Value)
	}

	want := []string{"8.8.8.8", "8.8.4.4", "evil.example"}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Errorf("EnrichAll values mismatch (-want +got):\n%s", diff)
	}
}

func TestEnrichAllEmpty(t *testing.T) {
	e := New(googleRipeStat(), nil, newFakeWhois(nil).lookup)
	if got := e.EnrichAll(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no enrichment, got %d", len(got))
	}
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Abuse@Example.COM", "abuse@example.com"},
		{"  abuse@example.com  ", "abuse@example.com"},
		{"abuse+ripe@example.com", "abuse+ripe@example.com"},
		{"abuse(at)example.com", ""},
		{"abuse@localhost", ""},
		{"abuse<script>@example.com", "abusescript@example.com"},
	}

	for _, tt := range tests {
		if got := sanitizeEmail(tt.input); got != tt.want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestHostOf(t *testing.T) {
	tests := map[string]string{
		"http://Evil.Example/path":   "evil.example",
		"hxxp-free.example/a":        "hxxp-free.example",
		"https://8.8.8.8:443/x?y=z":  "8.8.8.8",
		"ftp://files.example/a.zip":  "files.example",
		"http://[2001:db8::1]/index": "2001:db8::1",
	}
	for input, want := range tests {
		if got := hostOf(input); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", input, got, want)
		}
	}
}
