package defang

import (
	"strings"
	"testing"
)

func TestDefang(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example[.]com"},
		{"192.168.1.1", "192[.]168[.]1[.]1"},
		{"user@example.com", "user[at]example[.]com"},
		{"http://example.com/path", "hxxp[:]//example[.]com/path"},
		{"https://example.com/path", "hxxps[:]//example[.]com/path"},
		{"d41d8cd98f00b204e9800998ecf8427e", "d41d8cd98f00b204e9800998ecf8427e"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Defang(tt.in); got != tt.want {
			t.Errorf("Defang(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRefang(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example[.]com", "example.com"},
		{"192[.]168[.]1[.]1", "192.168.1.1"},
		{"user[at]example[.]com", "user@example.com"},
		{"hxxp[:]//example[.]com/path", "http://example.com/path"},
		{"hxxps[:]//example[.]com/path", "https://example.com/path"},
		{"hxxp://example[.]com/path", "http://example.com/path"},
		{"hxxps://example[.]com/path", "https://example.com/path"},
		{"hxxps:example.com", "https:example.com"},
		{"hxxp[:]example.com", "http:example.com"},
		{"already.clean", "already.clean"},
	}

	for _, tt := range tests {
		if got := Refang(tt.in); got != tt.want {
			t.Errorf("Refang(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	values := []string{
		"example.com",
		"sub1.sub2.example.org",
		"203.0.113.5",
		"user@example.com",
		"http://example.com/a.php?x=1",
		"https://evil.example/login",
		"https:no-slashes",
		"HKLM\\Software\\X",
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"[a.]@",
	}

	for _, v := range values {
		if got := Refang(Defang(v)); got != v {
			t.Errorf("Refang(Defang(%q)) = %q", v, got)
		}
	}
}

func FuzzRoundTrip(f *testing.F) {
	f.Add("example.com")
	f.Add("http://example.com/path")
	f.Add("user@mail.example.net")
	f.Fuzz(func(t *testing.T, s string) {
		if strings.Contains(s, "[.]") || strings.Contains(s, "[at]") || strings.Contains(s, "hxxp") {
			t.Skip()
		}
		if got := Refang(Defang(s)); got != s {
			t.Errorf("Refang(Defang(%q)) = %q", s, got)
		}
	})
}
