package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCandidates(t *testing.T) {
	report := `The actor used hxxps://evil[.]example[.]com/drop.php?id=1. C2 at 203[.]0[.]113[.]5,
contact admin[at]evil[.]example[.]com. Dropped payload.exe with SHA256
e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855 and MD5 d41d8cd98f00b204e9800998ecf8427e.
Persistence via HKCU\Software\Microsoft\Windows\CurrentVersion\Run. Also beacons to backup-c2.example.net.`

	want := []string{
		"https://evil.example.com/drop.php?id=1",
		"203.0.113.5",
		"admin@evil.example.com",
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"d41d8cd98f00b204e9800998ecf8427e",
		`HKCU\Software\Microsoft\Windows\CurrentVersion\Run`,
		"backup-c2.example.net",
	}

	if diff := cmp.Diff(want, Candidates(report)); diff != "" {
		t.Errorf("Candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestCandidatesDeduplicates(t *testing.T) {
	got := Candidates("evil.com was seen, then evil[.]com again, and EVIL.com once more")
	want := []string{"evil.com", "EVIL.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestCandidatesLowersURLScheme(t *testing.T) {
	got := Candidates("Stage two is fetched from HTTP://Evil.example/A and HTTPS://cdn.example/b.")
	want := []string{"http://Evil.example/A", "https://cdn.example/b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestCandidatesEmpty(t *testing.T) {
	if got := Candidates("nothing to see here"); len(got) != 0 {
		t.Errorf("Expected no candidates, got %v", got)
	}
	if got := Candidates(""); len(got) != 0 {
		t.Errorf("Expected no candidates, got %v", got)
	}
}

func TestIsPDF(t *testing.T) {
	dir := t.TempDir()
	files := map[string]struct {
		content string
		want    bool
	}{
		"report.pdf": {"%PDF-1.4\n%âãÏÓ\n", true},
		"iocs.txt":   {"example.com\n10.0.0.1\n", false},
		"short":      {"%P", false},
		"empty":      {"", false},
	}

	for name, f := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		got, err := IsPDF(path)
		if err != nil {
			t.Errorf("IsPDF(%s) failed: %v", name, err)
			continue
		}
		if got != f.want {
			t.Errorf("IsPDF(%s) = %v, want %v", name, got, f.want)
		}
	}

	if _, err := IsPDF(filepath.Join(dir, "missing")); err == nil {
		t.Errorf("Expected an error for a missing file")
	}
}

func TestTextFromPDFRejectsGarbage(t *testing.T) {
	garbage := strings.NewReader("this is not a pdf document at all")
	if _, err := TextFromPDFReader(garbage, garbage.Size()); err == nil {
		t.Errorf("Expected an error for non-PDF input")
	}

	if _, err := TextFromPDF(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Errorf("Expected an error for a missing file")
	}
}
