package extractor

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"regexp"
	"sort"
	"strings"

	"github.com/DIVD-NL/ioc-hunt/pkg/defang"
)

var urlPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s"'<>(){}\[\]]+`)

var domainPattern = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,63}\b`)

// Patterns are applied in this order. Every match is blanked out of the
// working text, so a URL's host is not reported again as a domain and a
// SHA256 is not reported again as an MD5.
var patterns = []*regexp.Regexp{
	urlPattern,
	regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
	regexp.MustCompile(`\b(?:HKLM|HKCU|HKCR|HKU|HKCC)\\[^\s,;"'<>|]+`),
	regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`),
	regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`),
	regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`),
	regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`),
	domainPattern,
}

// fileExtensions look like TLDs but in reports are almost always file names.
var fileExtensions = map[string]struct{}{
	"exe": {}, "dll": {}, "sys": {}, "bat": {}, "cmd": {}, "ps1": {}, "vbs": {}, "js": {},
	"txt": {}, "log": {}, "pdf": {}, "doc": {}, "docx": {}, "xls": {}, "xlsx": {},
	"json": {}, "yaml": {}, "yml": {}, "xml": {}, "ini": {}, "tmp": {}, "dat": {}, "lnk": {},
}

const trailingPunctuation = ".,;:!?'\""

type match struct {
	start int
	value string
}

// Candidates finds indicator-shaped tokens in free text such as a threat
// report. The text is refanged first, so defanged indicators are found in
// their canonical form. Results are in order of appearance, without duplicates.
func Candidates(text string) []string {
	work := []byte(defang.Refang(text))

	var found []match
	for _, pattern := range patterns {
		for _, loc := range pattern.FindAllIndex(work, -1) {
			value := strings.TrimRight(string(work[loc[0]:loc[1]]), trailingPunctuation)
			if value == "" || isFileName(value, pattern) {
				continue
			}
			if pattern == urlPattern {
				value = lowerScheme(value)
			}
			found = append(found, match{start: loc[0], value: value})
			blank(work, loc[0], loc[1])
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].start < found[j].start
	})

	seen := make(map[string]struct{}, len(found))
	candidates := make([]string, 0, len(found))
	for _, m := range found {
		if _, ok := seen[m.value]; ok {
			continue
		}
		seen[m.value] = struct{}{}
		candidates = append(candidates, m.value)
	}
	return candidates
}

func isFileName(value string, pattern *regexp.Regexp) bool {
	if pattern != domainPattern {
		return false
	}
	ext := value[strings.LastIndexByte(value, '.')+1:]
	_, ok := fileExtensions[strings.ToLower(ext)]
	return ok
}

// lowerScheme lower-cases the scheme of a URL, "HTTP://X.com/A" becomes "http://X.com/A".
func lowerScheme(value string) string {
	scheme, rest, found := strings.Cut(value, "://")
	if !found {
		return value
	}
	return strings.ToLower(scheme) + "://" + rest
}

func blank(b []byte, start, end int) {
	for i := start; i < end; i++ {
		b[i] = ' '
	}
}
