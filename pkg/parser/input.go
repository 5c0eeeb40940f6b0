package parser

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"slices"
	"strings"

	"github.com/DIVD-NL/ioc-hunt/pkg/defang"
)

// ParseInput splits raw text on newlines and commas, refangs every segment
// and returns the distinct canonical values. Different spellings of the same
// indicator (example[.]com, example.com) collapse to one entry.
// The result is sorted; empty or blank input gives an empty slice.
func ParseInput(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}

	segments := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, item := range strings.Split(line, ",") {
			if item = strings.TrimSpace(item); item != "" {
				segments[item] = struct{}{}
			}
		}
	}

	unique := make(map[string]struct{}, len(segments))
	for segment := range segments {
		unique[defang.Refang(segment)] = struct{}{}
	}

	values := make([]string, 0, len(unique))
	for value := range unique {
		values = append(values, value)
	}
	slices.Sort(values)
	return values
}
