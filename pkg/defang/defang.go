package defang

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import "strings"

// substitution is one literal replacement applied to the whole string.
type substitution struct {
	old, new string
}

// Order matters: "http:" must be rewritten after the dots are bracketed,
// and the bracketed schemes must be restored before the bare "hxxp:" forms.
var (
	defangSteps = []substitution{
		{".", "[.]"},
		{"@", "[at]"},
		{"http:", "hxxp[:]"},
		{"https:", "hxxps[:]"},
	}

	refangSteps = []substitution{
		{"[.]", "."},
		{"[at]", "@"},
		{"hxxp[:]//", "http://"},
		{"hxxps[:]//", "https://"},
		// conventions produced by other tools
		{"hxxp://", "http://"},
		{"hxxps://", "https://"},
		{"hxxp:", "http:"},
		{"hxxps:", "https:"},
		// a bracketed scheme without a following "//"
		{"hxxps[:]", "https:"},
		{"hxxp[:]", "http:"},
	}
)

// Defang makes an indicator inert for display and sharing:
// example.com becomes example[.]com, http://x becomes hxxp[:]//x.
func Defang(s string) string {
	return apply(s, defangSteps)
}

// Refang reverses Defang and the common alternative conventions (hxxp://, hxxps:).
// It is safe to call on text that was never defanged.
func Refang(s string) string {
	return apply(s, refangSteps)
}

func apply(s string, steps []substitution) string {
	for _, step := range steps {
		s = strings.ReplaceAll(s, step.old, step.new)
	}
	return s
}
