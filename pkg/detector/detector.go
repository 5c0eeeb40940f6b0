package detector

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/DIVD-NL/ioc-hunt/pkg/types"
	"golang.org/x/net/idna"
)

var (
	md5Pattern    = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)
	sha1Pattern   = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	sha256Pattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
	ipv4Pattern   = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	domainPattern = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
	urlPattern    = regexp.MustCompile(`^(?:https?://)?(?:[-\w.]|%[0-9a-fA-F]{2})+(/[^/\s]*)*$`)
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	// punycode TLDs ("xn--p1ai") are not alphabetic, so IDNs get their own pattern
	idnPattern = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+(?:[a-zA-Z]{2,}|xn--[a-zA-Z0-9-]{2,59})$`)
)

var registryHives = []string{`HKLM\`, `HKCU\`, `HKCR\`, `HKU\`, `HKCC\`}

// rule pairs a predicate with the type it assigns. Rules are evaluated in
// order and the first match wins: a URL's host and an e-mail's domain are
// themselves domains, so those checks must run before the domain check.
type rule struct {
	indicatorType types.IndicatorType
	match         func(string) bool
}

var rules = []rule{
	{types.URL, isURL},
	{types.Email, isEmail},
	{types.RegistryKey, isRegistryKey},
	{types.IPAddress, ipv4Pattern.MatchString},
	{types.HashMD5, md5Pattern.MatchString},
	{types.HashSHA1, sha1Pattern.MatchString},
	{types.HashSHA256, sha256Pattern.MatchString},
	{types.Domain, isDomain},
}

// Classify returns the type of a canonical (refanged) indicator value.
// It never fails; anything that matches no rule is types.Unknown.
func Classify(value string) types.IndicatorType {
	for _, r := range rules {
		if r.match(value) {
			return r.indicatorType
		}
	}
	return types.Unknown
}

// Detect classifies value and returns it as an Indicator.
func Detect(value string) types.Indicator {
	t := Classify(value)
	return types.Indicator{
		Value:    value,
		Type:     t,
		TypeName: TypeName(t),
	}
}

// Resolve uses typeName when it names a known type and classifies value otherwise.
// Stored indicators may carry a type string from an older rule set.
func Resolve(value, typeName string) types.IndicatorType {
	if t, ok := ParseType(typeName); ok {
		return t
	}
	return Classify(value)
}

func isURL(value string) bool {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return true
	}

	host, _, found := strings.Cut(value, "/")
	if !found {
		return false
	}
	return isDomain(host) || urlPattern.MatchString(value)
}

func isEmail(value string) bool {
	return strings.Contains(value, "@") && emailPattern.MatchString(value)
}

func isRegistryKey(value string) bool {
	for _, hive := range registryHives {
		if strings.HasPrefix(value, hive) {
			return true
		}
	}
	return false
}

func isDomain(value string) bool {
	if domainPattern.MatchString(value) {
		return true
	}
	if isASCII(value) {
		return false
	}

	ascii, err := idna.Lookup.ToASCII(value)
	if err != nil {
		return false
	}
	return idnPattern.MatchString(ascii)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
