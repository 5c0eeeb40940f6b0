package detector

import (
	"strings"

	"github.com/DIVD-NL/ioc-hunt/pkg/types"
)

var displayNames = map[types.IndicatorType]string{
	types.HashMD5:     "MD5 Hash",
	types.HashSHA1:    "SHA1 Hash",
	types.HashSHA256:  "SHA256 Hash",
	types.IPAddress:   "IP Address",
	types.Domain:      "Domain",
	types.URL:         "URL",
	types.Email:       "Email Address",
	types.RegistryKey: "Registry Key",
	types.Unknown:     "Unknown",
}

// TypeName returns the human-readable label for t, "Unknown" for anything unlisted.
func TypeName(t types.IndicatorType) string {
	if name, ok := displayNames[t]; ok {
		return name
	}
	return displayNames[types.Unknown]
}

// ParseType looks up a type by its canonical name, ignoring case ("ip_address", "IP_ADDRESS").
func ParseType(name string) (types.IndicatorType, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Unknown, false
	}

	var t types.IndicatorType
	if err := t.UnmarshalText([]byte(name)); err != nil {
		return types.Unknown, false
	}
	return t, true
}
