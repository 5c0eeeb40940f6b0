package types

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"fmt"
	"strings"
	"time"
)

// IndicatorType is the closed set of categories an indicator can be classified as.
// An indicator holds exactly one type; Unknown is the catch-all.
type IndicatorType int

const (
	HashMD5 IndicatorType = iota
	HashSHA1
	HashSHA256
	IPAddress
	Domain
	URL
	Email
	RegistryKey
	Unknown
)

var typeNames = [...]string{
	HashMD5:     "HASH_MD5",
	HashSHA1:    "HASH_SHA1",
	HashSHA256:  "HASH_SHA256",
	IPAddress:   "IP_ADDRESS",
	Domain:      "DOMAIN",
	URL:         "URL",
	Email:       "EMAIL",
	RegistryKey: "REGISTRY_KEY",
	Unknown:     "UNKNOWN",
}

// AllTypes returns every IndicatorType in declaration order.
func AllTypes() []IndicatorType {
	return []IndicatorType{HashMD5, HashSHA1, HashSHA256, IPAddress, Domain, URL, Email, RegistryKey, Unknown}
}

// Name returns the canonical upper-case name, e.g. "IP_ADDRESS".
// Values outside the enumeration report as "UNKNOWN".
func (t IndicatorType) Name() string {
	if t < 0 || int(t) >= len(typeNames) {
		return typeNames[Unknown]
	}
	return typeNames[t]
}

func (t IndicatorType) String() string {
	return t.Name()
}

// MarshalText encodes the type as its lower-case canonical name ("ip_address").
func (t IndicatorType) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(t.Name())), nil
}

// UnmarshalText accepts the canonical name in either case.
func (t *IndicatorType) UnmarshalText(text []byte) error {
	want := strings.ToUpper(strings.TrimSpace(string(text)))
	for i, name := range typeNames {
		if name == want {
			*t = IndicatorType(i)
			return nil
		}
	}
	return fmt.Errorf("types: unknown indicator type %q", string(text))
}

// Indicator is a canonical indicator value together with its classification.
type Indicator struct {
	Value    string        `json:"value"`
	Type     IndicatorType `json:"type"`
	TypeName string        `json:"type_name"`
}

// TableMapping names a log table and the fields an indicator is compared against in it.
type TableMapping struct {
	Table  string   `json:"table" yaml:"table"`
	Fields []string `json:"fields" yaml:"fields"`
}

// Mappings is the ordered list of tables searched for each indicator type.
type Mappings map[IndicatorType][]TableMapping

// Queries maps a query key (normally a table name) to rendered query text.
type Queries map[string]string

// EnrichInfo contains additional information about a network indicator gathered from external sources
type EnrichInfo struct {
	// Indicator value this enrichment data belongs to
	Value string `json:"value"`
	// Address or host that was actually looked up (the host part of a URL, the domain of an e-mail)
	Lookup string `json:"lookup"`
	// Source of the abuse contact information (e.g., "RipeSTAT", "whois", "ipinfo")
	AbuseSource string `json:"abuse_source"`
	// Email address(es) for reporting abuse, semicolon-separated if multiple
	Abuse string `json:"abuse"`
	// Network prefix/CIDR block the IP belongs to
	Prefix string `json:"prefix,omitempty"`
	// Autonomous System Number
	Asn string `json:"asn,omitempty"`
	// Organization name that owns the ASN
	Holder string `json:"holder,omitempty"`
	// Country code where the IP is located
	Country string `json:"country,omitempty"`
	// City where the IP is located
	City string `json:"city,omitempty"`
	// Registrar of a domain, taken from whois
	Registrar string `json:"registrar,omitempty"`
}

// IndicatorResult is one indicator as it appears in a report.
type IndicatorResult struct {
	Indicator
	Defanged   string      `json:"defanged,omitempty"`
	Queries    Queries     `json:"queries"`
	Enrichment *EnrichInfo `json:"enrichment,omitempty"`
}

// Report is the document written by the command line tool.
type Report struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	GeneratedAt time.Time         `json:"generated_at"`
	TimeRange   string            `json:"time_range"`
	Limit       int               `json:"limit"`
	Results     []IndicatorResult `json:"results"`
	Union       Queries           `json:"union,omitempty"`
}
