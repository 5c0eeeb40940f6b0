package enricher

import (
	"context"
	"regexp"

	"github.com/DIVD-NL/ioc-hunt/pkg/ipinfo"
	"github.com/DIVD-NL/ioc-hunt/pkg/ripestat"
)

// Using a simpler regex pattern for email extraction
// This pattern is less complex but still effective for most cases
// and much less vulnerable to ReDoS attacks
var whoisRegexp = regexp.MustCompile("[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\\.[a-zA-Z]{2,}")

// registrarRegexp matches the registrar line of gTLD and most ccTLD whois answers
var registrarRegexp = regexp.MustCompile(`(?im)^\s*(?:registrar|sponsoring registrar|registrar name):[ \t]*(\S.*?)\s*$`)

var basicEmailPattern = regexp.MustCompile(`^.+@.+\..+$`)

const (
	// RipeStatSourceApp is the application identifier sent to RIPE Stat API
	RipeStatSourceApp = "AS50559-DIVD_NL"
	// DefaultConcurrency bounds the number of indicators enriched in parallel
	DefaultConcurrency = 8

	unknown        = "unknown"
	sourceRipeStat = "RipeSTAT"
	sourceWhois    = "whois"
	sourceIpinfo   = "ipinfo"
)

// RipeStat is the subset of the RIPE Stat client the enricher uses
type RipeStat interface {
	GetAbuseContacts(ctx context.Context, resource string) ([]string, error)
	GetNetworkInfo(ctx context.Context, ip string) (*ripestat.NetworkInfo, error)
	GetASOverview(ctx context.Context, asn int) (*ripestat.ASOverview, error)
	GetGeolocationData(ctx context.Context, resource string) (*ripestat.MaxmindGeoLite, error)
}

// IPInfo is the subset of the ipinfo client the enricher uses
type IPInfo interface {
	GetAbuseContact(ctx context.Context, ipAddr string) (string, error)
	GetLocation(ctx context.Context, ipAddr string) (*ipinfo.Location, error)
}

// WhoisFunc performs a raw whois query, see github.com/likexian/whois.Whois
type WhoisFunc func(query string, servers ...string) (string, error)

var (
	_ RipeStat = (*ripestat.Client)(nil)
	_ IPInfo   = (*ipinfo.Client)(nil)
)
