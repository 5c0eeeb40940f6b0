package enricher

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"context"
	"fmt"
	"maps"
	"net"
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/DIVD-NL/ioc-hunt/pkg/ipinfo"
	"github.com/DIVD-NL/ioc-hunt/pkg/ripestat"
	"github.com/DIVD-NL/ioc-hunt/pkg/types"

	"github.com/likexian/whois"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Constants for error and log messages
const (
	errWhoisEmpty      = "enricher: whoisLookup - whois info is empty for %s"
	errNoAbuseEmails   = "enricher: whoisAbuseContacts - could not find any abuse emails for %s"
	logWhoisNoInfo     = "enricher: whoisLookup - could not get whois info for %s: %v"
	logRipeStatNoAbuse = "enricher: ripestat has no abuse mails for us, executing whois on IP address: %s"
	logEmailParseErr   = "enricher: whoisAbuseContacts - could not parse email address %d for %s"
	logSkipAddress     = "enricher: Enrich - skipping non-public IP address %s"
)

// Enricher looks up abuse contacts, routing and registration data for network indicators
type Enricher struct {
	ripeClient   RipeStat
	ipinfoClient IPInfo
	whoisLookup  WhoisFunc
	// holders caches ASN holder names, whoisCache raw whois answers per query
	holders    *cache.Cache
	whoisCache *cache.Cache
	// Concurrency bounds EnrichAll; values below 1 mean DefaultConcurrency
	Concurrency int
}

// NewEnricher creates a new Enricher instance.
// It initializes the RipeStat client and the IPInfo client if an API token is given.
func NewEnricher(ipInfoToken string) *Enricher {
	var ipinfoClient IPInfo
	if ipInfoToken != "" {
		ipinfoClient = ipinfo.NewIpInfoClient(3, ipInfoToken)
	}
	return New(ripestat.NewRipeStatClient(RipeStatSourceApp), ipinfoClient, whois.Whois)
}

// New creates an Enricher from explicit clients. ipinfoClient may be nil.
func New(ripeClient RipeStat, ipinfoClient IPInfo, whoisLookup WhoisFunc) *Enricher {
	return &Enricher{
		ripeClient:   ripeClient,
		ipinfoClient: ipinfoClient,
		whoisLookup:  whoisLookup,
		holders:      cache.New(time.Hour, 2*time.Hour),
		whoisCache:   cache.New(30*time.Minute, time.Hour),
		Concurrency:  DefaultConcurrency,
	}
}

// EnrichAll enriches every enrichable indicator, at most Concurrency at a time.
// Indicators that cannot be enriched (hashes, registry keys, private addresses)
// are left out of the result.
func (e *Enricher) EnrichAll(ctx context.Context, indicators []types.Indicator) []types.EnrichInfo {
	limit := e.Concurrency
	if limit < 1 {
		limit = DefaultConcurrency
	}

	results := make([]*types.EnrichInfo, len(indicators))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	for i, indicator := range indicators {
		group.Go(func() error {
			logrus.Debug("enriching indicator: ", indicator.Value)
			if info, ok := e.Enrich(groupCtx, indicator); ok {
				results[i] = info
			}
			return nil
		})
	}
	_ = group.Wait()

	enriched := make([]types.EnrichInfo, 0, len(indicators))
	for _, info := range results {
		if info != nil {
			enriched = append(enriched, *info)
		}
	}
	logrus.Debugf("enricher: EnrichAll - enriched %d of %d indicators", len(enriched), len(indicators))
	return enriched
}

// Enrich gathers enrichment information for one indicator.
// The boolean is false when the indicator type carries no network context.
func (e *Enricher) Enrich(ctx context.Context, indicator types.Indicator) (*types.EnrichInfo, bool) {
	switch indicator.Type {
	case types.IPAddress:
		return e.enrichHost(ctx, indicator.Value, indicator.Value)
	case types.Domain:
		return e.enrichHost(ctx, indicator.Value, strings.ToLower(indicator.Value))
	case types.URL:
		host := hostOf(indicator.Value)
		if host == "" {
			return nil, false
		}
		return e.enrichHost(ctx, indicator.Value, host)
	case types.Email:
		_, domain, found := strings.Cut(indicator.Value, "@")
		if !found || domain == "" {
			return nil, false
		}
		return e.enrichHost(ctx, indicator.Value, strings.ToLower(domain))
	default:
		return nil, false
	}
}

// enrichHost dispatches on whether host is an IP address or a domain name
func (e *Enricher) enrichHost(ctx context.Context, value, host string) (*types.EnrichInfo, bool) {
	if ip := net.ParseIP(host); ip != nil {
		if !ip.IsGlobalUnicast() || ip.IsPrivate() {
			logrus.Debugf(logSkipAddress, host)
			return nil, false
		}
		info := e.EnrichIP(ctx, host)
		info.Value = value
		return &info, true
	}

	info := e.EnrichDomain(ctx, host)
	info.Value = value
	return &info, true
}

// EnrichIP gathers enrichment information for the provided IP address.
// It collects abuse contact, network information, ASN holder, and geolocation data.
func (e *Enricher) EnrichIP(ctx context.Context, ipAddr string) types.EnrichInfo {
	enrichInfo := types.EnrichInfo{
		Value:  ipAddr,
		Lookup: ipAddr,
	}

	enrichInfo.Abuse, enrichInfo.AbuseSource = e.enrichAbuseFromIP(ctx, ipAddr)
	enrichInfo.Prefix, enrichInfo.Asn = e.enrichPrefixAndASNFromIP(ctx, ipAddr)
	enrichInfo.Holder = e.enrichHolderFromASN(ctx, enrichInfo.Asn)
	enrichInfo.City, enrichInfo.Country = e.enrichCityAndCountry(ctx, ipAddr, enrichInfo.Prefix)

	return enrichInfo
}

// EnrichDomain gathers registrar and abuse contact information for a domain from whois.
func (e *Enricher) EnrichDomain(ctx context.Context, domain string) types.EnrichInfo {
	enrichInfo := types.EnrichInfo{
		Value:       domain,
		Lookup:      domain,
		AbuseSource: sourceWhois,
		Abuse:       unknown,
		Registrar:   unknown,
	}

	if ctx.Err() != nil {
		return enrichInfo
	}

	whoisInfo, err := e.whoisText(domain)
	if err != nil {
		logrus.Debugf("enricher: EnrichDomain - %v", err)
		return enrichInfo
	}

	if match := registrarRegexp.FindStringSubmatch(whoisInfo); match != nil {
		enrichInfo.Registrar = match[1]
	}
	if contacts, err := abuseContactsFromWhois(domain, whoisInfo); err == nil {
		enrichInfo.Abuse = strings.Join(contacts, ";")
	}

	return enrichInfo
}

// enrichAbuseFromIP attempts to find abuse contact information for an IP address.
// It first tries RipeStat, then falls back to Whois, and finally IPInfo if available.
func (e *Enricher) enrichAbuseFromIP(ctx context.Context, ipAddr string) (abuseEmails string, abuseSource string) {
	rsEmailAddresses, err := e.ripeClient.GetAbuseContacts(ctx, ipAddr)
	if err != nil {
		logrus.Warnf("abuse rsEmailAddresses err: %v", err)
		return unknown, sourceRipeStat
	}

	if len(rsEmailAddresses) > 0 {
		cleanMailAddresses := make([]string, 0, len(rsEmailAddresses))
		for _, mailAddress := range rsEmailAddresses {
			parsedAddr, err := mail.ParseAddress(mailAddress)
			if err != nil {
				logrus.Warnf("abuse foundMailAddresses err: %v", err)
				continue
			}
			if clean := sanitizeEmail(parsedAddr.Address); clean != "" {
				cleanMailAddresses = append(cleanMailAddresses, clean)
			}
		}
		if len(cleanMailAddresses) == 0 {
			return unknown, sourceRipeStat
		}
		return strings.Join(cleanMailAddresses, ";"), sourceRipeStat
	}

	// Fallback to whois if no abuse contact was found in RipeStat
	logrus.Debugf(logRipeStatNoAbuse, ipAddr)
	contactsFromWhois, err := e.whoisAbuseContacts(ipAddr)
	if err == nil && len(contactsFromWhois) > 0 {
		return strings.Join(contactsFromWhois, ";"), sourceWhois
	}
	logrus.Debugf("abuse contactsFromWhois err: %v", err)

	// Fallback to ipinfo if no abuse contact was found in whois either
	if e.ipinfoClient != nil {
		abuseContact, err := e.ipinfoClient.GetAbuseContact(ctx, ipAddr)
		if err != nil {
			logrus.Debugf("abuse contactsFromIpinfo err: %v", err)
			return unknown, sourceRipeStat
		}
		if clean := sanitizeEmail(abuseContact); clean != "" {
			return clean, sourceIpinfo
		}
	}

	return unknown, sourceRipeStat
}

// enrichPrefixAndASNFromIP retrieves the network prefix and ASN for an IP address.
func (e *Enricher) enrichPrefixAndASNFromIP(ctx context.Context, ipAddr string) (string, string) {
	netInfo, err := e.ripeClient.GetNetworkInfo(ctx, ipAddr)
	if err != nil {
		logrus.Warnf("network info err: %v", err)
		return unknown, unknown
	}

	prefix := netInfo.Prefix
	if prefix == "" {
		prefix = unknown
	}
	if len(netInfo.ASNs) == 0 {
		return prefix, unknown
	}

	return prefix, netInfo.ASNs[0].String()
}

// enrichHolderFromASN retrieves the organization name for the given ASN.
func (e *Enricher) enrichHolderFromASN(ctx context.Context, asn string) string {
	if asn == unknown {
		return unknown
	}

	if holder, ok := e.holders.Get(asn); ok {
		return holder.(string)
	}

	var asnInt int
	if _, err := fmt.Sscanf(asn, "%d", &asnInt); err != nil {
		logrus.Warnf("failed to parse ASN: %v", err)
		return unknown
	}

	asOverview, err := e.ripeClient.GetASOverview(ctx, asnInt)
	if err != nil {
		logrus.Warnf("holder err: %v", err)
		return unknown
	}

	holder := asOverview.Holder
	if holder == "" {
		holder = unknown
	}
	e.holders.Set(asn, holder, cache.DefaultExpiration)
	return holder
}

// enrichCityAndCountry retrieves geolocation information for a network prefix,
// falling back to the address itself and then to ipinfo.
func (e *Enricher) enrichCityAndCountry(ctx context.Context, ipAddr, prefix string) (string, string) {
	resources := []string{ipAddr}
	if prefix != unknown {
		resources = []string{prefix, ipAddr}
	}

	for _, resource := range resources {
		geoData, err := e.ripeClient.GetGeolocationData(ctx, resource)
		if err != nil {
			logrus.Debugf("geolocation err for %s: %v", resource, err)
			continue
		}
		return orUnknown(geoData.City), orUnknown(geoData.CountryCode)
	}

	if e.ipinfoClient != nil {
		location, err := e.ipinfoClient.GetLocation(ctx, ipAddr)
		if err == nil {
			return orUnknown(location.City), orUnknown(location.Country)
		}
		logrus.Debugf("ipinfo location err for %s: %v", ipAddr, err)
	}

	logrus.Warnf("geolocation err for %s: no source had data", ipAddr)
	return unknown, unknown
}

// whoisText returns the (cached) raw whois answer for query.
func (e *Enricher) whoisText(query string) (string, error) {
	if cached, ok := e.whoisCache.Get(query); ok {
		return cached.(string), nil
	}

	whoisInfo, err := e.whoisLookup(query)
	if err != nil {
		logrus.Debugf(logWhoisNoInfo, query, err)
		return "", err
	}
	if whoisInfo == "" {
		return "", fmt.Errorf(errWhoisEmpty, query)
	}

	e.whoisCache.Set(query, whoisInfo, cache.DefaultExpiration)
	return whoisInfo, nil
}

// whoisAbuseContacts queries WHOIS for email addresses associated with an IP address or domain.
func (e *Enricher) whoisAbuseContacts(query string) ([]string, error) {
	whoisInfo, err := e.whoisText(query)
	if err != nil {
		return nil, err
	}
	return abuseContactsFromWhois(query, whoisInfo)
}

// abuseContactsFromWhois returns the unique, lower-case e-mail addresses in a whois answer.
// Addresses mentioning "abuse" are preferred when present.
func abuseContactsFromWhois(query, whoisInfo string) ([]string, error) {
	foundMailAddresses := whoisRegexp.FindAllString(whoisInfo, -1)
	if len(foundMailAddresses) == 0 {
		return nil, fmt.Errorf(errNoAbuseEmails, query)
	}

	uniqueMailAddresses := make(map[string]struct{}, len(foundMailAddresses))
	abuseOnly := make(map[string]struct{})
	for i, mailAddr := range foundMailAddresses {
		email, err := mail.ParseAddress(mailAddr)
		if err != nil {
			logrus.Debugf(logEmailParseErr, i, query)
			continue
		}

		address := strings.ToLower(email.Address)
		uniqueMailAddresses[address] = struct{}{}
		if strings.Contains(address, "abuse") {
			abuseOnly[address] = struct{}{}
		}
	}

	if len(abuseOnly) > 0 {
		uniqueMailAddresses = abuseOnly
	}
	if len(uniqueMailAddresses) == 0 {
		return nil, fmt.Errorf(errNoAbuseEmails, query)
	}

	return slices.Sorted(maps.Keys(uniqueMailAddresses)), nil
}

// hostOf returns the host part of a URL indicator, which may lack a scheme.
func hostOf(value string) string {
	if !strings.Contains(value, "://") {
		value = "http://" + value
	}
	u, err := url.Parse(value)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// emailSymbols are the non-alphanumeric characters kept by sanitizeEmail
const emailSymbols = "@.-_%+&'*=!#$/?^`{}|~"

// maxEmailLength is the RFC 5321 path limit
const maxEmailLength = 254

// sanitizeEmail lower-cases an address and strips characters that have no
// business in a mailbox. Anything that does not look like local@domain.tld
// afterwards is rejected with an empty string.
func sanitizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > maxEmailLength || !basicEmailPattern.MatchString(email) {
		logrus.Warnf("enricher: sanitizeEmail - dropping malformed address %q", email)
		return ""
	}

	filtered := strings.Map(func(c rune) rune {
		if isValidEmailChar(c) {
			return c
		}
		return -1
	}, email)

	local, domain, found := strings.Cut(filtered, "@")
	if !found || local == "" || strings.Contains(domain, "@") || !strings.Contains(domain, ".") {
		logrus.Warnf("enricher: sanitizeEmail - filtered result invalid: %s -> %s", email, filtered)
		return ""
	}
	return filtered
}

func isValidEmailChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || strings.ContainsRune(emailSymbols, c)
}
