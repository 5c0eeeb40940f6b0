package ripestat

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ASN is an autonomous system number. RIPE Stat reports it as a number in
// some endpoints and as a string ("3333" or "AS3333") in others.
type ASN int

// UnmarshalJSON accepts 3333, "3333" and "AS3333".
func (a *ASN) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	text := string(data)
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}
	text = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(text)), "AS")

	n, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf(ErrInvalidASN, string(data))
	}
	*a = ASN(n)
	return nil
}

// Int returns the ASN as a plain integer
func (a ASN) Int() int {
	return int(a)
}

func (a ASN) String() string {
	return strconv.Itoa(int(a))
}

// envelope is the part of every RIPE Stat response this client checks
type envelope struct {
	Status string          `json:"status"`
	Cached bool            `json:"cached"`
	Data   json.RawMessage `json:"data"`
}

// abuseContactData is the data section of the abuse-contact-finder endpoint
type abuseContactData struct {
	AbuseContacts    []string `json:"abuse_contacts"`
	AuthoritativeRIR string   `json:"authoritative_rir"`
}

// networkInfoData is the data section of the network-info endpoint
type networkInfoData struct {
	Prefix string `json:"prefix"`
	ASNs   []ASN  `json:"asns"`
}

// asOverviewData is the data section of the as-overview endpoint
type asOverviewData struct {
	Holder    string `json:"holder"`
	Resource  string `json:"resource"`
	Announced bool   `json:"announced"`
}

// geolocationData is the data section of the maxmind-geo-lite endpoint
type geolocationData struct {
	LocatedResources []struct {
		Resource  string `json:"resource"`
		Locations []struct {
			Country string `json:"country"`
			City    string `json:"city"`
		} `json:"locations"`
	} `json:"located_resources"`
}

// NetworkInfo contains simplified network information
type NetworkInfo struct {
	Prefix string
	ASNs   []ASN
}

// ASOverview contains simplified AS overview information
type ASOverview struct {
	Holder    string
	ASNumber  ASN
	Announced bool
}

// MaxmindGeoLite is a simplified representation of geolocation data
type MaxmindGeoLite struct {
	City        string
	CountryCode string
}
