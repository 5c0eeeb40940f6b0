package kql

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"fmt"
	"os"

	"github.com/DIVD-NL/ioc-hunt/pkg/detector"
	"github.com/DIVD-NL/ioc-hunt/pkg/types"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Error messages
const (
	ErrReadMappings    = "kql: failed to read mappings file %s: %w"
	ErrParseMappings   = "kql: failed to parse mappings file %s: %w"
	ErrUnknownType     = "kql: mappings file %s: unknown indicator type %q"
	ErrEmptyTable      = "kql: mappings file %s: empty table name for %s"
	ErrNoMappingFields = "kql: mappings file %s: table %s for %s has no fields"
)

func hashTables(field string) []types.TableMapping {
	return []types.TableMapping{
		{Table: "DeviceFileEvents", Fields: []string{field}},
		{Table: "DeviceProcessEvents", Fields: []string{field}},
		{Table: "FileCreationEvents", Fields: []string{field}},
	}
}

// DefaultMappings returns the built-in Sentinel/Defender table layout.
// Every call returns a fresh copy.
func DefaultMappings() types.Mappings {
	return types.Mappings{
		types.HashMD5:    hashTables("MD5"),
		types.HashSHA1:   hashTables("SHA1"),
		types.HashSHA256: hashTables("SHA256"),
		types.IPAddress: {
			{Table: "CommonSecurityLog", Fields: []string{"SourceIP", "DestinationIP"}},
			{Table: "DnsEvents", Fields: []string{"IPAddresses"}},
			{Table: "AzureNetworkAnalytics_CL", Fields: []string{"SrcIP_s", "DestIP_s"}},
		},
		types.Domain: {
			{Table: "DnsEvents", Fields: []string{"Name"}},
			{Table: "CommonSecurityLog", Fields: []string{"RequestURL"}},
			{Table: "OfficeActivity", Fields: []string{"URL"}},
		},
		types.URL: {
			{Table: "CommonSecurityLog", Fields: []string{"RequestURL"}},
			{Table: "OfficeActivity", Fields: []string{"URL"}},
			{Table: "DeviceNetworkEvents", Fields: []string{"RemoteUrl"}},
		},
		types.Email: {
			{Table: "EmailEvents", Fields: []string{"SenderFromAddress", "RecipientEmailAddress"}},
			{Table: "OfficeActivity", Fields: []string{"UserId", "ClientIP"}},
		},
		types.RegistryKey: {
			{Table: "DeviceRegistryEvents", Fields: []string{"RegistryKey", "PreviousRegistryKey"}},
		},
	}
}

// LoadMappings reads a YAML file of the form
//
//	ip_address:
//	  - table: CommonSecurityLog
//	    fields: [SourceIP, DestinationIP]
//
// Types listed in the file replace the built-in rows for that type; types
// not listed keep their defaults.
func LoadMappings(path string) (types.Mappings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(ErrReadMappings, path, err)
	}

	var raw map[string][]types.TableMapping
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf(ErrParseMappings, path, err)
	}

	mappings := DefaultMappings()
	for name, rows := range raw {
		t, ok := detector.ParseType(name)
		if !ok {
			return nil, fmt.Errorf(ErrUnknownType, path, name)
		}
		for _, row := range rows {
			if row.Table == "" {
				return nil, fmt.Errorf(ErrEmptyTable, path, t)
			}
			if len(row.Fields) == 0 {
				return nil, fmt.Errorf(ErrNoMappingFields, path, row.Table, t)
			}
		}
		logrus.Debugf("kql: LoadMappings - %s overrides %d table(s) for %s", path, len(rows), t)
		mappings[t] = rows
	}

	return mappings, nil
}
