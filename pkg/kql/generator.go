package kql

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"fmt"
	"slices"
	"strings"

	"github.com/DIVD-NL/ioc-hunt/pkg/detector"
	"github.com/DIVD-NL/ioc-hunt/pkg/types"
)

const (
	// DefaultTimeRange is the KQL time expression used when none is given
	DefaultTimeRange = "ago(7d)"
	// DefaultLimit is the row limit used when none is given
	DefaultLimit = 100
	// GenericKey is the query key used for indicators of unknown type
	GenericKey = "Generic"
	// unionSuffix is appended to table names in union query keys
	unionSuffix = "_Union"
)

// genericTables are searched when an indicator's type is unknown.
var genericTables = []string{
	"CommonSecurityLog",
	"DnsEvents",
	"DeviceFileEvents",
	"DeviceNetworkEvents",
	"DeviceProcessEvents",
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// commentEscaper keeps a value on its "//" comment line.
var commentEscaper = strings.NewReplacer("\r", `\r`, "\n", `\n`)

// Escape makes value safe to embed in a double-quoted KQL string literal.
func Escape(value string) string {
	return escaper.Replace(value)
}

// Generator renders hunting queries from a fixed type-to-table mapping.
// A Generator is immutable and safe for concurrent use.
type Generator struct {
	mappings types.Mappings
}

var defaultGenerator = NewGenerator(DefaultMappings())

// Default returns the generator built on DefaultMappings.
func Default() *Generator {
	return defaultGenerator
}

// NewGenerator returns a Generator over a private copy of m.
func NewGenerator(m types.Mappings) *Generator {
	mappings := make(types.Mappings, len(m))
	for t, rows := range m {
		copied := make([]types.TableMapping, len(rows))
		for i, row := range rows {
			copied[i] = types.TableMapping{Table: row.Table, Fields: slices.Clone(row.Fields)}
		}
		mappings[t] = copied
	}
	return &Generator{mappings: mappings}
}

// Tables returns the table mappings searched for t.
func (g *Generator) Tables(t types.IndicatorType) []types.TableMapping {
	return slices.Clone(g.mappings[t])
}

// GenerateQuery renders one query per table mapped to the value's type,
// keyed by table name. Values of unknown type get a single generic search.
func (g *Generator) GenerateQuery(value string, opts ...Option) types.Queries {
	o := newOptions(opts)

	t := o.resolve(value)
	rows := g.mappings[t]
	if t == types.Unknown || len(rows) == 0 {
		return types.Queries{GenericKey: genericQuery(value, o)}
	}

	escaped := Escape(value)
	queries := make(types.Queries, len(rows))
	for _, row := range rows {
		conditions := make([]string, 0, len(row.Fields))
		for _, field := range row.Fields {
			conditions = append(conditions, fieldMatch(field, escaped))
		}

		queries[row.Table] = render(
			fmt.Sprintf("IoC Type: %s", t.Name()),
			row.Table,
			strings.Join(conditions, " or "),
			o,
		)
	}

	return queries
}

// GenerateQueriesBatch runs GenerateQuery for every value independently.
// A type passed with WithType is ignored; each value is classified on its own.
func (g *Generator) GenerateQueriesBatch(values []string, opts ...Option) map[string]types.Queries {
	o := newOptions(opts)
	o.typed = false

	result := make(map[string]types.Queries, len(values))
	for _, value := range values {
		result[value] = g.GenerateQuery(value, o.apply)
	}
	return result
}

// GenerateUnionQuery renders one query per table that matches any of values.
// Values are grouped by type (or all treated as the WithType type), values of
// unknown type are skipped, and different types never share a query.
// Keys are "<table>_Union"; when more than one type group targets the same
// table the keys become "<table>_<TYPE>_Union". Both forms can appear in one
// result, so callers should range over the keys rather than build them.
func (g *Generator) GenerateUnionQuery(values []string, opts ...Option) types.Queries {
	queries := types.Queries{}
	if len(values) == 0 {
		return queries
	}

	o := newOptions(opts)
	groups := make(map[types.IndicatorType][]string)
	for _, value := range values {
		t := o.resolve(value)
		groups[t] = append(groups[t], value)
	}

	var order []types.IndicatorType
	tableUse := make(map[string]int)
	for _, t := range types.AllTypes() {
		if t == types.Unknown || len(groups[t]) == 0 || len(g.mappings[t]) == 0 {
			continue
		}
		order = append(order, t)
		for _, row := range g.mappings[t] {
			tableUse[row.Table]++
		}
	}

	for _, t := range order {
		group := groups[t]
		escaped := make([]string, len(group))
		for i, value := range group {
			escaped[i] = Escape(value)
		}

		for _, row := range g.mappings[t] {
			fieldConditions := make([]string, 0, len(row.Fields))
			for _, field := range row.Fields {
				matches := make([]string, 0, len(escaped))
				for _, value := range escaped {
					matches = append(matches, fieldMatch(field, value))
				}
				fieldConditions = append(fieldConditions, "("+strings.Join(matches, " or ")+")")
			}

			key := row.Table + unionSuffix
			if tableUse[row.Table] > 1 {
				key = row.Table + "_" + t.Name() + unionSuffix
			}

			queries[key] = render(
				fmt.Sprintf("IoC Type: %s (Union query for %d IoCs)", t.Name(), len(group)),
				row.Table,
				strings.Join(fieldConditions, " or "),
				o,
			)
		}
	}

	return queries
}

// Combine joins a set of queries into one text, ordered by key, each
// section preceded by a "// ----- <key> -----" separator.
func Combine(queries types.Queries) string {
	keys := make([]string, 0, len(queries))
	for key := range queries {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "// ----- %s -----\n%s\n", key, queries[key])
	}
	return b.String()
}

// GenerateQuery renders queries for value with the default mappings.
func GenerateQuery(value string, opts ...Option) types.Queries {
	return defaultGenerator.GenerateQuery(value, opts...)
}

// GenerateQueriesBatch renders queries for each value with the default mappings.
func GenerateQueriesBatch(values []string, opts ...Option) map[string]types.Queries {
	return defaultGenerator.GenerateQueriesBatch(values, opts...)
}

// GenerateUnionQuery renders union queries for values with the default mappings.
func GenerateUnionQuery(values []string, opts ...Option) types.Queries {
	return defaultGenerator.GenerateUnionQuery(values, opts...)
}

func fieldMatch(field, escapedValue string) string {
	return fmt.Sprintf("%s =~ \"%s\"", field, escapedValue)
}

func render(header, table, condition string, o options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s\n", header)
	fmt.Fprintf(&b, "// Table: %s\n", table)
	fmt.Fprintf(&b, "%s\n", table)
	fmt.Fprintf(&b, "| where TimeGenerated > %s\n", o.timeRange)
	fmt.Fprintf(&b, "| where %s\n", condition)
	fmt.Fprintf(&b, "| take %d\n", o.limit)
	return b.String()
}

func genericQuery(value string, o options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Generic search for IoC: %s\n", commentEscaper.Replace(value))
	fmt.Fprintf(&b, "search in (%s)\n", strings.Join(genericTables, ", "))
	fmt.Fprintf(&b, "| where TimeGenerated > %s\n", o.timeRange)
	fmt.Fprintf(&b, "| where * contains \"%s\"\n", Escape(value))
	fmt.Fprintf(&b, "| take %d\n", o.limit)
	return b.String()
}

// resolve returns the forced type, or classifies value.
func (o options) resolve(value string) types.IndicatorType {
	if o.typed {
		return o.indicatorType
	}
	return detector.Classify(value)
}
