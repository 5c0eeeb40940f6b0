package parser

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/DIVD-NL/ioc-hunt/pkg/defang"
	"github.com/DIVD-NL/ioc-hunt/pkg/detector"
	"github.com/DIVD-NL/ioc-hunt/pkg/kql"
	"github.com/DIVD-NL/ioc-hunt/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Error messages
const (
	errReadInput   = "parser: failed to read %s: %w"
	errWriteOutput = "error writing output: %w"
)

// Enricher looks up network context for indicators.
type Enricher interface {
	EnrichAll(ctx context.Context, indicators []types.Indicator) []types.EnrichInfo
}

// Parser takes a block of indicator text through classification, query
// generation and optional enrichment into a report.
type Parser struct {
	io.Reader
	// Name identifies the input in logs and in the report
	Name       string
	Indicators []types.Indicator
	Results    []types.IndicatorResult
	Union      types.Queries
	Enrichment []types.EnrichInfo

	generator *kql.Generator
	options   []kql.Option
	timeRange string
	limit     int
}

// NewParser creates a Parser reading from r. Queries are rendered with
// generator, or the default mappings when generator is nil.
func NewParser(r io.Reader, name string, generator *kql.Generator, opts ...kql.Option) *Parser {
	if generator == nil {
		generator = kql.Default()
	}

	timeRange, limit := kql.Settings(opts...)
	return &Parser{
		Reader:    r,
		Name:      name,
		generator: generator,
		options:   opts,
		timeRange: timeRange,
		limit:     limit,
	}
}

// ProcessInput reads the whole input and classifies every distinct indicator in it.
func (p *Parser) ProcessInput() error {
	logrus.Debug("parser: ProcessInput - started parsing: ", p.Name)

	content, err := io.ReadAll(p.Reader)
	if err != nil {
		return fmt.Errorf(errReadInput, p.Name, err)
	}

	values := ParseInput(string(content))
	p.Indicators = make([]types.Indicator, 0, len(values))
	for _, value := range values {
		indicator := detector.Detect(value)
		if indicator.Type == types.Unknown {
			logrus.Debugf("parser: ProcessInput - could not classify %q", value)
		}
		p.Indicators = append(p.Indicators, indicator)
	}

	logrus.Debugf("parser: ProcessInput - parsed %d distinct indicators", len(p.Indicators))
	return nil
}

// GenerateQueries renders the hunting queries for every indicator.
func (p *Parser) GenerateQueries() {
	p.Results = make([]types.IndicatorResult, 0, len(p.Indicators))
	for _, indicator := range p.Indicators {
		opts := append(slices.Clone(p.options), kql.WithType(indicator.Type))
		p.Results = append(p.Results, types.IndicatorResult{
			Indicator: indicator,
			Queries:   p.generator.GenerateQuery(indicator.Value, opts...),
		})
	}
	logrus.Debugf("parser: GenerateQueries - rendered queries for %d indicators", len(p.Results))
}

// GenerateUnion renders one query per table covering all classified indicators.
func (p *Parser) GenerateUnion() {
	values := make([]string, 0, len(p.Indicators))
	for _, indicator := range p.Indicators {
		values = append(values, indicator.Value)
	}
	p.Union = p.generator.GenerateUnionQuery(values, p.options...)
	logrus.Debugf("parser: GenerateUnion - rendered %d union queries", len(p.Union))
}

// DefangResults adds the defanged spelling of every indicator to the results.
func (p *Parser) DefangResults() {
	for i := range p.Results {
		p.Results[i].Defanged = defang.Defang(p.Results[i].Value)
	}
}

// EnrichIndicators looks up network context for the indicators and merges it into the results.
func (p *Parser) EnrichIndicators(ctx context.Context, e Enricher) {
	logrus.Infof("parser: EnrichIndicators - started working on %d indicators", len(p.Indicators))
	p.Enrichment = e.EnrichAll(ctx, p.Indicators)
	p.MergeEnrichment()
	logrus.Info("parser: EnrichIndicators - ended")
}

// MergeEnrichment attaches enrichment records to the result with the same value.
func (p *Parser) MergeEnrichment() {
	if len(p.Enrichment) == 0 {
		logrus.Debug("parser: MergeEnrichment - no enrichment info to merge")
		return
	}

	byValue := make(map[string]types.EnrichInfo, len(p.Enrichment))
	for _, info := range p.Enrichment {
		byValue[info.Value] = info
	}

	merged := 0
	for i := range p.Results {
		if info, ok := byValue[p.Results[i].Value]; ok {
			p.Results[i].Enrichment = &info
			merged++
		}
	}
	logrus.Debug("parser: MergeEnrichment - merged ", merged, " records")
}

// BuildReport assembles the report for the current results.
func (p *Parser) BuildReport() types.Report {
	results := p.Results
	if results == nil {
		results = []types.IndicatorResult{}
	}

	return types.Report{
		ID:          uuid.NewString(),
		Source:      p.Name,
		GeneratedAt: time.Now().UTC(),
		TimeRange:   p.timeRange,
		Limit:       p.limit,
		Results:     results,
		Union:       p.Union,
	}
}

// WriteOutput writes the report as indented JSON.
func (p *Parser) WriteOutput(w io.Writer) error {
	if len(p.Results) == 0 {
		logrus.Warn("parser: WriteOutput - no indicators to write")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(p.BuildReport()); err != nil {
		return fmt.Errorf(errWriteOutput, err)
	}

	logrus.Debug("parser: WriteOutput - ended")
	return nil
}

// WriteQueries writes the combined KQL text of every indicator, followed by
// the union queries if they were generated.
func (p *Parser) WriteQueries(w io.Writer) error {
	for _, result := range p.Results {
		if _, err := fmt.Fprintf(w, "// ===== %s (%s) =====\n%s\n", result.Value, result.TypeName, kql.Combine(result.Queries)); err != nil {
			return fmt.Errorf(errWriteOutput, err)
		}
	}

	if len(p.Union) > 0 {
		if _, err := fmt.Fprintf(w, "// ===== union =====\n%s", kql.Combine(p.Union)); err != nil {
			return fmt.Errorf(errWriteOutput, err)
		}
	}
	return nil
}
