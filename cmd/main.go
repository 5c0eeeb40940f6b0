package main

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DIVD-NL/ioc-hunt/pkg/enricher"
	"github.com/DIVD-NL/ioc-hunt/pkg/extractor"
	"github.com/DIVD-NL/ioc-hunt/pkg/kql"
	"github.com/DIVD-NL/ioc-hunt/pkg/parser"
	"github.com/jessevdk/go-flags"
)

type Options struct {
	Input       string `short:"i" long:"input" description:"A file with one indicator per line (PDF files are detected automatically)" required:"false"`
	PDF         string `short:"p" long:"pdf" description:"A PDF threat report to extract indicators from" required:"false"`
	Output      string `short:"o" long:"output" description:"A file to write the report to (default output_TIMESTAMP.json)" required:"false"`
	Debug       bool   `short:"d" long:"debug" description:"Enable debug logging" required:"false"`
	TimeRange   string `short:"t" long:"time-range" env:"IOCHUNT_TIME_RANGE" default:"ago(7d)" description:"KQL time range expression compared against TimeGenerated"`
	Limit       int    `short:"l" long:"limit" env:"IOCHUNT_LIMIT" default:"100" description:"Maximum number of rows per query"`
	Union       bool   `short:"u" long:"union" description:"Add one union query per table covering all indicators" required:"false"`
	Extract     bool   `short:"x" long:"extract" description:"Extract indicators from free text instead of reading one per line" required:"false"`
	Enrich      bool   `short:"e" long:"enrich" description:"Enrich network indicators with abuse contacts, routing and whois data" required:"false"`
	Defang      bool   `long:"defang" description:"Include the defanged form of every indicator in the report" required:"false"`
	QueriesOnly bool   `short:"q" long:"queries-only" description:"Write the combined KQL queries instead of a JSON report" required:"false"`
	Mappings    string `short:"m" long:"mappings" description:"A YAML file overriding the table mappings per indicator type" required:"false"`
	IPInfoToken string `long:"ipinfo-token" env:"IPINFO_TOKEN" description:"ipinfo.io API token used as a last resort for abuse contacts and geolocation" required:"false"`
}

func init() {
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
}

// source is the raw text to hunt for and where it came from.
// PDF reports are prose and always go through the extractor.
type source struct {
	name  string
	text  string
	isPDF bool
}

func readSource(options Options) (source, error) {
	switch {
	case options.PDF != "":
		text, err := extractor.TextFromPDF(options.PDF)
		return source{name: options.PDF, text: text, isPDF: true}, err

	case options.Input != "":
		isPDF, err := extractor.IsPDF(options.Input)
		if err != nil {
			return source{}, err
		}
		if isPDF {
			logrus.Infof("Detected PDF format, extracting text from: %s", options.Input)
			text, err := extractor.TextFromPDF(options.Input)
			return source{name: options.Input, text: text, isPDF: true}, err
		}
		content, err := os.ReadFile(options.Input)
		return source{name: options.Input, text: string(content)}, err

	default:
		stat, err := os.Stdin.Stat()
		if err != nil {
			return source{}, fmt.Errorf("error getting stdin stat: %w", err)
		}
		if stat.Mode()&os.ModeNamedPipe == 0 {
			return source{}, fmt.Errorf("no input file provided and stdin is not a pipe")
		}
		content, err := io.ReadAll(os.Stdin)
		return source{name: "stdin", text: string(content)}, err
	}
}

func main() {
	options := Options{}
	goFlags := flags.NewParser(&options, flags.Default)

	_, err := goFlags.Parse()
	if err != nil {
		if errFlags, ok := err.(*flags.Error); ok && errFlags.Type == flags.ErrHelp {
			// flags automatically prints usage
			os.Exit(0)
		}
		logrus.Fatalf("Error parsing flags: %v", err)
	}

	// Set debug logging if requested
	if options.Debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.Debug("Debug logging enabled")
	}

	if noOutputProvided := options.Output == ""; noOutputProvided {
		// Create a timestamped output filename
		timestamp := time.Now().Format("2006-01-02T15-04-05")
		extension := "json"
		if options.QueriesOnly {
			extension = "kql"
		}
		options.Output = fmt.Sprintf("output_%s.%s", timestamp, extension)
	}

	generator := kql.Default()
	if options.Mappings != "" {
		mappings, err := kql.LoadMappings(options.Mappings)
		if err != nil {
			logrus.Fatalf("Error loading mappings: %v", err)
		}
		generator = kql.NewGenerator(mappings)
	}

	input, err := readSource(options)
	if err != nil {
		logrus.Fatalf("Error reading input: %v", err)
	}

	text := input.text
	if options.Extract || input.isPDF {
		candidates := extractor.Candidates(text)
		logrus.Infof("Extracted %d candidate indicators from %s", len(candidates), input.name)
		text = strings.Join(candidates, "\n")
	}

	huntParser := parser.NewParser(strings.NewReader(text), input.name, generator,
		kql.WithTimeRange(options.TimeRange),
		kql.WithLimit(options.Limit),
	)
	if err := huntParser.ProcessInput(); err != nil {
		logrus.Fatal(err)
	}
	logrus.Infof("Parsed %d distinct indicators from %s", len(huntParser.Indicators), input.name)

	huntParser.GenerateQueries()
	if options.Union {
		huntParser.GenerateUnion()
	}
	if options.Defang {
		huntParser.DefangResults()
	}

	if options.Enrich {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		huntParser.EnrichIndicators(ctx, enricher.NewEnricher(options.IPInfoToken))
	}

	outputFile, err := os.Create(options.Output)
	if err != nil {
		logrus.Fatal(err)
	}
	defer outputFile.Close()

	logrus.Infof("Writing output to %s", options.Output)
	if options.QueriesOnly {
		err = huntParser.WriteQueries(outputFile)
	} else {
		err = huntParser.WriteOutput(outputFile)
	}
	if err != nil {
		logrus.Fatal(err)
	}

	logrus.Infof("Successfully processed %d indicators and saved results to %s", len(huntParser.Results), options.Output)
}
