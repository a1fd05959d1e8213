// Command extract is a flag-based batch CLI over the extraction core
// (SPEC_FULL.md §A.3): "run" extracts a single page of tokens, "merge"
// combines several already-extracted DocumentResult files.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/yourorg/labreport-extract/internal/config"
	"github.com/yourorg/labreport-extract/internal/fallback"
	"github.com/yourorg/labreport-extract/internal/pipeline"
	"github.com/yourorg/labreport-extract/internal/token"
)

const usage = `extract - run the lab-report extraction pipeline over OCR tokens

Usage:
  extract run --tokens tokens.json [--debug]
  extract merge --in a.json --in b.json [--in c.json ...]

Commands:
  run      Extract a single page of tokens and print the DocumentResult JSON
  merge    Merge several DocumentResult JSON files (spec §4.5.6)

Run 'extract <command> --help' for more information on a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runExtract(os.Args[2:])
	case "merge":
		runMerge(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		fmt.Print(usage)
		os.Exit(1)
	}
}

func runExtract(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	tokensPath := fs.String("tokens", "", "Path to a JSON array of tokens (required)")
	debug := fs.Bool("debug", false, "Enable verbose per-row/per-stage debug logging")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *tokensPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --tokens is required")
		fs.Usage()
		os.Exit(1)
	}

	raw, err := os.ReadFile(*tokensPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading tokens file: %v\n", err)
		os.Exit(1)
	}

	var tokens []token.Token
	if err := json.Unmarshal(raw, &tokens); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing tokens JSON: %v\n", err)
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	opts := []pipeline.Option{
		pipeline.WithOptions(pipeline.OptionsFromConfig(cfg)),
		pipeline.WithDebugTrace(*debug),
	}
	if capabilities, ok := fallback.New(cfg); ok {
		opts = append(opts, pipeline.WithHeaderFallback(capabilities.Header), pipeline.WithPatientFallback(capabilities.Patient))
	}

	extractor := pipeline.New(opts...)
	doc, summary, err := extractor.ExtractDetailed(context.Background(), tokens)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during extraction: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		fmt.Fprintf(os.Stderr, "header_source=%s rows_excluded=%v\n", summary.HeaderSource, summary.RowsByExclusionReason)
	}

	printJSON(doc)
}

func runMerge(args []string) {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	var inputs multiFlag
	fs.Var(&inputs, "in", "Path to a DocumentResult JSON file (repeatable)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if len(inputs) < 1 {
		fmt.Fprintln(os.Stderr, "Error: at least one --in is required")
		fs.Usage()
		os.Exit(1)
	}

	docs := make([]pipeline.DocumentResult, 0, len(inputs))
	for _, path := range inputs {
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
			os.Exit(1)
		}
		var doc pipeline.DocumentResult
		if err := json.Unmarshal(raw, &doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", path, err)
			os.Exit(1)
		}
		docs = append(docs, doc)
	}

	merged, stats := pipeline.MergeDocuments(docs)
	fmt.Fprintf(os.Stderr, "merged %d documents: pruned_empty=%d before_dedup=%d after_dedup=%d\n",
		stats.MergedLen, stats.PrunedEmpty, stats.BeforeDedup, stats.AfterDedup)

	printJSON(merged)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// multiFlag collects repeated -in flags into a slice.
type multiFlag []string

func (m *multiFlag) String() string {
	return fmt.Sprintf("%v", []string(*m))
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
