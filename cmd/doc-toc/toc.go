package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sriram-PR/doc-toc/pkg/toc"
)

// runTOC handles the toc subcommand
func runTOC(args []string) {
	fs := flag.NewFlagSet("toc", flag.ExitOnError)
	inFile := fs.String("in", "", "HTML file to read (defaults to stdin)")
	jsonOut := fs.Bool("json", false, "Print the entries as JSON instead of the HTML list")
	timeout := fs.Duration("timeout", toc.DefaultMatchTimeout, "Per-match limit for the heading patterns")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: doc-toc toc [options]

Print the table of contents built from the <h2> headings of an HTML document.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doTOC(os.Stdin, *inFile, *jsonOut, *timeout, os.Stdout, os.Stderr))
}

// doTOC reads HTML from inPath (or stdin when empty) and writes its table of contents.
// A pattern engine failure is reported on stderr; the entries found before it are still printed.
func doTOC(stdin io.Reader, inPath string, jsonOut bool, timeout time.Duration, stdout, stderr io.Writer) int {
	var (
		data []byte
		err  error
	)
	if inPath != "" {
		data, err = os.ReadFile(inPath)
	} else {
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: reading input: %v\n", err)
		return 1
	}

	entries, err := toc.NewExtractor(timeout).Extract(string(data))
	if err != nil {
		fmt.Fprintf(stderr, "WARN: %v\n", err)
	}

	if !jsonOut {
		fmt.Fprintln(stdout, toc.Render(entries))
		return 0
	}

	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error: encoding entries: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(b))
	return 0
}
