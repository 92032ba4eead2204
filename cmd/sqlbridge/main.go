// Command sqlbridge is a small exerciser for src/reactivesql, adapted
// from the teacher's cmd/cyq: it resolves a connection URL, runs one
// query or statement reactively against the in-memory reference driver
// (src/spitest) seeded from a JSON fixture, and prints the resulting
// rows. Unlike cyq it has no real network driver behind it (Non-goal:
// "driver protocol"); the fixture stands in for whatever spi.ConnectionFactory a
// real deployment would wire in.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "run":
		err = runCommand(args)
	case "ping":
		err = pingCommand(args)
	case "version", "--version", "-v":
		err = versionCommand()
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.Error() != "" {
				fmt.Fprintln(os.Stderr, exitErr.Error())
			}
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("sqlbridge - reactive SQL bridge exerciser")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sqlbridge run [flags] --query <sql>   - Run a query against a fixture")
	fmt.Println("  sqlbridge ping [flags]                 - Resolve a URL and round-trip a connection")
	fmt.Println("  sqlbridge version                      - Show version information")
	fmt.Println()
	fmt.Println("Run flags:")
	fmt.Println("  --url <r2dbc-url>               - Connection URL, e.g. r2dbc:postgresql://u:p@host/db")
	fmt.Println("  --query <sql>                   - SQL text with :name placeholders")
	fmt.Println("  --params <json>                 - Params as a JSON object (e.g. '{\"id\": 1}')")
	fmt.Println("  --params-file <path>            - Params from a JSON file")
	fmt.Println("  --fixture <path>                - JSON fixture the in-memory driver serves")
	fmt.Println("  --format table|json|jsonl       - Output format (default: table)")
	fmt.Println("  --timeout 10s                   - Optional context timeout (default: none)")
	fmt.Println("  --telemetry                     - Export query spans/metrics to stdout")
}

func versionCommand() error {
	fmt.Println("sqlbridge version 0.1.0")
	return nil
}
