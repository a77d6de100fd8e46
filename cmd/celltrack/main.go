package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/celltrack/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := dispatch(flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func dispatch(command string, args []string, out io.Writer) error {
	switch command {
	case "track":
		return runTrack(args, out)
	case "evaluate":
		return runEvaluate(args, out)
	case "sweep":
		return runSweep(args, out)
	case "external":
		return runExternal(args, out)
	case "runs":
		return runRuns(args, out)
	case "migrate":
		return runMigrate(args, out)
	case "version":
		fmt.Fprintln(out, version.String())
		return nil
	case "help":
		printUsage(out)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `celltrack - storm cell tracking and track verification

Usage: celltrack <command> [options]

Commands:
  track      Track a detection CSV and write a track file
  evaluate   Score a predicted track file against a reference
  sweep      Run a grid of tracker configurations from a YAML plan
  external   Run an external tracker executable and score its output
  runs       List tracking runs saved in a database
  migrate    Apply or roll back database migrations (up, down, status)
  version    Show version information
  help       Show this help message

Examples:
  celltrack track -detections cells.csv -out tracks.txt
  celltrack track -detections cells.csv -config config/tuning.example.json -out tracks.txt -db runs.db
  celltrack evaluate -reference truth.txt -predicted tracks.txt -scores PC,HSS
  celltrack sweep -plan config/sweep.example.yaml -detections cells.csv -reference truth.txt -out results.csv
  celltrack external -bin ./other-tracker -detections cells.csv -params params.json -out other.txt -reference truth.txt

Run 'celltrack <command> -h' for command flags.`)
}
