package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// errUsage marks errors that should be followed by the usage text.
var errUsage = errors.New("usage error")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		}
		os.Exit(1)
	}
}

// run dispatches one subcommand. Command output goes to stdout.
func run(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	command, rest := args[0], args[1:]

	switch command {
	case "process":
		return runProcess(rest, stdout)
	case "normalize":
		return runNormalize(rest, stdout)
	case "plot":
		return runPlot(rest, stdout)
	case "serve":
		return runServe(rest)
	case "migrate":
		return runMigrate(rest, stdout)
	case "version":
		printVersion(stdout)
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `ergoscan - body measurement refinement and pose normalization

Usage: ergoscan <command> [options]

Commands:
  process    Refine raw measurements into a body profile
  normalize  Normalize the poses of a calibration capture
  plot       Render a landmark set as a PNG skeleton
  serve      Run the HTTP and websocket API
  migrate    Manage the profile database schema
  version    Show version information
  help       Show this help message

Examples:
  ergoscan process -in measurements.json -user u42 -out profile.json
  ergoscan normalize -in capture.json -record-dir calibrations -width 1280 -height 720
  ergoscan plot -in landmarks.json -out pose.png
  ergoscan serve -listen :8080 -db ergoscan.db
  ergoscan migrate -db ergoscan.db status`)
}
