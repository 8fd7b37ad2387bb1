package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "dedup":
		return runDedup(args[1:])
	case "repair":
		return runRepair(args[1:])
	case "verify":
		return runVerify(args[1:])
	case "clean":
		return runClean(args[1:])
	case "stats":
		return runStats(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "curator CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  curator <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health   Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  dedup    Detect and merge duplicate resources")
	fmt.Fprintln(os.Stderr, "  repair   Link orphaned raw data records to resources")
	fmt.Fprintln(os.Stderr, "  verify   Check bidirectional resource/raw data links")
	fmt.Fprintln(os.Stderr, "  clean    Run dedup + repair + verify in sequence")
	fmt.Fprintln(os.Stderr, "  stats    Show catalog counts by source and type")
	fmt.Fprintln(os.Stderr, "  serve    Start the admin API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"curator <command> -h\" for command-specific flags.")
}
