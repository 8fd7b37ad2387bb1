package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"tidepool.dev/curator/internal/cli"
	"tidepool.dev/curator/internal/dedup"
	"tidepool.dev/curator/internal/repair"
	"tidepool.dev/curator/internal/store"
)

// clean is the run-once composite: dedup, then repair, then the link check.
func runClean(args []string) int {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	dryRun := fs.Bool("dry-run", false, "Preview the full pass without mutating anything")
	timeout := fs.Duration("timeout", 30*time.Minute, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "clean does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := bootstrap(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	pool, err := connectPool(10*time.Second, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("clean failed to connect to database")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st := store.NewGorm(pool)
	dedupService := dedup.NewService(st, logger)
	repairService := repair.NewService(st, logger, cfg.ProgressEvery)

	report, err := dedupService.Run(ctx, *dryRun)
	if err != nil {
		logger.Error().Err(err).Msg("deduplication run failed")
		fmt.Fprintf(os.Stderr, "Deduplication run failed: %v\n", err)
		return 1
	}

	stats, err := repairService.Run(ctx, *dryRun)
	if err != nil {
		logger.Error().Err(err).Msg("relation repair run failed")
		fmt.Fprintf(os.Stderr, "Relation repair run failed: %v\n", err)
		return 1
	}

	summary, err := repairService.Verify(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("link verification failed")
		fmt.Fprintf(os.Stderr, "Link verification failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{
			"dedup":        report,
			"repair":       stats,
			"verification": summary,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		printCleaningReport(report)
		fmt.Println()
		printFixStats(stats)
		fmt.Println()
		printVerification(summary)
	}

	if len(report.Errors) > 0 || stats.ErrorCount > 0 {
		return 1
	}
	return 0
}
