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
	"tidepool.dev/curator/internal/store"
)

func runDedup(args []string) int {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	dryRun := fs.Bool("dry-run", false, "Detect and report without mutating anything")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "dedup does not accept positional arguments")
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
		logger.Error().Err(err).Msg("dedup failed to connect to database")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	service := dedup.NewService(store.NewGorm(pool), logger)
	report, err := service.Run(ctx, *dryRun)
	if err != nil {
		logger.Error().Err(err).Msg("deduplication run failed")
		fmt.Fprintf(os.Stderr, "Deduplication run failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		printCleaningReport(report)
	}

	if len(report.Errors) > 0 {
		return 1
	}
	return 0
}

func printCleaningReport(report dedup.CleaningReport) {
	mode := "execute"
	if report.DryRun {
		mode = "dry-run"
	}
	fmt.Printf("ok: dedup %s completed in %s\n", mode, report.EndTime.Sub(report.StartTime).Round(time.Millisecond))

	rows := [][]string{
		{"total_resources", fmt.Sprintf("%d", report.TotalResources)},
		{"duplicate_groups", fmt.Sprintf("%d", report.DuplicateGroups)},
		{"merged_resources", fmt.Sprintf("%d", report.MergedResources)},
		{"deleted_resources", fmt.Sprintf("%d", report.DeletedResources)},
		{"updated_relations", fmt.Sprintf("%d", report.UpdatedRelations)},
		{"errors", fmt.Sprintf("%d", len(report.Errors))},
	}
	if err := writeTable([]string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render report table: %v\n", err)
	}

	for _, message := range report.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", message)
	}
}
