package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"tidepool.dev/curator/internal/cli"
	"tidepool.dev/curator/internal/repair"
	"tidepool.dev/curator/internal/store"
)

func runRepair(args []string) int {
	fs := flag.NewFlagSet("repair", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	dryRun := fs.Bool("dry-run", false, "Preview link/create decisions without mutating anything")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "repair does not accept positional arguments")
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
		logger.Error().Err(err).Msg("repair failed to connect to database")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	service := repair.NewService(store.NewGorm(pool), logger, cfg.ProgressEvery)
	stats, err := service.Run(ctx, *dryRun)
	if err != nil {
		logger.Error().Err(err).Msg("relation repair run failed")
		fmt.Fprintf(os.Stderr, "Relation repair run failed: %v\n", err)
		return 1
	}

	// The link check runs after every repair pass, as a read-only audit of
	// what the pass left behind.
	summary, err := service.Verify(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("link verification failed")
		fmt.Fprintf(os.Stderr, "Link verification failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"repair": stats, "verification": summary}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		printFixStats(stats)
		fmt.Println()
		printVerification(summary)
	}

	if stats.ErrorCount > 0 {
		return 1
	}
	return 0
}

func printFixStats(stats repair.FixStats) {
	mode := "execute"
	if stats.DryRun {
		mode = "dry-run"
	}
	fmt.Printf("ok: repair %s completed in %s\n", mode, stats.EndTime.Sub(stats.StartTime).Round(time.Millisecond))

	rows := [][]string{
		{"total", fmt.Sprintf("%d", stats.Total)},
		{"linked", fmt.Sprintf("%d", stats.Linked)},
		{"created", fmt.Sprintf("%d", stats.Created)},
		{"skipped", fmt.Sprintf("%d", stats.Skipped)},
		{"errors", fmt.Sprintf("%d", stats.ErrorCount)},
	}
	if err := writeTable([]string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render repair table: %v\n", err)
	}

	if len(stats.BySource) > 0 {
		fmt.Println()
		sources := make([]string, 0, len(stats.BySource))
		for source := range stats.BySource {
			sources = append(sources, source)
		}
		sort.Strings(sources)

		sourceRows := make([][]string, 0, len(sources))
		for _, source := range sources {
			counts := stats.BySource[source]
			sourceRows = append(sourceRows, []string{
				source,
				fmt.Sprintf("%d", counts.Linked),
				fmt.Sprintf("%d", counts.Created),
			})
		}
		if err := writeTable([]string{"source", "linked", "created"}, sourceRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render source table: %v\n", err)
		}
	}

	if len(stats.SkipReasons) > 0 {
		fmt.Println()
		reasons := make([]string, 0, len(stats.SkipReasons))
		for reason := range stats.SkipReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)

		reasonRows := make([][]string, 0, len(reasons))
		for _, reason := range reasons {
			reasonRows = append(reasonRows, []string{reason, fmt.Sprintf("%d", stats.SkipReasons[reason])})
		}
		if err := writeTable([]string{"skip_reason", "count"}, reasonRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render skip table: %v\n", err)
		}
	}

	for _, message := range stats.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", message)
	}
}

func printVerification(summary repair.VerificationSummary) {
	rows := [][]string{
		{"inconsistencies", fmt.Sprintf("%d", len(summary.Inconsistencies))},
		{"raw_data_total", fmt.Sprintf("%d", summary.TotalRawData)},
		{"raw_data_linked", fmt.Sprintf("%d (%.1f%%)", summary.LinkedRawData, summary.RawDataCoverage)},
		{"resources_total", fmt.Sprintf("%d", summary.TotalResources)},
		{"resources_with_raw_data", fmt.Sprintf("%d (%.1f%%)", summary.ResourcesWithRawData, summary.ResourceCoverage)},
		{"duplicate_url_groups", fmt.Sprintf("%d", summary.DuplicateURLGroups)},
	}
	if err := writeTable([]string{"check", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render verification table: %v\n", err)
	}

	for _, inconsistency := range summary.Inconsistencies {
		actual := "<nil>"
		if inconsistency.ActualResourceID != nil {
			actual = *inconsistency.ActualResourceID
		}
		fmt.Fprintf(os.Stderr, "inconsistent: resource %s -> raw data %s -> resource %s\n",
			inconsistency.ResourceID, inconsistency.RawDataID, actual)
	}
}
