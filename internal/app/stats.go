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
	"tidepool.dev/curator/internal/store"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
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
		logger.Error().Err(err).Msg("stats failed to connect to database")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st := store.NewGorm(pool)

	totalResources, err := st.CountResources(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count resources: %v\n", err)
		return 1
	}
	totalRawData, err := st.CountRawData(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count raw data: %v\n", err)
		return 1
	}
	linkedRawData, err := st.CountLinkedRawData(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count linked raw data: %v\n", err)
		return 1
	}
	bySource, err := st.CountResourcesBySource(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count by source: %v\n", err)
		return 1
	}
	byType, err := st.CountResourcesByType(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count by type: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{
			"total_resources": totalResources,
			"total_raw_data":  totalRawData,
			"linked_raw_data": linkedRawData,
			"by_source":       bySource,
			"by_type":         byType,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	totalRows := [][]string{
		{"total_resources", fmt.Sprintf("%d", totalResources)},
		{"total_raw_data", fmt.Sprintf("%d", totalRawData)},
		{"linked_raw_data", fmt.Sprintf("%d", linkedRawData)},
	}
	if err := writeTable([]string{"metric", "value"}, totalRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render totals table: %v\n", err)
		return 1
	}

	fmt.Println()
	if err := writeTable([]string{"source", "resources"}, countRows(bySource)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render source table: %v\n", err)
		return 1
	}

	fmt.Println()
	if err := writeTable([]string{"type", "resources"}, countRows(byType)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render type table: %v\n", err)
		return 1
	}

	return 0
}

func countRows(counts map[string]int64) [][]string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		label := key
		if label == "" {
			label = "(none)"
		}
		rows = append(rows, []string{label, fmt.Sprintf("%d", counts[key])})
	}
	return rows
}
