package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"harvester/internal/core"
	"harvester/internal/index"
	"harvester/internal/logger"
	"harvester/internal/queries"
	"harvester/internal/sources"
	"harvester/internal/storage"
	"harvester/internal/timeutil"
)

var (
	sqliteJSON    bool
	queryJSON     bool
	queryLimit    int
	querySourceID string
	archiveOn     string
	archiveFrom   string
	archiveTo     string
)

type rebuildReport struct {
	Path       string   `json:"path"`
	Sources    []string `json:"sources"`
	Records    int      `json:"records"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at"`
}

var sqliteCmd = &cobra.Command{
	Use:   "sqlite",
	Short: "Manage the SQLite query index",
}

var sqliteRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index from stored manifests and snapshots",
	Run: func(cmd *cobra.Command, args []string) {
		st := newStorage()
		enabled := sources.List(false)
		ix := index.New(st.DataRoot)

		report := rebuildReport{
			Path:      ix.Path(),
			StartedAt: timeutil.IsoNow(),
		}
		for _, source := range enabled {
			report.Sources = append(report.Sources, source.ID)
		}
		total, err := ix.Rebuild(st, enabled)
		if err != nil {
			logger.Error("Index rebuild failed", err)
			os.Exit(1)
		}
		report.Records = total
		report.FinishedAt = timeutil.IsoNow()

		if sqliteJSON {
			printJSON(report)
			return
		}
		fmt.Printf("SQLite index rebuilt at %s with %d records\n", report.Path, report.Records)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored records",
}

var querySourceCmd = &cobra.Command{
	Use:   "source SOURCE_ID",
	Short: "Records of one source",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source, err := sources.Get(args[0])
		if err != nil {
			logger.Error("Unknown source", err)
			os.Exit(1)
		}
		st := newStorage()
		records, err := queries.BySource(st, source, queryLimit)
		if err != nil {
			logger.Error("Query failed", err)
			os.Exit(1)
		}
		printRecords(st, records)
	},
}

var queryKeywordCmd = &cobra.Command{
	Use:   "keyword KEYWORD",
	Short: "Records whose title contains a keyword",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st := newStorage()
		records, err := queries.ByKeyword(st, sources.List(true), args[0], querySourceID, queryLimit)
		if err != nil {
			logger.Error("Query failed", err)
			os.Exit(1)
		}
		printRecords(st, records)
	},
}

var queryArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Records archived on a date or in a range",
	Run: func(cmd *cobra.Command, args []string) {
		st := newStorage()
		records, err := queries.ByArchiveDate(st, sources.List(true), archiveOn, archiveFrom, archiveTo, querySourceID, queryLimit)
		if errors.Is(err, queries.ErrBadRange) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err != nil {
			logger.Error("Query failed", err)
			os.Exit(1)
		}
		printRecords(st, records)
	},
}

type recordOut struct {
	core.Record
	HasContent bool `json:"has_content"`
}

func printRecords(st *storage.Storage, records []core.Record) {
	if queryJSON {
		out := make([]recordOut, 0, len(records))
		for _, record := range records {
			out = append(out, recordOut{Record: record, HasContent: hasContent(st, record)})
		}
		printJSON(out)
		return
	}
	for _, record := range records {
		marker := "  "
		if hasContent(st, record) {
			marker = "* "
		}
		fmt.Printf("%s%s | %s | %s\n", marker, record.ArchivedAt, record.SourceID, record.Title)
		fmt.Printf("  %s\n", record.URL)
	}
}

func hasContent(st *storage.Storage, record core.Record) bool {
	if record.ContentPath == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(st.DataRoot, filepath.FromSlash(record.ContentPath)))
	return err == nil
}

func init() {
	sqliteRebuildCmd.Flags().BoolVar(&sqliteJSON, "json", false, "JSON output")
	sqliteCmd.AddCommand(sqliteRebuildCmd)
	rootCmd.AddCommand(sqliteCmd)

	for _, sub := range []*cobra.Command{querySourceCmd, queryKeywordCmd, queryArchiveCmd} {
		sub.Flags().IntVar(&queryLimit, "limit", 0, "maximum records to return")
		sub.Flags().BoolVar(&queryJSON, "json", false, "JSON output")
	}
	queryKeywordCmd.Flags().StringVar(&querySourceID, "source", "", "restrict to one source id")
	queryArchiveCmd.Flags().StringVar(&querySourceID, "source", "", "restrict to one source id")
	queryArchiveCmd.Flags().StringVar(&archiveOn, "on", "", "single archive date (YYYY-MM-DD)")
	queryArchiveCmd.Flags().StringVar(&archiveFrom, "from", "", "range start date")
	queryArchiveCmd.Flags().StringVar(&archiveTo, "to", "", "range end date")

	queryCmd.AddCommand(querySourceCmd)
	queryCmd.AddCommand(queryKeywordCmd)
	queryCmd.AddCommand(queryArchiveCmd)
	rootCmd.AddCommand(queryCmd)
}
