package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"harvester/internal/core"
	"harvester/internal/httpx"
	"harvester/internal/index"
	"harvester/internal/storage"
)

func blogSource(id string, fetch func(context.Context, *core.FetchContext) ([]core.BlogItem, error)) core.Source {
	return core.Source{
		ID:        id,
		Name:      id,
		Kind:      core.KindBlog,
		Transport: core.TransportRSS,
		Enabled:   true,
		FetchBlog: fetch,
	}
}

func aggSource(id string, fetch func(context.Context, *core.FetchContext) ([]core.AggregationItem, error)) core.Source {
	return core.Source{
		ID:               id,
		Name:             id,
		Kind:             core.KindAggregation,
		Transport:        core.TransportAPI,
		Enabled:          true,
		FetchAggregation: fetch,
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Storage: storage.New(t.TempDir()),
		Client:  httpx.New(time.Second),
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	opts := testOptions(t)
	failing := blogSource("failing-blog", func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
		return nil, errors.New("connection refused")
	})
	working := blogSource("working-blog", func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
		return []core.BlogItem{{Title: "Post", URL: "https://example.com/post", ContentMarkdown: "Body"}}, nil
	})

	report, err := Run(context.Background(), []core.Source{failing, working}, opts)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(report.Failures) != 1 || report.Failures[0].SourceID != "failing-blog" {
		t.Errorf("failures = %+v", report.Failures)
	}
	if !strings.Contains(report.Failures[0].Error, "connection refused") {
		t.Errorf("failure error = %q", report.Failures[0].Error)
	}
	if len(report.Successes) != 1 || report.Successes[0].SourceID != "working-blog" {
		t.Errorf("successes = %+v", report.Successes)
	}
	if report.Successes[0].Stored != 1 || report.Successes[0].Fetched != 1 {
		t.Errorf("success counts = %+v", report.Successes[0])
	}

	// The working source's data landed despite the earlier failure.
	entries, err := opts.Storage.LoadManifest("working-blog")
	if err != nil || len(entries) != 1 {
		t.Errorf("working-blog manifest = %v (err %v)", entries, err)
	}
	if entries := mustNoManifest(t, opts.Storage, "failing-blog"); entries != 0 {
		t.Errorf("failing-blog stored %d rows", entries)
	}
}

func TestRunRecordsReportFile(t *testing.T) {
	opts := testOptions(t)
	source := blogSource("blog", func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
		return []core.BlogItem{{Title: "Post", URL: "https://example.com/post"}}, nil
	})

	report, err := Run(context.Background(), []core.Source{source}, opts)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.RunID == "" || report.StartedAt == "" || report.FinishedAt == "" {
		t.Errorf("report timestamps incomplete: %+v", report)
	}

	runPath := filepath.Join(opts.Storage.RunsDir(), "run-"+report.RunID+".json")
	if _, err := os.Stat(runPath); err != nil {
		t.Errorf("run report not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(opts.Storage.RunsDir(), "heartbeat.json")); !os.IsNotExist(err) {
		t.Errorf("heartbeat not removed after run: %v", err)
	}
}

func TestRunEmptyResultIsFailure(t *testing.T) {
	opts := testOptions(t)
	source := aggSource("empty-agg", func(ctx context.Context, fc *core.FetchContext) ([]core.AggregationItem, error) {
		return []core.AggregationItem{}, nil
	})

	report, err := Run(context.Background(), []core.Source{source}, opts)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(report.Failures) != 1 || !strings.Contains(report.Failures[0].Error, "no items returned") {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestRunUnboundFetcherIsFailure(t *testing.T) {
	opts := testOptions(t)
	source := core.Source{ID: "broken", Name: "broken", Kind: core.KindAggregation, Enabled: true}

	report, err := Run(context.Background(), []core.Source{source}, opts)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(report.Failures) != 1 || !strings.Contains(report.Failures[0].Error, "no aggregation fetcher bound") {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestRunAggregationStoresSnapshot(t *testing.T) {
	opts := testOptions(t)
	source := aggSource("agg", func(ctx context.Context, fc *core.FetchContext) ([]core.AggregationItem, error) {
		return []core.AggregationItem{
			{Title: "Story", URL: "https://example.com/s", Rank: 1},
		}, nil
	})

	report, err := Run(context.Background(), []core.Source{source}, opts)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(report.Successes) != 1 || report.Successes[0].Stored != 1 {
		t.Fatalf("successes = %+v", report.Successes)
	}
	records, err := opts.Storage.SnapshotRecords(source)
	if err != nil || len(records) != 1 {
		t.Errorf("snapshot records = %v (err %v)", records, err)
	}
}

func TestRunCancelledContextAbortsRemaining(t *testing.T) {
	opts := testOptions(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srcs := []core.Source{
		blogSource("a", func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
			t.Error("fetcher ran despite cancelled context")
			return nil, nil
		}),
		blogSource("b", nil),
	}
	report, err := Run(ctx, srcs, opts)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(report.Failures) != 2 {
		t.Fatalf("failures = %+v, want both sources aborted", report.Failures)
	}
	for _, failure := range report.Failures {
		if !strings.Contains(failure.Error, "aborted") {
			t.Errorf("failure = %+v", failure)
		}
	}
	// The report still lands on disk.
	if _, err := os.Stat(filepath.Join(opts.Storage.RunsDir(), "run-"+report.RunID+".json")); err != nil {
		t.Errorf("aborted run report missing: %v", err)
	}
}

func TestRunCancelDuringThrottleRecordsRemaining(t *testing.T) {
	opts := testOptions(t)
	opts.Throttle = 250 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	srcs := []core.Source{
		blogSource("a", func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
			// Cancel while the run is paused before the next source.
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
			return []core.BlogItem{{Title: "Post", URL: "https://example.com/a", ContentMarkdown: "Body"}}, nil
		}),
		blogSource("b", func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
			t.Error("source b ran despite cancellation during the throttle pause")
			return nil, nil
		}),
		blogSource("c", nil),
	}

	report, err := Run(ctx, srcs, opts)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(report.Successes) != 1 || report.Successes[0].SourceID != "a" {
		t.Errorf("successes = %+v", report.Successes)
	}
	if len(report.Failures) != 2 {
		t.Fatalf("failures = %+v, want sources b and c aborted", report.Failures)
	}
	if report.Failures[0].SourceID != "b" || report.Failures[1].SourceID != "c" {
		t.Errorf("aborted sources = %q, %q", report.Failures[0].SourceID, report.Failures[1].SourceID)
	}
	for _, failure := range report.Failures {
		if !strings.Contains(failure.Error, "aborted") {
			t.Errorf("failure = %+v", failure)
		}
	}
	// Every source in the run is accounted for exactly once.
	if len(report.Successes)+len(report.Failures) != len(srcs) {
		t.Errorf("report covers %d of %d sources",
			len(report.Successes)+len(report.Failures), len(srcs))
	}
}

func TestRunKeepsLiveIndexCurrent(t *testing.T) {
	opts := testOptions(t)
	source := blogSource("blog", func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
		return []core.BlogItem{{Title: "Indexed Post", URL: "https://example.com/indexed", ContentMarkdown: "Body"}}, nil
	})

	// An existing index file opts the run into incremental upserts.
	ix := index.New(opts.Storage.DataRoot)
	if _, err := ix.Rebuild(opts.Storage, nil); err != nil {
		t.Fatalf("Rebuild error: %v", err)
	}

	if _, err := Run(context.Background(), []core.Source{source}, opts); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	records, err := ix.QueryBySource("blog", 0)
	if err != nil {
		t.Fatalf("QueryBySource error: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Indexed Post" {
		t.Errorf("index records = %+v", records)
	}
}

func TestRunWithoutIndexDoesNotCreateOne(t *testing.T) {
	opts := testOptions(t)
	source := blogSource("blog", func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
		return []core.BlogItem{{Title: "Post", URL: "https://example.com/p"}}, nil
	})
	if _, err := Run(context.Background(), []core.Source{source}, opts); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if index.New(opts.Storage.DataRoot).Exists() {
		t.Error("run created an index file without one being present")
	}
}

func TestStaleHeartbeatReclaimed(t *testing.T) {
	opts := testOptions(t)
	st := opts.Storage
	if err := os.MkdirAll(st.RunsDir(), 0755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	stale := `{"run_id":"20240101-000000","pid":1,"updated_at":"2024-01-01T00:00:00Z"}`
	if err := os.WriteFile(filepath.Join(st.RunsDir(), "heartbeat.json"), []byte(stale), 0644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	source := blogSource("blog", func(ctx context.Context, fc *core.FetchContext) ([]core.BlogItem, error) {
		return []core.BlogItem{{Title: "Post", URL: "https://example.com/p"}}, nil
	})
	report, err := Run(context.Background(), []core.Source{source}, opts)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(report.Successes) != 1 {
		t.Errorf("successes = %+v", report.Successes)
	}
	if _, err := os.Stat(filepath.Join(st.RunsDir(), "heartbeat.json")); !os.IsNotExist(err) {
		t.Errorf("heartbeat left behind: %v", err)
	}
}

func mustNoManifest(t *testing.T, st *storage.Storage, sourceID string) int {
	t.Helper()
	entries, err := st.LoadManifest(sourceID)
	if err != nil {
		t.Fatalf("LoadManifest error: %v", err)
	}
	return len(entries)
}
