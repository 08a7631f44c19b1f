// Package ingest is the run orchestrator: it drives each source's fetcher,
// hands the output to storage, keeps the optional index current, and records
// a run report whatever the outcome.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"harvester/internal/core"
	"harvester/internal/httpx"
	"harvester/internal/index"
	"harvester/internal/logger"
	"harvester/internal/sources"
	"harvester/internal/storage"
	"harvester/internal/timeutil"
)

// staleHeartbeatAfter is how old a leftover heartbeat must be before a new
// run reclaims it.
const staleHeartbeatAfter = 10 * time.Minute

// Options configures one run.
type Options struct {
	Storage        *storage.Storage
	Client         *httpx.Client
	Throttle       time.Duration // pause between sources
	LocalizeAssets bool          // download images of newly stored blog items
}

type heartbeat struct {
	RunID     string `json:"run_id"`
	PID       int    `json:"pid"`
	UpdatedAt string `json:"updated_at"`
}

// All ingests every enabled source.
func All(ctx context.Context, opts Options) (*core.RunReport, error) {
	return Run(ctx, sources.List(false), opts)
}

// One ingests a single source by id, enabled or not.
func One(ctx context.Context, sourceID string, opts Options) (*core.RunReport, error) {
	source, err := sources.Get(sourceID)
	if err != nil {
		return nil, err
	}
	return Run(ctx, []core.Source{source}, opts)
}

// Run drives the given sources sequentially. Each source fails or succeeds
// on its own; the report carries both lists. Cancellation finishes the
// current source's bookkeeping, records the remaining sources as aborted,
// and still persists the report.
func Run(ctx context.Context, srcs []core.Source, opts Options) (*core.RunReport, error) {
	st := opts.Storage
	if st == nil {
		st = storage.New("")
	}
	client := opts.Client
	if client == nil {
		client = httpx.New(httpx.DefaultTimeout)
	}

	now := time.Now().UTC()
	runID := now.Format("20060102-150405")
	fc := &core.FetchContext{Client: client, RunID: runID, Now: now}

	report := &core.RunReport{
		RunID:     runID,
		StartedAt: timeutil.IsoNow(),
		Sources:   make([]string, 0, len(srcs)),
		Successes: []core.SourceSuccess{},
		Failures:  []core.SourceFailure{},
	}
	for _, source := range srcs {
		report.Sources = append(report.Sources, source.ID)
	}

	reclaimStaleHeartbeat(st)
	defer removeHeartbeat(st)

	ix := index.New(st.DataRoot)
	indexLive := ix.Exists()

	for i, source := range srcs {
		if i > 0 && opts.Throttle > 0 {
			select {
			case <-time.After(opts.Throttle):
			case <-ctx.Done():
			}
		}
		// Cancellation before or during the throttle pause aborts this
		// source and every one after it; all of them land in the report.
		if ctx.Err() != nil {
			for _, remaining := range srcs[i:] {
				report.Failures = append(report.Failures, core.SourceFailure{
					SourceID: remaining.ID,
					Error:    "aborted: " + ctx.Err().Error(),
				})
			}
			break
		}
		writeHeartbeat(st, runID)

		logger.Info("ingesting source", "source", source.ID, "run_id", runID)
		success, err := runSource(ctx, fc, st, ix, indexLive, source, opts)
		if err != nil {
			logger.Warn("source failed", "source", source.ID, "error", err.Error())
			report.Failures = append(report.Failures, core.SourceFailure{
				SourceID: source.ID,
				Error:    err.Error(),
			})
			continue
		}
		report.Successes = append(report.Successes, success)
	}

	report.FinishedAt = timeutil.IsoNow()
	if _, err := st.RecordRun(runID, report); err != nil {
		return report, fmt.Errorf("failed to record run: %w", err)
	}
	return report, nil
}

func runSource(
	ctx context.Context,
	fc *core.FetchContext,
	st *storage.Storage,
	ix *index.Index,
	indexLive bool,
	source core.Source,
	opts Options,
) (core.SourceSuccess, error) {
	if source.Kind == core.KindAggregation {
		if source.FetchAggregation == nil {
			return core.SourceSuccess{}, core.Fetchf("%s: no aggregation fetcher bound", source.ID)
		}
		items, err := source.FetchAggregation(ctx, fc)
		if err != nil {
			return core.SourceSuccess{}, err
		}
		if len(items) == 0 {
			return core.SourceSuccess{}, core.Fetchf("no items returned")
		}
		if _, err := st.SaveSnapshot(source, items); err != nil {
			return core.SourceSuccess{}, err
		}
		if indexLive {
			records, err := st.SnapshotRecords(source)
			if err != nil {
				return core.SourceSuccess{}, err
			}
			if _, err := ix.UpsertRecords(records); err != nil {
				return core.SourceSuccess{}, err
			}
		}
		return core.SourceSuccess{SourceID: source.ID, Stored: len(items)}, nil
	}

	if source.FetchBlog == nil {
		return core.SourceSuccess{}, core.Fetchf("%s: no blog fetcher bound", source.ID)
	}
	items, err := source.FetchBlog(ctx, fc)
	if err != nil {
		return core.SourceSuccess{}, err
	}
	if len(items) == 0 {
		return core.SourceSuccess{}, core.Fetchf("no items returned")
	}
	stored, err := st.SaveBlogItems(source, items)
	if err != nil {
		return core.SourceSuccess{}, err
	}
	if opts.LocalizeAssets {
		for _, record := range stored {
			if _, err := st.LocalizeAssets(ctx, fc.Client, source.ID, record.ItemID); err != nil {
				logger.Warn("asset localization failed", "source", source.ID, "item", record.ItemID, "error", err.Error())
			}
		}
	}
	if indexLive && len(stored) > 0 {
		if _, err := ix.UpsertRecords(stored); err != nil {
			return core.SourceSuccess{}, err
		}
	}
	return core.SourceSuccess{SourceID: source.ID, Stored: len(stored), Fetched: len(items)}, nil
}

func heartbeatPath(st *storage.Storage) string {
	return filepath.Join(st.RunsDir(), "heartbeat.json")
}

func writeHeartbeat(st *storage.Storage, runID string) {
	if err := os.MkdirAll(st.RunsDir(), 0755); err != nil {
		logger.Warn("heartbeat dir create failed", "error", err.Error())
		return
	}
	payload, _ := json.Marshal(heartbeat{
		RunID:     runID,
		PID:       os.Getpid(),
		UpdatedAt: timeutil.IsoNow(),
	})
	if err := os.WriteFile(heartbeatPath(st), payload, 0644); err != nil {
		logger.Warn("heartbeat write failed", "error", err.Error())
	}
}

// reclaimStaleHeartbeat removes a heartbeat left behind by a dead run. A
// fresh heartbeat is logged but does not block: the filesystem layout is
// per-source and tolerates overlap.
func reclaimStaleHeartbeat(st *storage.Storage) {
	data, err := os.ReadFile(heartbeatPath(st))
	if err != nil {
		return
	}
	var hb heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		os.Remove(heartbeatPath(st))
		return
	}
	updated, err := timeutil.ParseDateTime(hb.UpdatedAt)
	if err != nil || time.Since(updated) > staleHeartbeatAfter {
		logger.Warn("reclaiming stale run heartbeat", "run_id", hb.RunID, "updated_at", hb.UpdatedAt)
		os.Remove(heartbeatPath(st))
		return
	}
	logger.Warn("another run appears active", "run_id", hb.RunID, "pid", hb.PID)
}

func removeHeartbeat(st *storage.Storage) {
	os.Remove(heartbeatPath(st))
}
