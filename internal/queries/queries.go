// Package queries answers source, keyword, and archive-date lookups. Every
// query prefers the SQLite index when its file exists and otherwise scans
// manifests and snapshots directly.
package queries

import (
	"errors"
	"sort"
	"strings"
	"time"

	"harvester/internal/core"
	"harvester/internal/index"
	"harvester/internal/storage"
	"harvester/internal/timeutil"
)

// ErrBadRange is returned for a range query missing either endpoint.
var ErrBadRange = errors.New("both start and end are required for range queries")

// RecordsForSource returns a source's records sorted archived_at descending.
func RecordsForSource(st *storage.Storage, source core.Source) ([]core.Record, error) {
	records, err := st.RecordsForSource(source)
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

// BySource returns up to limit records of one source (0 means all).
func BySource(st *storage.Storage, source core.Source, limit int) ([]core.Record, error) {
	if ix := liveIndex(st); ix != nil {
		return ix.QueryBySource(source.ID, limit)
	}
	records, err := RecordsForSource(st, source)
	if err != nil {
		return nil, err
	}
	return applyLimit(records, limit), nil
}

// ByKeyword returns records whose title contains keyword, case-insensitive,
// across srcs or restricted to sourceID when non-empty.
func ByKeyword(st *storage.Storage, srcs []core.Source, keyword, sourceID string, limit int) ([]core.Record, error) {
	if ix := liveIndex(st); ix != nil {
		return ix.QueryByKeyword(keyword, selectedIDs(srcs, sourceID), limit)
	}
	needle := strings.ToLower(keyword)
	var records []core.Record
	for _, source := range srcs {
		if sourceID != "" && source.ID != sourceID {
			continue
		}
		sourceRecords, err := RecordsForSource(st, source)
		if err != nil {
			return nil, err
		}
		for _, record := range sourceRecords {
			if strings.Contains(strings.ToLower(record.Title), needle) {
				records = append(records, record)
			}
		}
	}
	sortRecords(records)
	return applyLimit(records, limit), nil
}

// ByArchiveDate returns records archived in the inclusive date range. A
// non-empty on sets start=end=on; otherwise both start and end are required.
func ByArchiveDate(st *storage.Storage, srcs []core.Source, on, start, end, sourceID string, limit int) ([]core.Record, error) {
	startDate, endDate, err := resolveRange(on, start, end)
	if err != nil {
		return nil, err
	}
	if ix := liveIndex(st); ix != nil {
		return ix.QueryByArchiveDate(
			timeutil.FormatDate(startDate),
			timeutil.FormatDate(endDate),
			selectedIDs(srcs, sourceID),
			limit,
		)
	}

	var records []core.Record
	for _, source := range srcs {
		if sourceID != "" && source.ID != sourceID {
			continue
		}
		sourceRecords, err := RecordsForSource(st, source)
		if err != nil {
			return nil, err
		}
		for _, record := range sourceRecords {
			archivedDate, err := timeutil.ParseDate(record.ArchivedAt)
			if err != nil {
				continue
			}
			if !archivedDate.Before(startDate) && !archivedDate.After(endDate) {
				records = append(records, record)
			}
		}
	}
	sortRecords(records)
	return applyLimit(records, limit), nil
}

func resolveRange(on, start, end string) (time.Time, time.Time, error) {
	if on != "" {
		target, err := timeutil.ParseDate(on)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return target, target, nil
	}
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, ErrBadRange
	}
	startDate, err := timeutil.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDate, err := timeutil.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return startDate, endDate, nil
}

func selectedIDs(srcs []core.Source, sourceID string) []string {
	ids := make([]string, 0, len(srcs))
	for _, source := range srcs {
		if sourceID != "" && source.ID != sourceID {
			continue
		}
		ids = append(ids, source.ID)
	}
	return ids
}

// sortRecords orders by archived_at descending, keeping insertion order for
// equal timestamps.
func sortRecords(records []core.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, erri := timeutil.ParseDateTime(records[i].ArchivedAt)
		tj, errj := timeutil.ParseDateTime(records[j].ArchivedAt)
		if erri != nil || errj != nil {
			return false
		}
		return ti.After(tj)
	})
}

func applyLimit(records []core.Record, limit int) []core.Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func liveIndex(st *storage.Storage) *index.Index {
	ix := index.New(st.DataRoot)
	if ix.Exists() {
		return ix
	}
	return nil
}
