// Package storage owns the data/ tree: per-source manifests and item
// directories for blog sources, daily snapshots for aggregation sources, and
// run reports.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"harvester/internal/core"
	"harvester/internal/textproc"
	"harvester/internal/timeutil"
)

// DefaultDataRoot is used when no override is configured.
const DefaultDataRoot = "data"

// Storage is a handle on one data root. The zero value is not usable; use New.
type Storage struct {
	DataRoot string
}

// New creates a storage handle rooted at dataRoot ("" means DefaultDataRoot,
// overridable via HARVEST_DATA_ROOT upstream).
func New(dataRoot string) *Storage {
	if dataRoot == "" {
		dataRoot = DefaultDataRoot
	}
	return &Storage{DataRoot: dataRoot}
}

// ManifestEntry is one stored blog item, as persisted in manifest.jsonl and
// meta.json.
type ManifestEntry struct {
	ID          string `json:"id"`
	SourceID    string `json:"source_id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	ArchivedAt  string `json:"archived_at"`
	Author      string `json:"author"`
	Summary     string `json:"summary"`
	ContentPath string `json:"content_path"`
}

// Snapshot is one aggregation source's state for a UTC day.
type Snapshot struct {
	SourceID    string                 `json:"source_id"`
	SourceName  string                 `json:"source_name"`
	ArchivedAt  string                 `json:"archived_at"`
	GeneratedAt string                 `json:"generated_at"`
	Items       []core.AggregationItem `json:"items"`
}

func (s *Storage) SourceRoot(sourceID string) string {
	return filepath.Join(s.DataRoot, "sources", sourceID)
}

func (s *Storage) ManifestPath(sourceID string) string {
	return filepath.Join(s.SourceRoot(sourceID), "manifest.jsonl")
}

func (s *Storage) SnapshotsDir(sourceID string) string {
	return filepath.Join(s.SourceRoot(sourceID), "snapshots")
}

func (s *Storage) ItemsDir(sourceID string) string {
	return filepath.Join(s.SourceRoot(sourceID), "items")
}

func (s *Storage) ContentPath(sourceID, itemID string) string {
	return filepath.Join(s.ItemsDir(sourceID), itemID, "content.md")
}

func (s *Storage) RunsDir() string {
	return filepath.Join(s.DataRoot, "runs")
}

// EnsureDirs creates the snapshot and item directories for a source.
func (s *Storage) EnsureDirs(sourceID string) error {
	for _, dir := range []string{s.SnapshotsDir(sourceID), s.ItemsDir(sourceID)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// LoadManifest reads a source's manifest rows in append order. A missing
// manifest is an empty source, not an error.
func (s *Storage) LoadManifest(sourceID string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(s.ManifestPath(sourceID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest for %s: %w", sourceID, err)
	}
	var entries []ManifestEntry
	for i, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry ManifestEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("bad manifest line %d for %s: %w", i+1, sourceID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ExistingURLs returns the set of URLs a blog source already stores.
func (s *Storage) ExistingURLs(sourceID string) (map[string]struct{}, error) {
	entries, err := s.LoadManifest(sourceID)
	if err != nil {
		return nil, err
	}
	urls := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.URL != "" {
			urls[entry.URL] = struct{}{}
		}
	}
	return urls, nil
}

// SaveBlogItems stores the new items of a blog source: per item one
// directory with content.md and meta.json plus one appended manifest row.
// URLs already in the manifest are skipped, except that an existing item
// whose content file is empty or a placeholder is refilled in place (content
// rewritten, no new manifest row). Returns records for the newly stored
// items only.
func (s *Storage) SaveBlogItems(source core.Source, items []core.BlogItem) ([]core.Record, error) {
	if err := s.EnsureDirs(source.ID); err != nil {
		return nil, err
	}
	archivedAt := timeutil.IsoNow()
	existing, err := s.LoadManifest(source.ID)
	if err != nil {
		return nil, err
	}
	// Identity within a source is the canonicalized URL, so trivial
	// variants (query order, trailing slash, host case) dedupe.
	byURL := make(map[string]ManifestEntry, len(existing))
	for _, entry := range existing {
		byURL[textproc.NormalizeURL(entry.URL)] = entry
	}

	var stored []core.Record
	var manifestRows []ManifestEntry
	for _, item := range items {
		content := item.ContentMarkdown
		if content == "" {
			content = item.Summary
		}
		_, content = textproc.SplitFrontMatter(content)

		urlKey := textproc.NormalizeURL(item.URL)
		if prior, seen := byURL[urlKey]; seen {
			if err := s.maybeRefill(source.ID, prior, content); err != nil {
				return nil, err
			}
			continue
		}

		itemID := textproc.ItemID(item.Title, item.URL)
		itemDir := filepath.Join(s.ItemsDir(source.ID), itemID)
		if err := os.MkdirAll(itemDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create item dir: %w", err)
		}
		contentPath := filepath.Join(itemDir, "content.md")
		if err := os.WriteFile(contentPath, []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write content: %w", err)
		}

		entry := ManifestEntry{
			ID:          itemID,
			SourceID:    source.ID,
			Title:       item.Title,
			URL:         item.URL,
			PublishedAt: item.PublishedAt,
			ArchivedAt:  archivedAt,
			Author:      item.Author,
			Summary:     item.Summary,
			ContentPath: s.relPath(contentPath),
		}
		if err := writePrettyJSON(filepath.Join(itemDir, "meta.json"), entry); err != nil {
			return nil, err
		}
		manifestRows = append(manifestRows, entry)
		byURL[urlKey] = entry
		stored = append(stored, core.Record{
			SourceID:    source.ID,
			SourceName:  source.Name,
			Kind:        source.Kind,
			Title:       item.Title,
			URL:         item.URL,
			ArchivedAt:  archivedAt,
			PublishedAt: item.PublishedAt,
			Author:      item.Author,
			Extra:       map[string]string{},
			ItemID:      itemID,
			ContentPath: entry.ContentPath,
		})
	}

	if len(manifestRows) > 0 {
		if err := s.appendManifest(source.ID, manifestRows); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

// maybeRefill rewrites an existing item's content file when the stored copy
// is empty or a placeholder and the incoming content is usable.
func (s *Storage) maybeRefill(sourceID string, prior ManifestEntry, content string) error {
	if content == "" || textproc.LooksLikePlaceholder(content) {
		return nil
	}
	contentPath := filepath.Join(s.DataRoot, filepath.FromSlash(prior.ContentPath))
	if prior.ContentPath == "" {
		contentPath = s.ContentPath(sourceID, prior.ID)
	}
	existing, err := os.ReadFile(contentPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read stored content: %w", err)
	}
	current := strings.TrimSpace(string(existing))
	if current != "" && !textproc.LooksLikePlaceholder(current) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(contentPath), 0755); err != nil {
		return fmt.Errorf("failed to create item dir: %w", err)
	}
	if err := os.WriteFile(contentPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to refill content: %w", err)
	}
	return nil
}

// appendManifest writes each row as a single line-plus-newline write so an
// interrupt never leaves a torn line.
func (s *Storage) appendManifest(sourceID string, rows []ManifestEntry) error {
	path := s.ManifestPath(sourceID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create source dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to encode manifest row: %w", err)
		}
		if _, err := file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to append manifest row: %w", err)
		}
	}
	return nil
}

// SaveSnapshot writes the day's snapshot for an aggregation source,
// overwriting any earlier snapshot from the same UTC date.
func (s *Storage) SaveSnapshot(source core.Source, items []core.AggregationItem) (string, error) {
	if err := s.EnsureDirs(source.ID); err != nil {
		return "", err
	}
	snapshotDate := timeutil.IsoDateToday()
	path := filepath.Join(s.SnapshotsDir(source.ID), snapshotDate+".json")
	for i := range items {
		if items[i].Comments == nil {
			items[i].Comments = []core.AggregationComment{}
		}
		if items[i].Extra == nil {
			items[i].Extra = map[string]string{}
		}
	}
	snapshot := Snapshot{
		SourceID:    source.ID,
		SourceName:  source.Name,
		ArchivedAt:  snapshotDate,
		GeneratedAt: timeutil.IsoNow(),
		Items:       items,
	}
	if err := writePrettyJSON(path, snapshot); err != nil {
		return "", err
	}
	return path, nil
}

// SnapshotRecords reads an aggregation source's snapshots newest-date first
// and flattens them to records. archived_at of every record equals its
// snapshot date.
func (s *Storage) SnapshotRecords(source core.Source) ([]core.Record, error) {
	paths, err := filepath.Glob(filepath.Join(s.SnapshotsDir(source.ID), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	var records []core.Record
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
		}
		var snapshot Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return nil, fmt.Errorf("bad snapshot %s: %w", path, err)
		}
		for _, item := range snapshot.Items {
			extra := item.Extra
			if extra == nil {
				extra = map[string]string{}
			}
			records = append(records, core.Record{
				SourceID:      source.ID,
				SourceName:    source.Name,
				Kind:          source.Kind,
				Title:         item.Title,
				URL:           item.URL,
				ArchivedAt:    snapshot.ArchivedAt,
				PublishedAt:   item.PublishedAt,
				Author:        item.Author,
				SnapshotDate:  snapshot.ArchivedAt,
				Rank:          item.Rank,
				CommentsCount: item.CommentsCount,
				Score:         item.Score,
				Extra:         extra,
			})
		}
	}
	return records, nil
}

// RecordsForSource maps a source's stored state to records: manifest rows
// for blog sources, snapshot items for aggregation sources.
func (s *Storage) RecordsForSource(source core.Source) ([]core.Record, error) {
	if source.Kind == core.KindAggregation {
		return s.SnapshotRecords(source)
	}
	entries, err := s.LoadManifest(source.ID)
	if err != nil {
		return nil, err
	}
	records := make([]core.Record, 0, len(entries))
	for _, entry := range entries {
		records = append(records, core.Record{
			SourceID:    source.ID,
			SourceName:  source.Name,
			Kind:        source.Kind,
			Title:       entry.Title,
			URL:         entry.URL,
			ArchivedAt:  entry.ArchivedAt,
			PublishedAt: entry.PublishedAt,
			Author:      entry.Author,
			Extra:       map[string]string{},
			ItemID:      entry.ID,
			ContentPath: entry.ContentPath,
		})
	}
	return records, nil
}

// RecordRun persists a run report as runs/run-<run_id>.json.
func (s *Storage) RecordRun(runID string, report *core.RunReport) (string, error) {
	if err := os.MkdirAll(s.RunsDir(), 0755); err != nil {
		return "", fmt.Errorf("failed to create runs dir: %w", err)
	}
	path := filepath.Join(s.RunsDir(), "run-"+runID+".json")
	if err := writePrettyJSON(path, report); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Storage) relPath(path string) string {
	rel, err := filepath.Rel(s.DataRoot, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func writePrettyJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
