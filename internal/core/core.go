// Package core defines the data model shared across the harvester: source
// descriptors, the items adapters produce, the unified record shape used by
// queries and the index, and run reports.
package core

import (
	"context"
	"time"

	"harvester/internal/httpx"
)

// SourceKind determines how a source's output is stored.
type SourceKind string

const (
	KindAggregation SourceKind = "aggregation"
	KindBlog        SourceKind = "blog"
)

// Transport names the adapter a source is built on.
type Transport string

const (
	TransportAPI   Transport = "api"
	TransportRSS   Transport = "rss"
	TransportHTML  Transport = "html"
	TransportAgent Transport = "agent"
)

// FetchContext carries the per-run resources handed to every fetcher.
type FetchContext struct {
	Client *httpx.Client
	RunID  string
	Now    time.Time
}

// Source is a static source descriptor. Exactly one of FetchBlog and
// FetchAggregation is non-nil, matching Kind; the orchestrator reports a
// mismatch as a FetchError rather than crashing the run.
type Source struct {
	ID        string
	Name      string
	Kind      SourceKind
	Transport Transport
	Enabled   bool

	FetchBlog        func(ctx context.Context, fc *FetchContext) ([]BlogItem, error)
	FetchAggregation func(ctx context.Context, fc *FetchContext) ([]AggregationItem, error)
}

// BlogItem is one article produced by a blog source. URL is the identity key
// within a source.
type BlogItem struct {
	Title           string
	URL             string
	PublishedAt     string
	Author          string
	Summary         string
	ContentMarkdown string
}

// AggregationComment is one HTML-stripped comment on an aggregation item.
type AggregationComment struct {
	Author      string `json:"author"`
	PublishedAt string `json:"published_at"`
	Text        string `json:"text"`
}

// AggregationItem is one ranked entry produced by an aggregation source.
type AggregationItem struct {
	Title         string               `json:"title"`
	URL           string               `json:"url"`
	PublishedAt   string               `json:"published_at"`
	Author        string               `json:"author"`
	Score         *int                 `json:"score"`
	CommentsCount *int                 `json:"comments_count"`
	Rank          int                  `json:"rank"`
	DiscussionURL string               `json:"discussion_url"`
	Comments      []AggregationComment `json:"comments"`
	Extra         map[string]string    `json:"extra"`
}

// Record is the unified row shape over blog and aggregation items, used by
// the query engine and the relational index.
type Record struct {
	SourceID      string            `json:"source_id"`
	SourceName    string            `json:"source_name"`
	Kind          SourceKind        `json:"kind"`
	Title         string            `json:"title"`
	URL           string            `json:"url"`
	ArchivedAt    string            `json:"archived_at"`
	PublishedAt   string            `json:"published_at"`
	Author        string            `json:"author"`
	SnapshotDate  string            `json:"snapshot_date"`
	Rank          int               `json:"rank"`
	CommentsCount *int              `json:"comments_count"`
	Score         *int              `json:"score"`
	Extra         map[string]string `json:"extra"`
	ItemID        string            `json:"item_id"`
	ContentPath   string            `json:"content_path"`
}

// SourceSuccess is one per-source success entry in a run report.
type SourceSuccess struct {
	SourceID string `json:"source_id"`
	Stored   int    `json:"stored"`
	Fetched  int    `json:"fetched,omitempty"`
}

// SourceFailure is one per-source failure entry in a run report.
type SourceFailure struct {
	SourceID string `json:"source_id"`
	Error    string `json:"error"`
}

// RunReport is the authoritative outcome of one orchestrator run, persisted
// as runs/run-<run_id>.json.
type RunReport struct {
	RunID      string          `json:"run_id"`
	StartedAt  string          `json:"started_at"`
	Sources    []string        `json:"sources"`
	Successes  []SourceSuccess `json:"successes"`
	Failures   []SourceFailure `json:"failures"`
	FinishedAt string          `json:"finished_at"`
}
