package sources

import (
	"errors"
	"testing"

	"harvester/internal/core"
)

func TestGetKnownSource(t *testing.T) {
	source, err := Get("hn")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if source.Kind != core.KindAggregation {
		t.Errorf("Kind = %q", source.Kind)
	}
	if source.FetchAggregation == nil {
		t.Errorf("aggregation fetcher not bound")
	}
	if source.FetchBlog != nil {
		t.Errorf("blog fetcher bound on an aggregation source")
	}
}

func TestGetFeedSource(t *testing.T) {
	source, err := Get("lucumr")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if source.Kind != core.KindBlog || source.Transport != core.TransportRSS {
		t.Errorf("lucumr = kind %q transport %q", source.Kind, source.Transport)
	}
	if source.FetchBlog == nil {
		t.Errorf("feed source missing blog fetcher")
	}
}

func TestGetUnknownSource(t *testing.T) {
	_, err := Get("nope")
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("error = %v, want ErrUnknownSource", err)
	}
}

func TestListFiltersDisabled(t *testing.T) {
	all := List(true)
	enabled := List(false)
	if len(enabled) >= len(all) {
		t.Fatalf("expected at least one disabled source: enabled=%d all=%d", len(enabled), len(all))
	}
	for _, source := range enabled {
		if !source.Enabled {
			t.Errorf("disabled source %s in enabled list", source.ID)
		}
	}
	if _, err := Get("alphasignal-last-email"); err != nil {
		t.Errorf("disabled source should still resolve by id: %v", err)
	}
}

func TestRegistryIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, source := range List(true) {
		if seen[source.ID] {
			t.Errorf("duplicate source id %q", source.ID)
		}
		seen[source.ID] = true
		if source.ID == "" || source.Name == "" {
			t.Errorf("source missing id or name: %+v", source)
		}
	}
}

func TestRegistryFetcherKinds(t *testing.T) {
	for _, source := range List(true) {
		switch source.Kind {
		case core.KindBlog:
			if source.FetchBlog == nil {
				t.Errorf("blog source %s missing fetcher", source.ID)
			}
		case core.KindAggregation:
			if source.FetchAggregation == nil {
				t.Errorf("aggregation source %s missing fetcher", source.ID)
			}
		default:
			t.Errorf("source %s has unknown kind %q", source.ID, source.Kind)
		}
	}
}
