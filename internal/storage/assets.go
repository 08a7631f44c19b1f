package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"harvester/internal/httpx"
	"harvester/internal/logger"
)

var imagePattern = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^)\s]+)\)`)

// LocalizeAssets downloads the remote images referenced by a stored item's
// content.md into items/<item_id>/assets/ and rewrites the links relative.
// Download failures leave the original link in place. Returns the number of
// assets stored.
func (s *Storage) LocalizeAssets(ctx context.Context, client *httpx.Client, sourceID, itemID string) (int, error) {
	contentPath := s.ContentPath(sourceID, itemID)
	data, err := os.ReadFile(contentPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read content for assets: %w", err)
	}
	markdown := string(data)

	assetsDir := filepath.Join(filepath.Dir(contentPath), "assets")
	stored := 0
	localNames := make(map[string]string)

	rewritten := imagePattern.ReplaceAllStringFunc(markdown, func(link string) string {
		groups := imagePattern.FindStringSubmatch(link)
		assetURL := groups[1]
		if name, done := localNames[assetURL]; done {
			return strings.Replace(link, assetURL, "assets/"+name, 1)
		}
		payload, err := client.GetBytes(ctx, assetURL)
		if err != nil {
			logger.Warn("asset download failed", "url", assetURL, "error", err.Error())
			return link
		}
		if err := os.MkdirAll(assetsDir, 0755); err != nil {
			logger.Warn("asset dir create failed", "dir", assetsDir, "error", err.Error())
			return link
		}
		name := assetName(assetURL)
		if err := os.WriteFile(filepath.Join(assetsDir, name), payload, 0644); err != nil {
			logger.Warn("asset write failed", "url", assetURL, "error", err.Error())
			return link
		}
		localNames[assetURL] = name
		stored++
		return strings.Replace(link, assetURL, "assets/"+name, 1)
	})

	if stored > 0 && rewritten != markdown {
		if err := os.WriteFile(contentPath, []byte(rewritten), 0644); err != nil {
			return stored, fmt.Errorf("failed to rewrite content after assets: %w", err)
		}
	}
	return stored, nil
}

// assetName derives a stable filename from the asset URL, keeping its
// extension when the path carries one.
func assetName(assetURL string) string {
	sum := sha1.Sum([]byte(assetURL))
	name := hex.EncodeToString(sum[:])[:12]
	ext := ""
	if parsed, err := url.Parse(assetURL); err == nil {
		ext = path.Ext(parsed.Path)
	}
	if ext == "" || len(ext) > 8 {
		ext = ".bin"
	}
	return name + ext
}
