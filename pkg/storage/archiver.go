package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const maxScreenshotBytes = 25 << 20

// discord CDN hosts serve attachment URLs that expire after a while, so
// screenshots from those hosts get copied into our own bucket.
var discordCDNHosts = map[string]bool{
	"cdn.discordapp.com":   true,
	"media.discordapp.net": true,
}

// ScreenshotArchiver copies Discord attachment screenshots into object
// storage so they outlive the CDN link expiry.
type ScreenshotArchiver struct {
	store      ObjectStore
	httpClient *http.Client
	logger     *slog.Logger
	urlExpiry  time.Duration
	cdnHosts   map[string]bool
}

// NewScreenshotArchiver wires an archiver over the given object store.
func NewScreenshotArchiver(store ObjectStore, logger *slog.Logger) *ScreenshotArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenshotArchiver{
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		urlExpiry:  7 * 24 * time.Hour,
		cdnHosts:   discordCDNHosts,
	}
}

// Archive downloads the screenshot at rawURL and stores it under the bug's
// key prefix, returning a presigned URL for the stored copy. URLs outside
// the Discord CDN pass through unchanged. Any failure degrades to the
// original URL so a flaky CDN never fails a sync run.
func (a *ScreenshotArchiver) Archive(ctx context.Context, bugID, rawURL string) string {
	if a == nil || a.store == nil || rawURL == "" {
		return rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || !a.cdnHosts[parsed.Host] {
		return rawURL
	}

	stored, err := a.copyToBucket(ctx, bugID, parsed)
	if err != nil {
		a.logger.Warn("screenshot archive failed, keeping cdn url",
			"bug_id", bugID, "error", err)
		return rawURL
	}
	return stored
}

func (a *ScreenshotArchiver) copyToBucket(ctx context.Context, bugID string, src *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cdn responded %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScreenshotBytes+1))
	if err != nil {
		return "", err
	}
	if len(body) > maxScreenshotBytes {
		return "", fmt.Errorf("screenshot exceeds %d bytes", maxScreenshotBytes)
	}

	name := path.Base(src.Path)
	if name == "." || name == "/" || name == "" {
		name = "screenshot"
	}
	key := fmt.Sprintf("bugs/%s/%s", bugID, name)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := a.store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		return "", err
	}
	return a.store.PresignGet(ctx, key, a.urlExpiry)
}
