package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type fakeObjectStore struct {
	puts map[string][]byte
	fail bool
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{puts: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.fail {
		return fmt.Errorf("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.puts[key] = data
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.local/" + key, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(f.puts, key)
	return nil
}

func newTestArchiver(t *testing.T, store ObjectStore, cdnHost string) *ScreenshotArchiver {
	t.Helper()
	archiver := NewScreenshotArchiver(store, nil)
	archiver.cdnHosts = map[string]bool{cdnHost: true}
	return archiver
}

func TestArchiveCopiesCDNScreenshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()
	host := mustHost(t, server.URL)

	store := newFakeObjectStore()
	archiver := newTestArchiver(t, store, host)

	got := archiver.Archive(context.Background(), "bug-1", server.URL+"/attachments/1/2/crash.png")
	want := "https://objects.local/bugs/bug-1/crash.png"
	if got != want {
		t.Fatalf("archive url = %q, want %q", got, want)
	}
	if string(store.puts["bugs/bug-1/crash.png"]) != "png-bytes" {
		t.Fatalf("stored object missing or wrong: %q", store.puts)
	}
}

func TestArchivePassesThroughNonCDN(t *testing.T) {
	store := newFakeObjectStore()
	archiver := newTestArchiver(t, store, "cdn.discordapp.com")

	raw := "https://example.com/images/shot.png"
	if got := archiver.Archive(context.Background(), "bug-1", raw); got != raw {
		t.Fatalf("non-cdn url should pass through, got %q", got)
	}
	if len(store.puts) != 0 {
		t.Fatalf("nothing should be stored for non-cdn urls")
	}
}

func TestArchiveDegradesOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	host := mustHost(t, server.URL)

	archiver := newTestArchiver(t, newFakeObjectStore(), host)
	raw := server.URL + "/attachments/1/2/crash.png"
	if got := archiver.Archive(context.Background(), "bug-1", raw); got != raw {
		t.Fatalf("download failure should keep original url, got %q", got)
	}

	failing := newFakeObjectStore()
	failing.fail = true
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(w, strings.NewReader("png-bytes"))
	}))
	defer okServer.Close()
	archiver = newTestArchiver(t, failing, mustHost(t, okServer.URL))
	raw = okServer.URL + "/attachments/1/2/crash.png"
	if got := archiver.Archive(context.Background(), "bug-1", raw); got != raw {
		t.Fatalf("store failure should keep original url, got %q", got)
	}
}

func TestArchiveEmptyURL(t *testing.T) {
	archiver := NewScreenshotArchiver(newFakeObjectStore(), nil)
	if got := archiver.Archive(context.Background(), "bug-1", ""); got != "" {
		t.Fatalf("empty url should stay empty, got %q", got)
	}
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u.Host
}
