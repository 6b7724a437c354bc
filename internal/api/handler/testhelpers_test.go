package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/vidembed/internal/config"
	"github.com/iconidentify/vidembed/internal/domain"
	"github.com/iconidentify/vidembed/internal/downloader"
	"github.com/iconidentify/vidembed/internal/preview"
	"github.com/iconidentify/vidembed/internal/repository"
	"github.com/iconidentify/vidembed/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blobContent is 1000 deterministic bytes.
var blobContent = func() []byte {
	b := make([]byte, 1000)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}()

// mockFetcher is a test implementation of service.PostFetcher.
type mockFetcher struct {
	post *domain.PostRecord
	err  error
}

func (m *mockFetcher) GetPost(ctx context.Context, repo, rkey string) (*domain.PostRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.post, nil
}

// fakeOrigin stands in for both the getBlob endpoint and the CDN. The cid
// query parameter selects the CDN behavior.
type fakeOrigin struct {
	*httptest.Server
	resolves atomic.Int32
	gets     atomic.Int32
}

func newFakeOrigin(t *testing.T) *fakeOrigin {
	t.Helper()
	o := &fakeOrigin{}
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.sync.getBlob", func(w http.ResponseWriter, r *http.Request) {
		o.resolves.Add(1)
		switch r.URL.Query().Get("cid") {
		case "broken":
			w.WriteHeader(http.StatusBadRequest)
		case "norange":
			http.Redirect(w, r, "/cdn/norange", http.StatusFound)
		case "gone":
			http.Redirect(w, r, "/cdn/gone", http.StatusFound)
		default:
			http.Redirect(w, r, "/cdn/blob", http.StatusFound)
		}
	})
	mux.HandleFunc("/cdn/blob", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			o.gets.Add(1)
		}
		w.Header().Set("Content-Type", "video/mp4")
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(blobContent))
	})
	mux.HandleFunc("/cdn/norange", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			o.gets.Add(1)
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(blobContent)
	})
	mux.HandleFunc("/cdn/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	o.Server = httptest.NewServer(mux)
	t.Cleanup(o.Close)
	return o
}

func videoPost(contentRef string, size int64) *domain.PostRecord {
	return &domain.PostRecord{
		URI:  "at://did:plc:abc/app.bsky.feed.post/3kabc",
		Text: "my cat doing a backflip",
		Embed: &domain.VideoEmbed{
			ContentRef:  contentRef,
			MimeType:    "video/mp4",
			Size:        size,
			AspectRatio: &domain.AspectRatio{Width: 2160, Height: 3840},
		},
	}
}

type testEnv struct {
	origin  *fakeOrigin
	cache   *repository.InMemoryStreamURLRepository
	handler *PostHandler
	router  chi.Router
}

func newTestEnv(t *testing.T, fetcher service.PostFetcher, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()

	origin := newFakeOrigin(t)

	cfg := config.Default()
	cfg.Origin.BlobURL = origin.URL
	cfg.Origin.RetryAttempts = 1
	cfg.Server.PublicBaseURL = "https://embed.example.com"
	if mutate != nil {
		mutate(cfg)
	}

	logger := testLogger()
	cache := repository.NewInMemoryStreamURLRepository()
	dl := downloader.NewHTTPDownloader(cfg.Origin, nil)
	dl.SetLogger(logger)
	svc := service.NewEmbedService(fetcher, dl, cache, cfg.Origin.BlobURL, logger)
	redirector := NewRedirector(cfg.Preview.SiteURL, logger)
	h := NewPostHandler(svc, preview.NewBuilder(cfg.Preview), redirector, cfg.Server, cfg.Preview, logger)

	r := chi.NewRouter()
	r.Get("/profile/{repository}/post/{post}", h.Preview)
	r.Get("/profile/{repository}/post/{post}/stream", h.Stream)
	r.Head("/profile/{repository}/post/{post}/stream", h.Stream)

	return &testEnv{origin: origin, cache: cache, handler: h, router: r}
}

func (e *testEnv) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
