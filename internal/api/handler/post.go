package handler

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/vidembed/internal/config"
	"github.com/iconidentify/vidembed/internal/domain"
	"github.com/iconidentify/vidembed/internal/downloader"
	"github.com/iconidentify/vidembed/internal/preview"
	"github.com/iconidentify/vidembed/internal/service"
)

// sniffLen is how much of the body is inspected when the record has no MIME type.
const sniffLen = 3072

// PostHandler serves link previews and video streams for posts.
type PostHandler struct {
	embedSvc      *service.EmbedService
	builder       *preview.Builder
	redirector    *Redirector
	publicBaseURL string
	proxyStream   bool
	logger        *slog.Logger
}

// NewPostHandler creates a new post handler.
func NewPostHandler(
	embedSvc *service.EmbedService,
	builder *preview.Builder,
	redirector *Redirector,
	serverCfg config.ServerConfig,
	previewCfg config.PreviewConfig,
	logger *slog.Logger,
) *PostHandler {
	return &PostHandler{
		embedSvc:      embedSvc,
		builder:       builder,
		redirector:    redirector,
		publicBaseURL: strings.TrimRight(serverCfg.PublicBaseURL, "/"),
		proxyStream:   previewCfg.ProxyStream,
		logger:        logger,
	}
}

func postRef(r *http.Request) domain.PostRef {
	return domain.NewPostRef(chi.URLParam(r, "repository"), chi.URLParam(r, "post"))
}

// Preview handles GET /profile/{repository}/post/{post}.
func (h *PostHandler) Preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref := postRef(r)

	res, err := h.embedSvc.Resolve(ctx, ref)
	if err != nil {
		h.handleResolveError(w, r, err, false)
		return
	}

	cdnURL, err := h.embedSvc.Locate(ctx, res.AccountID, ref.RecordKey, res.Video.ContentRef)
	if err != nil {
		h.logger.Error("failed to locate video blob", "post", ref.String(), "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	streamURL := cdnURL
	if h.proxyStream {
		streamURL = h.streamEndpoint(r, ref)
	}

	body, err := h.builder.Render(preview.Page{
		Ref:       ref,
		Post:      res.Post,
		Video:     res.Video,
		AccountID: res.AccountID,
		StreamURL: streamURL,
	})
	if err != nil {
		h.logger.Error("failed to render preview", "post", ref.String(), "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.logger.Info("served preview", "post", ref.String(), "account", res.AccountID)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Stream handles GET and HEAD /profile/{repository}/post/{post}/stream.
func (h *PostHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref := postRef(r)

	res, err := h.embedSvc.Resolve(ctx, ref)
	if err != nil {
		h.handleResolveError(w, r, err, true)
		return
	}

	streamURL, err := h.embedSvc.Locate(ctx, res.AccountID, ref.RecordKey, res.Video.ContentRef)
	if err != nil {
		h.logger.Warn("failed to locate video blob, redirecting", "post", ref.String(), "error", err)
		h.redirector.Redirect(w, r, true)
		return
	}

	size := h.embedSvc.BlobSize(ctx, res.Video, streamURL)

	var rng *domain.ByteRange
	if header := r.Header.Get("Range"); header != "" && size > 0 {
		rng, err = domain.ParseRange(header, size)
		if err != nil {
			h.logger.Debug("unsatisfiable range", "post", ref.String(), "range", header, "error", err)
			writeRangeNotSatisfiable(w, size)
			return
		}
	}

	w.Header().Set("Accept-Ranges", "bytes")

	if r.Method == http.MethodHead {
		contentType := res.Video.MimeType
		if contentType == "" {
			contentType = "video/mp4"
		}
		w.Header().Set("Content-Type", contentType)
		writeLengthHeaders(w, rng, size)
		return
	}

	stream, err := h.embedSvc.OpenStream(ctx, streamURL, rng)
	if err != nil {
		var unsatisfiable *downloader.RangeNotSatisfiableError
		if errors.As(err, &unsatisfiable) {
			total := unsatisfiable.Total
			if total < 0 {
				total = size
			}
			h.logger.Debug("upstream rejected range", "post", ref.String(), "range", r.Header.Get("Range"), "size", total)
			writeRangeNotSatisfiable(w, total)
			return
		}
		h.logger.Error("failed to open upstream stream", "post", ref.String(), "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer stream.Body.Close()

	var body io.Reader = stream.Body
	if rng != nil {
		window, ok := servedWindow(rng, stream)
		if !ok {
			h.logger.Debug("range beyond upstream body", "post", ref.String(), "range", rng.RequestHeader(), "size", stream.ContentLength)
			writeRangeNotSatisfiable(w, stream.ContentLength)
			return
		}
		rng = window

		if !stream.Partial() {
			// Upstream ignored the range; drop the leading bytes ourselves.
			if _, err := io.CopyN(io.Discard, body, rng.Start); err != nil {
				h.logger.Error("failed to skip to range start", "post", ref.String(), "start", rng.Start, "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		body = io.LimitReader(body, rng.Length())
	}

	contentType := res.Video.MimeType
	if contentType == "" {
		buffered := bufio.NewReaderSize(body, sniffLen)
		head, _ := buffered.Peek(sniffLen)
		contentType = mimetype.Detect(head).String()
		body = buffered
	}
	w.Header().Set("Content-Type", contentType)

	if rng == nil && stream.ContentLength >= 0 {
		size = stream.ContentLength
	}
	writeLengthHeaders(w, rng, size)

	n, err := io.Copy(w, body)
	if err != nil {
		// Usually the client went away mid-stream.
		h.logger.Debug("stream interrupted", "post", ref.String(), "written", n, "error", err)
	}
}

// servedWindow reconciles the requested window with what the upstream
// actually sent. The record's declared size can be wrong, so the upstream's
// Content-Range, or its body length on a 200, wins. It reports false when
// the window starts past the real end of the blob.
func servedWindow(requested *domain.ByteRange, stream *downloader.Stream) (*domain.ByteRange, bool) {
	if stream.Partial() {
		if stream.Range != nil {
			return stream.Range, true
		}
		return clampWindow(requested, stream.Total)
	}
	return clampWindow(requested, stream.ContentLength)
}

func clampWindow(requested *domain.ByteRange, total int64) (*domain.ByteRange, bool) {
	if total < 0 {
		return requested, true
	}
	if requested.Start >= total {
		return nil, false
	}
	window := *requested
	window.Total = total
	if window.End >= total {
		window.End = total - 1
	}
	return &window, true
}

func writeRangeNotSatisfiable(w http.ResponseWriter, total int64) {
	w.Header().Set("Content-Range", domain.UnsatisfiedContentRange(total))
	w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
}

// writeLengthHeaders sets Content-Range/Content-Length and the status line.
func writeLengthHeaders(w http.ResponseWriter, rng *domain.ByteRange, size int64) {
	if rng != nil {
		w.Header().Set("Content-Range", rng.ContentRange())
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
		w.WriteHeader(http.StatusPartialContent)
		return
	}
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
}

// handleResolveError redirects posts that carry no video and fails the rest.
// A post without any embed is redirected permanently; other non-video posts
// get a temporary redirect, as does anything on the stream route.
func (h *PostHandler) handleResolveError(w http.ResponseWriter, r *http.Request, err error, stream bool) {
	switch {
	case errors.Is(err, domain.ErrNoEmbed), errors.Is(err, domain.ErrInvalidPostRef):
		h.redirector.Redirect(w, r, stream)
	case service.IsNotAVideo(err):
		h.redirector.Redirect(w, r, true)
	default:
		h.logger.Error("failed to resolve post", "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// streamEndpoint returns the absolute URL of this server's stream route for ref.
func (h *PostHandler) streamEndpoint(r *http.Request, ref domain.PostRef) string {
	base := h.publicBaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}
		base = scheme + "://" + r.Host
	}
	return base + "/profile/" + url.PathEscape(ref.Repository) + "/post/" + url.PathEscape(ref.RecordKey) + "/stream"
}
