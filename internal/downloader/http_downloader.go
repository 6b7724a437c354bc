package downloader

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dustin/go-humanize"

	"github.com/iconidentify/vidembed/internal/config"
	"github.com/iconidentify/vidembed/internal/domain"
)

// HTTPDownloader implements Downloader using HTTP requests.
type HTTPDownloader struct {
	// client is used for short requests (Resolve, Probe) with overall timeout
	// and never follows redirects.
	client *http.Client
	// streamClient is used for streaming blobs without overall timeout
	streamClient *http.Client
	userAgent    string
	cfg          config.OriginConfig
	logger       *slog.Logger
}

// NewTransport returns the transport shared by all outbound calls. TLS
// verification is on unless cfg.InsecureSkipVerify is set.
func NewTransport(cfg config.OriginConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for origin quirks
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.StreamHeaderTimeout,
	}
}

// NewHTTPDownloader creates a new HTTP-based blob downloader.
func NewHTTPDownloader(cfg config.OriginConfig, transport http.RoundTripper) *HTTPDownloader {
	if transport == nil {
		transport = NewTransport(cfg)
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}

	return &HTTPDownloader{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		// No Timeout: a stream lives as long as the client keeps reading.
		// The request context cancels it when the client goes away.
		streamClient: &http.Client{
			Transport: transport,
		},
		userAgent: cfg.UserAgent,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for stream reporting.
func (d *HTTPDownloader) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// Resolve follows at most one redirect hop from canonicalURL. A 3xx with a
// Location header resolves to that location; a 2xx resolves to canonicalURL
// itself. Anything else is domain.ErrUpstreamUnavailable.
func (d *HTTPDownloader) Resolve(ctx context.Context, canonicalURL string) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			return d.resolveOnce(ctx, canonicalURL)
		},
		retry.Context(ctx),
		retry.Attempts(d.cfg.RetryAttempts),
		retry.Delay(d.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableError),
	)
}

func (d *HTTPDownloader) resolveOnce(ctx context.Context, canonicalURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, canonicalURL, nil)
	if err != nil {
		return "", retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	d.setHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", retry.Unrecoverable(fmt.Errorf("%w: redirect (status %d) without Location", domain.ErrUpstreamUnavailable, resp.StatusCode))
		}
		base, err := url.Parse(canonicalURL)
		if err != nil {
			return "", retry.Unrecoverable(fmt.Errorf("%w: parse canonical URL: %v", domain.ErrUpstreamUnavailable, err))
		}
		target, err := base.Parse(loc)
		if err != nil {
			return "", retry.Unrecoverable(fmt.Errorf("%w: parse Location %q: %v", domain.ErrUpstreamUnavailable, loc, err))
		}
		return target.String(), nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return canonicalURL, nil
	default:
		return "", &statusError{status: resp.StatusCode}
	}
}

// Probe checks URL accessibility without downloading full content.
func (d *HTTPDownloader) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	d.setHeaders(req)

	resp, err := d.streamClient.Do(req)
	if err != nil {
		return &ProbeResult{
			Accessible: false,
			Error:      err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	result := &ProbeResult{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		AcceptRanges:  resp.Header.Get("Accept-Ranges") == "bytes",
		Accessible:    resp.StatusCode == http.StatusOK,
	}

	if !result.Accessible {
		result.Error = fmt.Sprintf("status code %d", resp.StatusCode)
	}

	return result, nil
}

// Open starts a streaming GET of url, forwarding rng as a Range header.
func (d *HTTPDownloader) Open(ctx context.Context, url string, rng *domain.ByteRange) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	d.setHeaders(req)
	req.Header.Set("Accept", "video/*;q=0.9,*/*;q=0.8")
	if rng != nil {
		req.Header.Set("Range", rng.RequestHeader())
	}

	resp, err := d.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", domain.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		resp.Body.Close()
		return nil, &RangeNotSatisfiableError{Total: parseContentRangeTotal(resp.Header.Get("Content-Range"))}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status code: %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	size := resp.ContentLength
	if size < 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			size, _ = strconv.ParseInt(cl, 10, 64)
		}
	}

	total := int64(-1)
	var window *domain.ByteRange
	if resp.StatusCode == http.StatusPartialContent {
		cr := resp.Header.Get("Content-Range")
		total = parseContentRangeTotal(cr)
		window = parseContentRange(cr)
	} else if size >= 0 {
		total = size
	}

	return &Stream{
		Body:          newProgressReader(resp.Body, size, d.logger, url),
		Status:        resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: size,
		Total:         total,
		Range:         window,
	}, nil
}

func (d *HTTPDownloader) setHeaders(req *http.Request) {
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
}

// parseContentRangeTotal extracts the size from "bytes a-b/size". It
// returns -1 when the size is unknown ("*") or the header is malformed.
func parseContentRangeTotal(h string) int64 {
	_, total, ok := strings.Cut(h, "/")
	if !ok || total == "*" {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// parseContentRange parses "bytes a-b/size" into a window. It returns nil
// when the header is malformed or the size is unknown.
func parseContentRange(h string) *domain.ByteRange {
	spec, ok := strings.CutPrefix(strings.TrimSpace(h), "bytes ")
	if !ok {
		return nil
	}
	window, _, ok := strings.Cut(spec, "/")
	if !ok {
		return nil
	}
	startStr, endStr, ok := strings.Cut(window, "-")
	if !ok {
		return nil
	}
	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil {
		return nil
	}
	end, err := strconv.ParseInt(strings.TrimSpace(endStr), 10, 64)
	if err != nil {
		return nil
	}
	total := parseContentRangeTotal(h)
	if start < 0 || end < start || total <= end {
		return nil
	}
	return &domain.ByteRange{Start: start, End: end, Total: total}
}

// RangeNotSatisfiableError is an upstream 416. Total is the blob size the
// upstream reported, or -1.
type RangeNotSatisfiableError struct {
	Total int64
}

func (e *RangeNotSatisfiableError) Error() string {
	return fmt.Sprintf("upstream range not satisfiable (size %d)", e.Total)
}

func (e *RangeNotSatisfiableError) Is(target error) bool {
	return target == domain.ErrInvalidRange
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.status)
}

func (e *statusError) Is(target error) bool {
	return target == domain.ErrUpstreamUnavailable
}

func isRetryableError(err error) bool {
	// RetryIf replaces retry-go's own Unrecoverable check.
	if !retry.IsRecoverable(err) {
		return false
	}
	// Client errors will not change on retry.
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// progressReader wraps a stream body to account the bytes relayed to the
// client and log a summary when it is closed.
type progressReader struct {
	reader  io.ReadCloser
	total   int64
	read    int64
	started time.Time
	logger  *slog.Logger
	url     string
	mu      sync.Mutex
	closed  bool
}

func newProgressReader(r io.ReadCloser, total int64, logger *slog.Logger, url string) *progressReader {
	return &progressReader{
		reader:  r,
		total:   total,
		started: time.Now(),
		logger:  logger,
		url:     url,
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		p.mu.Unlock()
	}
	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	read, total := p.read, p.total
	p.mu.Unlock()

	attrs := []any{
		"url", p.url,
		"relayed", humanize.Bytes(uint64(read)),
		"duration", time.Since(p.started),
	}
	if total > 0 {
		attrs = append(attrs, "expected", humanize.Bytes(uint64(total)))
	}
	p.logger.Debug("upstream stream closed", attrs...)

	return p.reader.Close()
}
