package downloader

import (
	"context"
	"io"

	"github.com/iconidentify/vidembed/internal/domain"
)

// Downloader talks to the blob origin and its CDN.
type Downloader interface {
	// Resolve issues a no-body request against the canonical getBlob URL with
	// redirects disabled and returns the URL actually serving the bytes.
	Resolve(ctx context.Context, canonicalURL string) (string, error)

	// Probe checks URL accessibility without downloading full content.
	Probe(ctx context.Context, url string) (*ProbeResult, error)

	// Open starts a streaming GET. A non-nil rng is forwarded upstream as a
	// Range header. An upstream 416 returns *RangeNotSatisfiableError.
	// Caller is responsible for closing Body.
	Open(ctx context.Context, url string, rng *domain.ByteRange) (*Stream, error)
}

// ProbeResult contains information about a blob URL.
type ProbeResult struct {
	ContentType   string
	ContentLength int64
	AcceptRanges  bool
	Accessible    bool
	Error         string
}

// Stream is an open upstream response.
type Stream struct {
	Body io.ReadCloser
	// Status is the upstream status: 200, or 206 when the range was honored.
	Status        int
	ContentType   string
	ContentLength int64
	// Total is the full blob size parsed from Content-Range, or -1.
	Total int64
	// Range is the window the upstream actually sent on a 206, or nil.
	Range *domain.ByteRange
}

// Partial reports whether the upstream honored the requested range.
func (s *Stream) Partial() bool {
	return s.Status == 206
}
