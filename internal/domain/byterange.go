package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteRange is a satisfiable, inclusive byte window of a blob of Total bytes.
type ByteRange struct {
	Start int64
	End   int64
	Total int64
}

// Length returns the number of bytes in the window.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range response header value.
func (r ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// RequestHeader formats the Range header to send upstream.
func (r ByteRange) RequestHeader() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// UnsatisfiedContentRange formats Content-Range for a 416 response.
func UnsatisfiedContentRange(total int64) string {
	return fmt.Sprintf("bytes */%d", total)
}

// ParseRange parses a single-range "bytes=start-end" header against a blob
// of size bytes. A missing end means size-1 and an end past the blob is
// clamped. The suffix form "bytes=-N" selects the last N bytes.
//
// It returns nil, nil when there is no header or when the header lists
// several ranges, which are served as the full body. Anything malformed or
// outside the blob returns ErrInvalidRange.
func ParseRange(header string, size int64) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, fmt.Errorf("%w: unsupported unit in %q", ErrInvalidRange, header)
	}
	if strings.Contains(spec, ",") {
		return nil, nil
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: unknown blob size", ErrInvalidRange)
	}

	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return nil, fmt.Errorf("%w: missing '-' in %q", ErrInvalidRange, header)
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	if startStr == "" {
		n, err := parseOffset(endStr)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: bad suffix length in %q", ErrInvalidRange, header)
		}
		if n > size {
			n = size
		}
		return &ByteRange{Start: size - n, End: size - 1, Total: size}, nil
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad start in %q", ErrInvalidRange, header)
	}
	if start >= size {
		return nil, fmt.Errorf("%w: start %d beyond size %d", ErrInvalidRange, start, size)
	}

	end := size - 1
	if endStr != "" {
		end, err = parseOffset(endStr)
		if err != nil {
			return nil, fmt.Errorf("%w: bad end in %q", ErrInvalidRange, header)
		}
		if end < start {
			return nil, fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, end, start)
		}
		if end >= size {
			end = size - 1
		}
	}

	return &ByteRange{Start: start, End: end, Total: size}, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" || strings.ContainsAny(s, "+-") {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	return strconv.ParseInt(s, 10, 64)
}
