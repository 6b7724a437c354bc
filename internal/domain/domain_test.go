package domain

import (
	"errors"
	"testing"
)

// =============================================================================
// PostRef Tests
// =============================================================================

func TestNewPostRef_Sanitizes(t *testing.T) {
	tests := []struct {
		name     string
		repo     string
		rkey     string
		wantRepo string
		wantRKey string
	}{
		{"clean", "alice.bsky.social", "3l3qo2vuowo2b", "alice.bsky.social", "3l3qo2vuowo2b"},
		{"markdown link", "[alice](x)", "3l3qo2vuowo2b", "alicex", "3l3qo2vuowo2b"},
		{"pipes and stars", "ali|ce*", "**3l3q**", "alice", "3l3q"},
		{"underscores", "_alice_", "3l_3q", "alice", "3l3q"},
		{"only specials", "|*_[]()", "()", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := NewPostRef(tt.repo, tt.rkey)
			if ref.Repository != tt.wantRepo {
				t.Errorf("Repository = %q, want %q", ref.Repository, tt.wantRepo)
			}
			if ref.RecordKey != tt.wantRKey {
				t.Errorf("RecordKey = %q, want %q", ref.RecordKey, tt.wantRKey)
			}
		})
	}
}

func TestPostRef_Valid(t *testing.T) {
	if !NewPostRef("alice.bsky.social", "abc").Valid() {
		t.Error("expected valid ref")
	}
	if NewPostRef("()", "abc").Valid() {
		t.Error("ref with empty repository should be invalid")
	}
	if NewPostRef("alice", "").Valid() {
		t.Error("ref with empty record key should be invalid")
	}
}

func TestPostRecord_AccountID(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"post uri", "at://did:plc:abc123/app.bsky.feed.post/3l3qo2vuowo2b", "did:plc:abc123"},
		{"did web", "at://did:web:example.com/app.bsky.feed.post/xyz", "did:web:example.com"},
		{"empty", "", ""},
		{"not at uri", "https://bsky.app/profile/x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PostRecord{URI: tt.uri}
			if got := p.AccountID(); got != tt.want {
				t.Errorf("AccountID() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Classify Tests
// =============================================================================

func TestClassify(t *testing.T) {
	video := &VideoEmbed{ContentRef: "bafkreivideo", MimeType: "video/mp4", Size: 1000}

	tests := []struct {
		name    string
		post    *PostRecord
		want    *VideoEmbed
		wantErr error
	}{
		{"nil post", nil, nil, ErrNoEmbed},
		{"no embed", &PostRecord{Text: "hi"}, nil, ErrNoEmbed},
		{"images", &PostRecord{Embed: &ImagesEmbed{Count: 2}}, nil, ErrUnsupportedEmbed},
		{"external", &PostRecord{Embed: &ExternalEmbed{URI: "https://example.com"}}, nil, ErrUnsupportedEmbed},
		{"quote with video", &PostRecord{Embed: &RecordWithMediaEmbed{Media: video}}, nil, ErrUnsupportedEmbed},
		{"unknown", &PostRecord{Embed: &UnknownEmbed{Type: "app.example.embed"}}, nil, ErrUnsupportedEmbed},
		{"video without ref", &PostRecord{Embed: &VideoEmbed{MimeType: "video/mp4"}}, nil, ErrMissingContentRef},
		{"video", &PostRecord{Embed: video}, video, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.post)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Classify() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, ErrNotAVideo) {
					t.Errorf("error %v should match ErrNotAVideo", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestVideoEmbed_Dimensions(t *testing.T) {
	tests := []struct {
		name string
		ar   *AspectRatio
		want AspectRatio
	}{
		{"declared", &AspectRatio{Width: 800, Height: 600}, AspectRatio{Width: 800, Height: 600}},
		{"missing", nil, DefaultAspectRatio},
		{"zero width", &AspectRatio{Width: 0, Height: 600}, DefaultAspectRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &VideoEmbed{AspectRatio: tt.ar}
			if got := v.Dimensions(); got != tt.want {
				t.Errorf("Dimensions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEmbedType(t *testing.T) {
	tests := []struct {
		embed Embed
		want  string
	}{
		{&VideoEmbed{}, "app.bsky.embed.video"},
		{&ImagesEmbed{}, "app.bsky.embed.images"},
		{&ExternalEmbed{}, "app.bsky.embed.external"},
		{&RecordEmbed{}, "app.bsky.embed.record"},
		{&RecordWithMediaEmbed{}, "app.bsky.embed.recordWithMedia"},
		{&UnknownEmbed{Type: "x.y.z"}, "x.y.z"},
	}

	for _, tt := range tests {
		if got := tt.embed.EmbedType(); got != tt.want {
			t.Errorf("EmbedType() = %q, want %q", got, tt.want)
		}
	}
}

// =============================================================================
// ByteRange Tests
// =============================================================================

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		size    int64
		want    *ByteRange
		wantErr bool
	}{
		{"no header", "", 1000, nil, false},
		{"first hundred", "bytes=0-99", 1000, &ByteRange{Start: 0, End: 99, Total: 1000}, false},
		{"open ended", "bytes=500-", 1000, &ByteRange{Start: 500, End: 999, Total: 1000}, false},
		{"end clamped", "bytes=900-5000", 1000, &ByteRange{Start: 900, End: 999, Total: 1000}, false},
		{"single byte", "bytes=999-999", 1000, &ByteRange{Start: 999, End: 999, Total: 1000}, false},
		{"suffix", "bytes=-100", 1000, &ByteRange{Start: 900, End: 999, Total: 1000}, false},
		{"suffix larger than blob", "bytes=-5000", 1000, &ByteRange{Start: 0, End: 999, Total: 1000}, false},
		{"whitespace", " bytes= 10 - 19 ", 1000, &ByteRange{Start: 10, End: 19, Total: 1000}, false},
		{"multiple ranges ignored", "bytes=0-1,5-6", 1000, nil, false},
		{"start at size", "bytes=1000-", 1000, nil, true},
		{"start beyond size", "bytes=2000-2100", 1000, nil, true},
		{"non numeric start", "bytes=abc-99", 1000, nil, true},
		{"non numeric end", "bytes=0-xyz", 1000, nil, true},
		{"end before start", "bytes=50-10", 1000, nil, true},
		{"negative start", "bytes=--5", 1000, nil, true},
		{"zero suffix", "bytes=-0", 1000, nil, true},
		{"missing dash", "bytes=100", 1000, nil, true},
		{"wrong unit", "items=0-10", 1000, nil, true},
		{"unknown size", "bytes=0-10", 0, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, tt.size)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRange) {
					t.Fatalf("ParseRange(%q) error = %v, want ErrInvalidRange", tt.header, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange(%q) unexpected error: %v", tt.header, err)
			}
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseRange(%q) = %+v, want %+v", tt.header, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ParseRange(%q) = %+v, want %+v", tt.header, *got, *tt.want)
			}
		})
	}
}

func TestByteRange_Headers(t *testing.T) {
	r := ByteRange{Start: 0, End: 99, Total: 1000}

	if got := r.Length(); got != 100 {
		t.Errorf("Length() = %d, want 100", got)
	}
	if got := r.ContentRange(); got != "bytes 0-99/1000" {
		t.Errorf("ContentRange() = %q", got)
	}
	if got := r.RequestHeader(); got != "bytes=0-99" {
		t.Errorf("RequestHeader() = %q", got)
	}
	if got := UnsatisfiedContentRange(1000); got != "bytes */1000" {
		t.Errorf("UnsatisfiedContentRange() = %q", got)
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestPostError(t *testing.T) {
	ref := PostRef{Repository: "alice.bsky.social", RecordKey: "abc"}
	err := NewPostError(ref, "fetch post", ErrPostNotFound)

	if got := err.Error(); got != "fetch post [alice.bsky.social/abc]: post not found" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrPostNotFound) {
		t.Error("PostError should unwrap to ErrPostNotFound")
	}

	noRef := NewPostError(PostRef{}, "resolve", ErrUpstreamUnavailable)
	if got := noRef.Error(); got != "resolve: upstream unavailable" {
		t.Errorf("Error() = %q", got)
	}
}

func TestStreamKey(t *testing.T) {
	if got := StreamKey("did:plc:abc", "3l3q"); got != "did:plc:abc|3l3q" {
		t.Errorf("StreamKey() = %q", got)
	}
}
