package preview

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iconidentify/vidembed/internal/config"
	"github.com/iconidentify/vidembed/internal/domain"
)

func TestScale(t *testing.T) {
	tests := []struct {
		name          string
		in            domain.AspectRatio
		width, height int
	}{
		{name: "small doubles", in: domain.AspectRatio{Width: 200, Height: 150}, width: 400, height: 300},
		{name: "large halves", in: domain.AspectRatio{Width: 3000, Height: 2000}, width: 1500, height: 1000},
		{name: "tall large halves", in: domain.AspectRatio{Width: 1080, Height: 2400}, width: 540, height: 1200},
		{name: "medium unchanged", in: domain.AspectRatio{Width: 800, Height: 600}, width: 800, height: 600},
		{name: "one small side unchanged", in: domain.AspectRatio{Width: 300, Height: 500}, width: 300, height: 500},
		{name: "boundary 1920 unchanged", in: domain.AspectRatio{Width: 1920, Height: 1080}, width: 1920, height: 1080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Scale(tt.in)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 60)
	got := Truncate(long, TitleBudget)
	assert.Equal(t, strings.Repeat("a", 45)+"...", got)

	short := strings.Repeat("b", 30)
	assert.Equal(t, short, Truncate(short, TitleBudget))

	exact := strings.Repeat("c", TitleBudget)
	assert.Equal(t, exact, Truncate(exact, TitleBudget))
}

func TestTruncate_Graphemes(t *testing.T) {
	// Each flag is one grapheme made of two code points.
	flags := strings.Repeat("🇯🇵", 50)
	got := Truncate(flags, TitleBudget)
	assert.Equal(t, strings.Repeat("🇯🇵", 45)+"...", got)
}

func TestThumbnailURL(t *testing.T) {
	got := ThumbnailURL("https://video.cdn.bsky.app/", "did:plc:abc", "bafkreiexample")
	assert.Equal(t, "https://video.cdn.bsky.app/hls/did:plc:abc/bafkreiexample/thumbnail.jpg", got)
}

func TestPostURL(t *testing.T) {
	ref := domain.PostRef{Repository: "alice.bsky.social", RecordKey: "3kabc"}
	assert.Equal(t, "https://bsky.app/profile/alice.bsky.social/post/3kabc", PostURL("https://bsky.app", ref))
}

func newTestPage(text string) Page {
	return Page{
		Ref:       domain.PostRef{Repository: "alice.bsky.social", RecordKey: "3kabc"},
		AccountID: "did:plc:abc",
		Post: &domain.PostRecord{
			URI:  "at://did:plc:abc/app.bsky.feed.post/3kabc",
			Text: text,
		},
		Video: &domain.VideoEmbed{
			ContentRef:  "bafkreiexample",
			MimeType:    "video/mp4",
			AspectRatio: &domain.AspectRatio{Width: 200, Height: 150},
			Alt:         "a cat",
		},
		StreamURL: "https://embed.example.com/profile/alice.bsky.social/post/3kabc/stream",
	}
}

func metaContent(doc *goquery.Document, property string) string {
	v, _ := doc.Find(`meta[property="` + property + `"]`).Attr("content")
	return v
}

func TestBuilder_Render(t *testing.T) {
	cfg := config.Default().Preview
	b := NewBuilder(cfg)

	out, err := b.Render(newTestPage("hello <world>"))
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(out))
	require.NoError(t, err)

	assert.Equal(t, "vidembed | hello <world>", metaContent(doc, "og:title"))
	assert.Equal(t, "vidembed | hello <world>", doc.Find("title").Text())
	assert.Equal(t, cfg.Attribution, metaContent(doc, "og:description"))
	assert.Equal(t, "https://video.cdn.bsky.app/hls/did:plc:abc/bafkreiexample/thumbnail.jpg", metaContent(doc, "og:image"))
	assert.Equal(t, "https://bsky.app/profile/alice.bsky.social/post/3kabc", metaContent(doc, "og:url"))
	assert.Equal(t, "https://embed.example.com/profile/alice.bsky.social/post/3kabc/stream", metaContent(doc, "og:video"))
	assert.Equal(t, "video/mp4", metaContent(doc, "og:video:type"))
	assert.Equal(t, "400", metaContent(doc, "og:video:width"))
	assert.Equal(t, "300", metaContent(doc, "og:video:height"))
	assert.Equal(t, "a cat", metaContent(doc, "og:video:alt"))

	player, _ := doc.Find(`meta[name="twitter:player:stream"]`).Attr("content")
	assert.Equal(t, metaContent(doc, "og:video"), player)

	// Text is escaped, never injected as markup.
	assert.NotContains(t, string(out), "<world>")
}

func TestBuilder_Render_Defaults(t *testing.T) {
	b := NewBuilder(config.Default().Preview)

	page := newTestPage("   ")
	page.Video.AspectRatio = nil
	page.Video.MimeType = ""
	page.Video.Alt = ""

	out, err := b.Render(page)
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(out))
	require.NoError(t, err)

	assert.Equal(t, "vidembed | video playback", metaContent(doc, "og:title"))
	assert.Equal(t, "1280", metaContent(doc, "og:video:width"))
	assert.Equal(t, "720", metaContent(doc, "og:video:height"))
	assert.Equal(t, "video/mp4", metaContent(doc, "og:video:type"))
	assert.Equal(t, 0, doc.Find(`meta[property="og:video:alt"]`).Length())
}

func TestBuilder_Render_LongTitle(t *testing.T) {
	b := NewBuilder(config.PreviewConfig{
		SiteURL:          "https://bsky.app",
		ThumbnailBaseURL: "https://video.cdn.bsky.app",
	})

	out, err := b.Render(newTestPage(strings.Repeat("x", 60)))
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 45)+"...", metaContent(doc, "og:title"))
}

func TestBuilder_Render_NoVideo(t *testing.T) {
	b := NewBuilder(config.Default().Preview)
	page := newTestPage("hi")
	page.Video = nil

	_, err := b.Render(page)
	assert.ErrorIs(t, err, domain.ErrNotAVideo)
}
