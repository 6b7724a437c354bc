// Package preview renders the Open Graph document link-preview crawlers read.
package preview

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/iconidentify/vidembed/internal/config"
	"github.com/iconidentify/vidembed/internal/domain"
)

const (
	// TitleBudget is the maximum title length in user-perceived characters.
	TitleBudget = 48

	ellipsis      = "..."
	fallbackTitle = "video playback"
)

var pageTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <link rel="canonical" href="{{.PostURL}}">
    <meta property="og:type" content="video.other">
    <meta property="og:title" content="{{.Title}}">
    <meta property="og:description" content="{{.Description}}">
    <meta property="og:site_name" content="{{.SiteName}}">
    <meta property="og:image" content="{{.ThumbnailURL}}">
    <meta property="og:url" content="{{.PostURL}}">
    <meta property="og:video" content="{{.StreamURL}}">
    <meta property="og:video:url" content="{{.StreamURL}}">
    <meta property="og:video:secure_url" content="{{.StreamURL}}">
    <meta property="og:video:type" content="{{.MimeType}}">
    <meta property="og:video:width" content="{{.Width}}">
    <meta property="og:video:height" content="{{.Height}}">
    {{- if .Alt}}
    <meta property="og:video:alt" content="{{.Alt}}">
    {{- end}}
    <meta name="twitter:card" content="player">
    <meta name="twitter:title" content="{{.Title}}">
    <meta name="twitter:image" content="{{.ThumbnailURL}}">
    <meta name="twitter:player" content="{{.StreamURL}}">
    <meta name="twitter:player:width" content="{{.Width}}">
    <meta name="twitter:player:height" content="{{.Height}}">
    <meta name="twitter:player:stream" content="{{.StreamURL}}">
    <meta name="twitter:player:stream:content_type" content="{{.MimeType}}">
    <meta name="theme-color" content="{{.ThemeColor}}">
  </head>
  <body>
    <a href="{{.PostURL}}">View post on Bluesky</a>
  </body>
</html>
`))

// Page is the input to Render. All values are already resolved.
type Page struct {
	Ref       domain.PostRef
	Post      *domain.PostRecord
	Video     *domain.VideoEmbed
	AccountID string
	// StreamURL is what og:video points at: this server's stream endpoint
	// or the CDN URL.
	StreamURL string
}

type pageView struct {
	Title        string
	Description  string
	SiteName     string
	ThumbnailURL string
	PostURL      string
	StreamURL    string
	MimeType     string
	Width        int
	Height       int
	Alt          string
	ThemeColor   string
}

// Builder renders preview documents.
type Builder struct {
	cfg config.PreviewConfig
}

// NewBuilder creates a new preview builder.
func NewBuilder(cfg config.PreviewConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Render returns the HTML document for p.
func (b *Builder) Render(p Page) ([]byte, error) {
	if p.Video == nil {
		return nil, fmt.Errorf("render preview: %w", domain.ErrNotAVideo)
	}

	text := ""
	if p.Post != nil {
		text = strings.TrimSpace(p.Post.Text)
	}
	title := fallbackTitle
	if text != "" {
		title = Truncate(text, TitleBudget)
	}

	width, height := Scale(p.Video.Dimensions())

	mime := p.Video.MimeType
	if mime == "" {
		mime = "video/mp4"
	}

	view := pageView{
		Title:        b.cfg.TitlePrefix + title,
		Description:  b.cfg.Attribution,
		SiteName:     b.cfg.Attribution,
		ThumbnailURL: ThumbnailURL(b.cfg.ThumbnailBaseURL, p.AccountID, p.Video.ContentRef),
		PostURL:      PostURL(b.cfg.SiteURL, p.Ref),
		StreamURL:    p.StreamURL,
		MimeType:     mime,
		Width:        width,
		Height:       height,
		Alt:          p.Video.Alt,
		ThemeColor:   b.cfg.ThemeColor,
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// Multiplier returns the scale applied to declared dimensions: 0.5 when
// either side exceeds 1920, 2 when both are under 400, otherwise 1.
func Multiplier(ar domain.AspectRatio) float64 {
	switch {
	case ar.Width > 1920 || ar.Height > 1920:
		return 0.5
	case ar.Width < 400 && ar.Height < 400:
		return 2
	default:
		return 1
	}
}

// Scale applies Multiplier to ar, rounding to whole pixels.
func Scale(ar domain.AspectRatio) (width, height int) {
	m := Multiplier(ar)
	return int(math.Round(float64(ar.Width) * m)), int(math.Round(float64(ar.Height) * m))
}

// Truncate shortens text to budget user-perceived characters. Longer text
// keeps its first budget-3 characters followed by "...". Text within budget
// is returned unchanged.
func Truncate(text string, budget int) string {
	if uniseg.GraphemeClusterCount(text) <= budget {
		return text
	}

	keep := budget - len(ellipsis)
	if keep < 0 {
		keep = 0
	}

	var sb strings.Builder
	g := uniseg.NewGraphemes(text)
	for i := 0; i < keep && g.Next(); i++ {
		sb.WriteString(g.Str())
	}
	sb.WriteString(ellipsis)
	return sb.String()
}

// ThumbnailURL returns the CDN thumbnail for a video blob.
func ThumbnailURL(base, accountID, contentRef string) string {
	return strings.TrimRight(base, "/") + "/hls/" + url.PathEscape(accountID) + "/" + url.PathEscape(contentRef) + "/thumbnail.jpg"
}

// PostURL returns the canonical web URL of a post.
func PostURL(siteURL string, ref domain.PostRef) string {
	return strings.TrimRight(siteURL, "/") + "/profile/" + url.PathEscape(ref.Repository) + "/post/" + url.PathEscape(ref.RecordKey)
}
