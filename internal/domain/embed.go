package domain

// Embed type NSIDs.
const (
	EmbedTypeVideo           = "app.bsky.embed.video"
	EmbedTypeImages          = "app.bsky.embed.images"
	EmbedTypeExternal        = "app.bsky.embed.external"
	EmbedTypeRecord          = "app.bsky.embed.record"
	EmbedTypeRecordWithMedia = "app.bsky.embed.recordWithMedia"
)

// DefaultAspectRatio is used when a video embed declares none.
var DefaultAspectRatio = AspectRatio{Width: 1280, Height: 720}

// Embed is the closed set of media a post can carry. Only *VideoEmbed
// carries a blob reference this service can serve.
type Embed interface {
	EmbedType() string
	isEmbed()
}

// AspectRatio is the declared display size of a video.
type AspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VideoEmbed is a single video attached to a post.
type VideoEmbed struct {
	// ContentRef is the CID of the video blob.
	ContentRef string
	MimeType   string
	// Size is the declared blob size in bytes. It may be zero or wrong.
	Size        int64
	AspectRatio *AspectRatio
	Alt         string
}

// Dimensions returns the declared aspect ratio or DefaultAspectRatio.
func (v *VideoEmbed) Dimensions() AspectRatio {
	if v.AspectRatio == nil || v.AspectRatio.Width <= 0 || v.AspectRatio.Height <= 0 {
		return DefaultAspectRatio
	}
	return *v.AspectRatio
}

// ImagesEmbed is an image gallery.
type ImagesEmbed struct {
	Count int
}

// ExternalEmbed is a link card.
type ExternalEmbed struct {
	URI string
}

// RecordEmbed is a quote of another record.
type RecordEmbed struct {
	URI string
}

// RecordWithMediaEmbed is a quote with attached media.
type RecordWithMediaEmbed struct {
	URI   string
	Media Embed
}

// UnknownEmbed is any embed type this service does not model.
type UnknownEmbed struct {
	Type string
}

func (*VideoEmbed) EmbedType() string           { return EmbedTypeVideo }
func (*ImagesEmbed) EmbedType() string          { return EmbedTypeImages }
func (*ExternalEmbed) EmbedType() string        { return EmbedTypeExternal }
func (*RecordEmbed) EmbedType() string          { return EmbedTypeRecord }
func (*RecordWithMediaEmbed) EmbedType() string { return EmbedTypeRecordWithMedia }
func (e *UnknownEmbed) EmbedType() string       { return e.Type }

func (*VideoEmbed) isEmbed()           {}
func (*ImagesEmbed) isEmbed()          {}
func (*ExternalEmbed) isEmbed()        {}
func (*RecordEmbed) isEmbed()          {}
func (*RecordWithMediaEmbed) isEmbed() {}
func (*UnknownEmbed) isEmbed()         {}

// Classify returns the post's video embed, or ErrNotAVideo when the post
// has no embed, a different embed type, or a video without a content
// reference.
func Classify(post *PostRecord) (*VideoEmbed, error) {
	if post == nil || post.Embed == nil {
		return nil, ErrNoEmbed
	}
	video, ok := post.Embed.(*VideoEmbed)
	if !ok || video == nil {
		return nil, ErrUnsupportedEmbed
	}
	if video.ContentRef == "" {
		return nil, ErrMissingContentRef
	}
	return video, nil
}
