package bluesky

import (
	"encoding/json"
	"fmt"

	"github.com/iconidentify/vidembed/internal/domain"
)

// getRecordResponse is the body of com.atproto.repo.getRecord.
type getRecordResponse struct {
	URI   string     `json:"uri"`
	CID   string     `json:"cid"`
	Value postRecord `json:"value"`
}

// postRecord is the parsed content of an app.bsky.feed.post record.
type postRecord struct {
	Type      string          `json:"$type"`
	Text      string          `json:"text"`
	CreatedAt string          `json:"createdAt"`
	Embed     json.RawMessage `json:"embed,omitempty"`
}

// blobRef is an AT Protocol blob reference.
type blobRef struct {
	Type string `json:"$type"`
	Ref  struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`

	// Legacy blobs carry the CID directly.
	CID string `json:"cid"`
}

func (b *blobRef) contentRef() string {
	if b.Ref.Link != "" {
		return b.Ref.Link
	}
	return b.CID
}

type aspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type embedHeader struct {
	Type string `json:"$type"`
}

type videoEmbed struct {
	Video       *blobRef     `json:"video"`
	AspectRatio *aspectRatio `json:"aspectRatio,omitempty"`
	Alt         string       `json:"alt,omitempty"`
}

type imagesEmbed struct {
	Images []json.RawMessage `json:"images"`
}

type externalEmbed struct {
	External struct {
		URI string `json:"uri"`
	} `json:"external"`
}

type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type recordEmbed struct {
	Record strongRef `json:"record"`
}

type recordWithMediaEmbed struct {
	Record recordEmbed     `json:"record"`
	Media  json.RawMessage `json:"media"`
}

func (r *getRecordResponse) toDomain() (*domain.PostRecord, error) {
	post := &domain.PostRecord{
		URI:  r.URI,
		CID:  r.CID,
		Text: r.Value.Text,
	}

	embed, err := decodeEmbed(r.Value.Embed)
	if err != nil {
		return nil, fmt.Errorf("decode embed: %w", err)
	}
	post.Embed = embed
	return post, nil
}

// decodeEmbed maps the $type-tagged embed union onto domain.Embed. An absent
// or null embed returns nil.
func decodeEmbed(raw json.RawMessage) (domain.Embed, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var header embedHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("unmarshal embed type: %w", err)
	}

	switch header.Type {
	case domain.EmbedTypeVideo:
		var v videoEmbed
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal video embed: %w", err)
		}
		out := &domain.VideoEmbed{Alt: v.Alt}
		if v.Video != nil {
			out.ContentRef = v.Video.contentRef()
			out.MimeType = v.Video.MimeType
			out.Size = v.Video.Size
		}
		if v.AspectRatio != nil {
			out.AspectRatio = &domain.AspectRatio{Width: v.AspectRatio.Width, Height: v.AspectRatio.Height}
		}
		return out, nil

	case domain.EmbedTypeImages:
		var v imagesEmbed
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal images embed: %w", err)
		}
		return &domain.ImagesEmbed{Count: len(v.Images)}, nil

	case domain.EmbedTypeExternal:
		var v externalEmbed
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal external embed: %w", err)
		}
		return &domain.ExternalEmbed{URI: v.External.URI}, nil

	case domain.EmbedTypeRecord:
		var v recordEmbed
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal record embed: %w", err)
		}
		return &domain.RecordEmbed{URI: v.Record.URI}, nil

	case domain.EmbedTypeRecordWithMedia:
		var v recordWithMediaEmbed
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal recordWithMedia embed: %w", err)
		}
		media, err := decodeEmbed(v.Media)
		if err != nil {
			return nil, err
		}
		return &domain.RecordWithMediaEmbed{URI: v.Record.Record.URI, Media: media}, nil

	default:
		return &domain.UnknownEmbed{Type: header.Type}, nil
	}
}
