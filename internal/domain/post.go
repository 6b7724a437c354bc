package domain

import (
	"strings"
)

// PostCollection is the NSID of Bluesky post records.
const PostCollection = "app.bsky.feed.post"

// refReplacer strips characters that break markdown or URL rendering
// downstream.
var refReplacer = strings.NewReplacer(
	"|", "",
	"*", "",
	"_", "",
	"[", "",
	"]", "",
	"(", "",
	")", "",
)

// PostRef identifies a post by its owner (handle or DID) and record key.
type PostRef struct {
	Repository string
	RecordKey  string
}

// NewPostRef builds a sanitized PostRef from caller-supplied path values.
func NewPostRef(repository, recordKey string) PostRef {
	return PostRef{
		Repository: SanitizeRefPart(repository),
		RecordKey:  SanitizeRefPart(recordKey),
	}
}

// SanitizeRefPart removes the characters | * _ [ ] ( ) and surrounding
// whitespace.
func SanitizeRefPart(s string) string {
	return strings.TrimSpace(refReplacer.Replace(s))
}

// Valid reports whether both parts are non-empty.
func (r PostRef) Valid() bool {
	return r.Repository != "" && r.RecordKey != ""
}

// String returns "repository/recordKey".
func (r PostRef) String() string {
	return r.Repository + "/" + r.RecordKey
}

// PostRecord is a post fetched from the network. It is never persisted.
type PostRecord struct {
	// URI is the AT-URI of the record, e.g.
	// at://did:plc:abc/app.bsky.feed.post/3l3qo2vuowo2b.
	URI   string
	CID   string
	Text  string
	Embed Embed // nil when the post has no embed
}

// AccountID returns the owning account's DID, the second path segment of
// the AT-URI. It returns "" for a malformed URI.
func (p *PostRecord) AccountID() string {
	parts := strings.Split(p.URI, "/")
	if len(parts) < 3 || parts[0] != "at:" {
		return ""
	}
	return parts[2]
}

// StreamKey is the cache key for a post's resolved stream URL.
func StreamKey(accountID, recordKey string) string {
	return accountID + "|" + recordKey
}
