package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/iconidentify/vidembed/internal/domain"
	"github.com/iconidentify/vidembed/internal/downloader"
	"github.com/iconidentify/vidembed/internal/repository"
)

// PostFetcher loads post records from the network.
type PostFetcher interface {
	GetPost(ctx context.Context, repo, rkey string) (*domain.PostRecord, error)
}

// Resolution is a post that carries a playable video.
type Resolution struct {
	Ref       domain.PostRef
	Post      *domain.PostRecord
	Video     *domain.VideoEmbed
	AccountID string
}

// EmbedService turns post references into playable video locations.
type EmbedService struct {
	fetcher PostFetcher
	dl      downloader.Downloader
	cache   repository.StreamURLRepository
	blobURL string
	group   singleflight.Group
	logger  *slog.Logger
}

// NewEmbedService creates a new embed service. blobURL is the base of the
// service answering com.atproto.sync.getBlob.
func NewEmbedService(
	fetcher PostFetcher,
	dl downloader.Downloader,
	cache repository.StreamURLRepository,
	blobURL string,
	logger *slog.Logger,
) *EmbedService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbedService{
		fetcher: fetcher,
		dl:      dl,
		cache:   cache,
		blobURL: strings.TrimRight(blobURL, "/"),
		logger:  logger,
	}
}

// Resolve fetches the post behind ref and classifies its embed. Posts
// without a usable video return an error matching domain.ErrNotAVideo.
func (s *EmbedService) Resolve(ctx context.Context, ref domain.PostRef) (*Resolution, error) {
	if !ref.Valid() {
		return nil, domain.NewPostError(ref, "resolve", domain.ErrInvalidPostRef)
	}

	post, err := s.fetcher.GetPost(ctx, ref.Repository, ref.RecordKey)
	if err != nil {
		return nil, domain.NewPostError(ref, "fetch post", err)
	}

	video, err := domain.Classify(post)
	if err != nil {
		return nil, domain.NewPostError(ref, "classify", err)
	}

	accountID := post.AccountID()
	if accountID == "" {
		return nil, domain.NewPostError(ref, "classify", fmt.Errorf("record URI %q has no account: %w", post.URI, domain.ErrUpstreamUnavailable))
	}

	return &Resolution{
		Ref:       ref,
		Post:      post,
		Video:     video,
		AccountID: accountID,
	}, nil
}

// Locate returns the URL serving the video blob, resolving and caching it on
// first use. Failures are never cached.
func (s *EmbedService) Locate(ctx context.Context, accountID, recordKey, contentRef string) (string, error) {
	key := domain.StreamKey(accountID, recordKey)
	if streamURL, ok := s.cache.Get(ctx, key); ok {
		return streamURL, nil
	}

	// Concurrent misses share one resolve. The shared call must not die with
	// whichever client happened to start it.
	v, err, shared := s.group.Do(key, func() (any, error) {
		canonical := s.CanonicalBlobURL(accountID, contentRef)
		streamURL, err := s.dl.Resolve(context.WithoutCancel(ctx), canonical)
		if err != nil {
			return "", err
		}
		if err := s.cache.Put(ctx, key, streamURL); err != nil {
			s.logger.Warn("failed to cache stream url", "key", key, "error", err)
		}
		s.logger.Debug("stream url resolved", "key", key, "url", streamURL)
		return streamURL, nil
	})
	if err != nil {
		return "", fmt.Errorf("locate blob %s: %w", key, err)
	}
	if shared {
		s.logger.Debug("stream url lookup coalesced", "key", key)
	}
	return v.(string), nil
}

// CanonicalBlobURL returns the getBlob URL for a blob.
func (s *EmbedService) CanonicalBlobURL(accountID, contentRef string) string {
	q := url.Values{}
	q.Set("did", accountID)
	q.Set("cid", contentRef)
	return s.blobURL + "/xrpc/com.atproto.sync.getBlob?" + q.Encode()
}

// BlobSize returns the declared size of the video, asking the stream URL
// when the record omits it. It returns 0 when neither knows.
func (s *EmbedService) BlobSize(ctx context.Context, video *domain.VideoEmbed, streamURL string) int64 {
	if video.Size > 0 {
		return video.Size
	}

	probe, err := s.dl.Probe(ctx, streamURL)
	if err != nil {
		s.logger.Warn("failed to probe blob size", "url", streamURL, "error", err)
		return 0
	}
	if !probe.Accessible || probe.ContentLength <= 0 {
		s.logger.Warn("blob size unknown", "url", streamURL, "error", probe.Error)
		return 0
	}
	return probe.ContentLength
}

// OpenStream starts relaying the blob at streamURL. A nil rng requests the
// whole blob.
func (s *EmbedService) OpenStream(ctx context.Context, streamURL string, rng *domain.ByteRange) (*downloader.Stream, error) {
	stream, err := s.dl.Open(ctx, streamURL, rng)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return stream, nil
}

// CacheStats returns stream URL cache statistics.
func (s *EmbedService) CacheStats(ctx context.Context) (*repository.CacheStats, error) {
	return s.cache.Stats(ctx)
}

// IsNotAVideo reports whether err means the post should be redirected
// rather than served.
func IsNotAVideo(err error) bool {
	return errors.Is(err, domain.ErrNotAVideo)
}
