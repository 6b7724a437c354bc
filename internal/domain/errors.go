package domain

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	// ErrNotAVideo is returned when a post has no playable single-video embed.
	// It is a routing decision, not a failure: callers redirect to the origin.
	ErrNotAVideo = errors.New("post has no video embed")

	// ErrNoEmbed, ErrUnsupportedEmbed and ErrMissingContentRef say why a post
	// is not a video. All three match ErrNotAVideo with errors.Is.
	ErrNoEmbed           = fmt.Errorf("no embed: %w", ErrNotAVideo)
	ErrUnsupportedEmbed  = fmt.Errorf("unsupported embed type: %w", ErrNotAVideo)
	ErrMissingContentRef = fmt.Errorf("video without content reference: %w", ErrNotAVideo)

	// ErrUpstreamUnavailable is returned when the Bluesky network cannot be
	// reached or answers with an unexpected status.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPostNotFound is returned when the record does not exist upstream.
	ErrPostNotFound = errors.New("post not found")

	// ErrInvalidRange is returned for a Range header that cannot be satisfied.
	ErrInvalidRange = errors.New("invalid byte range")

	// ErrInvalidPostRef is returned when a post reference is empty after sanitizing.
	ErrInvalidPostRef = errors.New("invalid post reference")
)

// PostError wraps an error with the post it concerns.
type PostError struct {
	Ref PostRef
	Op  string
	Err error
}

func (e *PostError) Error() string {
	if e.Ref.Repository != "" || e.Ref.RecordKey != "" {
		return e.Op + " [" + e.Ref.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *PostError) Unwrap() error {
	return e.Err
}

// NewPostError creates a new PostError.
func NewPostError(ref PostRef, op string, err error) *PostError {
	return &PostError{
		Ref: ref,
		Op:  op,
		Err: err,
	}
}
