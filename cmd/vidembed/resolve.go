package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iconidentify/vidembed/internal/domain"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <repository> <record-key>",
	Short: "Print a post's video embed and resolved stream URL as JSON",
	Args:  cobra.ExactArgs(2),
	RunE:  resolveRun,
}

type resolveOutput struct {
	Post       string             `json:"post"`
	Account    string             `json:"account"`
	Text       string             `json:"text,omitempty"`
	ContentRef string             `json:"content_ref"`
	MimeType   string             `json:"mime_type,omitempty"`
	Size       int64              `json:"size,omitempty"`
	Dimensions domain.AspectRatio `json:"dimensions"`
	BlobURL    string             `json:"blob_url"`
	StreamURL  string             `json:"stream_url"`
}

func resolveRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c := buildComponents(cfg, logger)
	ref := domain.NewPostRef(args[0], args[1])

	res, err := c.embedSvc.Resolve(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", ref, err)
	}

	streamURL, err := c.embedSvc.Locate(ctx, res.AccountID, ref.RecordKey, res.Video.ContentRef)
	if err != nil {
		return fmt.Errorf("locating blob for %s: %w", ref, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resolveOutput{
		Post:       ref.String(),
		Account:    res.AccountID,
		Text:       res.Post.Text,
		ContentRef: res.Video.ContentRef,
		MimeType:   res.Video.MimeType,
		Size:       res.Video.Size,
		Dimensions: res.Video.Dimensions(),
		BlobURL:    c.embedSvc.CanonicalBlobURL(res.AccountID, res.Video.ContentRef),
		StreamURL:  streamURL,
	})
}
