// Command vidembed serves Bluesky video posts in a form link-preview
// crawlers can embed.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/iconidentify/vidembed/internal/config"
	"github.com/iconidentify/vidembed/internal/downloader"
	"github.com/iconidentify/vidembed/internal/logging"
	"github.com/iconidentify/vidembed/internal/repository"
	"github.com/iconidentify/vidembed/internal/service"
	"github.com/iconidentify/vidembed/pkg/bluesky"
)

// Set at build time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var flagConfig string

var (
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "vidembed",
	Short: "Serve Bluesky video posts as embeddable link previews",
	Long: `vidembed answers Bluesky post URLs with Open Graph video previews and
relays the video itself with HTTP range support.`,
	SilenceUsage:       true,
	PersistentPreRunE:  loadConfig,
	PersistentPostRunE: closeLog,
	RunE:               serveRun,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to a YAML or TOML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, logCloser = logging.New(cfg.Log)
	slog.SetDefault(logger)
	return nil
}

func closeLog(cmd *cobra.Command, args []string) error {
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}

// components are the pieces shared by the server and the CLI.
type components struct {
	cache    *repository.InMemoryStreamURLRepository
	embedSvc *service.EmbedService
}

func buildComponents(cfg *config.Config, logger *slog.Logger) *components {
	if cfg.Origin.InsecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled for origin requests")
	}

	transport := downloader.NewTransport(cfg.Origin)

	dl := downloader.NewHTTPDownloader(cfg.Origin, transport)
	dl.SetLogger(logger)

	posts := bluesky.NewClient(bluesky.Config{
		ServiceURL:    cfg.Origin.ServiceURL,
		UserAgent:     cfg.Origin.UserAgent,
		RetryAttempts: cfg.Origin.RetryAttempts,
		RetryDelay:    cfg.Origin.RetryDelay,
	}, &http.Client{
		Transport: transport,
		Timeout:   cfg.Origin.Timeout,
	})

	cache := repository.NewInMemoryStreamURLRepository()

	return &components{
		cache:    cache,
		embedSvc: service.NewEmbedService(posts, dl, cache, cfg.Origin.BlobURL, logger),
	}
}
