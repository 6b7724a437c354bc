package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// fallbackSiteURL is used when the configured site URL cannot be parsed.
const fallbackSiteURL = "https://bsky.app"

// Redirector sends clients to the same path on the Bluesky web app.
type Redirector struct {
	siteURL string
	// root is where a request goes when no target can be built.
	root   string
	logger *slog.Logger
}

// NewRedirector creates a new redirector targeting siteURL.
func NewRedirector(siteURL string, logger *slog.Logger) *Redirector {
	siteURL = strings.TrimRight(siteURL, "/")

	root := siteURL
	if u, err := url.Parse(siteURL); err != nil || u.Scheme == "" || u.Host == "" {
		root = fallbackSiteURL
	}

	return &Redirector{
		siteURL: siteURL,
		root:    root,
		logger:  logger,
	}
}

// Target returns the site URL for requestPath. The stream route maps back
// to its post page.
func (rd *Redirector) Target(requestPath string) (string, error) {
	p := path.Clean("/" + requestPath)
	if isStreamPath(p) {
		p = path.Dir(p)
	}
	if p == "/" {
		p = ""
	}

	u, err := url.Parse(rd.siteURL)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + p
	return u.String(), nil
}

// isStreamPath matches /profile/{repository}/post/{post}/stream.
func isStreamPath(p string) bool {
	parts := strings.Split(p, "/")
	return len(parts) == 6 && parts[1] == "profile" && parts[3] == "post" && parts[5] == "stream"
}

// Redirect answers with 301, or 302 when force is set.
func (rd *Redirector) Redirect(w http.ResponseWriter, r *http.Request, force bool) {
	status := http.StatusMovedPermanently
	if force {
		status = http.StatusFound
	}

	target, err := rd.Target(r.URL.Path)
	if err != nil {
		rd.logger.Warn("failed to build redirect target", "path", r.URL.Path, "error", err)
		http.Redirect(w, r, rd.root, http.StatusMovedPermanently)
		return
	}

	rd.logger.Info("redirecting to site", "path", r.URL.Path, "target", target, "status", status)
	http.Redirect(w, r, target, status)
}

// ServeHTTP redirects permanently. It serves the root and unmatched routes.
func (rd *Redirector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rd.Redirect(w, r, false)
}
