// Package update checks for and installs new releases of the CLI.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

const (
	GitHubAPIURL    = "https://api.github.com/repos/invoicely-dev/invoicely/releases/latest"
	UserAgent       = "invoicely-cli"
	DownloadBaseURL = "https://github.com/invoicely-dev/invoicely/releases/download"

	checkTimeout = 3 * time.Second
)

// Release represents a GitHub release
type Release struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

// Updater talks to the release feed. The zero value uses the public feed.
type Updater struct {
	ReleaseURL  string
	DownloadURL string
	HTTPClient  *http.Client
	// ExecPath overrides the binary replaced by SelfUpdate
	ExecPath string
	Out      io.Writer
}

func (u *Updater) releaseURL() string {
	if u.ReleaseURL != "" {
		return u.ReleaseURL
	}
	return GitHubAPIURL
}

func (u *Updater) downloadURL() string {
	if u.DownloadURL != "" {
		return strings.TrimRight(u.DownloadURL, "/")
	}
	return DownloadBaseURL
}

func (u *Updater) httpClient(timeout time.Duration) *http.Client {
	if u.HTTPClient != nil {
		return u.HTTPClient
	}
	return &http.Client{Timeout: timeout}
}

// GetLatestVersion fetches the latest release tag
func (u *Updater) GetLatestVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.releaseURL(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := u.httpClient(10 * time.Second).Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release feed returned status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if release.TagName == "" {
		return "", fmt.Errorf("release has no tag")
	}

	return release.TagName, nil
}

// CheckForUpdate reports whether a newer release than currentVersion exists
func (u *Updater) CheckForUpdate(ctx context.Context, currentVersion string) (bool, string, error) {
	latestVersion, err := u.GetLatestVersion(ctx)
	if err != nil {
		return false, "", err
	}

	return isNewer(currentVersion, latestVersion), latestVersion, nil
}

// isNewer returns true if latest is newer than current. Development builds
// and unparsable versions are always offered the latest release.
func isNewer(current, latest string) bool {
	latestVer, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}

	currentVer, err := semver.NewVersion(current)
	if err != nil {
		return true
	}

	return latestVer.GreaterThan(currentVer)
}

// PrintUpdateNotification writes a one-line notice to w if an update is
// available. Errors are ignored since the check is best effort.
func (u *Updater) PrintUpdateNotification(ctx context.Context, w io.Writer, currentVersion string) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	updateAvailable, latestVersion, err := u.CheckForUpdate(ctx, currentVersion)
	if err != nil {
		return
	}

	if updateAvailable {
		fmt.Fprintf(w, "New version %s -> %s. Run: invoicely update\n\n", currentVersion, latestVersion)
	}
}
