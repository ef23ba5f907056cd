package update

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// SelfUpdate downloads and installs the latest version
func (u *Updater) SelfUpdate(ctx context.Context, currentVersion string) error {
	out := u.Out
	if out == nil {
		out = os.Stdout
	}

	latestVersion, err := u.GetLatestVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	if !isNewer(currentVersion, latestVersion) {
		fmt.Fprintf(out, "Already up to date (version %s)\n", currentVersion)
		return nil
	}

	fmt.Fprintf(out, "Updating from %s to %s...\n", currentVersion, latestVersion)

	binaryName, err := getBinaryName(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Downloading new version...")
	downloadURL := fmt.Sprintf("%s/%s/%s", u.downloadURL(), latestVersion, binaryName)

	tmpFile, err := u.downloadFile(ctx, downloadURL)
	if err != nil {
		return fmt.Errorf("failed to download update: %w", err)
	}
	defer os.Remove(tmpFile)

	fmt.Fprintln(out, "Verifying checksum...")
	if err := u.verifyChecksum(ctx, tmpFile, downloadURL+".sha256"); err != nil {
		return fmt.Errorf("checksum verification failed: %w", err)
	}

	execPath := u.ExecPath
	if execPath == "" {
		if execPath, err = os.Executable(); err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
	}

	// Resolve symlinks
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	fmt.Fprintln(out, "Installing new version...")
	if err := replaceBinary(tmpFile, execPath); err != nil {
		return fmt.Errorf("failed to install update: %w", err)
	}

	fmt.Fprintf(out, "\n✓ Successfully updated to version %s!\n", latestVersion)

	return nil
}

// getBinaryName returns the release asset name for a platform
func getBinaryName(goos, goarch string) (string, error) {
	supported := map[string][]string{
		"linux":   {"amd64", "arm64"},
		"darwin":  {"amd64", "arm64"},
		"windows": {"amd64"},
	}

	arches, ok := supported[goos]
	if !ok {
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}

	for _, arch := range arches {
		if arch == goarch {
			name := fmt.Sprintf("invoicely-%s-%s", goos, goarch)
			if goos == "windows" {
				name += ".exe"
			}
			return name, nil
		}
	}

	return "", fmt.Errorf("unsupported architecture: %s", goarch)
}

func (u *Updater) get(ctx context.Context, url string, timeout time.Duration) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := u.httpClient(timeout).Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download of %s failed with status %d", url, resp.StatusCode)
	}
	return resp, nil
}

// downloadFile downloads a file to a temporary location
func (u *Updater) downloadFile(ctx context.Context, url string) (string, error) {
	resp, err := u.get(ctx, url, 5*time.Minute)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp("", "invoicely-update-*")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	return tmpFile.Name(), nil
}

// verifyChecksum downloads and verifies the SHA256 checksum
func (u *Updater) verifyChecksum(ctx context.Context, filePath, checksumURL string) error {
	resp, err := u.get(ctx, checksumURL, 30*time.Second)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	checksumData, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Format: "hash  filename"
	parts := strings.Fields(string(checksumData))
	if len(parts) < 1 {
		return fmt.Errorf("invalid checksum format")
	}
	expectedHash := strings.ToLower(parts[0])

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	actualHash := fmt.Sprintf("%x", h.Sum(nil))

	if actualHash != expectedHash {
		return fmt.Errorf("checksum mismatch (expected: %s, got: %s)", expectedHash, actualHash)
	}

	return nil
}

// replaceBinary replaces the current binary with the new one
func replaceBinary(newBinaryPath, currentBinaryPath string) error {
	if err := os.Chmod(newBinaryPath, 0755); err != nil {
		return err
	}

	// A running executable cannot be overwritten on Windows, so move it aside
	if runtime.GOOS == "windows" {
		backupPath := currentBinaryPath + ".old"
		os.Remove(backupPath)

		if err := os.Rename(currentBinaryPath, backupPath); err != nil {
			return fmt.Errorf("failed to backup current binary: %w", err)
		}

		if err := os.Rename(newBinaryPath, currentBinaryPath); err != nil {
			os.Rename(backupPath, currentBinaryPath)
			return fmt.Errorf("failed to install new binary: %w", err)
		}
		return nil
	}

	backupPath := currentBinaryPath + ".backup"
	if err := copyFile(currentBinaryPath, backupPath); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	if err := copyFile(newBinaryPath, currentBinaryPath); err != nil {
		copyFile(backupPath, currentBinaryPath)
		return fmt.Errorf("failed to install new binary: %w", err)
	}

	os.Remove(backupPath)

	return nil
}

// copyFile copies a file from src to dst, keeping the source permissions
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	sourceInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	return os.Chmod(dst, sourceInfo.Mode())
}
