// fetch/downloader.go
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gewnthar/fareprice/config"
)

// DownloadFile GETs url and writes the body to localSavePath, creating the
// directory if needed. A partial file is removed when the copy fails.
func DownloadFile(ctx context.Context, client *http.Client, url string, localSavePath string) error {
	slog.Info("Downloading file.", "url", url, "path", localSavePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make GET request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file from %s: received status code %d", url, resp.StatusCode)
	}

	dir := filepath.Dir(localSavePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	outFile, err := os.Create(localSavePath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localSavePath, err)
	}
	n, err := io.Copy(outFile, resp.Body)
	if cerr := outFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(localSavePath)
		return fmt.Errorf("failed to copy downloaded content to %s: %w", localSavePath, err)
	}

	slog.Info("Download complete.", "path", localSavePath, "bytes", n)
	return nil
}

// FetchDatasets downloads the training sheet, and the test sheet when a test
// path is configured. Direct URLs win; otherwise the files are located on
// the configured page by base name. It returns the paths written.
func FetchDatasets(ctx context.Context, fc config.FetchConfig, dc config.DataConfig) ([]string, error) {
	client := &http.Client{Timeout: fc.Timeout}

	trainURL, testURL := fc.TrainURL, fc.TestURL
	if trainURL == "" || (testURL == "" && dc.TestPath != "") {
		if fc.PageURL == "" {
			if trainURL == "" {
				return nil, errors.New("no train_url or page_url configured for fetch")
			}
		} else {
			links, err := FindDatasetLinks(ctx, client, fc.PageURL, fc.LinkSelector)
			if err != nil {
				return nil, err
			}
			if trainURL == "" {
				trainURL = matchLink(links, dc.TrainPath)
				if trainURL == "" {
					return nil, fmt.Errorf("no link to %s found on %s", filepath.Base(dc.TrainPath), fc.PageURL)
				}
			}
			if testURL == "" && dc.TestPath != "" {
				testURL = matchLink(links, dc.TestPath)
			}
		}
	}

	if err := DownloadFile(ctx, client, trainURL, dc.TrainPath); err != nil {
		return nil, fmt.Errorf("failed to download training sheet: %w", err)
	}
	written := []string{dc.TrainPath}

	switch {
	case dc.TestPath == "":
	case testURL == "":
		slog.Warn("No link found for the test sheet; skipping.", "test_path", dc.TestPath)
	default:
		if err := DownloadFile(ctx, client, testURL, dc.TestPath); err != nil {
			return written, fmt.Errorf("failed to download test sheet: %w", err)
		}
		written = append(written, dc.TestPath)
	}
	return written, nil
}

// matchLink returns the first link whose file name equals the base name of
// localPath, ignoring case.
func matchLink(links []string, localPath string) string {
	want := filepath.Base(localPath)
	for _, l := range links {
		u, err := url.Parse(l)
		if err != nil {
			continue
		}
		if strings.EqualFold(path.Base(u.Path), want) {
			return l
		}
	}
	return ""
}
