// fetch/link_finder.go
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gewnthar/fareprice/utils"
)

var datasetExtensions = []string{".xlsx", ".xlsm", ".csv"}

// FindDatasetLinks scrapes pageURL and returns the absolute URLs of anchors
// matching selector whose path ends in a spreadsheet extension, in page
// order without duplicates.
func FindDatasetLinks(ctx context.Context, client *http.Client, pageURL, selector string) ([]string, error) {
	if selector == "" {
		selector = "a[href]"
	}
	slog.Info("Looking for dataset links.", "page", pageURL, "selector", selector)

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %s: %w", pageURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get URL %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get URL %s: status code %d", pageURL, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			slog.Debug("Skipping unparsable href.", "href", href, "error", err)
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if !isDatasetPath(abs.Path) {
			return
		}
		link := abs.String()
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	slog.Info("Dataset links found.", "page", pageURL, "count", len(links))
	return links, nil
}

func isDatasetPath(p string) bool {
	ext := utils.FoldLabel(path.Ext(p))
	for _, e := range datasetExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
