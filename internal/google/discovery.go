package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	discovery "google.golang.org/api/discovery/v1"
	"google.golang.org/api/googleapi"
)

func baseURL(doc *discovery.RestDescription) string {
	return joinURL(doc.RootUrl, doc.ServicePath)
}

func batchURL(doc *discovery.RestDescription) string {
	return joinURL(doc.RootUrl, doc.BatchPath)
}

func joinURL(root, path string) string {
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root + strings.TrimPrefix(path, "/")
}

// fetchDiscovery loads a discovery document from a configured URL. The
// URLs are caller-supplied, so the document is fetched directly rather than
// looked up by name and version through the Discovery service.
func fetchDiscovery(ctx context.Context, client *http.Client, docURL string) (*discovery.RestDescription, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document %s: %w", docURL, err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document %s: %w", docURL, err)
	}

	var doc discovery.RestDescription
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid discovery document %s: %w", docURL, err)
	}
	if doc.RootUrl == "" || doc.ServicePath == "" {
		return nil, fmt.Errorf("discovery document %s has no rootUrl or servicePath", docURL)
	}
	return &doc, nil
}

// resolveCalendarDoc fetches every document and returns the calendar one
func resolveCalendarDoc(ctx context.Context, client *http.Client, docURLs []string) (*discovery.RestDescription, error) {
	var found *discovery.RestDescription
	for _, docURL := range docURLs {
		doc, err := fetchDiscovery(ctx, client, docURL)
		if err != nil {
			return nil, err
		}
		if doc.Name == "calendar" && found == nil {
			found = doc
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no calendar API among %d discovery documents", len(docURLs))
	}
	if found.BatchPath == "" {
		found.BatchPath = "batch/" + found.Name + "/" + found.Version
	}
	return found, nil
}
