package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// wikipediaBaseURL is the REST v1 page-summary API.
const wikipediaBaseURL = "https://en.wikipedia.org/api/rest_v1/page/summary"

// Wikipedia looks up the lead-section summary of the article matching the
// character name.
type Wikipedia struct {
	baseURL string
	httpc   *http.Client
}

// NewWikipedia creates a provider. An empty baseURL selects the public
// English Wikipedia endpoint.
func NewWikipedia(baseURL string, httpc *http.Client) *Wikipedia {
	if baseURL == "" {
		baseURL = wikipediaBaseURL
	}
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Wikipedia{baseURL: baseURL, httpc: httpc}
}

// Describe implements Provider. Failures of any kind return empty text.
func (w *Wikipedia) Describe(ctx context.Context, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	endpoint := w.baseURL + "/" + url.PathEscape(strings.ReplaceAll(name, " ", "_"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpc.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBytes))
	if err != nil {
		return ""
	}

	var payload struct {
		Extract string `json:"extract"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return firstSentences(strings.TrimSpace(payload.Extract), 2)
}

// maxLookupBytes bounds lookup response bodies.
const maxLookupBytes = 1 << 20

// firstSentences truncates text to at most n sentences, matching the
// short blurb the character editor expects.
func firstSentences(text string, n int) string {
	if text == "" || n <= 0 {
		return ""
	}
	count := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Sentence boundary: terminator followed by space or end of text.
		if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
			count++
			if count == n {
				return text[:i+1]
			}
		}
	}
	return text
}
