package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// duckduckgoBaseURL is the Instant Answer API.
const duckduckgoBaseURL = "https://api.duckduckgo.com/"

// DuckDuckGo looks up the abstract text of the top instant answer.
type DuckDuckGo struct {
	baseURL string
	httpc   *http.Client
}

// NewDuckDuckGo creates a provider. An empty baseURL selects the public
// Instant Answer endpoint.
func NewDuckDuckGo(baseURL string, httpc *http.Client) *DuckDuckGo {
	if baseURL == "" {
		baseURL = duckduckgoBaseURL
	}
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &DuckDuckGo{baseURL: baseURL, httpc: httpc}
}

// Describe implements Provider. Failures of any kind return empty text.
func (d *DuckDuckGo) Describe(ctx context.Context, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	query := url.Values{
		"q":             {name},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return ""
	}

	resp, err := d.httpc.Do(req)
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
		AbstractText string `json:"AbstractText"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.AbstractText)
}
