// Package inference speaks the KoboldCpp-compatible generation protocol:
// an HTTP POST of {prompt, max_new_tokens, stop_sequence} answered by
// {results: [{text: ...}]}.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the generation endpoint of a locally running backend.
const DefaultEndpoint = "http://localhost:5001/api/v1/generate"

// DefaultTimeout bounds the full request round-trip.
const DefaultTimeout = 60 * time.Second

const (
	// DefaultMaxNewTokens caps the generated continuation length.
	DefaultMaxNewTokens = 200

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 1 << 20
)

// DefaultStopSequences halts generation when the backend would start
// speaking for the user.
func DefaultStopSequences() []string {
	return []string{"You:"}
}

// Options configures a single generation request.
type Options struct {
	MaxNewTokens  int
	StopSequences []string
}

// withDefaults fills unset option fields.
func (o Options) withDefaults() Options {
	if o.MaxNewTokens <= 0 {
		o.MaxNewTokens = DefaultMaxNewTokens
	}
	if o.StopSequences == nil {
		o.StopSequences = DefaultStopSequences()
	}
	return o
}

// generateRequest is the wire format of the generation endpoint.
type generateRequest struct {
	Prompt       string   `json:"prompt"`
	MaxNewTokens int      `json:"max_new_tokens"`
	StopSequence []string `json:"stop_sequence"`
}

// generateResponse is the expected response shape. Only results[0].text
// is consumed.
type generateResponse struct {
	Results []struct {
		Text string `json:"text"`
	} `json:"results"`
}

// Client sends prompts to the generation backend.
//
// Generate never returns an error: every failure mode resolves to a
// human-readable placeholder string so a failed generation cannot crash
// the session or lose the already-recorded user turn. Retry policy, if
// any, belongs to the caller.
type Client struct {
	endpoint string
	httpc    *http.Client
}

// New creates a client for the given endpoint. An empty endpoint selects
// DefaultEndpoint; a zero timeout selects DefaultTimeout.
func New(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the configured generation endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Generate sends the prompt to the backend and returns the first result's
// text with surrounding whitespace trimmed. On any failure (connection
// refused, timeout, non-2xx status, malformed body, missing field) it
// returns a placeholder embedding the cause instead of an error.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) string {
	opts = opts.withDefaults()

	body, err := json.Marshal(generateRequest{
		Prompt:       prompt,
		MaxNewTokens: opts.MaxNewTokens,
		StopSequence: opts.StopSequences,
	})
	if err != nil {
		return failure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(fmt.Errorf("unexpected status %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failure(err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return failure(fmt.Errorf("malformed response body: %v", err))
	}
	if len(parsed.Results) == 0 {
		return failure(fmt.Errorf("response contains no results"))
	}

	return strings.TrimSpace(parsed.Results[0].Text)
}

// failure renders an error as the placeholder reply recorded in place of
// generated text.
func failure(err error) string {
	return fmt.Sprintf("[Error contacting generation backend: %v]", err)
}
