// Package enrich fills in a description for a new character by best-effort
// external lookup. Every provider is fail-soft: network errors, missing
// articles, and bad payloads all collapse to an empty string, never an
// error. Enrichment is always optional; callers proceed with an empty
// description when nothing turns up.
package enrich

import (
	"context"
	"net/http"
	"time"
)

// Provider produces a short description for a name, or empty text.
type Provider interface {
	Describe(ctx context.Context, name string) string
}

// Chain tries providers in order and returns the first non-empty result.
type Chain struct {
	providers []Provider
}

// NewChain builds an ordered-attempt chain.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Describe implements Provider.
func (c *Chain) Describe(ctx context.Context, name string) string {
	for _, p := range c.providers {
		if desc := p.Describe(ctx, name); desc != "" {
			return desc
		}
	}
	return ""
}

// Default returns the standard lookup chain: Wikipedia first, DuckDuckGo
// as fallback.
func Default() *Chain {
	httpc := &http.Client{Timeout: 10 * time.Second}
	return NewChain(
		NewWikipedia("", httpc),
		NewDuckDuckGo("", httpc),
	)
}
