// Web search provider abstraction.
//
// Information Hiding:
// - HTTP transport and endpoint details per provider
// - Primary/secondary provider chaining

package search

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Provider executes a search query against an external source.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Search runs the query and returns up to maxResults hits.
	// Provider-level failures are reported through Data.Status rather
	// than the error return, which is reserved for programming errors.
	Search(ctx context.Context, query string, maxResults int) (Data, error)
}

// ChainProvider tries providers in order, returning the first usable
// result. A provider is usable when it returns OK with at least one hit;
// otherwise the next provider is consulted and the last outcome wins.
type ChainProvider struct {
	providers []Provider
	logger    *zap.Logger
}

// NewChainProvider creates a chain over the given providers.
func NewChainProvider(logger *zap.Logger, providers ...Provider) *ChainProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainProvider{providers: providers, logger: logger}
}

// Name returns the provider name.
func (c *ChainProvider) Name() string {
	return "chain"
}

// Search tries each provider until one yields results.
// When every provider fails with a DNS-style resolution error, the chain
// collapses the failures into a single localized network-restriction message.
func (c *ChainProvider) Search(ctx context.Context, query string, maxResults int) (Data, error) {
	var last Data
	allDNSFailures := len(c.providers) > 0
	for _, p := range c.providers {
		data, err := p.Search(ctx, query, maxResults)
		if err != nil {
			return Data{}, err
		}
		c.logger.Info("search provider result",
			zap.String("provider", p.Name()),
			zap.String("status", data.Status.String()),
			zap.Int("results", len(data.Results)))
		if data.Status == StatusOK && len(data.Results) > 0 {
			return data, nil
		}
		if data.Status != StatusError || !isHostResolutionError(data.ErrorMessage) {
			allDNSFailures = false
		}
		last = data
	}
	if allDNSFailures {
		return Data{
			Status:       StatusError,
			ErrorMessage: "インターネットアクセスが制限されています。現在ウェブ検索機能は利用できません。",
		}, nil
	}
	return last, nil
}

func isHostResolutionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "no address associated with hostname") ||
		strings.Contains(lower, "no such host")
}

var _ Provider = (*ChainProvider)(nil)
