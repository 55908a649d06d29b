// DuckDuckGo Instant Answer provider - no API key required.
//
// Information Hiding:
// - Instant Answer API endpoint and response shape
// - Abstract/related-topic extraction into the Result model

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DuckDuckGoProvider queries the DuckDuckGo Instant Answer API.
type DuckDuckGoProvider struct {
	client  *http.Client
	baseURL string
}

// NewDuckDuckGoProvider creates the provider with the given total timeout.
func NewDuckDuckGoProvider(timeout time.Duration) *DuckDuckGoProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DuckDuckGoProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://api.duckduckgo.com",
	}
}

// WithBaseURL overrides the API endpoint (used by tests).
func (p *DuckDuckGoProvider) WithBaseURL(base string) *DuckDuckGoProvider {
	p.baseURL = base
	return p
}

// Name returns the provider name.
func (p *DuckDuckGoProvider) Name() string {
	return "duckduckgo"
}

// instantAnswer mirrors the fields we consume from the API response.
type instantAnswer struct {
	Heading       string `json:"Heading"`
	Abstract      string `json:"Abstract"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// Search performs the instant-answer lookup.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) (Data, error) {
	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1", p.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Data{Status: StatusError, ErrorMessage: err.Error()}, nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return Data{Status: StatusError, ErrorMessage: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Data{Status: StatusError, ErrorMessage: fmt.Sprintf("duckduckgo status %s", resp.Status)}, nil
	}
	if ctype := resp.Header.Get("Content-Type"); !strings.Contains(strings.ToLower(ctype), "json") {
		return Data{Status: StatusError, ErrorMessage: fmt.Sprintf("DuckDuckGo unexpected content-type: %s", ctype)}, nil
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return Data{Status: StatusError, ErrorMessage: err.Error()}, nil
	}

	var results []Result
	if answer.Abstract != "" {
		title := answer.Heading
		if title == "" {
			title = "DuckDuckGo Answer"
		}
		link := answer.AbstractURL
		if link == "" {
			link = "https://duckduckgo.com"
		}
		results = append(results, Result{Title: title, Snippet: answer.Abstract, URL: link})
	}
	for _, topic := range answer.RelatedTopics {
		if len(results) >= maxResults {
			break
		}
		if topic.Text == "" {
			continue
		}
		results = append(results, Result{
			Title:   topicTitle(topic.FirstURL),
			Snippet: topic.Text,
			URL:     topicURL(topic.FirstURL),
		})
	}

	if len(results) == 0 {
		return Data{Status: StatusNoResults, ErrorMessage: "No results found from DuckDuckGo"}, nil
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return Data{Status: StatusOK, Results: results}, nil
}

// topicTitle derives a readable title from a related-topic URL.
func topicTitle(firstURL string) string {
	parts := strings.Split(firstURL, "/")
	last := parts[len(parts)-1]
	title := strings.ReplaceAll(last, "_", " ")
	if title == "" {
		return "Related Topic"
	}
	return title
}

func topicURL(firstURL string) string {
	if firstURL == "" {
		return "https://duckduckgo.com"
	}
	return firstURL
}

var _ Provider = (*DuckDuckGoProvider)(nil)
