// Google result-page scrape provider - secondary fallback source.
//
// Information Hiding:
// - Result-page markup traversal (x/net/html)
// - Localization query parameters

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// GoogleScrapeProvider scrapes the Google results page. Used sparingly,
// only when the primary provider yields nothing.
type GoogleScrapeProvider struct {
	client  *http.Client
	baseURL string
}

// NewGoogleScrapeProvider creates the provider with the given total timeout.
func NewGoogleScrapeProvider(timeout time.Duration) *GoogleScrapeProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleScrapeProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://www.google.com",
	}
}

// WithBaseURL overrides the endpoint (used by tests).
func (p *GoogleScrapeProvider) WithBaseURL(base string) *GoogleScrapeProvider {
	p.baseURL = base
	return p
}

// Name returns the provider name.
func (p *GoogleScrapeProvider) Name() string {
	return "google_scrape"
}

// Search fetches and parses the results page. Results are localized to
// Japanese and personalization is disabled.
func (p *GoogleScrapeProvider) Search(ctx context.Context, query string, maxResults int) (Data, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&num=%d&hl=ja&gl=JP&pws=0", p.baseURL, url.QueryEscape(query), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Data{Status: StatusError, ErrorMessage: err.Error()}, nil
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.client.Do(req)
	if err != nil {
		return Data{Status: StatusError, ErrorMessage: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Data{Status: StatusError, ErrorMessage: fmt.Sprintf("google status %s", resp.Status)}, nil
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return Data{Status: StatusError, ErrorMessage: err.Error()}, nil
	}

	results := extractGoogleResults(doc, maxResults)
	if len(results) == 0 {
		return Data{Status: StatusNoResults, ErrorMessage: "No search results found"}, nil
	}
	return Data{Status: StatusOK, Results: results}, nil
}

// extractGoogleResults walks result containers (div.g) collecting the
// h3 title, first http(s) link and snippet text.
func extractGoogleResults(doc *html.Node, maxResults int) []Result {
	var results []Result
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "g") {
			if r, ok := parseResultContainer(n); ok {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

func parseResultContainer(n *html.Node) (Result, bool) {
	title := textOfFirst(n, "h3")
	link := firstHTTPLink(n)
	if title == "" || link == "" {
		return Result{}, false
	}
	snippet := snippetText(n)
	if snippet == "" {
		snippet = "No description available"
	}
	if len([]rune(snippet)) > 200 {
		snippet = string([]rune(snippet)[:200]) + "..."
	}
	return Result{Title: title, Snippet: snippet, URL: link}, true
}

// snippetText looks for the known snippet container classes.
func snippetText(n *html.Node) string {
	for _, class := range []string{"VwiC3b", "aCOpRe"} {
		if node := findByClass(n, class); node != nil {
			return strings.TrimSpace(nodeText(node))
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func textOfFirst(n *html.Node, element string) string {
	if n.Type == html.ElementNode && n.Data == element {
		return strings.TrimSpace(nodeText(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if text := textOfFirst(c, element); text != "" {
			return text
		}
	}
	return ""
}

func firstHTTPLink(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key == "href" && strings.HasPrefix(attr.Val, "http") {
				return attr.Val
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if link := firstHTTPLink(c); link != "" {
			return link
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

var _ Provider = (*GoogleScrapeProvider)(nil)
