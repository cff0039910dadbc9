package providers

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ArxivRetriever searches the arXiv Atom API.
type ArxivRetriever struct {
	Client *http.Client
}

func NewArxivRetriever() *ArxivRetriever {
	return &ArxivRetriever{Client: &http.Client{}}
}

func (a *ArxivRetriever) Name() string { return "arxiv" }

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

type arxivEntry struct {
	Title   string      `xml:"title"`
	Summary string      `xml:"summary"`
	ID      string      `xml:"id"`
	Link    []arxivLink `xml:"link"`
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []arxivEntry `xml:"entry"`
}

func (a *ArxivRetriever) Search(ctx context.Context, query string, maxResults int) ([]Source, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Add("search_query", query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")
	apiURL := "https://export.arxiv.org/api/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build arxiv request: %w", err)
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read arxiv response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned status %d: %s", resp.StatusCode, string(body))
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arxiv feed: %w", err)
	}

	sources := make([]Source, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		link := entry.ID
		for _, l := range entry.Link {
			if l.Type == "application/pdf" {
				link = l.Href
				break
			}
		}
		if link == "" {
			continue
		}
		sources = append(sources, Source{
			URL:     link,
			Title:   strings.TrimSpace(entry.Title),
			Snippet: strings.TrimSpace(entry.Summary),
		})
	}
	return sources, nil
}
