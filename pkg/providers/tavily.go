package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// TavilyRetriever searches the web through the Tavily REST API.
type TavilyRetriever struct {
	APIKey string
	Client *http.Client
}

func NewTavilyRetriever(apiKey string) *TavilyRetriever {
	return &TavilyRetriever{APIKey: apiKey, Client: &http.Client{}}
}

func (t *TavilyRetriever) Name() string { return "tavily" }

func (t *TavilyRetriever) Search(ctx context.Context, query string, maxResults int) ([]Source, error) {
	if t.APIKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY is not set")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"api_key":     t.APIKey,
		"query":       query,
		"max_results": maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.tavily.com/search", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tavily response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Results []struct {
			URL     string `json:"url"`
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tavily response: %w", err)
	}

	sources := make([]Source, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		sources = append(sources, Source{URL: r.URL, Title: r.Title, Snippet: r.Content})
	}
	return sources, nil
}
