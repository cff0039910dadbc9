package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

const maxPageBytes = 2 << 20 // 2 MiB per page is plenty for text extraction

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

// PageScraper fetches a URL over plain HTTP and strips markup down to text.
type PageScraper struct {
	Client *http.Client
}

func NewPageScraper() *PageScraper {
	return &PageScraper{Client: &http.Client{}}
}

func (s *PageScraper) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; agenai-research/1.0)")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed for %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch for %s returned status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}

	text := stripHTML(string(body))
	if text == "" {
		return "", fmt.Errorf("no text content at %s", pageURL)
	}
	return text, nil
}

func stripHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, "\n")
	text = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'").Replace(text)
	text = spaceRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return blankRe.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
}

// OCRScraper extracts PDF contents through the Mistral OCR API and delegates
// everything else to an inner scraper.
type OCRScraper struct {
	APIKey   string
	Client   *http.Client
	Fallback Scraper
}

func NewOCRScraper(apiKey string, fallback Scraper) *OCRScraper {
	return &OCRScraper{APIKey: apiKey, Client: &http.Client{}, Fallback: fallback}
}

func (s *OCRScraper) Fetch(ctx context.Context, pageURL string) (string, error) {
	if s.APIKey == "" || !looksLikePDF(pageURL) {
		return s.Fallback.Fetch(ctx, pageURL)
	}

	pageURL = strings.Replace(pageURL, "http://", "https://", 1)
	reqBody, err := json.Marshal(map[string]interface{}{
		"model": "mistral-ocr-latest",
		"document": map[string]string{
			"type":         "document_url",
			"document_url": pageURL,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.mistral.ai/v1/ocr", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read OCR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Pages []struct {
			Index    int    `json:"index"`
			Markdown string `json:"markdown"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}

	var sb strings.Builder
	for _, page := range parsed.Pages {
		sb.WriteString(page.Markdown)
		sb.WriteString("\n\n")
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("OCR returned no pages for %s", pageURL)
	}
	return text, nil
}

func looksLikePDF(pageURL string) bool {
	lower := strings.ToLower(pageURL)
	return strings.HasSuffix(lower, ".pdf") || strings.Contains(lower, "arxiv.org/pdf/")
}
