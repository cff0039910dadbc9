package research

import (
	"strings"
	"sync"
	"testing"
)

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"Valid minimal", Query{Text: "solar tariffs"}, false},
		{"Empty text", Query{Text: "  "}, true},
		{"Bad report type", Query{Text: "x", ReportType: "pdf_report"}, true},
		{"Static without URLs", Query{Text: "x", SourceMode: SourceModeStatic}, true},
		{"Static with URLs", Query{Text: "x", SourceMode: SourceModeStatic, SourceURLs: []string{"https://example.com"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.query.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQueryClone(t *testing.T) {
	parent := Query{
		Text:       "main",
		ReportType: ReportTypeDetailed,
		Tone:       "analytical",
		SourceURLs: []string{"https://a.example"},
	}
	child := parent.Clone("subtopic")

	if child.Text != "subtopic" || child.Tone != "analytical" || child.ReportType != ReportTypeDetailed {
		t.Errorf("Clone did not inherit fields: %+v", child)
	}
	child.SourceURLs[0] = "mutated"
	if parent.SourceURLs[0] != "https://a.example" {
		t.Error("Clone shares the SourceURLs backing array with its parent")
	}
}

func TestVisitedURLSetConcurrentAdd(t *testing.T) {
	visited := NewVisitedURLSet()
	const workers = 16
	const url = "https://example.com/page"

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if visited.Add(url) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Add granted the same URL to %d workers, want 1", wins)
	}
	if visited.Len() != 1 {
		t.Errorf("Len() = %d, want 1", visited.Len())
	}
}

func TestResearchContextJoin(t *testing.T) {
	rc := &ResearchContext{}
	rc.Append(Fragment{Content: "alpha", SourceURL: "https://a.example"})
	rc.Append(Fragment{Content: "beta"})
	rc.Append(Fragment{SourceURL: "https://b.example"}) // URL-only, left by condensation

	joined := rc.Join()
	if !strings.Contains(joined, "alpha") || !strings.Contains(joined, "beta") {
		t.Errorf("Join() missing content: %q", joined)
	}
	if strings.Contains(joined, "b.example") {
		t.Errorf("Join() leaked a content-less fragment: %q", joined)
	}

	urls := rc.SourceURLs()
	want := []string{"https://a.example", "https://b.example"}
	if len(urls) != len(want) || urls[0] != want[0] || urls[1] != want[1] {
		t.Errorf("SourceURLs() = %v, want %v", urls, want)
	}
}

func TestCostTracker(t *testing.T) {
	cost := &CostTracker{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cost.Add(0.5)
		}()
	}
	wg.Wait()
	if got := cost.Total(); got != 5.0 {
		t.Errorf("Total() = %f, want 5.0", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("Add(-1) did not panic")
		}
	}()
	cost.Add(-1)
}

func TestEstimateCost(t *testing.T) {
	// 4000 chars = 1000 tokens = $0.005
	got := EstimateCost(strings.Repeat("a", 2000), strings.Repeat("b", 2000))
	if got != 0.005 {
		t.Errorf("EstimateCost = %f, want 0.005", got)
	}
}
