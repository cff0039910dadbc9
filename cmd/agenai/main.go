package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/SlyyCooper/agenai/pkg/config"
	"github.com/SlyyCooper/agenai/pkg/contextmgr"
	"github.com/SlyyCooper/agenai/pkg/providers"
	"github.com/SlyyCooper/agenai/pkg/research"
	"github.com/SlyyCooper/agenai/pkg/store"
	"github.com/SlyyCooper/agenai/pkg/workflow"
)

var (
	queryText  string
	reportType string
	tone       string
	sourceURLs []string
	outputPath string
)

func main() {
	handler := slog.NewTextHandler(os.Stderr, nil)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	rootCmd := &cobra.Command{
		Use:   "agenai",
		Short: "A terminal-based research report generator",
		Long:  `agenai decomposes a research question into sub-topics, researches them in parallel and assembles a reviewed markdown report.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("query") {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Enter research question: ")
				input, _ := reader.ReadString('\n')
				queryText = strings.TrimSpace(input)
			}
			if queryText == "" {
				slog.Error("Query cannot be empty")
				os.Exit(1)
			}

			cfg := config.Load()
			ctx := context.Background()

			rt, err := research.ParseReportType(reportType)
			if err != nil {
				slog.Error("Invalid report type", "error", err)
				os.Exit(1)
			}
			query := research.Query{
				Text:       queryText,
				ReportType: rt,
				Tone:       tone,
				SourceURLs: sourceURLs,
			}
			if len(sourceURLs) > 0 {
				query.SourceMode = research.SourceModeStatic
			}

			model, err := providers.NewGoogleModel(ctx, cfg.GoogleApiKey, cfg.SmartModel)
			if err != nil {
				slog.Error("Failed to init model provider", "error", err)
				os.Exit(1)
			}

			retrievers := []providers.Retriever{providers.NewArxivRetriever()}
			if cfg.TavilyApiKey != "" {
				retrievers = append(retrievers, providers.NewTavilyRetriever(cfg.TavilyApiKey))
			}

			var scraper providers.Scraper = providers.NewPageScraper()
			if cfg.MistralApiKey != "" {
				scraper = providers.NewOCRScraper(cfg.MistralApiKey, scraper)
			}

			mem := store.NewMemoryPublisher()
			factory := &workflow.Factory{
				Config:     cfg,
				Model:      model,
				Retrievers: retrievers,
				Scraper:    scraper,
				Publisher:  mem,
				Billing:    mem,
				Logger:     logger,
			}
			if embedder, err := contextmgr.NewGoogleEmbedder(ctx, cfg.GoogleApiKey, cfg.EmbeddingModel, cfg.EmbeddingDimension); err == nil {
				factory.Embedder = embedder
			} else {
				logger.Warn("embedder unavailable, drafting without overlap dedup", "error", err)
			}

			slog.Info("Starting research", "query", queryText, "report_type", string(rt))

			doc, err := factory.Run(ctx, query, "cli", &consoleSink{}, logger)
			if err != nil {
				slog.Error("Research run failed", "error", err)
				os.Exit(1)
			}

			markdown := doc.Markdown()
			if outputPath != "" {
				if err := os.WriteFile(outputPath, []byte(markdown), 0o644); err != nil {
					slog.Error("Failed to write report", "path", outputPath, "error", err)
					os.Exit(1)
				}
				slog.Info("Report written", "path", outputPath, "cost", doc.TotalCost)
			} else {
				fmt.Println(markdown)
			}
		},
	}

	rootCmd.Flags().StringVarP(&queryText, "query", "q", "", "The research question")
	rootCmd.Flags().StringVarP(&reportType, "report-type", "r", "", "Report type: research_report, detailed_report, outline_report")
	rootCmd.Flags().StringVar(&tone, "tone", "", "Writing tone, e.g. objective, analytical")
	rootCmd.Flags().StringSliceVar(&sourceURLs, "source", nil, "Restrict research to these URLs (repeatable)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report to this file instead of stdout")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

// consoleSink reports progress on stderr and streams drafts to it live.
// Human feedback comes from stdin.
type consoleSink struct{}

func (consoleSink) Emit(ev workflow.Event) {
	switch ev.Type {
	case workflow.EventError:
		fmt.Fprintf(os.Stderr, "[error] %s: %s\n", ev.Content, ev.Output)
	case workflow.EventReport:
		fmt.Fprintln(os.Stderr, "[done] report ready")
	case workflow.EventLogs:
		if ev.Content != "streaming_output" && ev.Output != "" {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Content, ev.Output)
		}
	}
}

func (consoleSink) StreamToken(token string) {
	fmt.Fprint(os.Stderr, token)
}

func (consoleSink) AwaitFeedback(ctx context.Context, timeout time.Duration) string {
	fmt.Fprint(os.Stderr, "\nReview the plan above. Press enter to accept, or type feedback: ")
	lines := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		lines <- strings.TrimSpace(input)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case fb := <-lines:
		return fb
	case <-timer.C:
		fmt.Fprintln(os.Stderr, "\nNo feedback, continuing.")
		return ""
	case <-ctx.Done():
		return ""
	}
}
