package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the full runtime configuration for the research service.
// Every knob is driven by environment variables so server and CLI share
// one loading path.
type Config struct {
	// Providers
	GoogleApiKey  string
	TavilyApiKey  string
	MistralApiKey string
	SmartModel    string
	FastModel     string

	EmbeddingModel     string
	EmbeddingDimension int

	// Service
	Port        string
	DatabaseURL string

	// Pipeline bounds
	MaxSubtopics      int
	MaxIterations     int // sub-queries generated per research pass
	MaxSearchResults  int // per retriever, per sub-query
	MaxRevisions      int // review/revise ceiling per draft
	MaxScrapeWorkers  int
	MaxContextLength  int // characters before the context gets condensed
	FollowGuidelines  bool
	EnableHumanReview bool

	// Report formatting, threaded unchanged through every assembler call
	TotalWords    int
	CitationStyle string
	Language      string

	// Context manager policy
	ContextTopK         int
	SimilarityThreshold float64
	ChunkSize           int
	ChunkOverlap        int

	// Session
	AuthTimeout     time.Duration
	FeedbackTimeout time.Duration
}

func Load() *Config {
	return &Config{
		GoogleApiKey:  getEnv("GOOGLE_API_KEY", ""),
		TavilyApiKey:  getEnv("TAVILY_API_KEY", ""),
		MistralApiKey: getEnv("MISTRAL_API_KEY", ""),
		SmartModel:    getEnv("SMART_MODEL", "gemini-3-pro-preview"),
		FastModel:     getEnv("FAST_MODEL", "gemini-3-flash-preview"),

		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),

		Port:        getEnv("PORT", "8000"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		MaxSubtopics:      getEnvAsInt("MAX_SUBTOPICS", 5),
		MaxIterations:     getEnvAsInt("MAX_ITERATIONS", 3),
		MaxSearchResults:  getEnvAsInt("MAX_SEARCH_RESULTS", 5),
		MaxRevisions:      getEnvAsInt("MAX_REVISIONS", 3),
		MaxScrapeWorkers:  getEnvAsInt("MAX_SCRAPE_WORKERS", 4),
		MaxContextLength:  getEnvAsInt("MAX_CONTEXT_LENGTH", 40000),
		FollowGuidelines:  getEnvAsBool("FOLLOW_GUIDELINES", false),
		EnableHumanReview: getEnvAsBool("ENABLE_HUMAN_REVIEW", false),

		TotalWords:    getEnvAsInt("TOTAL_WORDS", 1200),
		CitationStyle: getEnv("CITATION_STYLE", "APA"),
		Language:      getEnv("LANGUAGE", "english"),

		ContextTopK:         getEnvAsInt("CONTEXT_TOP_K", 10),
		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.42),
		ChunkSize:           getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:        getEnvAsInt("CHUNK_OVERLAP", 200),

		AuthTimeout:     getEnvAsDuration("AUTH_TIMEOUT", 30*time.Second),
		FeedbackTimeout: getEnvAsDuration("FEEDBACK_TIMEOUT", 120*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
