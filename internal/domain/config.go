package domain

import "time"

// KeyPrefix namespaces every key the service writes to the store.
const KeyPrefix = "voxmap:"

// PipelineConfig holds the tunables of the live ingestion pipeline.
type PipelineConfig struct {
	// Segmentation
	HardCapWords      int
	SoftMinWords      int
	InterimFlushWords int

	// Batching
	Debounce     time.Duration
	MaxBatchSize int

	// Gate
	MinConfidence float64

	// Session readiness
	ReadyTimeout time.Duration
}

// DefaultPipelineConfig returns the defaults tuned for conversational speech.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		HardCapWords:      5,
		SoftMinWords:      1,
		InterimFlushWords: 3,
		Debounce:          150 * time.Millisecond,
		MaxBatchSize:      8,
		MinConfidence:     0.4,
		ReadyTimeout:      5 * time.Second,
	}
}

// CacheConfig holds classification cache settings.
type CacheConfig struct {
	TTL                 time.Duration
	SimilarityThreshold float64
	RecentWindow        int
}

// DefaultCacheConfig returns the default classification cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:                 24 * time.Hour,
		SimilarityThreshold: 0.85,
		RecentWindow:        50,
	}
}
