package voxmap

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "memory"
	addrs    []string
	password string

	apiKey   string
	baseURL  string
	model    string
	research bool

	pipeline Pipeline
	logger   *zap.Logger
}

// Pipeline tunes segmentation, batching and the node gate.
// Zero fields keep their defaults.
type Pipeline struct {
	HardCapWords      int
	SoftMinWords      int
	InterimFlushWords int
	Debounce          time.Duration
	MaxBatchSize      int
	MinConfidence     float64
	ReadyTimeout      time.Duration
}

// WithValkey stores maps in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores maps in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps maps in process memory. Nothing survives Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
		c.password = ""
	})
}

// WithOpenAI enables the remote classifier on an OpenAI-compatible API.
// An empty model uses gpt-4o-mini. Without it every phrase takes the local fallback.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
		c.model = model
	})
}

// WithBaseURL points the OpenAI client at a compatible endpoint.
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = url
	})
}

// WithResearch enables background topic research for new nodes. Requires WithOpenAI.
func WithResearch() Option {
	return optionFunc(func(c *clientConfig) {
		c.research = true
	})
}

// WithPipeline overrides the pipeline tunables.
func WithPipeline(p Pipeline) Option {
	return optionFunc(func(c *clientConfig) {
		c.pipeline = p
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
