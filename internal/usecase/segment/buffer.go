// Package segment turns the stream of speech-recognition fragments into phrases.
package segment

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/textnorm"
)

// Trigger names the boundary rule that emitted a phrase.
type Trigger string

// Flush triggers.
const (
	TriggerNone        Trigger = ""
	TriggerHardCap     Trigger = "hard_cap"
	TriggerPunctuation Trigger = "punctuation"
	TriggerInterim     Trigger = "interim"
	TriggerDrain       Trigger = "drain"
)

// boundary runes end a sentence or a clause.
const boundary = ".!?,;:"

// ShouldFlush reports whether the buffered text is a complete phrase.
// The hard cap wins over punctuation when both hold.
func ShouldFlush(text string, hardCapWords, softMinWords int) Trigger {
	text = strings.TrimSpace(text)
	words := textnorm.WordCount(text)
	if words == 0 {
		return TriggerNone
	}
	if hardCapWords > 0 && words >= hardCapWords {
		return TriggerHardCap
	}
	if words >= softMinWords {
		last, _ := utf8.DecodeLastRuneInString(text)
		if strings.ContainsRune(boundary, last) {
			return TriggerPunctuation
		}
	}
	return TriggerNone
}

// Buffer accumulates final fragments of one session. Calls are serialized by
// an internal lock, so a final fragment's flush check always completes before
// a later interim fragment is looked at.
type Buffer struct {
	mu  sync.Mutex
	cfg domain.PipelineConfig
	buf []string
	// emitted holds the normalized words of the current utterance that an
	// interim flush already sent downstream.
	emitted []string
}

// NewBuffer creates an empty segmentation buffer.
func NewBuffer(cfg domain.PipelineConfig) *Buffer {
	def := domain.DefaultPipelineConfig()
	if cfg.HardCapWords <= 0 {
		cfg.HardCapWords = def.HardCapWords
	}
	if cfg.SoftMinWords <= 0 {
		cfg.SoftMinWords = def.SoftMinWords
	}
	if cfg.InterimFlushWords <= 0 {
		cfg.InterimFlushWords = def.InterimFlushWords
	}
	return &Buffer{cfg: cfg}
}

// AppendFinal adds a final fragment. When the buffer reaches a boundary the
// whole buffer is returned as one phrase and cleared.
func (b *Buffer) AppendFinal(fragment string) (string, Trigger) {
	words := strings.Fields(fragment)

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.emitted) > 0 && hasNormalizedPrefix(words, b.emitted) {
		words = words[len(b.emitted):]
	}
	b.emitted = nil

	if len(words) == 0 {
		return "", TriggerNone
	}
	b.buf = append(b.buf, words...)

	text := strings.Join(b.buf, " ")
	trigger := ShouldFlush(text, b.cfg.HardCapWords, b.cfg.SoftMinWords)
	if trigger == TriggerNone {
		return "", TriggerNone
	}
	b.buf = nil
	return text, trigger
}

// ObserveInterim looks at an in-progress fragment. Once it carries at least
// InterimFlushWords words that were not emitted yet, the pending buffer plus
// those words are returned as an early phrase. Words emitted this way are
// skipped when the matching final fragment arrives.
func (b *Buffer) ObserveInterim(fragment string) (string, Trigger) {
	words := strings.Fields(fragment)

	b.mu.Lock()
	defer b.mu.Unlock()

	// The recognizer revised earlier words: start over for this utterance.
	if len(b.emitted) > 0 && !hasNormalizedPrefix(words, b.emitted) {
		b.emitted = nil
	}

	fresh := words[len(b.emitted):]
	if len(fresh) < b.cfg.InterimFlushWords {
		return "", TriggerNone
	}

	parts := append(append([]string{}, b.buf...), fresh...)
	b.buf = nil
	b.emitted = normalizeWords(words)
	return strings.Join(parts, " "), TriggerInterim
}

// Drain returns whatever is buffered and clears the buffer.
func (b *Buffer) Drain() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitted = nil
	if len(b.buf) == 0 {
		return "", false
	}
	text := strings.Join(b.buf, " ")
	b.buf = nil
	return text, true
}

// Pending returns the buffered text without clearing it.
func (b *Buffer) Pending() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.buf, " ")
}

func normalizeWords(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = textnorm.Normalize(w)
	}
	return out
}

func hasNormalizedPrefix(words, prefix []string) bool {
	if len(words) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if textnorm.Normalize(words[i]) != p {
			return false
		}
	}
	return true
}
