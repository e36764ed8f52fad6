package chunking

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"ragmill/src/rag"
)

// ErrInvalidOptions marks a rejected chunking configuration, so callers
// can tell bad input apart from infrastructure failures.
var ErrInvalidOptions = errors.New("invalid chunking options")

const (
	StrategyRecursive = "recursive"
	StrategyParagraph = "paragraph"
	StrategySentence  = "sentence"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMaxChars     = 500
	DefaultMaxSentences = 5
)

// Options selects a chunking strategy and its parameters. Zero values
// fall back to the package defaults.
type Options struct {
	Strategy     string
	ChunkSize    int // recursive: target chunk size in characters
	ChunkOverlap int // recursive: shared characters between consecutive chunks
	MaxChars     int // paragraph: upper bound per chunk
	MaxSentences int // sentence: sentences per chunk
}

// Chunker splits documents into retrievable chunks. Chunking is a pure
// function of the input documents and options: same input, same output.
type Chunker struct {
	opts Options
}

func New(opts Options) (*Chunker, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyRecursive
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap == 0 && opts.Strategy == StrategyRecursive {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.MaxChars == 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.MaxSentences == 0 {
		opts.MaxSentences = DefaultMaxSentences
	}

	switch opts.Strategy {
	case StrategyRecursive, StrategyParagraph, StrategySentence:
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidOptions, opts.Strategy)
	}
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidOptions, opts.ChunkSize)
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must satisfy 0 <= overlap < size, got %d", ErrInvalidOptions, opts.ChunkOverlap)
	}
	if opts.MaxChars <= 0 {
		return nil, fmt.Errorf("%w: max chars must be positive, got %d", ErrInvalidOptions, opts.MaxChars)
	}
	if opts.MaxSentences <= 0 {
		return nil, fmt.Errorf("%w: max sentences must be positive, got %d", ErrInvalidOptions, opts.MaxSentences)
	}

	return &Chunker{opts: opts}, nil
}

func (c *Chunker) Options() Options {
	return c.opts
}

// ChunkDocuments splits every document under the configured strategy.
// Documents with empty text yield no chunks.
func (c *Chunker) ChunkDocuments(docs []rag.Document) []rag.Chunk {
	var chunks []rag.Chunk
	for _, doc := range docs {
		var parts []string
		switch c.opts.Strategy {
		case StrategyParagraph:
			parts = splitByParagraph(doc.Text, c.opts.MaxChars)
		case StrategySentence:
			parts = splitBySentences(doc.Text, c.opts.MaxSentences)
		default:
			parts = splitRecursive(doc.Text, c.opts.ChunkSize, c.opts.ChunkOverlap)
		}

		for i, part := range parts {
			chunks = append(chunks, rag.Chunk{
				ID:         fmt.Sprintf("%s:%s:%d", doc.ID, c.opts.Strategy, i),
				DocumentID: doc.ID,
				Index:      i,
				Strategy:   c.opts.Strategy,
				Text:       part,
				Metadata:   chunkMetadata(doc, c.opts.Strategy, i),
			})
		}
	}
	return chunks
}

// ComputeStats summarizes a chunk set for pipeline statistics.
func ComputeStats(chunks []rag.Chunk) rag.ChunkingStats {
	stats := rag.ChunkingStats{Count: len(chunks)}
	for _, c := range chunks {
		stats.TotalCharacters += len(c.Text)
	}
	if stats.Count > 0 {
		stats.AverageChunkSize = float64(stats.TotalCharacters) / float64(stats.Count)
	}
	return stats
}

func chunkMetadata(doc rag.Document, strategy string, index int) map[string]string {
	md := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		md[k] = v
	}
	md["strategy"] = strategy
	md["chunk_index"] = fmt.Sprintf("%d", index)
	return md
}

// splitRecursive scans the text with a window of size characters and cuts
// at the best natural boundary inside the window: paragraph separator
// first, then sentence end, then word boundary, hard cut as a last
// resort. The next window starts overlap characters before the cut, so
// consecutive chunks always share exactly overlap characters.
func splitRecursive(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var parts []string
	start := 0
	for {
		if len(text)-start <= size {
			parts = append(parts, text[start:])
			return parts
		}
		cut := findBreak(text, start+overlap, start+size)
		parts = append(parts, text[start:cut])
		start = cut - overlap
		// The overlap is counted in bytes, so the window may open
		// inside a multi-byte rune; advance to the next rune start.
		for start < cut && !utf8.RuneStart(text[start]) {
			start++
		}
	}
}

// findBreak picks a cut position in (lo, hi]. Candidates below lo are
// rejected so the scan always advances past the previous chunk start.
func findBreak(text string, lo, hi int) int {
	window := text[lo:hi]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return lo + i + 2
	}
	if i := lastSentenceEnd(window); i >= 0 {
		return lo + i
	}
	if i := strings.LastIndexByte(window, ' '); i >= 0 {
		return lo + i + 1
	}
	// Hard cut; back up so a multi-byte rune is never split.
	for hi > lo+1 && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return hi
}

// lastSentenceEnd returns the position just after the last terminal
// punctuation mark that ends a sentence in s, or -1.
func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\n' {
				return i + 1
			}
		}
	}
	return -1
}

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// splitByParagraph emits one chunk per paragraph. Paragraphs longer than
// maxChars are re-split at sentence boundaries; a single sentence longer
// than maxChars is emitted whole rather than truncated.
func splitByParagraph(text string, maxChars int) []string {
	var parts []string
	for _, para := range paragraphSep.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChars {
			parts = append(parts, para)
			continue
		}
		parts = append(parts, groupSentences(splitSentences(para), maxChars)...)
	}
	return parts
}

// groupSentences packs sentences into chunks of at most maxChars,
// keeping oversized sentences intact.
func groupSentences(sentences []string, maxChars int) []string {
	var (
		parts   []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}
	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+1+len(s) > maxChars {
			flush()
		}
		if current.Len() == 0 && len(s) > maxChars {
			parts = append(parts, s)
			continue
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	flush()
	return parts
}

// splitBySentences groups sentences into chunks of maxSentences each; the
// final group may be shorter.
func splitBySentences(text string, maxSentences int) []string {
	sentences := splitSentences(text)
	var parts []string
	for i := 0; i < len(sentences); i += maxSentences {
		end := i + maxSentences
		if end > len(sentences) {
			end = len(sentences)
		}
		parts = append(parts, strings.Join(sentences[i:end], " "))
	}
	return parts
}

var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+)`)

// splitSentences breaks text on terminal punctuation. A trailing fragment
// without punctuation is kept as its own sentence.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(text[loc[0]:loc[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
