package course

import (
	"strings"
	"unicode"
)

// DefaultAbbreviations is the sentence-boundary exception list applied when
// the caller does not supply one. A trailing period after any of these words
// does not end a sentence. The list is configuration data, not logic — extend
// it via Config rather than editing the splitter.
var DefaultAbbreviations = []string{
	"Mr.", "Mrs.", "Ms.", "Dr.", "Prof.", "Sr.", "Jr.", "St.",
	"vs.", "etc.", "e.g.", "i.e.", "cf.", "al.",
	"Inc.", "Ltd.", "Co.", "Corp.",
	"Fig.", "No.", "Vol.", "approx.",
}

// ChunkerConfig holds the tunable parameters for a Chunker.
type ChunkerConfig struct {
	// Size is the maximum number of characters per chunk.
	// Defaults to 800 if zero.
	Size int

	// Overlap is the number of characters carried from the end of one chunk
	// into the start of the next, extended backward to the nearest sentence
	// boundary. Defaults to 100 if zero; clamped to Size/10 when >= Size.
	Overlap int

	// Abbreviations overrides DefaultAbbreviations when non-nil.
	Abbreviations []string
}

// Chunker splits contiguous text into overlapping, sentence-aligned chunks.
// Output is deterministic for identical input and configuration.
type Chunker struct {
	// size is the maximum chunk length in characters.
	size int

	// overlap is the target overlap length in characters.
	overlap int

	// abbrevs is the lowercased abbreviation exception set.
	abbrevs map[string]struct{}
}

// NewChunker constructs a Chunker from cfg, applying defaults for zero values.
func NewChunker(cfg *ChunkerConfig) *Chunker {
	if cfg == nil {
		cfg = &ChunkerConfig{}
	}
	size := cfg.Size
	if size <= 0 {
		size = 800
	}
	overlap := cfg.Overlap
	if overlap <= 0 {
		overlap = 100
	}
	if overlap >= size {
		overlap = size / 10
	}

	list := cfg.Abbreviations
	if list == nil {
		list = DefaultAbbreviations
	}
	abbrevs := make(map[string]struct{}, len(list))
	for _, a := range list {
		abbrevs[strings.ToLower(a)] = struct{}{}
	}

	return &Chunker{size: size, overlap: overlap, abbrevs: abbrevs}
}

// Split chunks text into an ordered sequence of passages. Sentences are
// accumulated greedily until the next one would push the chunk past the size
// limit; the next chunk then starts with the trailing sentences of the
// previous chunk up to the configured overlap. A single sentence longer than
// the size limit is emitted whole rather than cut mid-word.
// Returns nil for blank input.
func (c *Chunker) Split(text string) []string {
	sents := c.sentences(text)
	if len(sents) == 0 {
		return nil
	}

	var chunks []string
	var cur []string
	curLen := 0

	for _, s := range sents {
		if len(cur) > 0 && curLen+1+len(s) > c.size {
			chunks = append(chunks, strings.Join(cur, " "))

			cur = c.overlapTail(cur)
			curLen = joinedLen(cur)

			// Shrink the carried overlap when it would push this sentence
			// past the size limit; the overlap is context, the sentence is
			// content.
			for len(cur) > 0 && curLen+1+len(s) > c.size {
				curLen -= len(cur[0])
				if len(cur) > 1 {
					curLen--
				}
				cur = cur[1:]
			}
		}
		if len(cur) > 0 {
			curLen++
		}
		cur = append(cur, s)
		curLen += len(s)
	}

	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}

// sentences splits text on `.`, `!`, and `?` followed by whitespace or end of
// text, suppressing boundaries after known abbreviations. Whitespace runs
// inside a sentence are preserved as-is; leading and trailing whitespace per
// sentence is trimmed.
func (c *Chunker) sentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Mid-token punctuation ("3.14", "v1.2?x") is not a boundary.
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if r == '.' && c.endsInAbbreviation(runes[start:i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

// endsInAbbreviation reports whether the would-be sentence ends in a word
// from the abbreviation exception set, in which case its trailing period
// does not close a sentence.
func (c *Chunker) endsInAbbreviation(sentence []rune) bool {
	s := string(sentence)
	idx := strings.LastIndexFunc(s, unicode.IsSpace)
	word := s[idx+1:]
	_, ok := c.abbrevs[strings.ToLower(word)]
	return ok
}

// overlapTail returns the minimal run of trailing sentences whose combined
// length reaches the configured overlap. The first sentence of a chunk is
// never carried, so consecutive chunks always differ.
func (c *Chunker) overlapTail(prev []string) []string {
	if c.overlap <= 0 || len(prev) < 2 {
		return nil
	}
	total := 0
	i := len(prev)
	for i > 1 && total < c.overlap {
		i--
		total += len(prev[i])
		if i < len(prev)-1 {
			total++
		}
	}
	tail := make([]string, len(prev)-i)
	copy(tail, prev[i:])
	return tail
}

// joinedLen returns the length of strings.Join(parts, " ") without building it.
func joinedLen(parts []string) int {
	if len(parts) == 0 {
		return 0
	}
	n := len(parts) - 1
	for _, p := range parts {
		n += len(p)
	}
	return n
}
