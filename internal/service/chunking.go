package service

import "strings"

// DefaultChunkMaxChars bounds the length of a chunk in runes
const DefaultChunkMaxChars = 1000

// sentence terminators: East-Asian and Western full stops plus newlines.
// A newline is a boundary because contributed entries use line-per-fact
// formatting.
func isSentenceTerminator(r rune) bool {
	switch r {
	case '。', '？', '！', '.', '!', '?', '\n':
		return true
	}
	return false
}

// splitSentences splits text after each sentence terminator, trimming
// surrounding whitespace and dropping empty segments.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if isSentenceTerminator(r) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// ChunkText splits long text into chunks along sentence boundaries, greedily
// packing sentences into chunks of at most maxChars runes. A single sentence
// longer than maxChars becomes its own oversized chunk rather than being cut
// mid-sentence. The function is pure: the same input always yields the same
// chunk boundaries. Empty or whitespace-only input yields nil.
func ChunkText(text string, maxChars int) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultChunkMaxChars
	}

	if len([]rune(clean)) <= maxChars {
		return []string{clean}
	}

	sentences := splitSentences(clean)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current string
	currentLen := 0

	for _, sentence := range sentences {
		sentenceLen := len([]rune(sentence))

		// Oversized sentences stand alone. This is an escape valve for
		// badly formatted source data, not an error.
		if sentenceLen > maxChars {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
				currentLen = 0
			}
			chunks = append(chunks, sentence)
			continue
		}

		if current != "" && currentLen+sentenceLen+1 > maxChars {
			chunks = append(chunks, current)
			current = sentence
			currentLen = sentenceLen
			continue
		}

		if current == "" {
			current = sentence
			currentLen = sentenceLen
		} else {
			current += " " + sentence
			currentLen += sentenceLen + 1
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}
