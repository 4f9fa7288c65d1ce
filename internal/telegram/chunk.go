package telegram

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is Telegram's limit for a single text message.
const MaxMessageLength = 4096

var chunkSeparators = []string{"\n\n", "\n", " "}

// ChunkMessage splits text into pieces of at most maxLen runes. It prefers
// paragraph breaks, then line breaks, then spaces, and only cuts inside a
// word when the word alone is longer than maxLen. Blank pieces are dropped.
func ChunkMessage(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = MaxMessageLength
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunks := splitText(text, maxLen, chunkSeparators)
	out := chunks[:0]
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
	}
	return out
}

func splitText(text string, maxLen int, separators []string) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}
	if len(separators) == 0 {
		return hardSplit(text, maxLen)
	}

	sep := separators[0]
	sepLen := utf8.RuneCountInString(sep)

	var (
		chunks     []string
		current    strings.Builder
		currentLen int
	)
	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
		}
		current.Reset()
		currentLen = 0
	}

	for _, part := range strings.Split(text, sep) {
		partLen := utf8.RuneCountInString(part)
		if partLen > maxLen {
			flush()
			chunks = append(chunks, splitText(part, maxLen, separators[1:])...)
			continue
		}
		if partLen == 0 {
			continue
		}
		if currentLen > 0 && currentLen+sepLen+partLen > maxLen {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(sep)
			currentLen += sepLen
		}
		current.WriteString(part)
		currentLen += partLen
	}
	flush()

	return chunks
}

func hardSplit(text string, maxLen int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/maxLen+1)
	for len(runes) > 0 {
		n := min(maxLen, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
