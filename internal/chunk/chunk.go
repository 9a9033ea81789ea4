// Package chunk splits long model output into display-sized pieces without
// breaking fenced code blocks.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// MaxLength is the largest chunk, in characters, a chat embed body accepts.
const MaxLength = 2048

const fence = "```"

// Split breaks text into chunks of at most maxLength characters, cutting
// between lines and only outside a fenced code block. A fenced block longer
// than maxLength stays whole in one oversized chunk; a single unfenced line
// longer than maxLength is cut into pieces of at most maxLength characters.
//
// Every line, the last included, is emitted with a trailing newline, so
// strings.Join(chunks, "") equals text + "\n".
func Split(text string, maxLength int) []string {
	maxLength = max(maxLength, 2)

	var (
		chunks  []string
		buf     strings.Builder
		bufLen  int
		inFence bool
	)
	flush := func() {
		if bufLen > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line) + 1
		isFence := strings.HasPrefix(strings.TrimSpace(line), fence)

		if !inFence && !isFence && lineLen > maxLength {
			flush()
			runes := []rune(line)
			for len(runes) >= maxLength {
				// Leave at least one rune so the final piece carries the newline.
				n := min(maxLength, len(runes)-1)
				chunks = append(chunks, string(runes[:n]))
				runes = runes[n:]
			}
			line, lineLen = string(runes), len(runes)+1
		}

		// The state before this line decides: a closing fence stays with its block.
		if !inFence && bufLen+lineLen > maxLength {
			flush()
		}
		if isFence {
			inFence = !inFence
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
		bufLen += lineLen
	}

	flush()
	return chunks
}
