package serial

import (
	"bytes"
	"strings"
)

// maxPending bounds the partial-line buffer if the board never sends '\n'.
const maxPending = 4096

// lineBuffer accumulates raw bytes and splits them into lines.
type lineBuffer struct {
	pending []byte
}

func (b *lineBuffer) write(p []byte) {
	b.pending = append(b.pending, p...)
	if len(b.pending) > maxPending {
		b.pending = b.pending[len(b.pending)-maxPending:]
	}
}

// next pops the next non-empty line, dropping invalid UTF-8 and surrounding
// whitespace. ok is false when no complete line is buffered.
func (b *lineBuffer) next() (line string, ok bool) {
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			return "", false
		}
		raw := b.pending[:i]
		b.pending = b.pending[i+1:]
		line = strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
		if line != "" {
			return line, true
		}
	}
}

func (b *lineBuffer) reset() {
	b.pending = b.pending[:0]
}
