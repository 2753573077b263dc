// Package jsonframe recovers discrete top-level JSON objects from a byte
// stream whose chunk boundaries cannot be trusted. Proxies between this
// client and the local inference server are known to coalesce several
// newline-delimited objects into one delivery, or split a single object
// across many; the Buffer absorbs raw bytes as they arrive and hands back
// one complete object at a time.
package jsonframe

// Buffer is an append-only accumulator for one in-flight streaming call.
// It is not safe for concurrent use; each call owns exactly one Buffer.
type Buffer struct {
	data []byte

	// Scan state carried across Next calls so that a large object split
	// over many deliveries is not rescanned from the start every time.
	pos      int
	depth    int
	start    int
	inString bool
	escaped  bool
}

// Append adds newly received bytes to the end of the buffer.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Len reports the number of buffered bytes not yet consumed.
func (b *Buffer) Len() int { return len(b.data) }

// Next returns the earliest complete top-level JSON object in the buffer,
// including its delimiting braces, or nil if none is available yet. The
// returned frame and any bytes preceding it (inter-frame whitespace or
// separators) are removed from the buffer; an incomplete tail is left in
// place for a later Append.
//
// Only brace/quote/escape well-formedness is tracked here. A frame with
// balanced braces but malformed JSON inside passes through and surfaces as
// a decode error in the caller.
func (b *Buffer) Next() []byte {
	for ; b.pos < len(b.data); b.pos++ {
		c := b.data[b.pos]

		if b.escaped {
			b.escaped = false
			continue
		}
		if c == '\\' {
			b.escaped = true
			continue
		}
		if c == '"' {
			b.inString = !b.inString
			continue
		}
		if b.inString {
			continue
		}

		switch c {
		case '{':
			if b.depth == 0 {
				b.start = b.pos
			}
			b.depth++
		case '}':
			if b.depth == 0 {
				// Stray closing brace outside any object; treat as
				// inter-frame noise like whitespace.
				continue
			}
			b.depth--
			if b.depth == 0 {
				frame := make([]byte, b.pos+1-b.start)
				copy(frame, b.data[b.start:b.pos+1])
				b.data = b.data[b.pos+1:]
				b.reset()
				return frame
			}
		}
	}
	return nil
}

func (b *Buffer) reset() {
	b.pos = 0
	b.depth = 0
	b.start = 0
	b.inString = false
	b.escaped = false
}
