package ioengine

// Source is an immutable byte view: a fixed backing buffer with no
// progress tracking of its own. Progress is tracked separately by Cursor
// so the same Source can, in principle, be read from independently.
type Source interface {
	Size() int
	Data() []byte
}

// BytesSource is a Source backed directly by a byte slice.
type BytesSource []byte

// Size returns len(b).
func (b BytesSource) Size() int { return len(b) }

// Data returns b.
func (b BytesSource) Data() []byte { return b }

// Cursor adds a consume-as-you-go progress position to a Source.
type Cursor struct {
	src      Source
	progress int
}

// NewCursor wraps src with a cursor starting at position 0.
func NewCursor(src Source) *Cursor {
	return &Cursor{src: src}
}

// Size reports the total size of the underlying Source.
func (c *Cursor) Size() int { return c.src.Size() }

// Available reports how many bytes remain unconsumed.
func (c *Cursor) Available() int { return c.src.Size() - c.progress }

// Empty reports whether every byte has been consumed.
func (c *Cursor) Empty() bool { return c.Available() == 0 }

// Peek returns the unconsumed remainder without advancing the cursor.
func (c *Cursor) Peek() []byte { return c.src.Data()[c.progress:] }

// PeekN returns up to n unconsumed bytes without advancing the cursor.
func (c *Cursor) PeekN(n int) []byte {
	remaining := c.Peek()
	if n > len(remaining) {
		n = len(remaining)
	}
	return remaining[:n]
}

// Consume returns the entire unconsumed remainder and advances the cursor
// to the end.
func (c *Cursor) Consume() []byte {
	out := c.Peek()
	c.progress = c.src.Size()
	return out
}

// ConsumeN advances the cursor by up to n bytes and returns the consumed
// slice.
func (c *Cursor) ConsumeN(n int) []byte {
	out := c.PeekN(n)
	c.progress += len(out)
	return out
}

// ConsumeInto copies up to len(dst) unconsumed bytes into dst, advances
// the cursor by that many bytes, and returns the count copied.
func (c *Cursor) ConsumeInto(dst []byte) int {
	n := copy(dst, c.Peek())
	c.progress += n
	return n
}
