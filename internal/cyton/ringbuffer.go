// internal/cyton/ringbuffer.go
package cyton

import "fmt"

// RingBuffer reassembles arbitrarily chunked serial reads into whole packets.
// Unread bytes always equal packetsIn*PacketSize + looseBytes, laid out from
// readPos and wrapping at the end of buf.
type RingBuffer struct {
	buf        []byte
	writePos   int
	readPos    int
	packetsIn  int
	looseBytes int
}

// NewRingBuffer allocates a buffer of the given capacity. A non-positive
// capacity selects DefaultBufferSize.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Cap returns the buffer capacity in bytes.
func (r *RingBuffer) Cap() int { return len(r.buf) }

// Len returns the number of unread bytes.
func (r *RingBuffer) Len() int { return r.packetsIn*PacketSize + r.looseBytes }

// PacketsIn returns the number of whole packets available to Strip.
func (r *RingBuffer) PacketsIn() int { return r.packetsIn }

// LooseBytes returns the trailing bytes of an incomplete packet.
func (r *RingBuffer) LooseBytes() int { return r.looseBytes }

// Merge appends a chunk. When the chunk would overflow unread data, the oldest
// whole packets are dropped first and ErrOverrun is returned together with
// the number of dropped bytes; the chunk is still stored.
func (r *RingBuffer) Merge(chunk []byte) (int, error) {
	n := len(chunk)
	if n > len(r.buf) {
		return 0, fmt.Errorf("%w: %d > %d", ErrChunkTooLarge, n, len(r.buf))
	}
	if n == 0 {
		return 0, nil
	}

	var dropped int
	if over := r.Len() + n - len(r.buf); over > 0 {
		dropped = ((over + PacketSize - 1) / PacketSize) * PacketSize
		if dropped > r.Len() {
			dropped = r.Len()
		}
		r.Discard(dropped)
	}

	first := len(r.buf) - r.writePos
	if first > n {
		first = n
	}
	copy(r.buf[r.writePos:], chunk[:first])
	copy(r.buf, chunk[first:])
	r.writePos = (r.writePos + n) % len(r.buf)
	r.recount(r.Len() + n)

	if dropped > 0 {
		return dropped, fmt.Errorf("%w: %d bytes", ErrOverrun, dropped)
	}
	return 0, nil
}

// Strip removes the oldest whole packet. It reports false and leaves the
// buffer untouched when no whole packet is available.
func (r *RingBuffer) Strip() (Packet, bool) {
	var p Packet
	if r.packetsIn == 0 {
		return p, false
	}
	first := len(r.buf) - r.readPos
	if first > PacketSize {
		first = PacketSize
	}
	copy(p[:first], r.buf[r.readPos:])
	copy(p[first:], r.buf[:PacketSize-first])
	r.readPos = (r.readPos + PacketSize) % len(r.buf)
	r.packetsIn--
	return p, true
}

// Peek returns the unread byte at offset i from the read position.
func (r *RingBuffer) Peek(i int) (byte, bool) {
	if i < 0 || i >= r.Len() {
		return 0, false
	}
	return r.buf[(r.readPos+i)%len(r.buf)], true
}

// Discard drops up to n unread bytes from the front.
func (r *RingBuffer) Discard(n int) {
	total := r.Len()
	if n > total {
		n = total
	}
	if n <= 0 {
		return
	}
	r.readPos = (r.readPos + n) % len(r.buf)
	r.recount(total - n)
}

// Reset empties the buffer.
func (r *RingBuffer) Reset() {
	r.writePos, r.readPos = 0, 0
	r.packetsIn, r.looseBytes = 0, 0
}

func (r *RingBuffer) recount(total int) {
	r.packetsIn = total / PacketSize
	r.looseBytes = total % PacketSize
}
