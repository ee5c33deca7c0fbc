// internal/cyton/router.go
package cyton

import "fmt"

// DecodeFunc turns one validated packet into a sample.
type DecodeFunc func(p Packet) (Sample, error)

// Router dispatches packets on the type nibble of the stop byte.
type Router struct {
	table map[PacketType]DecodeFunc
}

func NewRouter() *Router {
	return &Router{table: make(map[PacketType]DecodeFunc)}
}

// Handle registers the decoder for a packet type, replacing any previous one.
func (r *Router) Handle(t PacketType, fn DecodeFunc) {
	r.table[t] = fn
}

// Route validates the stop byte and invokes the matching decoder. Unknown
// types never reach a decoder.
func (r *Router) Route(p Packet) (Sample, error) {
	if !p.HasStopByte() {
		return Sample{}, fmt.Errorf("%w: 0x%02X", ErrBadStopByte, p.StopByte())
	}
	fn, ok := r.table[p.Type()]
	if !ok {
		return Sample{}, fmt.Errorf("%w: %s", ErrUnknownPacketType, p.Type())
	}
	return fn(p)
}
