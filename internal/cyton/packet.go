// internal/cyton/packet.go
package cyton

import "encoding/binary"

// Packet is one fixed-size frame exactly as it arrived on the wire.
type Packet [PacketSize]byte

// NewPacket builds a wire packet from raw channel counts and aux bytes.
func NewPacket(sampleNumber byte, typ PacketType, counts [ChannelsPerBoard]int32, aux [auxSize]byte) Packet {
	var p Packet
	p[0] = StartByte
	p[offsetSampleNumber] = sampleNumber
	for i, c := range counts {
		putInt24(p[offsetChannels+i*3:], c)
	}
	copy(p[offsetAux:], aux[:])
	p[offsetStop] = StopByte | (byte(typ) & TypeMask)
	return p
}

// NewTimeSyncedPacket builds a time-synced packet carrying two aux bytes and
// the board time.
func NewTimeSyncedPacket(sampleNumber byte, typ PacketType, counts [ChannelsPerBoard]int32, aux [2]byte, boardTime uint32) Packet {
	var raw [auxSize]byte
	copy(raw[:], aux[:])
	binary.BigEndian.PutUint32(raw[2:], boardTime)
	return NewPacket(sampleNumber, typ, counts, raw)
}

func (p Packet) SampleNumber() int { return int(p[offsetSampleNumber]) }

func (p Packet) Type() PacketType { return PacketType(p[offsetStop] & TypeMask) }

func (p Packet) StopByte() byte { return p[offsetStop] }

func (p Packet) HasStartByte() bool { return p[0] == StartByte }

func (p Packet) HasStopByte() bool { return p[offsetStop]&StopMask == StopByte }

// Counts returns the eight raw 24-bit ADC values.
func (p Packet) Counts() [ChannelsPerBoard]int32 {
	var out [ChannelsPerBoard]int32
	for i := range out {
		out[i] = interpret24(p[offsetChannels+i*3:])
	}
	return out
}

// Aux returns a copy of the six aux bytes.
func (p Packet) Aux() []byte {
	out := make([]byte, auxSize)
	copy(out, p[offsetAux:offsetAux+auxSize])
	return out
}

// BoardTime reads the board clock from a time-synced packet.
func (p Packet) BoardTime() uint32 {
	return binary.BigEndian.Uint32(p[offsetBoardTime:])
}

// interpret24 sign-extends a big-endian 24-bit two's complement value.
func interpret24(b []byte) int32 {
	v := int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2])
	if v&0x800000 != 0 {
		v |= ^0xFFFFFF
	}
	return v
}

func interpret16(b []byte) int16 {
	return int16(binary.BigEndian.Uint16(b))
}

func putInt24(b []byte, v int32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// Sample is a decoded packet.
type Sample struct {
	SampleNumber int        `json:"sampleNumber"`
	Type         PacketType `json:"type"`
	Channels     []float64  `json:"channelData"`
	Aux          []byte     `json:"auxData,omitempty"`
	UpperAux     []byte     `json:"upperAuxData,omitempty"`
	Accel        []float64  `json:"accelData,omitempty"`
	BoardTime    uint32     `json:"boardTime,omitempty"`
	Timestamp    int64      `json:"timestamp"`
	Count        uint64     `json:"sampleCount"`
	StopByte     byte       `json:"stopByte"`
	Daisy        bool       `json:"daisy,omitempty"`
}

// HasAccel reports whether the sample carries a non-zero accelerometer reading.
func (s Sample) HasAccel() bool {
	for _, v := range s.Accel {
		if v != 0 {
			return true
		}
	}
	return false
}

// DroppedBetween lists the sample numbers missing between two consecutive
// packets, wrapping at 255. A negative previous value means no packet was
// seen yet.
func DroppedBetween(previous, current int) []int {
	if previous < 0 || previous == current {
		return nil
	}
	if current-previous == 1 || (previous == MaxSampleNo && current == 0) {
		return nil
	}
	var missed []int
	if previous > current {
		for i := previous + 1; i <= MaxSampleNo; i++ {
			missed = append(missed, i)
		}
		for i := 0; i < current; i++ {
			missed = append(missed, i)
		}
		return missed
	}
	for i := previous + 1; i < current; i++ {
		missed = append(missed, i)
	}
	return missed
}
