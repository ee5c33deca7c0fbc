// internal/cyton/parser.go
package cyton

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

const maxTextSize = 16 * 1024

// Sink receives everything the parser produces. Calls happen on the goroutine
// that calls Feed.
type Sink interface {
	OnReady(info BoardInfo)
	OnSample(s Sample)
	OnEndOfText(text string)
	OnSynced(res SyncResult)
	OnDroppedPackets(missed []int)
	OnBadPacket(err error)
}

// ParserConfig holds construction parameters for a StreamParser.
type ParserConfig struct {
	BufferSize     int
	Gains          []int
	SyncArraySize  int
	SyncThreshold  time.Duration
	SyncMultiplier float64
	Now            func() time.Time
}

// ParserStats are running counters since the last reset.
type ParserStats struct {
	BytesIn       uint64 `json:"bytesIn"`
	Packets       uint64 `json:"packets"`
	Samples       uint64 `json:"samples"`
	BadPackets    uint64 `json:"badPackets"`
	MissedPackets uint64 `json:"missedPackets"`
	DaisyMissed   uint64 `json:"daisyMissed"`
	Overruns      uint64 `json:"overruns"`
}

// StreamParser turns raw serial chunks into board events according to the
// current parsing mode. It is not safe for concurrent use.
type StreamParser struct {
	mode     ParsingMode
	text     []byte
	ring     *RingBuffer
	codec    *Codec
	daisy    *DaisyMerger
	sync     *TimeSync
	info     BoardInfo
	previous int
	stats    ParserStats
	sink     Sink
}

func NewStreamParser(cfg ParserConfig, sink Sink) *StreamParser {
	info := DefaultBoardInfo()
	return &StreamParser{
		mode:     ModeReset,
		ring:     NewRingBuffer(cfg.BufferSize),
		codec:    NewCodec(cfg.Gains, false, cfg.Now),
		daisy:    NewDaisyMerger(),
		sync:     NewTimeSync(cfg.SyncArraySize, cfg.SyncThreshold, cfg.SyncMultiplier),
		info:     info,
		previous: -1,
		sink:     sink,
	}
}

func (p *StreamParser) Mode() ParsingMode { return p.mode }

func (p *StreamParser) Info() BoardInfo { return p.info }

func (p *StreamParser) Stats() ParserStats {
	s := p.stats
	s.DaisyMissed = uint64(p.daisy.Missed())
	return s
}

func (p *StreamParser) Codec() *Codec { return p.codec }

func (p *StreamParser) TimeSync() *TimeSync { return p.sync }

// SetMode switches the parsing mode. Entering Reset drops any buffered bytes
// and pairing state.
func (p *StreamParser) SetMode(m ParsingMode) {
	switch m {
	case ModeReset:
		p.ring.Reset()
		p.daisy.Reset()
		p.previous = -1
		p.text = p.text[:0]
	case ModeEndOfText:
		p.text = p.text[:0]
	}
	p.mode = m
}

// SetBoardInfo overrides the detected board, e.g. after a channel count change.
func (p *StreamParser) SetBoardInfo(info BoardInfo) {
	p.info = info
	p.codec.SetDaisy(info.Board == BoardDaisy)
	p.daisy.Reset()
}

// BeginSync records the send time of a sync command and waits for its
// confirmation.
func (p *StreamParser) BeginSync() {
	p.sync.Begin(p.codec.Now())
	p.mode = ModeTimeSyncSent
}

// Feed processes one chunk. Only ErrChunkTooLarge is returned; every other
// problem is reported to the sink and counted.
func (p *StreamParser) Feed(chunk []byte) error {
	p.stats.BytesIn += uint64(len(chunk))
	return p.feed(chunk)
}

func (p *StreamParser) feed(chunk []byte) error {
	switch p.mode {
	case ModeReset, ModeEndOfText:
		return p.feedText(chunk)
	case ModeTimeSyncSent:
		if bytes.Count(chunk, []byte{CmdSyncConfirmation}) == 1 {
			p.sync.Confirm(p.codec.Now())
			p.mode = ModeNormal
		}
	}
	return p.feedPackets(chunk)
}

func (p *StreamParser) feedText(chunk []byte) error {
	p.text = append(p.text, chunk...)
	idx := bytes.Index(p.text, endOfTransmission)
	if idx < 0 {
		if len(p.text) > maxTextSize {
			p.text = append(p.text[:0], p.text[len(p.text)-maxTextSize:]...)
		}
		return nil
	}

	text := string(p.text[:idx])
	rest := append([]byte(nil), p.text[idx+len(endOfTransmission):]...)
	p.text = p.text[:0]

	mode := p.mode
	p.mode = ModeNormal
	if mode == ModeReset {
		info := ParseBanner(text)
		p.SetBoardInfo(info)
		p.sink.OnReady(info)
	} else {
		p.sink.OnEndOfText(text)
	}

	if len(rest) == 0 {
		return nil
	}
	return p.feed(rest)
}

func (p *StreamParser) feedPackets(chunk []byte) error {
	dropped, err := p.ring.Merge(chunk)
	if err != nil {
		if errors.Is(err, ErrChunkTooLarge) {
			return err
		}
		p.stats.Overruns++
		p.stats.BadPackets += uint64(dropped / PacketSize)
		p.sink.OnBadPacket(err)
	}

	for {
		p.align()
		pkt, ok := p.ring.Strip()
		if !ok {
			return nil
		}
		p.process(pkt)
	}
}

// align discards bytes until the read position holds a plausible packet:
// a start byte with a stop byte 32 bytes later. A lone ',' left over from a
// sync confirmation is skipped silently.
func (p *StreamParser) align() {
	skipped := 0
	onlyCommas := true
	for p.ring.Len() > 0 {
		b, _ := p.ring.Peek(0)
		if b == StartByte {
			stop, ok := p.ring.Peek(PacketSize - 1)
			if !ok || stop&StopMask == StopByte {
				break
			}
		}
		if b != CmdSyncConfirmation {
			onlyCommas = false
		}
		p.ring.Discard(1)
		skipped++
	}
	if skipped > 0 && !onlyCommas {
		p.stats.BadPackets++
		p.sink.OnBadPacket(fmt.Errorf("%w: discarded %d bytes to realign", ErrBadStartByte, skipped))
	}
}

func (p *StreamParser) process(pkt Packet) {
	arrival := p.codec.Now()
	if pkt.HasStopByte() && pkt.Type() == PacketTimeSyncSet {
		res := p.sync.Complete(arrival, pkt.BoardTime(), p.mode != ModeTimeSyncSent)
		p.mode = ModeNormal
		if res.Valid {
			p.codec.SetTimeOffset(res.OffsetMaster)
		}
		p.sink.OnSynced(res)
	}

	s, err := p.codec.Decode(pkt)
	if err != nil {
		p.stats.BadPackets++
		p.sink.OnBadPacket(err)
		return
	}
	p.stats.Packets++

	if missed := DroppedBetween(p.previous, s.SampleNumber); len(missed) > 0 {
		p.stats.MissedPackets += uint64(len(missed))
		p.sink.OnDroppedPackets(missed)
	}
	p.previous = s.SampleNumber

	if p.info.Board == BoardDaisy {
		merged, ok := p.daisy.Observe(s)
		if !ok {
			return
		}
		s = merged
	}
	p.stats.Samples++
	p.sink.OnSample(s)
}
