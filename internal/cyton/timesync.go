// internal/cyton/timesync.go
package cyton

import (
	"math"
	"time"
)

// Time sync defaults.
const (
	DefaultSyncArraySize          = 10
	DefaultSyncThreshold          = 10 * time.Millisecond
	DefaultTransmissionMultiplier = 0.9
)

// SyncResult is emitted once per time sync set packet. All times are host
// milliseconds except BoardTime.
type SyncResult struct {
	Valid                 bool   `json:"valid"`
	Err                   error  `json:"-"`
	Error                 string `json:"error,omitempty"`
	BoardTime             uint32 `json:"boardTime"`
	SyncSent              int64  `json:"timeSyncSent"`
	SyncSentConfirmation  int64  `json:"timeSyncSentConfirmation"`
	SyncSetPacket         int64  `json:"timeSyncSetPacket"`
	RoundTrip             int64  `json:"timeRoundTrip"`
	Transmission          int64  `json:"timeTransmission"`
	Offset                int64  `json:"timeOffset"`
	OffsetMaster          int64  `json:"timeOffsetMaster"`
	CorrectedTransmission bool   `json:"correctedTransmissionTime"`
}

type syncAttempt struct {
	sent         int64
	confirmation int64
}

// TimeSync estimates the offset between the board clock and the host clock
// from the '<' / ',' / set-packet exchange. It keeps a rolling window of
// offsets and averages them into a master offset.
type TimeSync struct {
	arraySize  int
	threshold  int64
	multiplier float64

	current *syncAttempt
	offsets []int64
	master  int64
}

func NewTimeSync(arraySize int, threshold time.Duration, multiplier float64) *TimeSync {
	if arraySize <= 0 {
		arraySize = DefaultSyncArraySize
	}
	if threshold <= 0 {
		threshold = DefaultSyncThreshold
	}
	if multiplier <= 0 {
		multiplier = DefaultTransmissionMultiplier
	}
	return &TimeSync{
		arraySize:  arraySize,
		threshold:  threshold.Milliseconds(),
		multiplier: multiplier,
	}
}

// Begin records when the sync command was written.
func (t *TimeSync) Begin(sentMs int64) {
	t.current = &syncAttempt{sent: sentMs}
}

// InProgress reports whether a sync command is awaiting its set packet.
func (t *TimeSync) InProgress() bool { return t.current != nil }

// Confirm records when the ',' confirmation arrived.
func (t *TimeSync) Confirm(atMs int64) {
	if t.current != nil {
		t.current.confirmation = atMs
	}
}

// Master returns the averaged offset in milliseconds.
func (t *TimeSync) Master() int64 { return t.master }

// Offsets returns a copy of the rolling offset window.
func (t *TimeSync) Offsets() []int64 {
	return append([]int64(nil), t.offsets...)
}

// Complete consumes a set packet that arrived at arrivalMs. confirmed is false
// when the parser never saw the ',' confirmation.
func (t *TimeSync) Complete(arrivalMs int64, boardTime uint32, confirmed bool) SyncResult {
	res := SyncResult{BoardTime: boardTime, SyncSetPacket: arrivalMs, OffsetMaster: t.master}
	cur := t.current
	t.current = nil

	switch {
	case cur == nil:
		return res.fail(ErrSyncNotStarted)
	case !confirmed:
		res.SyncSent = cur.sent
		return res.fail(ErrSyncNoComma)
	}

	res.SyncSent = cur.sent
	res.SyncSentConfirmation = cur.confirmation
	res.RoundTrip = arrivalMs - cur.sent
	res.Transmission = res.RoundTrip - (cur.confirmation - cur.sent)
	if arrivalMs-cur.confirmation < t.threshold {
		res.Transmission = int64(math.Floor(float64(arrivalMs-cur.sent) * t.multiplier))
		res.CorrectedTransmission = true
	}
	res.Offset = arrivalMs - res.Transmission - int64(boardTime)

	if len(t.offsets) >= t.arraySize {
		t.offsets = t.offsets[1:]
	}
	t.offsets = append(t.offsets, res.Offset)
	var sum int64
	for _, o := range t.offsets {
		sum += o
	}
	t.master = int64(math.Floor(float64(sum) / float64(len(t.offsets))))

	res.OffsetMaster = t.master
	res.Valid = true
	return res
}

func (r SyncResult) fail(err error) SyncResult {
	r.Valid = false
	r.Err = err
	r.Error = err.Error()
	return r
}
