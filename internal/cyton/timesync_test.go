// internal/cyton/timesync_test.go
package cyton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSync_Complete(t *testing.T) {
	tests := []struct {
		name          string
		sent, confirm int64
		arrival       int64
		boardTime     uint32
		transmission  int64
		offset        int64
		corrected     bool
	}{
		{
			name: "slow set packet", sent: 1000, confirm: 1020, arrival: 1040, boardTime: 500,
			transmission: 20, offset: 520,
		},
		{
			name: "set packet right behind confirmation", sent: 1000, confirm: 1030, arrival: 1035, boardTime: 500,
			transmission: 31, offset: 504, corrected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := NewTimeSync(0, 0, 0)
			ts.Begin(tt.sent)
			assert.True(t, ts.InProgress())
			ts.Confirm(tt.confirm)

			res := ts.Complete(tt.arrival, tt.boardTime, true)
			require.True(t, res.Valid)
			assert.Equal(t, tt.arrival-tt.sent, res.RoundTrip)
			assert.Equal(t, tt.transmission, res.Transmission)
			assert.Equal(t, tt.offset, res.Offset)
			assert.Equal(t, tt.corrected, res.CorrectedTransmission)
			assert.False(t, ts.InProgress())
		})
	}
}

func TestTimeSync_RollingMaster(t *testing.T) {
	ts := NewTimeSync(3, 0, 0)

	run := func(boardTime uint32) SyncResult {
		ts.Begin(1000)
		ts.Confirm(1020)
		return ts.Complete(1040, boardTime, true)
	}

	// offsets 520, 510, 501: mean 510.33 floors to 510
	run(500)
	run(510)
	res := run(519)
	assert.Equal(t, int64(510), res.OffsetMaster)

	// window slides to 510, 501, 420
	res = run(600)
	assert.Equal(t, []int64{510, 501, 420}, ts.Offsets())
	assert.Equal(t, int64(477), res.OffsetMaster)
	assert.Equal(t, int64(477), ts.Master())
}

func TestTimeSync_Failures(t *testing.T) {
	ts := NewTimeSync(0, 0, 0)

	res := ts.Complete(1000, 1, true)
	assert.False(t, res.Valid)
	assert.ErrorIs(t, res.Err, ErrSyncNotStarted)
	assert.Equal(t, "sync object null", res.Error)

	ts.Begin(900)
	res = ts.Complete(1000, 1, false)
	assert.False(t, res.Valid)
	assert.ErrorIs(t, res.Err, ErrSyncNoComma)
	assert.Equal(t, int64(900), res.SyncSent)
	assert.Empty(t, ts.Offsets())
}
