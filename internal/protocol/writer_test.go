// internal/protocol/writer_test.go
package protocol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	mutex  sync.Mutex
	writes [][]byte
	times  []time.Time
	err    error
}

func (r *recordingWriter) Write(ctx context.Context, data []byte) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.err != nil {
		return r.err
	}
	r.writes = append(r.writes, data)
	r.times = append(r.times, time.Now())
	return nil
}

func (r *recordingWriter) snapshot() ([][]byte, []time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([][]byte(nil), r.writes...), append([]time.Time(nil), r.times...)
}

func TestRateLimitedWriter_OrderAndDelay(t *testing.T) {
	out := &recordingWriter{}
	w := NewRateLimitedWriter(out, 20*time.Millisecond, 8, nil, zap.NewNop())
	w.Start(context.Background())

	buf := []byte("a")
	require.NoError(t, w.Write(buf))
	buf[0] = 'x'
	require.NoError(t, w.Write([]byte("b")))
	require.NoError(t, w.Write([]byte("c")))
	w.Close()

	writes, times := out.snapshot()
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, writes, "queued data is copied")
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), 20*time.Millisecond)
	}

	assert.ErrorIs(t, w.Write([]byte("d")), ErrWriterClosed)
}

func TestRateLimitedWriter_QueueFull(t *testing.T) {
	w := NewRateLimitedWriter(&recordingWriter{}, 0, 1, nil, zap.NewNop())

	require.NoError(t, w.Write([]byte("a")))
	assert.ErrorIs(t, w.Write([]byte("b")), ErrQueueFull)
	assert.Equal(t, 1, w.Pending())
}

func TestRateLimitedWriter_ReportsErrors(t *testing.T) {
	out := &recordingWriter{err: errors.New("broken pipe")}
	errs := make(chan error, 1)
	w := NewRateLimitedWriter(out, 0, 4, func(err error) { errs <- err }, zap.NewNop())
	w.Start(context.Background())
	defer w.Close()

	require.NoError(t, w.Write([]byte("v")))
	select {
	case err := <-errs:
		assert.EqualError(t, err, "broken pipe")
	case <-time.After(time.Second):
		t.Fatal("write error not reported")
	}
}

func TestRateLimitedWriter_SetDelay(t *testing.T) {
	w := NewRateLimitedWriter(&recordingWriter{}, 10*time.Millisecond, 0, nil, zap.NewNop())
	assert.Equal(t, 10*time.Millisecond, w.Delay())
	w.SetDelay(0)
	assert.Zero(t, w.Delay())
}

func TestDefaultSerialConfig(t *testing.T) {
	cfg := DefaultSerialConfig("/dev/ttyUSB0")
	assert.Equal(t, "/dev/ttyUSB0", cfg.Port)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, 8, cfg.DataBits)
	assert.Equal(t, 1, cfg.StopBits)
	assert.Equal(t, "none", cfg.Parity)
}

func TestSerialConnection_NotOpen(t *testing.T) {
	sc := NewSerialConnection(DefaultSerialConfig("/dev/null-port"), zap.NewNop())
	assert.False(t, sc.IsOpen())
	assert.Equal(t, "serial:/dev/null-port", sc.Name())

	assert.ErrorIs(t, sc.Write(context.Background(), []byte("v")), ErrPortNotOpen)
	_, err := sc.Read(context.Background(), 10)
	assert.ErrorIs(t, err, ErrPortNotOpen)
	assert.ErrorIs(t, sc.SetBaudRate(230400), ErrPortNotOpen)
	assert.NoError(t, sc.Close())
}
