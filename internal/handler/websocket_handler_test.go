// internal/handler/websocket_handler_test.go
package handler

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cyton-service/internal/cyton"
)

func TestNewEvent(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		in       cyton.Event
		wantData bool
		wantErr  string
	}{
		{name: "impedance", in: cyton.Event{Type: cyton.EventImpedance, Impedance: &cyton.ImpedanceResult{Channel: 1}, Time: now}, wantData: true},
		{name: "missed", in: cyton.Event{Type: cyton.EventDroppedPackets, Missed: []int{3, 4}, Time: now}, wantData: true},
		{name: "text", in: cyton.Event{Type: cyton.EventEndOfText, Text: "done", Time: now}, wantData: true},
		{name: "error", in: cyton.Event{Type: cyton.EventError, Err: errors.New("port gone")}, wantErr: "port gone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewEvent(tt.in)
			assert.Equal(t, string(tt.in.Type), got.Type)
			assert.Equal(t, tt.wantData, got.Data != nil)
			assert.Equal(t, tt.wantErr, got.Error)
			assert.False(t, got.Timestamp.IsZero())
		})
	}
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus(zap.NewNop(), false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Start(ctx)

	all, cancelAll := bus.Subscribe()
	impedance, cancelImpedance := bus.Subscribe(string(cyton.EventImpedance))
	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Handle(cyton.Event{Type: cyton.EventSample, Sample: &cyton.Sample{}})
	bus.Handle(cyton.Event{Type: cyton.EventReady, Info: &cyton.BoardInfo{}})
	bus.Handle(cyton.Event{Type: cyton.EventImpedance, Impedance: &cyton.ImpedanceResult{Channel: 2}})

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case e := <-all:
			got = append(got, e.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []string{"ready", "impedance"}, got)

	select {
	case e := <-impedance:
		assert.Equal(t, "impedance", e.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for impedance event")
	}

	cancelAll()
	cancelAll()
	cancelImpedance()
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "wildcard", allowed: []string{"*"}, origin: "http://anything", want: true},
		{name: "listed", allowed: []string{"http://localhost:3000"}, origin: "http://LOCALHOST:3000", want: true},
		{name: "not listed", allowed: []string{"http://localhost:3000"}, origin: "http://evil.example", want: false},
		{name: "no origin header", allowed: []string{"http://localhost:3000"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws/events", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(req))
		})
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketHandler_Events(t *testing.T) {
	bus := NewEventBus(zap.NewNop(), false)
	bs := newBoardService(t, bus.Handle)
	ws := NewWebSocketHandler(bs, bus, []string{"*"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Start(ctx)
	go ws.Start(ctx)
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	ws.RegisterRoutes(r.Group("/ws"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?types=ready"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	assert.Equal(t, "status", first.Type)
	require.Eventually(t, func() bool { return ws.GetConnectionStats().TotalConnections == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping", RequestID: "r1"}))
	pong := readMessage(t, conn)
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, "r1", pong.RequestID)

	_, err = bs.Connect(context.Background())
	require.NoError(t, err)

	// only ready passes the filter; connected is dropped
	msg := readMessage(t, conn)
	require.Equal(t, "board_event", msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ready", data["type"])
	assert.Equal(t, bs.SessionID(), data["session_id"])

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "shout"}))
	errMsg := readMessage(t, conn)
	assert.Equal(t, "error", errMsg.Type)
}
