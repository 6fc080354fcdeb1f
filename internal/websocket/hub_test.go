package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"presence-service/internal/metrics"
)

// serverConn returns the server side of a fresh websocket connection.
func serverConn(t *testing.T) *websocket.Conn {
	t.Helper()

	conns := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conns <- conn
	}))
	t.Cleanup(server.Close)

	clientConn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	select {
	case conn := <-conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("server side of websocket not ready")
		return nil
	}
}

func TestHub_SlowClientIsClosed(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry(), zap.NewNop())
	hub := NewHub(m, zap.NewNop())

	// writePump를 돌리지 않아 버퍼가 비워지지 않는다
	c := newClient(serverConn(t), uuid.New())
	hub.register(c)

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, hub.Send(c.id, []byte("frame")), "frame %d", i)
	}

	assert.False(t, hub.Send(c.id, []byte("overflow")))
	select {
	case <-c.done:
	default:
		t.Fatal("slow client was not closed")
	}
	// 닫힌 뒤 unregister 전까지 오는 프레임은 드롭으로 세지 않는다
	for i := 0; i < 5; i++ {
		assert.False(t, hub.Send(c.id, []byte("after close")))
	}
	assert.ErrorIs(t, c.enqueue([]byte("after close")), errClientClosed)

	metric := &dto.Metric{}
	require.NoError(t, m.WSDroppedFrames.Write(metric))
	assert.Equal(t, float64(1), metric.GetCounter().GetValue())
}

func TestHub_UnknownSocket(t *testing.T) {
	hub := NewHub(nil, nil)
	assert.False(t, hub.Send(uuid.New(), []byte("x")))
	assert.Equal(t, 0, hub.Count())
}

func TestHub_UnregisterIgnoresStaleClient(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	conn := serverConn(t)

	first := newClient(conn, uuid.New())
	hub.register(first)

	stale := &Client{id: first.id}
	hub.unregister(stale)
	assert.Equal(t, 1, hub.Count())

	hub.unregister(first)
	assert.Equal(t, 0, hub.Count())
}

func TestClient_EnqueueFullBuffer(t *testing.T) {
	c := newClient(serverConn(t), uuid.New())
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.enqueue([]byte("frame")))
	}
	assert.ErrorIs(t, c.enqueue([]byte("overflow")), errSendBufferFull)

	c.close()
	assert.ErrorIs(t, c.enqueue([]byte("overflow")), errClientClosed)
}
