package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/olivierh59500/particle-life-engine/internal/distributor"
	"github.com/olivierh59500/particle-life-engine/internal/physics"
	"github.com/olivierh59500/particle-life-engine/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	p, err := physics.New(physics.DefaultAccelerator,
		physics.WithSeed(5), physics.WithParticleCount(12), physics.WithMatrixSize(3), physics.WithWorkers(2))
	require.NoError(t, err)
	defer p.Kill()
	d := distributor.New(2)
	defer d.Kill()

	var s snapshot.Snapshot
	require.NoError(t, s.Take(p, d))
	return &s
}

func TestNewFrame(t *testing.T) {
	s := testSnapshot(t)
	f := NewFrame(s, 120)

	assert.Equal(t, s.Generation, f.Generation)
	assert.Equal(t, 12, f.ParticleCount)
	assert.Equal(t, s.Positions, f.Positions)
	assert.Equal(t, "wrap", f.Boundary)
	assert.Len(t, f.Matrix, 3)
	assert.Equal(t, 120.0, f.StepRate)

	// frames do not alias the snapshot buffers
	s.Positions[0] = 42
	assert.NotEqual(t, 42.0, f.Positions[0])

	data, err := f.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"particle_count":12`)
}

func TestHub_BroadcastsToClients(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, time.Millisecond)

	f := NewFrame(testSnapshot(t), 60)
	require.NoError(t, h.Publish(context.Background(), f))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Frame
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, f, got)

	conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, time.Millisecond)
}

func TestHub_PublishAfterClose(t *testing.T) {
	h := NewHub(nil)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Publish(ctx, Frame{})
	assert.Error(t, err)
}
