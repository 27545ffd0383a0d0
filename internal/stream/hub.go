package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/olivierh59500/particle-life-engine/internal/logging"
)

const writeTimeout = 10 * time.Second

// Hub broadcasts snapshot frames to every connected websocket client.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*websocket.Conn]bool
	upgrader   websocket.Upgrader
	broadcast  chan Frame
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
	log        logging.Logger
}

// NewHub creates a hub and starts its broadcaster goroutine.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	h := &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Frame, 4),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logger,
	}

	h.wg.Add(1)
	go h.run()
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues a frame for all clients. If the queue is full the frame
// is dropped: viewers only care about the latest state.
func (h *Hub) Publish(ctx context.Context, f Frame) error {
	select {
	case <-h.done:
		return fmt.Errorf("hub closed")
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case h.broadcast <- f:
	default:
		h.log.Debugf("stream: dropped frame %d", f.Generation)
	}
	return nil
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("stream: upgrade failed: %v", err)
		return
	}
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}
	h.log.Infof("stream: client %s connected", r.RemoteAddr)

	// clients never send anything useful; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
	h.log.Infof("stream: client %s disconnected", r.RemoteAddr)
}

func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case f := <-h.broadcast:
			data, err := f.JSON()
			if err != nil {
				h.log.Errorf("stream: %v", err)
				continue
			}
			h.send(data)
		}
	}
}

func (h *Hub) send(data []byte) {
	// collect connections to avoid holding the lock during writes
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	var failed []*websocket.Conn
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			failed = append(failed, conn)
			conn.Close()
		}
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, conn := range failed {
			delete(h.clients, conn)
		}
		h.mu.Unlock()
	}
}

// Close disconnects every client and stops the broadcaster.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
			delete(h.clients, conn)
		}
		h.mu.Unlock()
	})
	return nil
}
