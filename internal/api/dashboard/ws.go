package dashboard

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/sacudo/sacudo/internal/app/dispatcher"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is same-origin in production and proxied in dev.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// wsClient adapts one websocket connection to the broadcaster's Stream
// interface. Writes are serialized; a dead peer is detected through the
// ping/pong cycle and unsubscribed by the read loop.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) Send(u *dispatcher.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(u)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Debug().Msgf("dashboard: websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn}
	subscriptionID := s.dispatcher.Events().Subscribe(client)
	zlog.Info().Str("remote", conn.RemoteAddr().String()).Msg("dashboard: websocket subscriber connected")

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := client.ping(); err != nil {
					conn.Close()
					return
				}
			case <-done:
				return
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The feed is push-only; the read loop exists to notice the peer
	// going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	s.dispatcher.Events().Unsubscribe(subscriptionID)
	conn.Close()
	zlog.Info().Str("remote", conn.RemoteAddr().String()).Msg("dashboard: websocket subscriber disconnected")
}
