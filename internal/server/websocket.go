package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kode4food/sequin/internal/engine"
	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/log"
	"github.com/kode4food/sequin/pkg/util"
)

// Client streams the monitor events of one run to a WebSocket connection
type Client struct {
	server    *Server
	conn      *websocket.Conn
	consumer  engine.MonitorConsumer
	instance  *engine.Instance
	kinds     util.Set[api.MonitorKind]
	closeOnce sync.Once
}

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(c *gin.Context) {
	inst, ok := s.instance(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.InstanceID(inst.ID()),
			log.Error(err))
		return
	}

	client := &Client{
		server:   s,
		conn:     conn,
		consumer: s.engine.NewMonitorConsumer(),
		instance: inst,
		kinds:    util.Set[api.MonitorKind]{},
	}
	s.registerWebSocket(client)
	go client.run()
}

// Close terminates the connection. The client's stream loop ends once its
// reader observes the closed connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

func (c *Client) run() {
	defer func() {
		c.server.unregisterWebSocket(c)
		c.consumer.Close()
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	if !c.sendStatus(api.SocketSubscribed) {
		return
	}

	done := c.instance.Done()
	for {
		select {
		case message, ok := <-incoming:
			if !ok {
				return
			}
			if !c.handleSubscribe(message) {
				return
			}

		case ev, ok := <-c.consumer.Receive():
			if !ok {
				c.sendClose()
				return
			}
			if !c.sendEventIfMatched(ev) {
				return
			}

		case <-done:
			c.sendStatus(api.SocketEnded)
			c.sendClose()
			return

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readMessages(incoming chan []byte) {
	defer close(incoming)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		incoming <- message
	}
}

func (c *Client) handleSubscribe(message []byte) bool {
	var sub api.SubscribeRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		slog.Error("Failed to parse WebSocket message",
			log.InstanceID(c.instance.ID()),
			log.Error(err))
		return true
	}
	if sub.Type != api.SocketSubscribe {
		return true
	}

	c.kinds = util.SetOf(sub.Kinds...)
	return c.sendStatus(api.SocketSubscribed)
}

func (c *Client) sendStatus(kind string) bool {
	return c.write(&api.SocketMessage{
		Type:   kind,
		Status: c.instance.Status(),
	})
}

func (c *Client) sendEventIfMatched(ev *api.MonitorEvent) bool {
	if ev.InstanceID != c.instance.ID() {
		return true
	}
	if c.kinds.Len() > 0 && !c.kinds.Contains(ev.Kind) {
		return true
	}
	return c.write(&api.SocketMessage{
		Type:  api.SocketEvent,
		Event: ev,
	})
}

func (c *Client) write(msg *api.SocketMessage) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		slog.Error("WebSocket write failed",
			log.InstanceID(c.instance.ID()),
			slog.String("context", msg.Type),
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}
