package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/readmit-risk-server/internal/domain"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 8
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers on other origins get the REST endpoint instead.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// staffingHub fans staffing summaries out to connected websocket clients.
// Slow clients are dropped rather than allowed to stall the broadcast.
type staffingHub struct {
	register   chan *staffingClient
	unregister chan *staffingClient
	summaries  chan *domain.CohortSummary
	clients    map[*staffingClient]struct{}
	done       chan struct{}
	log        *logrus.Logger
}

type staffingClient struct {
	conn *websocket.Conn
	send chan *domain.CohortSummary
}

func newStaffingHub(log *logrus.Logger) *staffingHub {
	return &staffingHub{
		register:   make(chan *staffingClient),
		unregister: make(chan *staffingClient),
		summaries:  make(chan *domain.CohortSummary, wsSendBuffer),
		clients:    make(map[*staffingClient]struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (h *staffingHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.log.WithField("clients", len(h.clients)).Debug("Staffing feed client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				close(client.send)
				delete(h.clients, client)
			}
			h.log.WithField("clients", len(h.clients)).Debug("Staffing feed client disconnected")
		case summary := <-h.summaries:
			for client := range h.clients {
				select {
				case client.send <- summary:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// broadcast queues a summary for delivery. It never blocks the caller; if
// the hub is saturated the summary is dropped.
func (h *staffingHub) broadcast(summary *domain.CohortSummary) {
	select {
	case h.summaries <- summary:
	default:
	}
}

// add registers a client, reporting false once the hub has stopped.
func (h *staffingHub) add(c *staffingClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// drop unregisters a client. Safe to call after the hub has stopped.
func (h *staffingHub) drop(c *staffingClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// handleStaffingFeed upgrades the connection and streams staffing summaries
// as they are produced by simulation calls.
func (s *Server) handleStaffingFeed(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithField("error", err).Warn("Websocket upgrade failed")
		return
	}

	client := &staffingClient{
		conn: conn,
		send: make(chan *domain.CohortSummary, wsSendBuffer),
	}
	if !s.hub.add(client) {
		conn.Close()
		return
	}

	go client.writeLoop()
	go client.readLoop(s.hub)
}

func (c *staffingClient) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case summary, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(summary); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are processed and a
// closed connection unregisters promptly.
func (c *staffingClient) readLoop(hub *staffingHub) {
	defer func() {
		hub.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
