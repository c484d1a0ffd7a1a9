package wsbus

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536

	clientSendBufferSize = 512
)

// originChecker allows any origin listed in ALLOWED_ORIGINS (comma
// separated), or everything when it's unset — matching the common
// local-dashboard deployment where the frontend and API share a host.
type originChecker struct {
	allowed  map[string]struct{}
	allowAll bool
}

var defaultOriginChecker = newOriginChecker()

func newOriginChecker() *originChecker {
	oc := &originChecker{allowed: make(map[string]struct{})}

	env := os.Getenv("ALLOWED_ORIGINS")
	if env == "" || env == "*" {
		oc.allowAll = true
		return oc
	}
	for _, origin := range strings.Split(env, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			oc.allowed[origin] = struct{}{}
		}
	}
	return oc
}

func (oc *originChecker) Check(origin string) bool {
	if origin == "" {
		return true // non-browser clients
	}
	if oc.allowAll {
		return true
	}
	_, ok := oc.allowed[origin]
	return ok
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:    4096,
	WriteBufferSize:   4096,
	EnableCompression: true,
	CheckOrigin: func(r *http.Request) bool {
		return defaultOriginChecker.Check(r.Header.Get("Origin"))
	},
}

// Client is one connected dashboard websocket connection.
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
	log  *zap.SugaredLogger
}

// readPump discards inbound client messages (the dashboard stream is
// push-only) but still drives the read deadline/pong handling needed to
// detect a dead connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debugw("websocket read error", "error", err)
			}
			return
		}
	}
}

// writePump drains c.send to the connection and pings on pingPeriod to
// keep the connection alive through idle intervals.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain any messages queued behind this one into the same
			// frame, non-blocking, so a burst of events doesn't become
			// one websocket write per message.
		drain:
			for {
				select {
				case msg, ok := <-c.send:
					if !ok {
						break drain
					}
					w.Write([]byte{'\n'})
					w.Write(msg)
				default:
					break drain
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades the request to a websocket connection, registers a
// new Client with hub, and starts its read/write pumps.
func ServeWS(hub *Hub, log *zap.SugaredLogger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugw("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn: conn,
		hub:  hub,
		send: make(chan []byte, clientSendBufferSize),
		log:  log,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
