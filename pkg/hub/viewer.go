package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeTimeout = 5 * time.Second
	idleTimeout  = 45 * time.Second
	pingInterval = 30 * time.Second

	// Viewers only listen; anything they send is read and discarded.
	maxInbound = 512

	viewerBuffer = 16
)

// Viewer is one dashboard websocket subscribed to the hub.
type Viewer struct {
	hub    *Hub
	conn   *websocket.Conn
	addr   string
	frames chan []byte
}

// Serve attaches conn to h and blocks until the viewer goes away or the hub
// stops. Call it from the websocket handler.
func Serve(h *Hub, conn *websocket.Conn) {
	v := &Viewer{
		hub:    h,
		conn:   conn,
		addr:   conn.RemoteAddr().String(),
		frames: make(chan []byte, viewerBuffer),
	}
	if !h.join(v) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "dashboard stopping"),
			time.Now().Add(writeTimeout))
		return
	}

	go v.write()
	v.read()
}

// read watches for the viewer going away and keeps the idle deadline fresh.
func (v *Viewer) read() {
	defer func() {
		v.hub.leave(v)
		_ = v.conn.Close()
	}()

	v.conn.SetReadLimit(maxInbound)
	_ = v.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// write is the only goroutine writing frames to the connection.
func (v *Viewer) write() {
	keepalive := time.NewTicker(pingInterval)
	defer func() {
		keepalive.Stop()
		_ = v.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-v.frames:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = v.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "dashboard stopping"))
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-keepalive.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
