package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/banshee-data/ergoscan/internal/measure"
	"github.com/banshee-data/ergoscan/internal/monitoring"
	"github.com/banshee-data/ergoscan/internal/pose"
	"github.com/banshee-data/ergoscan/internal/scan"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	// Replies queued per connection before the client is considered stuck.
	sendBuffer = 16
)

// socketMessage is one client message. A message carries either a batch of
// measurements or a single landmark frame.
type socketMessage struct {
	Measurements []measure.MeasurementPoint `json:"measurements,omitempty"`
	Landmarks    []pose.Landmark            `json:"landmarks,omitempty"`
	Width        int                        `json:"width,omitempty"`
	Height       int                        `json:"height,omitempty"`
	FrameID      int64                      `json:"frame_id,omitempty"`
	Timestamp    float64                    `json:"timestamp,omitempty"`
}

type socketError struct {
	Error string `json:"error"`
}

type sessionClient struct {
	conn    *websocket.Conn
	session *scan.Session
	send    chan []byte
}

func (s *Server) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("websocket upgrade failed for session %s: %v", sess.ID(), err)
		return
	}
	c := &sessionClient{conn: conn, session: sess, send: make(chan []byte, sendBuffer)}
	go c.writePump()
	c.readPump()
}

// handle applies one client message and returns the reply.
func (c *sessionClient) handle(data []byte) interface{} {
	var msg socketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return socketError{Error: "invalid message: " + err.Error()}
	}
	var err error
	if len(msg.Landmarks) > 0 {
		_, err = c.session.AddFrame(msg.Landmarks, scan.Frame{
			Width:     msg.Width,
			Height:    msg.Height,
			ID:        msg.FrameID,
			Timestamp: msg.Timestamp,
		})
	} else {
		err = c.session.AddBatch(msg.Measurements)
	}
	if err != nil {
		return socketError{Error: err.Error()}
	}
	return averagesOf(c.session)
}

func (c *sessionClient) readPump() {
	// writePump drains the queued replies and closes the connection.
	defer close(c.send)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				monitoring.Logf("websocket error on session %s: %v", c.session.ID(), err)
			}
			return
		}
		reply, err := json.Marshal(c.handle(data))
		if err != nil {
			monitoring.Logf("failed to encode websocket reply: %v", err)
			continue
		}
		select {
		case c.send <- reply:
		default:
			monitoring.Warnf("websocket client on session %s is not reading, closing", c.session.ID())
			return
		}
	}
}

func (c *sessionClient) writePump() {
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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
