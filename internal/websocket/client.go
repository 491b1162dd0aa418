package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WSClient struct {
	Conn     *websocket.Conn
	Message  chan *WSMessage
	ID       string
	RoomID   string
	done     chan struct{} // closed by readMessage to stop the writer and pinger
	mu       sync.Mutex    // guards Conn writes
	isClosed bool          // set once the writer has closed Conn
	log      zerolog.Logger
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteMessage(websocket.PingMessage, nil)
			cl.mu.Unlock()

			if err != nil {
				cl.log.Debug().Err(err).Str("client", cl.ID).Msg("ping failed")
				return
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	defer func() {
		cl.mu.Lock()
		cl.isClosed = true
		cl.Conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.done:
			return
		case msg, ok := <-cl.Message:
			if !ok {
				return
			}

			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			// Content is already a JSON event published by the services.
			err := cl.Conn.WriteMessage(websocket.TextMessage, []byte(msg.Content))
			cl.mu.Unlock()

			if err != nil {
				cl.log.Debug().Err(err).Str("client", cl.ID).Msg("write failed")
				return
			}
		}
	}
}

// readMessage only watches for disconnects; customers and agents send
// messages through the HTTP API.
func (cl *WSClient) readMessage(hub *Hub) {
	defer func() {
		if r := recover(); r != nil {
			cl.log.Error().Interface("panic", r).Str("client", cl.ID).Msg("recovered in readMessage")
		}
		// Signal keepAlive and writeMessage to shut down.
		close(cl.done)
		hub.Unregister <- cl
		cl.log.Debug().Str("client", cl.ID).Str("room", cl.RoomID).Msg("client disconnected")
	}()

	// Inbound frames are only control traffic, keep the limit small.
	cl.Conn.SetReadLimit(4 * 1024)

	for {
		if _, _, err := cl.Conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				cl.log.Debug().Err(err).Str("client", cl.ID).Msg("read failed")
			}
			return
		}
	}
}
