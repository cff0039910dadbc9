package server

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsTransport adapts a gorilla websocket connection to session.Transport.
// gorilla permits one concurrent writer, so writes are serialized here.
type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (t *wsTransport) ReadJSON(v interface{}) error {
	return t.conn.ReadJSON(v)
}

func (t *wsTransport) WriteJSON(v interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return t.conn.Close()
}
