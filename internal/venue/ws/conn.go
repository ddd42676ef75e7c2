package ws

import (
	"context"
	"encoding/json"

	"nhooyr.io/websocket"
)

// Conn is a thin wrapper over a single websocket connection. It carries no
// reconnect logic; stream owners redial after a read error.
type Conn struct {
	conn *websocket.Conn
}

func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn}, nil
}

func (c *Conn) WriteJSON(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *Conn) WriteText(ctx context.Context, s string) error {
	return c.conn.Write(ctx, websocket.MessageText, []byte(s))
}

func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}
