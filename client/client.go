// Package client speaks the warehouse wire protocol from the customer side.
package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"warehouse/protocol"
)

// Client is one session with the controller. Holds made through it are
// returned to stock when it closes without confirming them.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// roundTrip sends req and reads one reply of type T.
func roundTrip[T protocol.Message](c *Client, req protocol.Message) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := protocol.WriteMessage(c.conn, req); err != nil {
		return zero, err
	}
	m, err := protocol.ReadMessage(c.r, 0)
	if err != nil {
		return zero, fmt.Errorf("client: read %s reply: %w", req.Tag(), err)
	}
	reply, ok := m.(T)
	if !ok {
		return zero, fmt.Errorf("client: got %s in reply to %s", m.Tag(), req.Tag())
	}
	return reply, nil
}

// Search finds items by name regex and/or id (id < 0 for none).
func (c *Client) Search(pattern string, id int) (*protocol.SearchResponse, error) {
	return roundTrip[*protocol.SearchResponse](c, &protocol.Search{ItemName: pattern, ItemID: id})
}

// Add holds qty units of the one item matching pattern or id.
func (c *Client) Add(pattern string, id, qty int) (*protocol.AddResponse, error) {
	return roundTrip[*protocol.AddResponse](c, &protocol.Add{ItemName: pattern, ItemID: id, Quantity: qty})
}

func (c *Client) Remove(id, qty int) (*protocol.RemoveResponse, error) {
	return roundTrip[*protocol.RemoveResponse](c, &protocol.Remove{ItemID: id, Quantity: qty})
}

// Confirm orders the given held lines, or the whole cart when none are given.
func (c *Client) Confirm(lines ...protocol.CartLine) (*protocol.ConfirmOrderResponse, error) {
	return roundTrip[*protocol.ConfirmOrderResponse](c, &protocol.ConfirmOrder{Cart: lines})
}

func (c *Client) Cancel(orderNum int64) (*protocol.CancelOrderResponse, error) {
	return roundTrip[*protocol.CancelOrderResponse](c, &protocol.CancelOrder{OrderNum: orderNum})
}

// Close says goodbye and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	werr := protocol.WriteMessage(c.conn, &protocol.Goodbye{})
	if err := c.conn.Close(); err != nil {
		return err
	}
	return werr
}
