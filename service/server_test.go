package service

import (
	"bufio"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse/client"
	"warehouse/inventory"
	"warehouse/orders"
	"warehouse/pipeline"
	"warehouse/protocol"
)

type fixture struct {
	core   *Core
	server *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := inventory.NewLedger(0, nil)
	require.NoError(t, ledger.Add(inventory.ItemEntry{ID: 7, Name: "Widget", Available: 10, UnitCost: decimal.RequireFromString("2.5"), UnitWeight: 1}))
	require.NoError(t, ledger.Add(inventory.ItemEntry{ID: 8, Name: "Gizmo", Available: 3}))

	core := &Core{Ledger: ledger, Orders: orders.NewBook(nil), Pipeline: pipeline.New()}
	srv := NewServer(Config{Addr: "127.0.0.1:0", MaxFrameSize: 1024, LogFunc: t.Logf}, core)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Error("server did not stop")
		}
	})
	return &fixture{core: core, server: srv}
}

func (f *fixture) dial(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.Dial(context.Background(), f.server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func (f *fixture) item(t *testing.T, id int) inventory.ItemEntry {
	t.Helper()
	e, err := f.core.Ledger.Get(id)
	require.NoError(t, err)
	return e
}

func TestHoldConfirmCancel(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	add, err := c.Add("", 7, 4)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, add.Status)
	assert.Equal(t, "Item placed on hold successfully!", add.Info)
	require.Len(t, add.Results, 1)
	assert.Equal(t, 6, add.Results[0].Available)
	assert.Equal(t, "2.50", add.Results[0].Price)

	w := f.item(t, 7)
	assert.Equal(t, 6, w.Available)
	assert.Equal(t, 4, w.OnHold)

	conf, err := c.Confirm()
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, conf.Status)
	assert.Equal(t, orders.FirstNumber, conf.OrderNum)

	o, err := f.core.Orders.Get(conf.OrderNum)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, o.Status)
	assert.Equal(t, []orders.Line{{ItemID: 7, Name: "Widget", Quantity: 4}}, o.Lines)
	assert.Equal(t, 1, f.core.Pipeline.Intake.Len())

	cancel, err := c.Cancel(conf.OrderNum)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, cancel.Status)
	assert.Equal(t, "Cancelled", cancel.Info)

	o, _ = f.core.Orders.Get(conf.OrderNum)
	assert.Equal(t, orders.StatusCancelled, o.Status)
	w = f.item(t, 7)
	assert.Equal(t, 10, w.Available)
	assert.Equal(t, 0, w.OnHold)

	again, err := c.Cancel(conf.OrderNum)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusError, again.Status)
	assert.Equal(t, "Already Cancelled", again.Info)

	missing, err := c.Cancel(4242)
	require.NoError(t, err)
	assert.Equal(t, "Order not found", missing.Info)
}

func TestCancelAfterLoadingRefused(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	_, err := c.Add("Gizmo", inventory.NoID, 1)
	require.NoError(t, err)
	conf, err := c.Confirm()
	require.NoError(t, err)
	_, err = f.core.Orders.Transition(conf.OrderNum, orders.StatusConfirmed, orders.StatusLoading, "test")
	require.NoError(t, err)

	resp, err := c.Cancel(conf.OrderNum)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "Enroute to Delivery", resp.Info)
	assert.Equal(t, 1, f.item(t, 8).OnHold)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	resp, err := c.Search("Widget", inventory.NoID)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 7, resp.Results[0].ID)

	resp, err = c.Search("Sprocket", inventory.NoID)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Empty(t, resp.Results)

	resp, err = c.Search("", 8)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Gizmo", resp.Results[0].Name)
}

func TestAddRefusals(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	// matches both items
	resp, err := c.Add("i", inventory.NoID, 1)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "Unable to add product", resp.Info)
	assert.Len(t, resp.Results, 2)

	resp, err = c.Add("", 8, 4)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusError, resp.Status)

	assert.Equal(t, 3, f.item(t, 8).Available)
	assert.Equal(t, 10, f.item(t, 7).Available)
}

func TestConfirmNeedsHeldLines(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	resp, err := c.Confirm()
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "Cart is empty", resp.Info)

	_, err = c.Add("", 7, 2)
	require.NoError(t, err)
	resp, err = c.Confirm(protocol.CartLine{ItemID: 7, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusError, resp.Status)

	resp, err = c.Confirm(protocol.CartLine{ItemID: 7, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)

	// one unit is still in the cart
	resp, err = c.Confirm()
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, orders.FirstNumber+1, resp.OrderNum)
	assert.Equal(t, 2, f.core.Pipeline.Intake.Len())
}

func TestRemoveReturnsStock(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	_, err := c.Add("", 7, 3)
	require.NoError(t, err)
	resp, err := c.Remove(7, 2)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, 9, f.item(t, 7).Available)

	resp, err = c.Remove(7, 5)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, 1, f.item(t, 7).OnHold)
}

func TestDisconnectReturnsUnconfirmedHolds(t *testing.T) {
	f := newFixture(t)
	c, err := client.Dial(context.Background(), f.server.Addr())
	require.NoError(t, err)

	_, err = c.Add("", 7, 5)
	require.NoError(t, err)
	_, err = c.Add("", 8, 1)
	require.NoError(t, err)
	_, err = c.Confirm(protocol.CartLine{ItemID: 8, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	require.Eventually(t, func() bool {
		return f.item(t, 7).OnHold == 0 && f.server.Sessions() == 0
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, 10, f.item(t, 7).Available)
	// confirmed stock stays held for the order
	assert.Equal(t, 1, f.item(t, 8).OnHold)
}

func writeFrame(t *testing.T, conn net.Conn, tag byte, payload string) {
	t.Helper()
	buf := make([]byte, 5+len(payload))
	buf[0] = tag
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	_, err := conn.Write(buf)
	require.NoError(t, err)
}

func TestBadFramesStayLocal(t *testing.T) {
	f := newFixture(t)
	conn, err := net.Dial("tcp", f.server.Addr())
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	// unknown tag: logged, no reply, connection continues
	writeFrame(t, conn, 200, `{}`)
	// malformed payload: ERROR reply of the matching kind
	writeFrame(t, conn, byte(protocol.TagSearch), `{"item_ID":`)
	m, err := protocol.ReadMessage(r, 0)
	require.NoError(t, err)
	sr, ok := m.(*protocol.SearchResponse)
	require.True(t, ok, "got %T", m)
	assert.Equal(t, protocol.StatusError, sr.Status)

	require.NoError(t, protocol.WriteMessage(conn, &protocol.Search{ItemName: "Gizmo", ItemID: -1}))
	m, err = protocol.ReadMessage(r, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, m.(*protocol.SearchResponse).Status)

	// oversized frame closes only this connection
	writeFrame(t, conn, byte(protocol.TagSearch), string(make([]byte, 2048)))
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err = protocol.ReadMessage(r, 0)
	assert.Error(t, err)

	other := f.dial(t)
	resp, err := other.Search("Widget", -1)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)
}

func TestAddByNameWithoutItemID(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.core.Ledger.Add(inventory.ItemEntry{ID: 0, Name: "Bolt", Available: 50}))

	conn, err := net.Dial("tcp", f.server.Addr())
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	writeFrame(t, conn, byte(protocol.TagAdd), `{"item_name_regex":"Widget","item_quantity":2}`)
	m, err := protocol.ReadMessage(r, 0)
	require.NoError(t, err)
	add, ok := m.(*protocol.AddResponse)
	require.True(t, ok, "got %T", m)
	assert.Equal(t, protocol.StatusOK, add.Status)
	require.Len(t, add.Results, 1)
	assert.Equal(t, 7, add.Results[0].ID)

	writeFrame(t, conn, byte(protocol.TagSearch), `{"item_name_regex":"Gizmo"}`)
	m, err = protocol.ReadMessage(r, 0)
	require.NoError(t, err)
	sr := m.(*protocol.SearchResponse)
	require.Len(t, sr.Results, 1)
	assert.Equal(t, "Gizmo", sr.Results[0].Name)

	assert.Equal(t, 50, f.item(t, 0).Available)
	assert.Equal(t, 8, f.item(t, 7).Available)
}
