package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

var ErrClientClosed = errors.New("ipc: client closed")

// Client is a connection to a cpusysregsd daemon. Calls are serialised, so a
// Client is safe for concurrent use.
type Client struct {
	conn   net.Conn
	mu     sync.Mutex
	closed atomic.Bool
}

// ConnectTo connects to a daemon listening on socketPath.
func ConnectTo(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to cpusysregsd: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// Close shuts down the client connection.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// Call sends a request and waits for the response. The returned decoder is
// positioned after the status byte; a non-OK status or a MsgError reply is
// returned as *IPCError.
func (c *Client) Call(msgType uint16, payload []byte) (*Decoder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	if err := WriteMessage(c.conn, msgType, payload); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	header, resp, err := ReadMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if header.Type != MsgResponse && header.Type != MsgError {
		return nil, fmt.Errorf("unexpected response type 0x%04x", header.Type)
	}

	dec := NewDecoder(resp)
	ipcErr, err := DecodeError(dec)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if ipcErr != nil {
		return nil, ipcErr
	}
	if header.Type == MsgError {
		return nil, &IPCError{Code: ErrCodeUnknown, Message: "error reply with OK status"}
	}
	return dec, nil
}

// CallWithEncoder is a convenience method that uses an encoder for the request.
func (c *Client) CallWithEncoder(msgType uint16, encode func(*Encoder)) (*Decoder, error) {
	enc := NewEncoder()
	encode(enc)
	return c.Call(msgType, enc.Bytes())
}
