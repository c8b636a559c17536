package ipc

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"

	"golang.org/x/net/nettest"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, MsgGet, []byte{0x02, 0x00}); err != nil {
		t.Fatal(err)
	}
	if got := buf.Bytes()[:HeaderSize]; !bytes.Equal(got, []byte{0x02, 0x00, 0, 0, 0, 2}) {
		t.Fatalf("header = % x", got)
	}
	h, payload, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.Type != MsgGet || !bytes.Equal(payload, []byte{0x02, 0x00}) {
		t.Fatalf("got %+v % x", h, payload)
	}
}

func TestReadHeaderRejectsHugeLength(t *testing.T) {
	var buf bytes.Buffer
	WriteHeader(&buf, Header{Type: MsgSet, Length: MaxPayload + 1})
	if _, err := ReadHeader(&buf); err == nil {
		t.Fatal("oversized payload accepted")
	}
}

func TestDecoderShortReads(t *testing.T) {
	dec := NewDecoder([]byte{0, 0, 0, 9, 'a'})
	if _, err := dec.String(); err == nil {
		t.Fatal("truncated string decoded")
	}
	dec = NewDecoder([]byte{1})
	if _, err := dec.Uint16(); err == nil {
		t.Fatal("truncated uint16 decoded")
	}
}

func newTestServer(t *testing.T, mux *Mux) *Client {
	t.Helper()
	path, err := nettest.LocalPath()
	if err != nil {
		t.Fatal(err)
	}
	srv, err := NewServer(path, mux.Handler(), nil)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	client, err := ConnectTo(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientServerRoundTrip(t *testing.T) {
	mux := NewMux()
	mux.Handle(MsgHello, func(dec *Decoder) ([]byte, error) {
		v, err := dec.String()
		if err != nil {
			return nil, err
		}
		return NewResponseBuilder().String("echo " + v).Build(), nil
	})
	mux.Handle(MsgGet, func(dec *Decoder) ([]byte, error) {
		return nil, &IPCError{Code: ErrCodeDenied, Message: "no", Op: "get"}
	})
	client := newTestServer(t, mux)

	dec, err := client.CallWithEncoder(MsgHello, func(e *Encoder) { e.String("v1.1.0") })
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := dec.String(); s != "echo v1.1.0" {
		t.Fatalf("reply = %q", s)
	}

	_, err = client.Call(MsgGet, nil)
	var ipcErr *IPCError
	if !errors.As(err, &ipcErr) || ipcErr.Code != ErrCodeDenied || ipcErr.Op != "get" {
		t.Fatalf("error = %v", err)
	}

	_, err = client.Call(0x7777, nil)
	if !errors.As(err, &ipcErr) || ipcErr.Code != ErrCodeInvalidArgument {
		t.Fatalf("unknown type error = %v", err)
	}

	// The connection survives handler errors.
	if _, err := client.CallWithEncoder(MsgHello, func(e *Encoder) { e.String("again") }); err != nil {
		t.Fatal(err)
	}

	client.Close()
	if _, err := client.Call(MsgHello, nil); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("call after close = %v", err)
	}
}

func TestServerFromListenerPipe(t *testing.T) {
	mux := NewMux()
	mux.Handle(MsgList, func(dec *Decoder) ([]byte, error) {
		return NewResponseBuilder().Uint16(2).Build(), nil
	})
	ln, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Skipf("no local listener: %v", err)
	}
	srv := NewServerFromListener(ln, mux.Handler(), nil)
	go srv.Serve()
	defer srv.Close()

	conn, err := net.Dial(ln.Addr().Network(), ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(conn)
	defer client.Close()

	dec, err := client.Call(MsgList, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := dec.Uint16(); n != 2 {
		t.Fatalf("n = %d", n)
	}
}
