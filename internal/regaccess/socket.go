package regaccess

import (
	"context"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/feature"
	"github.com/tinyrange/cpusysregs/internal/ipc"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// SocketTransport talks to cpusysregsd over its Unix socket.
type SocketTransport struct {
	client *ipc.Client
	path   string
	peer   string
}

// DialSocket connects to path and exchanges catalog versions.
func DialSocket(ctx context.Context, path string) (*SocketTransport, error) {
	client, err := ipc.ConnectTo(ctx, path)
	if err != nil {
		return nil, &ChannelError{Kind: KindTransport, Op: "dial", Err: err}
	}
	t, err := newSocketTransport(client, path)
	if err != nil {
		client.Close()
		return nil, err
	}
	return t, nil
}

func newSocketTransport(client *ipc.Client, path string) (*SocketTransport, error) {
	dec, err := client.CallWithEncoder(ipc.MsgHello, func(enc *ipc.Encoder) {
		enc.String(sysreg.Version)
	})
	if err != nil {
		return nil, classify(err, "hello", "")
	}
	peer, err := dec.String()
	if err != nil {
		return nil, &ChannelError{Kind: KindTransport, Op: "hello", Err: err}
	}
	if err := compatible(peer); err != nil {
		return nil, &ChannelError{Kind: KindUnsupported, Op: "hello", Err: err}
	}
	return &SocketTransport{client: client, path: path, peer: peer}, nil
}

func (t *SocketTransport) Name() string { return "socket:" + t.path }

// PeerVersion is the catalog version the daemon announced.
func (t *SocketTransport) PeerVersion() string { return t.peer }

func (t *SocketTransport) Do(ctx context.Context, cmd command.ID, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := ipc.MsgGet
	switch cmd.Direction() {
	case command.Set:
		msg = ipc.MsgSet
	case command.Exec:
		msg = ipc.MsgExec
	}
	dec, err := t.client.CallWithEncoder(msg, func(enc *ipc.Encoder) {
		enc.Uint16(uint16(cmd))
		enc.WriteBytes(payload)
	})
	if err != nil {
		return nil, err
	}
	if msg == ipc.MsgSet {
		return nil, nil
	}
	return dec.Bytes()
}

func (t *SocketTransport) List(ctx context.Context) ([]sysreg.ID, error) {
	dec, err := t.client.Call(ipc.MsgList, nil)
	if err != nil {
		return nil, err
	}
	raw, err := dec.Bytes()
	if err != nil {
		return nil, err
	}
	ids := make([]sysreg.ID, 0, len(raw))
	for _, b := range raw {
		id := sysreg.ID(b)
		// A newer daemon may serve registers this catalog does not know.
		if _, ok := sysreg.Lookup(id); !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Raw asks the daemon for the feature ID registers in one round trip.
func (t *SocketTransport) Raw(ctx context.Context) (feature.Raw, error) {
	if err := ctx.Err(); err != nil {
		return feature.Raw{}, err
	}
	dec, err := t.client.Call(ipc.MsgFeatures, nil)
	if err != nil {
		return feature.Raw{}, err
	}
	var raw feature.Raw
	for _, dst := range []*uint64{&raw.PFR0, &raw.PFR1, &raw.ISAR0, &raw.ISAR1, &raw.ISAR2} {
		if *dst, err = dec.Uint64(); err != nil {
			return feature.Raw{}, err
		}
	}
	return raw, nil
}

func (t *SocketTransport) Close() error { return t.client.Close() }
