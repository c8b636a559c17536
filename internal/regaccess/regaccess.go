// Package regaccess is the unprivileged side of the control channel. A Client
// turns register requests into command IDs and sends them over a Transport:
// the platform driver, the cpusysregsd socket or an in-process handler.
package regaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/mod/semver"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/feature"
	"github.com/tinyrange/cpusysregs/internal/ipc"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// Transport carries one command to the privileged side. For Get the payload
// is empty and the reply carries cmd.PayloadSize() bytes; for Set the reply is
// empty; for Exec both carry cmd.PayloadSize() bytes. Implementations must be
// safe for concurrent use.
type Transport interface {
	Name() string
	Do(ctx context.Context, cmd command.ID, payload []byte) ([]byte, error)
	Close() error
}

// Versioned is implemented by transports that negotiated a catalog version
// with their peer.
type Versioned interface {
	PeerVersion() string
}

// Lister is implemented by transports that can ask the privileged side which
// registers it serves.
type Lister interface {
	List(ctx context.Context) ([]sysreg.ID, error)
}

// RawSource is implemented by transports that fetch the feature ID registers
// in a single request.
type RawSource interface {
	Raw(ctx context.Context) (feature.Raw, error)
}

// Client reads and writes catalog registers through a Transport.
type Client struct {
	t   Transport
	log *slog.Logger
}

// New wraps t. A nil log falls back to slog.Default().
func New(t Transport, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{t: t, log: log}
}

// Open connects to the platform driver, falling back to the cpusysregsd
// socket when no driver is loaded.
func Open(ctx context.Context, log *slog.Logger) (*Client, error) {
	t, err := openPlatform()
	if err == nil {
		return New(t, log), nil
	}
	st, sockErr := DialSocket(ctx, ipc.DefaultSocketPath())
	if sockErr != nil {
		return nil, errors.Join(err, sockErr)
	}
	return New(st, log), nil
}

func (c *Client) Transport() Transport { return c.t }

func (c *Client) Close() error { return c.t.Close() }

func (c *Client) prepare(id sysreg.ID, dir command.Direction) (sysreg.Entry, command.ID, error) {
	e, err := sysreg.Get(id)
	if err != nil {
		return sysreg.Entry{}, 0, err
	}
	cmd, err := command.For(id, dir)
	if err != nil {
		return sysreg.Entry{}, 0, err
	}
	if v, ok := c.t.(Versioned); ok {
		if peer := v.PeerVersion(); peer != "" && !e.AvailableIn(peer) {
			return sysreg.Entry{}, 0, &ChannelError{
				Kind:     KindUnsupported,
				Op:       dir.String(),
				Register: e.Name,
				Err:      fmt.Errorf("added in catalog %s, peer speaks %s", e.Since, peer),
			}
		}
	}
	return e, cmd, nil
}

// Read returns the current value of id.
func (c *Client) Read(ctx context.Context, id sysreg.ID) (sysreg.Value, error) {
	e, cmd, err := c.prepare(id, command.Get)
	if err != nil {
		return sysreg.Value{}, err
	}
	resp, err := c.t.Do(ctx, cmd, nil)
	if err != nil {
		c.log.Debug("read failed", "register", e.Name, "transport", c.t.Name(), "error", err)
		return sysreg.Value{}, classify(err, "get", e.Name)
	}
	v, err := sysreg.UnmarshalPayload(e.Width(), resp)
	if err != nil {
		return sysreg.Value{}, &ChannelError{Kind: KindTransport, Op: "get", Register: e.Name, Err: err}
	}
	return v, nil
}

// Write stores v into id.
func (c *Client) Write(ctx context.Context, id sysreg.ID, v sysreg.Value) error {
	e, cmd, err := c.prepare(id, command.Set)
	if err != nil {
		return err
	}
	if e.Width() == sysreg.Single && v.High != 0 {
		return &sysreg.CatalogError{Op: "set", ID: id, Name: e.Name, Err: errors.New("high half set on a single register")}
	}
	if _, err := c.t.Do(ctx, cmd, sysreg.MarshalPayload(e.Width(), v)); err != nil {
		c.log.Debug("write failed", "register", e.Name, "transport", c.t.Name(), "error", err)
		return classify(err, "set", e.Name)
	}
	return nil
}

// Exec runs a pointer authentication instruction on the privileged side,
// with its keys, and returns args with Value replaced by the result.
func (c *Client) Exec(ctx context.Context, i command.Instr, args command.InstrArgs) (command.InstrArgs, error) {
	cmd, err := command.ForInstr(i)
	if err != nil {
		return command.InstrArgs{}, err
	}
	resp, err := c.t.Do(ctx, cmd, args.Marshal())
	if err != nil {
		c.log.Debug("exec failed", "instr", i.String(), "transport", c.t.Name(), "error", err)
		return command.InstrArgs{}, classify(err, "exec", i.String())
	}
	out, err := command.UnmarshalInstrArgs(resp)
	if err != nil {
		return command.InstrArgs{}, &ChannelError{Kind: KindTransport, Op: "exec", Register: i.String(), Err: err}
	}
	return out, nil
}

// ReadName is Read by case-insensitive register name.
func (c *Client) ReadName(ctx context.Context, name string) (sysreg.Value, error) {
	e, ok := sysreg.ByName(name)
	if !ok {
		return sysreg.Value{}, &sysreg.CatalogError{Op: "get", Name: name, Err: sysreg.ErrUnknownRegister}
	}
	return c.Read(ctx, e.ID)
}

// Raw reads the ID registers the feature detector consumes. Values are read
// fresh on every call.
func (c *Client) Raw(ctx context.Context) (feature.Raw, error) {
	if src, ok := c.t.(RawSource); ok {
		raw, err := src.Raw(ctx)
		if err != nil {
			return feature.Raw{}, classify(err, "features", "")
		}
		return raw, nil
	}

	var raw feature.Raw
	for _, r := range []struct {
		id  sysreg.ID
		dst *uint64
	}{
		{sysreg.IDAA64PFR0, &raw.PFR0},
		{sysreg.IDAA64PFR1, &raw.PFR1},
		{sysreg.IDAA64ISAR0, &raw.ISAR0},
		{sysreg.IDAA64ISAR1, &raw.ISAR1},
		{sysreg.IDAA64ISAR2, &raw.ISAR2},
	} {
		v, err := c.Read(ctx, r.id)
		if err != nil {
			return feature.Raw{}, err
		}
		*r.dst = v.Low
	}
	return raw, nil
}

// Features runs the feature detector over freshly read ID registers.
func (c *Client) Features(ctx context.Context) (feature.Set, error) {
	raw, err := c.Raw(ctx)
	if err != nil {
		return feature.Set{}, err
	}
	return feature.Detect(raw), nil
}

// Available lists the registers the privileged side serves. Transports that
// cannot enumerate report every readable catalog register.
func (c *Client) Available(ctx context.Context) ([]sysreg.ID, error) {
	if l, ok := c.t.(Lister); ok {
		ids, err := l.List(ctx)
		if err != nil {
			return nil, classify(err, "list", "")
		}
		return ids, nil
	}
	var ids []sysreg.ID
	for _, e := range sysreg.All() {
		if e.Readable() {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

// compatible reports whether a peer catalog version can serve this client.
func compatible(peer string) error {
	if !semver.IsValid(peer) {
		return fmt.Errorf("invalid catalog version %q", peer)
	}
	if semver.Major(peer) != semver.Major(sysreg.Version) {
		return fmt.Errorf("catalog %s is incompatible with %s", peer, sysreg.Version)
	}
	return nil
}
