package regaccess

import (
	"context"
	"io"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/regserver"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// LocalTransport dispatches commands to an in-process handler.
type LocalTransport struct {
	h *regserver.Handler
}

func NewLocal(h *regserver.Handler) *LocalTransport { return &LocalTransport{h: h} }

func (t *LocalTransport) Name() string { return "local:" + t.h.Backend().Name() }

func (t *LocalTransport) Do(ctx context.Context, cmd command.ID, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.h.Serve(cmd, payload)
}

func (t *LocalTransport) List(ctx context.Context) ([]sysreg.ID, error) {
	return t.h.Available(), nil
}

func (t *LocalTransport) Close() error {
	if c, ok := t.h.Backend().(io.Closer); ok {
		return c.Close()
	}
	return nil
}
