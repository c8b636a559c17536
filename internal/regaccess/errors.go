package regaccess

import (
	"errors"
	"fmt"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/ipc"
	"github.com/tinyrange/cpusysregs/internal/regserver"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// Kind classifies a failure of the privileged side.
type Kind uint8

const (
	KindTransport Kind = iota + 1
	KindDenied
	KindUnsupported
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDenied:
		return "denied"
	case KindUnsupported:
		return "unsupported"
	case KindInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrTransport   = errors.New("control channel failure")
	ErrDenied      = errors.New("privileged side denied the request")
	ErrUnsupported = errors.New("request unsupported by the privileged side")
	ErrInvalid     = errors.New("privileged side rejected the request")
)

func (k Kind) sentinel() error {
	switch k {
	case KindDenied:
		return ErrDenied
	case KindUnsupported:
		return ErrUnsupported
	case KindInvalid:
		return ErrInvalid
	default:
		return ErrTransport
	}
}

// ChannelError is a failure reported by, or while talking to, the privileged
// side. Requests the catalog rejects never produce one; those come back as
// *sysreg.CatalogError before anything is sent.
type ChannelError struct {
	Kind     Kind
	Op       string
	Register string
	Err      error
}

func (e *ChannelError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Register == "" {
		return fmt.Sprintf("regaccess: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("regaccess: %s %s: %s: %v", e.Op, e.Register, e.Kind, e.Err)
}

func (e *ChannelError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *ChannelError) Is(target error) bool {
	return e != nil && target == e.Kind.sentinel()
}

// classify maps a transport error onto a ChannelError.
func classify(err error, op, register string) error {
	if err == nil {
		return nil
	}
	var chErr *ChannelError
	if errors.As(err, &chErr) {
		if chErr.Register != "" || register == "" {
			return chErr
		}
		// The transport may hand the same error to other callers.
		named := *chErr
		named.Register = register
		return &named
	}
	return &ChannelError{Kind: kindOf(err), Op: op, Register: register, Err: err}
}

func kindOf(err error) Kind {
	var ipcErr *ipc.IPCError
	if errors.As(err, &ipcErr) {
		switch ipcErr.Code {
		case ipc.ErrCodeDenied:
			return KindDenied
		case ipc.ErrCodeUnsupported:
			return KindUnsupported
		case ipc.ErrCodeInvalidArgument:
			return KindInvalid
		default:
			return KindTransport
		}
	}

	var catErr *sysreg.CatalogError
	switch {
	case errors.Is(err, regserver.ErrDenied):
		return KindDenied
	case errors.Is(err, regserver.ErrUnsupported):
		return KindUnsupported
	case errors.As(err, &catErr),
		errors.Is(err, regserver.ErrPayloadSize),
		errors.Is(err, command.ErrMalformed):
		return KindInvalid
	}

	if kind, ok := errnoKind(err); ok {
		return kind
	}
	return KindTransport
}
