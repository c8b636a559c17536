// Package regserver is the privileged side of the control channel: it
// validates commands, checks CPU feature requirements and performs the
// register transfer through a Backend.
package regserver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/feature"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

var (
	// ErrDenied means the backend refuses the transfer (EPERM).
	ErrDenied = errors.New("access denied")
	// ErrUnsupported means the register or a required CPU feature is absent
	// (ENOTSUP).
	ErrUnsupported = errors.New("not supported")
	// ErrPayloadSize means the request payload does not match the command.
	ErrPayloadSize = errors.New("payload size mismatch")
)

// Backend performs register transfers.
type Backend interface {
	Name() string
	Read(e sysreg.Entry) (sysreg.Value, error)
	Write(e sysreg.Entry, v sysreg.Value) error
}

// Executor is implemented by backends that can run pointer authentication
// instructions. The result replaces args.Value.
type Executor interface {
	Exec(i command.Instr, args command.InstrArgs) (command.InstrArgs, error)
}

// Selective is implemented by backends that know up front which registers
// they can reach.
type Selective interface {
	Supports(e sysreg.Entry) bool
}

// Handler dispatches commands to a Backend.
type Handler struct {
	backend Backend
	log     *slog.Logger
	// writable restricts Set commands when non-nil.
	writable map[sysreg.ID]bool
}

type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithWritable limits Set commands to the listed registers.
func WithWritable(ids ...sysreg.ID) Option {
	return func(h *Handler) {
		h.writable = make(map[sysreg.ID]bool, len(ids))
		for _, id := range ids {
			h.writable[id] = true
		}
	}
}

func NewHandler(b Backend, opts ...Option) *Handler {
	h := &Handler{backend: b, log: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Backend returns the backend the handler dispatches to.
func (h *Handler) Backend() Backend { return h.backend }

// Serve executes one command. For Get the payload must be empty and the
// response carries the value; for Set the payload carries the value and the
// response is empty. Exec commands carry InstrArgs both ways.
func (h *Handler) Serve(cmd command.ID, payload []byte) ([]byte, error) {
	if cmd.IsInstr() {
		return h.serveInstr(cmd, payload)
	}
	id, dir, err := command.Parse(cmd)
	if err != nil {
		h.log.Warn("rejected command", "cmd", fmt.Sprintf("0x%03x", uint16(cmd)), "error", err)
		return nil, err
	}
	e, _ := sysreg.Lookup(id)
	log := h.log.With("register", e.Name, "dir", dir.String())

	switch dir {
	case command.Get:
		if len(payload) != 0 {
			return nil, fmt.Errorf("%s: get carries %d bytes: %w", e.Name, len(payload), ErrPayloadSize)
		}
	case command.Set:
		if len(payload) != cmd.PayloadSize() {
			return nil, fmt.Errorf("%s: payload is %d bytes, want %d: %w", e.Name, len(payload), cmd.PayloadSize(), ErrPayloadSize)
		}
		if h.writable != nil && !h.writable[id] {
			log.Warn("write not allowed by configuration")
			return nil, fmt.Errorf("%s: writes disabled: %w", e.Name, ErrDenied)
		}
	}

	if err := h.checkRequirements(e); err != nil {
		log.Warn("requirement not met", "error", err)
		return nil, err
	}

	if dir == command.Get {
		v, err := h.backend.Read(e)
		if err != nil {
			log.Error("read failed", "backend", h.backend.Name(), "error", err)
			return nil, err
		}
		log.Debug("read", "value", v.Format(e.Width()))
		return sysreg.MarshalPayload(e.Width(), v), nil
	}

	v, err := sysreg.UnmarshalPayload(e.Width(), payload)
	if err != nil {
		return nil, err
	}
	if err := h.backend.Write(e, v); err != nil {
		log.Error("write failed", "backend", h.backend.Name(), "error", err)
		return nil, err
	}
	log.Debug("wrote", "value", v.Format(e.Width()))
	return nil, nil
}

func (h *Handler) serveInstr(cmd command.ID, payload []byte) ([]byte, error) {
	instr, err := command.ParseInstr(cmd)
	if err != nil {
		return nil, err
	}
	log := h.log.With("instr", instr.String())
	if len(payload) != command.InstrArgsSize {
		return nil, fmt.Errorf("%s: payload is %d bytes, want %d: %w", instr, len(payload), command.InstrArgsSize, ErrPayloadSize)
	}

	// The instruction is undefined wherever its key register is absent.
	key, _ := sysreg.Lookup(instr.Key())
	if err := h.checkRequirements(key); err != nil {
		log.Warn("requirement not met", "error", err)
		return nil, fmt.Errorf("%s: %w", instr, err)
	}
	exec, ok := h.backend.(Executor)
	if !ok {
		return nil, fmt.Errorf("%s: backend %s cannot execute instructions: %w", instr, h.backend.Name(), ErrUnsupported)
	}

	args, err := command.UnmarshalInstrArgs(payload)
	if err != nil {
		return nil, err
	}
	out, err := exec.Exec(instr, args)
	if err != nil {
		log.Error("exec failed", "backend", h.backend.Name(), "error", err)
		return nil, err
	}
	log.Debug("exec", "value", fmt.Sprintf("0x%016x", args.Value), "modifier", args.Modifier, "result", fmt.Sprintf("0x%016x", out.Value))
	return out.Marshal(), nil
}

// checkRequirements reads the ID registers on every call; feature values are
// never cached.
func (h *Handler) checkRequirements(e sysreg.Entry) error {
	if e.Requires == 0 {
		return nil
	}
	raw, err := h.Raw()
	if err != nil {
		return fmt.Errorf("%s: read feature registers: %w", e.Name, err)
	}
	set := feature.Detect(raw)
	need := []struct {
		req  sysreg.Requirement
		have bool
	}{
		{sysreg.NeedPAC, set.Mask.Has(feature.PAC)},
		{sysreg.NeedPACGA, set.Mask.Has(feature.PACGA)},
		{sysreg.NeedCSV2_2, set.Mask.Has(feature.CSV2_2)},
	}
	for _, n := range need {
		if e.Requires&n.req != 0 && !n.have {
			return fmt.Errorf("%s needs %s: %w", e.Name, n.req, ErrUnsupported)
		}
	}
	return nil
}

// Raw reads the ID registers the feature detector consumes.
func (h *Handler) Raw() (feature.Raw, error) {
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
		e, _ := sysreg.Lookup(r.id)
		v, err := h.backend.Read(e)
		if err != nil {
			return feature.Raw{}, fmt.Errorf("%s: %w", e.Name, err)
		}
		*r.dst = v.Low
	}
	return raw, nil
}

// Available lists the catalog registers this handler can serve.
func (h *Handler) Available() []sysreg.ID {
	sel, _ := h.backend.(Selective)
	var out []sysreg.ID
	for _, e := range sysreg.All() {
		if sel != nil && !sel.Supports(e) {
			continue
		}
		if h.checkRequirements(e) != nil {
			continue
		}
		out = append(out, e.ID)
	}
	return out
}
