package regserver

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/ipc"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// errorToIPC converts a Go error to an IPC error.
func errorToIPC(err error, op string) *ipc.IPCError {
	if err == nil {
		return nil
	}

	var ipcErr *ipc.IPCError
	if errors.As(err, &ipcErr) {
		return ipcErr
	}

	code := ipc.ErrCodeIO
	var catErr *sysreg.CatalogError
	switch {
	case errors.Is(err, ErrDenied):
		code = ipc.ErrCodeDenied
	case errors.Is(err, ErrUnsupported):
		code = ipc.ErrCodeUnsupported
	case errors.As(err, &catErr),
		errors.Is(err, ErrPayloadSize),
		errors.Is(err, command.ErrMalformed):
		code = ipc.ErrCodeInvalidArgument
	}

	return &ipc.IPCError{
		Code:    uint8(code),
		Message: err.Error(),
		Op:      op,
	}
}

// Register registers the register-access handlers with the mux.
func (h *Handler) Register(mux *ipc.Mux) {
	mux.Handle(ipc.MsgHello, h.handleHello)
	mux.Handle(ipc.MsgList, h.handleList)
	mux.Handle(ipc.MsgFeatures, h.handleFeatures)
	mux.Handle(ipc.MsgGet, h.handleGet)
	mux.Handle(ipc.MsgSet, h.handleSet)
	mux.Handle(ipc.MsgExec, h.handleExec)
}

func (h *Handler) handleHello(dec *ipc.Decoder) ([]byte, error) {
	peer, err := dec.String()
	if err != nil {
		return nil, err
	}
	if !semver.IsValid(peer) {
		return nil, &ipc.IPCError{
			Code:    ipc.ErrCodeInvalidArgument,
			Message: fmt.Sprintf("invalid catalog version %q", peer),
			Op:      "hello",
		}
	}
	if semver.Major(peer) != semver.Major(sysreg.Version) {
		h.log.Warn("refusing peer", "peer", peer, "catalog", sysreg.Version)
		return nil, &ipc.IPCError{
			Code:    ipc.ErrCodeUnsupported,
			Message: fmt.Sprintf("catalog %s is incompatible with %s", peer, sysreg.Version),
			Op:      "hello",
		}
	}
	h.log.Debug("hello", "peer", peer, "backend", h.backend.Name())
	return ipc.NewResponseBuilder().String(sysreg.Version).Build(), nil
}

func (h *Handler) handleList(dec *ipc.Decoder) ([]byte, error) {
	ids := h.Available()
	raw := make([]byte, len(ids))
	for i, id := range ids {
		raw[i] = byte(id)
	}
	return ipc.NewResponseBuilder().Bytes(raw).Build(), nil
}

func (h *Handler) handleFeatures(dec *ipc.Decoder) ([]byte, error) {
	raw, err := h.Raw()
	if err != nil {
		return nil, errorToIPC(err, "features")
	}
	return ipc.NewResponseBuilder().
		Uint64(raw.PFR0).
		Uint64(raw.PFR1).
		Uint64(raw.ISAR0).
		Uint64(raw.ISAR1).
		Uint64(raw.ISAR2).
		Build(), nil
}

func decodeCommand(dec *ipc.Decoder) (command.ID, []byte, error) {
	cmd, err := dec.Uint16()
	if err != nil {
		return 0, nil, err
	}
	payload, err := dec.Bytes()
	if err != nil {
		return 0, nil, err
	}
	return command.ID(cmd), payload, nil
}

func (h *Handler) handleGet(dec *ipc.Decoder) ([]byte, error) {
	cmd, payload, err := decodeCommand(dec)
	if err != nil {
		return nil, err
	}
	if dir := cmd.Direction(); dir != command.Get {
		return nil, errorToIPC(fmt.Errorf("command 0x%03x is not a get: %w", uint16(cmd), command.ErrMalformed), "get")
	}
	value, err := h.Serve(cmd, payload)
	if err != nil {
		return nil, errorToIPC(err, "get")
	}
	return ipc.NewResponseBuilder().Bytes(value).Build(), nil
}

func (h *Handler) handleSet(dec *ipc.Decoder) ([]byte, error) {
	cmd, payload, err := decodeCommand(dec)
	if err != nil {
		return nil, err
	}
	if dir := cmd.Direction(); dir != command.Set {
		return nil, errorToIPC(fmt.Errorf("command 0x%03x is not a set: %w", uint16(cmd), command.ErrMalformed), "set")
	}
	if _, err := h.Serve(cmd, payload); err != nil {
		return nil, errorToIPC(err, "set")
	}
	return ipc.NewResponseBuilder().Build(), nil
}

func (h *Handler) handleExec(dec *ipc.Decoder) ([]byte, error) {
	cmd, payload, err := decodeCommand(dec)
	if err != nil {
		return nil, err
	}
	if !cmd.IsInstr() {
		return nil, errorToIPC(fmt.Errorf("command 0x%03x is not an instruction: %w", uint16(cmd), command.ErrMalformed), "exec")
	}
	out, err := h.Serve(cmd, payload)
	if err != nil {
		return nil, errorToIPC(err, "exec")
	}
	return ipc.NewResponseBuilder().Bytes(out).Build(), nil
}
