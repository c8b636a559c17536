package sysreg

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownRegister = errors.New("unknown register")
	ErrReadOnly        = errors.New("register is read-only")
	ErrNotReadable     = errors.New("register is write-only")
)

// CatalogError reports a request the catalog cannot satisfy.
type CatalogError struct {
	Op   string
	ID   ID
	Name string
	Err  error
}

func (e *CatalogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("0x%02x", uint8(e.ID))
	}
	return fmt.Sprintf("sysreg: %s %s: %v", e.Op, name, e.Err)
}

func (e *CatalogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CheckAccess returns a CatalogError if e does not permit the direction.
func (e Entry) CheckAccess(write bool) error {
	switch {
	case write && !e.Writable():
		return &CatalogError{Op: "set", ID: e.ID, Name: e.Name, Err: ErrReadOnly}
	case !write && !e.Readable():
		return &CatalogError{Op: "get", ID: e.ID, Name: e.Name, Err: ErrNotReadable}
	}
	return nil
}
