package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/feature"
	"github.com/tinyrange/cpusysregs/internal/regserver"
	"github.com/tinyrange/cpusysregs/internal/snapshot"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

func (a *app) exec(args []string) error {
	fs := a.subFlags("exec")
	modifier := fs.Uint64("modifier", 0, "modifier operand")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("exec: want an instruction and a value")
	}
	instr, ok := command.InstrByName(fs.Arg(0))
	if !ok {
		return fmt.Errorf("exec: unknown instruction %q", fs.Arg(0))
	}
	value, err := strconv.ParseUint(fs.Arg(1), 0, 64)
	if err != nil {
		return fmt.Errorf("exec: value: %w", err)
	}

	c, err := a.open()
	if err != nil {
		return err
	}
	defer c.Close()

	out, err := c.Exec(a.ctx, instr, command.InstrArgs{Value: value, Modifier: *modifier})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "0x%016X\n", out.Value)
	return nil
}

// pacSample is one key's signing instruction run at EL0 and on the
// privileged side.
type pacSample struct {
	supported bool
	el0, el1  uint64
	el0Err    error
	el1Err    error
	// key is nil when the key register could not be read.
	key *sysreg.Value
}

func (p pacSample) status() string {
	switch {
	case !p.supported:
		return "none"
	case p.el1Err != nil:
		return "error: " + p.el1Err.Error()
	case p.el0Err != nil:
		return fmt.Sprintf("0x%016x (el0 unavailable)", p.el1)
	case p.el0 == snapshot.SampleValue:
		return "inactive"
	case p.el0 != p.el1:
		return "distinct keys"
	case p.key != nil && p.key.High == 0 && p.key.Low == 0:
		return "zero"
	default:
		return "same key"
	}
}

var errNoEL0 = errors.New("EL0 execution unavailable")

// el0Executor returns an in-process executor when the operating system
// reports the features the instructions need.
func (a *app) el0Executor() (regserver.Executor, func(), error) {
	caps, err := feature.Host()
	if err != nil {
		return nil, nil, err
	}
	if !caps.Mask.Has(feature.PAC) {
		return nil, nil, errNoEL0
	}
	b, err := regserver.NewNativeBackend(regserver.NativeOptions{})
	if err != nil {
		return nil, nil, err
	}
	return b, func() { b.Close() }, nil
}

func (a *app) pac(args []string) error {
	fs := a.subFlags("pac")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := a.open()
	if err != nil {
		return err
	}
	defer c.Close()

	set, err := c.Features(a.ctx)
	if err != nil {
		return err
	}
	el0, release, el0Err := a.el0Executor()
	if el0Err != nil {
		a.log.Debug("no EL0 comparison", "error", el0Err)
	} else {
		defer release()
	}
	host, _ := feature.Host()

	in := command.InstrArgs{Value: snapshot.SampleValue, Modifier: snapshot.SampleModifier}
	for _, instr := range snapshot.SampleInstrs {
		key, _ := sysreg.Lookup(instr.Key())
		need := feature.PAC
		if instr == command.PACGA {
			need = feature.PACGA
		}

		p := pacSample{supported: set.Mask.Has(need), el0Err: el0Err}
		if p.supported {
			out, err := c.Exec(a.ctx, instr, in)
			p.el1, p.el1Err = out.Value, err
			if p.el0Err == nil && !host.Mask.Has(need) {
				p.el0Err = errNoEL0
			}
			if p.el0Err == nil {
				out, err := el0.Exec(instr, in)
				p.el0, p.el0Err = out.Value, err
			}
			if v, err := c.Read(a.ctx, key.ID); err == nil {
				p.key = &v
			}
		}
		fmt.Fprintf(a.stdout, "%-12s %-6s %s\n", key.Name, instr, p.status())
	}
	return nil
}
