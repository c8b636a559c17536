package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/regserver"
	"github.com/tinyrange/cpusysregs/internal/regview"
	"github.com/tinyrange/cpusysregs/internal/snapshot"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

func (a *app) collect(args []string) error {
	fs := a.subFlags("collect")
	out := fs.String("o", "", "write the snapshot here instead of stdout")
	regs := fs.String("reg", "", "comma-separated registers to collect (default all readable)")
	pac := fs.Bool("pac", false, "also sample the signing instructions of each key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := snapshot.Options{PAC: *pac}
	for _, name := range splitList(*regs) {
		e, err := lookup(name)
		if err != nil {
			return err
		}
		opts.Registers = append(opts.Registers, e.ID)
	}
	if *out != "" {
		opts.Progress = a.stderr
	}

	var src snapshot.Source
	if a.native {
		// Only the in-process backend can pin itself to each CPU in turn.
		b, err := regserver.NewNativeBackend(regserver.NativeOptions{})
		if err != nil {
			return err
		}
		defer b.Close()
		src = b
	} else {
		c, err := a.open()
		if err != nil {
			return err
		}
		defer c.Close()
		src = snapshot.OneCPU(c.Transport().Name(),
			func(e sysreg.Entry) (sysreg.Value, error) {
				return c.Read(a.ctx, e.ID)
			},
			func(i command.Instr, args command.InstrArgs) (command.InstrArgs, error) {
				return c.Exec(a.ctx, i, args)
			})
	}

	s, err := snapshot.Collect(src, opts)
	if err != nil {
		return err
	}
	for _, cpu := range s.CPUs {
		for _, f := range cpu.Errors {
			a.log.Debug("register not collected", "cpu", cpu.CPU, "register", f.Register, "err", f.Error)
		}
	}

	if *out == "" {
		return s.Encode(a.stdout)
	}
	if err := s.Save(*out); err != nil {
		return err
	}
	a.log.Info("snapshot written", "path", *out, "cpus", len(s.CPUs))
	return nil
}

type catalogField struct {
	Name   string            `yaml:"name"`
	Bits   string            `yaml:"bits"`
	Values map[uint64]string `yaml:"values,omitempty"`
}

type catalogEntry struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Section   string         `yaml:"section,omitempty"`
	Width     string         `yaml:"width"`
	Access    string         `yaml:"access"`
	Requires  string         `yaml:"requires,omitempty"`
	EL0       string         `yaml:"el0"`
	Encodings []string       `yaml:"encodings"`
	Since     string         `yaml:"since"`
	Fields    []catalogField `yaml:"fields,omitempty"`
}

type catalogView struct {
	Version   string         `yaml:"version"`
	Registers []catalogEntry `yaml:"registers"`
}

func viewCatalog() catalogView {
	v := catalogView{Version: sysreg.Version}
	for _, e := range sysreg.All() {
		ce := catalogEntry{
			ID:       fmt.Sprintf("0x%02x", uint8(e.ID)),
			Name:     e.Name,
			Section:  e.Section,
			Width:    e.Width().String(),
			Access:   e.Access.String(),
			Requires: e.Requires.String(),
			EL0:      e.EL0.String(),
			Since:    e.Since,
		}
		for _, enc := range e.Encodings {
			ce.Encodings = append(ce.Encodings, enc.String())
		}
		for _, f := range e.Fields {
			bits := fmt.Sprintf("%d:%d", f.MSB, f.LSB)
			if f.MSB == f.LSB {
				bits = fmt.Sprintf("%d", f.LSB)
			}
			ce.Fields = append(ce.Fields, catalogField{Name: f.Name, Bits: bits, Values: f.Values})
		}
		v.Registers = append(v.Registers, ce)
	}
	return v
}

func (a *app) catalog(args []string) error {
	fs := a.subFlags("catalog")
	asYAML := fs.Bool("yaml", false, "dump the full catalog as YAML")
	check := fs.Bool("check", false, "validate the catalog and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *check {
		if err := sysreg.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "catalog %s: %d registers ok\n", sysreg.Version, len(sysreg.All()))
		return nil
	}
	if *asYAML {
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(viewCatalog()); err != nil {
			return err
		}
		return enc.Close()
	}
	fmt.Fprintf(a.stdout, "catalog %s\n", sysreg.Version)
	return regview.Table(a.stdout, sysreg.All(), a.color)
}
