package main

import (
	"fmt"
	"strings"

	"github.com/tinyrange/cpusysregs/internal/regview"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

func lookup(name string) (sysreg.Entry, error) {
	e, ok := sysreg.ByName(name)
	if !ok {
		return sysreg.Entry{}, &sysreg.CatalogError{Op: "lookup", Name: name, Err: sysreg.ErrUnknownRegister}
	}
	return e, nil
}

func (a *app) list(args []string) error {
	fs := a.subFlags("list")
	available := fs.Bool("available", false, "only registers the privileged side serves")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries := sysreg.All()
	if *available {
		c, err := a.open()
		if err != nil {
			return err
		}
		defer c.Close()

		ids, err := c.Available(a.ctx)
		if err != nil {
			return err
		}
		entries = entries[:0:0]
		for _, id := range ids {
			if e, ok := sysreg.Lookup(id); ok {
				entries = append(entries, e)
			}
		}
	}
	return regview.Table(a.stdout, entries, a.color)
}

func binary(w sysreg.Width, v sysreg.Value) string {
	if w == sysreg.Pair {
		return fmt.Sprintf("%064b:%064b", v.High, v.Low)
	}
	return fmt.Sprintf("%064b", v.Low)
}

func (a *app) get(args []string) error {
	fs := a.subFlags("get")
	fields := fs.Bool("f", false, "decode fields")
	bin := fs.Bool("b", false, "print in binary")
	all := fs.Bool("all", false, "with -f, include zero fields")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("get: no register named")
	}

	c, err := a.open()
	if err != nil {
		return err
	}
	defer c.Close()

	for _, name := range fs.Args() {
		e, err := lookup(name)
		if err != nil {
			return err
		}
		v, err := c.Read(a.ctx, e.ID)
		if err != nil {
			return err
		}
		switch {
		case *fields:
			if err := regview.Render(a.stdout, e, v, regview.Options{Color: a.color, Width: a.width, All: *all}); err != nil {
				return err
			}
		case *bin:
			fmt.Fprintf(a.stdout, "%s = %s\n", e.Name, binary(e.Width(), v))
		case fs.NArg() == 1:
			fmt.Fprintln(a.stdout, v.Format(e.Width()))
		default:
			fmt.Fprintf(a.stdout, "%s = %s\n", e.Name, v.Format(e.Width()))
		}
	}
	return nil
}

func (a *app) show(args []string) error {
	fs := a.subFlags("show")
	all := fs.Bool("all", false, "include zero fields")
	if err := fs.Parse(args); err != nil {
		return err
	}
	names := fs.Args()
	if len(names) == 0 {
		for _, e := range sysreg.All() {
			if e.Readable() && len(e.Fields) > 0 {
				names = append(names, e.Name)
			}
		}
	}

	c, err := a.open()
	if err != nil {
		return err
	}
	defer c.Close()

	opts := regview.Options{Color: a.color, Width: a.width, All: *all}
	for i, name := range names {
		e, err := lookup(name)
		if err != nil {
			return err
		}
		v, err := c.Read(a.ctx, e.ID)
		if err != nil {
			// Listing everything keeps going past registers this host lacks.
			if fs.NArg() == 0 {
				a.log.Debug("skipping register", "register", e.Name, "err", err)
				continue
			}
			return err
		}
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		if err := regview.Render(a.stdout, e, v, opts); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) set(args []string) error {
	fs := a.subFlags("set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		fs.Usage()
		return fmt.Errorf("set: want NAME VALUE or NAME HIGH LOW")
	}

	e, err := lookup(fs.Arg(0))
	if err != nil {
		return err
	}
	raw := fs.Arg(1)
	if fs.NArg() == 3 {
		raw = fs.Arg(1) + ":" + fs.Arg(2)
	}
	if e.Width() == sysreg.Single && strings.Contains(raw, ":") {
		return fmt.Errorf("set: %s is a single register", e.Name)
	}
	v, err := sysreg.ParseValue(e.Width(), raw)
	if err != nil {
		return err
	}

	c, err := a.open()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Write(a.ctx, e.ID, v); err != nil {
		return err
	}
	a.log.Info("wrote register", "register", e.Name, "value", v.Format(e.Width()))
	return nil
}
