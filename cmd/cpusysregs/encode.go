package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tinyrange/cpusysregs/internal/asm/arm64"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// parseSysReg accepts a catalog name, S3_0_C0_C4_0, or op0,op1,crn,crm,op2.
// Catalog pairs return both halves.
func parseSysReg(s string) (name string, regs []arm64.SysReg, err error) {
	if e, ok := sysreg.ByName(s); ok {
		return e.Name, e.Encodings, nil
	}

	var parts []string
	if rest, ok := strings.CutPrefix(strings.ToUpper(s), "S"); ok && strings.Count(rest, "_") == 4 {
		parts = strings.Split(rest, "_")
		for i := 2; i <= 3; i++ {
			c, ok := strings.CutPrefix(parts[i], "C")
			if !ok {
				return "", nil, fmt.Errorf("%q: CRn and CRm need a C prefix", s)
			}
			parts[i] = c
		}
	} else {
		parts = strings.Split(s, ",")
	}
	if len(parts) != 5 {
		return "", nil, &sysreg.CatalogError{Op: "encode", Name: s, Err: sysreg.ErrUnknownRegister}
	}

	var f [5]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 0, 32)
		if err != nil {
			return "", nil, fmt.Errorf("%q: field %d: %w", s, i, err)
		}
		f[i] = uint32(n)
	}
	reg, err := arm64.NewSysReg(f[0], f[1], f[2], f[3], f[4])
	if err != nil {
		return "", nil, err
	}
	if e, half, ok := sysreg.ByEncoding(reg); ok {
		return halfName(e, half), []arm64.SysReg{reg}, nil
	}
	return reg.String(), []arm64.SysReg{reg}, nil
}

func halfName(e sysreg.Entry, half int) string {
	if e.Width() != sysreg.Pair {
		return e.Name
	}
	if half == 0 {
		return e.Name + ".hi"
	}
	return e.Name + ".lo"
}

func (a *app) encode(args []string) error {
	fs := a.subFlags("encode")
	msr := fs.Bool("msr", false, "encode MSR instead of MRS")
	rt := fs.String("rt", "x0", "general-purpose register operand")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("encode: want one register")
	}

	op := arm64.OpMRS
	if *msr {
		op = arm64.OpMSR
	}
	name, regs, err := parseSysReg(fs.Arg(0))
	if err != nil {
		return err
	}
	for i, reg := range regs {
		word, err := arm64.Instruction(op, reg, *rt)
		if err != nil {
			return err
		}
		label := name
		if len(regs) == 2 {
			label = []string{name + ".hi", name + ".lo"}[i]
		}
		fmt.Fprintf(a.stdout, "0x%08X  %s  %s\n", word, label, disasm(op, reg, *rt))
	}
	return nil
}

func disasm(op arm64.SysRegOp, reg arm64.SysReg, rt string) string {
	if op == arm64.OpMRS {
		return fmt.Sprintf("mrs %s, %s", rt, reg)
	}
	return fmt.Sprintf("msr %s, %s", reg, rt)
}

func (a *app) decode(args []string) error {
	fs := a.subFlags("decode")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("decode: no instruction words")
	}

	for _, arg := range fs.Args() {
		w, err := strconv.ParseUint(arg, 0, 32)
		if err != nil {
			return fmt.Errorf("decode %q: %w", arg, err)
		}
		op, reg, rt, err := arm64.DecodeSysReg(uint32(w))
		if err != nil {
			return err
		}
		// Rt 31 is XZR for MRS/MSR, never SP.
		operand := "xzr"
		if rt != 31 {
			operand = fmt.Sprintf("x%d", rt)
		}
		name := reg.String()
		if e, half, ok := sysreg.ByEncoding(reg); ok {
			name = halfName(e, half)
		}
		fmt.Fprintf(a.stdout, "0x%08X  %s  %s\n", uint32(w), disasm(op, reg, operand), name)
	}
	return nil
}
