package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tinyrange/cpusysregs/internal/feature"
)

func (a *app) features(args []string) error {
	fs := a.subFlags("features")
	raw := fs.Bool("raw", false, "print the ID register values the detector read")
	host := fs.Bool("host", false, "also print what the operating system advertises")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := a.open()
	if err != nil {
		return err
	}
	defer c.Close()

	regs, err := c.Raw(a.ctx)
	if err != nil {
		return err
	}
	set := feature.Detect(regs)

	if *raw {
		for _, r := range []struct {
			name  string
			value uint64
		}{
			{"ID_AA64PFR0_EL1", regs.PFR0},
			{"ID_AA64PFR1_EL1", regs.PFR1},
			{"ID_AA64ISAR0_EL1", regs.ISAR0},
			{"ID_AA64ISAR1_EL1", regs.ISAR1},
			{"ID_AA64ISAR2_EL1", regs.ISAR2},
		} {
			fmt.Fprintf(a.stdout, "%-17s 0x%016X\n", r.name, r.value)
		}
		fmt.Fprintln(a.stdout)
	}

	fmt.Fprintf(a.stdout, "mask:    0x%02x %s\n", uint8(set.Mask), set.Mask)
	if set.Mask.Has(feature.RME) {
		fmt.Fprintf(a.stdout, "rme:     v%d\n", set.RMEVersion)
	}
	fmt.Fprintf(a.stdout, "csv2:    %d\n", set.CSV2)
	if names := feature.Names(regs); len(names) > 0 {
		fmt.Fprintf(a.stdout, "present: %s\n", strings.Join(names, " "))
	}

	if *host {
		caps, err := feature.Host()
		if errors.Is(err, feature.ErrHostUnsupported) {
			fmt.Fprintln(a.stdout, "host:    unavailable")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "host:    %s %s\n", caps.Source, caps.Mask)
		if caps.CPUID {
			fmt.Fprintln(a.stdout, "         ID registers emulated at EL0")
		}
		if len(caps.Flags) > 0 {
			fmt.Fprintf(a.stdout, "         %s\n", strings.Join(caps.Flags, " "))
		}
		if caps.Mask != set.Mask {
			a.log.Warn("host capabilities disagree with ID registers", "host", caps.Mask, "registers", set.Mask)
		}
	}
	return nil
}
