// cpusysregs reads, writes and decodes Arm64 system registers through the
// cpusysregs driver or the cpusysregsd daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/tinyrange/cpusysregs/internal/regaccess"
	"github.com/tinyrange/cpusysregs/internal/regserver"
	"github.com/tinyrange/cpusysregs/internal/regview"
	"github.com/tinyrange/cpusysregs/internal/snapshot"
)

type subcommand struct {
	usage string
	run   func(a *app, args []string) error
}

// commands is filled in init: the handlers refer back to it for usage text.
var commands map[string]subcommand

func init() {
	commands = map[string]subcommand{
		"list":     {"list [-available]", (*app).list},
		"get":      {"get [-f] [-b] [-all] NAME...", (*app).get},
		"set":      {"set NAME VALUE | set NAME HIGH LOW", (*app).set},
		"show":     {"show [-all] NAME...", (*app).show},
		"features": {"features [-raw] [-host]", (*app).features},
		"encode":   {"encode [-msr] [-rt REG] NAME|op0,op1,crn,crm,op2", (*app).encode},
		"decode":   {"decode WORD...", (*app).decode},
		"collect":  {"collect [-o FILE] [-reg NAME,...] [-pac]", (*app).collect},
		"catalog":  {"catalog [-yaml] [-check]", (*app).catalog},
		"exec":     {"exec [-modifier N] INSTR VALUE", (*app).exec},
		"pac":      {"pac", (*app).pac},
	}
}

type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger
	color  bool
	width  int

	socket       string
	snapshotPath string
	snapshotCPU  int
	native       bool
	allowWrites  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{
		ctx:    ctx,
		stdout: os.Stdout,
		stderr: os.Stderr,
		color:  regview.AutoColor(os.Stdout),
		width:  regview.TerminalWidth(os.Stdout),
	}
	if err := a.run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "cpusysregs: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(a.stderr, "usage: cpusysregs [flags] COMMAND [args]\n\nflags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(a.stderr, "\ncommands:\n")
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(a.stderr, "  %s\n", commands[name].usage)
		}
	}
}

func (a *app) run(args []string) error {
	fs := flag.NewFlagSet("cpusysregs", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = a.usage(fs)

	verbose := fs.Bool("v", false, "debug logging")
	fs.StringVar(&a.socket, "socket", "", "talk to cpusysregsd on this socket instead of the driver")
	fs.StringVar(&a.snapshotPath, "snapshot", "", "serve requests from a snapshot file")
	fs.IntVar(&a.snapshotCPU, "cpu", 0, "CPU of the snapshot to use")
	fs.BoolVar(&a.native, "native", false, "execute EL0-accessible MRS/MSR in this process")
	fs.BoolVar(&a.allowWrites, "allow-writes", false, "allow -native to execute MSR")
	noColor := fs.Bool("no-color", false, "disable colored output")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *noColor {
		a.color = false
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		return fmt.Errorf("unknown command %q", fs.Arg(0))
	}
	return cmd.run(a, fs.Args()[1:])
}

// subFlags returns a flag set for a subcommand.
func (a *app) subFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "usage: cpusysregs %s\n", commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

// open selects the transport named by the global flags.
func (a *app) open() (*regaccess.Client, error) {
	switch {
	case a.snapshotPath != "":
		s, err := snapshot.Load(a.snapshotPath)
		if err != nil {
			return nil, err
		}
		b, err := s.Backend("snapshot:"+a.snapshotPath, a.snapshotCPU)
		if err != nil {
			return nil, err
		}
		h := regserver.NewHandler(b, regserver.WithLogger(a.log))
		return regaccess.New(regaccess.NewLocal(h), a.log), nil
	case a.native:
		b, err := regserver.NewNativeBackend(regserver.NativeOptions{AllowWrites: a.allowWrites})
		if err != nil {
			return nil, err
		}
		h := regserver.NewHandler(b, regserver.WithLogger(a.log))
		return regaccess.New(regaccess.NewLocal(h), a.log), nil
	case a.socket != "":
		t, err := regaccess.DialSocket(a.ctx, a.socket)
		if err != nil {
			return nil, err
		}
		return regaccess.New(t, a.log), nil
	default:
		return regaccess.Open(a.ctx, a.log)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
