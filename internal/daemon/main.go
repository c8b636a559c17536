// Package daemon implements cpusysregsd, the privileged process that serves
// register commands to unprivileged clients over a Unix socket.
package daemon

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/tinyrange/cpusysregs/internal/ipc"
	"github.com/tinyrange/cpusysregs/internal/regserver"
	"github.com/tinyrange/cpusysregs/internal/snapshot"
)

// Main runs cpusysregsd.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	if err := Run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "cpusysregsd: %v\n", err)
		os.Exit(1)
	}
}

// Run parses args, starts the server and blocks until ctx is done.
func Run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("cpusysregsd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML configuration file")
	socketPath := fs.String("socket", "", "Unix socket path to listen on (default $"+ipc.SocketEnv+" or a per-user runtime path)")
	backend := fs.String("backend", "", "register backend: native or snapshot")
	snapshotPath := fs.String("snapshot", "", "snapshot file replayed by the snapshot backend")
	snapshotCPU := fs.Int("cpu", 0, "CPU of the snapshot to replay")
	allowWrites := fs.String("allow-writes", "", "comma-separated registers Set commands may reach")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	writeConfig := fs.String("write-config", "", "write the effective configuration to this path and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := regserver.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = regserver.LoadConfig(*configPath); err != nil {
			return err
		}
	}

	// Flags given explicitly override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "socket":
			cfg.Socket = *socketPath
		case "backend":
			cfg.Backend = *backend
		case "snapshot":
			cfg.Snapshot = *snapshotPath
		case "cpu":
			cfg.SnapshotCPU = *snapshotCPU
		case "allow-writes":
			cfg.AllowWrites = splitList(*allowWrites)
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	// -snapshot alone selects the snapshot backend.
	if flagSet(fs, "snapshot") && !flagSet(fs, "backend") {
		cfg.Backend = regserver.BackendSnapshot
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if *writeConfig != "" {
		return regserver.WriteConfig(*writeConfig, cfg)
	}

	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	if c, ok := b.(io.Closer); ok {
		defer c.Close()
	}

	writable, _ := cfg.Writable()
	opts := []regserver.Option{regserver.WithLogger(log)}
	if writable != nil {
		opts = append(opts, regserver.WithWritable(writable...))
	}
	h := regserver.NewHandler(b, opts...)

	mux := ipc.NewMux()
	h.Register(mux)

	server, err := ipc.NewServer(cfg.Socket, mux.Handler(), log)
	if err != nil {
		return err
	}
	defer server.Close()

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	log.Info("serving", "socket", cfg.Socket, "backend", b.Name(), "registers", len(h.Available()))
	return server.Serve()
}

func newBackend(cfg regserver.Config) (regserver.Backend, error) {
	switch cfg.Backend {
	case regserver.BackendSnapshot:
		s, err := snapshot.Load(cfg.Snapshot)
		if err != nil {
			return nil, err
		}
		return s.Backend("snapshot:"+cfg.Snapshot, cfg.SnapshotCPU)
	default:
		return regserver.NewNativeBackend(regserver.NativeOptions{
			AllowWrites: len(cfg.AllowWrites) > 0,
		})
	}
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
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
