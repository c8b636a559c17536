package daemon

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/net/nettest"

	"github.com/tinyrange/cpusysregs/internal/regaccess"
	"github.com/tinyrange/cpusysregs/internal/regserver"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

const testSnapshot = `version: v1.1.0
cpus:
  - cpu: 0
    registers:
      - name: ID_AA64PFR0_EL1
        value: "0x0000000000000011"
      - name: TPIDR_EL0
        value: "0x0000000000001000"
  - cpu: 1
    registers:
      - name: TPIDR_EL0
        value: "0x0000000000002000"
`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regs.yaml")
	if err := os.WriteFile(path, []byte(testSnapshot), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWriteConfig(t *testing.T) {
	snap := writeSnapshot(t)
	out := filepath.Join(t.TempDir(), "cpusysregsd.yaml")

	var stderr bytes.Buffer
	err := Run(context.Background(), []string{
		"-snapshot", snap, "-cpu", "1", "-allow-writes", "TPIDR_EL0, TPIDRRO_EL0", "-write-config", out,
	}, &stderr)
	if err != nil {
		t.Fatalf("%v\n%s", err, stderr.String())
	}
	cfg, err := regserver.LoadConfig(out)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != regserver.BackendSnapshot || cfg.SnapshotCPU != 1 || len(cfg.AllowWrites) != 2 {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	var stderr bytes.Buffer
	if err := Run(context.Background(), []string{"-backend", "kvm"}, &stderr); err == nil {
		t.Fatal("unknown backend accepted")
	}
	if err := Run(context.Background(), []string{"-allow-writes", "MIDR_EL1", "-write-config", filepath.Join(t.TempDir(), "x")}, &stderr); err == nil {
		t.Fatal("read-only register accepted for writes")
	}
}

func TestServeSnapshot(t *testing.T) {
	socket, err := nettest.LocalPath()
	if err != nil {
		t.Fatal(err)
	}
	snap := writeSnapshot(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var stderr bytes.Buffer
	go func() {
		done <- Run(ctx, []string{"-socket", socket, "-snapshot", snap, "-cpu", "1"}, &stderr)
	}()

	var st *regaccess.SocketTransport
	for i := 0; i < 100; i++ {
		if st, err = regaccess.DialSocket(context.Background(), socket); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Skipf("daemon did not come up: %v\n%s", err, stderr.String())
	}
	c := regaccess.New(st, nil)

	v, err := c.Read(context.Background(), sysreg.TPIDR_EL0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Low != 0x2000 {
		t.Fatalf("TPIDR_EL0 = %#x, want cpu 1 value", v.Low)
	}
	c.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
