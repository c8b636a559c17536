package regview

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

func TestRenderFields(t *testing.T) {
	e, _ := sysreg.Lookup(sysreg.IDAA64PFR0)
	// CSV2=2, RME=1, EL1=1, EL0=5 (reserved).
	v := sysreg.Scalar(0x0210_0000_0000_0015)

	var buf bytes.Buffer
	if err := Render(&buf, e, v, Options{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ID_AA64PFR0_EL1 = 0x0210000000000015", "D17.2.67", "CSV2_2", "RMEv1", "AArch64-only", "reserved"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "CSV3") {
		t.Errorf("zero field printed without All:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("escape sequences without Color:\n%s", out)
	}

	buf.Reset()
	if err := Render(&buf, e, v, Options{All: true, Color: true}); err != nil {
		t.Fatal(err)
	}
	plain := ansi.Strip(buf.String())
	if !strings.Contains(plain, "CSV3") {
		t.Errorf("All did not print zero fields:\n%s", plain)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("Color produced no styling")
	}
}

func TestRenderAlignment(t *testing.T) {
	e, _ := sysreg.Lookup(sysreg.IDAA64PFR0)
	var buf bytes.Buffer
	if err := Render(&buf, e, sysreg.Scalar(0x0011_0000_1111_2222), Options{All: true, Color: true}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")[1:]
	col := -1
	for _, line := range lines {
		plain := ansi.Strip(line)
		i := strings.Index(plain, "0x")
		if col == -1 {
			col = i
		}
		if i != col {
			t.Fatalf("value column misaligned at %q", plain)
		}
	}
}

func TestRenderPairAndNoFields(t *testing.T) {
	e, _ := sysreg.Lookup(sysreg.APIAKEY)
	var buf bytes.Buffer
	if err := Render(&buf, e, sysreg.Value{High: 1, Low: 2}, Options{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0x0000000000000001:0x0000000000000002") {
		t.Fatalf("pair header:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "no field layout") {
		t.Fatalf("missing layout note:\n%s", buf.String())
	}
}

func TestRenderTruncates(t *testing.T) {
	e, _ := sysreg.Lookup(sysreg.TCR)
	var buf bytes.Buffer
	if err := Render(&buf, e, sysreg.Scalar(0x100), Options{Width: 40}); err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n")[1:] {
		if w := ansi.StringWidth(line); w > 40 {
			t.Errorf("line is %d cells wide: %q", w, line)
		}
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Table(&buf, sysreg.All(), false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if n := strings.Count(out, "\n"); n != len(sysreg.All()) {
		t.Fatalf("rows = %d, want %d", n, len(sysreg.All()))
	}
	if !strings.Contains(out, "0x80  APIAKEY_EL1") || !strings.Contains(out, "needs PAC") {
		t.Fatalf("table:\n%s", out)
	}
}
