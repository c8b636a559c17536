package testutil

import (
	"fmt"
	"testing"
)

// Expectation is one instruction the disassembler should print. Operands
// are substrings matched case-insensitively against the normalized line.
type Expectation struct {
	Name     string
	Mnemonic string
	Contains []string
}

func (e Expectation) check(line DisasmLine) error {
	if e.Mnemonic != "" && line.Mnemonic != e.Mnemonic {
		return fmt.Errorf("got %s, want %s", line.Mnemonic, e.Mnemonic)
	}
	for _, operand := range e.Contains {
		if !line.Contains(operand) {
			return fmt.Errorf("operand %q not in %q", operand, line.Normalized)
		}
	}
	return nil
}

// VerifyExpectations matches expect against the leading disassembled lines.
// Trailing lines, such as padding, are ignored.
func VerifyExpectations(t *testing.T, lines []DisasmLine, expect []Expectation) {
	t.Helper()
	if len(lines) < len(expect) {
		t.Fatalf("disassembly has %d instructions, expected %d", len(lines), len(expect))
	}
	for i, exp := range expect {
		if err := exp.check(lines[i]); err != nil {
			t.Errorf("%s (instruction %d): %v\n\t%s", exp.Name, i, err, lines[i].Text)
		}
	}
}
