package testutil

import (
	"bufio"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// DisasmLine represents a single instruction line emitted by objdump.
type DisasmLine struct {
	Text       string
	Normalized string
	Mnemonic   string
}

// Contains reports whether the normalized instruction text contains the provided substring.
func (l DisasmLine) Contains(substr string) bool {
	return strings.Contains(l.Normalized, strings.ToLower(substr))
}

// Words packs instruction words into little-endian code bytes.
func Words(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// DisassembleAArch64 runs the first available of llvm-objdump or
// aarch64-linux-gnu-objdump over code. The test is skipped when neither is
// installed.
func DisassembleAArch64(t *testing.T, code []byte) []DisasmLine {
	t.Helper()
	for _, tool := range []string{"llvm-objdump", "aarch64-linux-gnu-objdump"} {
		if _, err := exec.LookPath(tool); err == nil {
			return DisassembleWithTool(t, tool, code, "-d", "--no-show-raw-insn")
		}
	}
	t.Skip("no AArch64 capable objdump found")
	return nil
}

// DisassembleWithTool wraps code into a minimal AArch64 ELF and invokes tool
// on it.
func DisassembleWithTool(t *testing.T, tool string, code []byte, args ...string) []DisasmLine {
	t.Helper()

	toolPath, err := exec.LookPath(tool)
	if err != nil {
		t.Skipf("%s not found: %v", tool, err)
	}

	path := t.TempDir() + "/code.elf"
	if err := os.WriteFile(path, buildMinimalELF(code), 0o644); err != nil {
		t.Fatalf("write temp ELF: %v", err)
	}

	cmd := exec.Command(toolPath, append(append([]string{}, args...), path)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s failed: %v\n\n%s", tool, err, output)
	}

	lines, err := parseObjdumpOutput(string(output))
	if err != nil {
		t.Fatalf("parse objdump output: %v", err)
	}
	if len(lines) == 0 {
		t.Fatalf("objdump produced no instructions:\n%s", output)
	}
	return lines
}

// buildMinimalELF lays out an ELF64 header, the code as .text, a section
// name table and three section headers (null, .text, .shstrtab).
func buildMinimalELF(code []byte) []byte {
	const (
		ehdrSize  = 64
		shdrSize  = 64
		numShdrs  = 3
		textAlign = 16
	)

	shstr := []byte("\x00.text\x00.shstrtab\x00")
	textOff := ehdrSize
	shstrOff := align(textOff+len(code), textAlign)
	shOff := align(shstrOff+len(shstr), 8)

	buf := make([]byte, shOff+numShdrs*shdrSize)
	copy(buf[textOff:], code)
	copy(buf[shstrOff:], shstr)

	copy(buf, []byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS64), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})
	le := binary.LittleEndian
	le.PutUint16(buf[16:], uint16(elf.ET_EXEC))
	le.PutUint16(buf[18:], uint16(elf.EM_AARCH64))
	le.PutUint32(buf[20:], uint32(elf.EV_CURRENT))
	le.PutUint64(buf[40:], uint64(shOff))
	le.PutUint16(buf[52:], ehdrSize)
	le.PutUint16(buf[58:], shdrSize)
	le.PutUint16(buf[60:], numShdrs)
	le.PutUint16(buf[62:], 2) // e_shstrndx

	section := func(idx int, name uint32, typ elf.SectionType, flags elf.SectionFlag, off, size, alignment int) {
		sh := buf[shOff+idx*shdrSize:]
		le.PutUint32(sh[0:], name)
		le.PutUint32(sh[4:], uint32(typ))
		le.PutUint64(sh[8:], uint64(flags))
		le.PutUint64(sh[24:], uint64(off))
		le.PutUint64(sh[32:], uint64(size))
		le.PutUint64(sh[48:], uint64(alignment))
	}
	section(1, 1, elf.SHT_PROGBITS, elf.SHF_ALLOC|elf.SHF_EXECINSTR, textOff, len(code), textAlign)
	section(2, 7, elf.SHT_STRTAB, 0, shstrOff, len(shstr), 1)

	return buf
}

func parseObjdumpOutput(out string) ([]DisasmLine, error) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	var lines []DisasmLine
	for scanner.Scan() {
		line := scanner.Text()
		colon := strings.IndexRune(line, ':')
		if colon == -1 {
			continue
		}
		text := strings.TrimSpace(line[colon+1:])
		if text == "" || strings.HasPrefix(text, "<") {
			continue
		}
		if strings.HasPrefix(text, ".") || strings.HasPrefix(text, "file format") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, DisasmLine{
			Text:       text,
			Normalized: strings.ToLower(strings.Join(fields, " ")),
			Mnemonic:   strings.ToLower(fields[0]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return lines, nil
}

func align(value int, boundary int) int {
	if rem := value % boundary; rem != 0 {
		return value + boundary - rem
	}
	return value
}
