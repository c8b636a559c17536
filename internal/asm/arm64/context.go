package arm64

import (
	"encoding/binary"
	"fmt"

	"github.com/tinyrange/cpusysregs/internal/asm"
)

type Context struct {
	text     []byte
	labels   map[asm.Label]int
	operands map[asm.Variable]uint32
	branches []branchPatch
}

// branchPatch is a CBZ whose imm19 is filled in once labels are known.
type branchPatch struct {
	label asm.Label
	pos   int
}

func newContext() *Context {
	return &Context{
		labels:   make(map[asm.Label]int),
		operands: make(map[asm.Variable]uint32),
	}
}

func (c *Context) EmitBytes(data []byte) {
	c.text = append(c.text, data...)
}

func (c *Context) emit32(word uint32) int {
	pos := len(c.text)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)
	c.text = append(c.text, buf[:]...)
	return pos
}

func (c *Context) SetLabel(label asm.Label) {
	c.labels[label] = len(c.text)
}

func (c *Context) GetLabel(label asm.Label) (int, bool) {
	pos, ok := c.labels[label]
	return pos, ok
}

func (c *Context) BindOperand(v asm.Variable, index uint32) error {
	if index > sysRegRtMax {
		return &EncodingRangeError{Field: "Rt", Value: index, Max: sysRegRtMax}
	}
	if prev, ok := c.operands[v]; ok && prev != index {
		return fmt.Errorf("arm64 asm: operand %d already bound to register %d", v, prev)
	}
	c.operands[v] = index
	return nil
}

func (c *Context) Operand(v asm.Variable) (uint32, bool) {
	idx, ok := c.operands[v]
	return idx, ok
}

func (c *Context) finalize() (asm.Program, error) {
	const align = 4
	if rem := len(c.text) % align; rem != 0 {
		return asm.Program{}, fmt.Errorf("arm64 asm: text length %d is not instruction aligned", len(c.text))
	}
	for _, br := range c.branches {
		if err := c.patchBranch(br); err != nil {
			return asm.Program{}, err
		}
	}
	return asm.NewProgram(c.text), nil
}

func (c *Context) patchBranch(p branchPatch) error {
	target, ok := c.labels[p.label]
	if !ok {
		return fmt.Errorf("arm64 asm: undefined label %q", p.label)
	}
	rel := target - p.pos
	if rel%4 != 0 {
		return fmt.Errorf("arm64 asm: branch offset must be multiple of 4")
	}
	imm := rel / 4
	word := binary.LittleEndian.Uint32(c.text[p.pos : p.pos+4])
	if imm < -(1<<18) || imm >= (1<<18) {
		return fmt.Errorf("arm64 asm: compare-and-branch target out of range")
	}
	word = (word &^ (0x7FFFF << 5)) | (uint32(imm)&0x7FFFF)<<5
	binary.LittleEndian.PutUint32(c.text[p.pos:p.pos+4], word)
	return nil
}

func (c *Context) emitCBZ(reg Reg, label asm.Label) {
	pos := c.emit32(0xB4000000 | reg.Index())
	c.branches = append(c.branches, branchPatch{
		label: label,
		pos:   pos,
	})
}
