package arm64

import (
	"fmt"
)

const (
	wordRet = 0xD65F03C0 // ret x30
	wordISB = 0xD5033FDF // isb sy
)

// encodeLoadStore64 encodes LDR/STR Xt, [Xn, #imm] with an unsigned offset
// scaled by 8.
func encodeLoadStore64(reg Reg, mem Memory, store bool) (uint32, error) {
	if err := mem.validate(); err != nil {
		return 0, err
	}
	if mem.base.size != size64 || reg.size != size64 {
		return 0, fmt.Errorf("arm64 asm: 64-bit load/store needs X registers")
	}
	if mem.disp < 0 || mem.disp%8 != 0 {
		return 0, fmt.Errorf("arm64 asm: offset %d is not a non-negative multiple of 8", mem.disp)
	}
	imm := uint32(mem.disp / 8)
	if imm > 0xFFF {
		return 0, fmt.Errorf("arm64 asm: offset out of range (%d)", mem.disp)
	}
	base := uint32(0xF9400000)
	if store {
		base = 0xF9000000
	}
	return base | imm<<10 | mem.base.Index()<<5 | reg.Index(), nil
}
