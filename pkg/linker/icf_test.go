package linker_test

import (
	"debug/elf"
	"testing"

	"github.com/govld/govld/pkg/linker"
)

func newTestSection(name string, flags uint64, data []byte, align uint8) *linker.InputSection {
	strtab := append([]byte(name), 0)
	obj := &linker.ObjectFile{}
	obj.File = &linker.File{Contents: []byte{}}
	obj.ShStrtab = strtab
	obj.ElfSections = []linker.Shdr{{
		Name:      0,
		Flags:     flags,
		Size:      uint64(len(data)),
		AddrAlign: uint64(1) << align,
	}}

	s := &linker.InputSection{
		File:     obj,
		Shndx:    0,
		IsAlive:  true,
		Contents: data,
		ShSize:   uint32(len(data)),
		P2Align:  align,
		Rels:     []linker.Relocation{},
	}
	s.Replaceable = s
	obj.Sections = []*linker.InputSection{s}
	return s
}

// addReloc appends a relocation from sec to target's definition, along
// with a fresh symbol object carrying the given value, and returns
// that symbol so callers can alias it (for the "same symbol" case in
// equalsVariable).
func addReloc(sec *linker.InputSection, offset uint64, typ uint32, addend int64, target *linker.InputSection, value uint64) *linker.Symbol {
	sym := &linker.Symbol{File: target.File, InputSection: target, Value: value}
	idx := uint32(len(sec.File.Symbols))
	sec.File.Symbols = append(sec.File.Symbols, sym)
	sec.Rels = append(sec.Rels, linker.Relocation{
		Offset: offset,
		Type:   typ,
		Addend: addend,
		Sym:    idx,
	})
	return sym
}

const allocExec = uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR)

func TestICFTrivialDuplicate(t *testing.T) {
	data := []byte{0x90, 0x90, 0x90, 0xC3}
	a := newTestSection("a", allocExec, data, 2)
	b := newTestSection("b", allocExec, append([]byte{}, data...), 2)

	linker.Run([]*linker.InputSection{a, b}, false, false)

	if a.Replaceable != a {
		t.Fatalf("expected a to remain the representative, got folded into %v", a.Replaceable)
	}
	if b.Replaceable != a {
		t.Fatalf("expected b folded into a, got %v", b.Replaceable)
	}
}

func TestICFMutuallyRecursive(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	a := newTestSection("a", allocExec, data, 2)
	b := newTestSection("b", allocExec, append([]byte{}, data...), 2)

	addReloc(a, 0, uint32(elf.R_RISCV_CALL), 0, b, 0)
	addReloc(b, 0, uint32(elf.R_RISCV_CALL), 0, a, 0)

	linker.Run([]*linker.InputSection{a, b}, false, false)

	if a.Replaceable != b.Replaceable {
		t.Fatalf("expected a and b folded into the same class, got %v and %v", a.Replaceable, b.Replaceable)
	}
}

func TestICFAlignmentTieBreak(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	s1 := newTestSection("s1", allocExec, data, 2)  // align 4
	s2 := newTestSection("s2", allocExec, append([]byte{}, data...), 4) // align 16

	linker.Run([]*linker.InputSection{s1, s2}, false, false)

	if s2.Replaceable != s2 {
		t.Fatalf("expected s2 (higher alignment) to be the representative, got folded into %v", s2.Replaceable)
	}
	if s1.Replaceable != s2 {
		t.Fatalf("expected s1 folded into s2, got %v", s1.Replaceable)
	}
}

func TestICFAddendDiscriminates(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	a := newTestSection("a", allocExec, data, 2)
	b := newTestSection("b", allocExec, append([]byte{}, data...), 2)
	c := newTestSection("c", allocExec, data, 2)

	addReloc(a, 0, uint32(elf.R_RISCV_64), 0, c, 0)
	addReloc(b, 0, uint32(elf.R_RISCV_64), 4, c, 0)

	linker.Run([]*linker.InputSection{a, b}, false, false)

	if a.Replaceable == b.Replaceable {
		t.Fatalf("sections with differing addends must not fold, got both resolved to %v", a.Replaceable)
	}
}

// TestICFHashCollisionDoesNotFold guards against folding sections that
// only ever collided on their cheap initial hash. Three sections with
// no relocations share flags, size and reloc count (so the same
// hash), but differ byte-for-byte. The variable predicate is vacuous
// for relocation-free sections, so if the constant pass doesn't run
// to a fixed point before the variable sweeps start, B and C fold.
func TestICFHashCollisionDoesNotFold(t *testing.T) {
	a := newTestSection("a", allocExec, []byte{0x01, 0x01, 0x01, 0x01}, 2)
	b := newTestSection("b", allocExec, []byte{0x02, 0x02, 0x02, 0x02}, 2)
	c := newTestSection("c", allocExec, []byte{0x03, 0x03, 0x03, 0x03}, 2)

	linker.Run([]*linker.InputSection{a, b, c}, false, false)

	if a.Replaceable != a || b.Replaceable != b || c.Replaceable != c {
		t.Fatalf("expected all three sections to stay distinct, got a=%v b=%v c=%v",
			a.Replaceable, b.Replaceable, c.Replaceable)
	}
}

func TestICFCycleThroughIneligibleSection(t *testing.T) {
	data := []byte{0x11, 0x22, 0x33, 0x44}
	w := newTestSection("w", uint64(elf.SHF_ALLOC|elf.SHF_WRITE), []byte{0, 0, 0, 0}, 2)
	a := newTestSection("a", allocExec, data, 2)
	b := newTestSection("b", allocExec, append([]byte{}, data...), 2)

	addReloc(a, 0, uint32(elf.R_RISCV_64), 0, w, 0)
	addReloc(b, 0, uint32(elf.R_RISCV_64), 0, w, 0)

	linker.Run([]*linker.InputSection{a, b}, false, false)

	if a.Replaceable == b.Replaceable {
		t.Fatalf("sections relocating into an ineligible section must not fold, got both resolved to %v", a.Replaceable)
	}
}

func TestICFConvergesAcrossSweeps(t *testing.T) {
	dataAC := []byte{0x01, 0x01, 0x01, 0x01}
	dataBD := []byte{0x02, 0x02, 0x02, 0x02}

	a := newTestSection("a", allocExec, dataAC, 2)
	b := newTestSection("b", allocExec, dataBD, 2)
	c := newTestSection("c", allocExec, append([]byte{}, dataAC...), 2)
	d := newTestSection("d", allocExec, append([]byte{}, dataBD...), 2)

	addReloc(a, 0, uint32(elf.R_RISCV_CALL), 0, b, 0)
	addReloc(b, 0, uint32(elf.R_RISCV_CALL), 0, a, 0)
	addReloc(c, 0, uint32(elf.R_RISCV_CALL), 0, d, 0)
	addReloc(d, 0, uint32(elf.R_RISCV_CALL), 0, c, 0)

	linker.Run([]*linker.InputSection{a, b, c, d}, false, true)

	if a.Replaceable != c.Replaceable {
		t.Fatalf("expected a and c in the same class, got %v and %v", a.Replaceable, c.Replaceable)
	}
	if b.Replaceable != d.Replaceable {
		t.Fatalf("expected b and d in the same class, got %v and %v", b.Replaceable, d.Replaceable)
	}
	if a.Replaceable == b.Replaceable {
		t.Fatalf("a/c must not fold into the b/d class")
	}
}

func TestICFIdempotent(t *testing.T) {
	data := []byte{0x90, 0x90, 0x90, 0xC3}
	a := newTestSection("a", allocExec, data, 2)
	b := newTestSection("b", allocExec, append([]byte{}, data...), 2)

	sections := []*linker.InputSection{a, b}
	linker.Run(sections, false, false)

	rep := a.Replaceable
	linker.Run(sections, false, false)

	if a.Replaceable != rep || b.Replaceable != rep {
		t.Fatalf("second run changed the partition: a=%v b=%v", a.Replaceable, b.Replaceable)
	}
}

func TestICFParallelMatchesSequential(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	a := newTestSection("a", allocExec, data, 2)
	b := newTestSection("b", allocExec, append([]byte{}, data...), 2)
	addReloc(a, 0, uint32(elf.R_RISCV_CALL), 0, b, 0)
	addReloc(b, 0, uint32(elf.R_RISCV_CALL), 0, a, 0)

	linker.Run([]*linker.InputSection{a, b}, true, false)

	if a.Replaceable != b.Replaceable {
		t.Fatalf("parallel run should reach the same partition as sequential, got %v and %v", a.Replaceable, b.Replaceable)
	}
}
