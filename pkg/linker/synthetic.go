package linker

import (
	"debug/elf"

	"github.com/govld/govld/pkg/utils"
)

// IMAGE_BASE is the virtual address the first allocated chunk of the
// output is placed at.
const IMAGE_BASE = 0x10000

// OutputEhdr is the synthetic chunk that becomes the output file's ELF
// header. Its own bytes are always the very first thing in the file.
type OutputEhdr struct {
	Chunk
}

func NewOutputEhdr() *OutputEhdr {
	o := &OutputEhdr{Chunk: NewChunk()}
	o.Name = "ehdr"
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.Size = uint64(EhdrSize)
	o.Shdr.AddrAlign = 8
	return o
}

func entryAddress(ctx *Context) uint64 {
	for _, osec := range ctx.OutputSections {
		if osec.Name == ".text" {
			return osec.Shdr.Addr
		}
	}
	return 0
}

func (o *OutputEhdr) CopyBuf(ctx *Context) {
	ehdr := &Ehdr{}
	WriteMagic(ehdr.Ident[:])
	ehdr.Ident[elf.EI_CLASS] = uint8(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = uint8(elf.ELFDATA2LSB)
	ehdr.Ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)
	ehdr.Type = uint16(elf.ET_EXEC)
	ehdr.Machine = uint16(elf.EM_RISCV)
	ehdr.Version = uint32(elf.EV_CURRENT)
	ehdr.Entry = entryAddress(ctx)
	ehdr.EhSize = uint16(EhdrSize)
	ehdr.PhEntSize = uint16(PhdrSize)
	ehdr.ShOff = ctx.Shdr.Shdr.Offset
	ehdr.ShEntSize = uint16(ShdrSize)
	ehdr.PhOff = ctx.Phdr.Shdr.Offset
	ehdr.PhNum = uint16(ctx.Phdr.Shdr.Size / uint64(PhdrSize))
	ehdr.ShNum = uint16(ctx.Shdr.Shdr.Size / uint64(ShdrSize))
	utils.Write[Ehdr](ctx.Buf, *ehdr)
}

// OutputShdr is the synthetic chunk for the section header table: one
// Shdr entry per Chunker that survives CollectOutputSections, plus a
// leading null entry as ELF requires.
type OutputShdr struct {
	Chunk
}

func NewOutputShdr() *OutputShdr {
	o := &OutputShdr{Chunk: NewChunk()}
	o.Name = "shdr"
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputShdr) UpdateShdr(ctx *Context) {
	n := 1
	for _, chunk := range ctx.Chunks {
		if chunk != o {
			n++
		}
	}
	o.Shdr.Size = uint64(n) * uint64(ShdrSize)
}

func (o *OutputShdr) CopyBuf(ctx *Context) {
	base := ctx.Buf[o.Shdr.Offset:]
	base = base[ShdrSize:] // leave the null entry zeroed
	for _, chunk := range ctx.Chunks {
		if chunk == o {
			continue
		}
		utils.Write[Shdr](base, *chunk.GetShdr())
		base = base[ShdrSize:]
	}
}

// OutputPhdr is the synthetic chunk for the program header table. It
// builds one PT_LOAD segment per run of adjacent allocated chunks that
// share read/write/exec permissions, plus a PT_PHDR entry describing
// itself.
type OutputPhdr struct {
	Chunk
	Phdrs []Phdr
}

func NewOutputPhdr() *OutputPhdr {
	o := &OutputPhdr{Chunk: NewChunk()}
	o.Name = "phdr"
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.AddrAlign = 8
	return o
}

func chunkFlags(chunk Chunker) uint32 {
	flags := uint32(elf.PF_R)
	shdr := chunk.GetShdr()
	if shdr.Flags&uint64(elf.SHF_WRITE) != 0 {
		flags |= uint32(elf.PF_W)
	}
	if shdr.Flags&uint64(elf.SHF_EXECINSTR) != 0 {
		flags |= uint32(elf.PF_X)
	}
	return flags
}

func (o *OutputPhdr) UpdateShdr(ctx *Context) {
	o.Phdrs = o.Phdrs[:0]

	o.Phdrs = append(o.Phdrs, Phdr{
		Type:   uint32(elf.PT_PHDR),
		Flags:  uint32(elf.PF_R),
		Align:  8,
		Offset: o.Shdr.Offset,
	})

	var cur *Phdr
	var curFlags uint32
	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()
		if shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			cur = nil
			continue
		}

		flags := chunkFlags(chunk)
		if cur == nil || flags != curFlags {
			o.Phdrs = append(o.Phdrs, Phdr{
				Type:    uint32(elf.PT_LOAD),
				Flags:   flags,
				Align:   0x1000,
				Offset:  shdr.Offset,
				VAddr:   shdr.Addr,
				PAddr:   shdr.Addr,
				MemSize: shdr.Size,
			})
			cur = &o.Phdrs[len(o.Phdrs)-1]
			curFlags = flags
			if shdr.Type != uint32(elf.SHT_NOBITS) {
				cur.FileSize = shdr.Size
			}
			continue
		}

		end := shdr.Addr + shdr.Size
		cur.MemSize = end - cur.VAddr
		if shdr.Type != uint32(elf.SHT_NOBITS) {
			cur.FileSize = end - cur.VAddr
		}
	}

	o.Shdr.Size = uint64(len(o.Phdrs)) * uint64(PhdrSize)
}

func (o *OutputPhdr) CopyBuf(ctx *Context) {
	base := ctx.Buf[o.Shdr.Offset:]
	for _, phdr := range o.Phdrs {
		utils.Write[Phdr](base, phdr)
		base = base[PhdrSize:]
	}
}

// GotSection is a minimal .got: it only serves TLS GOT-TP references
// (R_RISCV_TLS_GOT_HI20), the one GOT-needing relocation this linker's
// relocation-application code handles.
type GotSection struct {
	Chunk
	GotTpSyms []*Symbol
}

func NewGotSection() *GotSection {
	g := &GotSection{Chunk: NewChunk()}
	g.Name = ".got"
	g.Shdr.Type = uint32(elf.SHT_PROGBITS)
	g.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_WRITE)
	g.Shdr.AddrAlign = 8
	return g
}

func (g *GotSection) AddGotTpSymbol(sym *Symbol) {
	sym.GotTpIdx = int32(len(g.GotTpSyms))
	g.GotTpSyms = append(g.GotTpSyms, sym)
	g.Shdr.Size += 8
}

func (g *GotSection) CopyBuf(ctx *Context) {
	base := ctx.Buf[g.Shdr.Offset:]
	for idx, sym := range g.GotTpSyms {
		utils.Write[uint64](base[idx*8:], sym.GetAddr()-ctx.TpAddr)
	}
}
