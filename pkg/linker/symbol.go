package linker

import "github.com/govld/govld/pkg/utils"

const (
	NeedsGotTp uint32 = 1 << 0
)

// Symbol is the linker's view of an ELF symbol table entry, shared
// across every object file that references it by name: a global
// defined in one file and referenced as undefined in another ends up
// as the same *Symbol, found through Context.SymbolMap. InputSection
// and SectionFragment are mutually exclusive — a symbol defined inside
// a mergeable section (a deduplicated string or constant) points at
// its fragment instead of a whole section.
type Symbol struct {
	File     *ObjectFile
	Name     string
	Value    uint64
	SymIdx   int
	GotTpIdx int32

	InputSection    *InputSection
	SectionFragment *SectionFragment

	Flags uint32
}

func NewSymbol(name string) *Symbol {
	s := &Symbol{
		Name:   name,
		SymIdx: -1,
	}
	return s
}

func (s *Symbol) SetInputSection(isec *InputSection) {
	s.InputSection = isec
	s.SectionFragment = nil
}

func (s *Symbol) SetSectionFragment(frag *SectionFragment) {
	s.InputSection = nil
	s.SectionFragment = frag
}

func GetSymbolByName(ctx *Context, name string) *Symbol {
	if sym, ok := ctx.SymbolMap[name]; ok {
		return sym
	}
	ctx.SymbolMap[name] = NewSymbol(name)
	return ctx.SymbolMap[name]
}

func (s *Symbol) ElfSym() *Sym {
	utils.Assert(s.SymIdx < len(s.File.ElfSyms))
	return &s.File.ElfSyms[s.SymIdx]
}

func (s *Symbol) Clear() {
	s.File = nil
	s.InputSection = nil
	s.SymIdx = -1
}

func (s *Symbol) GetAddr() uint64 {
	if s.SectionFragment != nil {
		return s.SectionFragment.GetAddr() + s.Value
	}

	if s.InputSection != nil {
		return s.InputSection.Replaceable.GetAddr() + s.Value
	}

	return s.Value
}

func (s *Symbol) GetGotTpAddr(ctx *Context) uint64 {
	return ctx.Got.Shdr.Addr + uint64(s.GotTpIdx)*8
}

// IsDefinedRegular reports whether this symbol is defined inside a
// regular input section, as opposed to being undefined, absolute, or
// defined by a mergeable-section fragment. Only this kind of symbol
// ties a relocation's target to a specific InputSection, which is what
// folding equivalence needs to compare.
func (s *Symbol) IsDefinedRegular() bool {
	return s.File != nil && s.InputSection != nil
}

// Section returns the InputSection this symbol resolves to, following
// through to the section's current fold representative. Returns nil
// for undefined, absolute, or fragment-backed symbols.
func (s *Symbol) Section() *InputSection {
	if s.InputSection == nil {
		return nil
	}
	return s.InputSection.Replaceable
}
