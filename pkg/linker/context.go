package linker

// ContextArgs holds the command-line options the driver cares about.
// ICF (threads, verbose, mips64el, enable) lives here too since it's
// the only configuration surface the linker exposes.
type ContextArgs struct {
	Output       string
	Emulation    MachineType
	LibraryPaths []string

	ICF        bool
	ICFThreads int
	ICFVerbose bool
	Mips64EL   bool
}

// Context is the one piece of shared state threaded through every pass:
// the symbol table, the input object files, the chunks that make up the
// output, and the bytes of the output file itself.
//
//   main
//   -> ReadInputFiles -> ReadFile -> CreateObjectFile -> Parse
//      -> InitializeSections -> NewInputSection -> GetOutputSection
//      -> InitializeSymbols -> GetSymbolByName
//
// fills OutputSections and SymbolMap while each file is parsed, then
// appends the parsed file to Objs.
type Context struct {
	Args ContextArgs
	Buf  []byte

	Ehdr *OutputEhdr
	Shdr *OutputShdr
	Phdr *OutputPhdr
	Got  *GotSection

	TpAddr uint64

	OutputSections []*OutputSection

	Chunks []Chunker

	Objs           []*ObjectFile
	SymbolMap      map[string]*Symbol
	MergedSections []*MergedSection
}

func NewContext() *Context {
	return &Context{
		Args: ContextArgs{
			Output:     "a.out",
			Emulation:  MachineTypeNone,
			ICFThreads: 1,
		},
		SymbolMap: make(map[string]*Symbol),
	}
}
