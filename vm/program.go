package vm

// LabelKind distinguishes a code-offset label (jump/call targets) from
// a data-offset label (heap offsets such as PIXEL_BUFFER).
type LabelKind uint8

const (
	LabelCode LabelKind = iota
	LabelData
)

type Label struct {
	Kind   LabelKind
	Offset uint32
}

// FuncMeta records the arity/locals-count of a call target, looked up
// by its entry code offset when the interpreter executes `call`.
type FuncMeta struct {
	Arity       uint8
	LocalsCount uint16
}

// Program is the immutable image produced by Load: code, the data
// used to seed the heap at offset 0, and the label/function-metadata
// tables resolved at load time.
type Program struct {
	Code   []byte
	Data   []byte
	Labels map[string]Label
	Funcs  map[uint32]FuncMeta

	EntryOffset uint32
	MainLocals  uint32
}

// ValidCodeOffset reports whether off lies within the code section and
// at the start of a decodable opcode boundary is the interpreter's
// job; here we only check containment, used to validate callback
// registration tokens per spec (BadLabel otherwise).
func (p *Program) ValidCodeOffset(off uint32) bool {
	return off < uint32(len(p.Code))
}

// FuncMetaAt returns the arity/locals for a call target, defaulting to
// zero-arity/zero-locals for code offsets with no recorded metadata
// (e.g. callback entry points registered ad hoc rather than declared
// as named functions).
func (p *Program) FuncMetaAt(off uint32) FuncMeta {
	if m, ok := p.Funcs[off]; ok {
		return m
	}
	return FuncMeta{}
}
