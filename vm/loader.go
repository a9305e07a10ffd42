package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

var magic = [4]byte{'S', 'V', 'M', '1'}

// header mirrors the 28-byte fixed header from SPEC_FULL.md #6. The
// teacher's compiler packs a similar fixed-width Instruction{code,
// register, arg} record (see compile.go); this generalizes that idea
// to a whole-program header instead of a per-instruction one, since
// the wire format here is a loaded binary image rather than an
// assembled-on-the-fly instruction list.
type header struct {
	DataLen     uint32
	CodeLen     uint32
	EntryOffset uint32
	MainLocals  uint32
	LabelCount  uint32
	FuncCount   uint32
}

// Load parses the binary program image format defined in SPEC_FULL.md
// #6 and returns a ready-to-run Program. Malformed or truncated input
// produces BadDecode; an entry offset outside a non-empty code section
// produces BadLabel.
func Load(r io.Reader) (*Program, error) {
	br := r

	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading magic: %w", err))
	}
	if gotMagic != magic {
		return nil, fault(BadDecode, 0, "bad magic")
	}

	var hdr header
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading header: %w", err))
	}

	labels := make(map[string]Label, hdr.LabelCount)
	for i := uint32(0); i < hdr.LabelCount; i++ {
		var nameLen uint16
		if err := binary.Read(br, binary.LittleEndian, &nameLen); err != nil {
			return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading label %d name length: %w", i, err))
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(br, nameBytes); err != nil {
			return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading label %d name: %w", i, err))
		}
		var kind uint8
		var offset uint32
		if err := binary.Read(br, binary.LittleEndian, &kind); err != nil {
			return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading label %d kind: %w", i, err))
		}
		if err := binary.Read(br, binary.LittleEndian, &offset); err != nil {
			return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading label %d offset: %w", i, err))
		}
		labels[string(nameBytes)] = Label{Kind: LabelKind(kind), Offset: offset}
	}

	funcs := make(map[uint32]FuncMeta, hdr.FuncCount)
	for i := uint32(0); i < hdr.FuncCount; i++ {
		var entry uint32
		var arity uint8
		var localsCount uint16
		if err := binary.Read(br, binary.LittleEndian, &entry); err != nil {
			return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading func %d entry: %w", i, err))
		}
		if err := binary.Read(br, binary.LittleEndian, &arity); err != nil {
			return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading func %d arity: %w", i, err))
		}
		if err := binary.Read(br, binary.LittleEndian, &localsCount); err != nil {
			return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading func %d locals: %w", i, err))
		}
		funcs[entry] = FuncMeta{Arity: arity, LocalsCount: localsCount}
	}

	data := make([]byte, hdr.DataLen)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading data section: %w", err))
	}

	code := make([]byte, hdr.CodeLen)
	if _, err := io.ReadFull(br, code); err != nil {
		return nil, wrapFault(BadDecode, 0, fmt.Errorf("reading code section: %w", err))
	}

	prog := &Program{
		Code:        code,
		Data:        data,
		Labels:      labels,
		Funcs:       funcs,
		EntryOffset: hdr.EntryOffset,
		MainLocals:  hdr.MainLocals,
	}
	if !prog.ValidCodeOffset(prog.EntryOffset) && hdr.CodeLen > 0 {
		return nil, fault(BadLabel, 0, "entry offset outside code section")
	}
	return prog, nil
}

// Encode serializes a Program back to the wire format. Used by the
// (out-of-scope) compiler front end and by tests that exercise the
// round-trip property: Load(Encode(p)) reproduces p's data section
// byte-for-byte.
func Encode(p *Program) []byte {
	buf := &bytes.Buffer{}
	buf.Write(magic[:])

	hdr := header{
		DataLen:     uint32(len(p.Data)),
		CodeLen:     uint32(len(p.Code)),
		EntryOffset: p.EntryOffset,
		MainLocals:  p.MainLocals,
		LabelCount:  uint32(len(p.Labels)),
		FuncCount:   uint32(len(p.Funcs)),
	}
	binary.Write(buf, binary.LittleEndian, &hdr)

	for name, lbl := range p.Labels {
		binary.Write(buf, binary.LittleEndian, uint16(len(name)))
		buf.WriteString(name)
		binary.Write(buf, binary.LittleEndian, uint8(lbl.Kind))
		binary.Write(buf, binary.LittleEndian, lbl.Offset)
	}
	for entry, meta := range p.Funcs {
		binary.Write(buf, binary.LittleEndian, entry)
		binary.Write(buf, binary.LittleEndian, meta.Arity)
		binary.Write(buf, binary.LittleEndian, meta.LocalsCount)
	}

	buf.Write(p.Data)
	buf.Write(p.Code)
	return buf.Bytes()
}
