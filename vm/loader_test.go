package vm

import (
	"bytes"
	"testing"
)

func TestLoadEncodeRoundTrip(t *testing.T) {
	orig := &Program{
		Code:        (&asm{}).pushU32(1).op(Exit).bytes(),
		Data:        []byte{1, 2, 3, 4, 5},
		Labels:      map[string]Label{"main": {Kind: LabelCode, Offset: 0}},
		Funcs:       map[uint32]FuncMeta{0: {Arity: 0, LocalsCount: 1}},
		EntryOffset: 0,
		MainLocals:  1,
	}

	wire := Encode(orig)
	got, err := Load(bytes.NewReader(wire))
	assert(t, err == nil, "load failed: %v", err)
	assert(t, bytes.Equal(got.Code, orig.Code), "code section mismatch")
	assert(t, bytes.Equal(got.Data, orig.Data), "data section mismatch")
	assert(t, got.EntryOffset == orig.EntryOffset, "entry offset mismatch")
	assert(t, got.MainLocals == orig.MainLocals, "main locals mismatch")
	assert(t, len(got.Labels) == len(orig.Labels), "label count mismatch")
	assert(t, len(got.Funcs) == len(orig.Funcs), "func count mismatch")

	lbl, ok := got.Labels["main"]
	assert(t, ok && lbl.Offset == 0 && lbl.Kind == LabelCode, "main label not round-tripped correctly")

	meta, ok := got.Funcs[0]
	assert(t, ok && meta.LocalsCount == 1, "func metadata not round-tripped correctly")
}

func TestLoadRejectsBadMagic(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte{'X', 'X', 'X', 'X', 0, 0, 0, 0}))
	f, ok := err.(*Fault)
	assert(t, ok && f.Kind == BadDecode, "expected BadDecode for bad magic, got %v", err)
}

func TestLoadRejectsTruncatedInput(t *testing.T) {
	_, err := Load(bytes.NewReader(magic[:]))
	f, ok := err.(*Fault)
	assert(t, ok && f.Kind == BadDecode, "expected BadDecode for truncated header, got %v", err)
}
