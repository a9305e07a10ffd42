package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
)

// assert mirrors the teacher's vm_test.go helper of the same name and
// signature.
func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

// asm is a minimal in-process assembler for tests: it lets test cases
// write opcode streams without depending on the (out-of-scope) text
// assembler front end.
type asm struct {
	buf bytes.Buffer
}

func (a *asm) op(o Op) *asm {
	a.buf.WriteByte(byte(o))
	return a
}

func (a *asm) u8(v uint8) *asm {
	a.buf.WriteByte(v)
	return a
}

func (a *asm) u32(v uint32) *asm {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	a.buf.Write(b[:])
	return a
}

func (a *asm) pushU32(v uint32) *asm        { return a.op(PushU32).u32(v) }
func (a *asm) pushP32(v uint32) *asm        { return a.op(PushP32).u32(v) }
func (a *asm) call(target uint32) *asm      { return a.op(Call).u32(target) }
func (a *asm) syscall(idx uint8) *asm       { return a.op(Syscall).u8(idx) }
func (a *asm) local(o Op, idx uint8) *asm   { return a.op(o).u8(idx) }

func (a *asm) bytes() []byte { return a.buf.Bytes() }

func newTestProgram(code []byte, data []byte) *Program {
	return &Program{
		Code:        code,
		Data:        data,
		Labels:      map[string]Label{},
		Funcs:       map[uint32]FuncMeta{},
		EntryOffset: 0,
		MainLocals:  4,
	}
}

func newTestInterpreter(t *testing.T, prog *Program, perms ...string) *Interpreter {
	t.Helper()
	var out bytes.Buffer
	return NewInterpreter(prog, NewSyscallTable(), Config{
		Permissions: NewPermissionSet(perms...),
		Stdout:      &out,
	})
}

func TestPushPopRoundTrip(t *testing.T) {
	a := (&asm{}).pushU32(5).op(Pop).op(Exit)
	it := newTestInterpreter(t, newTestProgram(a.bytes(), nil))
	assert(t, it.Run() == nil, "unexpected run error")
	assert(t, it.stack.Depth() == 0, "stack should be empty after matched push/pop, got depth %d", it.stack.Depth())
}

func TestArithmeticAddThenPrint(t *testing.T) {
	a := (&asm{}).pushU32(2).pushU32(3).op(AddI64).syscall(5).op(Exit)
	prog := newTestProgram(a.bytes(), nil)
	var out bytes.Buffer
	it := NewInterpreter(prog, testSyscallTable(), Config{Stdout: &out})
	assert(t, it.Run() == nil, "unexpected run error")
	assert(t, out.String() == "5", "expected stdout \"5\", got %q", out.String())
}

func TestDivisionByZeroFaults(t *testing.T) {
	a := (&asm{}).pushU32(1).pushU32(0).op(DivI64)
	it := newTestInterpreter(t, newTestProgram(a.bytes(), nil))
	err := it.Run()
	f, ok := err.(*Fault)
	assert(t, ok && f.Kind == DivByZero, "expected DivByZero, got %v", err)
}

func TestStackOverflow(t *testing.T) {
	a := &asm{}
	for k := 0; k < 10; k++ {
		a.pushU32(1)
	}
	prog := newTestProgram(a.bytes(), nil)
	it := NewInterpreter(prog, NewSyscallTable(), Config{MaxStackDepth: 4})
	err := it.Run()
	f, ok := err.(*Fault)
	assert(t, ok && f.Kind == StackOverflow, "expected StackOverflow, got %v", err)
}

func TestStackUnderflow(t *testing.T) {
	a := (&asm{}).op(Pop)
	it := newTestInterpreter(t, newTestProgram(a.bytes(), nil))
	err := it.Run()
	f, ok := err.(*Fault)
	assert(t, ok && f.Kind == StackUnderflow, "expected StackUnderflow, got %v", err)
}

func TestHeapStoreLoadRoundTrip(t *testing.T) {
	a := (&asm{}).
		pushU32(0).          // addr
		pushU32(0xFFFFFFFE). // value = -2 as u32
		op(StoreU32).
		pushU32(0). // addr
		op(LoadI32).
		op(Exit)
	data := make([]byte, 16)
	it := newTestInterpreter(t, newTestProgram(a.bytes(), data))
	assert(t, it.Run() == nil, "unexpected run error")
	v, err := it.stack.Pop()
	assert(t, err == nil, "pop failed: %v", err)
	assert(t, int64(v) == -2, "expected sign-extended -2, got %d", int64(v))
}

func TestBadAccessOutOfRange(t *testing.T) {
	a := (&asm{}).pushU32(1000).op(LoadU8)
	it := newTestInterpreter(t, newTestProgram(a.bytes(), make([]byte, 4)))
	err := it.Run()
	f, ok := err.(*Fault)
	assert(t, ok && f.Kind == BadAccess, "expected BadAccess, got %v", err)
}

func TestPushP32ResolvesLoadTimeLabel(t *testing.T) {
	a := (&asm{}).pushP32(42).op(Exit)
	it := newTestInterpreter(t, newTestProgram(a.bytes(), nil))
	assert(t, it.Run() == nil, "unexpected run error")
	v, err := it.stack.Pop()
	assert(t, err == nil && v == 42, "expected resolved pointer 42, got %d err=%v", v, err)
}

func TestGetSetLocal(t *testing.T) {
	a := (&asm{}).pushU32(7).local(SetLocal, 0).local(GetLocal, 0).op(Exit)
	it := newTestInterpreter(t, newTestProgram(a.bytes(), nil))
	assert(t, it.Run() == nil, "unexpected run error")
	v, _ := it.stack.Pop()
	assert(t, v == 7, "expected local round-trip 7, got %d", v)
}

func TestBadLocalOutOfRange(t *testing.T) {
	a := (&asm{}).local(GetLocal, 200)
	it := newTestInterpreter(t, newTestProgram(a.bytes(), nil))
	err := it.Run()
	f, ok := err.(*Fault)
	assert(t, ok && f.Kind == BadLocal, "expected BadLocal, got %v", err)
}

func TestCallReturnWithArgsAndLocals(t *testing.T) {
	// func add2(a, b) -> a + b
	fn := (&asm{}).local(GetLocal, 0).local(GetLocal, 1).op(AddI64).op(Ret)

	main := (&asm{}).pushU32(4).pushU32(5)
	callTarget := uint32(len(main.bytes())) + 5 + 1 // past call <u32> and exit
	main.call(callTarget).op(Exit)

	code := append(append([]byte{}, main.bytes()...), fn.bytes()...)

	prog := newTestProgram(code, nil)
	prog.Funcs[callTarget] = FuncMeta{Arity: 2, LocalsCount: 2}

	it := newTestInterpreter(t, prog)
	assert(t, it.Run() == nil, "unexpected run error")
	v, err := it.stack.Pop()
	assert(t, err == nil && v == 9, "expected 4+5=9, got %d err=%v", v, err)
}

func TestUnknownOpcodeIsBadDecode(t *testing.T) {
	prog := newTestProgram([]byte{0xFE}, nil)
	it := newTestInterpreter(t, prog)
	err := it.Run()
	f, ok := err.(*Fault)
	assert(t, ok && f.Kind == BadDecode, "expected BadDecode, got %v", err)
}

// testSyscallTable wires just enough of the host catalog for
// interpreter-level tests without importing the host package (which
// would create an import cycle back into vm).
func testSyscallTable() *SyscallTable {
	tbl := NewSyscallTable()
	tbl.Register(SyscallRecord{
		Index: 5, Name: "print_i64", Args: []ArgType{TypeI64}, Ret: TypeNone,
		Permission: DefaultAllowed, Subsystem: SubsystemIO,
		Handler: func(i *Interpreter, args []Value) (Value, error) {
			fmt.Fprintf(i.Stdout, "%d", int64(args[0]))
			return 0, nil
		},
	})
	tbl.Register(SyscallRecord{
		Index: 17, Name: "vm_resize_heap", Args: []ArgType{TypeU64}, Ret: TypeBool,
		Permission: DefaultAllowed, Subsystem: SubsystemVM,
		Handler: func(i *Interpreter, args []Value) (Value, error) {
			return boolValue(i.Heap().Resize(args[0])), nil
		},
	})
	tbl.Register(SyscallRecord{
		Index: 14, Name: "vm_heap_size", Args: nil, Ret: TypeU64,
		Permission: DefaultAllowed, Subsystem: SubsystemVM,
		Handler: func(i *Interpreter, args []Value) (Value, error) {
			return i.Heap().Size(), nil
		},
	})
	return tbl
}

func TestHeapGrowthScenario(t *testing.T) {
	a := (&asm{}).
		syscall(14).              // heap_size()
		pushU32(1024).op(AddI64). // heap_size()+1024
		syscall(17).op(Pop).      // resize_heap(...) -> bool, discard
		syscall(14).              // heap_size() again
		op(Exit)
	prog := newTestProgram(a.bytes(), make([]byte, 64))
	it := NewInterpreter(prog, testSyscallTable(), Config{})
	assert(t, it.Run() == nil, "unexpected run error")
	v, err := it.stack.Pop()
	assert(t, err == nil && v == 64+1024, "expected grown heap size, got %d err=%v", v, err)
}

func TestDeniedPermission(t *testing.T) {
	tbl := NewSyscallTable()
	tbl.Register(SyscallRecord{
		Index: 1, Name: "window_create", Args: nil, Ret: TypeU32,
		Permission: "window_display", Subsystem: SubsystemWindow,
		Handler: func(i *Interpreter, args []Value) (Value, error) { return 1, nil },
	})
	a := (&asm{}).syscall(1)
	prog := newTestProgram(a.bytes(), nil)
	it := NewInterpreter(prog, tbl, Config{Permissions: NewPermissionSet()})
	err := it.Run()
	f, ok := err.(*Fault)
	assert(t, ok && f.Kind == Denied, "expected Denied, got %v", err)
}

func TestUnknownSyscallIndex(t *testing.T) {
	a := (&asm{}).syscall(250)
	prog := newTestProgram(a.bytes(), nil)
	it := NewInterpreter(prog, NewSyscallTable(), Config{})
	err := it.Run()
	f, ok := err.(*Fault)
	assert(t, ok && f.Kind == BadSyscall, "expected BadSyscall, got %v", err)
}

func TestKeydownCallbackScenario(t *testing.T) {
	// Callback observes (window_id, keycode) as locals 0 and 1 and
	// stores the keycode to heap address 0, so the test can assert on
	// it without real window plumbing (spec.md #8 scenario 6).
	cb := (&asm{}).local(GetLocal, 1).pushU32(0).op(Swap).op(StoreU32).op(Ret)
	mainAsm := (&asm{}).op(Wait).op(Exit)
	cbOffset := uint32(len(mainAsm.bytes()))
	code := append(append([]byte{}, mainAsm.bytes()...), cb.bytes()...)

	prog := newTestProgram(code, make([]byte, 8))
	prog.Funcs[cbOffset] = FuncMeta{Arity: 2, LocalsCount: 2}

	it := newTestInterpreter(t, prog)
	err := it.scheduler.Register(EventKeyDown, 1, cbOffset)
	assert(t, err == nil, "register failed: %v", err)
	it.scheduler.Push(Event{Class: EventKeyDown, WindowID: 1, Args: []Value{1, 65}})

	assert(t, it.Run() == nil, "unexpected run error")
	v, err := it.heap.Load(0, 4, false)
	assert(t, err == nil && v == 65, "expected keycode 65 stored, got %d err=%v", v, err)
}

func TestCallbackLocalsCountExceedsArity(t *testing.T) {
	// Regression: invokeCallback must size locals from FuncMetaAt, the
	// same as call, not from len(args). A callback declaring scratch
	// locals past its event's arg count (LocalsCount > Arity) must be
	// able to touch them without faulting BadLocal.
	cb := (&asm{}).
		pushU32(99).
		local(SetLocal, 2).
		local(GetLocal, 2).
		pushU32(4).
		op(Swap).
		op(StoreU32).
		local(GetLocal, 1).
		pushU32(0).
		op(Swap).
		op(StoreU32).
		op(Ret)
	mainAsm := (&asm{}).op(Wait).op(Exit)
	cbOffset := uint32(len(mainAsm.bytes()))
	code := append(append([]byte{}, mainAsm.bytes()...), cb.bytes()...)

	prog := newTestProgram(code, make([]byte, 8))
	prog.Funcs[cbOffset] = FuncMeta{Arity: 2, LocalsCount: 3}

	it := newTestInterpreter(t, prog)
	err := it.scheduler.Register(EventKeyDown, 1, cbOffset)
	assert(t, err == nil, "register failed: %v", err)
	it.scheduler.Push(Event{Class: EventKeyDown, WindowID: 1, Args: []Value{1, 65}})

	assert(t, it.Run() == nil, "unexpected run error")
	keycode, err := it.heap.Load(0, 4, false)
	assert(t, err == nil && keycode == 65, "expected keycode 65 stored, got %d err=%v", keycode, err)
	scratch, err := it.heap.Load(4, 4, false)
	assert(t, err == nil && scratch == 99, "expected scratch local round-trip 99, got %d err=%v", scratch, err)
}
