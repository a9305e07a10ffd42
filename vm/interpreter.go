package vm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Interpreter is a single loaded program's execution context: program
// counter, operand stack, frame stack, heap, and the syscall/scheduler
// wiring a running program traps into. Exactly one goroutine ever
// drives an Interpreter's Step loop -- see SPEC_FULL.md #5.
type Interpreter struct {
	prog *Program
	heap *Heap

	stack  *Stack
	frames *frameStack
	pc     uint32

	syscalls  *SyscallTable
	perms     PermissionSet
	scheduler *Scheduler

	Stdout io.Writer
	Stdin  *bufio.Reader

	halted   bool
	exitCode int
}

// Config bundles the knobs callers tune per SPEC_FULL.md's CLI flags.
type Config struct {
	MaxStackDepth int
	Permissions   PermissionSet
	Stdout        io.Writer
	Stdin         io.Reader
}

func NewInterpreter(prog *Program, syscalls *SyscallTable, cfg Config) *Interpreter {
	heap := NewHeap(prog.Data)

	var stdin *bufio.Reader
	if cfg.Stdin != nil {
		stdin = bufio.NewReader(cfg.Stdin)
	}

	it := &Interpreter{
		prog:     prog,
		heap:     heap,
		stack:    NewStack(cfg.MaxStackDepth),
		frames:   newFrameStack(cfg.MaxStackDepth),
		pc:       prog.EntryOffset,
		syscalls: syscalls,
		perms:    cfg.Permissions,
		Stdout:   cfg.Stdout,
		Stdin:    stdin,
	}
	it.scheduler = NewScheduler(it)
	it.frames.push(&Frame{Locals: make([]Value, prog.MainLocals)})
	return it
}

// SetSyscalls replaces the interpreter's syscall table. Used by main
// to finish wiring the catalog after constructing host services (e.g.
// the window manager) that themselves need a reference to this
// Interpreter, which only exists once NewInterpreter has already run.
func (i *Interpreter) SetSyscalls(tbl *SyscallTable) { i.syscalls = tbl }

func (i *Interpreter) Heap() *Heap               { return i.heap }
func (i *Interpreter) Stack() *Stack              { return i.stack }
func (i *Interpreter) Scheduler() *Scheduler      { return i.scheduler }
func (i *Interpreter) Program() *Program          { return i.prog }
func (i *Interpreter) PC() uint32                 { return i.pc }
func (i *Interpreter) Halted() bool               { return i.halted }
func (i *Interpreter) Permissions() PermissionSet { return i.perms }

// fetch reads the next `n` bytes from the code stream at pc and
// advances pc past them. BadDecode if truncated.
func (i *Interpreter) fetch(n int) ([]byte, error) {
	if i.pc+uint32(n) > uint32(len(i.prog.Code)) {
		return nil, fault(BadDecode, i.pc, "truncated immediate")
	}
	b := i.prog.Code[i.pc : i.pc+uint32(n)]
	i.pc += uint32(n)
	return b, nil
}

func (i *Interpreter) fetchOp() (Op, error) {
	if i.pc >= uint32(len(i.prog.Code)) {
		return 0, fault(BadDecode, i.pc, "pc past end of code")
	}
	op := Op(i.prog.Code[i.pc])
	i.pc++
	return op, nil
}

func (i *Interpreter) fetchU32() (uint32, error) {
	b, err := i.fetch(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (i *Interpreter) fetchU64() (uint64, error) {
	b, err := i.fetch(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (i *Interpreter) fetchU8() (uint8, error) {
	b, err := i.fetch(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Run drives the interpreter until `exit` executes or a fault occurs.
// Observable side effects happen only through syscall traps, per
// SPEC_FULL.md #4.1.
func (i *Interpreter) Run() error {
	defer i.scheduler.Close()
	for !i.halted {
		if err := i.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step decodes and executes exactly one instruction. No instruction
// preempts itself; callers single-stepping (the debug console) call
// Step in a loop instead of Run.
func (i *Interpreter) Step() error {
	startPC := i.pc
	op, err := i.fetchOp()
	if err != nil {
		return err
	}

	if err := i.exec(op); err != nil {
		if f, ok := err.(*Fault); ok && f.PC == 0 {
			f.PC = startPC
		}
		return err
	}
	return nil
}

func (i *Interpreter) push(v Value) error { return i.stack.Push(v) }
func (i *Interpreter) pop() (Value, error) { return i.stack.Pop() }

func (i *Interpreter) exec(op Op) error {
	switch op {
	case Nop:
		return nil

	case PushI8:
		imm, err := i.fetchU8()
		if err != nil {
			return err
		}
		return i.push(signExtend(uint64(imm), 1))
	case PushU32:
		imm, err := i.fetchU32()
		if err != nil {
			return err
		}
		return i.push(uint64(imm))
	case PushU64:
		imm, err := i.fetchU64()
		if err != nil {
			return err
		}
		return i.push(imm)
	case PushF32:
		imm, err := i.fetchU32()
		if err != nil {
			return err
		}
		return i.push(uint64(imm))
	case PushP32:
		imm, err := i.fetchU32()
		if err != nil {
			return err
		}
		return i.push(uint64(imm))
	case Pop:
		_, err := i.pop()
		return err
	case Dup:
		return i.stack.Dup()
	case Swap:
		return i.stack.Swap()
	case GetLocal:
		idx, err := i.fetchU8()
		if err != nil {
			return err
		}
		v, err := i.frames.current().GetLocal(int(idx))
		if err != nil {
			return err
		}
		return i.push(v)
	case SetLocal:
		idx, err := i.fetchU8()
		if err != nil {
			return err
		}
		v, err := i.pop()
		if err != nil {
			return err
		}
		return i.frames.current().SetLocal(int(idx), v)

	case AddI64, SubI64, MulI64, DivI64, DivU64, ModI64, ModU64,
		AndI64, OrI64, XorI64, ShlI64, ShrI64, SarI64:
		return i.execArith(op)

	case LtI64, LeI64, GtI64, GeI64, EqI64, NeI64,
		LtU64, LeU64, GtU64, GeU64,
		LtF64, LeF64, GtF64, GeF64, EqF64, NeF64:
		return i.execCompare(op)

	case LoadU8, LoadU16, LoadU32, LoadU64, LoadI8, LoadI16, LoadI32, LoadF32, LoadF64:
		return i.execLoad(op)
	case StoreU8, StoreU16, StoreU32, StoreU64, StoreF32, StoreF64:
		return i.execStore(op)

	case Jmp:
		target, err := i.fetchU32()
		if err != nil {
			return err
		}
		return i.jump(target)
	case Jz:
		target, err := i.fetchU32()
		if err != nil {
			return err
		}
		v, err := i.pop()
		if err != nil {
			return err
		}
		if v == 0 {
			return i.jump(target)
		}
		return nil
	case Jnz:
		target, err := i.fetchU32()
		if err != nil {
			return err
		}
		v, err := i.pop()
		if err != nil {
			return err
		}
		if v != 0 {
			return i.jump(target)
		}
		return nil

	case Call:
		target, err := i.fetchU32()
		if err != nil {
			return err
		}
		return i.call(target)
	case Ret:
		return i.ret()
	case Exit:
		i.halted = true
		return nil

	case Syscall:
		idx, err := i.fetchU8()
		if err != nil {
			return err
		}
		return i.dispatchSyscall(idx)
	case Wait:
		return i.scheduler.Wait()

	default:
		return fault(BadDecode, i.pc, fmt.Sprintf("unknown opcode 0x%02x", byte(op)))
	}
}

func (i *Interpreter) jump(target uint32) error {
	if !i.prog.ValidCodeOffset(target) {
		return fault(BadLabel, i.pc, "jump target outside code section")
	}
	i.pc = target
	return nil
}

func (i *Interpreter) call(target uint32) error {
	if !i.prog.ValidCodeOffset(target) {
		return fault(BadLabel, i.pc, "call target outside code section")
	}
	meta := i.prog.FuncMetaAt(target)

	args := make([]Value, meta.Arity)
	for k := int(meta.Arity) - 1; k >= 0; k-- {
		v, err := i.pop()
		if err != nil {
			return err
		}
		args[k] = v
	}

	locals := make([]Value, meta.LocalsCount)
	copy(locals, args)

	if err := i.frames.push(&Frame{ReturnPC: i.pc, Locals: locals}); err != nil {
		return err
	}
	i.pc = target
	return nil
}

func (i *Interpreter) ret() error {
	f, err := i.frames.pop()
	if err != nil {
		return err
	}
	i.pc = f.ReturnPC
	return nil
}

// invokeCallback runs a registered callback to completion: it pushes
// args as locals (scheduler/callback convention: pushed left-to-right,
// deepest first, so args[0] is the lowest-indexed local), executes
// from offset, and returns once the pushed frame has been popped via
// ret. A fault aborts the whole program, same as any other fault.
func (i *Interpreter) invokeCallback(offset uint32, args []Value) error {
	if !i.prog.ValidCodeOffset(offset) {
		return fault(BadLabel, i.pc, "callback offset outside code section")
	}
	meta := i.prog.FuncMetaAt(offset)
	localsCount := int(meta.LocalsCount)
	if localsCount < len(args) {
		localsCount = len(args)
	}
	locals := make([]Value, localsCount)
	copy(locals, args)

	targetDepth := i.frames.depth()
	if err := i.frames.push(&Frame{ReturnPC: i.pc, Locals: locals}); err != nil {
		return err
	}
	i.pc = offset

	// ret (executed inside the callback) restores pc to the saved
	// ReturnPC once the pushed frame pops back off; the loop just
	// watches frame depth to know when that happened.
	for i.frames.depth() > targetDepth && !i.halted {
		if err := i.Step(); err != nil {
			return err
		}
	}
	return nil
}
