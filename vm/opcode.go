package vm

/*
	Instruction encoding: one byte of opcode, followed by whatever
	inline immediate that opcode declares (self-describing, no
	separate operand-count table needed at decode time):

		push_i8  <int8>            sign-extends to 64 bits
		push_u32 <uint32>          zero-extends to 64 bits
		push_u64 <uint64>
		push_f32 <uint32 bits>     float32 bit pattern, widened to a
		                           64-bit cell holding the float32 bits
		push_p32 <uint32 offset>   already-resolved heap offset (the
		                           loader rewrites label refs to literal
		                           offsets once, at load time)
		pop, dup, swap
		get_local <uint8 idx>, set_local <uint8 idx>

		add_i64, sub_i64, mul_i64, div_i64, div_u64, mod_i64, mod_u64
		and_i64, or_i64, xor_i64, shl_i64, shr_i64, sar_i64

		lt_i64, le_i64, gt_i64, ge_i64, eq_i64, ne_i64
		lt_u64, le_u64, gt_u64, ge_u64
		lt_f64, le_f64, gt_f64, ge_f64, eq_f64, ne_f64

		load_u8, load_u16, load_u32, load_u64
		load_i8, load_i16, load_i32
		store_u8, store_u16, store_u32, store_u64
		load_f32, load_f64, store_f32, store_f64

		jmp <uint32 offset>, jz <uint32 offset>, jnz <uint32 offset>
		call <uint32 offset>, ret, exit
		syscall <uint8 const_idx>, wait

	Operand order for loads is address-on-top; for stores it's
	[addr, value] with value on top, same convention the teacher VM
	uses for storep8/storep16/storep32.
*/

type Op byte

const (
	Nop Op = iota

	PushI8
	PushU32
	PushU64
	PushF32
	PushP32
	Pop
	Dup
	Swap
	GetLocal
	SetLocal

	AddI64
	SubI64
	MulI64
	DivI64
	DivU64
	ModI64
	ModU64

	AndI64
	OrI64
	XorI64
	ShlI64
	ShrI64
	SarI64

	LtI64
	LeI64
	GtI64
	GeI64
	EqI64
	NeI64
	LtU64
	LeU64
	GtU64
	GeU64
	LtF64
	LeF64
	GtF64
	GeF64
	EqF64
	NeF64

	LoadU8
	LoadU16
	LoadU32
	LoadU64
	LoadI8
	LoadI16
	LoadI32
	StoreU8
	StoreU16
	StoreU32
	StoreU64
	LoadF32
	LoadF64
	StoreF32
	StoreF64

	Jmp
	Jz
	Jnz
	Call
	Ret
	Exit
	Syscall
	Wait
)

var opNames = map[Op]string{
	Nop:      "nop",
	PushI8:   "push_i8",
	PushU32:  "push_u32",
	PushU64:  "push_u64",
	PushF32:  "push_f32",
	PushP32:  "push_p32",
	Pop:      "pop",
	Dup:      "dup",
	Swap:     "swap",
	GetLocal: "get_local",
	SetLocal: "set_local",
	AddI64:   "add_i64",
	SubI64:   "sub_i64",
	MulI64:   "mul_i64",
	DivI64:   "div_i64",
	DivU64:   "div_u64",
	ModI64:   "mod_i64",
	ModU64:   "mod_u64",
	AndI64:   "and_i64",
	OrI64:    "or_i64",
	XorI64:   "xor_i64",
	ShlI64:   "shl_i64",
	ShrI64:   "shr_i64",
	SarI64:   "sar_i64",
	LtI64:    "lt_i64",
	LeI64:    "le_i64",
	GtI64:    "gt_i64",
	GeI64:    "ge_i64",
	EqI64:    "eq_i64",
	NeI64:    "ne_i64",
	LtU64:    "lt_u64",
	LeU64:    "le_u64",
	GtU64:    "gt_u64",
	GeU64:    "ge_u64",
	LtF64:    "lt_f64",
	LeF64:    "le_f64",
	GtF64:    "gt_f64",
	GeF64:    "ge_f64",
	EqF64:    "eq_f64",
	NeF64:    "ne_f64",
	LoadU8:   "load_u8",
	LoadU16:  "load_u16",
	LoadU32:  "load_u32",
	LoadU64:  "load_u64",
	LoadI8:   "load_i8",
	LoadI16:  "load_i16",
	LoadI32:  "load_i32",
	StoreU8:  "store_u8",
	StoreU16: "store_u16",
	StoreU32: "store_u32",
	StoreU64: "store_u64",
	LoadF32:  "load_f32",
	LoadF64:  "load_f64",
	StoreF32: "store_f32",
	StoreF64: "store_f64",
	Jmp:      "jmp",
	Jz:       "jz",
	Jnz:      "jnz",
	Call:     "call",
	Ret:      "ret",
	Exit:     "exit",
	Syscall:  "syscall",
	Wait:     "wait",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "?unknown?"
}

// immediateWidth returns the number of inline bytes that follow this
// opcode in the code stream, or -1 if the opcode is unknown.
func (o Op) immediateWidth() int {
	switch o {
	case PushI8:
		return 1
	case GetLocal, SetLocal, Syscall:
		return 1
	case PushU32, PushF32, PushP32, Jmp, Jz, Jnz, Call:
		return 4
	case PushU64:
		return 8
	default:
		if _, ok := opNames[o]; ok {
			return 0
		}
		return -1
	}
}
