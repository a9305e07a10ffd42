package vm

// execArith implements the integer/bitwise binary ops. All operate on
// the top two cells (x below, y on top after pop order: x popped
// second, y popped first -- so `a op b` reads as stack order [... a b]
// with b on top, matching the teacher's stack[0]/stack[1] convention
// for subi/divi where order is not commutative).
func (i *Interpreter) execArith(op Op) error {
	b, err := i.pop()
	if err != nil {
		return err
	}
	a, err := i.pop()
	if err != nil {
		return err
	}

	var result uint64
	switch op {
	case AddI64:
		result = a + b
	case SubI64:
		result = a - b
	case MulI64:
		result = a * b
	case DivI64:
		if b == 0 {
			return fault(DivByZero, i.pc, "")
		}
		result = uint64(int64(a) / int64(b))
	case DivU64:
		if b == 0 {
			return fault(DivByZero, i.pc, "")
		}
		result = a / b
	case ModI64:
		if b == 0 {
			return fault(DivByZero, i.pc, "")
		}
		result = uint64(int64(a) % int64(b))
	case ModU64:
		if b == 0 {
			return fault(DivByZero, i.pc, "")
		}
		result = a % b
	case AndI64:
		result = a & b
	case OrI64:
		result = a | b
	case XorI64:
		result = a ^ b
	case ShlI64:
		result = a << (b & 63)
	case ShrI64:
		result = a >> (b & 63)
	case SarI64:
		result = uint64(int64(a) >> (b & 63))
	}
	return i.push(result)
}

func boolValue(b bool) Value {
	if b {
		return 1
	}
	return 0
}

func (i *Interpreter) execCompare(op Op) error {
	b, err := i.pop()
	if err != nil {
		return err
	}
	a, err := i.pop()
	if err != nil {
		return err
	}

	var result bool
	switch op {
	case LtI64:
		result = int64(a) < int64(b)
	case LeI64:
		result = int64(a) <= int64(b)
	case GtI64:
		result = int64(a) > int64(b)
	case GeI64:
		result = int64(a) >= int64(b)
	case EqI64:
		result = a == b
	case NeI64:
		result = a != b
	case LtU64:
		result = a < b
	case LeU64:
		result = a <= b
	case GtU64:
		result = a > b
	case GeU64:
		result = a >= b
	case LtF64:
		result = float64FromBits(a) < float64FromBits(b)
	case LeF64:
		result = float64FromBits(a) <= float64FromBits(b)
	case GtF64:
		result = float64FromBits(a) > float64FromBits(b)
	case GeF64:
		result = float64FromBits(a) >= float64FromBits(b)
	case EqF64:
		result = float64FromBits(a) == float64FromBits(b)
	case NeF64:
		result = float64FromBits(a) != float64FromBits(b)
	}
	return i.push(boolValue(result))
}

func (i *Interpreter) execLoad(op Op) error {
	addr, err := i.pop()
	if err != nil {
		return err
	}

	switch op {
	case LoadU8:
		v, err := i.heap.Load(addr, 1, false)
		if err != nil {
			return err
		}
		return i.push(v)
	case LoadU16:
		v, err := i.heap.Load(addr, 2, false)
		if err != nil {
			return err
		}
		return i.push(v)
	case LoadU32:
		v, err := i.heap.Load(addr, 4, false)
		if err != nil {
			return err
		}
		return i.push(v)
	case LoadU64:
		v, err := i.heap.Load(addr, 8, false)
		if err != nil {
			return err
		}
		return i.push(v)
	case LoadI8:
		v, err := i.heap.Load(addr, 1, true)
		if err != nil {
			return err
		}
		return i.push(v)
	case LoadI16:
		v, err := i.heap.Load(addr, 2, true)
		if err != nil {
			return err
		}
		return i.push(v)
	case LoadI32:
		v, err := i.heap.Load(addr, 4, true)
		if err != nil {
			return err
		}
		return i.push(v)
	case LoadF32:
		f, err := i.heap.LoadFloat32(addr)
		if err != nil {
			return err
		}
		return i.push(bitsFromFloat32(f))
	case LoadF64:
		f, err := i.heap.LoadFloat64(addr)
		if err != nil {
			return err
		}
		return i.push(bitsFromFloat64(f))
	}
	return fault(BadDecode, i.pc, "unreachable load opcode")
}

func (i *Interpreter) execStore(op Op) error {
	value, err := i.pop()
	if err != nil {
		return err
	}
	addr, err := i.pop()
	if err != nil {
		return err
	}

	switch op {
	case StoreU8:
		return i.heap.Store(addr, 1, value)
	case StoreU16:
		return i.heap.Store(addr, 2, value)
	case StoreU32:
		return i.heap.Store(addr, 4, value)
	case StoreU64:
		return i.heap.Store(addr, 8, value)
	case StoreF32:
		return i.heap.StoreFloat32(addr, float32FromBits(value))
	case StoreF64:
		return i.heap.StoreFloat64(addr, float64FromBits(value))
	}
	return fault(BadDecode, i.pc, "unreachable store opcode")
}
