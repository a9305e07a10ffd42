package vm

// Heap is the linear, resizable byte array bytecode addresses via
// integer offsets -- the only mutable memory visible to a running
// program. Growth zero-fills; shrink truncates; both preserve
// overlapping bytes, per spec.
type Heap struct {
	bytes []byte
}

func NewHeap(initial []byte) *Heap {
	h := &Heap{bytes: make([]byte, len(initial))}
	copy(h.bytes, initial)
	return h
}

func (h *Heap) Size() uint64 { return uint64(len(h.bytes)) }

func (h *Heap) inBounds(addr, width uint64) bool {
	return addr+width <= uint64(len(h.bytes)) && addr+width >= addr
}

// Load reads width bytes at addr and returns them as a 64-bit cell,
// sign- or zero-extended per signed.
func (h *Heap) Load(addr uint64, width int, signed bool) (uint64, error) {
	if !h.inBounds(addr, uint64(width)) {
		return 0, fault(BadAccess, 0, "heap load out of range")
	}
	raw := bytesToUint(h.bytes[addr:addr+uint64(width)], width)
	if signed {
		return signExtend(raw, width), nil
	}
	return raw, nil
}

func (h *Heap) LoadFloat32(addr uint64) (float32, error) {
	raw, err := h.Load(addr, 4, false)
	if err != nil {
		return 0, err
	}
	return float32FromBits(raw), nil
}

func (h *Heap) LoadFloat64(addr uint64) (float64, error) {
	raw, err := h.Load(addr, 8, false)
	if err != nil {
		return 0, err
	}
	return float64FromBits(raw), nil
}

// Store writes the low `width` bytes of value at addr.
func (h *Heap) Store(addr uint64, width int, value uint64) error {
	if !h.inBounds(addr, uint64(width)) {
		return fault(BadAccess, 0, "heap store out of range")
	}
	uintToBytes(value, width, h.bytes[addr:addr+uint64(width)])
	return nil
}

func (h *Heap) StoreFloat32(addr uint64, f float32) error {
	return h.Store(addr, 4, bitsFromFloat32(f))
}

func (h *Heap) StoreFloat64(addr uint64, f float64) error {
	return h.Store(addr, 8, bitsFromFloat64(f))
}

// Resize grows or shrinks the heap. Growth zero-fills new bytes;
// shrink truncates. Returns false without mutation if n would
// overflow a reasonable implementation limit.
func (h *Heap) Resize(n uint64) bool {
	const maxHeap = 1 << 32
	if n > maxHeap {
		return false
	}
	switch {
	case n == uint64(len(h.bytes)):
		return true
	case n < uint64(len(h.bytes)):
		h.bytes = h.bytes[:n]
	default:
		grown := make([]byte, n)
		copy(grown, h.bytes)
		h.bytes = grown
	}
	return true
}

// Slice returns a contiguous, bounds-checked region for syscalls that
// need to copy bytes in bulk (memcpy, memset, pixel/audio buffers,
// C-string scans). The returned slice aliases the heap's backing
// array and must not be retained past the syscall that requested it --
// a resize can reallocate the backing array.
func (h *Heap) Slice(addr, length uint64) ([]byte, error) {
	if !h.inBounds(addr, length) {
		return nil, fault(BadAccess, 0, "heap slice out of range")
	}
	return h.bytes[addr : addr+length], nil
}

// CString reads a NUL-terminated byte string starting at addr.
// BadAccess if the terminator isn't found before the heap ends.
func (h *Heap) CString(addr uint64) (string, error) {
	size := uint64(len(h.bytes))
	for i := addr; i < size; i++ {
		if h.bytes[i] == 0 {
			return string(h.bytes[addr:i]), nil
		}
	}
	return "", fault(BadAccess, 0, "unterminated C string")
}

// Dump returns a copy of the first n bytes, used by the CLI's
// --heap-size override and by the debug console's heap dump command.
func (h *Heap) Dump(n uint64) []byte {
	if n > uint64(len(h.bytes)) {
		n = uint64(len(h.bytes))
	}
	out := make([]byte, n)
	copy(out, h.bytes[:n])
	return out
}
