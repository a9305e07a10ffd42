package vm

import "testing"

func TestStackDupSwap(t *testing.T) {
	s := NewStack(8)
	assert(t, s.Push(1) == nil, "push failed")
	assert(t, s.Push(2) == nil, "push failed")
	assert(t, s.Dup() == nil, "dup failed")
	v, _ := s.Pop()
	assert(t, v == 2, "expected dup'd 2, got %d", v)

	assert(t, s.Swap() == nil, "swap failed")
	v, _ = s.Pop()
	assert(t, v == 1, "expected 1 on top after swap, got %d", v)
	v, _ = s.Pop()
	assert(t, v == 2, "expected 2 below after swap, got %d", v)
}

func TestStackPeekDoesNotPop(t *testing.T) {
	s := NewStack(8)
	s.Push(10)
	s.Push(20)
	v, err := s.Peek(1)
	assert(t, err == nil && v == 10, "expected peek(1)==10, got %d err=%v", v, err)
	assert(t, s.Depth() == 2, "peek should not change depth, got %d", s.Depth())
}

func TestFrameLocalBounds(t *testing.T) {
	f := &Frame{Locals: make([]Value, 2)}
	assert(t, f.SetLocal(1, 9) == nil, "set local failed")
	v, err := f.GetLocal(1)
	assert(t, err == nil && v == 9, "expected 9, got %d err=%v", v, err)

	_, err = f.GetLocal(5)
	fl, ok := err.(*Fault)
	assert(t, ok && fl.Kind == BadLocal, "expected BadLocal, got %v", err)
}
